package redis

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamMessage Redis Streams 消息
type StreamMessage struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// ReadFromStream 从 Redis Streams 读取新消息（XREADGROUP >，阻塞 block）
func ReadFromStream(ctx context.Context, client *redis.Client, stream, consumerGroup, consumer string, count int64, block time.Duration) ([]StreamMessage, error) {
	return readGroup(ctx, client, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	})
}

// ReadPending 读取该消费者已投递但未确认的消息（XREADGROUP 0，不阻塞）
// 用于重启后先处理上次未确认的消息
func ReadPending(ctx context.Context, client *redis.Client, stream, consumerGroup, consumer string, count int64) ([]StreamMessage, error) {
	return readGroup(ctx, client, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumer,
		Streams:  []string{stream, "0"},
		Count:    count,
		Block:    -1,
	})
}

func readGroup(ctx context.Context, client *redis.Client, args *redis.XReadGroupArgs) ([]StreamMessage, error) {
	streams, err := client.XReadGroup(ctx, args).Result()
	if err != nil {
		if err == redis.Nil {
			return []StreamMessage{}, nil
		}
		return nil, err
	}

	var messages []StreamMessage
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, StreamMessage{
				Stream: s.Stream,
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}

	return messages, nil
}

// CreateConsumerGroup 创建消费者组，stream 不存在时一并创建；组已存在视为成功
func CreateConsumerGroup(ctx context.Context, client *redis.Client, stream string, groupName string) error {
	err := client.XGroupCreateMkStream(ctx, stream, groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Ack 确认消息
func Ack(ctx context.Context, client *redis.Client, stream, groupName string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return client.XAck(ctx, stream, groupName, ids...).Err()
}
