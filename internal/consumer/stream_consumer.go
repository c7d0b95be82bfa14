package consumer

import (
	"context"
	"fmt"
	"time"

	rediscommon "pulse-monitor/common/redis"
	"pulse-monitor/internal/config"
	"pulse-monitor/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// batchGracePeriod 已读取批次在停机时的最长处理时间
const batchGracePeriod = 10 * time.Second

// StreamConsumer Redis Streams 消费者：每次 XREADGROUP 读到的消息作为一批交给 Dispatcher
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	dispatcher  *Dispatcher
	logger      *zap.Logger
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	dispatcher *Dispatcher,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Start 启动消费者，阻塞直到 ctx 取消
// 先处理本消费者上次未确认的消息，再读取新消息
func (c *StreamConsumer) Start(ctx context.Context) error {
	src := c.config.Source
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, src.Stream, src.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", src.Stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", src.Stream),
		zap.String("consumer_group", src.ConsumerGroup),
		zap.String("consumer_name", src.ConsumerName),
	)

	if err := c.drainPending(ctx); err != nil && ctx.Err() == nil {
		// 未处理完的消息留在 pending 列表，下次启动再处理
		c.logger.Error("Failed to drain pending messages",
			zap.String("stream", src.Stream),
			zap.Error(err),
		)
	}

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := c.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume stream",
				zap.String("stream", src.Stream),
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			// 指数退避
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

// drainPending 处理本消费者已投递未确认的消息，直到 pending 列表为空
func (c *StreamConsumer) drainPending(ctx context.Context) error {
	src := c.config.Source
	for ctx.Err() == nil {
		messages, err := rediscommon.ReadPending(ctx, c.redisClient, src.Stream, src.ConsumerGroup, src.ConsumerName, src.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to read pending messages from %s: %w", src.Stream, err)
		}
		if len(messages) == 0 {
			return nil
		}

		c.logger.Info("Reprocessing pending messages",
			zap.String("stream", src.Stream),
			zap.Int("count", len(messages)),
		)
		// 确认失败时停止，避免反复读到同一批
		if _, err := c.handleMessages(ctx, messages); err != nil {
			return err
		}
	}
	return nil
}

// consumeOnce 读取一批新消息，分发后全部确认
func (c *StreamConsumer) consumeOnce(ctx context.Context) (BatchResult, error) {
	src := c.config.Source
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		src.Stream,
		src.ConsumerGroup,
		src.ConsumerName,
		src.BatchSize,
		src.Block,
	)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to read from stream %s: %w", src.Stream, err)
	}
	if len(messages) == 0 {
		return BatchResult{}, nil
	}

	return c.handleMessages(ctx, messages)
}

// handleMessages 分发一批已读取的消息并全部确认
// 单条消息的解析或处理失败只记录日志，同样确认，不会重新投递
// 已读取的批次不受 ctx 取消影响，在 batchGracePeriod 内处理完并确认
func (c *StreamConsumer) handleMessages(ctx context.Context, messages []rediscommon.StreamMessage) (BatchResult, error) {
	src := c.config.Source

	batchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), batchGracePeriod)
	defer cancel()

	events := make([]models.ChangeEvent, 0, len(messages))
	ids := make([]string, 0, len(messages))
	var unparsable int
	for _, msg := range messages {
		ids = append(ids, msg.ID)

		event, err := models.ChangeEventFromStreamValues(msg.ID, msg.Values)
		if err != nil {
			c.logger.Warn("Skipping unparsable stream message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			unparsable++
			continue
		}
		events = append(events, event)
	}

	result := c.dispatcher.HandleBatch(batchCtx, events)
	result.Skipped += unparsable

	if err := rediscommon.Ack(batchCtx, c.redisClient, src.Stream, src.ConsumerGroup, ids...); err != nil {
		return result, fmt.Errorf("failed to ack %d messages: %w", len(ids), err)
	}

	return result, nil
}
