package consumer

import (
	"context"
	"fmt"
	"sync"

	mqttcommon "pulse-monitor/common/mqtt"
	"pulse-monitor/internal/config"
	"pulse-monitor/internal/models"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口（*mqttcommon.Client 满足该接口）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer MQTT 消费者：每条消息（单个事件或事件数组）作为一批交给 Dispatcher
// paho 回调可能并发，handleMessage 加锁保证同一进程内串行处理
type MQTTConsumer struct {
	config     *config.Config
	client     Subscriber
	dispatcher *Dispatcher
	logger     *zap.Logger

	mu       sync.Mutex
	ctx      context.Context
	stopOnce sync.Once
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	client Subscriber,
	dispatcher *Dispatcher,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:     cfg,
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
		ctx:        context.Background(),
	}
}

// Start 订阅主题，阻塞直到 ctx 取消
// 返回前取消订阅并等待正在处理的消息完成
func (c *MQTTConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	topic := c.config.Source.Topic
	if err := c.client.Subscribe(topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to pulse topic: %w", err)
	}

	c.logger.Info("MQTT consumer started", zap.String("topic", topic))

	<-ctx.Done()
	c.Stop()

	// 等待正在处理的消息
	c.mu.Lock()
	defer c.mu.Unlock()
	return nil
}

// Stop 取消订阅，可重复调用
func (c *MQTTConsumer) Stop() {
	c.stopOnce.Do(func() {
		if err := c.client.Unsubscribe(c.config.Source.Topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
		c.logger.Info("MQTT consumer stopped")
	})
}

// handleMessage 处理MQTT消息
// 已收到的消息不受 ctx 取消影响，在 batchGracePeriod 内处理完
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	events, err := models.ParseChangeEvents(payload)
	if err != nil {
		return fmt.Errorf("topic %s: %w", topic, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	batchCtx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), batchGracePeriod)
	defer cancel()

	c.dispatcher.HandleBatch(batchCtx, events)
	return nil
}
