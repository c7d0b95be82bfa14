package consumer

import (
	"context"
	"fmt"

	"pulse-monitor/internal/analyzer"
	"pulse-monitor/internal/models"

	"go.uber.org/zap"
)

// ReadingProcessor 单条读数处理
type ReadingProcessor interface {
	ProcessReading(ctx context.Context, reading models.PulseReading) (analyzer.Outcome, error)
}

// BatchResult 一批事件的处理统计
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
	Jumps     int
}

// Dispatcher 批量变更事件分发：过滤事件类型，逐条解析并处理，单条失败不影响后续
type Dispatcher struct {
	processor ReadingProcessor
	logger    *zap.Logger
}

// NewDispatcher 创建分发器
func NewDispatcher(processor ReadingProcessor, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		processor: processor,
		logger:    logger,
	}
}

// HandleBatch 处理一批事件，不返回错误；失败只体现在日志和统计中
func (d *Dispatcher) HandleBatch(ctx context.Context, events []models.ChangeEvent) BatchResult {
	var result BatchResult

	for _, event := range events {
		if event.NewImage == nil {
			d.logger.Warn("No new image found",
				zap.String("event_id", event.EventID),
				zap.String("event_name", event.EventName),
			)
			result.Skipped++
			continue
		}

		if event.EventName != models.EventNameInsert {
			err := &models.UnexpectedEventTypeError{EventName: event.EventName}
			d.logger.Warn("Unexpected event",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			result.Skipped++
			continue
		}

		reading, err := models.ExtractPulseReading(event.NewImage)
		if err != nil {
			d.logger.Warn("Skipping malformed record",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			result.Skipped++
			continue
		}

		outcome, err := d.process(ctx, reading)
		if err != nil {
			d.logger.Error("Failed to process pulse reading",
				zap.String("event_id", event.EventID),
				zap.String("patient_id", reading.PatientID),
				zap.Int("value", reading.Value),
				zap.Error(err),
			)
			// 继续处理下一条，不中断
			result.Failed++
			continue
		}

		result.Processed++
		if outcome.Jump {
			result.Jumps++
		}
	}

	d.logger.Debug("Batch handled",
		zap.Int("events", len(events)),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("jumps", result.Jumps),
	)

	return result
}

// process 调用处理器，panic 转为该条记录的错误
func (d *Dispatcher) process(ctx context.Context, reading models.PulseReading) (outcome analyzer.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing reading: %v", r)
		}
	}()
	return d.processor.ProcessReading(ctx, reading)
}
