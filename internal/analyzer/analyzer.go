package analyzer

import (
	"context"
	"fmt"

	"pulse-monitor/internal/config"
	"pulse-monitor/internal/models"
	"pulse-monitor/internal/repository"

	"go.uber.org/zap"
)

// RangeProvider 正常范围来源；ok=false 表示范围不可用，跳过校验
type RangeProvider interface {
	GetNormalRange(ctx context.Context, patientID string) (r *models.NormalRange, ok bool)
}

// JumpRecorder 跳变记录
type JumpRecorder interface {
	RecordJump(ctx context.Context, patientID string, previousValue, currentValue int, timestamp string) error
}

// Outcome 单条读数的处理结果
type Outcome struct {
	Jump         bool
	RangeChecked bool
	OutOfRange   bool
}

// Analyzer 单条读数处理流程
type Analyzer struct {
	config    *config.Config
	lastValue repository.LastValueStore
	ranges    RangeProvider
	recorder  JumpRecorder
	logger    *zap.Logger
}

// NewAnalyzer 创建分析器；ranges 为 nil 或 cfg.Range.Enabled=false 时不做范围校验
func NewAnalyzer(
	cfg *config.Config,
	lastValue repository.LastValueStore,
	ranges RangeProvider,
	recorder JumpRecorder,
	logger *zap.Logger,
) *Analyzer {
	return &Analyzer{
		config:    cfg,
		lastValue: lastValue,
		ranges:    ranges,
		recorder:  recorder,
		logger:    logger,
	}
}

// ProcessReading 处理一条读数
// 1. 读旧基线 2. 范围校验（可选）3. 用旧基线判断跳变 4. 记录跳变 5. 覆盖为当前值
func (a *Analyzer) ProcessReading(ctx context.Context, reading models.PulseReading) (Outcome, error) {
	var outcome Outcome

	a.logger.Debug("Processing pulse reading",
		zap.String("patient_id", reading.PatientID),
		zap.Int("value", reading.Value),
	)

	lastValue, hasBaseline, err := a.lastValue.GetLastValue(ctx, reading.PatientID)
	if err != nil {
		return outcome, fmt.Errorf("failed to get last pulse value: %w", err)
	}

	if a.config.Range.Enabled && a.ranges != nil {
		if r, ok := a.ranges.GetNormalRange(ctx, reading.PatientID); ok {
			outcome.RangeChecked = true
			if IsOutOfRange(reading.Value, r) {
				outcome.OutOfRange = true
				a.logger.Warn("Abnormal pulse value detected",
					zap.String("patient_id", reading.PatientID),
					zap.Int("value", reading.Value),
					zap.Int("min", r.Min),
					zap.Int("max", r.Max),
				)
			}
		}
	}

	if IsJump(reading.Value, lastValue, hasBaseline, a.config.Analyzer.Factor) {
		outcome.Jump = true
		if err := a.recorder.RecordJump(ctx, reading.PatientID, lastValue, reading.Value, reading.TimestampRaw); err != nil {
			return outcome, fmt.Errorf("failed to record jump: %w", err)
		}
	}

	if err := a.lastValue.SetLastValue(ctx, reading.PatientID, reading.Value); err != nil {
		return outcome, fmt.Errorf("failed to save last pulse value: %w", err)
	}

	return outcome, nil
}
