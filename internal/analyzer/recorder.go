package analyzer

import (
	"context"
	"time"

	"pulse-monitor/internal/models"
	"pulse-monitor/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder 跳变记录器：写审计存储并输出 Info 日志
type Recorder struct {
	store  repository.JumpStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder 创建跳变记录器
func NewRecorder(store repository.JumpStore, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// RecordJump 追加一条跳变记录；写入失败原样返回
func (r *Recorder) RecordJump(ctx context.Context, patientID string, previousValue, currentValue int, timestamp string) error {
	record := models.JumpRecord{
		RecordID:      uuid.New().String(),
		PatientID:     patientID,
		PreviousValue: previousValue,
		CurrentValue:  currentValue,
		Timestamp:     timestamp,
		RecordedAt:    r.now(),
	}

	if err := r.store.AppendJump(ctx, record); err != nil {
		return err
	}

	r.logger.Info("Jump recorded",
		zap.String("patient_id", patientID),
		zap.Int("previous_value", previousValue),
		zap.Int("current_value", currentValue),
		zap.String("timestamp", timestamp),
	)
	return nil
}
