package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"pulse-monitor/internal/models"

	"go.uber.org/zap"
)

// LastValueStore 每个病人最近一次脉搏值
type LastValueStore interface {
	// GetLastValue found=false 表示没有基线（区别于基线为 0）
	GetLastValue(ctx context.Context, patientID string) (value int, found bool, err error)
	// SetLastValue 无条件覆盖
	SetLastValue(ctx context.Context, patientID string, value int) error
}

// KVLastValueStore 基于 KVStore 的 last-value 存储，键为 "<table>:<patientId>"
type KVLastValueStore struct {
	kv     KVStore
	table  string
	logger *zap.Logger
}

// NewKVLastValueStore 创建 last-value 存储
func NewKVLastValueStore(kv KVStore, table string, logger *zap.Logger) *KVLastValueStore {
	return &KVLastValueStore{
		kv:     kv,
		table:  table,
		logger: logger,
	}
}

func (s *KVLastValueStore) key(patientID string) string {
	return fmt.Sprintf("%s:%s", s.table, patientID)
}

// GetLastValue 读取最近一次值
func (s *KVLastValueStore) GetLastValue(ctx context.Context, patientID string) (int, bool, error) {
	raw, err := s.kv.Get(ctx, s.key(patientID))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return 0, false, nil
		}
		return 0, false, &models.ExternalStoreError{Store: s.table, Op: "get", Err: err}
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, &models.ExternalStoreError{
			Store: s.table,
			Op:    "get",
			Err:   fmt.Errorf("stored value %q is not an integer: %w", raw, err),
		}
	}
	return value, true, nil
}

// SetLastValue 写入最近一次值（last-writer-wins）
func (s *KVLastValueStore) SetLastValue(ctx context.Context, patientID string, value int) error {
	if err := s.kv.Set(ctx, s.key(patientID), strconv.Itoa(value)); err != nil {
		return &models.ExternalStoreError{Store: s.table, Op: "put", Err: err}
	}

	s.logger.Debug("Saved last pulse value",
		zap.String("patient_id", patientID),
		zap.Int("value", value),
	)
	return nil
}
