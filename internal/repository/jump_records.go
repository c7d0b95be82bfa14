package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pulse-monitor/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// JumpStore 跳变审计存储，只追加
type JumpStore interface {
	AppendJump(ctx context.Context, record models.JumpRecord) error
}

// PostgresJumpStore 跳变审计表（PostgreSQL）
type PostgresJumpStore struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// NewPostgresJumpStore 创建审计存储
func NewPostgresJumpStore(db *sql.DB, table string, logger *zap.Logger) *PostgresJumpStore {
	return &PostgresJumpStore{
		db:     db,
		table:  table,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *PostgresJumpStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			record_id      UUID PRIMARY KEY,
			patient_id     TEXT NOT NULL,
			previous_value INTEGER NOT NULL,
			current_value  INTEGER NOT NULL,
			timestamp      TEXT NOT NULL,
			recorded_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, pq.QuoteIdentifier(r.table))

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return &models.ExternalStoreError{Store: r.table, Op: "create", Err: err}
	}
	return nil
}

// AppendJump 插入一条跳变记录
func (r *PostgresJumpStore) AppendJump(ctx context.Context, record models.JumpRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			record_id,
			patient_id,
			previous_value,
			current_value,
			timestamp,
			recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`, pq.QuoteIdentifier(r.table))

	_, err := r.db.ExecContext(ctx, query,
		record.RecordID,
		record.PatientID,
		record.PreviousValue,
		record.CurrentValue,
		record.Timestamp,
		record.RecordedAt,
	)
	if err != nil {
		return &models.ExternalStoreError{Store: r.table, Op: "put", Err: err}
	}

	r.logger.Debug("Appended jump record",
		zap.String("record_id", record.RecordID),
		zap.String("patient_id", record.PatientID),
		zap.String("table", r.table),
	)
	return nil
}

// ListJumps 按时间倒序查询某病人的跳变记录
func (r *PostgresJumpStore) ListJumps(ctx context.Context, patientID string, limit int) ([]models.JumpRecord, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT record_id, patient_id, previous_value, current_value, timestamp, recorded_at
		FROM %s
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, pq.QuoteIdentifier(r.table))

	rows, err := r.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, &models.ExternalStoreError{Store: r.table, Op: "query", Err: err}
	}
	defer rows.Close()

	var records []models.JumpRecord
	for rows.Next() {
		var rec models.JumpRecord
		if err := rows.Scan(
			&rec.RecordID,
			&rec.PatientID,
			&rec.PreviousValue,
			&rec.CurrentValue,
			&rec.Timestamp,
			&rec.RecordedAt,
		); err != nil {
			return nil, &models.ExternalStoreError{Store: r.table, Op: "scan", Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.ExternalStoreError{Store: r.table, Op: "query", Err: err}
	}
	return records, nil
}
