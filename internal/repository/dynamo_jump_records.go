package repository

import (
	"context"
	"strconv"
	"time"

	"pulse-monitor/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DynamoJumpStore DynamoDB 表 pulse_jump_values
// 属性：patientId(N) PreviousValue(N) CurrentValue(N) timestamp(N) recordId(S) recordedAt(S)
type DynamoJumpStore struct {
	client DynamoDBAPI
	table  string
	logger *zap.Logger
}

// NewDynamoJumpStore 创建 DynamoDB 审计存储
func NewDynamoJumpStore(client DynamoDBAPI, table string, logger *zap.Logger) *DynamoJumpStore {
	return &DynamoJumpStore{
		client: client,
		table:  table,
		logger: logger,
	}
}

// AppendJump 写入一条跳变记录
func (s *DynamoJumpStore) AppendJump(ctx context.Context, record models.JumpRecord) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			models.AttrPatientID: &types.AttributeValueMemberN{Value: record.PatientID},
			"PreviousValue":      &types.AttributeValueMemberN{Value: strconv.Itoa(record.PreviousValue)},
			"CurrentValue":       &types.AttributeValueMemberN{Value: strconv.Itoa(record.CurrentValue)},
			models.AttrTimestamp: &types.AttributeValueMemberN{Value: record.Timestamp},
			"recordId":           &types.AttributeValueMemberS{Value: record.RecordID},
			"recordedAt":         &types.AttributeValueMemberS{Value: record.RecordedAt.UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return &models.ExternalStoreError{Store: s.table, Op: "put", Err: err}
	}

	s.logger.Debug("Appended jump record",
		zap.String("record_id", record.RecordID),
		zap.String("patient_id", record.PatientID),
		zap.String("table", s.table),
	)
	return nil
}
