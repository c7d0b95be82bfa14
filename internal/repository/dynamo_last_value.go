package repository

import (
	"context"
	"fmt"
	"strconv"

	"pulse-monitor/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DynamoDBAPI 用到的 DynamoDB 操作（*dynamodb.Client 满足该接口）
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoLastValueStore DynamoDB 表 pulse_last_value：分区键 patientId(N)，属性 value(N)
type DynamoLastValueStore struct {
	client DynamoDBAPI
	table  string
	logger *zap.Logger
}

// NewDynamoLastValueStore 创建 DynamoDB last-value 存储
func NewDynamoLastValueStore(client DynamoDBAPI, table string, logger *zap.Logger) *DynamoLastValueStore {
	return &DynamoLastValueStore{
		client: client,
		table:  table,
		logger: logger,
	}
}

// GetLastValue 读取最近一次值
func (s *DynamoLastValueStore) GetLastValue(ctx context.Context, patientID string) (int, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			models.AttrPatientID: &types.AttributeValueMemberN{Value: patientID},
		},
	})
	if err != nil {
		return 0, false, &models.ExternalStoreError{Store: s.table, Op: "get", Err: err}
	}
	if out == nil || len(out.Item) == 0 {
		return 0, false, nil
	}

	rec, ok, err := lastValueFromItem(patientID, out.Item)
	if err != nil {
		return 0, false, &models.ExternalStoreError{Store: s.table, Op: "get", Err: err}
	}
	return rec.Value, ok, nil
}

// SetLastValue 写入最近一次值（PutItem 整体覆盖）
func (s *DynamoLastValueStore) SetLastValue(ctx context.Context, patientID string, value int) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      lastValueItem(models.LastValueRecord{PatientID: patientID, Value: value}),
	})
	if err != nil {
		return &models.ExternalStoreError{Store: s.table, Op: "put", Err: err}
	}

	s.logger.Debug("Saved last pulse value",
		zap.String("patient_id", patientID),
		zap.Int("value", value),
		zap.String("table", s.table),
	)
	return nil
}

func lastValueItem(rec models.LastValueRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		models.AttrPatientID: &types.AttributeValueMemberN{Value: rec.PatientID},
		models.AttrValue:     &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Value)},
	}
}

// lastValueFromItem 解析表项；缺少 value 属性视为无基线
func lastValueFromItem(patientID string, item map[string]types.AttributeValue) (models.LastValueRecord, bool, error) {
	rec := models.LastValueRecord{PatientID: patientID}

	attr, ok := item[models.AttrValue]
	if !ok {
		return rec, false, nil
	}
	n, ok := attr.(*types.AttributeValueMemberN)
	if !ok {
		return rec, false, fmt.Errorf("attribute %s is %T, want number", models.AttrValue, attr)
	}
	value, err := strconv.Atoi(n.Value)
	if err != nil {
		return rec, false, err
	}
	rec.Value = value
	return rec, true, nil
}
