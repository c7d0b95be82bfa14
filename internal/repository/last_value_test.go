package repository

import (
	"context"
	"errors"
	"testing"

	"pulse-monitor/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKVLastValueStore_AbsentIsNotZero(t *testing.T) {
	kv := newFakeKVStore()
	store := NewKVLastValueStore(kv, "pulse_last_value", zap.NewNop())
	ctx := context.Background()

	_, found, err := store.GetLastValue(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetLastValue(ctx, "1", 0))

	value, found, err := store.GetLastValue(ctx, "1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, value)
}

func TestKVLastValueStore_Overwrites(t *testing.T) {
	kv := newFakeKVStore()
	store := NewKVLastValueStore(kv, "pulse_last_value", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.SetLastValue(ctx, "42", 70))
	require.NoError(t, store.SetLastValue(ctx, "42", 90))

	assert.Equal(t, "90", kv.data["pulse_last_value:42"])

	value, found, err := store.GetLastValue(ctx, "42")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 90, value)
}

func TestKVLastValueStore_Errors(t *testing.T) {
	ctx := context.Background()

	kv := newFakeKVStore()
	kv.getErr = errors.New("connection refused")
	store := NewKVLastValueStore(kv, "pulse_last_value", zap.NewNop())

	_, _, err := store.GetLastValue(ctx, "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExternalStore))

	kv.getErr = nil
	kv.setErr = errors.New("READONLY")
	err = store.SetLastValue(ctx, "1", 80)
	require.Error(t, err)

	var storeErr *models.ExternalStoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "put", storeErr.Op)
	assert.Equal(t, "pulse_last_value", storeErr.Store)
}

func TestKVLastValueStore_CorruptValue(t *testing.T) {
	kv := newFakeKVStore()
	kv.data["pulse_last_value:1"] = "seventy"
	store := NewKVLastValueStore(kv, "pulse_last_value", zap.NewNop())

	_, _, err := store.GetLastValue(context.Background(), "1")
	assert.True(t, errors.Is(err, models.ErrExternalStore))
}

func TestDynamoLastValueStore_RoundTrip(t *testing.T) {
	db := newFakeDynamoDB()
	store := NewDynamoLastValueStore(db, "pulse_last_value", zap.NewNop())
	ctx := context.Background()

	_, found, err := store.GetLastValue(ctx, "5")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetLastValue(ctx, "5", 72))
	require.Len(t, db.puts, 1)
	assert.Equal(t, "pulse_last_value", *db.puts[0].TableName)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "72"}, db.puts[0].Item["value"])

	value, found, err := store.GetLastValue(ctx, "5")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 72, value)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "5"}, db.lastGet.Key["patientId"])
}

func TestDynamoLastValueStore_ItemWithoutValue(t *testing.T) {
	db := newFakeDynamoDB()
	db.items["pulse_last_value/5"] = map[string]types.AttributeValue{
		"patientId": &types.AttributeValueMemberN{Value: "5"},
	}
	store := NewDynamoLastValueStore(db, "pulse_last_value", zap.NewNop())

	_, found, err := store.GetLastValue(context.Background(), "5")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDynamoLastValueStore_WrongAttributeType(t *testing.T) {
	db := newFakeDynamoDB()
	db.items["pulse_last_value/5"] = map[string]types.AttributeValue{
		"patientId": &types.AttributeValueMemberN{Value: "5"},
		"value":     &types.AttributeValueMemberS{Value: "72"},
	}
	store := NewDynamoLastValueStore(db, "pulse_last_value", zap.NewNop())

	_, _, err := store.GetLastValue(context.Background(), "5")
	assert.True(t, errors.Is(err, models.ErrExternalStore))
}

func TestDynamoLastValueStore_Errors(t *testing.T) {
	db := newFakeDynamoDB()
	db.getErr = errors.New("ProvisionedThroughputExceededException")
	db.putErr = errors.New("ResourceNotFoundException")
	store := NewDynamoLastValueStore(db, "pulse_last_value", zap.NewNop())
	ctx := context.Background()

	_, _, err := store.GetLastValue(ctx, "5")
	assert.True(t, errors.Is(err, models.ErrExternalStore))

	err = store.SetLastValue(ctx, "5", 60)
	assert.True(t, errors.Is(err, models.ErrExternalStore))
}

func TestLastValueItem_RecordShape(t *testing.T) {
	item := lastValueItem(models.LastValueRecord{PatientID: "9", Value: 0})
	assert.Equal(t, &types.AttributeValueMemberN{Value: "9"}, item["patientId"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "0"}, item["value"])

	// 存储的 0 是有效基线，不等同于缺失
	rec, found, err := lastValueFromItem("9", item)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.LastValueRecord{PatientID: "9", Value: 0}, rec)
}
