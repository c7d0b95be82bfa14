package repository

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeKVStore 仅用于单元测试（内存 KV）
type fakeKVStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string]string)}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

// fakeDynamoDB 记录 PutItem，按 GetItem 的键返回预置 item
type fakeDynamoDB struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue // key: table/patientId
	puts    []*dynamodb.PutItemInput
	getErr  error
	putErr  error
	lastGet *dynamodb.GetItemInput
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(table string, key map[string]types.AttributeValue) string {
	if n, ok := key["patientId"].(*types.AttributeValueMemberN); ok {
		return table + "/" + n.Value
	}
	return table + "/"
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastGet = params
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(*params.TableName, params.Key)]}, nil
}

func (f *fakeDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, params)
	f.items[itemKey(*params.TableName, params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}
