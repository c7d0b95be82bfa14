package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord 输入记录缺字段或字段非数字
	ErrMalformedRecord = errors.New("malformed record")
	// ErrExternalStore last-value / 审计存储不可用或出错
	ErrExternalStore = errors.New("external store error")
	// ErrRangeLookup 正常范围查询失败（服务发现、HTTP、响应体）
	ErrRangeLookup = errors.New("range lookup failed")
	// ErrUnexpectedEventType 非 INSERT 事件
	ErrUnexpectedEventType = errors.New("unexpected event type")
)

// MalformedRecordError 记录解析错误
type MalformedRecordError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed record: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed record: %s %s (got %q)", e.Field, e.Reason, e.Value)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// ExternalStoreError 外部存储错误
type ExternalStoreError struct {
	Store string // 逻辑表名，如 pulse_last_value
	Op    string // get / put
	Err   error
}

func (e *ExternalStoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Store, e.Op, e.Err)
}

func (e *ExternalStoreError) Unwrap() error { return e.Err }

func (e *ExternalStoreError) Is(target error) bool { return target == ErrExternalStore }

// RangeLookupError 正常范围查询错误，调用方只记录日志，不中断处理
type RangeLookupError struct {
	Stage      string // discovery / request / status / decode
	StatusCode int
	Err        error
}

func (e *RangeLookupError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("range lookup %s: http status %d", e.Stage, e.StatusCode)
	}
	return fmt.Sprintf("range lookup %s: %v", e.Stage, e.Err)
}

func (e *RangeLookupError) Unwrap() error { return e.Err }

func (e *RangeLookupError) Is(target error) bool { return target == ErrRangeLookup }

// UnexpectedEventTypeError 非 INSERT 事件，记录后跳过
type UnexpectedEventTypeError struct {
	EventName string
}

func (e *UnexpectedEventTypeError) Error() string {
	return fmt.Sprintf("unexpected event: %s", e.EventName)
}

func (e *UnexpectedEventTypeError) Is(target error) bool { return target == ErrUnexpectedEventType }
