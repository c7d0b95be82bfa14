package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EventNameInsert 唯一会被处理的事件类型
const EventNameInsert = "INSERT"

// 属性名（与上游变更事件一致）
const (
	AttrPatientID = "patientId"
	AttrValue     = "value"
	AttrTimestamp = "timestamp"
)

// ChangeEvent 上游变更事件
// NewImage 为 nil 表示事件不携带新镜像（例如 REMOVE）
type ChangeEvent struct {
	EventID   string            `json:"event_id,omitempty"`
	EventName string            `json:"event_name"`
	NewImage  map[string]string `json:"new_image,omitempty"`
}

// UnmarshalJSON 兼容数字和字符串两种属性值写法
func (e *ChangeEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		EventID   string                     `json:"event_id"`
		EventName string                     `json:"event_name"`
		NewImage  map[string]json.RawMessage `json:"new_image"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.EventID = raw.EventID
	e.EventName = raw.EventName
	e.NewImage = nil
	if raw.NewImage == nil {
		return nil
	}

	e.NewImage = make(map[string]string, len(raw.NewImage))
	for k, v := range raw.NewImage {
		s, err := attributeString(v)
		if err != nil {
			return fmt.Errorf("new_image.%s: %w", k, err)
		}
		e.NewImage[k] = s
	}
	return nil
}

// attributeString 把 JSON 标量转为字符串；null 转为空串
func attributeString(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	if string(v) == "null" {
		return "", nil
	}
	return "", fmt.Errorf("unsupported attribute value %s", string(v))
}

// ParseChangeEvents 解析单个事件或事件数组（JSON）
func ParseChangeEvents(payload []byte) ([]ChangeEvent, error) {
	var batch []ChangeEvent
	if err := json.Unmarshal(payload, &batch); err == nil {
		return batch, nil
	}

	var single ChangeEvent
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, fmt.Errorf("invalid change event payload: %w", err)
	}
	return []ChangeEvent{single}, nil
}

// ChangeEventFromStreamValues 从 Redis Streams 消息字段构建事件
// 优先解析 data 字段（JSON）；否则读取平铺字段 event_name / patientId / value / timestamp
func ChangeEventFromStreamValues(id string, values map[string]interface{}) (ChangeEvent, error) {
	if dataStr, ok := values["data"].(string); ok {
		var event ChangeEvent
		if err := json.Unmarshal([]byte(dataStr), &event); err != nil {
			return ChangeEvent{}, fmt.Errorf("invalid data field: %w", err)
		}
		if event.EventID == "" {
			event.EventID = id
		}
		return event, nil
	}

	event := ChangeEvent{EventID: id}
	if name, ok := values["event_name"]; ok {
		event.EventName = toString(name)
	}
	for _, attr := range []string{AttrPatientID, AttrValue, AttrTimestamp} {
		v, ok := values[attr]
		if !ok {
			continue
		}
		if event.NewImage == nil {
			event.NewImage = make(map[string]string, 3)
		}
		event.NewImage[attr] = toString(v)
	}
	if event.EventName == "" {
		return ChangeEvent{}, fmt.Errorf("message %s: missing event_name", id)
	}
	return event, nil
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
