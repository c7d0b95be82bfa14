package models

import (
	"strconv"
	"strings"
	"time"
)

// PulseReading 一次脉搏读数（由 INSERT 事件的新镜像解析，构造后不可变）
type PulseReading struct {
	PatientID    string
	Value        int
	TimestampRaw string // 原样保留，不解释为时间
}

// LastValueRecord 每个病人最近一次读数
type LastValueRecord struct {
	PatientID string `json:"patientId"`
	Value     int    `json:"value"`
}

// NormalRange 病人正常脉搏范围（闭区间），每次读数实时获取，不缓存
type NormalRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// JumpRecord 跳变审计记录，只追加
type JumpRecord struct {
	RecordID      string    `json:"record_id"`
	PatientID     string    `json:"patientId"`
	PreviousValue int       `json:"PreviousValue"`
	CurrentValue  int       `json:"CurrentValue"`
	Timestamp     string    `json:"timestamp"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// ExtractPulseReading 从新镜像中解析读数
// patientId / value / timestamp 都必须是数字字符串，value 必须是非负整数
func ExtractPulseReading(image map[string]string) (PulseReading, error) {
	patientID, err := numericAttr(image, AttrPatientID)
	if err != nil {
		return PulseReading{}, err
	}

	rawValue, err := numericAttr(image, AttrValue)
	if err != nil {
		return PulseReading{}, err
	}
	value, err := strconv.Atoi(rawValue)
	if err != nil {
		return PulseReading{}, &MalformedRecordError{Field: AttrValue, Value: rawValue, Reason: "is not an integer"}
	}
	if value < 0 {
		return PulseReading{}, &MalformedRecordError{Field: AttrValue, Value: rawValue, Reason: "is negative"}
	}

	timestamp, err := numericAttr(image, AttrTimestamp)
	if err != nil {
		return PulseReading{}, err
	}

	return PulseReading{
		PatientID:    patientID,
		Value:        value,
		TimestampRaw: timestamp,
	}, nil
}

// numericAttr 取出属性并校验为数字字符串，数值语义由调用方决定
func numericAttr(image map[string]string, name string) (string, error) {
	raw, ok := image[name]
	if !ok {
		return "", &MalformedRecordError{Field: name, Reason: "is missing"}
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &MalformedRecordError{Field: name, Reason: "is empty"}
	}
	if !isNumeric(s) {
		return "", &MalformedRecordError{Field: name, Value: raw, Reason: "is not numeric"}
	}
	return s, nil
}

// isNumeric 十进制数字串：可选负号、数字、至多一个小数点
func isNumeric(s string) bool {
	s = strings.TrimPrefix(s, "-")
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
