// Package client 正常脉搏范围服务客户端。
//
// 每次读数先做服务发现，再发一次 GET <endpoint>/range?patientId=<id>，不重试、不缓存。
// 任何失败都只记录 Warn 并返回“无范围”，范围校验是尽力而为的。
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pulse-monitor/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// rangeResponse 范围服务响应体，min/max 必须存在
type rangeResponse struct {
	Min *int `json:"min"`
	Max *int `json:"max"`
}

// RangeClient 范围服务客户端
type RangeClient struct {
	httpClient *resty.Client
	discoverer EndpointDiscoverer
	logger     *zap.Logger
}

// NewRangeClient 创建范围服务客户端
func NewRangeClient(discoverer EndpointDiscoverer, timeout time.Duration, logger *zap.Logger) *RangeClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &RangeClient{
		httpClient: client,
		discoverer: discoverer,
		logger:     logger,
	}
}

// GetNormalRange 获取病人正常范围；失败时返回 (nil, false) 并记录 Warn
func (c *RangeClient) GetNormalRange(ctx context.Context, patientID string) (*models.NormalRange, bool) {
	r, err := c.Lookup(ctx, patientID)
	if err != nil {
		c.logger.Warn("Failed to retrieve normal range",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return nil, false
	}
	return r, true
}

// Lookup 获取病人正常范围，错误类型为 *models.RangeLookupError
func (c *RangeClient) Lookup(ctx context.Context, patientID string) (*models.NormalRange, error) {
	endpoint, err := c.discoverer.Discover(ctx)
	if err != nil {
		return nil, &models.RangeLookupError{Stage: "discovery", Err: err}
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("patientId", patientID).
		Get(endpoint + "/range")
	if err != nil {
		return nil, &models.RangeLookupError{Stage: "request", Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, &models.RangeLookupError{Stage: "status", StatusCode: resp.StatusCode()}
	}

	r, err := parseRange(resp.Body())
	if err != nil {
		return nil, &models.RangeLookupError{Stage: "decode", Err: err}
	}

	c.logger.Debug("Retrieved normal range",
		zap.String("patient_id", patientID),
		zap.Int("min", r.Min),
		zap.Int("max", r.Max),
	)
	return r, nil
}

func parseRange(body []byte) (*models.NormalRange, error) {
	var payload rangeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse response body: %w", err)
	}
	if payload.Min == nil || payload.Max == nil {
		return nil, fmt.Errorf("response body missing min or max")
	}
	if *payload.Min > *payload.Max {
		return nil, fmt.Errorf("invalid range: min %d > max %d", *payload.Min, *payload.Max)
	}
	return &models.NormalRange{Min: *payload.Min, Max: *payload.Max}, nil
}
