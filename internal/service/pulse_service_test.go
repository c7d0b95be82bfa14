package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"pulse-monitor/internal/client"
	"pulse-monitor/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRestAPI struct{}

func (stubRestAPI) GetRestApi(ctx context.Context, params *apigateway.GetRestApiInput, optFns ...func(*apigateway.Options)) (*apigateway.GetRestApiOutput, error) {
	return &apigateway.GetRestApiOutput{Id: params.RestApiId}, nil
}

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Analyzer.StoreBackend = "redis"
	cfg.Analyzer.AuditBackend = "postgres"
	cfg.Source.Mode = "stream"
	cfg.Range.Enabled = true
	cfg.Range.Discovery = "static"
	cfg.Range.BaseURL = "http://range.local"
	cfg.Range.ServiceID = "pulse-range"
	cfg.Range.RegistryKey = "service:registry"
	cfg.Range.Stage = "Prod"
	cfg.AWS.Region = "eu-west-1"
	return cfg
}

func TestNewRangeDiscoverer(t *testing.T) {
	ctx := context.Background()

	t.Run("static", func(t *testing.T) {
		d, err := newRangeDiscoverer(baseConfig(), nil, nil)
		require.NoError(t, err)
		url, err := d.Discover(ctx)
		require.NoError(t, err)
		assert.Equal(t, "http://range.local", url)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		mr.HSet("service:registry", "pulse-range", "http://10.0.0.5:8081")
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		cfg := baseConfig()
		cfg.Range.Discovery = "redis"
		d, err := newRangeDiscoverer(cfg, rdb, nil)
		require.NoError(t, err)
		url, err := d.Discover(ctx)
		require.NoError(t, err)
		assert.Equal(t, "http://10.0.0.5:8081", url)

		_, err = newRangeDiscoverer(cfg, nil, nil)
		assert.Error(t, err)
	})

	t.Run("apigateway", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Range.Discovery = "apigateway"
		cfg.Range.ServiceID = "abc123"
		d, err := newRangeDiscoverer(cfg, nil, stubRestAPI{})
		require.NoError(t, err)
		url, err := d.Discover(ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://abc123.execute-api.eu-west-1.amazonaws.com/Prod", url)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Range.Discovery = "consul"
		_, err := newRangeDiscoverer(cfg, nil, nil)
		assert.Error(t, err)
	})
}

func TestBackendRequirements(t *testing.T) {
	cfg := baseConfig()
	assert.True(t, needsRedis(cfg))
	assert.False(t, needsAWS(cfg))

	cfg.Analyzer.StoreBackend = "dynamodb"
	cfg.Source.Mode = "mqtt"
	assert.False(t, needsRedis(cfg))
	assert.True(t, needsAWS(cfg))

	cfg.Analyzer.StoreBackend = "redis"
	cfg.Range.Discovery = "apigateway"
	assert.True(t, needsRedis(cfg))
	assert.True(t, needsAWS(cfg))

	cfg.Range.Enabled = false
	cfg.Analyzer.StoreBackend = "dynamodb"
	cfg.Analyzer.AuditBackend = "postgres"
	assert.True(t, needsAWS(cfg))
}

var _ client.RestAPIGetter = stubRestAPI{}

// slowRunner 在 ctx 取消后还需要一段时间完成当前批次
type slowRunner struct {
	finished atomic.Bool
}

func (r *slowRunner) Start(ctx context.Context) error {
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	r.finished.Store(true)
	return nil
}

func newTestService(runner Runner) *PulseService {
	cfg := baseConfig()
	return &PulseService{
		config: cfg,
		logger: zap.NewNop(),
		runner: runner,
		done:   make(chan struct{}),
	}
}

func TestStop_WaitsForRunner(t *testing.T) {
	runner := &slowRunner{}
	s := newTestService(runner)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- s.Start(ctx) }()

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	require.NoError(t, s.Stop(stopCtx))
	assert.True(t, runner.finished.Load())
	assert.NoError(t, <-errChan)
}

func TestStop_TimesOut(t *testing.T) {
	// 从未返回的消费者
	s := newTestService(&slowRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stopCancel()

	err := s.Stop(stopCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
