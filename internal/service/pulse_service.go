package service

import (
	"context"
	"database/sql"
	"fmt"

	awscommon "pulse-monitor/common/aws"
	"pulse-monitor/common/database"
	mqttcommon "pulse-monitor/common/mqtt"
	rediscommon "pulse-monitor/common/redis"
	"pulse-monitor/internal/analyzer"
	"pulse-monitor/internal/client"
	"pulse-monitor/internal/config"
	"pulse-monitor/internal/consumer"
	"pulse-monitor/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Runner 事件来源消费者
type Runner interface {
	Start(ctx context.Context) error
}

// PulseService 脉搏分析服务
type PulseService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	analyzer    *analyzer.Analyzer
	dispatcher  *consumer.Dispatcher
	runner      Runner
	mqttRunner  *consumer.MQTTConsumer

	// done 在 Start 返回后关闭
	done chan struct{}
}

// NewPulseService 创建脉搏分析服务，按配置选择存储后端、范围服务发现方式和事件来源
func NewPulseService(cfg *config.Config, logger *zap.Logger) (*PulseService, error) {
	ctx := context.Background()
	s := &PulseService{
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}

	// 初始化Redis
	if needsRedis(cfg) {
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, s.redisClient); err != nil {
			s.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	// 初始化AWS
	var awsCfg aws.Config
	if needsAWS(cfg) {
		var err error
		awsCfg, err = awscommon.LoadConfig(ctx, &cfg.AWS)
		if err != nil {
			s.close()
			return nil, err
		}
	}

	// 创建Repository
	var lastValue repository.LastValueStore
	switch cfg.Analyzer.StoreBackend {
	case "dynamodb":
		lastValue = repository.NewDynamoLastValueStore(
			awscommon.NewDynamoDBClient(awsCfg, &cfg.AWS), cfg.Analyzer.Tables.LastValue, logger)
	default:
		lastValue = repository.NewKVLastValueStore(
			repository.NewRedisKVStore(s.redisClient), cfg.Analyzer.Tables.LastValue, logger)
	}

	var jumps repository.JumpStore
	switch cfg.Analyzer.AuditBackend {
	case "dynamodb":
		jumps = repository.NewDynamoJumpStore(
			awscommon.NewDynamoDBClient(awsCfg, &cfg.AWS), cfg.Analyzer.Tables.Jumps, logger)
	default:
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db

		pgJumps := repository.NewPostgresJumpStore(db, cfg.Analyzer.Tables.Jumps, logger)
		if err := pgJumps.EnsureSchema(ctx); err != nil {
			s.close()
			return nil, err
		}
		jumps = pgJumps
	}

	// 范围服务
	var ranges analyzer.RangeProvider
	if cfg.Range.Enabled {
		var apiGateway client.RestAPIGetter
		if cfg.Range.Discovery == "apigateway" {
			apiGateway = awscommon.NewAPIGatewayClient(awsCfg)
		}
		discoverer, err := newRangeDiscoverer(cfg, s.redisClient, apiGateway)
		if err != nil {
			s.close()
			return nil, err
		}
		ranges = client.NewRangeClient(discoverer, cfg.Range.Timeout, logger)
	}

	s.analyzer = analyzer.NewAnalyzer(cfg, lastValue, ranges, analyzer.NewRecorder(jumps, logger), logger)
	s.dispatcher = consumer.NewDispatcher(s.analyzer, logger)

	// 创建Consumer
	switch cfg.Source.Mode {
	case "mqtt":
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.close()
			return nil, err
		}
		s.mqttClient = mqttClient
		s.mqttRunner = consumer.NewMQTTConsumer(cfg, mqttClient, s.dispatcher, logger)
		s.runner = s.mqttRunner
	default:
		s.runner = consumer.NewStreamConsumer(cfg, s.redisClient, s.dispatcher, logger)
	}

	return s, nil
}

// Start 启动服务，阻塞直到 ctx 取消且当前批次处理完
func (s *PulseService) Start(ctx context.Context) error {
	defer close(s.done)

	s.logger.Info("Starting pulse monitor service components",
		zap.String("source", s.config.Source.Mode),
		zap.String("store_backend", s.config.Analyzer.StoreBackend),
		zap.String("audit_backend", s.config.Analyzer.AuditBackend),
		zap.Bool("range_enabled", s.config.Range.Enabled),
	)

	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s consumer: %w", s.config.Source.Mode, err)
	}
	return nil
}

// Stop 停止服务：调用前应先取消 Start 的 ctx
// 等待 Start 返回（最长到 ctx 截止）后再关闭连接
func (s *PulseService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping pulse monitor service")

	var waitErr error
	select {
	case <-s.done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("consumer did not stop in time: %w", ctx.Err())
		s.logger.Warn("Consumer still running, closing connections", zap.Error(ctx.Err()))
	}

	if s.mqttRunner != nil {
		s.mqttRunner.Stop()
	}
	s.close()

	if waitErr != nil {
		return waitErr
	}

	s.logger.Info("Pulse monitor service stopped")
	return nil
}

func (s *PulseService) close() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭Redis
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Error closing Redis client", zap.Error(err))
		}
	}

	// 关闭数据库
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}
}

// newRangeDiscoverer 按 cfg.Range.Discovery 选择发现器
func newRangeDiscoverer(cfg *config.Config, redisClient *redis.Client, apiGateway client.RestAPIGetter) (client.EndpointDiscoverer, error) {
	switch cfg.Range.Discovery {
	case "static":
		return client.StaticDiscoverer{BaseURL: cfg.Range.BaseURL}, nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("range discovery redis: redis client not initialized")
		}
		return client.NewRedisRegistryDiscoverer(redisClient, cfg.Range.RegistryKey, cfg.Range.ServiceID), nil
	case "apigateway":
		if apiGateway == nil {
			return nil, fmt.Errorf("range discovery apigateway: client not initialized")
		}
		return client.NewAPIGatewayDiscoverer(apiGateway, cfg.Range.ServiceID, cfg.AWS.Region, cfg.Range.Stage), nil
	default:
		return nil, fmt.Errorf("unknown range discovery: %s", cfg.Range.Discovery)
	}
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Analyzer.StoreBackend == "redis" ||
		cfg.Source.Mode == "stream" ||
		(cfg.Range.Enabled && cfg.Range.Discovery == "redis")
}

func needsAWS(cfg *config.Config) bool {
	return cfg.Analyzer.StoreBackend == "dynamodb" ||
		cfg.Analyzer.AuditBackend == "dynamodb" ||
		(cfg.Range.Enabled && cfg.Range.Discovery == "apigateway")
}
