package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pulse-monitor/common/config"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFactor 默认跳变阈值（相对变化 > 20% 视为跳变）
const DefaultFactor = 0.2

// Config 脉搏分析服务配置
// Load 之后只读，按指针传给各组件
type Config struct {
	Database config.DatabaseConfig `yaml:"database"`
	Redis    config.RedisConfig    `yaml:"redis"`
	MQTT     config.MQTTConfig     `yaml:"mqtt"`
	AWS      config.AWSConfig      `yaml:"aws"`

	Analyzer struct {
		// Factor 跳变阈值：|current-last|/last > Factor
		Factor float64 `yaml:"factor" validate:"gte=0"`
		// StoreBackend last-value 存储：redis / dynamodb
		StoreBackend string `yaml:"store_backend" validate:"oneof=redis dynamodb"`
		// AuditBackend 跳变审计存储：postgres / dynamodb
		AuditBackend string `yaml:"audit_backend" validate:"oneof=postgres dynamodb"`
		// Tables 逻辑表名（Redis 键前缀 / DynamoDB 表名 / Postgres 表名）
		Tables struct {
			LastValue string `yaml:"last_value" validate:"required"`
			Jumps     string `yaml:"jumps" validate:"required,nefield=LastValue"`
		} `yaml:"tables"`
	} `yaml:"analyzer"`

	// Range 正常范围服务
	Range struct {
		Enabled bool `yaml:"enabled"`
		// Discovery 服务发现方式：static / redis / apigateway
		Discovery string `yaml:"discovery" validate:"oneof=static redis apigateway"`
		BaseURL   string `yaml:"base_url" validate:"required_if=Discovery static"`
		// ServiceID 服务标识：redis 注册表字段名，或 API Gateway rest-api id
		ServiceID   string        `yaml:"service_id" validate:"required_unless=Discovery static"`
		RegistryKey string        `yaml:"registry_key"`
		Stage       string        `yaml:"stage"`
		Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	} `yaml:"range"`

	// Source 上游事件来源：stream（Redis Streams）/ mqtt
	Source struct {
		Mode          string        `yaml:"mode" validate:"oneof=stream mqtt"`
		Stream        string        `yaml:"stream"`
		ConsumerGroup string        `yaml:"consumer_group"`
		ConsumerName  string        `yaml:"consumer_name"`
		BatchSize     int64         `yaml:"batch_size" validate:"gt=0"`
		Block         time.Duration `yaml:"block"`
		Topic         string        `yaml:"topic"`
	} `yaml:"source"`

	Log struct {
		Level       string `yaml:"level"`
		Format      string `yaml:"format" validate:"oneof=json console"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"log"`
}

// Load 加载配置：默认值 -> YAML 文件（PULSE_CONFIG_FILE，可选）-> 环境变量 -> 校验
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("PULSE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "pulse"
	cfg.Database.SSLMode = "disable"

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "pulse-monitor"
	cfg.MQTT.QoS = 1

	cfg.AWS.Region = "us-east-1"

	cfg.Analyzer.Factor = DefaultFactor
	cfg.Analyzer.StoreBackend = "redis"
	cfg.Analyzer.AuditBackend = "postgres"
	cfg.Analyzer.Tables.LastValue = "pulse_last_value"
	cfg.Analyzer.Tables.Jumps = "pulse_jump_values"

	cfg.Range.Enabled = true
	cfg.Range.Discovery = "static"
	cfg.Range.BaseURL = "http://localhost:8081"
	cfg.Range.ServiceID = "pulse-range"
	cfg.Range.RegistryKey = "service:registry"
	cfg.Range.Stage = "Prod"
	cfg.Range.Timeout = 5 * time.Second

	cfg.Source.Mode = "stream"
	cfg.Source.Stream = "pulse:change:stream"
	cfg.Source.ConsumerGroup = "pulse-monitor-group"
	cfg.Source.ConsumerName = "pulse-monitor-1"
	cfg.Source.BatchSize = 10
	cfg.Source.Block = 5 * time.Second
	cfg.Source.Topic = "pulse/changes"

	cfg.Log.Level = "INFO"
	cfg.Log.Format = "json"
	cfg.Log.ServiceName = "pulse-monitor"

	return cfg
}

func applyEnv(cfg *Config) {
	cfg.Database.LoadFromEnv("DB")
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.AWS.LoadFromEnv()

	// FACTOR 无法解析时回退到默认值
	if v := os.Getenv("FACTOR"); v != "" {
		cfg.Analyzer.Factor = parseFloat(v, DefaultFactor)
	}
	cfg.Analyzer.StoreBackend = getEnv("STORE_BACKEND", cfg.Analyzer.StoreBackend)
	cfg.Analyzer.AuditBackend = getEnv("AUDIT_BACKEND", cfg.Analyzer.AuditBackend)

	// RANGE_ENABLED 无法解析时保持原值
	if v := os.Getenv("RANGE_ENABLED"); v != "" {
		cfg.Range.Enabled = parseBool(v, cfg.Range.Enabled)
	}
	cfg.Range.Discovery = getEnv("RANGE_DISCOVERY", cfg.Range.Discovery)
	cfg.Range.BaseURL = getEnv("RANGE_BASE_URL", cfg.Range.BaseURL)
	cfg.Range.ServiceID = getEnv("RANGE_SERVICE_ID", cfg.Range.ServiceID)
	cfg.Range.RegistryKey = getEnv("RANGE_REGISTRY_KEY", cfg.Range.RegistryKey)
	cfg.Range.Stage = getEnv("RANGE_STAGE", cfg.Range.Stage)
	if v := os.Getenv("RANGE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Range.Timeout = time.Duration(ms) * time.Millisecond
		}
	}

	cfg.Source.Mode = getEnv("SOURCE_MODE", cfg.Source.Mode)
	cfg.Source.Stream = getEnv("STREAM_PULSE", cfg.Source.Stream)
	cfg.Source.ConsumerGroup = getEnv("CONSUMER_GROUP", cfg.Source.ConsumerGroup)
	cfg.Source.ConsumerName = getEnv("CONSUMER_NAME", cfg.Source.ConsumerName)
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Source.BatchSize = n
		}
	}
	cfg.Source.Topic = getEnv("MQTT_TOPIC", cfg.Source.Topic)

	cfg.Log.Level = getEnv("LOGGER_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.ServiceName = getEnv("SERVICE_NAME", cfg.Log.ServiceName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}
