package config

import (
	"errors"
	"strings"

	"github.com/blues/campaignhub/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Cipher    CipherConfig    `mapstructure:"cipher"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Task      TaskConfig      `mapstructure:"task"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// RedisConfig 缓存/分布式锁配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 通知事件投递配置
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// GatewayConfig 支付网关配置
type GatewayConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ImpKey         string `mapstructure:"imp_key"`
	ImpSecret      string `mapstructure:"imp_secret"`
	PG             string `mapstructure:"pg"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CipherConfig 卡号加密密钥（base64 编码的 32 字节）
type CipherConfig struct {
	Key string `mapstructure:"key"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type TaskConfig struct {
	StatusCron    string `mapstructure:"status_cron"`    // 活动结束检查
	FundingCron   string `mapstructure:"funding_cron"`   // 筹款结果检查
	ReconcileCron string `mapstructure:"reconcile_cron"` // 网关预约对账
	Workers       int    `mapstructure:"workers"`
}

type ChatConfig struct {
	Workers        int      `mapstructure:"workers"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output     string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File       string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Validate 校验 release 模式下的必填项
func (c *Config) Validate() error {
	if c.Server.Mode != "release" {
		return nil
	}
	if c.Cipher.Key == "" {
		return errors.New("cipher.key is required in release mode")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required in release mode")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "campaignhub")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open", 20)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "campaignhub.events")
	v.SetDefault("gateway.base_url", "https://api.iamport.kr")
	v.SetDefault("gateway.pg", "nice")
	v.SetDefault("gateway.timeout_seconds", 10)
	v.SetDefault("jwt.issuer", "campaignhub")
	v.SetDefault("task.status_cron", "0 7 * * *")
	v.SetDefault("task.funding_cron", "50 7 * * *")
	v.SetDefault("task.reconcile_cron", "30 * * * *")
	v.SetDefault("task.workers", 8)
	v.SetDefault("chat.workers", 32)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", "campaignhub")
	v.SetDefault("ratelimit.qps", 20)
	v.SetDefault("ratelimit.burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
}

// Load 读取配置文件与环境变量
func Load() *Config {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/campaignhub")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
