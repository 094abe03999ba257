// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
// сервиса пробных периодов, подписок и реферальной программы.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Режимы продления подписки.
const (
	// RenewalFlagOnly только включает автопродление, дата окончания не меняется.
	RenewalFlagOnly = "flag_only"
	// RenewalImmediateExtend включает автопродление и сразу сдвигает дату окончания на период тарифа.
	RenewalImmediateExtend = "immediate_extend"
)

// Драйверы хранилища.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageDriver           string `yaml:"storage_driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	Locale                  string `yaml:"locale" env:"LOCALE" env-default:"tr-TR"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	Trial                   `yaml:"trial"`
	Subscription            `yaml:"subscription"`
	Referral                `yaml:"referral"`
	Scheduler               `yaml:"scheduler"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RateLimit количество запросов в секунду на пользователя, Burst размер всплеска.
	RateLimit float64 `yaml:"rate_limit" env-default:"2"`
	Burst     int     `yaml:"burst" env-default:"4"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ настройки брокера уведомлений.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Trial настройки пробного периода.
type Trial struct {
	TrialDays int `yaml:"days" env-default:"7"`
}

// Subscription настройки подписок.
type Subscription struct {
	RenewalMode string        `yaml:"renewal_mode" env:"RENEWAL_MODE" env-default:"flag_only"`
	CacheTTL    time.Duration `yaml:"cache_ttl" env-default:"1h"`
}

// Referral настройки реферальной программы.
type Referral struct {
	RewardDays   int           `yaml:"reward_days" env-default:"30"`
	PendingTTL   time.Duration `yaml:"pending_ttl" env-default:"2160h"`
	GrantRetries uint64        `yaml:"grant_retries" env-default:"3"`
}

// Scheduler настройки фонового планировщика.
type Scheduler struct {
	Interval     time.Duration `yaml:"interval" env-default:"1h"`
	ReminderDays []int         `yaml:"reminder_days" env-default:"7,3,1"`
	BatchSize    int           `yaml:"batch_size" env-default:"100"`

	// MetricsAddress адрес /metrics планировщика. Пустой отключает сервер метрик.
	MetricsAddress string `yaml:"metrics_address" env:"SCHEDULER_METRICS_ADDRESS"`
}

// MustLoad функция для загрузки конфига из файла, путь к которому лежит в CONFIG_PATH.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг по указанному пути.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет значения, которые нельзя выразить тегами.
func (c *Config) Validate() error {
	switch c.RenewalMode {
	case RenewalFlagOnly, RenewalImmediateExtend:
	default:
		return fmt.Errorf("unknown renewal_mode %q", c.RenewalMode)
	}
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.StorageConnectionString == "" {
			return fmt.Errorf("storage_connection_string is required for postgres driver")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage_driver %q", c.StorageDriver)
	}
	if c.TrialDays <= 0 {
		return fmt.Errorf("trial.days must be positive")
	}
	if c.RewardDays <= 0 {
		return fmt.Errorf("referral.reward_days must be positive")
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageDriver: %s\n"+
			"Locale: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Trial:\n"+
			"  Days: %d\n"+
			"Subscription:\n"+
			"  RenewalMode: %s\n"+
			"Referral:\n"+
			"  RewardDays: %d\n"+
			"  PendingTTL: %s\n",
		c.Env,
		c.StorageDriver,
		c.Locale,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.TrialDays,
		c.RenewalMode,
		c.RewardDays,
		c.PendingTTL,
	)
}
