package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Kafka      KafkaConfig      `validate:"required"`
	Scheduler  SchedulerConfig  `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	OrderTopic    string
	FeedbackTopic string
	EventTopic    string
	UseInMemory   bool
}

// SchedulerConfig controls the periodic dispatch jobs. Each run acquires a
// cluster-wide lease before doing any work; LeaseTTL bounds both the lease
// and the run's context deadline.
type SchedulerConfig struct {
	BillingInterval    time.Duration `mapstructure:"billing_interval"`
	CreditingInterval  time.Duration `mapstructure:"crediting_interval"`
	LeaseTTL           time.Duration `mapstructure:"lease_ttl"`
	BatchSize          int           `mapstructure:"batch_size"`
	SendDateOffsetDays int           `mapstructure:"send_date_offset_days"`
	UnpaidGracePeriod  time.Duration `mapstructure:"unpaid_grace_period"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/fakturaserie")

	v.SetEnvPrefix("FAKTURASERIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("scheduler.billing_interval", "10s")
	v.SetDefault("scheduler.crediting_interval", "5m")
	v.SetDefault("scheduler.lease_ttl", "30s")
	v.SetDefault("scheduler.batch_size", 200)
	v.SetDefault("scheduler.send_date_offset_days", 0)
	v.SetDefault("scheduler.unpaid_grace_period", "720h")
	v.SetDefault("kafka.use_in_memory", true)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running tests or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Scheduler: SchedulerConfig{
			BillingInterval:    10 * time.Second,
			CreditingInterval:  5 * time.Minute,
			LeaseTTL:           30 * time.Second,
			BatchSize:          200,
			SendDateOffsetDays: 0,
			UnpaidGracePeriod:  720 * time.Hour,
		},
		Kafka: KafkaConfig{UseInMemory: true},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
