/**
 * @description
 * Configuration management for the service. Uses Viper to read an optional
 * .env file plus environment variables, applies defaults, and coerces
 * nonsensical values back to safe ones.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service, loaded from environment
// variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	JWTSecret                string `mapstructure:"JWT_SECRET"`
	SessionTTLMinutes        int    `mapstructure:"SESSION_TTL_MINUTES"`
	MaxPINAttempts           int    `mapstructure:"MAX_PIN_ATTEMPTS"`
	AuthRateLimitPerMinute   int    `mapstructure:"AUTH_RATE_LIMIT_PER_MINUTE"`
	TransactionEventExchange string `mapstructure:"TRANSACTION_EVENT_EXCHANGE"`
	DailyReportSchedule      string `mapstructure:"DAILY_REPORT_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in the given path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "atm:rate_limit")
	viper.SetDefault("SESSION_TTL_MINUTES", 60)
	viper.SetDefault("MAX_PIN_ATTEMPTS", 3)
	viper.SetDefault("AUTH_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("TRANSACTION_EVENT_EXCHANGE", "ledger_events")
	viper.SetDefault("DAILY_REPORT_SCHEDULE", "0 6 * * *")

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("SESSION_TTL_MINUTES")
	_ = viper.BindEnv("MAX_PIN_ATTEMPTS")
	_ = viper.BindEnv("AUTH_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("TRANSACTION_EVENT_EXCHANGE")
	_ = viper.BindEnv("DAILY_REPORT_SCHEDULE")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if config.MaxPINAttempts <= 0 {
		log.Printf("level=warn component=config msg=\"invalid MAX_PIN_ATTEMPTS; using default\" value=%d", config.MaxPINAttempts)
		config.MaxPINAttempts = 3
	}
	if config.SessionTTLMinutes <= 0 {
		config.SessionTTLMinutes = 60
	}
	if config.AuthRateLimitPerMinute < 0 {
		config.AuthRateLimitPerMinute = 0
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "atm:rate_limit"
	}

	return
}
