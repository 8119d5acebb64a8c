package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Reservation engine knobs.
	ReserveMaxAttempts  int `mapstructure:"RESERVE_MAX_ATTEMPTS"`
	ReserveBackoffMs    int `mapstructure:"RESERVE_BACKOFF_MS"`
	RequestTimeoutSec   int `mapstructure:"REQUEST_TIMEOUT_SEC"`
	PendingTTLMin       int `mapstructure:"PENDING_TTL_MIN"`
	CancelMinLeadHours  int `mapstructure:"CANCEL_MIN_LEAD_HOURS"`
	SlotHorizonDays     int `mapstructure:"SLOT_HORIZON_DAYS"`
	RuleCacheTTLSeconds int `mapstructure:"RULE_CACHE_TTL_SEC"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "slotwise")
	viper.SetDefault("RESERVE_MAX_ATTEMPTS", 5)
	viper.SetDefault("RESERVE_BACKOFF_MS", 50)
	viper.SetDefault("REQUEST_TIMEOUT_SEC", 15)
	viper.SetDefault("PENDING_TTL_MIN", 10)
	viper.SetDefault("CANCEL_MIN_LEAD_HOURS", 24)
	viper.SetDefault("SLOT_HORIZON_DAYS", 60)
	viper.SetDefault("RULE_CACHE_TTL_SEC", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
