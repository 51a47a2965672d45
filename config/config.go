package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Redis configuration (index persistence + reminder queue).
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisIndexDB         int    `mapstructure:"REDIS_INDEX_DB"`
	RedisReminderQueueDB int    `mapstructure:"REDIS_REMINDER_QUEUE_DB"`

	// Mongo (treatment schedule source for warming the local cache).
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Firebase service account for FCM delivery.
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// Scheduling policy knobs.
	GraceWindowMinutes  int `mapstructure:"GRACE_WINDOW_MINUTES"`
	FollowupOffsetHours int `mapstructure:"FOLLOWUP_OFFSET_HOURS"`
	MaxPendingPerPet    int `mapstructure:"MAX_PENDING_PER_PET"`
	WarnPendingPerPet   int `mapstructure:"WARN_PENDING_PER_PET"`

	// Lifecycle loop.
	ReconcileIntervalMinutes int `mapstructure:"RECONCILE_INTERVAL_MINUTES"`

	// FCM send budget (messages per second).
	FCMSendRate int `mapstructure:"FCM_SEND_RATE"`

	// Scope this process schedules for (one signed-in user, their pets).
	UserID string   `mapstructure:"USER_ID"`
	PetIDs []string `mapstructure:"PET_IDS"`
}

// GraceWindow returns the grace window as a duration.
func (c Config) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowMinutes) * time.Minute
}

// ReconcileInterval returns the lifecycle reconcile tick as a duration.
func (c Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMinutes) * time.Minute
}

// IsProduction reports whether this process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from config.yaml and the environment.
func Load() Config {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_INDEX_DB", 0)
	viper.SetDefault("REDIS_REMINDER_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "pawmeds")
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "serviceAccountKey.json")
	viper.SetDefault("GRACE_WINDOW_MINUTES", 5)
	viper.SetDefault("FOLLOWUP_OFFSET_HOURS", 2)
	viper.SetDefault("MAX_PENDING_PER_PET", 50)
	viper.SetDefault("WARN_PENDING_PER_PET", 40)
	viper.SetDefault("RECONCILE_INTERVAL_MINUTES", 15)
	viper.SetDefault("FCM_SEND_RATE", 5)
	viper.SetDefault("USER_ID", "")
	viper.SetDefault("PET_IDS", []string{})

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
