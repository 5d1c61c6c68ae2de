package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	AppBaseURL        string `mapstructure:"APP_BASE_URL"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB   int    `mapstructure:"REDIS_SESSION_DB"`
	RedisCacheDB     int    `mapstructure:"REDIS_CACHE_DB"`
	RedisTaskQueueDB int    `mapstructure:"REDIS_TASK_QUEUE_DB"`

	// Onboarding flow.
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	ControllerIdleTTL   time.Duration `mapstructure:"CONTROLLER_IDLE_TTL"`
	ReferenceCacheTTL   time.Duration `mapstructure:"REFERENCE_CACHE_TTL"`
	PackageSelectionURL string        `mapstructure:"PACKAGE_SELECTION_URL"`
	DashboardURL        string        `mapstructure:"DASHBOARD_URL"`
	AmazonConnectURL    string        `mapstructure:"AMAZON_CONNECT_URL"`

	// Analytics backend.
	BackendAPIURL     string        `mapstructure:"BACKEND_API_URL"`
	BackendAPITimeout time.Duration `mapstructure:"BACKEND_API_TIMEOUT"`

	// Checkout: "backend" delegates to the analytics backend, "stripe" talks to Stripe directly.
	CheckoutProvider string `mapstructure:"CHECKOUT_PROVIDER"`
	StripeKey        string `mapstructure:"STRIPE_KEY"`
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

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000/signup")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_SESSION_DB", 0)
	v.SetDefault("REDIS_CACHE_DB", 1)
	v.SetDefault("REDIS_TASK_QUEUE_DB", 2)
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "profitpilot")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("CONTROLLER_IDLE_TTL", "30m")
	v.SetDefault("REFERENCE_CACHE_TTL", "1h")
	v.SetDefault("PACKAGE_SELECTION_URL", "http://localhost:3000/pricing")
	v.SetDefault("DASHBOARD_URL", "http://localhost:3000/dashboard")
	v.SetDefault("AMAZON_CONNECT_URL", "http://localhost:8000/api/amazon/connect")
	v.SetDefault("BACKEND_API_URL", "http://localhost:8000")
	v.SetDefault("BACKEND_API_TIMEOUT", "30s")
	v.SetDefault("CHECKOUT_PROVIDER", "backend")
	v.SetDefault("STRIPE_KEY", "")
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
