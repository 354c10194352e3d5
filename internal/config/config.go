/**
 * @description
 * This package handles the configuration management for the checkout-service.
 * It uses the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the checkout-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	SaleEventQueue             string `mapstructure:"SALE_EVENT_QUEUE"`
	GatewayAPIBaseURL          string `mapstructure:"GATEWAY_API_BASE_URL"`
	GatewayAPIKey              string `mapstructure:"GATEWAY_API_KEY"`
	GatewayTimeoutSeconds      int    `mapstructure:"GATEWAY_TIMEOUT_SECONDS"`
	NotifyServiceURL           string `mapstructure:"NOTIFY_SERVICE_URL"`
	NotifyServiceAPIKey        string `mapstructure:"NOTIFY_SERVICE_INTERNAL_API_KEY"`
	AttributionServiceURL      string `mapstructure:"ATTRIBUTION_SERVICE_URL"`
	AttributionServiceAPIKey   string `mapstructure:"ATTRIBUTION_SERVICE_API_KEY"`
	InternalAPIKey             string `mapstructure:"INTERNAL_API_KEY"`
	LocalTimezone              string `mapstructure:"LOCAL_TIMEZONE"`
	RemarketingDrainSchedule   string `mapstructure:"REMARKETING_DRAIN_SCHEDULE"`
	RemarketingDrainBatchSize  int    `mapstructure:"REMARKETING_DRAIN_BATCH_SIZE"`
	StalePendingReportSchedule string `mapstructure:"STALE_PENDING_REPORT_SCHEDULE"`
	StalePendingAfterMinutes   int    `mapstructure:"STALE_PENDING_AFTER_MINUTES"`
	CheckoutRateLimitPerMinute int    `mapstructure:"CHECKOUT_RATE_LIMIT_PER_MINUTE"`
	WebhookRateLimitPerMinute  int    `mapstructure:"WEBHOOK_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SALE_EVENT_QUEUE", "checkout_service.sale_updates")
	viper.SetDefault("GATEWAY_TIMEOUT_SECONDS", 30)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "tendapay:rate_limit")
	viper.SetDefault("LOCAL_TIMEZONE", "Africa/Maputo")
	viper.SetDefault("REMARKETING_DRAIN_SCHEDULE", "* * * * *")
	viper.SetDefault("REMARKETING_DRAIN_BATCH_SIZE", 50)
	viper.SetDefault("STALE_PENDING_REPORT_SCHEDULE", "*/10 * * * *")
	viper.SetDefault("STALE_PENDING_AFTER_MINUTES", 60)
	viper.SetDefault("CHECKOUT_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("WEBHOOK_RATE_LIMIT_PER_MINUTE", 300)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "CHECKOUT_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("SALE_EVENT_QUEUE")
	_ = viper.BindEnv("GATEWAY_API_BASE_URL")
	_ = viper.BindEnv("GATEWAY_API_KEY")
	_ = viper.BindEnv("GATEWAY_TIMEOUT_SECONDS")
	_ = viper.BindEnv("NOTIFY_SERVICE_URL")
	_ = viper.BindEnv("NOTIFY_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("ATTRIBUTION_SERVICE_URL")
	_ = viper.BindEnv("ATTRIBUTION_SERVICE_API_KEY")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "CHECKOUT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("LOCAL_TIMEZONE")
	_ = viper.BindEnv("REMARKETING_DRAIN_SCHEDULE")
	_ = viper.BindEnv("REMARKETING_DRAIN_BATCH_SIZE")
	_ = viper.BindEnv("STALE_PENDING_REPORT_SCHEDULE")
	_ = viper.BindEnv("STALE_PENDING_AFTER_MINUTES")
	_ = viper.BindEnv("CHECKOUT_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("WEBHOOK_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("CHECKOUT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "tendapay:rate_limit"
	}
	config.LocalTimezone = strings.TrimSpace(config.LocalTimezone)
	if config.LocalTimezone == "" {
		config.LocalTimezone = "Africa/Maputo"
	}

	if config.GatewayTimeoutSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive gateway timeout configured; using default\" seconds=%d", config.GatewayTimeoutSeconds)
		config.GatewayTimeoutSeconds = 30
	}
	if config.RemarketingDrainBatchSize <= 0 {
		config.RemarketingDrainBatchSize = 50
	}
	if config.RemarketingDrainBatchSize > 500 {
		log.Printf("level=warn component=config msg=\"remarketing batch size too large; capping at 500\" batch=%d", config.RemarketingDrainBatchSize)
		config.RemarketingDrainBatchSize = 500
	}
	if config.StalePendingAfterMinutes <= 0 {
		config.StalePendingAfterMinutes = 60
	}
	if config.CheckoutRateLimitPerMinute < 0 {
		config.CheckoutRateLimitPerMinute = 0
	}
	if config.WebhookRateLimitPerMinute < 0 {
		config.WebhookRateLimitPerMinute = 0
	}

	return
}
