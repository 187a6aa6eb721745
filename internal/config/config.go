package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	LogLevel        string
	SupabaseURL     string
	SupabaseAnonKey string
	APIBaseURL      string

	PaymentIntentURL string
	FedaPayPublicKey string
	CheckoutTimeout  time.Duration
	IntentTimeout    time.Duration
	CacheTTL         time.Duration
	SessionIdle      time.Duration

	MongoDBURI      string
	MongoDBPassword string
	MongoDBName     string

	RedisURL string

	KafkaBrokers []string
	KafkaTopic   string

	CORSOrigins []string

	// AllowUnverifiedTokens lets development run without reaching the JWKS endpoint.
	AllowUnverifiedTokens bool
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnvWithDefault("PORT", "8080"),
		Environment:      getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
		SupabaseURL:      os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:  os.Getenv("SUPABASE_URL_ANON_KEY"),
		APIBaseURL:       strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		PaymentIntentURL: os.Getenv("PAYMENT_INTENT_URL"),
		FedaPayPublicKey: os.Getenv("FEDAPAY_PUBLIC_KEY"),
		MongoDBURI:       os.Getenv("MONGODB_URI"),
		MongoDBPassword:  os.Getenv("MONGODB_PASSWORD"),
		MongoDBName:      getEnvWithDefault("MONGODB_DATABASE", "staylink"),
		RedisURL:         os.Getenv("REDIS_URL"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       getEnvWithDefault("KAFKA_TOPIC", "staylink.events"),
		CORSOrigins:      splitList(getEnvWithDefault("CORS_ORIGINS", "http://localhost:3000")),
	}

	var err error
	if cfg.CheckoutTimeout, err = getDuration("CHECKOUT_TIMEOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.IntentTimeout, err = getDuration("PAYMENT_INTENT_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionIdle, err = getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AllowUnverifiedTokens, err = getBool("ALLOW_UNVERIFIED_TOKENS", false); err != nil {
		return nil, err
	}

	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL_ANON_KEY is required")
	}
	if cfg.PaymentIntentURL == "" {
		if cfg.APIBaseURL == "" {
			return nil, fmt.Errorf("PAYMENT_INTENT_URL or API_BASE_URL is required")
		}
		cfg.PaymentIntentURL = cfg.APIBaseURL + "/api/v1/create-fedapay-payment-intent"
	}
	if cfg.MongoDBURI != "" && strings.Contains(cfg.MongoDBURI, "<password>") && cfg.MongoDBPassword == "" {
		return nil, fmt.Errorf("MONGODB_PASSWORD is required when MONGODB_URI has a <password> placeholder")
	}
	if cfg.IsProduction() && cfg.AllowUnverifiedTokens {
		return nil, fmt.Errorf("ALLOW_UNVERIFIED_TOKENS cannot be enabled in production")
	}

	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, value)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) MongoEnabled() bool {
	return c.MongoDBURI != ""
}
