package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_URL_ANON_KEY", "anon")
	t.Setenv("API_BASE_URL", "https://api.staylink.app/")
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://api.staylink.app/api/v1/create-fedapay-payment-intent", cfg.PaymentIntentURL)
	assert.Equal(t, 15*time.Minute, cfg.CheckoutTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.MongoEnabled())
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PAYMENT_INTENT_URL", "https://pay.example/intent")
	t.Setenv("CHECKOUT_TIMEOUT", "2m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/intent", cfg.PaymentIntentURL)
	assert.Equal(t, 2*time.Minute, cfg.CheckoutTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.MongoEnabled())
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing supabase", func(t *testing.T) {
		t.Setenv("SUPABASE_URL", "")
		t.Setenv("SUPABASE_URL_ANON_KEY", "anon")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "SUPABASE_URL")
	})
	t.Run("bad duration", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CACHE_TTL", "soon")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "CACHE_TTL")
	})
	t.Run("unverified tokens in production", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("ALLOW_UNVERIFIED_TOKENS", "true")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("mongo password placeholder", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("MONGODB_URI", "mongodb+srv://app:<password>@cluster0.mongodb.net")
		t.Setenv("MONGODB_PASSWORD", "")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "MONGODB_PASSWORD")
	})
}
