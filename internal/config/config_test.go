package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("JWT_ACCESS_EXPIRY", "15m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 3, cfg.OTP.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.NotEqual(t, cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)
	assert.False(t, cfg.Chat.EnforceGroupMembership)
	assert.Same(t, cfg, Get())
}

func TestLoadConfigProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")
	t.Setenv("HASH_PEPPER", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ACCESS_SECRET")
	assert.Contains(t, err.Error(), "HASH_PEPPER")
}

func TestValidateRejectsSharedSecret(t *testing.T) {
	cfg := &Config{
		JWT:     JWTConfig{AccessSecret: "same", RefreshSecret: "same"},
		Hashing: HashingConfig{Pepper: "p"},
		OTP:     OTPConfig{MaxAttempts: 5},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestOTPDurations(t *testing.T) {
	o := OTPConfig{ExpireMinutes: 10, BanMinutes: 5}
	assert.Equal(t, 10*time.Minute, o.Expiry())
	assert.Equal(t, 5*time.Minute, o.BanDuration())
}
