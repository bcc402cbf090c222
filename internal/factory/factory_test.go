package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"social-service/internal/chat"
	"social-service/internal/config"
	"social-service/internal/repository/memory"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{WriteTimeout: 15 * time.Second},
		Hashing: config.HashingConfig{
			Argon2MemoryCost:  1024,
			Argon2TimeCost:    1,
			Argon2Parallelism: 1,
			Pepper:            "test-pepper",
			PepperVersion:     1,
		},
		JWT: config.JWTConfig{
			AccessSecret:  "access-secret",
			RefreshSecret: "refresh-secret",
			AccessExpiry:  time.Hour,
			RefreshExpiry: 24 * time.Hour,
			Issuer:        "social-service",
		},
		OTP:       config.OTPConfig{ExpireMinutes: 10, MaxAttempts: 3, BanMinutes: 5},
		Mail:      config.MailConfig{AppName: "SocialApp"},
		S3:        config.S3Config{Folder: "SocialApp", SignedURLExpiry: time.Hour},
		Bucketing: config.BucketingConfig{UserBuckets: 4},
		RateLimit: config.RateLimitConfig{AuthRequests: 100, AuthWindow: time.Minute},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Jobs: config.JobsConfig{
			RejectedFriendshipRetention: 24 * time.Hour,
			RejectedFriendshipInterval:  time.Hour,
		},
	}
}

func TestInMemoryFactoryServesRequests(t *testing.T) {
	f, err := New(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	f.Start(context.Background())
	t.Cleanup(func() { _ = f.Close() })

	_, isMemoryRegistry := f.stores.registry.(*chat.MemoryRegistry)
	assert.True(t, isMemoryRegistry)
	_, isMemoryRevocations := f.stores.revocations.(*memory.RevocationStore)
	assert.True(t, isMemoryRevocations)
	assert.Empty(t, f.HealthCheck(context.Background()))
	assert.True(t, f.IsHealthy(context.Background()))

	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, _ := json.Marshal(map[string]string{
		"firstName":       "Alice",
		"lastName":        "Tester",
		"email":           "alice@example.com",
		"password":        "Password1!",
		"confirmPassword": "Password1!",
		"DOB":             "1990-05-01",
		"gender":          "female",
		"phoneNumber":     "5551234567",
	})
	res, err = http.Post(srv.URL+"/api/user/auth/signup", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	res, err = http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestUnreachableBackendFallsBackOutsideProduction(t *testing.T) {
	cfg := memoryConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, URL: "not-a-redis-url"}

	f, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer f.Close()

	assert.Nil(t, f.redisClient)
	_, isMemoryLimiter := f.stores.limiter.(*memory.RateLimiter)
	assert.True(t, isMemoryLimiter)
}

func TestUnreachableBackendFailsInProduction(t *testing.T) {
	cfg := memoryConfig()
	cfg.Environment = "production"
	cfg.Redis = config.RedisConfig{Enabled: true, URL: "not-a-redis-url"}

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestCloseIsIdempotent(t *testing.T) {
	f, err := New(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	f.Start(context.Background())

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	done := make(chan struct{})
	go func() {
		f.WaitForClose()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForClose did not return after Close")
	}
}
