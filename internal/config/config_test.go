package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RATELIMIT_QPS", "5")
	t.Setenv("JWT_SECRET", "from-env")

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, 5.0, cfg.RateLimit.QPS)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "campaignhub", cfg.JWT.Issuer)
	assert.Equal(t, "0 7 * * *", cfg.Task.StatusCron)
	assert.Equal(t, "50 7 * * *", cfg.Task.FundingCron)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.Validate())

	cfg.Server.Mode = "release"
	assert.ErrorContains(t, cfg.Validate(), "cipher.key")

	cfg.Cipher.Key = "0123456789abcdef0123456789abcdef"
	assert.ErrorContains(t, cfg.Validate(), "jwt.secret")

	cfg.JWT.Secret = "secret"
	assert.NoError(t, cfg.Validate())
}
