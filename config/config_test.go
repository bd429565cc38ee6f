package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, StoreFirestore, cfg.Store)
	assert.Equal(t, defaultMaxMessageLength, cfg.MaxMessageLength)
	assert.Equal(t, defaultRoleCacheTTL, cfg.RoleCacheTTL)
	assert.Equal(t, defaultRetryAttempts, cfg.RetryAttempts)
	assert.Equal(t, defaultOpenAIModel, cfg.OpenAIModel)
	assert.False(t, cfg.ModerationEnabled)
}

func TestOverrides(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"GOOGLE_CLOUD_PROJECT": "chat-prod",
		"SUPPORTCHAT_STORE":    " Memory ",
		"REDIS_URL":            "redis://localhost:6379/0",
		"ROLE_CACHE_TTL":       "30s",
		"MAX_MESSAGE_LENGTH":   "500",
		"RETRY_MAX_ATTEMPTS":   "2",
		"MODERATION_ENABLED":   "true",
		"OPENAI_MODEL":         "gpt-4o",
	}))
	require.NoError(t, err)
	assert.Equal(t, "chat-prod", cfg.ProjectID)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.RoleCacheTTL)
	assert.Equal(t, 500, cfg.MaxMessageLength)
	assert.Equal(t, 2, cfg.RetryAttempts)
	assert.True(t, cfg.ModerationEnabled)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown store", env: map[string]string{"SUPPORTCHAT_STORE": "mongo"}},
		{name: "bad ttl", env: map[string]string{"ROLE_CACHE_TTL": "soon"}},
		{name: "zero max length", env: map[string]string{"MAX_MESSAGE_LENGTH": "0"}},
		{name: "bad attempts", env: map[string]string{"RETRY_MAX_ATTEMPTS": "many"}},
		{name: "bad bool", env: map[string]string{"MODERATION_ENABLED": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromLookup(lookupFrom(tt.env))
			assert.Error(t, err)
		})
	}
}
