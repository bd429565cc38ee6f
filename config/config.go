package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	defaultMaxMessageLength = 4000
	defaultRoleCacheTTL     = 5 * time.Minute
	defaultRetryAttempts    = 4
	defaultOpenAIModel      = "gpt-4o-mini"
)

// Config is read from the environment once per process.
type Config struct {
	ProjectID string
	// Store selects the conversation backend: "firestore" or "memory".
	Store string

	RedisURL     string
	RoleCacheTTL time.Duration

	MaxMessageLength int
	RetryAttempts    int

	OpenAIAPIKey      string
	OpenAIModel       string
	ModerationEnabled bool

	ArchiveDSN string
}

func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := Config{
		ProjectID:        get("GOOGLE_CLOUD_PROJECT"),
		Store:            strings.ToLower(get("SUPPORTCHAT_STORE")),
		RedisURL:         get("REDIS_URL"),
		RoleCacheTTL:     defaultRoleCacheTTL,
		MaxMessageLength: defaultMaxMessageLength,
		RetryAttempts:    defaultRetryAttempts,
		OpenAIAPIKey:     get("OPENAI_API_KEY"),
		OpenAIModel:      get("OPENAI_MODEL"),
		ArchiveDSN:       get("ARCHIVE_DSN"),
	}
	if cfg.Store == "" {
		cfg.Store = StoreFirestore
	}
	if cfg.Store != StoreFirestore && cfg.Store != StoreMemory {
		return Config{}, fmt.Errorf("SUPPORTCHAT_STORE: unknown store %q", cfg.Store)
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = defaultOpenAIModel
	}

	if v := get("ROLE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("ROLE_CACHE_TTL: %w", err)
		}
		cfg.RoleCacheTTL = d
	}
	if v := get("MAX_MESSAGE_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("MAX_MESSAGE_LENGTH: invalid value %q", v)
		}
		cfg.MaxMessageLength = n
	}
	if v := get("RETRY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("RETRY_MAX_ATTEMPTS: invalid value %q", v)
		}
		cfg.RetryAttempts = n
	}
	if v := get("MODERATION_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("MODERATION_ENABLED: %w", err)
		}
		cfg.ModerationEnabled = b
	}
	return cfg, nil
}
