package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/Vovarama1992/xianyu-reply-engine/internal/reply"
)

type Config struct {
	Port        string
	StoreDriver string
	DatabaseURL string

	RedisURL        string
	SettingsChannel string

	ClientMaxIdle       time.Duration
	ClientEvictInterval time.Duration
	BackendTimeout      time.Duration

	Prompts reply.Prompts
}

type promptsFile struct {
	Prompts reply.Prompts `toml:"prompts"`
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		StoreDriver:     getEnv("STORE_DRIVER", "postgres"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		SettingsChannel: getEnv("SETTINGS_CHANNEL", "ai_reply_settings_changed"),
		Prompts:         reply.DefaultPrompts(),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is not set")
	}

	var err error
	if cfg.ClientMaxIdle, err = getDuration("CLIENT_MAX_IDLE", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ClientEvictInterval, err = getDuration("CLIENT_EVICT_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.BackendTimeout, err = getDuration("BACKEND_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}

	if path := os.Getenv("PROMPTS_FILE"); path != "" {
		var f promptsFile
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return Config{}, fmt.Errorf("prompts file %s: %w", path, err)
		}
		cfg.Prompts = cfg.Prompts.Merge(f.Prompts)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, v)
	}
	return d, nil
}
