package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// config describes the lettergated environment configuration.
type config struct {
	ListenAddr string

	DailyLimit int
	MaxWords   int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	TimeoutMS     int

	// APIKey is the shared caller secret. APPROVED_USER_IDS selects the
	// allow-list policy instead; exactly one of the two must be set.
	APIKey          string
	ApprovedUserIDs []string

	StorageBackend string
	FileRoot       string
	RedisAddr      string
	RedisPassword  string
	DatabaseURL    string
	FirestoreProj  string
}

// loadConfig reads and validates the environment.
func loadConfig() (config, error) {
	cfg := config{
		ListenAddr:     envOr("LISTEN_ADDR", ":8080"),
		DailyLimit:     envIntOr("DAILY_LIMIT", 5),
		MaxWords:       envIntOr("MAX_WORDS", 350),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		Model:          os.Getenv("GPT_MODEL"),
		TimeoutMS:      envIntOr("REQUEST_TIMEOUT_MS", 15000),
		APIKey:         os.Getenv("API_KEY"),
		StorageBackend: envOr("STORAGE_BACKEND", "memory"),
		FileRoot:       envOr("FILE_ROOT", "./data"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		FirestoreProj:  os.Getenv("FIRESTORE_PROJECT"),
	}

	if raw := os.Getenv("APPROVED_USER_IDS"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.ApprovedUserIDs = append(cfg.ApprovedUserIDs, id)
			}
		}
	}

	if cfg.OpenAIAPIKey == "" {
		return cfg, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.APIKey == "" && len(cfg.ApprovedUserIDs) == 0 {
		return cfg, fmt.Errorf("either API_KEY or APPROVED_USER_IDS is required")
	}
	if cfg.APIKey != "" && len(cfg.ApprovedUserIDs) > 0 {
		return cfg, fmt.Errorf("API_KEY and APPROVED_USER_IDS are mutually exclusive")
	}

	switch cfg.StorageBackend {
	case "memory", "file", "redis", "postgres", "firestore":
	default:
		return cfg, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "postgres" && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}
	if cfg.StorageBackend == "firestore" && cfg.FirestoreProj == "" {
		return cfg, fmt.Errorf("FIRESTORE_PROJECT is required for the firestore backend")
	}

	return cfg, nil
}

func (c config) requestTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
