package main

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("API_KEY", "secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr, got %s", cfg.ListenAddr)
	}
	if cfg.DailyLimit != 5 || cfg.MaxWords != 350 {
		t.Errorf("Expected default limits, got limit=%d words=%d", cfg.DailyLimit, cfg.MaxWords)
	}
	if cfg.StorageBackend != "memory" {
		t.Errorf("Expected memory backend, got %s", cfg.StorageBackend)
	}
	if cfg.requestTimeout() != 15*time.Second {
		t.Errorf("Expected 15s timeout, got %v", cfg.requestTimeout())
	}
}

func TestLoadConfig_RequiresOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("API_KEY", "secret")

	if _, err := loadConfig(); err == nil {
		t.Error("Expected error without OPENAI_API_KEY")
	}
}

func TestLoadConfig_AuthPolicies(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	// Neither policy
	t.Setenv("API_KEY", "")
	t.Setenv("APPROVED_USER_IDS", "")
	if _, err := loadConfig(); err == nil {
		t.Error("Expected error without any auth policy")
	}

	// Both policies
	t.Setenv("API_KEY", "secret")
	t.Setenv("APPROVED_USER_IDS", "a,b")
	if _, err := loadConfig(); err == nil {
		t.Error("Expected error with both auth policies")
	}

	// Allow-list only
	t.Setenv("API_KEY", "")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if len(cfg.ApprovedUserIDs) != 2 {
		t.Errorf("Expected 2 approved users, got %v", cfg.ApprovedUserIDs)
	}
}

func TestLoadConfig_ApprovedUserIDsTrimmed(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("API_KEY", "")
	t.Setenv("APPROVED_USER_IDS", " alice , bob ,, ")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if len(cfg.ApprovedUserIDs) != 2 || cfg.ApprovedUserIDs[0] != "alice" || cfg.ApprovedUserIDs[1] != "bob" {
		t.Errorf("Unexpected approved users: %v", cfg.ApprovedUserIDs)
	}
}

func TestLoadConfig_BackendValidation(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("STORAGE_BACKEND", "cassandra")
	if _, err := loadConfig(); err == nil {
		t.Error("Expected error for unknown backend")
	}

	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Error("Expected error for postgres without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/lettergate")
	if _, err := loadConfig(); err != nil {
		t.Errorf("Expected valid postgres config, got %v", err)
	}
}
