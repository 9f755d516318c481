package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.ProcessingTimeout != 30*time.Second {
		t.Errorf("processing timeout = %s, want 30s", cfg.ProcessingTimeout)
	}
	if cfg.StorageBackend != StorageBackendHTTP {
		t.Errorf("storage backend = %q, want http", cfg.StorageBackend)
	}
	if cfg.HeaderOCREnabled {
		t.Error("header OCR should default off")
	}
	if cfg.MaxWorkers != 4 {
		t.Errorf("max workers = %d, want 4", cfg.MaxWorkers)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PROCESSING_TIMEOUT", "45s")
	t.Setenv("MAX_WORKERS", "8")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.ProcessingTimeout != 45*time.Second {
		t.Errorf("processing timeout = %s, want 45s", cfg.ProcessingTimeout)
	}
	if cfg.MaxWorkers != 8 {
		t.Errorf("max workers = %d, want 8", cfg.MaxWorkers)
	}
}

func TestLoadFromEnvInvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("expected an error for a non-numeric port")
	}
}

func TestLoadFromEnvAzureRequiresCredentials(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "azure")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("azure backend without credentials should fail")
	}

	t.Setenv("AZURE_ACCOUNT_NAME", "sheets")
	t.Setenv("AZURE_ACCOUNT_KEY", "c2VjcmV0")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed with credentials: %v", err)
	}
	if cfg.StorageBackend != StorageBackendAzure {
		t.Errorf("storage backend = %q, want azure", cfg.StorageBackend)
	}
}

func TestLoadFromEnvUnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "ftp")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("expected an error for an unsupported backend")
	}
}

func TestServerAddress(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: "8080"}
	if got := cfg.ServerAddress(); got != "127.0.0.1:8080" {
		t.Errorf("address = %q, want 127.0.0.1:8080", got)
	}
}
