package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vextract/internal/admission"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr() != "127.0.0.1:8000" {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddr())
	}
	if cfg.RateCeiling != 60 || cfg.RateWindow != time.Minute {
		t.Fatalf("unexpected rate defaults %d/%s", cfg.RateCeiling, cfg.RateWindow)
	}
	if !cfg.CacheEnabled || cfg.CacheTTL != time.Hour || cfg.CacheCapacity != 1024 {
		t.Fatalf("unexpected cache defaults %+v", cfg)
	}
	if cfg.BlockThreshold != 5 || cfg.BlockWindow != time.Hour || cfg.BlockDuration != time.Hour {
		t.Fatalf("unexpected block defaults %+v", cfg)
	}
	if cfg.MaxConcurrentDownloads != 5 {
		t.Fatalf("unexpected download concurrency %d", cfg.MaxConcurrentDownloads)
	}
	if cfg.MaxFileSizeBytes() != 500*1024*1024 {
		t.Fatalf("unexpected size cap %d", cfg.MaxFileSizeBytes())
	}
	if cfg.YTDLPPath != "yt-dlp" {
		t.Fatalf("unexpected binary path %q", cfg.YTDLPPath)
	}
	if len(cfg.APIKeys) != 1 || cfg.APIKeys[0].Key != defaultAPIKey {
		t.Fatalf("expected the default key, got %+v", cfg.APIKeys)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_REQUESTS_PER_MINUTE", "10")
	t.Setenv("RATE_WINDOW_SECONDS", "30")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("API_KEYS", "alpha,beta")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr() != "0.0.0.0:9090" {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddr())
	}
	if cfg.RateCeiling != 10 || cfg.RateWindow != 30*time.Second {
		t.Fatalf("unexpected rate settings %d/%s", cfg.RateCeiling, cfg.RateWindow)
	}
	if cfg.CacheTTL != 2*time.Minute {
		t.Fatalf("unexpected cache ttl %s", cfg.CacheTTL)
	}
	if len(cfg.APIKeys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(cfg.APIKeys))
	}
}

func TestLoad_RejectsBadRateCeiling(t *testing.T) {
	t.Setenv("MAX_REQUESTS_PER_MINUTE", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-positive rate ceiling")
	}
}

func TestParseAPIKeys(t *testing.T) {
	keys := ParseAPIKeys("alpha, beta=extract, gamma=extract+download, =oops, delta=unknown")

	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %d: %+v", len(keys), keys)
	}

	if keys[0].Key != "alpha" || len(keys[0].Permissions) != 2 {
		t.Fatalf("bare key should carry every permission, got %+v", keys[0])
	}
	if keys[1].Key != "beta" || len(keys[1].Permissions) != 1 || keys[1].Permissions[0] != admission.PermissionExtract {
		t.Fatalf("unexpected beta entry %+v", keys[1])
	}
	if keys[2].Key != "gamma" || len(keys[2].Permissions) != 2 {
		t.Fatalf("unexpected gamma entry %+v", keys[2])
	}
	if keys[0].Name != "static-1" || keys[1].Name != "static-2" {
		t.Fatalf("unexpected key names %q, %q", keys[0].Name, keys[1].Name)
	}
}

func TestParseAPIKeys_Empty(t *testing.T) {
	if keys := ParseAPIKeys(""); len(keys) != 0 {
		t.Fatalf("expected no keys, got %+v", keys)
	}
	if keys := ParseAPIKeys(" , ,"); len(keys) != 0 {
		t.Fatalf("expected no keys, got %+v", keys)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nPLAIN_VALUE=hello\nQUOTED_VALUE=\"with spaces\"\nSINGLE='single'\n\nmalformed line\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLAIN_VALUE", "")
	t.Setenv("QUOTED_VALUE", "")
	t.Setenv("SINGLE", "")

	logger := log.New(io.Discard, "", 0)
	if err := LoadEnvFile(path, logger); err != nil {
		t.Fatalf("load env file: %v", err)
	}

	if got := os.Getenv("PLAIN_VALUE"); got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
	if got := os.Getenv("QUOTED_VALUE"); got != "with spaces" {
		t.Fatalf("expected quotes stripped, got %q", got)
	}
	if got := os.Getenv("SINGLE"); got != "single" {
		t.Fatalf("expected single quotes stripped, got %q", got)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env"), logger); err != nil {
		t.Fatalf("missing env file must not error: %v", err)
	}
}
