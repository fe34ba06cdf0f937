// Package config loads the server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"vextract/internal/admission"
)

const defaultAPIKey = "default-api-key-change-me"

// KeyConfig is one statically configured API key.
type KeyConfig struct {
	Key         string
	Name        string
	Permissions []admission.Permission
}

// Config is the full server configuration. Every value has a default so the
// server starts with nothing but API_KEYS set.
type Config struct {
	Host string
	Port int

	APIKeys   []KeyConfig
	AdminKeys []string

	RateCeiling int
	RateWindow  time.Duration

	CacheEnabled  bool
	CacheTTL      time.Duration
	CacheCapacity int

	BlockThreshold int
	BlockWindow    time.Duration
	BlockDuration  time.Duration

	AllowedOrigins []string

	DownloadsPath          string
	MaxConcurrentDownloads int
	MaxFileSizeMB          int64

	FirestoreProjectID  string
	FirestoreCollection string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	YTDLPPath string
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Host:                   getenvDefault("SERVER_HOST", "127.0.0.1"),
		Port:                   getenvIntDefault("SERVER_PORT", 8000),
		RateCeiling:            getenvIntDefault("MAX_REQUESTS_PER_MINUTE", 60),
		RateWindow:             getenvDurationSeconds("RATE_WINDOW_SECONDS", time.Minute),
		CacheEnabled:           getenvBoolDefault("CACHE_ENABLED", true),
		CacheTTL:               getenvDurationSeconds("CACHE_TTL_SECONDS", time.Hour),
		CacheCapacity:          getenvIntDefault("CACHE_CAPACITY", 1024),
		BlockThreshold:         getenvIntDefault("BLOCK_THRESHOLD", 5),
		BlockWindow:            getenvDurationSeconds("BLOCK_WINDOW_SECONDS", time.Hour),
		BlockDuration:          getenvDurationSeconds("BLOCK_DURATION_SECONDS", time.Hour),
		DownloadsPath:          getenvDefault("DOWNLOADS_PATH", "./downloads"),
		MaxConcurrentDownloads: getenvIntDefault("MAX_CONCURRENT_DOWNLOADS", 5),
		MaxFileSizeMB:          int64(getenvIntDefault("MAX_FILE_SIZE_MB", 500)),
		FirestoreProjectID:     os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCollection:    getenvDefault("FIRESTORE_COLLECTION", "apiKeys"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getenvIntDefault("REDIS_DB", 0),
		YTDLPPath:              getenvDefault("YTDLP_PATH", "yt-dlp"),
	}

	cfg.APIKeys = ParseAPIKeys(getenvDefault("API_KEYS", defaultAPIKey))
	cfg.AdminKeys = splitList(os.Getenv("ADMIN_KEYS"))
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	if len(cfg.APIKeys) == 0 {
		return Config{}, errors.New("API_KEYS must configure at least one key")
	}
	if cfg.RateCeiling <= 0 {
		return Config{}, errors.New("MAX_REQUESTS_PER_MINUTE must be > 0")
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, errors.New("CACHE_TTL_SECONDS must be > 0")
	}
	return cfg, nil
}

// Validate logs startup warnings for risky settings.
func (c Config) Validate(logger *log.Logger) {
	for _, key := range c.APIKeys {
		if key.Key == defaultAPIKey {
			logger.Printf("WARN: using the default API key, change it in production")
		}
	}
	if len(c.AdminKeys) == 0 {
		logger.Printf("INFO: no ADMIN_KEYS configured, key management endpoints disabled")
	}
}

// ListenAddr returns the host:port the server binds.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxFileSizeBytes returns the download size cap in bytes.
func (c Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// ParseAPIKeys parses the API_KEYS value. Entries are comma separated; each
// entry is either a bare key (granted every capability) or key=perm+perm.
func ParseAPIKeys(raw string) []KeyConfig {
	var keys []KeyConfig
	for i, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		value, perms, found := strings.Cut(entry, "=")
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		key := KeyConfig{
			Key:  value,
			Name: fmt.Sprintf("static-%d", i+1),
		}
		if found {
			for _, perm := range strings.Split(perms, "+") {
				switch admission.Permission(strings.TrimSpace(strings.ToLower(perm))) {
				case admission.PermissionExtract:
					key.Permissions = append(key.Permissions, admission.PermissionExtract)
				case admission.PermissionDownload:
					key.Permissions = append(key.Permissions, admission.PermissionDownload)
				}
			}
		} else {
			key.Permissions = []admission.Permission{admission.PermissionExtract, admission.PermissionDownload}
		}
		if len(key.Permissions) == 0 {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// LoadEnvFile sets environment variables from a .env style file when it
// exists. Values already present in the environment are overwritten, which
// matches how the server has always been launched.
func LoadEnvFile(path string, logger *log.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Printf("INFO: env file %s not found, skipping", path)
			return nil
		}
		return fmt.Errorf("open env file %q: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			logger.Printf("WARN: skipping malformed env line %d in %s", lineNum, path)
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set env %q from %s: %w", key, path, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read env file %q: %w", path, err)
	}

	logger.Printf("INFO: loaded environment from %s", path)
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDurationSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
