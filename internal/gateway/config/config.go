package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
	Storage   StorageConfig
	Cache     CacheConfig
	Documents DocumentsConfig
}

// StorageConfig selects and configures the blob backend.
type StorageConfig struct {
	Backend     string
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	UseSSL      bool
	DatabaseURL string
	DiskRoot    string
}

type CacheConfig struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int
}

type DocumentsConfig struct {
	// ExistsFailClosed makes existence checks answer 503 when the store
	// cannot be reached instead of reporting the name as free.
	ExistsFailClosed bool
}

const (
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendDisk     = "disk"
	BackendMemory   = "memory"
)

func (c StorageConfig) CanUseS3() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

// Load reads .env (if present), the process environment and command line flags.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(os.Args[1:], os.Getenv)
}

// LoadFrom is Load with explicit inputs.
func LoadFrom(args []string, getenv func(string) string) (*Config, error) {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	port := fs.String("port", ":62869", "server port")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if envPort := env("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	appEnv := firstNonEmpty(env("APP_ENV"), "local")
	var storage StorageConfig
	if strings.EqualFold(appEnv, "local") {
		storage = localStorageConfig(env)
	} else {
		storage = loadStorageConfig(env)
	}
	if err := resolveBackend(&storage); err != nil {
		return nil, err
	}

	cache, err := loadCacheConfig(env)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:      *port,
		Env:       appEnv,
		LogLevel:  firstNonEmpty(env("LOG_LEVEL"), "info"),
		LogFormat: firstNonEmpty(env("LOG_FORMAT"), "console"),
		Storage:   storage,
		Cache:     cache,
		Documents: DocumentsConfig{
			ExistsFailClosed: parseBool(env("DOCS_EXISTS_FAIL_CLOSED"), false),
		},
	}, nil
}

func loadStorageConfig(env func(string) string) StorageConfig {
	return StorageConfig{
		Backend:     strings.ToLower(env("DOCS_STORAGE_BACKEND")),
		Endpoint:    env("DOCS_S3_ENDPOINT"),
		Region:      firstNonEmpty(env("DOCS_S3_REGION"), "us-east-1"),
		AccessKey:   firstNonEmpty(env("DOCS_S3_ACCESS_KEY"), env("MINIO_ROOT_USER")),
		SecretKey:   firstNonEmpty(env("DOCS_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD")),
		Bucket:      firstNonEmpty(env("DOCS_S3_BUCKET"), "documents"),
		UseSSL:      parseBool(env("DOCS_S3_USE_SSL"), true),
		DatabaseURL: env("DOCS_DATABASE_URL"),
		DiskRoot:    env("DOCS_DISK_ROOT"),
	}
}

func resolveBackend(c *StorageConfig) error {
	if c.Backend == "" {
		switch {
		case c.Endpoint != "":
			c.Backend = BackendS3
		case c.DatabaseURL != "":
			c.Backend = BackendPostgres
		case c.DiskRoot != "":
			c.Backend = BackendDisk
		default:
			c.Backend = BackendMemory
		}
	}
	switch c.Backend {
	case BackendS3:
		if !c.CanUseS3() {
			return fmt.Errorf("s3 backend needs endpoint, access key, secret key and bucket")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("postgres backend needs DOCS_DATABASE_URL")
		}
	case BackendDisk:
		if c.DiskRoot == "" {
			return fmt.Errorf("disk backend needs DOCS_DISK_ROOT")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	return nil
}

func loadCacheConfig(env func(string) string) (CacheConfig, error) {
	cfg := CacheConfig{
		Enabled:    parseBool(env("DOCS_CACHE_ENABLED"), true),
		TTL:        5 * time.Minute,
		MaxEntries: 256,
	}
	if raw := env("DOCS_CACHE_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return CacheConfig{}, fmt.Errorf("DOCS_CACHE_TTL: %w", err)
		}
		cfg.TTL = d
	}
	if raw := env("DOCS_CACHE_ENTRIES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return CacheConfig{}, fmt.Errorf("DOCS_CACHE_ENTRIES: %w", err)
		}
		cfg.MaxEntries = n
	}
	return cfg, nil
}

func parseBool(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
