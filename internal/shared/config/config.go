package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port               string        `toml:"port"`
	Env                string        `toml:"env"`
	CORSAllowOrigin    []string      `toml:"cors_allow_origins"`
	DatabaseURL        string        `toml:"database_url"`
	JWTSecret          string        `toml:"jwt_secret"`
	RedisAddr          string        `toml:"redis_addr"`
	RedisPassword      string        `toml:"redis_password"`
	SnapshotTTL        time.Duration `toml:"-"`
	ObjectStoreType    string        `toml:"object_store"`
	LocalStoreDir      string        `toml:"local_store_dir"`
	AWSRegion          string        `toml:"aws_region"`
	S3Bucket           string        `toml:"s3_bucket"`
	S3Prefix           string        `toml:"s3_prefix"`
	SSEKMSKeyID        string        `toml:"sse_kms_key_id"`
	ChromePath         string        `toml:"chrome_path"`
	ExportTimeout      time.Duration `toml:"-"`
	ExportArchive      bool          `toml:"export_archive"`
	SessionIdleTTL     time.Duration `toml:"-"`
	GoogleClientID     string        `toml:"google_client_id"`
	GoogleClientSecret string        `toml:"google_client_secret"`
	GoogleRedirectURL  string        `toml:"google_redirect_url"`
	UIRedirectURL      string        `toml:"ui_redirect_url"`
}

// Defaults returns the configuration used when nothing else is provided.
func Defaults() Config {
	return Config{
		Port:            "8080",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		SnapshotTTL:     7 * 24 * time.Hour,
		ObjectStoreType: "local",
		LocalStoreDir:   "./data",
		ExportTimeout:   60 * time.Second,
		SessionIdleTTL:  30 * time.Minute,
	}
}

// Load reads configuration from an optional TOML file, local env files and
// environment variables, later sources overriding earlier ones.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CV_CONFIG_FILE")); path != "" {
		fileCfg, err := loadFile(path, cfg)
		if err != nil {
			log.Printf("config: ignoring %s: %v", path, err)
		} else {
			cfg = fileCfg
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = normalizeEnv(getEnv("ENV", cfg.Env))
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		cfg.CORSAllowOrigin = splitAndTrim(raw)
	}
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.SnapshotTTL = getDuration("SNAPSHOT_TTL", cfg.SnapshotTTL)
	cfg.ObjectStoreType = normalizeStoreType(getEnv("OBJECT_STORE", cfg.ObjectStoreType))
	cfg.LocalStoreDir = getEnv("LOCAL_STORE_DIR", cfg.LocalStoreDir)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("S3_PREFIX", cfg.S3Prefix)
	cfg.SSEKMSKeyID = getEnv("SSE_KMS_KEY_ID", cfg.SSEKMSKeyID)
	cfg.ChromePath = getEnv("CHROME_PATH", cfg.ChromePath)
	cfg.ExportTimeout = getDuration("EXPORT_TIMEOUT", cfg.ExportTimeout)
	cfg.ExportArchive = getBool("EXPORT_ARCHIVE", cfg.ExportArchive)
	cfg.SessionIdleTTL = getDuration("SESSION_IDLE_TTL", cfg.SessionIdleTTL)
	cfg.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", cfg.GoogleClientID)
	cfg.GoogleClientSecret = getEnv("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret)
	cfg.GoogleRedirectURL = getEnv("GOOGLE_REDIRECT_URL", cfg.GoogleRedirectURL)
	cfg.UIRedirectURL = getEnv("UI_REDIRECT_URL", cfg.UIRedirectURL)

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}
	if cfg.Env == "production" && cfg.JWTSecret == "" {
		log.Printf("JWT_SECRET is required in production")
	}
	return cfg
}

// IsDevLike reports whether env allows in-memory fallbacks.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid duration %q", key, raw)
		return def
	}
	return val
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: %s invalid bool %q", key, raw)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
