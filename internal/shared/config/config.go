package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Env             string
	DataRoot        string
	AuditPlanPath   string
	ReportPath      string
	Port            string
	DatabaseURL     string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	CensusAPIKey    string
	APITimeout      time.Duration
	DefaultACSYear  int
	LogLevel        string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	dataRoot := getEnv("DATA_ROOT", ".")

	return Config{
		Env:             env,
		DataRoot:        dataRoot,
		AuditPlanPath:   getEnv("AUDIT_PLAN", ""),
		ReportPath:      getEnv("REPORT_PATH", filepath.Join("data", "provenance_audit_report.md")),
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     dbURL,
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "none")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", filepath.Join(dataRoot, "published")),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		CensusAPIKey:    os.Getenv("CENSUS_API_KEY"),
		APITimeout:      time.Duration(getEnvInt("API_TIMEOUT", 30)) * time.Second,
		DefaultACSYear:  getEnvInt("DEFAULT_ACS_YEAR", 2023),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// ResolvePath joins a relative path onto DataRoot; absolute paths are returned unchanged.
func (c Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataRoot, p)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config env %s invalid int %q; using %d", key, raw, def)
		return def
	}
	return val
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
	case "local":
		return "local"
	default:
		return "none"
	}
}

// IsDevLike reports whether the environment tolerates in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
