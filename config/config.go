package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Everything can be set from the
// environment or a .env file in the working directory.
type Config struct {
	DataDir string

	// Persistent store
	StoreDriver string // "sqlite" or "mysql"
	SQLitePath  string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Response cache
	CacheBackend  string // "memory" or "redis"
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Source providers
	EnabledSources   []string
	ProviderTimeout  time.Duration
	PipedAPIURL      string
	PipedRegion      string
	YTDLPEnabled     bool
	SoundCloudAPIURL string
	SoundCloudID     string
	AudiusHost       string
	AudiusAppName    string
	NeteaseAPIURL    string
	NeteaseT2S       bool

	// MinIO offline mirror
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	// HTTP API
	ListenAddr string

	// Logging
	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: could not parse %s=%q, using default %v: %v", key, value, fallback, err)
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
// The data directory is created when missing.
func Load() (*Config, error) {
	// godotenv.Load() does not override variables that are already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not load .env file: %v", err)
	}
	return fromEnv()
}

// Reload re-reads the given env file, overriding the current process environment,
// and rebuilds the configuration.
func Reload(envFile string) (*Config, error) {
	if err := godotenv.Overload(envFile); err != nil {
		return nil, err
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	return &Config{
		DataDir: dataDir,

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:  getEnv("SQLITE_PATH", filepath.Join(dataDir, "library.sqlite3")),
		DBHost:      getEnv("DB_HOST", "127.0.0.1"),
		DBPort:      getEnv("DB_PORT", "3306"),
		DBUser:      getEnv("DB_USER", "root"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      getEnv("DB_NAME", "tunemux"),

		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EnabledSources:   getEnvList("SOURCES", []string{"youtube", "soundcloud", "audius", "netease"}),
		ProviderTimeout:  getEnvDuration("PROVIDER_TIMEOUT", 8*time.Second),
		PipedAPIURL:      getEnv("PIPED_API_URL", "https://pipedapi.kavin.rocks"),
		PipedRegion:      getEnv("PIPED_REGION", "US"),
		YTDLPEnabled:     getEnvBool("YTDLP_ENABLED", false),
		SoundCloudAPIURL: getEnv("SOUNDCLOUD_API_URL", "https://api-v2.soundcloud.com"),
		SoundCloudID:     os.Getenv("SOUNDCLOUD_CLIENT_ID"),
		AudiusHost:       getEnv("AUDIUS_HOST", "https://discoveryprovider.audius.co"),
		AudiusAppName:    getEnv("AUDIUS_APP_NAME", "tunemux"),
		NeteaseAPIURL:    getEnv("NETEASE_API_URL", "http://localhost:3000"),
		NeteaseT2S:       getEnvBool("NETEASE_T2S", false),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "tunemux"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),

		ListenAddr: getEnv("LISTEN_ADDR", "127.0.0.1:8080"),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),
	}, nil
}

// SourceEnabled reports whether the named source is in SOURCES.
func (c *Config) SourceEnabled(name string) bool {
	for _, s := range c.EnabledSources {
		if s == name {
			return true
		}
	}
	return false
}
