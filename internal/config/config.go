// Package config provides configuration management for StudySlice.
// Configuration is loaded from environment variables with sensible defaults.
// A .env file in the working directory is honoured when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort            = 5000
	DefaultPlaybackPort    = 8788
	DefaultLogLevel        = "info"
	DefaultDataDir         = ".studyslice"
	DefaultCoordinatorURL  = "http://127.0.0.1:5000"
	DefaultCatalogURL      = "http://127.0.0.1:5000/get-clips/lecture"
	DefaultSessionBackend  = "memory"
	DefaultSessionTTL      = 12 * time.Hour
	DefaultRedisAddr       = "localhost:6379"
	DefaultKafkaTopic      = "studyslice.uploads.completed"
	DefaultS3Bucket        = "sunhacks25"
	DefaultS3Region        = "us-east-1"
	DefaultS3UploadPrefix  = "vids"
	DefaultSlotExpiry      = 3600 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
	DefaultFallbackDelay   = 3 * time.Second
	DefaultDemoModeEnabled = true
	DefaultAutoSelectFirst = true

	// Environment variable names
	EnvPort           = "STUDYSLICE_PORT"
	EnvPlaybackPort   = "STUDYSLICE_PLAYBACK_PORT"
	EnvLogLevel       = "STUDYSLICE_LOG_LEVEL"
	EnvDataDir        = "STUDYSLICE_DATA_DIR"
	EnvCoordinatorURL = "STUDYSLICE_COORDINATOR_URL"
	EnvCatalogURL     = "STUDYSLICE_CATALOG_URL"
	EnvSessionBackend = "STUDYSLICE_SESSION_BACKEND"
	EnvSessionTTL     = "STUDYSLICE_SESSION_TTL"
	EnvRedisAddr      = "STUDYSLICE_REDIS_ADDR"
	EnvRedisPassword  = "STUDYSLICE_REDIS_PASSWORD"
	EnvRedisDB        = "STUDYSLICE_REDIS_DB"
	EnvKafkaBrokers   = "STUDYSLICE_KAFKA_BROKERS"
	EnvKafkaTopic     = "STUDYSLICE_KAFKA_TOPIC"
	EnvS3Bucket       = "STUDYSLICE_S3_BUCKET"
	EnvS3Region       = "STUDYSLICE_S3_REGION"
	EnvS3Prefix       = "STUDYSLICE_S3_PREFIX"
	EnvDemoMode       = "STUDYSLICE_DEMO_MODE"
	EnvAutoSelect     = "STUDYSLICE_AUTO_SELECT"

	// Database filename
	DBFilename = "coordinator.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	PlaybackPort() int
	LogLevel() string
	DataDir() string
	DBPath() string
	CoordinatorURL() string
	CatalogURL() string
	SessionBackend() string
	SessionTTL() time.Duration
	RedisAddr() string
	RedisPassword() string
	RedisDB() int
	KafkaBrokers() []string
	KafkaTopic() string
	S3Bucket() string
	S3Region() string
	S3Prefix() string
	SlotExpiry() time.Duration
	RequestTimeout() time.Duration
	FallbackDelay() time.Duration
	DemoModeEnabled() bool
	AutoSelectFirst() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	playbackPort int
	logLevel     string
	dataDir      string

	coordinatorURL string
	catalogURL     string

	sessionBackend string
	sessionTTL     time.Duration
	redisAddr      string
	redisPassword  string
	redisDB        int

	kafkaBrokers []string
	kafkaTopic   string

	s3Bucket string
	s3Region string
	s3Prefix string

	demoMode   bool
	autoSelect bool
}

// New creates a new EnvConfig with defaults, .env values and environment
// variable overrides. Real environment variables win over .env entries.
func New() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:           DefaultPort,
		playbackPort:   DefaultPlaybackPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		coordinatorURL: DefaultCoordinatorURL,
		catalogURL:     DefaultCatalogURL,
		sessionBackend: DefaultSessionBackend,
		sessionTTL:     DefaultSessionTTL,
		redisAddr:      DefaultRedisAddr,
		kafkaTopic:     DefaultKafkaTopic,
		s3Bucket:       DefaultS3Bucket,
		s3Region:       DefaultS3Region,
		s3Prefix:       DefaultS3UploadPrefix,
		demoMode:       DefaultDemoModeEnabled,
		autoSelect:     DefaultAutoSelectFirst,
	}

	var err error
	if cfg.port, err = portFromEnv(EnvPort, cfg.port); err != nil {
		return nil, err
	}
	if cfg.playbackPort, err = portFromEnv(EnvPlaybackPort, cfg.playbackPort); err != nil {
		return nil, err
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if u := os.Getenv(EnvCoordinatorURL); u != "" {
		cfg.coordinatorURL = strings.TrimRight(u, "/")
	}
	if u := os.Getenv(EnvCatalogURL); u != "" {
		cfg.catalogURL = u
	}

	if sb := os.Getenv(EnvSessionBackend); sb != "" {
		sb = strings.ToLower(sb)
		if sb != "memory" && sb != "redis" {
			return nil, fmt.Errorf("invalid %s: must be memory or redis", EnvSessionBackend)
		}
		cfg.sessionBackend = sb
	}
	if ttl := os.Getenv(EnvSessionTTL); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSessionTTL, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvSessionTTL)
		}
		cfg.sessionTTL = d
	}

	if ra := os.Getenv(EnvRedisAddr); ra != "" {
		cfg.redisAddr = ra
	}
	cfg.redisPassword = os.Getenv(EnvRedisPassword)
	if rdb := os.Getenv(EnvRedisDB); rdb != "" {
		n, err := strconv.Atoi(rdb)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvRedisDB, err)
		}
		cfg.redisDB = n
	}

	if kb := os.Getenv(EnvKafkaBrokers); kb != "" {
		for _, b := range strings.Split(kb, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.kafkaBrokers = append(cfg.kafkaBrokers, b)
			}
		}
	}
	if kt := os.Getenv(EnvKafkaTopic); kt != "" {
		cfg.kafkaTopic = kt
	}

	if b := os.Getenv(EnvS3Bucket); b != "" {
		cfg.s3Bucket = b
	}
	if r := os.Getenv(EnvS3Region); r != "" {
		cfg.s3Region = r
	}
	if p, ok := os.LookupEnv(EnvS3Prefix); ok {
		cfg.s3Prefix = strings.Trim(p, "/")
	}

	if dm := os.Getenv(EnvDemoMode); dm != "" {
		v, err := strconv.ParseBool(dm)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvDemoMode, err)
		}
		cfg.demoMode = v
	}
	if as := os.Getenv(EnvAutoSelect); as != "" {
		v, err := strconv.ParseBool(as)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvAutoSelect, err)
		}
		cfg.autoSelect = v
	}

	return cfg, nil
}

func portFromEnv(key string, def int) (int, error) {
	p := os.Getenv(key)
	if p == "" {
		return def, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid %s: port must be between 1 and 65535", key)
	}
	return port, nil
}

// Port returns the coordinator HTTP port
func (c *EnvConfig) Port() int {
	return c.port
}

// PlaybackPort returns the loopback port of the local playback server
func (c *EnvConfig) PlaybackPort() int {
	return c.playbackPort
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the coordinator's SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// CoordinatorURL returns the base URL of the upload coordinator
func (c *EnvConfig) CoordinatorURL() string {
	return c.coordinatorURL
}

// CatalogURL returns the clip document location (http(s) URL or file path)
func (c *EnvConfig) CatalogURL() string {
	return c.catalogURL
}

func (c *EnvConfig) SessionBackend() string {
	return c.sessionBackend
}

func (c *EnvConfig) SessionTTL() time.Duration {
	return c.sessionTTL
}

func (c *EnvConfig) RedisAddr() string {
	return c.redisAddr
}

func (c *EnvConfig) RedisPassword() string {
	return c.redisPassword
}

func (c *EnvConfig) RedisDB() int {
	return c.redisDB
}

// KafkaBrokers returns the broker list; empty disables event publishing
func (c *EnvConfig) KafkaBrokers() []string {
	return c.kafkaBrokers
}

func (c *EnvConfig) KafkaTopic() string {
	return c.kafkaTopic
}

func (c *EnvConfig) S3Bucket() string {
	return c.s3Bucket
}

func (c *EnvConfig) S3Region() string {
	return c.s3Region
}

// S3Prefix returns the key prefix for uploaded videos, without slashes
func (c *EnvConfig) S3Prefix() string {
	return c.s3Prefix
}

func (c *EnvConfig) SlotExpiry() time.Duration {
	return DefaultSlotExpiry
}

func (c *EnvConfig) RequestTimeout() time.Duration {
	return DefaultRequestTimeout
}

func (c *EnvConfig) FallbackDelay() time.Duration {
	return DefaultFallbackDelay
}

// DemoModeEnabled reports whether an unreachable backend degrades to the
// demo upload instead of staying failed
func (c *EnvConfig) DemoModeEnabled() bool {
	return c.demoMode
}

// AutoSelectFirst reports whether the results view opens with the first clip
// selected
func (c *EnvConfig) AutoSelectFirst() bool {
	return c.autoSelect
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
