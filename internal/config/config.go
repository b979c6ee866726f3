// Package config loads the server configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when Load is given an empty path.
const ConfigPath = "config.yaml"

const (
	defaultSessionTTL     = 7 * 24 * time.Hour
	defaultURLExpiry      = 7 * 24 * time.Hour
	defaultMaxUploadBytes = 50 * 1024 * 1024
	minJWTSecretLen       = 32
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"logLevel"`
	DatabaseURL    string   `yaml:"databaseURL"`
	RedisAddr      string   `yaml:"redisAddr"`
	RedisPassword  string   `yaml:"redisPassword"`
	MinioEndpoint  string   `yaml:"minioEndpoint"`
	MinioAccessKey string   `yaml:"minioAccessKey"`
	MinioSecretKey string   `yaml:"minioSecretKey"`
	MinioBucket    string   `yaml:"minioBucket"`
	MinioUseSSL    bool     `yaml:"minioUseSSL"`
	DataDir        string   `yaml:"dataDir"`
	JWTSecret      string   `yaml:"jwtSecret"`
	JWTIssuer      string   `yaml:"jwtIssuer"`
	JWTAudience    string   `yaml:"jwtAudience"`
	SessionTTL     string   `yaml:"sessionTTL"`
	CallTimeout    string   `yaml:"callTimeout"`
	URLExpiry      string   `yaml:"urlExpiry"`
	Timezone       string   `yaml:"timezone"`
	MaxUploadBytes int64    `yaml:"maxUploadBytes"`
	AMQPURL        string   `yaml:"amqpURL"`
	CrashQueue     string   `yaml:"crashQueue"`
	TrustedProxies []string `yaml:"trustedProxies"`

	SignupRateLimitPerMinute int `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute  int `yaml:"loginRateLimitPerMinute"`
	LoginAlertThreshold      int `yaml:"loginAlertThreshold"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.Port, "EDUSYNC_PORT")
	setString(&cfg.LogLevel, "EDUSYNC_LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		cfg.MinioUseSSL = v == "true"
	}
	setString(&cfg.DataDir, "EDUSYNC_DATA_DIR")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.SessionTTL, "EDUSYNC_SESSION_TTL")
	setString(&cfg.CallTimeout, "EDUSYNC_CALL_TIMEOUT")
	setString(&cfg.URLExpiry, "EDUSYNC_URL_EXPIRY")
	setString(&cfg.Timezone, "EDUSYNC_TIMEZONE")
	setString(&cfg.AMQPURL, "AMQP_URL")
	setString(&cfg.CrashQueue, "EDUSYNC_CRASH_QUEUE")
	if v := os.Getenv("EDUSYNC_TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
	if v := os.Getenv("EDUSYNC_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	setInt(&cfg.SignupRateLimitPerMinute, "EDUSYNC_SIGNUP_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.LoginRateLimitPerMinute, "EDUSYNC_LOGIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.LoginAlertThreshold, "EDUSYNC_LOGIN_ALERT_THRESHOLD")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("config: jwtSecret must be at least %d bytes (set JWT_SECRET)", minJWTSecretLen)
	}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		if cfg.MinioBucket == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
			return errors.New("config: minioBucket, minioAccessKey and minioSecretKey are required with minioEndpoint")
		}
	}
	if cfg.MaxUploadBytes < 0 || cfg.MaxUploadBytes > defaultMaxUploadBytes {
		return fmt.Errorf("config: maxUploadBytes must be between 1 and %d", defaultMaxUploadBytes)
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.LoginAlertThreshold < 0 {
		return errors.New("config: rate limits and alert thresholds must be >= 0")
	}
	for name, raw := range map[string]string{
		"sessionTTL":  cfg.SessionTTL,
		"callTimeout": cfg.CallTimeout,
		"urlExpiry":   cfg.URLExpiry,
	} {
		if _, err := parseDuration(name, raw, 0); err != nil {
			return err
		}
	}
	if _, err := cfg.Location(); err != nil {
		return err
	}
	return nil
}

func parseDuration(name, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", name)
	}
	return dur, nil
}

// SessionDuration is the lifetime of issued session tokens.
func (c FileConfig) SessionDuration() time.Duration {
	d, _ := parseDuration("sessionTTL", c.SessionTTL, defaultSessionTTL)
	if d == 0 {
		return defaultSessionTTL
	}
	return d
}

// CallTimeoutDuration bounds backend calls; zero waits indefinitely.
func (c FileConfig) CallTimeoutDuration() time.Duration {
	d, _ := parseDuration("callTimeout", c.CallTimeout, 0)
	return d
}

func (c FileConfig) URLExpiryDuration() time.Duration {
	d, _ := parseDuration("urlExpiry", c.URLExpiry, defaultURLExpiry)
	if d == 0 {
		return defaultURLExpiry
	}
	return d
}

// Location resolves the timezone that decides where "today" begins.
// Empty means the host's local zone.
func (c FileConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
