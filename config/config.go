package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string

	// RedisURL enables the cross-process presence source when set.
	RedisURL string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
	R2Endpoint        string

	HostDisconnectGrace   time.Duration
	HostMigrationInterval time.Duration
	HostOfflineGrace      time.Duration
	HostHandoverDebounce  time.Duration
	ReaperInterval        time.Duration
	InactivityThreshold   time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	cfg := &Config{
		DatabaseURL:        dbURL,
		JWTSecretKey:       jwtKey,
		ServerPort:         port,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RedisURL:           os.Getenv("REDIS_URL"),
		R2AccountID:        os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:      os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:  os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:       os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:    os.Getenv("R2_PUBLIC_BASE_URL"),
		R2Endpoint:         os.Getenv("R2_ENDPOINT"),
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"HOST_DISCONNECT_GRACE", 300 * time.Millisecond, &cfg.HostDisconnectGrace},
		{"HOST_MIGRATION_INTERVAL", 5 * time.Second, &cfg.HostMigrationInterval},
		{"HOST_OFFLINE_GRACE", 90 * time.Second, &cfg.HostOfflineGrace},
		{"HOST_HANDOVER_DEBOUNCE", 30 * time.Second, &cfg.HostHandoverDebounce},
		{"REAPER_INTERVAL", 30 * time.Second, &cfg.ReaperInterval},
		{"INACTIVITY_THRESHOLD", 5 * time.Minute, &cfg.InactivityThreshold},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if err := cfg.validateR2(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// R2Enabled reports whether bracket archiving is configured.
func (c *Config) R2Enabled() bool {
	return c.R2BucketName != ""
}

// validateR2 rejects a half-configured bucket: either none of the R2
// variables are set or all required ones are.
func (c *Config) validateR2() error {
	set := map[string]string{
		"R2_ACCESS_KEY_ID":     c.R2AccessKeyID,
		"R2_SECRET_ACCESS_KEY": c.R2SecretAccessKey,
		"R2_BUCKET_NAME":       c.R2BucketName,
	}
	if c.R2Endpoint == "" {
		set["R2_ACCOUNT_ID"] = c.R2AccountID
	}

	var missing []string
	present := 0
	for key, v := range set {
		if v == "" {
			missing = append(missing, key)
		} else {
			present++
		}
	}
	if present > 0 && len(missing) > 0 {
		return fmt.Errorf("incomplete R2 configuration, missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
