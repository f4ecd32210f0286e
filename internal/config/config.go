// Package config loads runtime settings from BEANJAR_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const prefix = "BEANJAR_"

type Config struct {
	Port        string
	DBPath      string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string
	Oracle      OracleConfig
	Snapshot    SnapshotConfig
	Push        PushConfig
}

// PushConfig holds the VAPID key pair for web push. Both keys empty turns
// notifications off.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
}

// OracleConfig points at an OpenAI-compatible endpoint. An empty URL means
// the built-in heuristic answers instead.
type OracleConfig struct {
	URL    string
	Model  string
	APIKey string
}

// SnapshotConfig describes where encrypted database snapshots go. Interval
// zero disables the scheduler; manual snapshots still work.
type SnapshotConfig struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	Passphrase string
	Interval   time.Duration
	Retention  time.Duration
}

// Load reads envFile (if it exists) and then the environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	interval, err := getDuration("SNAPSHOT_INTERVAL", 0)
	if err != nil {
		return nil, err
	}
	retention, err := getDuration("SNAPSHOT_RETENTION", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        getEnvWithDefault("PORT", "8080"),
		DBPath:      getEnvWithDefault("DB_PATH", "beanjar.db"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvWithDefault("LOG_FORMAT", "text"),
		CORSOrigins: splitList(getEnvWithDefault("CORS_ORIGINS", "*")),
		Oracle: OracleConfig{
			URL:    getEnvWithDefault("ORACLE_URL", ""),
			Model:  getEnvWithDefault("ORACLE_MODEL", "llama3.2"),
			APIKey: getEnvWithDefault("ORACLE_API_KEY", ""),
		},
		Snapshot: SnapshotConfig{
			Endpoint:   getEnvWithDefault("SNAPSHOT_ENDPOINT", ""),
			Bucket:     getEnvWithDefault("SNAPSHOT_BUCKET", ""),
			Region:     getEnvWithDefault("SNAPSHOT_REGION", "us-east-1"),
			AccessKey:  getEnvWithDefault("SNAPSHOT_ACCESS_KEY", ""),
			SecretKey:  getEnvWithDefault("SNAPSHOT_SECRET_KEY", ""),
			Prefix:     getEnvWithDefault("SNAPSHOT_PREFIX", "beanjar"),
			Passphrase: getEnvWithDefault("SNAPSHOT_PASSPHRASE", ""),
			Interval:   interval,
			Retention:  retention,
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnvWithDefault("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnvWithDefault("VAPID_PRIVATE_KEY", ""),
			Subject:         getEnvWithDefault("VAPID_SUBJECT", "mailto:noreply@beanjar.local"),
		},
	}, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(prefix + key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnvWithDefault(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", prefix, key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
