// Package config reads process settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port string

	DB DBConfig

	LogLevel logrus.Level

	PublicDir string
	// UploadDir is always PublicDir/uploads so saved files stay reachable
	// under /public/uploads/.
	UploadDir        string
	MaxUploadBytes   int64
	CleanupQueueSize int

	StableOrder   bool
	HashPasswords bool

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

type DBConfig struct {
	Driver       string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	WaitAttempts int
}

// DSN returns a key/value connection string understood by both lib/pq and pgx.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Load reads the configuration. Values already present in the environment
// win over the .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getEnv("PORT", "3000"),
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "laptop_store"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		LogLevel:     level,
		PublicDir:    getEnv("PUBLIC_DIR", "public"),
		KafkaTopic:   getEnv("KAFKA_CHANGES_TOPIC", "store.changes"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "change-monitor"),
	}
	cfg.UploadDir = filepath.Join(cfg.PublicDir, "uploads")

	if cfg.DB.WaitAttempts, err = getInt("DB_WAIT_ATTEMPTS", 30); err != nil {
		return Config{}, err
	}
	maxUploadMB, err := getInt("MAX_UPLOAD_MB", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) << 20
	if cfg.CleanupQueueSize, err = getInt("CLEANUP_QUEUE_SIZE", 128); err != nil {
		return Config{}, err
	}
	if cfg.StableOrder, err = getBool("LIST_STABLE_ORDER", true); err != nil {
		return Config{}, err
	}
	if cfg.HashPasswords, err = getBool("HASH_CUSTOMER_PASSWORDS", false); err != nil {
		return Config{}, err
	}

	for _, b := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	switch cfg.DB.Driver {
	case "postgres", "pgx":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be postgres or pgx, got %q", cfg.DB.Driver)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
