package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed calibration.yaml
var calibrationYAML []byte

// DefaultThreshold is the similarity cutoff the service ships with.
// A probe matches only when its best similarity is strictly greater.
const DefaultThreshold = 0.25

type Config struct {
	Web          WebConfig
	Embedding    EmbeddingConfig
	Verification VerificationConfig
	Database     DatabaseConfig
	Calibration  CalibrationConfig
	Log          LogConfig

	// Warnings lists environment values that were rejected in favour of a default.
	Warnings []error
}

type WebConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string // in addition to localhost, which is always allowed
}

type EmbeddingConfig struct {
	URL     string        // defaults to http://localhost:8000
	Dim     int           // defaults to 512 (buffalo_l / ArcFace)
	Timeout time.Duration // per-image request timeout
}

type VerificationConfig struct {
	Threshold float64
}

type DatabaseConfig struct {
	Backend      string // postgres, mongo or mariadb
	URL          string // connection URL / DSN for the selected backend
	Name         string // database name (mongo only)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type CalibrationConfig struct {
	Thresholds      []float64 `yaml:"thresholds"`
	Pairs           int       `yaml:"pairs"`
	Seed            int64     `yaml:"seed"`
	Persons         int       `yaml:"persons"`
	ImagesPerPerson int       `yaml:"images_per_person"`
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human readable console output instead of JSON
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in [-1, 1]. An unset
// variable yields the default; a set but unusable one yields the default and an error.
func envFloat(key string, defaultVal float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= -1 && f <= 1 {
		return f, nil
	}
	return defaultVal, fmt.Errorf("%s=%q is not a number in [-1, 1], using %v", key, s, defaultVal)
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// defaultCalibration decodes the embedded calibration defaults.
func defaultCalibration() CalibrationConfig {
	var c CalibrationConfig
	if err := yaml.Unmarshal(calibrationYAML, &c); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded calibration.yaml: " + err.Error())
	}
	return c
}

func Load() *Config {
	var warnings []error
	threshold, err := envFloat("FACE_THRESHOLD", DefaultThreshold)
	if err != nil {
		warnings = append(warnings, err)
	}

	return &Config{
		Web: WebConfig{
			Port:           envInt("WEB_PORT", 5000),
			Host:           envString("WEB_HOST", "0.0.0.0"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Embedding: EmbeddingConfig{
			URL:     envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim:     envInt("EMBEDDING_DIM", 512),
			Timeout: envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Verification: VerificationConfig{
			Threshold: threshold,
		},
		Database: DatabaseConfig{
			Backend:      strings.ToLower(envString("DATABASE_BACKEND", "postgres")),
			URL:          os.Getenv("DATABASE_URL"),
			Name:         envString("DATABASE_NAME", "face_auth_db"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Calibration: defaultCalibration(),
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", "info")),
			Pretty: envBool("LOG_PRETTY", true),
		},
		Warnings: warnings,
	}
}
