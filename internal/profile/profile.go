package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the runtime configuration for the task specification engine.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where taskbot stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Addr is the binding address for the HTTP API
	Addr string
	// Port is the binding port for the HTTP API
	Port int
	// Version is the current version of the engine
	Version string

	// LLM configuration
	LLMAPIKey    string // TASKBOT_LLM_API_KEY
	LLMBaseURL   string // TASKBOT_LLM_BASE_URL (default: https://api.openai.com/v1)
	LLMModel     string // TASKBOT_LLM_MODEL (default: gpt-4o-mini)
	LLMMaxRetry  int    // TASKBOT_LLM_MAX_RETRY (default: 3)
	LLMTimeoutMS int    // TASKBOT_LLM_TIMEOUT_MS (default: 30000)

	// Session lifecycle
	SessionIdleTimeout time.Duration // TASKBOT_SESSION_IDLE_TIMEOUT (default: 30m)

	// Canonical timezone used for absolute due dates.
	CanonicalTimezone string // TASKBOT_CANONICAL_TZ (default: UTC)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMEnabled returns true if an extraction backend is configured.
func (p *Profile) IsLLMEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMBaseURL != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// FromEnv loads configuration from TASKBOT_* environment variables.
func (p *Profile) FromEnv() {
	if p.Mode == "" {
		p.Mode = getEnvOrDefault("TASKBOT_MODE", "demo")
	}
	if p.Driver == "" {
		p.Driver = getEnvOrDefault("TASKBOT_DRIVER", "sqlite")
	}
	if p.DSN == "" {
		p.DSN = os.Getenv("TASKBOT_DSN")
	}
	if p.Data == "" {
		p.Data = getEnvOrDefault("TASKBOT_DATA", ".")
	}
	if p.Addr == "" {
		p.Addr = os.Getenv("TASKBOT_ADDR")
	}
	if p.Port == 0 {
		p.Port = getIntEnvOrDefault("TASKBOT_PORT", 8082)
	}

	p.LLMAPIKey = getEnvOrDefault("TASKBOT_LLM_API_KEY", p.LLMAPIKey)
	p.LLMBaseURL = getEnvOrDefault("TASKBOT_LLM_BASE_URL", "https://api.openai.com/v1")
	p.LLMModel = getEnvOrDefault("TASKBOT_LLM_MODEL", "gpt-4o-mini")
	p.LLMMaxRetry = getIntEnvOrDefault("TASKBOT_LLM_MAX_RETRY", 3)
	p.LLMTimeoutMS = getIntEnvOrDefault("TASKBOT_LLM_TIMEOUT_MS", 30000)

	if raw := os.Getenv("TASKBOT_SESSION_IDLE_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			p.SessionIdleTimeout = d
		}
	}
	if p.SessionIdleTimeout == 0 {
		p.SessionIdleTimeout = 30 * time.Minute
	}

	p.CanonicalTimezone = getEnvOrDefault("TASKBOT_CANONICAL_TZ", "UTC")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and fills driver-dependent defaults.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("taskbot_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires TASKBOT_DSN")
	}

	if p.LLMMaxRetry <= 0 {
		p.LLMMaxRetry = 3
	}

	return nil
}
