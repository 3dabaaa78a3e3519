// Package config loads the run configuration from flags, environment variables
// and an optional dotenv file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// Configuration keys. Each key is also read from the upper-cased environment variable.
const (
	KeyToken        = "github_token"
	KeyBaseURL      = "github_base_url"
	KeyRepositories = "repositories"
	KeyDays         = "days"
	KeyDateRange    = "date_range"
	KeyExcluded     = "excluded_users"
	KeyOutputDir    = "output_dir"
	KeyConcurrency  = "concurrency"
)

// DefaultEnvFile is read when present and no other file is configured.
const DefaultEnvFile = ".env"

// Config is the validated configuration of a run.
type Config struct {
	Token        string
	BaseURL      string
	Repositories []string
	Window       domain.TimeWindow
	Excluded     []string
	OutputDir    string
	Concurrency  int
}

// NewViper returns a viper instance reading the configuration keys from the environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(KeyOutputDir, ".")
	v.SetDefault(KeyConcurrency, 0)
	return v
}

// ReadEnvFile merges a dotenv file into v. A missing default file is not an error.
func ReadEnvFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return domain.ConfigurationError("cannot read env file %s: %w", path, err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return domain.ConfigurationError("cannot parse env file %s: %w", path, err)
	}
	return nil
}

// Load validates the configuration held by v. Every problem is a configuration error.
func Load(v *viper.Viper, now time.Time) (*Config, error) {
	token := strings.TrimSpace(v.GetString(KeyToken))
	if token == "" {
		return nil, domain.ConfigurationError("GITHUB_TOKEN is not set")
	}
	repos := splitList(v.GetString(KeyRepositories))
	if len(repos) == 0 {
		return nil, domain.ConfigurationError("REPOSITORIES is not set")
	}

	// A date range makes the day count irrelevant, even a malformed one.
	days := 0
	interval := v.GetString(KeyDateRange)
	if raw := strings.TrimSpace(v.GetString(KeyDays)); raw != "" && strings.TrimSpace(interval) == "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, domain.ConfigurationError("DAYS must be an integer, got %q", raw)
		}
		days = n
	}
	window, err := domain.ResolveWindow(now, days, interval)
	if err != nil {
		return nil, err
	}

	concurrency := 0
	if raw := strings.TrimSpace(v.GetString(KeyConcurrency)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, domain.ConfigurationError("CONCURRENCY must be an integer, got %q", raw)
		}
		concurrency = n
	}
	if concurrency < 0 {
		return nil, domain.ConfigurationError("CONCURRENCY must not be negative, got %d", concurrency)
	}

	return &Config{
		Token:        token,
		BaseURL:      strings.TrimSpace(v.GetString(KeyBaseURL)),
		Repositories: repos,
		Window:       window,
		Excluded:     splitList(v.GetString(KeyExcluded)),
		OutputDir:    v.GetString(KeyOutputDir),
		Concurrency:  concurrency,
	}, nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
