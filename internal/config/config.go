package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"availgrid/internal/atomicfile"
)

// NOTE: The file format is YAML, but since JSON is a YAML subset an
// existing config.json with the same camelCase keys loads unchanged.

// placeholderURL is the value shipped in sample configs; it is never fetched.
const placeholderURL = "YOUR_ICS_URL_HERE"

// Config is the display and acquisition configuration for one owner.
type Config struct {
	// OwnerName is echoed into the schedule document for the page header.
	OwnerName string `yaml:"ownerName" validate:"required"`

	// WeeklyProjectHours is display-only; it is never used in computation.
	WeeklyProjectHours float64 `yaml:"weeklyProjectHours" validate:"gte=0,lte=168"`

	// Timezone is the IANA zone all busy ranges are expressed in
	// (e.g. "Europe/Berlin"). Floating ICS times are read in this zone too.
	Timezone string `yaml:"timezone" validate:"required,timezone"`

	// WorkdayStart / WorkdayEnd bound the displayed hours: [start:00, end:00).
	WorkdayStart int `yaml:"workdayStart" validate:"gte=0,lt=24"`
	WorkdayEnd   int `yaml:"workdayEnd" validate:"lte=24,gtfield=WorkdayStart"`

	// ICSURLs is a fallback for local testing. The ICS_URLS environment
	// variable takes precedence so feed secrets stay out of the repo.
	ICSURLs []string `yaml:"icsUrls,omitempty"`

	// Refresh is a standard 5-field cron spec used by `availgrid watch`.
	Refresh string `yaml:"refresh" validate:"required,cronspec"`

	// FetchTimeoutSeconds bounds each feed request.
	FetchTimeoutSeconds int `yaml:"fetchTimeoutSeconds" validate:"gte=1,lte=300"`

	// FetchRetries is the number of extra attempts after a failed request.
	FetchRetries int `yaml:"fetchRetries" validate:"gte=0,lte=3"`

	// CacheDir enables conditional GET (ETag / Last-Modified) when set.
	CacheDir string `yaml:"cacheDir,omitempty"`

	// Output is where the schedule document is written.
	Output string `yaml:"output" validate:"required"`

	// MetricsFile, when set, receives run metrics in the Prometheus text
	// format after every run (for the node_exporter textfile collector).
	MetricsFile string `yaml:"metricsFile,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		OwnerName:           "",
		WeeklyProjectHours:  20,
		Timezone:            "UTC",
		WorkdayStart:        8,
		WorkdayEnd:          19,
		Refresh:             "0 6 * * *",
		FetchTimeoutSeconds: 30,
		FetchRetries:        1,
		Output:              "schedule.json",
	}
}

// Load reads the config file at path, layers it over DefaultConfig and
// validates the result.
//
// A missing file is an error: there is no sensible owner name or timezone
// to invent for a page colleagues rely on. Use Save (or `availgrid init`)
// to create one.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: config path is empty", ErrInvalid)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, atomically and with 0600 perms since
// the file may hold feed URLs.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
