package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Env holds settings that come from the process environment rather than
// the config file. ICS_URLS is the feed secret injected by the scheduler.
type Env struct {
	ICSURLs   string `envconfig:"ICS_URLS"`
	LogLevel  string `envconfig:"AVAILGRID_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"AVAILGRID_LOG_FORMAT" default:"console"`
}

// LoadEnv reads Env from the environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("", &e); err != nil {
		return Env{}, fmt.Errorf("%w: environment: %v", ErrInvalid, err)
	}
	return e, nil
}

// ApplyEnv lets a non-blank ICS_URLS replace the file's icsUrls.
func (c *Config) ApplyEnv(e Env) {
	if strings.TrimSpace(e.ICSURLs) == "" {
		return
	}
	c.ICSURLs = SplitURLs(e.ICSURLs)
}

// FeedURLs returns the configured feed URLs, trimmed, without blanks or the
// sample placeholder. An empty result is valid and yields an all-free grid.
func (c *Config) FeedURLs() []string {
	out := make([]string, 0, len(c.ICSURLs))
	for _, u := range c.ICSURLs {
		u = strings.TrimSpace(u)
		if u == "" || u == placeholderURL {
			continue
		}
		out = append(out, u)
	}
	return out
}

// SplitURLs parses a comma-separated URL list.
func SplitURLs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
