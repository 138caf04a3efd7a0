// Package appconf holds runtime configuration for the mouzamap service.
package appconf

import (
	"fmt"
	"strings"
)

// Environment selects environment-specific behavior such as debug routes
// and the in-memory catalog requirement for tests.
type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// EnvFlagToEnvironment maps a flag or environment variable value to an
// Environment. Unknown values are Development.
func EnvFlagToEnvironment(env string) Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return Production
	case "test", "testing":
		return Test
	default:
		return Development
	}
}

// Config is the resolved configuration.
type Config struct {
	Port      int
	Env       Environment
	ApiKeys   []string
	AdminKey  string
	Verbose   bool
	RateLimit int

	DataDir       string
	DistrictsFile string
	MouzasFile    string
	DistrictKeys  []string
	MouzaKeys     []string
	UseSample     bool

	CatalogPath string
	WebDir      string

	LogFormat string
	LogLevel  string
}

// Validate reports configuration that would prevent the service from
// starting.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit)
	}
	if c.Env == Test && c.CatalogPath != "" && c.CatalogPath != ":memory:" {
		return fmt.Errorf("test environment must use an in-memory catalog, got %s", c.CatalogPath)
	}
	if c.DistrictsFile == "" && !c.UseSample {
		return fmt.Errorf("no districts file configured and sample data disabled")
	}
	return nil
}

// ParseAPIKeys splits a comma separated key list and trims each entry.
// Empty entries are kept so that a stray comma is visible to validation.
func ParseAPIKeys(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
