package config

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed tenants.yaml
var tenantsYAML embed.FS

// Registry holds every tenant and its scraping sources.
type Registry struct {
	Tenants []TenantConfig `yaml:"tenants"`
}

// TenantConfig defines one council (or the shared statewide tenant) and
// the sources refreshed on its behalf.
type TenantConfig struct {
	Slug       string         `yaml:"slug"`
	Name       string         `yaml:"name"`
	State      string         `yaml:"state"`
	Population int            `yaml:"population,omitempty"`
	Priorities []string       `yaml:"priorities,omitempty"`
	Shared     bool           `yaml:"shared,omitempty"` // records visible to all tenants
	Sources    []SourceConfig `yaml:"sources"`
}

// SourceConfig defines a single listing page to scrape.
type SourceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`

	// Optional per-source overrides.
	FollowDetails  *bool `yaml:"follow_details,omitempty"`
	TimeoutSeconds int   `yaml:"timeout_seconds,omitempty"`
}

// LoadRegistry reads the tenant registry from path, falling back to the
// embedded default when the file does not exist. An empty registry is an
// error: there is nothing meaningful the system can do without tenants.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		data, err = tenantsYAML.ReadFile("tenants.yaml")
		if err != nil {
			return nil, err
		}
	}

	// Allow ${VAR} references inside source URLs.
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse tenant registry: %w", err)
	}
	if len(reg.Tenants) == 0 {
		return nil, fmt.Errorf("tenant registry %s contains no tenants", path)
	}
	return &reg, nil
}

// Tenant returns the config for slug, or nil when unknown.
func (r *Registry) Tenant(slug string) *TenantConfig {
	for i := range r.Tenants {
		if r.Tenants[i].Slug == slug {
			return &r.Tenants[i]
		}
	}
	return nil
}
