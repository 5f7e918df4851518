// Package config loads the coordinator configuration from a YAML or JSON
// file with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aidline/aidline/core/dispatch"
	"github.com/aidline/aidline/core/factory"
	infraauth "github.com/aidline/aidline/infra/auth"
	"github.com/aidline/aidline/infra/mqtt"
	infrastore "github.com/aidline/aidline/infra/store"
)

type Config struct {
	MQTT     mqtt.Config     `json:"mqtt"`
	Dispatch dispatch.Config `json:"dispatch"`
	Metrics  MetricsConfig   `json:"metrics"`
	Auth     AuthConfig      `json:"auth"`
	Store    StoreConfig     `json:"store"`
	API      APIConfig       `json:"api"`
}

// MetricsConfig selects the metrics sinks and the Prometheus listen address.
type MetricsConfig struct {
	Sinks          []factory.ModuleConfig `json:"sinks"`
	PrometheusAddr string                 `json:"prometheus_addr"`
}

// AuthConfig selects the credential verifier.
type AuthConfig struct {
	// Mode is "jwt" or "static".
	Mode string           `json:"mode"`
	JWT  infraauth.Config `json:"jwt"`
	// Static maps credentials to identities when Mode is "static".
	Static map[string]StaticIdentity `json:"static"`
}

// StaticIdentity is one entry of the static credential table.
type StaticIdentity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// StoreConfig selects the case repository backend.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend string                 `json:"backend"`
	Redis   infrastore.RedisConfig `json:"redis"`
	// Responders seeds the responder directory at startup.
	Responders []ResponderSeed `json:"responders"`
}

// ResponderSeed is one responder organization loaded at startup.
type ResponderSeed struct {
	OrganizationID string   `json:"organization_id"`
	Kind           string   `json:"kind"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	Availability   string   `json:"availability"`
	MemberIDs      []string `json:"member_ids"`
}

// APIConfig configures the read-only HTTP surface.
type APIConfig struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("AID_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "aid_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies sane defaults to all sections.
func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	if c.Auth.Mode == "" {
		c.Auth.Mode = "jwt"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
}

// Validate checks mandatory fields.
func (c *Config) Validate() error {
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWT.Secret == "" {
			return fmt.Errorf("auth.jwt.secret is required in jwt mode")
		}
	case "static":
		if len(c.Auth.Static) == 0 {
			return fmt.Errorf("auth.static requires at least one credential")
		}
	default:
		return fmt.Errorf("unknown auth mode %s", c.Auth.Mode)
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %s", c.Store.Backend)
	}
	return nil
}
