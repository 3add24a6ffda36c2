package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHost     = "127.0.0.1"
	defaultPort     = "8090"
	defaultDBPath   = "drivedash.db"
	defaultPageSize = 1000
	defaultQuotaTTL = 15 * time.Minute
	defaultDriveQPS = 10
)

type fileConfig struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	DBPath        string `yaml:"db_path"`
	PageSize      int64  `yaml:"page_size"`
	QuotaTTL      string `yaml:"quota_ttl"`
	DriveQPS      int    `yaml:"drive_qps"`
	AdminPassword string `yaml:"admin_password"`
}

// Config holds runtime settings resolved from the optional YAML file and
// environment overrides.
type Config struct {
	Host          string
	Port          string
	DBPath        string
	PageSize      int64
	QuotaTTL      time.Duration
	DriveQPS      int
	AdminPassword string
}

// Load reads the config file at path (missing file is not an error) and
// applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Host:     defaultHost,
		Port:     defaultPort,
		DBPath:   defaultDBPath,
		PageSize: defaultPageSize,
		QuotaTTL: defaultQuotaTTL,
		DriveQPS: defaultDriveQPS,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			applyFile(cfg, fc)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.PageSize > 0 {
		cfg.PageSize = fc.PageSize
	}
	if fc.QuotaTTL != "" {
		if d, err := time.ParseDuration(fc.QuotaTTL); err == nil && d > 0 {
			cfg.QuotaTTL = d
		}
	}
	if fc.DriveQPS > 0 {
		cfg.DriveQPS = fc.DriveQPS
	}
	if fc.AdminPassword != "" {
		cfg.AdminPassword = fc.AdminPassword
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DRIVEDASH_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DRIVEDASH_ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}
	if v := os.Getenv("DRIVEDASH_QUOTA_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.QuotaTTL = d
		}
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
