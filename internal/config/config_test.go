package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("expected default port 8090, got %s", cfg.Port)
	}
	if cfg.QuotaTTL != 15*time.Minute {
		t.Errorf("expected default quota TTL 15m, got %s", cfg.QuotaTTL)
	}
	if cfg.PageSize != 1000 {
		t.Errorf("expected default page size 1000, got %d", cfg.PageSize)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drivedash.yaml")
	data := "port: \"9000\"\nquota_ttl: 5m\ndrive_qps: 3\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("env should win over file: got %s", cfg.Port)
	}
	if cfg.QuotaTTL != 5*time.Minute {
		t.Errorf("expected quota TTL 5m from file, got %s", cfg.QuotaTTL)
	}
	if cfg.DriveQPS != 3 {
		t.Errorf("expected drive QPS 3 from file, got %d", cfg.DriveQPS)
	}
}

func TestLoad_MissingFileIsNotError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
}
