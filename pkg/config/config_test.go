package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (c *testConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	c.valid = true
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("DOODLE_TEST_NAME", "notes")
	path := writeFile(t, "name: ${DOODLE_TEST_NAME}\nport: 9090\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "notes" || cfg.Port != 9090 || !cfg.valid {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeFile(t, "port: 0\n")

	var cfg testConfig
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	cfg := testConfig{Name: "default", Port: 8080}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" || !cfg.valid {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadOptional_OverridesDefaults(t *testing.T) {
	path := writeFile(t, "port: 7000\n")
	cfg := testConfig{Name: "default", Port: 8080}
	if err := LoadOptional(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" || cfg.Port != 7000 {
		t.Errorf("cfg = %+v", cfg)
	}
}
