package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testAuthority = "02" + "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func writeConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.conf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConf(t, `
# node settings
datadir = /var/lib/oberon
engine = work
engine.difficulty = 4096

log.level = "debug"
`)
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	want := map[string]string{
		"datadir":           "/var/lib/oberon",
		"engine":            "work",
		"engine.difficulty": "4096",
		"log.level":         "debug",
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("values[%q] = %q, want %q", k, values[k], v)
		}
	}
	if len(values) != len(want) {
		t.Errorf("got %d values, want %d", len(values), len(want))
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("missing file produced %d values", len(values))
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := writeConf(t, "no equals sign here\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("malformed line accepted")
	}
}

func TestApply(t *testing.T) {
	cfg := Default()
	values := map[string]string{
		"datadir":                   "/tmp/chain",
		"engine":                    "authority",
		"engine.authorities":        testAuthority + ", " + testAuthority,
		"engine.confirmation_depth": "3",
		"engine.step_interval_ms":   "250",
		"engine.keyfile":            "signing.key",
		"log.json":                  "true",
	}
	if err := Apply(cfg, values); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if cfg.DataDir != "/tmp/chain" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Engine.Kind != EngineAuthority {
		t.Errorf("Kind = %q", cfg.Engine.Kind)
	}
	if len(cfg.Engine.Authorities) != 2 {
		t.Errorf("Authorities = %v", cfg.Engine.Authorities)
	}
	if cfg.Engine.ConfirmationDepth != 3 {
		t.Errorf("ConfirmationDepth = %d", cfg.Engine.ConfirmationDepth)
	}
	if cfg.Engine.StepIntervalMS != 250 {
		t.Errorf("StepIntervalMS = %d", cfg.Engine.StepIntervalMS)
	}
	if !cfg.Log.JSON {
		t.Error("Log.JSON not set")
	}
}

func TestApply_UnknownKey(t *testing.T) {
	cfg := Default()
	err := Apply(cfg, map[string]string{"engien": "work"})
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Errorf("unknown key: got %v", err)
	}
}

func TestApply_BadValue(t *testing.T) {
	cfg := Default()
	if err := Apply(cfg, map[string]string{"engine.difficulty": "lots"}); err == nil {
		t.Error("non-numeric difficulty accepted")
	}
	if err := Apply(cfg, map[string]string{"log.json": "maybe"}); err == nil {
		t.Error("non-boolean log.json accepted")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Engine.Authorities = []string{testAuthority}
	if err := Validate(cfg); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty datadir", func(c *Config) { c.DataDir = "" }},
		{"unknown engine", func(c *Config) { c.Engine.Kind = "stake" }},
		{"authority without set", func(c *Config) { c.Engine.Authorities = nil }},
		{"bad authority hex", func(c *Config) { c.Engine.Authorities = []string{"zz"} }},
		{"short authority key", func(c *Config) { c.Engine.Authorities = []string{"0102"} }},
		{"zero depth", func(c *Config) { c.Engine.ConfirmationDepth = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.Engine.Authorities = []string{testAuthority}
			tt.mutate(c)
			if err := Validate(c); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}

	work := Default()
	work.Engine.Kind = EngineWork
	work.Engine.Difficulty = 0
	if err := Validate(work); err == nil {
		t.Error("work engine with zero difficulty accepted")
	}
}

func TestKeyFilePath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	cfg.Engine.KeyFile = ""
	if got := cfg.KeyFilePath(); got != "" {
		t.Errorf("empty keyfile resolved to %q", got)
	}
	cfg.Engine.KeyFile = "signing.key"
	if got := cfg.KeyFilePath(); got != filepath.Join("/data", "signing.key") {
		t.Errorf("relative keyfile resolved to %q", got)
	}
	cfg.Engine.KeyFile = "/abs/signing.key"
	if got := cfg.KeyFilePath(); got != "/abs/signing.key" {
		t.Errorf("absolute keyfile resolved to %q", got)
	}
}
