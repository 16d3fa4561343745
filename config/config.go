// Package config handles node configuration.
//
// The consensus engine is selected here, at startup: the import pipeline
// is built against whichever engine the operator configured, and the
// choice never changes while the node runs.
package config

import (
	"os"
	"path/filepath"
)

// EngineKind selects the consensus engine.
type EngineKind string

const (
	// EngineAuthority is round-scheduled proof-of-authority.
	EngineAuthority EngineKind = "authority"
	// EngineWork is proof-of-work with external sealing.
	EngineWork EngineKind = "work"
	// EngineNull accepts everything; development chains only.
	EngineNull EngineKind = "null"
)

// Config holds node-specific runtime configuration.
type Config struct {
	DataDir string `conf:"datadir"`

	Engine EngineConfig

	Log LogConfig
}

// EngineConfig holds consensus engine settings.
type EngineConfig struct {
	// Kind selects the engine implementation.
	Kind EngineKind `conf:"engine"`

	// Authorities is the genesis authority set as hex-encoded compressed
	// public keys (authority engine only).
	Authorities []string `conf:"engine.authorities"`

	// ConfirmationDepth is the burial depth before a signalled epoch
	// transition is treated as final (authority engine only).
	ConfirmationDepth uint64 `conf:"engine.confirmation_depth"`

	// Difficulty is the fixed work target (work engine only).
	Difficulty uint64 `conf:"engine.difficulty"`

	// StepIntervalMS is the scheduler cadence for Step in milliseconds.
	StepIntervalMS uint64 `conf:"engine.step_interval_ms"`

	// KeyFile is the encrypted signing key path, relative to DataDir
	// when not absolute. Empty means this node does not seal.
	KeyFile string `conf:"engine.keyfile"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	JSON  bool   `conf:"log.json"`
	File  string `conf:"log.file"`
}

// Default returns the default node configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Engine: EngineConfig{
			Kind:              EngineAuthority,
			ConfirmationDepth: 5,
			Difficulty:        1 << 20,
			StepIntervalMS:    1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultDataDir returns the platform default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".oberon"
	}
	return filepath.Join(home, ".oberon")
}

// KeyFilePath resolves the configured key file against the data directory.
func (c *Config) KeyFilePath() string {
	if c.Engine.KeyFile == "" || filepath.IsAbs(c.Engine.KeyFile) {
		return c.Engine.KeyFile
	}
	return filepath.Join(c.DataDir, c.Engine.KeyFile)
}
