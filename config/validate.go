package config

import (
	"encoding/hex"
	"fmt"
)

// compressedPubKeySize matches crypto.PubKeySize; config does not import
// the crypto package.
const compressedPubKeySize = 33

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}

	switch cfg.Engine.Kind {
	case EngineAuthority:
		if len(cfg.Engine.Authorities) == 0 {
			return fmt.Errorf("engine=authority requires engine.authorities")
		}
		for i, s := range cfg.Engine.Authorities {
			b, err := hex.DecodeString(s)
			if err != nil {
				return fmt.Errorf("engine.authorities[%d]: invalid hex: %w", i, err)
			}
			if len(b) != compressedPubKeySize {
				return fmt.Errorf("engine.authorities[%d]: key must be %d bytes, got %d", i, compressedPubKeySize, len(b))
			}
		}
		if cfg.Engine.ConfirmationDepth == 0 {
			return fmt.Errorf("engine.confirmation_depth must be > 0")
		}
	case EngineWork:
		if cfg.Engine.Difficulty == 0 {
			return fmt.Errorf("engine=work requires engine.difficulty > 0")
		}
	case EngineNull:
	default:
		return fmt.Errorf("engine must be %q, %q, or %q", EngineAuthority, EngineWork, EngineNull)
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}
	return nil
}
