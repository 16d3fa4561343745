package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// Apply overlays file values onto the config.
func Apply(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := applyOne(cfg, key, value); err != nil {
			return fmt.Errorf("config %q: %w", key, err)
		}
	}
	return nil
}

func applyOne(cfg *Config, key, value string) error {
	switch key {
	case "datadir":
		cfg.DataDir = value
	case "engine":
		cfg.Engine.Kind = EngineKind(value)
	case "engine.authorities":
		cfg.Engine.Authorities = splitList(value)
	case "engine.confirmation_depth":
		return parseUint(value, &cfg.Engine.ConfirmationDepth)
	case "engine.difficulty":
		return parseUint(value, &cfg.Engine.Difficulty)
	case "engine.step_interval_ms":
		return parseUint(value, &cfg.Engine.StepIntervalMS)
	case "engine.keyfile":
		cfg.Engine.KeyFile = value
	case "log.level":
		cfg.Log.Level = value
	case "log.json":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		cfg.Log.JSON = b
	case "log.file":
		cfg.Log.File = value
	default:
		return fmt.Errorf("unknown key")
	}
	return nil
}

func parseUint(value string, dst *uint64) error {
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
