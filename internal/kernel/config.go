package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	yaml "github.com/goccy/go-yaml"
)

// Config mirrors kernel.yml (or kernel.toml).
type Config struct {
	MaxTasks    int    `yaml:"max_tasks" toml:"max_tasks"`       // 16 (by default)
	MaxMutexes  int    `yaml:"max_mutexes" toml:"max_mutexes"`   // 8
	MaxEvents   int    `yaml:"max_events" toml:"max_events"`     // 8
	StackSize   int    `yaml:"stack_size" toml:"stack_size"`     // 256 bytes per task
	TickModulus uint32 `yaml:"tick_modulus" toml:"tick_modulus"` // 100 ticks per epoch
	TickMS      int    `yaml:"tick_ms" toml:"tick_ms"`           // 10 ms per tick
	MaxTaskIDs  int    `yaml:"max_task_ids" toml:"max_task_ids"` // ids handed out per session
	DebugFill   bool   `yaml:"debug_fill" toml:"debug_fill"`     // fill initial register slots with 0..33
}

const (
	maxTaskSlots  = 1024
	maxSyncSlots  = 255
	minStackSize  = 64
	maxTaskIDCeil = 65535
)

// DefaultConfig is used when no file is given or a key is left out.
func DefaultConfig() Config {
	return Config{
		MaxTasks:    16,
		MaxMutexes:  8,
		MaxEvents:   8,
		StackSize:   256,
		TickModulus: 100,
		TickMS:      10,
		MaxTaskIDs:  maxTaskIDCeil,
		DebugFill:   true,
	}
}

// Load reads YAML (or TOML, by extension) and overrides defaults.
// An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.clamp()
	return cfg, nil
}

// sanity clamps
func (c *Config) clamp() {
	d := DefaultConfig()
	if c.MaxTasks < 2 {
		// room for at least one task next to the idle task
		c.MaxTasks = 2
	} else if c.MaxTasks > maxTaskSlots {
		c.MaxTasks = maxTaskSlots
	}
	if c.MaxMutexes < 0 {
		c.MaxMutexes = d.MaxMutexes
	} else if c.MaxMutexes > maxSyncSlots {
		c.MaxMutexes = maxSyncSlots
	}
	if c.MaxEvents < 0 {
		c.MaxEvents = d.MaxEvents
	} else if c.MaxEvents > maxSyncSlots {
		c.MaxEvents = maxSyncSlots
	}
	if c.StackSize < minStackSize {
		c.StackSize = minStackSize
	}
	if c.TickModulus == 0 {
		c.TickModulus = d.TickModulus
	}
	if c.TickMS <= 0 {
		c.TickMS = d.TickMS
	}
	if c.MaxTaskIDs <= 0 || c.MaxTaskIDs > maxTaskIDCeil {
		c.MaxTaskIDs = maxTaskIDCeil
	}
}
