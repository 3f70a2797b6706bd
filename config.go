package curium

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeConfig configures a Node's runtime behavior. It is independent of the
// transport, which is configured separately (see broker.RedisAdapterConfig).
type NodeConfig struct {
	// SweepInterval is how often finalized response handlers are checked for
	// and removed from the handler map.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// DefaultNumWorkers bounds how many commands RecvUntilClose executes
	// concurrently.
	DefaultNumWorkers int `yaml:"default_num_workers"`
	// DefaultResponseTimeout is used by Send when the caller does not supply
	// its own response handler or timeout.
	DefaultResponseTimeout time.Duration `yaml:"default_response_timeout"`
}

// DefaultNodeConfig returns the configuration used when none is supplied: a
// 10ms sweep interval, a worker pool sized to the host (minimum 3), and a
// 30s default response timeout.
func DefaultNodeConfig() NodeConfig {
	workers := runtime.NumCPU()
	if workers < 3 {
		workers = 3
	}
	return NodeConfig{
		SweepInterval:          10 * time.Millisecond,
		DefaultNumWorkers:      workers,
		DefaultResponseTimeout: 30 * time.Second,
	}
}

func (c NodeConfig) withDefaults() NodeConfig {
	d := DefaultNodeConfig()
	if c.SweepInterval == 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.DefaultNumWorkers == 0 {
		c.DefaultNumWorkers = d.DefaultNumWorkers
	}
	if c.DefaultResponseTimeout == 0 {
		c.DefaultResponseTimeout = d.DefaultResponseTimeout
	}
	return c
}

// LoadNodeConfig reads and parses a YAML NodeConfig from path.
func LoadNodeConfig(path string) (NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("curium: reading config %s: %w", path, err)
	}
	var cfg NodeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("curium: parsing config %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}
