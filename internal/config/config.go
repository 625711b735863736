// Package config loads intcode.toml service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fortiblox/intcode/pkg/checkpoint"
	"github.com/fortiblox/intcode/pkg/executor"
	"github.com/fortiblox/intcode/pkg/programstore"
	"github.com/fortiblox/intcode/pkg/rpc"
)

// ErrUnknownKey is returned when a config file sets a key that nothing reads.
var ErrUnknownKey = errors.New("unknown config key")

// Config is the complete service configuration.
type Config struct {
	// DataDir holds the program store and checkpoint database.
	DataDir string `toml:"data-dir"`

	VM    VM    `toml:"vm"`
	RPC   RPC   `toml:"rpc"`
	Store Store `toml:"store"`

	// Path is the file the config was loaded from (set at load time).
	Path string `toml:"-"`
}

// VM configures machines.
type VM struct {
	MaxCycles   uint64 `toml:"max-cycles"`
	MaxMemory   int64  `toml:"max-memory"`
	MaxSessions int    `toml:"max-sessions"`
	Verbose     bool   `toml:"verbose"`
}

// RPC configures the JSON-RPC server.
type RPC struct {
	Addr             string        `toml:"addr"`
	ExecutionTimeout time.Duration `toml:"execution-timeout"`
	MaxRequestSize   int64         `toml:"max-request-size"`
	EnableCORS       bool          `toml:"enable-cors"`
	AllowedOrigins   []string      `toml:"allowed-origins"`
	LogRequests      bool          `toml:"log-requests"`
}

// Store configures persistence.
type Store struct {
	NoSync          bool `toml:"no-sync"`
	SyncCheckpoints bool `toml:"sync-checkpoints"`
}

// Default returns the default configuration.
func Default() *Config {
	exec := executor.DefaultConfig()
	server := rpc.DefaultConfig()
	return &Config{
		DataDir: "./intcode-data",
		VM: VM{
			MaxCycles:   exec.MaxCycles,
			MaxMemory:   exec.MaxMemory,
			MaxSessions: exec.MaxSessions,
		},
		RPC: RPC{
			Addr:             server.Addr,
			ExecutionTimeout: server.ExecutionTimeout,
			MaxRequestSize:   server.MaxRequestSize,
			EnableCORS:       server.EnableCORS,
		},
		Store: Store{
			SyncCheckpoints: true,
		},
	}
}

// Load parses a config file. Keys the file leaves out keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w in %s: %s", ErrUnknownKey, path, strings.Join(keys, ", "))
	}

	c.Path = path
	if c.DataDir != "" && !filepath.IsAbs(c.DataDir) {
		// Relative data directories are relative to the config file.
		c.DataDir = filepath.Join(filepath.Dir(path), c.DataDir)
	}
	return c, nil
}

// ProgramStorePath returns the program database path.
func (c *Config) ProgramStorePath() string {
	return filepath.Join(c.DataDir, "programs.db")
}

// CheckpointPath returns the checkpoint database directory.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.DataDir, "checkpoints")
}

// ExecutorConfig returns the executor configuration.
func (c *Config) ExecutorConfig() executor.Config {
	return executor.Config{
		MaxCycles:   c.VM.MaxCycles,
		MaxMemory:   c.VM.MaxMemory,
		MaxSessions: c.VM.MaxSessions,
		Verbose:     c.VM.Verbose,
	}
}

// RPCConfig returns the RPC server configuration.
func (c *Config) RPCConfig() rpc.Config {
	cfg := rpc.DefaultConfig()
	cfg.Addr = c.RPC.Addr
	cfg.ExecutionTimeout = c.RPC.ExecutionTimeout
	cfg.MaxRequestSize = c.RPC.MaxRequestSize
	cfg.EnableCORS = c.RPC.EnableCORS
	cfg.AllowedOrigins = c.RPC.AllowedOrigins
	cfg.LogRequests = c.RPC.LogRequests
	return cfg
}

// ProgramStoreConfig returns the program store configuration.
func (c *Config) ProgramStoreConfig() programstore.Config {
	cfg := programstore.DefaultConfig(c.ProgramStorePath())
	cfg.NoSync = c.Store.NoSync
	return cfg
}

// CheckpointConfig returns the checkpoint store configuration.
func (c *Config) CheckpointConfig() checkpoint.Config {
	cfg := checkpoint.DefaultConfig(c.CheckpointPath())
	cfg.SyncWrites = c.Store.SyncCheckpoints
	return cfg
}
