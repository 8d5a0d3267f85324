// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol parameters: pinned per codec_version, immutable, must match
//     across every node (see genesis.go).
//   - Node settings: runtime configuration that may vary per node without
//     affecting consensus (this file).
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds node-specific runtime configuration. External collaborators
// (transport, RPC surface, wallets) own their own configuration; this core
// only configures what it directly executes: storage location, whether this
// node produces blocks, and logging.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Validation/production (operational, not a consensus rule).
	Producer ProducerConfig

	Log LogConfig

	// RebuildIndexes is a maintenance flag, not persisted in the config file.
	RebuildIndexes bool
}

// ProducerConfig controls whether and how this node proposes blocks when
// it is the local validator's turn (§4.9).
type ProducerConfig struct {
	Enabled      bool   `conf:"producer.enabled"`
	ValidatorKey string `conf:"producer.validatorkey"` // path to the validator's private key file
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.coinjecture
//	macOS:   ~/Library/Application Support/COINjecture
//	Windows: %APPDATA%\COINjecture
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coinjecture"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "COINjecture")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "COINjecture")
		}
		return filepath.Join(home, "AppData", "Roaming", "COINjecture")
	default:
		return filepath.Join(home, ".coinjecture")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the single underlying database directory. Blocks, account
// state, the replay cache, and validator records all live in one Badger
// instance, scoped into separate keyspaces by internal/storage.PrefixDB
// (see internal/chain.New) rather than separate directories.
func (c *Config) DBDir() string {
	return filepath.Join(c.ChainDataDir(), "db")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "coinjecture.conf")
}
