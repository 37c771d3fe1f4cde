// Package config loads storage-engine tuning knobs from an INI file,
// following the defaults-then-overlay pattern used throughout the
// reference stack's server configuration loaders.
package config

import (
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"coredb/pkg/logging"
)

// Config holds every tunable of the storage/concurrency core.
type Config struct {
	// [storage]
	DataDir        string
	PoolSize       int
	HashBucketSize int
	Strict2PL      bool

	// [server]
	Prompt string
}

// Default returns the configuration used when no INI file is present.
func Default() *Config {
	return &Config{
		DataDir:        "./coredb_data",
		PoolSize:       128,
		HashBucketSize: 4,
		Strict2PL:      false,
		Prompt:         "coredb> ",
	}
}

// Load reads path, overlaying any keys it finds onto the defaults. A
// missing file is not an error -- the caller gets Default() back untouched.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	file, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, path)
	if err != nil {
		logging.Log.WithField("path", path).Warn("config file not found, using defaults")
		return cfg, nil
	}

	storage := file.Section("storage")
	if storage.HasKey("data_dir") {
		cfg.DataDir = storage.Key("data_dir").String()
	}
	if storage.HasKey("pool_size") {
		v, err := storage.Key("pool_size").Int()
		if err != nil {
			return nil, errors.Wrap(err, "parse storage.pool_size")
		}
		cfg.PoolSize = v
	}
	if storage.HasKey("hash_bucket_size") {
		v, err := storage.Key("hash_bucket_size").Int()
		if err != nil {
			return nil, errors.Wrap(err, "parse storage.hash_bucket_size")
		}
		cfg.HashBucketSize = v
	}
	if storage.HasKey("strict_two_phase_locking") {
		v, err := storage.Key("strict_two_phase_locking").Bool()
		if err != nil {
			return nil, errors.Wrap(err, "parse storage.strict_two_phase_locking")
		}
		cfg.Strict2PL = v
	}

	server := file.Section("server")
	if server.HasKey("prompt") {
		cfg.Prompt = server.Key("prompt").String()
	}

	return cfg, nil
}
