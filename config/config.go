// Package config loads the TOML configuration pair every ehash binary
// takes on the command line (-c local, -g global) and merges them with
// the same "global provides defaults, local overrides" precedence the
// source stack uses.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Pool is the pool binary's configuration shape.
type Pool struct {
	TCPAddress   string `toml:"tcp_address"`
	HTTPAddress  string `toml:"http_address"`
	StatsAddress string `toml:"stats_address"`
	DBPath       string `toml:"db_path"`
	MintHubAddr  string `toml:"mint_hub_address"`
}

// Proxy is the proxy binary's configuration shape.
type Proxy struct {
	PoolAddress  string `toml:"pool_address"`
	HTTPAddress  string `toml:"http_address"`
	StatsAddress string `toml:"stats_address"`
	DBPath       string `toml:"db_path"`
	MintURL      string `toml:"mint_url"`
}

// Collector is shared by both stats-collector binaries.
type Collector struct {
	TCPAddress  string `toml:"tcp_address"`
	HTTPAddress string `toml:"http_address"`
}

// Load reads globalPath then localPath (each optional) into dst,
// TOML-unmarshaling local on top of whatever global already populated so
// local values win on a field-by-field basis.
func Load(dst any, globalPath, localPath string) error {
	for _, path := range []string{globalPath, localPath} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	return nil
}

// RequireNonEmpty returns an error naming an empty required field (when
// several are empty, which one is named follows map iteration order and
// is not defined). The pool and both stats-collector binaries call it
// during startup validation before they touch the network or disk.
func RequireNonEmpty(fields map[string]string) error {
	for name, v := range fields {
		if v == "" {
			return fmt.Errorf("config: required field %q is empty", name)
		}
	}
	return nil
}
