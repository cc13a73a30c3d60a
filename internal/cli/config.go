// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the optional apextool settings file. Command-line flags take
// precedence over every field.
type Config struct {
	Dictionaries []string    `toml:"dictionaries"`
	Sort         bool        `toml:"sort"`
	Out          string      `toml:"out"`
	Redis        RedisConfig `toml:"redis"`
}

// RedisConfig locates a dictionary stored as a Redis hash.
type RedisConfig struct {
	Addr string `toml:"addr"`
	Key  string `toml:"key"`
}

const defaultRedisKey = "apex:names"

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "apextool", "config.toml")
}

// loadConfig reads path, or the default location when path is empty. A
// missing default file yields the zero Config.
func loadConfig(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	// Relative dictionary paths are relative to the config file.
	base := filepath.Dir(path)
	for i, d := range cfg.Dictionaries {
		if !filepath.IsAbs(d) {
			cfg.Dictionaries[i] = filepath.Join(base, d)
		}
	}
	return cfg, nil
}
