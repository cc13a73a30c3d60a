// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	apex "github.com/Eonzenex/apex-engine-tools"
)

// dictFlags are the name-source flags shared by commands that resolve
// hashes.
type dictFlags struct {
	files    []string
	redis    string
	redisKey string
}

func (f *dictFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.files, "dict", "d", nil, "dictionary file (.txt, .json, .yaml); repeatable")
	cmd.Flags().StringVar(&f.redis, "redis", "", "Redis address holding a dictionary hash")
	cmd.Flags().StringVar(&f.redisKey, "redis-key", "", "Redis key of the dictionary hash (default "+defaultRedisKey+")")
}

// resolve merges the flags over the config file.
func (f *dictFlags) resolve(cmd *cobra.Command, cfg Config) ([]string, RedisConfig) {
	files := cfg.Dictionaries
	if cmd.Flags().Changed("dict") {
		files = f.files
	}
	rc := cfg.Redis
	if cmd.Flags().Changed("redis") {
		rc.Addr = f.redis
	}
	if cmd.Flags().Changed("redis-key") {
		rc.Key = f.redisKey
	}
	if rc.Key == "" {
		rc.Key = defaultRedisKey
	}
	return files, rc
}

// loadDictionaries merges every configured source. Earlier sources win on
// hash collisions.
func loadDictionaries(ctx context.Context, logger *log.Logger, files []string, rc RedisConfig) (*apex.Dictionary, error) {
	dict := apex.NewDictionary()
	for _, path := range files {
		d, err := apex.LoadDictionary(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded dictionary", "path", path, "names", d.Len())
		dict.Merge(d)
	}
	if rc.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: rc.Addr})
		defer client.Close()
		d, err := apex.LoadDictionaryRedis(ctx, client, rc.Key)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded dictionary", "redis", rc.Addr, "key", rc.Key, "names", d.Len())
		dict.Merge(d)
	}
	return dict, nil
}

// namesFromFiles builds a dictionary from plain name lists or dictionary
// files.
func namesFromFiles(logger *log.Logger, paths []string) (*apex.Dictionary, error) {
	dict := apex.NewDictionary()
	for _, path := range paths {
		d, err := apex.LoadDictionary(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("read names", "path", path, "names", d.Len())
		dict.Merge(d)
	}
	return dict, nil
}

func (a *app) dictCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Build and publish name dictionaries",
	}
	cmd.AddCommand(a.dictBuildCommand())
	cmd.AddCommand(a.dictPushCommand())
	return cmd
}

func (a *app) dictBuildCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "build [lists...]",
		Short: "Merge name lists into one dictionary file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)
			dict, err := namesFromFiles(logger, args)
			if err != nil {
				return err
			}
			if err := dict.Save(out); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("wrote %d names to %s", dict.Len(), out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "names.json", "output file; the extension selects the format")
	return cmd
}

func (a *app) dictPushCommand() *cobra.Command {
	var addr, key string
	cmd := &cobra.Command{
		Use:   "push [lists...]",
		Short: "Store name lists in a Redis hash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			if !cmd.Flags().Changed("redis") {
				addr = a.cfg.Redis.Addr
			}
			if !cmd.Flags().Changed("redis-key") && a.cfg.Redis.Key != "" {
				key = a.cfg.Redis.Key
			}
			if addr == "" {
				return fmt.Errorf("no Redis address: set --redis or [redis] addr in the config")
			}

			prog := newProgress(logger)
			dict, err := namesFromFiles(logger, args)
			if err != nil {
				return err
			}
			client := redis.NewClient(&redis.Options{Addr: addr})
			defer client.Close()
			if err := dict.SaveRedis(cmd.Context(), client, key); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("pushed %d names to %s %s", dict.Len(), addr, key))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "redis", "", "Redis address")
	cmd.Flags().StringVar(&key, "redis-key", defaultRedisKey, "Redis key of the dictionary hash")
	return cmd
}
