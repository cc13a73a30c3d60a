// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package cli implements the apextool command-line interface.
//
// Commands:
//   - convert: turn RTPC/IRTPC files into XML and XML back into binaries
//   - hash: print the name hash of strings
//   - dict: build dictionary files or push them to Redis
//   - sarc, aaf: unpack and repack archives
//
// All commands accept --verbose (-v) for debug logging and --config for a
// TOML settings file. The logger travels through the command context.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the build information shown by --version.
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
}

// app holds state shared by every command of one invocation.
type app struct {
	logger     *log.Logger
	cfg        Config
	configPath string
	verbose    bool
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stderr).ExecuteContext(ctx)
}

// NewRootCommand builds the apextool command tree, logging to stderr.
func NewRootCommand(stderr io.Writer) *cobra.Command {
	a := &app{logger: newLogger(stderr, log.InfoLevel)}

	root := &cobra.Command{
		Use:          "apextool",
		Short:        "Convert Apex engine property containers and archives",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.verbose {
				a.logger.SetLevel(log.DebugLevel)
			}
			cfg, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), a.logger))
			return nil
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("apextool %s (commit %s, built %s)\n", version, commit, date))
	root.SetErr(stderr)

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/apextool/config.toml)")

	root.AddCommand(a.convertCommand())
	root.AddCommand(a.hashCommand())
	root.AddCommand(a.dictCommand())
	root.AddCommand(a.sarcCommand())
	root.AddCommand(a.aafCommand())

	return root
}
