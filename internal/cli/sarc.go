// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	apex "github.com/Eonzenex/apex-engine-tools"
)

func (a *app) sarcCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sarc",
		Short: "Unpack and repack SARC archives",
	}
	cmd.AddCommand(a.sarcUnpackCommand())
	cmd.AddCommand(a.sarcPackCommand())
	return cmd
}

// unpackDir is the default directory an archive is unpacked into.
func unpackDir(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func (a *app) sarcUnpackCommand() *cobra.Command {
	var (
		out   string
		bases []string
	)
	cmd := &cobra.Command{
		Use:   "unpack <archive>",
		Short: "Extract an archive and write its manifest",
		Long: `Extract an archive and write its manifest.

Reference entries hold no data of their own. With --base, each reference is
read from the base archives, later ones taking priority, and written out
like an inline entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)
			arc, err := apex.OpenArchive(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()

			var refs *apex.ArchiveChain
			if len(bases) > 0 {
				if refs, err = apex.OpenArchiveChain(bases); err != nil {
					return err
				}
				defer refs.Close()
				logger.Debug("resolving references", "bases", len(bases))
			}

			dir := out
			if dir == "" {
				dir = unpackDir(args[0])
			}
			if err := arc.UnpackResolved(dir, refs); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("unpacked %d entries to %s", len(arc.Entries()), dir))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory")
	cmd.Flags().StringArrayVar(&bases, "base", nil, "archive holding data for reference entries (repeatable)")
	return cmd
}

func (a *app) sarcPackCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Build an archive from an unpacked directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)
			dir := args[0]
			path := out
			if path == "" {
				path = filepath.Clean(dir) + serialSuffix + ".sarc"
			}
			info, err := apex.PackDir(dir, path)
			if err != nil {
				return err
			}
			logger.Debug("manifest", "filename", info.Filename, "extension", info.Extension)
			prog.done(fmt.Sprintf("packed %s -> %s", dir, path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output archive")
	return cmd
}
