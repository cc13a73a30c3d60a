// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	apex "github.com/Eonzenex/apex-engine-tools"
)

func (a *app) aafCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aaf",
		Short: "Unpack and repack AAF-compressed archives",
	}
	cmd.AddCommand(a.aafUnpackCommand())
	cmd.AddCommand(a.aafPackCommand())
	return cmd
}

func (a *app) aafUnpackCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "unpack <archive>",
		Short: "Decompress an AAF file and extract the archive inside",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)
			dir := out
			if dir == "" {
				dir = unpackDir(args[0])
			}
			arc, err := apex.UnpackAAF(args[0], dir)
			if err != nil {
				return err
			}
			defer arc.Close()
			prog.done(fmt.Sprintf("unpacked %d entries to %s", len(arc.Entries()), dir))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory")
	return cmd
}

func (a *app) aafPackCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Build a compressed archive from an unpacked directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)
			dir := args[0]
			path := out
			if path == "" {
				path = filepath.Clean(dir) + serialSuffix + ".ee"
			}
			info, err := apex.PackAAF(dir, path)
			if err != nil {
				return err
			}
			logger.Debug("manifest", "filename", info.Filename, "extension", info.Extension)
			prog.done(fmt.Sprintf("packed %s -> %s", dir, path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}
