// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	apex "github.com/Eonzenex/apex-engine-tools"
)

// serialSuffix marks binaries rebuilt from XML so they never overwrite the
// file the XML came from.
const serialSuffix = "_serial"

type convertOptions struct {
	out  string
	sort bool
	dict apex.NameResolver
}

func (a *app) convertCommand() *cobra.Command {
	var (
		df   dictFlags
		opts convertOptions
	)
	cmd := &cobra.Command{
		Use:   "convert [paths...]",
		Short: "Convert property files to XML and XML back to binary",
		Long: `Convert each path by its content:

  RTPC or IRTPC binary  ->  <name>.xml
  XML text form         ->  <name>_serial.<extension>

Failures are logged and the remaining files are still converted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			if !cmd.Flags().Changed("sort") {
				opts.sort = a.cfg.Sort
			}
			if !cmd.Flags().Changed("out") {
				opts.out = a.cfg.Out
			}
			files, rc := df.resolve(cmd, a.cfg)
			dict, err := loadDictionaries(cmd.Context(), logger, files, rc)
			if err != nil {
				return err
			}
			opts.dict = dict

			failed := 0
			for _, path := range args {
				prog := newProgress(logger)
				out, err := convertFile(path, opts)
				if err != nil {
					logger.Error("convert failed", "path", path, "err", err)
					failed++
					continue
				}
				prog.done(fmt.Sprintf("%s -> %s", path, out))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
	df.register(cmd)
	cmd.Flags().BoolVarP(&opts.sort, "sort", "s", false, "sort containers and properties before writing XML")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output directory (default: next to each input)")
	return cmd
}

// convertFile converts one file and returns the path it wrote.
func convertFile(path string, opts convertOptions) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	dir := filepath.Dir(path)
	if opts.out != "" {
		dir = opts.out
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	switch format := apex.DetectFormat(data); format {
	case apex.FormatRTPC, apex.FormatIRTPC:
		tree, err := apex.ReadFile(path, opts.dict)
		if err != nil {
			return "", err
		}
		if opts.sort {
			tree.Root.SortCanonical(true)
		}
		out := filepath.Join(dir, stem+".xml")
		return out, tree.WriteXMLFile(out)

	case apex.FormatXML:
		tree, err := apex.ReadXMLFile(path)
		if err != nil {
			return "", err
		}
		ext := tree.Extension
		if ext == "" {
			ext = "bin"
		}
		out := filepath.Join(dir, stem+serialSuffix+"."+ext)
		return out, tree.WriteFile(out)

	case apex.FormatUnknown:
		return "", errors.New("unrecognised file format")

	default:
		return "", fmt.Errorf("%s files are handled by the %s command", format, format)
	}
}
