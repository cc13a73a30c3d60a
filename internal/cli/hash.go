// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	apex "github.com/Eonzenex/apex-engine-tools"
)

func (a *app) hashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [strings...]",
		Short: "Print the name hash of each string",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, s := range args {
				fmt.Fprintf(w, "%s\t%s\n", apex.FormatHash(apex.HashString(s)), s)
			}
			return nil
		},
	}
}
