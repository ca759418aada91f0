/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/friendsincode/timesignal/internal/version"
)

func newVersionCmd(stdout io.Writer) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(stdout, "timesignal %s\n", version.Version)
			if !check {
				return nil
			}
			info, err := version.Check(cmd.Context(), nil, "")
			if err != nil {
				return err
			}
			if info.UpdateAvailable {
				fmt.Fprintf(stdout, "update available: %s (%s)\n", info.LatestVersion, info.ReleaseURL)
			} else {
				fmt.Fprintln(stdout, "up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "ask GitHub for the latest release")
	return cmd
}
