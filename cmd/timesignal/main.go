/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/friendsincode/timesignal/internal/transmitter"
)

// usageError marks a command-line mistake; it exits with status 2.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit status. A
// termination signal stops the transmission and still exits 0.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	code := exitCode(err)
	switch code {
	case 2:
		fmt.Fprintf(stderr, "error: %v\n\n%s", err, cmd.UsageString())
	case 1:
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return code
}

func exitCode(err error) int {
	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue), errors.Is(err, transmitter.ErrConfiguration):
		return 2
	default:
		return 1
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "timesignal",
		Short: "Longwave time-signal transmitter",
		Long: `timesignal keys a carrier with the DCF77, WWVB, JJY40, JJY60 or MSF
time code so radio-controlled clocks within a few metres can synchronize.

On a Raspberry Pi the carrier comes from a general-purpose clock pin; the
log driver runs the full timing loop without touching hardware.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTransmit(cmd, opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	opts.register(cmd)

	cmd.AddCommand(newFrameCmd(stdout))
	cmd.AddCommand(newVersionCmd(stdout))
	return cmd
}
