/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/timesignal/internal/config"
	"github.com/friendsincode/timesignal/internal/timecode"
	"github.com/friendsincode/timesignal/internal/transmitter"
)

func newFrameCmd(stdout io.Writer) *cobra.Command {
	var (
		service  string
		at       string
		timeZone string
	)
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Print the frame and pulse widths sent during a minute",
		Long: `Print the frame a standard transmits during the given minute, its pulse
widths and the calendar fields it decodes to. The carrier is not touched.

Examples:
  timesignal frame --service DCF77 --at 2023-01-01T00:00:00+01:00
  timesignal frame -s JJY60 --time-zone Asia/Tokyo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := transmitter.ResolveProfile(service)
			if err != nil {
				return err
			}
			loc, err := (&config.Config{TimeZone: timeZone}).Location()
			if err != nil {
				return fmt.Errorf("%w: %w", transmitter.ErrConfiguration, err)
			}
			minute := time.Now()
			if at != "" {
				minute, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return usageError{fmt.Errorf("--at: %w", err)}
				}
			}
			minute = minute.Truncate(time.Minute).In(loc)
			return printFrame(stdout, profile, minute)
		},
	}
	cmd.Flags().StringVarP(&service, "service", "s", "", "time-code standard: DCF77, WWVB, JJY40, JJY60 or MSF")
	cmd.Flags().StringVar(&at, "at", "", "minute to show, RFC 3339 (default now)")
	cmd.Flags().StringVar(&timeZone, "time-zone", "", "civil time zone (default Local)")
	return cmd
}

func printFrame(w io.Writer, p timecode.Profile, minute time.Time) error {
	announced := minute.Add(p.FrameLead)
	frame, err := p.Encode(announced)
	if err != nil {
		return err
	}
	widths, err := p.PulseWidths(frame)
	if err != nil {
		return err
	}
	decoded, err := timecode.Decode(frame)
	if err != nil {
		return fmt.Errorf("decode own frame: %w", err)
	}

	fmt.Fprintf(w, "%s %d Hz, minute %s\n", p.Standard, p.FrequencyHz, minute.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "frame    %s\n", frame)
	fmt.Fprintf(w, "decodes  %s %s, DST %v\n", decoded.Weekday, decoded.Time(minute.Location()).Format("2006-01-02 15:04"), decoded.DST)
	for i, d := range widths {
		if i%15 == 0 {
			fmt.Fprint(w, "pulses  ")
		}
		fmt.Fprintf(w, " %03d", d.Milliseconds())
		if (i+1)%15 == 0 {
			fmt.Fprintln(w)
		}
	}
	return nil
}
