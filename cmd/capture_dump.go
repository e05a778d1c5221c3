// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/internal/capture"
	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var captureDumpHex bool

var captureDumpCmd = &cobra.Command{
	Use:   "capture_dump <file>",
	Short: "Decode a session capture file",
	Long: `Print the frames recorded in a capture file written with --capture.

Transmitted and received bytes are decoded separately, so a frame split
across several reads is reassembled. Use --hex to also print every raw chunk.`,
	Args: cobra.ExactArgs(1),
	RunE: runCaptureDump,
}

func init() {
	rootCmd.AddCommand(captureDumpCmd)
	captureDumpCmd.Flags().BoolVar(&captureDumpHex, "hex", false, "Print raw chunks as well as decoded frames")
}

func runCaptureDump(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := capture.ReadAll(f)
	if err != nil {
		// Print what decoded before the damage
		logger.Warn().Err(err).Int("records", len(records)).Msg("capture truncated")
	}
	dumpRecords(os.Stdout, records, captureDumpHex)
	return nil
}

// dumpRecords decodes each direction with its own scanner
func dumpRecords(w io.Writer, records []capture.Record, showHex bool) {
	scanners := map[capture.Direction]*frameScanner{
		capture.DirectionTX: newFrameScanner(),
		capture.DirectionRX: newFrameScanner(),
	}

	for _, rec := range records {
		if showHex {
			fmt.Fprintf(w, "[%s] %s %d bytes: % X\n", rec.Time.Format("15:04:05.000"), rec.Direction, len(rec.Data), rec.Data)
		}

		scanner, ok := scanners[rec.Direction]
		if !ok {
			fmt.Fprintf(w, "[%s] unknown direction %s\n", rec.Time.Format("15:04:05.000"), rec.Direction)
			continue
		}

		scanner.now = func() time.Time { return rec.Time }
		scanner.Feed(rec.Data, func(ev frameEvent) {
			if ev.skipped > 0 {
				fmt.Fprintf(w, "%s (skipped %d bytes)\n", rec.Direction, ev.skipped)
			}
			if ev.err != nil {
				fmt.Fprintf(w, "%s [ERROR] %v\n", rec.Direction, ev.err)
				return
			}
			fmt.Fprintf(w, "%s %s", rec.Direction, s3g.FormatFrame(ev.timestamp, ev.payload))
		})
	}
}
