// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var sendCmd = &cobra.Command{
	Use:   "send <hex-payload>",
	Short: "Send a raw payload and wait for the response",
	Long: `Frame a raw payload, send it, and wait for a valid response frame.

The payload is given as hex (spaces and colons allowed). The command is
retransmitted on timeout or a corrupt response, up to --retries attempts.

Exit codes:
  0 - Response received
  1 - No valid response after all retries
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

// parseHexPayload accepts "8B 01 02", "8b:01:02" or "8b0102"
func parseHexPayload(raw string) ([]byte, error) {
	cleaned := strings.NewReplacer(" ", "", ":", "", "0x", "", "0X", "").Replace(raw)
	payload, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	if len(payload) > s3g.MaxPayloadLength {
		return nil, &s3g.LengthError{Got: len(payload), Expected: s3g.MaxPayloadLength}
	}
	return payload, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	payload, err := parseHexPayload(args[0])
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Print(s3g.FormatFrame(time.Now(), payload))

	stats := s3g.NewStatistics()
	r := newReplicator(conn, stats)
	response, err := r.SendCommand(payload)
	if err != nil {
		var txErr *s3g.TransmissionError
		if errors.As(err, &txErr) {
			fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
			conn.Close()
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Link error: %v\n", err)
		conn.Close()
		os.Exit(2)
	}

	fmt.Printf("\nResponse after %d attempt(s):\n", stats.Transmissions)
	fmt.Print(s3g.FormatFrame(time.Now(), response))
	return nil
}
