// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var (
	movePosition []int32
	moveRate     uint32
)

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Queue a single extended point move",
	Long: `Send one QUEUE_EXTENDED_POINT (139) command to the positioner.

The move is fire-and-forget: the packet is written once and no response is
awaited. Positions are in steps for the X, Y, Z, A and B axes; missing
trailing axes are zero.

Example:
  s3gctl move --port /dev/ttyACM0 --position 1000,1000,0 --rate 500`,
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().Int32SliceVar(&movePosition, "position", nil, "Target position x,y,z,a,b in steps")
	moveCmd.Flags().Uint32Var(&moveRate, "rate", 500, "Feed rate")
	moveCmd.MarkFlagRequired("position")
}

func runMove(cmd *cobra.Command, args []string) error {
	position, err := parsePoint(movePosition)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	r := newReplicator(conn, nil)
	if err := r.Move(position, moveRate); err != nil {
		return err
	}

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Print(s3g.FormatFrame(time.Now(), s3g.NewQueueExtendedPoint(position, moveRate)))
	return nil
}

// parsePoint fills a Point from up to five axis values
func parsePoint(values []int32) (s3g.Point, error) {
	var p s3g.Point
	if len(values) == 0 {
		return p, fmt.Errorf("position requires at least one axis")
	}
	if len(values) > s3g.NumAxes {
		return p, fmt.Errorf("position has %d axes, at most %d allowed", len(values), s3g.NumAxes)
	}
	copy(p[:], values)
	return p, nil
}
