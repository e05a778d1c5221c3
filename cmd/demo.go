// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var (
	demoCycles   int
	demoInterval time.Duration
	demoRate     uint32
	demoSize     int32
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Drive the positioner around a square",
	Long: `Repeatedly move around a square in the X/Y plane.

Corners are visited in order (size,0), (size,size), (0,size), (0,0), one move
per interval. Bytes received between moves are printed as hex.

Runs until interrupted unless --cycles is set.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().IntVar(&demoCycles, "cycles", 0, "Number of squares to trace (0 = forever)")
	demoCmd.Flags().DurationVar(&demoInterval, "interval", time.Second, "Delay between moves")
	demoCmd.Flags().Uint32Var(&demoRate, "rate", 500, "Feed rate")
	demoCmd.Flags().Int32Var(&demoSize, "size", 1000, "Square side length in steps")
}

// squarePath returns the corners of a square with side size
func squarePath(size int32) []s3g.Point {
	return []s3g.Point{
		{size, 0, 0, 0, 0},
		{size, size, 0, 0, 0},
		{0, size, 0, 0, 0},
		{0, 0, 0, 0, 0},
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("s3gctl - Square Demo\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Rate: %d, Interval: %s\n", demoRate, demoInterval)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := s3g.NewStatistics()
	r := newReplicator(conn, stats)
	path := squarePath(demoSize)
	buf := make([]byte, 128)

	for cycle := 0; demoCycles == 0 || cycle < demoCycles; cycle++ {
		for _, p := range path {
			if err := r.Move(p, demoRate); err != nil {
				return err
			}
			fmt.Printf("[%s] MOVE X=%d Y=%d\n", time.Now().Format("15:04:05.000"), p[0], p[1])

			if err := drainFor(ctx, conn, buf, demoInterval); err != nil {
				if ctx.Err() != nil {
					fmt.Printf("\nMoves sent: %d\n", stats.Moves)
					return nil
				}
				return err
			}
		}
	}

	fmt.Printf("\nMoves sent: %d\n", stats.Moves)
	return nil
}

// drainFor prints whatever arrives on conn until d elapses or ctx ends
func drainFor(ctx context.Context, conn Connection, buf []byte, d time.Duration) error {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := conn.Read(buf)
		if n > 0 {
			fmt.Printf("  <- % X\n", buf[:n])
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			time.Sleep(settings.Protocol.PollInterval)
		}
	}
	return nil
}
