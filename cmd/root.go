// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/internal/config"
	"github.com/Thermoquad/s3gctl/internal/logging"
	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Session flags
	configPath  string
	capturePath string
	logLevel    string

	// Protocol flags
	protoTimeout time.Duration
	protoRetries int

	// settings is the merged file + flag configuration, set before any command runs
	settings = config.Default()
	logger   = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "s3gctl",
	Short: "s3g Protocol Controller",
	Long: `s3gctl - A CLI tool for driving and monitoring s3g positioners.

Sends Queue Extended Point moves and raw commands over the s3g framed serial
protocol, and decodes inbound frames for diagnostics.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the S3GCTL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also be read from a TOML file with --config; flags given on the
command line take precedence.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Session flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML settings file")
	rootCmd.PersistentFlags().StringVar(&capturePath, "capture", "", "Record all link traffic to a CBOR capture file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, off)")

	// Protocol flags
	rootCmd.PersistentFlags().DurationVar(&protoTimeout, "timeout", s3g.TimeoutLength, "Response timeout per attempt")
	rootCmd.PersistentFlags().IntVar(&protoRetries, "retries", s3g.MaxRetryCount, "Attempts per command before giving up")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings merges the optional config file with explicitly set flags
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	applyFlagOverrides(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	settings = cfg
	logger = logging.New(os.Stderr, logging.Options{
		Level:   cfg.Log.Level,
		NoColor: cfg.Log.NoColor,
	})
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Connection.Port = portName
		cfg.Connection.URL = ""
	}
	if flags.Changed("url") {
		cfg.Connection.URL = wsURL
		if !flags.Changed("port") {
			cfg.Connection.Port = ""
		}
	}
	if flags.Changed("baud") {
		cfg.Connection.Baud = baudRate
	}
	if flags.Changed("username") {
		cfg.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("capture") {
		cfg.Capture.Path = capturePath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("timeout") {
		cfg.Protocol.Timeout = protoTimeout
	}
	if flags.Changed("retries") {
		cfg.Protocol.MaxRetries = protoRetries
	}
}

// newReplicator builds a Replicator over conn using the merged settings
func newReplicator(conn Connection, stats *s3g.Statistics) *s3g.Replicator {
	r := s3g.NewReplicator(conn)
	r.MaxRetryCount = settings.Protocol.MaxRetries
	r.Timeout = settings.Protocol.Timeout
	r.PollInterval = settings.Protocol.PollInterval
	r.Logger = logger.With().Str("component", "replicator").Logger()
	r.Stats = stats
	return r
}
