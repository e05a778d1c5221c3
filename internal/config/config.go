// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads optional s3gctl settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

// Config holds every setting a command may read. Flags set on the command
// line override these values.
type Config struct {
	Connection ConnectionConfig
	Protocol   ProtocolConfig
	Log        LogConfig
	Capture    CaptureConfig
}

type ConnectionConfig struct {
	Port        string
	Baud        int
	URL         string
	Username    string
	NoSSLVerify bool
	// ReadPoll is the serial read timeout, so Read returns promptly when idle.
	ReadPoll time.Duration
}

type ProtocolConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	PollInterval time.Duration
}

type LogConfig struct {
	Level   string
	NoColor bool
}

type CaptureConfig struct {
	Path string
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Connection: ConnectionConfig{
			Baud:     115200,
			ReadPoll: 10 * time.Millisecond,
		},
		Protocol: ProtocolConfig{
			Timeout:      s3g.TimeoutLength,
			MaxRetries:   s3g.MaxRetryCount,
			PollInterval: s3g.DefaultPollInterval,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

type fileConfig struct {
	Connection struct {
		Port        string `toml:"port"`
		Baud        int    `toml:"baud"`
		URL         string `toml:"url"`
		Username    string `toml:"username"`
		NoSSLVerify bool   `toml:"no_ssl_verify"`
		ReadPoll    string `toml:"read_poll"`
	} `toml:"connection"`
	Protocol struct {
		Timeout      string `toml:"timeout"`
		MaxRetries   int    `toml:"max_retries"`
		PollInterval string `toml:"poll_interval"`
	} `toml:"protocol"`
	Log struct {
		Level   string `toml:"level"`
		NoColor bool   `toml:"no_color"`
	} `toml:"log"`
	Capture struct {
		Path string `toml:"path"`
	} `toml:"capture"`
}

// Load reads path over Default. Keys missing from the file keep their
// defaults; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("connection", "port") {
		cfg.Connection.Port = strings.TrimSpace(raw.Connection.Port)
	}
	if meta.IsDefined("connection", "baud") {
		cfg.Connection.Baud = raw.Connection.Baud
	}
	if meta.IsDefined("connection", "url") {
		cfg.Connection.URL = strings.TrimSpace(raw.Connection.URL)
	}
	if meta.IsDefined("connection", "username") {
		cfg.Connection.Username = raw.Connection.Username
	}
	if meta.IsDefined("connection", "no_ssl_verify") {
		cfg.Connection.NoSSLVerify = raw.Connection.NoSSLVerify
	}
	if meta.IsDefined("connection", "read_poll") {
		d, err := parseDuration("connection.read_poll", raw.Connection.ReadPoll)
		if err != nil {
			return Config{}, err
		}
		cfg.Connection.ReadPoll = d
	}

	if meta.IsDefined("protocol", "timeout") {
		d, err := parseDuration("protocol.timeout", raw.Protocol.Timeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Protocol.Timeout = d
	}
	if meta.IsDefined("protocol", "max_retries") {
		cfg.Protocol.MaxRetries = raw.Protocol.MaxRetries
	}
	if meta.IsDefined("protocol", "poll_interval") {
		d, err := parseDuration("protocol.poll_interval", raw.Protocol.PollInterval)
		if err != nil {
			return Config{}, err
		}
		cfg.Protocol.PollInterval = d
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}

	if meta.IsDefined("capture", "path") {
		cfg.Capture.Path = strings.TrimSpace(raw.Capture.Path)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports settings no command can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Connection.Port != "" && c.Connection.URL != "" {
		errs = append(errs, errors.New("connection.port and connection.url are mutually exclusive"))
	}
	if c.Connection.Baud <= 0 {
		errs = append(errs, fmt.Errorf("connection.baud must be positive, got %d", c.Connection.Baud))
	}
	if c.Connection.ReadPoll <= 0 {
		errs = append(errs, fmt.Errorf("connection.read_poll must be positive, got %s", c.Connection.ReadPoll))
	}
	if c.Protocol.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("protocol.timeout must be positive, got %s", c.Protocol.Timeout))
	}
	if c.Protocol.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("protocol.max_retries must be at least 1, got %d", c.Protocol.MaxRetries))
	}
	if c.Protocol.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("protocol.poll_interval must not be negative, got %s", c.Protocol.PollInterval))
	}
	return errors.Join(errs...)
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
