// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/s3gctl/internal/capture"
)

// EnvPassword holds the WebSocket password when set
const EnvPassword = "S3GCTL_PASSWORD"

// Connection is a byte link to a positioner over serial or WebSocket.
// Read returns (0, nil) when nothing arrives within the poll interval.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
	Flush() error
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Flush blocks until the output buffer has been transmitted
func (s *SerialConnection) Flush() error {
	return s.port.Drain()
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection for byte-level reading.
// A background goroutine receives binary messages so Read never blocks
// longer than the poll interval.
type WebSocketConnection struct {
	conn     *websocket.Conn
	readPoll time.Duration

	messages chan []byte
	done     chan struct{}
	readErr  error // set before messages is closed

	buf       []byte
	bufOffset int

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWebSocketConnection(conn *websocket.Conn, readPoll time.Duration) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:     conn,
		readPoll: readPoll,
		messages: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	go w.receive()
	return w
}

func (w *WebSocketConnection) receive() {
	defer close(w.messages)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.readErr = err
			return
		}

		// Only binary messages carry s3g frames
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		select {
		case w.messages <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	timer := time.NewTimer(w.readPoll)
	defer timer.Stop()

	select {
	case data, ok := <-w.messages:
		if !ok {
			if w.readErr != nil && !websocket.IsCloseError(w.readErr, websocket.CloseNormalClosure) {
				return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, w.readErr)
			}
			return 0, ErrConnectionClosed
		}
		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	case <-timer.C:
		return 0, nil
	}
}

// Write sends p as a single binary message
func (w *WebSocketConnection) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush is a no-op; every Write is already a complete message
func (w *WebSocketConnection) Flush() error {
	return nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int, readPoll time.Duration) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readPoll); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool, readPoll time.Duration) (*WebSocketConnection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketConnection(conn, readPoll), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(EnvPassword); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection from the
// merged settings, wrapped in a capture recorder when one is configured
func OpenConnection() (Connection, string, error) {
	conn, connInfo, err := openLink()
	if err != nil {
		return nil, "", err
	}

	if settings.Capture.Path == "" {
		return conn, connInfo, nil
	}

	// Append so a reopened link keeps extending the same capture
	f, err := os.OpenFile(settings.Capture.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("failed to create capture file: %w", err)
	}
	logger.Info().Str("path", settings.Capture.Path).Msg("capturing link traffic")
	return capture.NewRecorder(conn, f), connInfo + " (capturing)", nil
}

func openLink() (Connection, string, error) {
	c := settings.Connection

	if c.URL != "" {
		password := ""
		if c.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(c.URL, c.Username, password, c.NoSSLVerify, c.ReadPoll)
		if err != nil {
			return nil, "", err
		}
		logger.Debug().Str("url", c.URL).Msg("websocket connected")
		return conn, fmt.Sprintf("WebSocket: %s", c.URL), nil
	}

	if c.Port != "" {
		conn, err := OpenSerialConnection(c.Port, c.Baud, c.ReadPoll)
		if err != nil {
			return nil, "", err
		}
		logger.Debug().Str("port", c.Port).Int("baud", c.Baud).Msg("serial port opened")
		return conn, fmt.Sprintf("Serial: %s @ %d baud", c.Port, c.Baud), nil
	}

	return nil, "", errors.New("either --port or --url must be specified")
}
