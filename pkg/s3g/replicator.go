// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Stream is the byte link to the machine. Read must return promptly:
// (0, nil) or (0, io.EOF) means no data has arrived yet.
type Stream interface {
	io.Reader
	io.Writer
}

// Flusher is implemented by streams that buffer writes
type Flusher interface {
	Flush() error
}

// Replicator sends commands to a machine over a borrowed Stream.
// A Replicator is not safe for concurrent use.
type Replicator struct {
	stream Stream

	MaxRetryCount int           // Transmission attempts per command (default 5)
	Timeout       time.Duration // Per-attempt response timeout (default 500ms)
	PollInterval  time.Duration // Sleep between empty reads (default 1ms)

	Logger zerolog.Logger
	Stats  *Statistics // Optional
}

// NewReplicator creates a Replicator using the firmware's retry and timeout policy
func NewReplicator(stream Stream) *Replicator {
	return &Replicator{
		stream:        stream,
		MaxRetryCount: MaxRetryCount,
		Timeout:       TimeoutLength,
		PollInterval:  DefaultPollInterval,
		Logger:        zerolog.Nop(),
	}
}

// Stream returns the underlying stream
func (r *Replicator) Stream() Stream {
	return r.stream
}

// SendCommand sends a command payload and waits for the response payload.
// Header, length, CRC and timeout failures cause the whole packet to be
// retransmitted, up to MaxRetryCount attempts, after which a
// *TransmissionError is returned. Stream I/O errors are returned immediately.
func (r *Replicator) SendCommand(payload []byte) ([]byte, error) {
	packet, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	maxAttempts := r.MaxRetryCount
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := r.writePacket(packet); err != nil {
			return nil, err
		}
		if r.Stats != nil {
			r.Stats.RecordTransmission(attempt)
		}

		response, err := r.readResponse()
		if err == nil {
			return response, nil
		}
		if !isRetryable(err) {
			return nil, err
		}

		if r.Stats != nil {
			r.Stats.RecordError(err)
		}
		r.Logger.Debug().
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Err(err).
			Msg("command attempt failed")
		lastErr = err
	}

	if r.Stats != nil {
		r.Stats.RecordFailure()
	}
	r.Logger.Warn().
		Int("attempts", maxAttempts).
		Hex("packet", packet).
		Err(lastErr).
		Msg("command failed")

	return nil, &TransmissionError{Attempts: maxAttempts, Err: lastErr}
}

// Move queues a move to position at the given rate.
// The packet is written once with no response or retry: motion commands
// are fire-and-forget, and only stream write errors are reported.
func (r *Replicator) Move(position Point, rate uint32) error {
	packet, err := EncodePayload(NewQueueExtendedPoint(position, rate))
	if err != nil {
		return err
	}

	if err := r.writePacket(packet); err != nil {
		return err
	}
	if r.Stats != nil {
		r.Stats.RecordMove()
	}
	r.Logger.Debug().
		Ints32("position", position[:]).
		Uint32("rate", rate).
		Msg("queued extended point")

	return nil
}

// writePacket writes a full packet and flushes the stream
func (r *Replicator) writePacket(packet []byte) error {
	n, err := r.stream.Write(packet)
	if err != nil {
		return fmt.Errorf("s3g: write: %w", err)
	}
	if n != len(packet) {
		return fmt.Errorf("s3g: incomplete write: %d/%d bytes", n, len(packet))
	}

	if f, ok := r.stream.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("s3g: flush: %w", err)
		}
	}
	return nil
}

// readResponse feeds bytes into a fresh decoder until a payload is ready,
// the decoder rejects a byte, or no byte arrives within Timeout.
func (r *Replicator) readResponse() ([]byte, error) {
	decoder := NewStreamDecoder()
	start := time.Now()
	buf := make([]byte, 1)

	for {
		n, err := r.stream.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("s3g: read: %w", err)
		}

		if n == 0 {
			if elapsed := time.Since(start); elapsed > r.Timeout {
				return nil, &TimeoutError{Elapsed: elapsed}
			}
			if r.PollInterval > 0 {
				time.Sleep(r.PollInterval)
			}
			continue
		}

		payload, err := decoder.DecodeByte(buf[0])
		if err != nil {
			return nil, err
		}
		if payload != nil {
			return payload, nil
		}
	}
}

// isRetryable reports whether an attempt failure warrants retransmission
func isRetryable(err error) bool {
	var timeoutErr *TimeoutError
	return errors.Is(err, ErrPacket) || errors.As(err, &timeoutErr)
}
