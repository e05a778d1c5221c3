// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPacket matches every framing and checksum error
	// (LengthError, LengthFieldError, HeaderError, CRCError) via errors.Is.
	ErrPacket = errors.New("s3g: packet error")

	// ErrPayloadReady is returned when a byte is fed to a StreamDecoder
	// that already holds a complete payload.
	ErrPayloadReady = errors.New("s3g: decoder already holds a complete payload")
)

// LengthError reports a payload too large to frame, or a packet too short
// to be a frame.
type LengthError struct {
	Got      int
	Expected int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("invalid length: got %d, expected %d", e.Got, e.Expected)
}

func (e *LengthError) Is(target error) bool { return target == ErrPacket }

// LengthFieldError reports a length byte that disagrees with the framed size
// or exceeds MaxPayloadLength.
type LengthFieldError struct {
	Got      int
	Expected int
}

func (e *LengthFieldError) Error() string {
	return fmt.Sprintf("invalid length field: got %d, expected %d", e.Got, e.Expected)
}

func (e *LengthFieldError) Is(target error) bool { return target == ErrPacket }

// HeaderError reports a first byte other than Header.
type HeaderError struct {
	Got      byte
	Expected byte
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("invalid header: got 0x%02X, expected 0x%02X", e.Got, e.Expected)
}

func (e *HeaderError) Is(target error) bool { return target == ErrPacket }

// CRCError reports a checksum byte that does not match the payload.
type CRCError struct {
	Got      byte
	Expected byte
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("CRC mismatch: got 0x%02X, expected 0x%02X", e.Got, e.Expected)
}

func (e *CRCError) Is(target error) bool { return target == ErrPacket }

// TimeoutError reports that no byte arrived within the per-attempt budget.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: no response after %v", e.Elapsed.Round(time.Millisecond))
}

// TransmissionError is returned by SendCommand once the retry budget is spent.
// Err holds the failure of the last attempt.
type TransmissionError struct {
	Attempts int
	Err      error
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("failed to send packet after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransmissionError) Unwrap() error {
	return e.Err
}

// OpcodeError reports a payload whose first byte is not the expected command.
type OpcodeError struct {
	Got      byte
	Expected byte
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("unexpected opcode: got %d, expected %d", e.Got, e.Expected)
}
