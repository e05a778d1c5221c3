// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame, error and transmission counts.
// Not safe for concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Inbound frames
	TotalFrames  uint64
	ValidFrames  uint64
	Anomalies    uint64
	HeaderErrors uint64
	LengthErrors uint64
	CRCErrors    uint64
	OtherErrors  uint64

	// Command transport
	Transmissions uint64
	Retries       uint64
	Timeouts      uint64
	Failures      uint64
	Moves         uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordFrame counts a decoded frame and its validation anomalies
func (s *Statistics) RecordFrame(validationErrors []ValidationError) {
	s.TotalFrames++
	if len(validationErrors) > 0 {
		s.Anomalies += uint64(len(validationErrors))
	} else {
		s.ValidFrames++
	}
	s.LastUpdateTime = time.Now()
}

// RecordError classifies a decode or transport error
func (s *Statistics) RecordError(err error) {
	if err == nil {
		return
	}

	var (
		headerErr  *HeaderError
		lengthErr  *LengthError
		fieldErr   *LengthFieldError
		crcErr     *CRCError
		timeoutErr *TimeoutError
	)

	switch {
	case errors.As(err, &headerErr):
		s.HeaderErrors++
	case errors.As(err, &lengthErr), errors.As(err, &fieldErr):
		s.LengthErrors++
	case errors.As(err, &crcErr):
		s.CRCErrors++
	case errors.As(err, &timeoutErr):
		s.Timeouts++
	default:
		s.OtherErrors++
	}
	s.LastUpdateTime = time.Now()
}

// RecordTransmission counts one packet written by SendCommand
func (s *Statistics) RecordTransmission(attempt int) {
	s.Transmissions++
	if attempt > 1 {
		s.Retries++
	}
	s.LastUpdateTime = time.Now()
}

// RecordMove counts one fire-and-forget motion packet
func (s *Statistics) RecordMove() {
	s.Moves++
	s.LastUpdateTime = time.Now()
}

// RecordFailure counts a command that exhausted its retries
func (s *Statistics) RecordFailure() {
	s.Failures++
	s.LastUpdateTime = time.Now()
}

// TotalErrors returns the sum of all decode and transport errors
func (s *Statistics) TotalErrors() uint64 {
	return s.HeaderErrors + s.LengthErrors + s.CRCErrors + s.OtherErrors + s.Timeouts
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.TotalErrors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
	}
	if s.HeaderErrors > 0 {
		result += fmt.Sprintf("Header Errors:   %8d\n", s.HeaderErrors)
	}
	if s.LengthErrors > 0 {
		result += fmt.Sprintf("Length Errors:   %8d\n", s.LengthErrors)
	}
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.OtherErrors > 0 {
		result += fmt.Sprintf("Other Errors:    %8d\n", s.OtherErrors)
	}
	if s.Transmissions > 0 || s.Moves > 0 {
		result += fmt.Sprintf("Transmissions:   %8d (%d retries)\n", s.Transmissions, s.Retries)
		result += fmt.Sprintf("Moves:           %8d\n", s.Moves)
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
		result += fmt.Sprintf("Failed Commands: %8d\n", s.Failures)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
