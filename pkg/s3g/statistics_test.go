// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStatistics_RecordError(t *testing.T) {
	s := NewStatistics()

	s.RecordError(&HeaderError{Got: 0x00, Expected: Header})
	s.RecordError(&LengthError{Got: 3, Expected: 4})
	s.RecordError(&LengthFieldError{Got: 40, Expected: 32})
	s.RecordError(&CRCError{Got: 0x01, Expected: 0x02})
	s.RecordError(fmt.Errorf("attempt 2: %w", &CRCError{}))
	s.RecordError(&TimeoutError{})
	s.RecordError(errors.New("port closed"))
	s.RecordError(nil)

	if s.HeaderErrors != 1 {
		t.Errorf("HeaderErrors = %d, want 1", s.HeaderErrors)
	}
	if s.LengthErrors != 2 {
		t.Errorf("LengthErrors = %d, want 2", s.LengthErrors)
	}
	if s.CRCErrors != 2 {
		t.Errorf("CRCErrors = %d, want 2", s.CRCErrors)
	}
	if s.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", s.Timeouts)
	}
	if s.OtherErrors != 1 {
		t.Errorf("OtherErrors = %d, want 1", s.OtherErrors)
	}
	if s.TotalErrors() != 7 {
		t.Errorf("TotalErrors() = %d, want 7", s.TotalErrors())
	}
}

func TestStatistics_RecordFrame(t *testing.T) {
	s := NewStatistics()

	s.RecordFrame(nil)
	s.RecordFrame(ValidatePayload([]byte{0x01}))

	if s.TotalFrames != 2 || s.ValidFrames != 1 || s.Anomalies != 1 {
		t.Errorf("frames total=%d valid=%d anomalies=%d, want 2/1/1", s.TotalFrames, s.ValidFrames, s.Anomalies)
	}
}

func TestStatistics_StringAndReset(t *testing.T) {
	s := NewStatistics()
	s.RecordTransmission(1)
	s.RecordTransmission(2)
	s.RecordMove()
	s.RecordFailure()
	s.RecordError(&CRCError{})

	out := s.String()
	for _, want := range []string{"Transmissions:", "(1 retries)", "CRC Errors:", "Failed Commands:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.Transmissions != 0 || s.CRCErrors != 0 || s.Moves != 0 || s.Failures != 0 {
		t.Errorf("Reset() left counters: %+v", s)
	}
	if s.StartTime.IsZero() {
		t.Error("Reset() should restart the clock")
	}
}
