// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import "fmt"

// AnomalyType represents different types of payload anomalies
type AnomalyType int

const (
	AnomalyEmptyPayload AnomalyType = iota
	AnomalyUnknownOpcode
	AnomalyLengthMismatch
	AnomalyZeroRate
)

// ValidationError represents a payload that framed correctly but does not
// make sense as a command
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePayload checks a decoded payload against the command table.
// Returns a slice of validation errors (empty if the payload is valid).
func ValidatePayload(payload []byte) []ValidationError {
	if len(payload) == 0 {
		return []ValidationError{{
			Type:    AnomalyEmptyPayload,
			Message: "Empty payload (no opcode)",
		}}
	}

	switch payload[0] {
	case CmdQueueExtendedPoint:
		return validateQueueExtendedPoint(payload)
	default:
		return []ValidationError{{
			Type:    AnomalyUnknownOpcode,
			Message: fmt.Sprintf("Unknown opcode %d (0x%02X)", payload[0], payload[0]),
			Details: map[string]interface{}{"opcode": payload[0]},
		}}
	}
}

func validateQueueExtendedPoint(payload []byte) []ValidationError {
	qp, err := ParseQueueExtendedPoint(payload)
	if err != nil {
		return []ValidationError{{
			Type: AnomalyLengthMismatch,
			Message: fmt.Sprintf("QUEUE_EXTENDED_POINT length mismatch: received=%d, expected=%d",
				len(payload), QueueExtendedPointLength),
			Details: map[string]interface{}{"received": len(payload), "expected": QueueExtendedPointLength},
		}}
	}

	if qp.Rate == 0 {
		return []ValidationError{{
			Type:    AnomalyZeroRate,
			Message: "QUEUE_EXTENDED_POINT with zero rate",
			Details: map[string]interface{}{"rate": qp.Rate},
		}}
	}

	return nil
}
