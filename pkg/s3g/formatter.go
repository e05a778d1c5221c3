// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import (
	"fmt"
	"strings"
	"time"
)

// FormatCommandName returns the human-readable name for an opcode
func FormatCommandName(opcode byte) string {
	switch opcode {
	case CmdQueueExtendedPoint:
		return "QUEUE_EXTENDED_POINT"
	default:
		return "UNKNOWN"
	}
}

// FormatFrame formats a decoded payload with its arrival time
func FormatFrame(ts time.Time, payload []byte) string {
	timestamp := ts.Format("15:04:05.000")

	if len(payload) == 0 {
		return fmt.Sprintf("[%s] EMPTY len=0\n", timestamp)
	}

	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, FormatCommandName(payload[0]), payload[0], len(payload))
	result += FormatPayload(payload)
	return result
}

// FormatPayload formats the fields of a payload, or a hex dump for
// payloads that do not decode
func FormatPayload(payload []byte) string {
	if len(payload) > 0 && payload[0] == CmdQueueExtendedPoint {
		if qp, err := ParseQueueExtendedPoint(payload); err == nil {
			return fmt.Sprintf("  Position: X=%d Y=%d Z=%d A=%d B=%d, Rate: %d\n",
				qp.Position[0], qp.Position[1], qp.Position[2], qp.Position[3], qp.Position[4], qp.Rate)
		}
	}

	return FormatHex(payload)
}

// FormatHex returns a 16-byte-per-line hex dump
func FormatHex(data []byte) string {
	var b strings.Builder
	b.WriteString("  Payload: ")
	for i, v := range data {
		if i > 0 && i%16 == 0 {
			b.WriteString("\n           ")
		}
		fmt.Fprintf(&b, "%02X ", v)
	}
	b.WriteString("\n")
	return b.String()
}
