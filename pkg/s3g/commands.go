// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import "encoding/binary"

// Queue Extended Point layout: opcode, five int32 positions, uint32 rate
const QueueExtendedPointLength = 1 + NumAxes*4 + 4

// Point is a target position in steps for the X, Y, Z, A and B axes
type Point [NumAxes]int32

// QueuePoint is a decoded Queue Extended Point command
type QueuePoint struct {
	Position Point
	Rate     uint32
}

// NewQueueExtendedPoint builds a QUEUE_EXTENDED_POINT payload (139).
// All fields are little-endian.
func NewQueueExtendedPoint(position Point, rate uint32) []byte {
	payload := make([]byte, 0, QueueExtendedPointLength)
	payload = append(payload, CmdQueueExtendedPoint)
	for _, p := range position {
		payload = append(payload, EncodeInt32(p)...)
	}
	payload = append(payload, EncodeUint32(rate)...)
	return payload
}

// ParseQueueExtendedPoint decodes a QUEUE_EXTENDED_POINT payload
func ParseQueueExtendedPoint(payload []byte) (QueuePoint, error) {
	var qp QueuePoint

	if len(payload) != QueueExtendedPointLength {
		return qp, &LengthError{Got: len(payload), Expected: QueueExtendedPointLength}
	}
	if payload[0] != CmdQueueExtendedPoint {
		return qp, &OpcodeError{Got: payload[0], Expected: CmdQueueExtendedPoint}
	}

	offset := 1
	for i := range qp.Position {
		qp.Position[i] = int32(binary.LittleEndian.Uint32(payload[offset:]))
		offset += 4
	}
	qp.Rate = binary.LittleEndian.Uint32(payload[offset:])

	return qp, nil
}
