// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package s3g implements the s3g serial protocol used to drive 5-axis
// positioners such as the Replicator family of machines.
//
// The package provides CRC-8 framing, a byte-at-a-time stream decoder for
// packets arriving over a live link, and a Replicator transport that sends
// commands and retries on corruption or silence within a fixed budget.
package s3g

import "time"

// Protocol framing
const (
	Header = 0xD5

	// Header, length and CRC bytes around the payload
	PacketOverhead   = 3
	MinPacketLength  = PacketOverhead + 1
	MaxPayloadLength = 32
	MaxPacketLength  = MaxPayloadLength + PacketOverhead
)

// Transport defaults fixed by the device firmware
const (
	MaxRetryCount       = 5
	TimeoutLength       = 500 * time.Millisecond
	DefaultPollInterval = time.Millisecond
)

// Command opcodes
const (
	CmdQueueExtendedPoint = 139
)

// Axis count of a queued point (X, Y, Z, A, B)
const NumAxes = 5
