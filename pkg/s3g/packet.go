// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import "encoding/binary"

// EncodePayload frames a payload for transmission:
// header, payload length, payload, CRC of the payload.
func EncodePayload(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, &LengthError{Got: len(payload), Expected: MaxPayloadLength}
	}

	packet := make([]byte, 0, len(payload)+PacketOverhead)
	packet = append(packet, Header, byte(len(payload)))
	packet = append(packet, payload...)
	packet = append(packet, CalculateCRC(payload))

	return packet, nil
}

// DecodePacket validates a complete frame and returns its payload.
// Checks run in order (length, header, length field, CRC) and stop at the
// first failure. The returned payload aliases the packet slice.
func DecodePacket(packet []byte) ([]byte, error) {
	if len(packet) < MinPacketLength {
		return nil, &LengthError{Got: len(packet), Expected: MinPacketLength}
	}

	if packet[0] != Header {
		return nil, &HeaderError{Got: packet[0], Expected: Header}
	}

	payloadLen := len(packet) - PacketOverhead
	if int(packet[1]) != payloadLen {
		return nil, &LengthFieldError{Got: int(packet[1]), Expected: payloadLen}
	}

	payload := packet[2 : len(packet)-1]
	crc := CalculateCRC(payload)
	if packet[len(packet)-1] != crc {
		return nil, &CRCError{Got: packet[len(packet)-1], Expected: crc}
	}

	return payload, nil
}

// EncodeInt32 returns the 4-byte little-endian encoding of n
func EncodeInt32(n int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(n))
}

// EncodeUint32 returns the 4-byte little-endian encoding of n
func EncodeUint32(n uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, n)
}
