// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// buildPacket frames a payload by hand, independent of EncodePayload
func buildPacket(payload []byte) []byte {
	packet := []byte{Header, byte(len(payload))}
	packet = append(packet, payload...)
	return append(packet, CalculateCRC(payload))
}

// makePayload returns n bytes of predictable data
func makePayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i*7 + 3)
	}
	return payload
}

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_Empty(t *testing.T) {
	if crc := CalculateCRC([]byte{}); crc != 0 {
		t.Errorf("CRC of empty data should be 0, got 0x%02X", crc)
	}
	if crc := CalculateCRC(nil); crc != 0 {
		t.Errorf("CRC of nil data should be 0, got 0x%02X", crc)
	}
}

func TestCalculateCRC_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{name: "ASCII 'input'", data: []byte("input"), expected: 0x58},
		{name: "ASCII 'input2'", data: []byte("input2"), expected: 0x1B},
		{name: "ASCII 'abcde'", data: []byte("abcde"), expected: 0x31},
		{name: "ASCII '12345'", data: []byte("12345"), expected: 0xAB},
		{name: "ASCII '123456789'", data: []byte("123456789"), expected: 0xA1}, // CRC-8/MAXIM check value
		{name: "single zero", data: []byte{0x00}, expected: 0x00},
		{name: "single one", data: []byte{0x01}, expected: 0x5E},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc := CalculateCRC(tt.data)
			if crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%02X, got 0x%02X", tt.expected, crc)
			}
		})
	}
}

func TestCalculateCRC_MatchesBitwiseMaxim(t *testing.T) {
	// Every table entry must equal the bitwise Dallas/Maxim CRC of that byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0x8C
			} else {
				crc >>= 1
			}
		}
		if got := CalculateCRC([]byte{byte(i)}); got != crc {
			t.Fatalf("table[%d] = 0x%02X, want 0x%02X", i, got, crc)
		}
	}
}

func TestCalculateCRC_Deterministic(t *testing.T) {
	data := []byte{0x8B, 0x01, 0x02, 0x03, 0x04}
	crc1 := CalculateCRC(data)
	crc2 := CalculateCRC(data)
	if crc1 != crc2 {
		t.Errorf("CRC should be deterministic: 0x%02X != 0x%02X", crc1, crc2)
	}
}

// ============================================================
// Field Encoding Tests
// ============================================================

func TestEncodeInt32(t *testing.T) {
	tests := []struct {
		in   int32
		want []byte
	}{
		{0, []byte{0x00, 0x00, 0x00, 0x00}},
		{-2147483648, []byte{0x00, 0x00, 0x00, 0x80}},
		{2147483647, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
		{-1, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		if got := EncodeInt32(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeInt32(%d) = % X, want % X", tt.in, got, tt.want)
		}
	}
}

func TestEncodeUint32(t *testing.T) {
	tests := []struct {
		in   uint32
		want []byte
	}{
		{0, []byte{0x00, 0x00, 0x00, 0x00}},
		{2147483647, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
		{4294967295, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		if got := EncodeUint32(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeUint32(%d) = % X, want % X", tt.in, got, tt.want)
		}
	}
}

// ============================================================
// Packet Encode Tests
// ============================================================

func TestEncodePayload_Layout(t *testing.T) {
	payload := []byte("abcd")
	packet, err := EncodePayload(payload)
	if err != nil {
		t.Fatalf("EncodePayload failed: %v", err)
	}

	if len(packet) != len(payload)+3 {
		t.Errorf("packet length = %d, want %d", len(packet), len(payload)+3)
	}
	if packet[0] != 0xD5 {
		t.Errorf("header = 0x%02X, want 0xD5", packet[0])
	}
	if packet[1] != byte(len(payload)) {
		t.Errorf("length field = %d, want %d", packet[1], len(payload))
	}
	if !bytes.Equal(packet[2:6], payload) {
		t.Errorf("payload = % X, want % X", packet[2:6], payload)
	}
	if packet[6] != CalculateCRC(payload) {
		t.Errorf("crc = 0x%02X, want 0x%02X", packet[6], CalculateCRC(payload))
	}
}

func TestEncodePayload_Empty(t *testing.T) {
	packet, err := EncodePayload(nil)
	if err != nil {
		t.Fatalf("EncodePayload failed: %v", err)
	}
	want := []byte{Header, 0x00, 0x00}
	if !bytes.Equal(packet, want) {
		t.Errorf("packet = % X, want % X", packet, want)
	}
}

func TestEncodePayload_MaxLength(t *testing.T) {
	packet, err := EncodePayload(makePayload(MaxPayloadLength))
	if err != nil {
		t.Fatalf("32-byte payload should encode: %v", err)
	}
	if len(packet) != MaxPacketLength {
		t.Errorf("packet length = %d, want %d", len(packet), MaxPacketLength)
	}
}

func TestEncodePayload_Oversize(t *testing.T) {
	_, err := EncodePayload(makePayload(MaxPayloadLength + 1))

	var lengthErr *LengthError
	if !errors.As(err, &lengthErr) {
		t.Fatalf("expected *LengthError, got %v", err)
	}
	if lengthErr.Got != 33 || lengthErr.Expected != 32 {
		t.Errorf("LengthError = %+v, want Got=33 Expected=32", lengthErr)
	}
	if !errors.Is(err, ErrPacket) {
		t.Error("LengthError should match ErrPacket")
	}
}

// ============================================================
// Packet Decode Tests
// ============================================================

func TestDecodePacket_ValidationOrder(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
		check  func(error) bool
	}{
		{
			name:   "undersize packet",
			packet: []byte("abc"),
			check:  func(err error) bool { var e *LengthError; return errors.As(err, &e) },
		},
		{
			name:   "wrong header",
			packet: []byte("abcd"),
			check:  func(err error) bool { var e *HeaderError; return errors.As(err, &e) },
		},
		{
			name:   "bad length field",
			packet: []byte{Header, 5, 'a', 'b'},
			check:  func(err error) bool { var e *LengthFieldError; return errors.As(err, &e) },
		},
		{
			name:   "bad crc",
			packet: []byte{Header, 1, 'a', 0xFF},
			check:  func(err error) bool { var e *CRCError; return errors.As(err, &e) },
		},
		{
			name:   "undersize wins over bad header",
			packet: []byte{0x00, 0x00, 0x00},
			check:  func(err error) bool { var e *LengthError; return errors.As(err, &e) },
		},
		{
			name:   "header checked before length field",
			packet: []byte{0x00, 9, 'a', 'b'},
			check:  func(err error) bool { var e *HeaderError; return errors.As(err, &e) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := DecodePacket(tt.packet)
			if err == nil {
				t.Fatalf("expected error, got payload % X", payload)
			}
			if !tt.check(err) {
				t.Errorf("unexpected error type %T: %v", err, err)
			}
			if !errors.Is(err, ErrPacket) {
				t.Errorf("%T should match ErrPacket", err)
			}
		})
	}
}

func TestDecodePacket_TamperedCRC(t *testing.T) {
	packet := buildPacket([]byte("abcde"))
	packet[len(packet)-1] ^= 0x01

	_, err := DecodePacket(packet)
	var crcErr *CRCError
	if !errors.As(err, &crcErr) {
		t.Fatalf("expected *CRCError, got %v", err)
	}
	if crcErr.Expected != CalculateCRC([]byte("abcde")) {
		t.Errorf("Expected = 0x%02X, want 0x%02X", crcErr.Expected, CalculateCRC([]byte("abcde")))
	}
}

func TestDecodePacket_GotPayload(t *testing.T) {
	expected := []byte("abcde")
	payload, err := DecodePacket(buildPacket(expected))
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if !bytes.Equal(payload, expected) {
		t.Errorf("payload = %q, want %q", payload, expected)
	}
}

func TestDecodePacket_EmptyPayloadRejected(t *testing.T) {
	// A zero-length frame is 3 bytes, below the minimum packet length
	_, err := DecodePacket([]byte{Header, 0x00, 0x00})
	var lengthErr *LengthError
	if !errors.As(err, &lengthErr) {
		t.Fatalf("expected *LengthError, got %v", err)
	}
}

func TestPacketRoundTrip(t *testing.T) {
	for n := 1; n <= MaxPayloadLength; n++ {
		payload := makePayload(n)
		packet, err := EncodePayload(payload)
		if err != nil {
			t.Fatalf("len %d: EncodePayload failed: %v", n, err)
		}
		decoded, err := DecodePacket(packet)
		if err != nil {
			t.Fatalf("len %d: DecodePacket failed: %v", n, err)
		}
		if !bytes.Equal(decoded, payload) {
			t.Fatalf("len %d: round trip mismatch: % X != % X", n, decoded, payload)
		}
	}
}
