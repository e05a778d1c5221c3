// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

import (
	"bytes"
	"errors"
	"testing"
)

// feed pushes bytes through a decoder and returns the first payload or error
func feed(d *StreamDecoder, data []byte) ([]byte, error) {
	for _, b := range data {
		payload, err := d.DecodeByte(b)
		if err != nil || payload != nil {
			return payload, err
		}
	}
	return nil, nil
}

func TestStreamDecoder_InitialState(t *testing.T) {
	d := NewStreamDecoder()
	if d.State() != StateWaitForHeader {
		t.Errorf("initial state = %v, want WAIT_FOR_HEADER", d.State())
	}
	if len(d.Payload()) != 0 {
		t.Errorf("initial payload should be empty, got % X", d.Payload())
	}
}

func TestStreamDecoder_StateSequence(t *testing.T) {
	payload := []byte{0x8B, 0x01}
	packet := buildPacket(payload)

	want := []DecoderState{
		StateWaitForLength, // after header
		StateWaitForData,   // after length
		StateWaitForData,   // after first payload byte
		StateWaitForCRC,    // after last payload byte
		StatePayloadReady,  // after crc
	}

	d := NewStreamDecoder()
	for i, b := range packet {
		out, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("byte %d: unexpected error: %v", i, err)
		}
		if d.State() != want[i] {
			t.Errorf("byte %d: state = %v, want %v", i, d.State(), want[i])
		}
		if i < len(packet)-1 && out != nil {
			t.Errorf("byte %d: payload reported early", i)
		}
		if i == len(packet)-1 && !bytes.Equal(out, payload) {
			t.Errorf("payload = % X, want % X", out, payload)
		}
	}
}

func TestStreamDecoder_HeaderRejectedStateUnchanged(t *testing.T) {
	d := NewStreamDecoder()

	for _, b := range []byte{0x00, 0xFF, 0xD4, 'a'} {
		_, err := d.DecodeByte(b)
		var headerErr *HeaderError
		if !errors.As(err, &headerErr) {
			t.Fatalf("byte 0x%02X: expected *HeaderError, got %v", b, err)
		}
		if headerErr.Got != b || headerErr.Expected != Header {
			t.Errorf("HeaderError = %+v", headerErr)
		}
		if d.State() != StateWaitForHeader {
			t.Errorf("state changed to %v after rejected header", d.State())
		}
	}

	// A correct header still makes progress after rejections
	payload, err := feed(d, buildPacket([]byte("ok")))
	if err != nil {
		t.Fatalf("decode after rejected headers failed: %v", err)
	}
	if string(payload) != "ok" {
		t.Errorf("payload = %q, want %q", payload, "ok")
	}
}

func TestStreamDecoder_LengthFieldTooLarge(t *testing.T) {
	d := NewStreamDecoder()
	if _, err := d.DecodeByte(Header); err != nil {
		t.Fatalf("header rejected: %v", err)
	}

	_, err := d.DecodeByte(MaxPayloadLength + 1)
	var fieldErr *LengthFieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected *LengthFieldError, got %v", err)
	}
	if fieldErr.Got != 33 || fieldErr.Expected != 32 {
		t.Errorf("LengthFieldError = %+v, want Got=33 Expected=32", fieldErr)
	}
}

func TestStreamDecoder_LengthFieldAtMax(t *testing.T) {
	payload := makePayload(MaxPayloadLength)
	got, err := feed(NewStreamDecoder(), buildPacket(payload))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch")
	}
}

func TestStreamDecoder_CRCError(t *testing.T) {
	packet := buildPacket([]byte("abc"))
	packet[len(packet)-1] ^= 0xFF

	_, err := feed(NewStreamDecoder(), packet)
	var crcErr *CRCError
	if !errors.As(err, &crcErr) {
		t.Fatalf("expected *CRCError, got %v", err)
	}
	if crcErr.Expected != CalculateCRC([]byte("abc")) {
		t.Errorf("Expected = 0x%02X, want 0x%02X", crcErr.Expected, CalculateCRC([]byte("abc")))
	}
}

func TestStreamDecoder_ZeroLengthPayload(t *testing.T) {
	d := NewStreamDecoder()
	payload, err := feed(d, []byte{Header, 0x00, 0x00})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if d.State() != StatePayloadReady {
		t.Fatalf("state = %v, want PAYLOAD_READY", d.State())
	}
	if payload == nil || len(payload) != 0 {
		t.Errorf("payload = %v, want empty non-nil slice", payload)
	}
}

func TestStreamDecoder_ByteAfterPayloadReady(t *testing.T) {
	d := NewStreamDecoder()
	if _, err := feed(d, buildPacket([]byte("x"))); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	_, err := d.DecodeByte(Header)
	if !errors.Is(err, ErrPayloadReady) {
		t.Errorf("expected ErrPayloadReady, got %v", err)
	}
	if d.State() != StatePayloadReady {
		t.Errorf("state = %v, want PAYLOAD_READY", d.State())
	}
}

func TestStreamDecoder_RawBytes(t *testing.T) {
	d := NewStreamDecoder()
	input := append([]byte{0x01}, buildPacket([]byte("raw"))...)

	for _, b := range input {
		d.DecodeByte(b)
	}

	if !bytes.Equal(d.RawBytes(), input) {
		t.Errorf("RawBytes() = % X, want % X", d.RawBytes(), input)
	}
}

func TestStreamDecoder_MatchesDecodePacket(t *testing.T) {
	for n := 1; n <= MaxPayloadLength; n++ {
		packet := buildPacket(makePayload(n))

		bulk, err := DecodePacket(packet)
		if err != nil {
			t.Fatalf("len %d: DecodePacket failed: %v", n, err)
		}

		d := NewStreamDecoder()
		incremental, err := feed(d, packet)
		if err != nil {
			t.Fatalf("len %d: stream decode failed: %v", n, err)
		}
		if d.State() != StatePayloadReady {
			t.Fatalf("len %d: state = %v, want PAYLOAD_READY", n, d.State())
		}
		if !bytes.Equal(bulk, incremental) {
			t.Fatalf("len %d: bulk % X != incremental % X", n, bulk, incremental)
		}
	}
}

func TestDecoderState_String(t *testing.T) {
	tests := map[DecoderState]string{
		StateWaitForHeader: "WAIT_FOR_HEADER",
		StateWaitForLength: "WAIT_FOR_LENGTH",
		StateWaitForData:   "WAIT_FOR_DATA",
		StateWaitForCRC:    "WAIT_FOR_CRC",
		StatePayloadReady:  "PAYLOAD_READY",
		DecoderState(99):   "UNKNOWN",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("DecoderState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
