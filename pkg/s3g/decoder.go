// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package s3g

// DecoderState is the tag of the stream decoder state machine
type DecoderState int

// Decoder states
const (
	StateWaitForHeader DecoderState = iota
	StateWaitForLength
	StateWaitForData
	StateWaitForCRC
	StatePayloadReady
)

func (s DecoderState) String() string {
	switch s {
	case StateWaitForHeader:
		return "WAIT_FOR_HEADER"
	case StateWaitForLength:
		return "WAIT_FOR_LENGTH"
	case StateWaitForData:
		return "WAIT_FOR_DATA"
	case StateWaitForCRC:
		return "WAIT_FOR_CRC"
	case StatePayloadReady:
		return "PAYLOAD_READY"
	default:
		return "UNKNOWN"
	}
}

// decoderState is the state tag together with the data it carries
type decoderState struct {
	tag      DecoderState
	payload  []byte
	expected int
}

// transition advances the state machine by one byte. On error the returned
// state is the input state; the payload is non-nil only on reaching
// StatePayloadReady.
func transition(s decoderState, b byte) (decoderState, []byte, error) {
	switch s.tag {
	case StateWaitForHeader:
		if b != Header {
			return s, nil, &HeaderError{Got: b, Expected: Header}
		}
		s.tag = StateWaitForLength
		return s, nil, nil

	case StateWaitForLength:
		if b > MaxPayloadLength {
			return s, nil, &LengthFieldError{Got: int(b), Expected: MaxPayloadLength}
		}
		s.expected = int(b)
		s.payload = make([]byte, 0, s.expected)
		if s.expected == 0 {
			s.tag = StateWaitForCRC
		} else {
			s.tag = StateWaitForData
		}
		return s, nil, nil

	case StateWaitForData:
		s.payload = append(s.payload, b)
		if len(s.payload) == s.expected {
			s.tag = StateWaitForCRC
		}
		return s, nil, nil

	case StateWaitForCRC:
		crc := CalculateCRC(s.payload)
		if b != crc {
			return s, nil, &CRCError{Got: b, Expected: crc}
		}
		s.tag = StatePayloadReady
		return s, s.payload, nil

	default:
		return s, nil, ErrPayloadReady
	}
}

// StreamDecoder reassembles one packet from bytes arriving one at a time.
// A decoder is good for a single packet: after StatePayloadReady, or after a
// length or CRC error, create a new one.
type StreamDecoder struct {
	state     decoderState
	rawBuffer []byte // Every byte fed, including framing
}

// NewStreamDecoder creates a decoder waiting for a header byte
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{
		rawBuffer: make([]byte, 0, MaxPacketLength),
	}
}

// DecodeByte feeds one byte through the state machine.
// Returns the payload once the packet is complete, nil while incomplete,
// or an error if the byte is invalid in the current state.
func (d *StreamDecoder) DecodeByte(b byte) ([]byte, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	next, payload, err := transition(d.state, b)
	d.state = next
	return payload, err
}

// State returns the current state tag
func (d *StreamDecoder) State() DecoderState {
	return d.state.tag
}

// Payload returns the payload accumulated so far
func (d *StreamDecoder) Payload() []byte {
	return d.state.payload
}

// RawBytes returns every byte fed to the decoder
func (d *StreamDecoder) RawBytes() []byte {
	return d.rawBuffer
}
