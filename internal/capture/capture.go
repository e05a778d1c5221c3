// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records the raw bytes of an s3g session as a stream of
// CBOR records so a link can be replayed and inspected offline.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a captured chunk relative to the host
type Direction uint8

const (
	DirectionTX Direction = 1 // host -> device
	DirectionRX Direction = 2 // device -> host
)

func (d Direction) String() string {
	switch d {
	case DirectionTX:
		return "TX"
	case DirectionRX:
		return "RX"
	default:
		return fmt.Sprintf("DIR(%d)", uint8(d))
	}
}

// Record is one chunk of bytes as seen by a single Read or Write call.
// Encoded as a CBOR array: [direction, time, data]
type Record struct {
	_         struct{} `cbor:",toarray"`
	Direction Direction
	Time      time.Time
	Data      []byte
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Recorder wraps a link and appends every chunk it carries to a sink.
// Reads and writes may happen on different goroutines.
type Recorder struct {
	link io.ReadWriteCloser

	mu  sync.Mutex
	enc *cbor.Encoder
	err error

	sink io.Writer
	now  func() time.Time
}

// NewRecorder returns a Recorder that forwards to link and records into sink.
// Close closes both link and sink (if the sink is an io.Closer).
func NewRecorder(link io.ReadWriteCloser, sink io.Writer) *Recorder {
	return &Recorder{
		link: link,
		enc:  encMode.NewEncoder(sink),
		sink: sink,
		now:  time.Now,
	}
}

func (r *Recorder) Read(p []byte) (int, error) {
	n, err := r.link.Read(p)
	if n > 0 {
		r.record(DirectionRX, p[:n])
	}
	return n, err
}

func (r *Recorder) Write(p []byte) (int, error) {
	n, err := r.link.Write(p)
	if n > 0 {
		r.record(DirectionTX, p[:n])
	}
	return n, err
}

// Flush passes through to the wrapped link when it supports flushing
func (r *Recorder) Flush() error {
	if f, ok := r.link.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (r *Recorder) Close() error {
	err := r.link.Close()
	if c, ok := r.sink.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

// Err returns the first error hit while writing records. Recording failures
// never interrupt the link itself.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) record(dir Direction, data []byte) {
	rec := Record{
		Direction: dir,
		Time:      r.now(),
		Data:      append([]byte(nil), data...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("capture: encode record: %w", err)
	}
}

// ReadAll decodes records from r until EOF
func ReadAll(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("capture: decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}
