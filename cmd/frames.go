// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

// frameEvent is one complete frame or one framing error
type frameEvent struct {
	timestamp time.Time
	payload   []byte
	err       error
	skipped   int // bytes discarded while hunting for a header
}

// frameScanner turns a byte stream into frame events. A decoder only
// carries one packet, so it is replaced after every frame or error.
type frameScanner struct {
	decoder *s3g.StreamDecoder
	skipped int
	now     func() time.Time
}

func newFrameScanner() *frameScanner {
	return &frameScanner{
		decoder: s3g.NewStreamDecoder(),
		now:     time.Now,
	}
}

// Feed decodes data and calls emit for every frame and every length or CRC
// error. Bytes rejected while waiting for a header are only counted.
func (s *frameScanner) Feed(data []byte, emit func(frameEvent)) {
	for _, b := range data {
		payload, err := s.decoder.DecodeByte(b)

		var headerErr *s3g.HeaderError
		switch {
		case errors.As(err, &headerErr):
			s.skipped++
		case err != nil:
			emit(frameEvent{timestamp: s.now(), err: err, skipped: s.skipped})
			s.reset()
		case payload != nil:
			emit(frameEvent{timestamp: s.now(), payload: payload, skipped: s.skipped})
			s.reset()
		}
	}
}

func (s *frameScanner) reset() {
	s.decoder = s3g.NewStreamDecoder()
	s.skipped = 0
}

// pumpFrames reads conn until ctx ends or the link fails
func pumpFrames(ctx context.Context, conn io.Reader, emit func(frameEvent)) error {
	scanner := newFrameScanner()
	buf := make([]byte, 128)

	for ctx.Err() == nil {
		n, err := conn.Read(buf)
		if n > 0 {
			scanner.Feed(buf[:n], emit)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info().Msg("connection closed")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			time.Sleep(settings.Protocol.PollInterval)
		}
	}
	return nil
}
