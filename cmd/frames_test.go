// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

func mustEncode(t *testing.T, payload []byte) []byte {
	t.Helper()
	packet, err := s3g.EncodePayload(payload)
	require.NoError(t, err)
	return packet
}

func TestFrameScanner_Stream(t *testing.T) {
	move := s3g.NewQueueExtendedPoint(s3g.Point{1, 2, 3, 4, 5}, 6)
	good := mustEncode(t, move)
	bad := mustEncode(t, []byte{0x01, 0x02})
	bad[len(bad)-1] ^= 0xFF

	var stream []byte
	stream = append(stream, 0x00, 0x11, 0x22) // noise
	stream = append(stream, good...)
	stream = append(stream, bad...)
	stream = append(stream, s3g.Header, 0x00, 0x00) // empty frame
	stream = append(stream, s3g.Header, 0x40)       // length too large

	var events []frameEvent
	newFrameScanner().Feed(stream, func(ev frameEvent) { events = append(events, ev) })
	require.Len(t, events, 4)

	require.NoError(t, events[0].err)
	require.Equal(t, move, events[0].payload)
	require.Equal(t, 3, events[0].skipped)

	var crcErr *s3g.CRCError
	require.ErrorAs(t, events[1].err, &crcErr)

	require.NoError(t, events[2].err)
	require.Empty(t, events[2].payload)

	var lenErr *s3g.LengthFieldError
	require.ErrorAs(t, events[3].err, &lenErr)
}

func TestFrameScanner_SplitAcrossFeeds(t *testing.T) {
	packet := mustEncode(t, []byte{0x81, 0x01, 0x02, 0x03})
	scanner := newFrameScanner()

	var events []frameEvent
	emit := func(ev frameEvent) { events = append(events, ev) }
	for _, b := range packet {
		scanner.Feed([]byte{b}, emit)
	}

	require.Len(t, events, 1)
	require.Equal(t, []byte{0x81, 0x01, 0x02, 0x03}, events[0].payload)
}

// chunkReader returns one chunk per Read, then err
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, c.err
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestPumpFrames_StopsOnClose(t *testing.T) {
	packet := mustEncode(t, []byte{0x0A})
	r := &chunkReader{chunks: [][]byte{packet[:2], packet[2:]}, err: ErrConnectionClosed}

	var payloads [][]byte
	err := pumpFrames(context.Background(), r, func(ev frameEvent) {
		payloads = append(payloads, ev.payload)
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x0A}}, payloads)
}

func TestPumpFrames_ReadError(t *testing.T) {
	boom := errors.New("device unplugged")
	err := pumpFrames(context.Background(), &chunkReader{err: boom}, func(frameEvent) {})
	require.ErrorIs(t, err, boom)
}

func TestPumpFrames_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pumpFrames(ctx, &chunkReader{}, func(frameEvent) {})
	require.NoError(t, err)
}

func TestSyncTracker(t *testing.T) {
	tracker := &syncTracker{}

	report, synced := tracker.observe(frameEvent{err: &s3g.CRCError{}, skipped: 4})
	require.False(t, report)
	require.False(t, synced)

	report, synced = tracker.observe(frameEvent{payload: []byte{0x01}, skipped: 2})
	require.True(t, report)
	require.True(t, synced)
	require.Equal(t, 7, tracker.invalidBytes)

	report, synced = tracker.observe(frameEvent{err: &s3g.CRCError{}})
	require.True(t, report)
	require.False(t, synced)
}
