// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

// recordingConn captures everything written and never has data to read
type recordingConn struct {
	out bytes.Buffer
}

func (c *recordingConn) Read(p []byte) (int, error)  { return 0, nil }
func (c *recordingConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *recordingConn) Flush() error                { return nil }
func (c *recordingConn) Close() error                { return nil }

func newTestControlModel() (controlModel, *recordingConn) {
	conn := &recordingConn{}
	cm := newConnectionManager(conn, "test", s3g.NewStatistics())
	return initialControlModel(cm, "test", 100, 500), conn
}

func press(t *testing.T, m controlModel, keys ...tea.KeyMsg) controlModel {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(controlModel)
	}
	return m
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func expectMove(t *testing.T, conn *recordingConn, position s3g.Point, rate uint32) {
	t.Helper()
	want, err := s3g.EncodePayload(s3g.NewQueueExtendedPoint(position, rate))
	require.NoError(t, err)
	got := conn.out.Next(len(want))
	require.Equal(t, want, got)
}

func TestControl_JogKeys(t *testing.T) {
	m, conn := newTestControlModel()

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	expectMove(t, conn, s3g.Point{100, 0, 0, 0, 0}, 500)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	expectMove(t, conn, s3g.Point{100, 100, 0, 0, 0}, 500)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	expectMove(t, conn, s3g.Point{100, 100, -100, 0, 0}, 500)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyLeft}, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyPgUp})
	expectMove(t, conn, s3g.Point{0, 100, -100, 0, 0}, 500)
	expectMove(t, conn, s3g.Point{0, 0, -100, 0, 0}, 500)
	expectMove(t, conn, s3g.Point{0, 0, 0, 0, 0}, 500)

	require.Equal(t, s3g.Point{}, m.position)
	require.Equal(t, uint64(6), m.stats.Moves)
	require.Zero(t, conn.out.Len())
}

func TestControl_RateAndHome(t *testing.T) {
	m, conn := newTestControlModel()

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	expectMove(t, conn, s3g.Point{100}, 500)

	m = press(t, m, runeKey('+'))
	require.Equal(t, uint32(550), m.rate)
	expectMove(t, conn, s3g.Point{100}, 550)

	m = press(t, m, runeKey('h'))
	expectMove(t, conn, s3g.Point{}, 550)
	require.Equal(t, s3g.Point{}, m.position)

	// Rate never drops below 1
	m.rate = 20
	m = press(t, m, runeKey('-'))
	require.Equal(t, uint32(minRate), m.rate)
}

func TestControl_EditStep(t *testing.T) {
	m, conn := newTestControlModel()

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusStepInput, m.focusedField)

	m = press(t, m, runeKey('2'), runeKey('5'), tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, int32(25), m.step)
	require.Zero(t, conn.out.Len(), "editing must not move")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc}, tea.KeyMsg{Type: tea.KeyRight})
	expectMove(t, conn, s3g.Point{25}, 500)
}

func TestControl_EditRateRejectsGarbage(t *testing.T) {
	m, conn := newTestControlModel()

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusRateInput, m.focusedField)

	m = press(t, m, runeKey('x'), tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, uint32(500), m.rate)
	require.Zero(t, conn.out.Len())
	require.True(t, m.errorLog[len(m.errorLog)-1].isError)
}

func TestControl_NoMovesWhileDisconnected(t *testing.T) {
	m, conn := newTestControlModel()

	next, _ := m.Update(connectionLostMsg{})
	m = press(t, next.(controlModel), tea.KeyMsg{Type: tea.KeyRight})

	require.Zero(t, conn.out.Len())
	require.Equal(t, s3g.Point{}, m.position)

	next, _ = m.Update(reconnectedMsg{connInfo: "again"})
	m = press(t, next.(controlModel), tea.KeyMsg{Type: tea.KeyRight})
	expectMove(t, conn, s3g.Point{100}, 500)
}

func TestControl_InboundFrames(t *testing.T) {
	m, _ := newTestControlModel()

	batch := controlBatchMsg{
		syncMsg: &controlSyncMsg{invalidBytes: 2},
		events: []frameEvent{
			{payload: s3g.NewQueueExtendedPoint(s3g.Point{7}, 9)},
			{payload: []byte{0x99}},
			{err: &s3g.CRCError{Got: 1, Expected: 2}},
		},
	}
	next, _ := m.Update(batch)
	m = next.(controlModel)

	require.True(t, m.synchronized)
	require.Equal(t, uint64(2), m.stats.TotalFrames)
	require.Equal(t, uint64(1), m.stats.ValidFrames)
	require.Equal(t, uint64(1), m.stats.CRCErrors)
	require.Equal(t, []byte{0x99}, m.lastFrame)
	require.NotEmpty(t, m.View())
}
