// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var (
	controlStep int32
	controlRate uint32
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for jogging the positioner",
	Long: `Jog the positioner from an interactive terminal UI.

Keys:
  Arrow keys     jog X / Y by one step
  PgUp / PgDn    jog Z by one step
  + / -          raise / lower the feed rate
  h              return to home (all axes 0)
  Tab            edit step size / feed rate (Enter applies)
  q              quit

Every action queues one extended point move. Inbound frames are decoded and
shown in the event log. The link is reopened automatically if it drops.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().Int32Var(&controlStep, "step", 100, "Initial jog step in steps")
	controlCmd.Flags().Uint32Var(&controlRate, "rate", 500, "Initial feed rate")
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn       Connection
	replicator *s3g.Replicator
	connInfo   string
	stats      *s3g.Statistics
	mu         sync.RWMutex
	p          *tea.Program
	done       chan struct{}
}

func newConnectionManager(conn Connection, connInfo string, stats *s3g.Statistics) *connectionManager {
	cm := &connectionManager{
		stats: stats,
		done:  make(chan struct{}),
	}
	cm.setConn(conn, connInfo)
	return cm
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

// getReplicator returns the replicator for the current link, or nil while
// reconnecting
func (cm *connectionManager) getReplicator() *s3g.Replicator {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.replicator
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
	cm.replicator = nil
	if conn != nil {
		cm.replicator = newReplicator(conn, cm.stats)
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	stats := s3g.NewStatistics()
	cm := newConnectionManager(conn, connInfo, stats)

	m := initialControlModel(cm, connInfo, controlStep, controlRate)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	_, err = p.Run()
	close(cm.done)
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		if cm.readFromConnection() {
			cm.p.Send(connectionLostMsg{})
			if !cm.reconnect() {
				return
			}
		}
	}
}

// readFromConnection decodes frames from the connection until it fails.
// Returns true if the connection was lost, false if shutdown requested.
func (cm *connectionManager) readFromConnection() bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batchChan := make(chan frameEvent, 100)
	syncChan := make(chan controlSyncMsg, 1)
	readerDone := make(chan struct{})

	conn := cm.getConn()
	if conn == nil {
		return true
	}

	// Reader goroutine - decodes frames and queues them for batching
	go func() {
		defer close(readerDone)
		tracker := &syncTracker{}
		err := pumpFrames(ctx, conn, func(ev frameEvent) {
			report, justSynced := tracker.observe(ev)
			if justSynced {
				select {
				case syncChan <- controlSyncMsg{invalidBytes: tracker.invalidBytes}:
				default:
				}
			}
			if !report {
				return
			}
			select {
			case batchChan <- ev:
			default:
			}
		})
		if err != nil {
			logger.Debug().Err(err).Msg("reader stopped")
		}
	}()

	// Batch sender - forwards decoded frames to the TUI at a fixed rate
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cm.done:
			cancel()
			<-readerDone
			return false

		case <-readerDone:
			cm.flushBatch(batchChan, syncChan)
			select {
			case <-cm.done:
				return false
			default:
				return true
			}

		case <-ticker.C:
			cm.flushBatch(batchChan, syncChan)
		}
	}
}

func (cm *connectionManager) flushBatch(batchChan chan frameEvent, syncChan chan controlSyncMsg) {
	var batch controlBatchMsg

	select {
	case sync := <-syncChan:
		batch.syncMsg = &sync
	default:
	}

drainLoop:
	for {
		select {
		case ev := <-batchChan:
			batch.events = append(batch.events, ev)
		default:
			break drainLoop
		}
	}

	if batch.syncMsg != nil || len(batch.events) > 0 {
		cm.p.Send(batch)
	}
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
	cm.setConn(nil, "")

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}
		logger.Debug().Err(err).Dur("backoff", backoff).Msg("reconnect failed")

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
