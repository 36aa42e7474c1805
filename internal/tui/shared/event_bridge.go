package shared

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/peersync/internal/syncengine"
)

const bridgeBuffer = 256

// EngineEventMsg wraps a syncengine.Event for use as a tea.Msg.
type EngineEventMsg struct {
	Event syncengine.Event
}

// EventBridge adapts syncengine events to bubble tea messages.
// It implements syncengine.EventEmitter and provides a channel for TUI consumption.
// Emit is called from engine goroutines and never blocks them.
type EventBridge struct {
	mu        sync.RWMutex
	eventChan chan tea.Msg
	closed    bool
	dropped   int
}

// NewEventBridge creates a new event bridge.
func NewEventBridge() *EventBridge {
	return &EventBridge{
		eventChan: make(chan tea.Msg, bridgeBuffer),
	}
}

// Close closes the event channel. Later Emit calls are ignored.
func (b *EventBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.eventChan)
	}
}

// Dropped reports how many events were discarded because the monitor fell behind.
func (b *EventBridge) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.dropped
}

// Emit implements syncengine.EventEmitter.
// It wraps the event in EngineEventMsg and sends to the channel.
func (b *EventBridge) Emit(event syncengine.Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}

	select {
	case b.eventChan <- EngineEventMsg{Event: event}:
		b.mu.RUnlock()
	default:
		b.mu.RUnlock()

		// The next FolderUpdated carries the full state again.
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
	}
}

// ListenCmd returns a tea.Cmd that blocks until an event is received.
// Use this in Init() or after processing an event to continue listening.
func (b *EventBridge) ListenCmd() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-b.eventChan
		if !ok {
			return nil
		}

		return msg
	}
}

// Subscribe returns the event channel for receiving events.
func (b *EventBridge) Subscribe() <-chan tea.Msg {
	return b.eventChan
}
