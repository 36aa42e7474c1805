// Package transport carries protocol frames between two peers.
//
// The engine talks to a Channel: an ordered, reliable message pipe that can
// report how many bytes it still holds and signal when that amount drops
// below a threshold. *webrtc.DataChannel from pion satisfies it; Pipe is an
// in-memory pair used by tests and local demos.
package transport

import (
	"errors"
)

// Exported constants.
const (
	// DefaultLowWaterMark is the buffered amount at or below which a sender
	// may queue another chunk.
	DefaultLowWaterMark = 1024 * 1024
)

// Exported variables.
var (
	ErrClosed = errors.New("channel closed")
)

// Channel is the part of a data channel the sync engine uses.
type Channel interface {
	Send(data []byte) error
	SendText(text string) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(threshold uint64)
	OnBufferedAmountLow(f func())
	Close() error
}

// Frame is one inbound message: a JSON text frame or a binary chunk frame.
type Frame struct {
	Text bool
	Data []byte
}

// Receiver consumes inbound frames of one channel in arrival order.
type Receiver interface {
	Receive(frame Frame)
	// Closed is called once when the channel goes away.
	Closed()
}
