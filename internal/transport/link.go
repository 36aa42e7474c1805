package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/joe/peersync/internal/protocol"
	pkgerrors "github.com/joe/peersync/pkg/errors"
)

// Link sends protocol frames over a Channel and applies cooperative
// backpressure to binary frames.
type Link struct {
	ch        Channel
	lowWater  uint64
	drained   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewLink installs the drain callback on ch. A zero lowWater selects
// DefaultLowWaterMark.
func NewLink(ch Channel, lowWater uint64) *Link {
	if lowWater == 0 {
		lowWater = DefaultLowWaterMark
	}

	link := &Link{
		ch:       ch,
		lowWater: lowWater,
		drained:  make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}

	ch.SetBufferedAmountLowThreshold(lowWater)
	ch.OnBufferedAmountLow(link.signalDrained)

	return link
}

// Close closes the channel and wakes any sender waiting for a drain.
func (l *Link) Close() error {
	l.MarkClosed()

	if err := l.ch.Close(); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrChannel, err)
	}

	return nil
}

// MarkClosed records that the channel went away without closing it again.
func (l *Link) MarkClosed() {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
}

// SendChunk waits for the channel to drain, then sends one binary frame.
func (l *Link) SendChunk(ctx context.Context, sessionID uint32, data []byte) error {
	if err := l.WaitForDrain(ctx); err != nil {
		return err
	}

	if err := l.ch.Send(protocol.EncodeChunk(sessionID, data)); err != nil {
		return fmt.Errorf("%w: send chunk: %w", pkgerrors.ErrChannel, err)
	}

	return nil
}

// SendMessage encodes msg and sends it as a text frame. Control messages
// never wait for the channel to drain.
func (l *Link) SendMessage(msg protocol.Message) error {
	if l.isClosed() {
		return fmt.Errorf("%w: send %s: %w", pkgerrors.ErrChannel, msg.Type(), ErrClosed)
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	if err := l.ch.SendText(string(data)); err != nil {
		return fmt.Errorf("%w: send %s: %w", pkgerrors.ErrChannel, msg.Type(), err)
	}

	return nil
}

// WaitForDrain blocks while the channel holds more than the low-water mark.
// The drain signal may be stale, so the buffered amount is checked again
// after every wake-up.
func (l *Link) WaitForDrain(ctx context.Context) error {
	for {
		if l.isClosed() {
			return fmt.Errorf("%w: %w", pkgerrors.ErrChannel, ErrClosed)
		}

		if l.ch.BufferedAmount() <= l.lowWater {
			return nil
		}

		select {
		case <-l.drained:
		case <-l.closed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Link) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

func (l *Link) signalDrained() {
	select {
	case l.drained <- struct{}{}:
	default:
	}
}
