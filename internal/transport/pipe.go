package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// PipeEnd is one side of an in-memory channel pair. Frames are delivered to
// the other side's Receiver in send order by a dedicated goroutine, and count
// towards BufferedAmount until they are delivered.
type PipeEnd struct {
	mu        sync.Mutex
	cond      *sync.Cond
	peer      *PipeEnd
	shared    *pipeState
	receiver  atomic.Value
	queue     []Frame
	buffered  uint64
	threshold uint64
	onLow     func()
	paused    bool
	sent      int
}

type receiverBox struct {
	receiver Receiver
}

type pipeState struct {
	once   sync.Once
	closed chan struct{}
}

// NewPipe returns two connected ends.
func NewPipe() (*PipeEnd, *PipeEnd) {
	shared := &pipeState{closed: make(chan struct{})}
	left := &PipeEnd{shared: shared}
	right := &PipeEnd{shared: shared}
	left.cond = sync.NewCond(&left.mu)
	right.cond = sync.NewCond(&right.mu)
	left.peer = right
	right.peer = left

	go left.deliver()
	go right.deliver()

	return left, right
}

// Attach sets the receiver for frames arriving at this end. Frames sent
// before a receiver is attached wait in the peer's queue.
func (p *PipeEnd) Attach(receiver Receiver) {
	p.receiver.Store(receiverBox{receiver: receiver})

	p.peer.mu.Lock()
	p.peer.cond.Broadcast()
	p.peer.mu.Unlock()
}

// BufferedAmount is the number of bytes sent but not yet delivered.
func (p *PipeEnd) BufferedAmount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.buffered
}

// Close closes both ends. Undelivered frames are dropped and both receivers
// are told the channel closed.
func (p *PipeEnd) Close() error {
	p.shared.once.Do(func() {
		close(p.shared.closed)

		for _, end := range []*PipeEnd{p, p.peer} {
			end.mu.Lock()
			end.queue = nil
			end.buffered = 0
			end.cond.Broadcast()
			end.mu.Unlock()
		}

		for _, end := range []*PipeEnd{p, p.peer} {
			if receiver := end.loadReceiver(); receiver != nil {
				receiver.Closed()
			}
		}
	})

	return nil
}

// OnBufferedAmountLow registers the drain callback.
func (p *PipeEnd) OnBufferedAmountLow(f func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.onLow = f
}

// Pause holds outbound frames in the buffer until Resume is called.
func (p *PipeEnd) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = true
}

// Resume releases frames held by Pause.
func (p *PipeEnd) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = false
	p.cond.Broadcast()
}

// Send queues a binary frame.
func (p *PipeEnd) Send(data []byte) error {
	return p.enqueue(Frame{Data: append([]byte(nil), data...)})
}

// SendText queues a text frame.
func (p *PipeEnd) SendText(text string) error {
	return p.enqueue(Frame{Text: true, Data: []byte(text)})
}

// Sent returns how many frames this end has sent.
func (p *PipeEnd) Sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sent
}

// SetBufferedAmountLowThreshold sets the drain threshold.
func (p *PipeEnd) SetBufferedAmountLowThreshold(threshold uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.threshold = threshold
}

func (p *PipeEnd) closedLocked() bool {
	select {
	case <-p.shared.closed:
		return true
	default:
		return false
	}
}

// deliver moves frames from this end's queue to the peer's receiver.
func (p *PipeEnd) deliver() {
	for {
		p.mu.Lock()

		for !p.closedLocked() && (len(p.queue) == 0 || p.paused || p.peer.loadReceiver() == nil) {
			p.cond.Wait()
		}

		if p.closedLocked() {
			p.mu.Unlock()
			return
		}

		frame := p.queue[0]
		p.queue = p.queue[1:]

		before := p.buffered
		p.buffered -= uint64(len(frame.Data))
		crossed := before > p.threshold && p.buffered <= p.threshold
		onLow := p.onLow
		receiver := p.peer.loadReceiver()
		p.mu.Unlock()

		receiver.Receive(frame)

		if crossed && onLow != nil {
			onLow()
		}
	}
}

func (p *PipeEnd) enqueue(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closedLocked() {
		return fmt.Errorf("pipe send: %w", ErrClosed)
	}

	p.queue = append(p.queue, frame)
	p.buffered += uint64(len(frame.Data))
	p.sent++
	p.cond.Broadcast()

	return nil
}

func (p *PipeEnd) loadReceiver() Receiver {
	box, _ := p.receiver.Load().(receiverBox)

	return box.receiver
}
