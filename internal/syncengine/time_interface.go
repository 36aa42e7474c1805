package syncengine

import (
	"sync"
	"time"
)

// MockTicker is a mock implementation of Ticker for testing.
type MockTicker struct {
	TickChan chan time.Time
}

// C returns the ticker's channel.
func (m *MockTicker) C() <-chan time.Time {
	return m.TickChan
}

// Stop stops the ticker.
func (m *MockTicker) Stop() {
	if m.TickChan != nil {
		close(m.TickChan)
	}
}

// MockTimeProvider is a manually advanced clock for tests. Tickers it
// creates only fire through Tick.
type MockTimeProvider struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*MockTicker
}

// NewMockTimeProvider returns a clock frozen at start.
func NewMockTimeProvider(start time.Time) *MockTimeProvider {
	return &MockTimeProvider{now: start}
}

// Advance moves the clock forward by d.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = m.now.Add(d)
}

// NewTicker returns a MockTicker driven by Tick.
func (m *MockTimeProvider) NewTicker(time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticker := &MockTicker{TickChan: make(chan time.Time)}
	m.tickers = append(m.tickers, ticker)

	return ticker
}

// Now returns the current mock time.
func (m *MockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

// Tick delivers the current time to every ticker and blocks until each
// one has been read.
func (m *MockTimeProvider) Tick() {
	m.mu.Lock()
	now := m.now
	tickers := append([]*MockTicker(nil), m.tickers...)
	m.mu.Unlock()

	for _, ticker := range tickers {
		ticker.TickChan <- now
	}
}

// RealTicker wraps time.Ticker to implement the Ticker interface.
type RealTicker struct {
	ticker *time.Ticker
}

// C returns the ticker's channel.
func (r *RealTicker) C() <-chan time.Time {
	return r.ticker.C
}

// Stop stops the ticker.
func (r *RealTicker) Stop() {
	r.ticker.Stop()
}

// RealTimeProvider implements TimeProvider using real time functions.
type RealTimeProvider struct{}

// NewTicker creates a new ticker.
func (r *RealTimeProvider) NewTicker(d time.Duration) Ticker {
	return &RealTicker{ticker: time.NewTicker(d)}
}

// Now returns the current time.
func (r *RealTimeProvider) Now() time.Time {
	return time.Now()
}

// Ticker is an interface for time.Ticker to allow mocking.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TimeProvider provides time-related functionality for dependency injection.
type TimeProvider interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}
