package wavechan

import (
	"context"
	"sort"
	"sync"
	"time"
)

// fakeConn is a Connection double that records writes and lets tests inject
// inbound frames and transport failures.
type fakeConn struct {
	openFunc func(ctx context.Context) error

	mu       sync.Mutex
	recv     chan<- Message
	writes   []string
	closeC   CloseChan
	once     sync.Once
	closeErr error
	closed   bool
}

func (f *fakeConn) Open(ctx context.Context) error {
	if f.openFunc != nil {
		return f.openFunc(ctx)
	}
	return nil
}

func (f *fakeConn) Write(m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnectionClosed
	}
	f.writes = append(f.writes, string(m.Data()))
	return nil
}

func (f *fakeConn) Close() { f.drop(ErrTerminated) }

func (f *fakeConn) CloseErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeErr
}

func (f *fakeConn) CloseChan() CloseChan { return f.closeC }

func (f *fakeConn) drop(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.closeErr = err
		f.mu.Unlock()
		close(f.closeC)
	})
}

// Deliver pushes a text frame as if the server had sent it.
func (f *fakeConn) Deliver(frame string) {
	f.Push(NewDataMessage([]byte(frame)))
}

// Push hands any transport frame to the channel.
func (f *fakeConn) Push(m Message) {
	f.recv <- m
}

func (f *fakeConn) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeFactory hands out fakeConns and remembers them in creation order.
type fakeFactory struct {
	mu       sync.Mutex
	conns    []*fakeConn
	openFunc func(attempt int) func(ctx context.Context) error
}

func (ff *fakeFactory) Factory() ConnectionFactory {
	return func(_ context.Context, recv chan<- Message) Connection {
		ff.mu.Lock()
		defer ff.mu.Unlock()

		c := &fakeConn{recv: recv, closeC: make(CloseChan)}
		if ff.openFunc != nil {
			c.openFunc = ff.openFunc(len(ff.conns) + 1)
		}
		ff.conns = append(ff.conns, c)
		return c
	}
}

func (ff *fakeFactory) Len() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.conns)
}

func (ff *fakeFactory) Conn(i int) *fakeConn {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if i >= len(ff.conns) {
		return nil
	}
	return ff.conns[i]
}

// fakeClock only moves when told to. Timers due after Advance fire on the
// caller's goroutine, earliest first.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
