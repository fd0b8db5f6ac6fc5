package dbconfig

import (
	"errors"
	"sync"
)

// ErrNotifierClosed is returned by Subscribe after Close.
var ErrNotifierClosed = errors.New("dbconfig: notifier is closed")

// Notifier fans a "something changed" signal out to changefeed subscribers.
// Callbacks carry no payload; subscribers re-read the table to find out what
// changed, which keeps delivery idempotent under coalescing.
type Notifier struct {
	mu       sync.Mutex
	closed   bool
	nextID   uint64
	subs     map[uint64]func()
	inflight sync.WaitGroup
}

// Subscription undoes a Subscribe.
type Subscription struct {
	notifier *Notifier
	id       uint64
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[uint64]func())}
}

// Subscribe registers fn to be called on every broadcast. fn must not block;
// it runs on the broadcasting goroutine.
func (n *Notifier) Subscribe(fn func()) (*Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrNotifierClosed
	}
	n.nextID++
	id := n.nextID
	n.subs[id] = fn
	return &Subscription{notifier: n, id: id}, nil
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.notifier.mu.Lock()
	delete(s.notifier.subs, s.id)
	s.notifier.mu.Unlock()
}

// Broadcast invokes every current subscriber. Subscribers registered after a
// broadcast begins do not see it.
func (n *Notifier) Broadcast() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	fns := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.inflight.Add(1)
	n.mu.Unlock()

	defer n.inflight.Done()
	for _, fn := range fns {
		fn()
	}
}

// Close stops future broadcasts and waits for any broadcast already underway
// to drain, so after Close returns no subscriber callback is running.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.subs = make(map[uint64]func())
	n.mu.Unlock()
	n.inflight.Wait()
}
