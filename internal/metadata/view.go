// Package metadata hosts one replica's shared view of the database-definition
// semilattice: concurrent snapshot reads, merge commits serialized on a home
// goroutine, and commit hooks for change notification.
package metadata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/TatyanaKovaleva/rethinkdb/internal/observability"
	"github.com/TatyanaKovaleva/rethinkdb/pkg/domain"
)

// ErrClosed is returned for write operations against a closed view or store.
var ErrClosed = errors.New("metadata: view is closed")

// Mutator transforms a snapshot into the snapshot to merge back. It must be
// pure: no side effects, no retained references to its argument.
type Mutator func(domain.Databases) domain.Databases

// UpdateFunc is a full write step executed on the home goroutine. It may
// validate against the current snapshot and return an error to abandon the
// write with the store untouched; otherwise the returned snapshot is merged
// into the authoritative state.
type UpdateFunc func(domain.Databases) (domain.Databases, error)

// Store is the view contract shared by the table backend and the durable
// persistence wrappers.
type Store interface {
	Replica() string
	Snapshot() domain.Databases
	Commit(ctx context.Context, fn Mutator) (domain.Databases, error)
	Update(ctx context.Context, fn UpdateFunc) (domain.Databases, error)
	OnCommit(hook func())
	Close() error
}

type updateReq struct {
	ctx   context.Context
	fn    UpdateFunc
	reply chan updateResult
}

type updateResult struct {
	state domain.Databases
	err   error
}

// View owns one logical replica of the databases metadata. All writes hop to
// the view's home goroutine, so at most one write executes at a time without
// any caller-visible lock; reads copy the state under a short read guard and
// proceed concurrently with each other.
type View struct {
	replica string
	rec     observability.Recorder

	mu    sync.RWMutex
	state domain.Databases

	updates chan updateReq
	done    chan struct{}
	stopped sync.WaitGroup
	closing sync.Once

	hookMu sync.Mutex
	hooks  []func()
}

var _ Store = (*View)(nil)

// NewView starts a view's home goroutine. The replica string identifies this
// node for logical-clock tie-breaks; rec may be nil.
func NewView(replica string, rec observability.Recorder) *View {
	if rec == nil {
		rec = observability.NopRecorder{}
	}
	v := &View{
		replica: replica,
		rec:     rec,
		state:   make(domain.Databases),
		updates: make(chan updateReq),
		done:    make(chan struct{}),
	}
	v.stopped.Add(1)
	go v.run()
	return v
}

// Replica returns this node's identity for logical-clock tie-breaks.
func (v *View) Replica() string { return v.replica }

// Snapshot returns an immutable, consistent copy of the current state.
// Concurrent readers never block each other and never observe a
// partially-applied write.
func (v *View) Snapshot() domain.Databases {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.Clone()
}

// OnCommit registers a hook invoked synchronously on the home goroutine
// after every successful commit. Hooks receive no payload; they re-snapshot
// on demand.
func (v *View) OnCommit(hook func()) {
	v.hookMu.Lock()
	v.hooks = append(v.hooks, hook)
	v.hookMu.Unlock()
}

// Commit applies fn to a fresh snapshot and joins the result into the
// authoritative state, so the post-state is merge(old, fn(old)). The
// post-merge snapshot is returned: a caller's write always composes with a
// concurrent one, but may not be the literal final state, so callers that
// care re-validate against the returned snapshot.
func (v *View) Commit(ctx context.Context, fn Mutator) (domain.Databases, error) {
	return v.Update(ctx, func(cur domain.Databases) (domain.Databases, error) {
		return fn(cur), nil
	})
}

// Update runs fn on the home goroutine. If the caller's context is cancelled
// while the request is queued or in flight, Update returns an
// InterruptedError and the home goroutine unwinds without mutating state.
func (v *View) Update(ctx context.Context, fn UpdateFunc) (domain.Databases, error) {
	start := time.Now()
	req := updateReq{ctx: ctx, fn: fn, reply: make(chan updateResult, 1)}
	select {
	case v.updates <- req:
	case <-ctx.Done():
		v.rec.Observe(ctx, "update", false, time.Since(start))
		return nil, &domain.InterruptedError{Err: ctx.Err()}
	case <-v.done:
		return nil, ErrClosed
	}
	select {
	case res := <-req.reply:
		v.rec.Observe(ctx, "update", res.err == nil, time.Since(start))
		return res.state, res.err
	case <-ctx.Done():
		// The home goroutine sees the same context and skips the write;
		// the buffered reply is dropped unread.
		v.rec.Observe(ctx, "update", false, time.Since(start))
		return nil, &domain.InterruptedError{Err: ctx.Err()}
	case <-v.done:
		return nil, ErrClosed
	}
}

// Close stops the home goroutine and fails all subsequent writes with
// ErrClosed. Snapshot keeps working on the final state.
func (v *View) Close() error {
	v.closing.Do(func() { close(v.done) })
	v.stopped.Wait()
	return nil
}

func (v *View) run() {
	defer v.stopped.Done()
	for {
		select {
		case <-v.done:
			return
		case req := <-v.updates:
			req.reply <- v.apply(req)
		}
	}
}

func (v *View) apply(req updateReq) updateResult {
	if err := req.ctx.Err(); err != nil {
		return updateResult{err: &domain.InterruptedError{Err: err}}
	}
	next, err := req.fn(v.Snapshot())
	if err != nil {
		return updateResult{err: err}
	}
	v.mu.Lock()
	v.state = v.state.Join(next)
	merged := v.state.Clone()
	v.mu.Unlock()
	v.notify()
	return updateResult{state: merged}
}

func (v *View) notify() {
	v.hookMu.Lock()
	hooks := append([]func(){}, v.hooks...)
	v.hookMu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}
