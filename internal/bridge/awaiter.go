package bridge

import (
	"context"
	"errors"
	"sync"
)

// ErrTimeout is returned by Await when the tick deadline passes before
// the predicate is satisfied. Recoverable: the caller decides whether to
// retry.
var ErrTimeout = errors.New("await: tick deadline exceeded")

type awaitState int

const (
	awaitRegistered awaitState = iota
	awaitSatisfied
	awaitTimedOut
	awaitCancelled
)

type pendingAwait struct {
	seq    uint64
	pred   Predicate
	window *Window

	// lastTick is the tick most recently pushed into the window. A
	// registration may read the snapshot through Current before the
	// publish pass takes the lock; the pass skips that tick so no await
	// evaluates one published tick twice.
	lastTick uint64
	seeded   bool

	// deadline is absolute once anchored. An await registered before the
	// first publish anchors to the first tick it observes instead of
	// tick zero.
	deadlineTicks uint64
	deadline      uint64
	anchored      bool

	// done is buffered so the evaluation pass never blocks on a slow or
	// already-departed waiter.
	done  chan error
	state awaitState
}

// Awaiter converts "wait until the predicate holds against a future
// snapshot" into a blocking call. Waiting control flows suspend on a
// channel; the store's publish drives one evaluation per pending await
// per tick, in registration order. There is no spinning.
type Awaiter struct {
	store *Store

	mu      sync.Mutex
	pending []*pendingAwait
	nextSeq uint64

	// resolveHook observes resolutions in pass order. Tests only.
	resolveHook func(seq uint64, err error)
}

func NewAwaiter(store *Store) *Awaiter {
	a := &Awaiter{store: store}
	store.Subscribe(a.onPublish)
	return a
}

type awaitConfig struct {
	deadlineTicks uint64
}

type AwaitOption func(*awaitConfig)

// WithDeadlineTicks bounds the wait to n ticks past the registration
// tick; the await then resolves with ErrTimeout. n of 0 means no
// deadline.
func WithDeadlineTicks(n uint64) AwaitOption {
	return func(c *awaitConfig) { c.deadlineTicks = n }
}

// Await blocks until p is satisfied, the deadline passes, or ctx is
// cancelled. A predicate already true against the current snapshot
// returns nil immediately without suspending. Concurrent awaits are
// resolved in registration order when satisfied at the same tick.
func (a *Awaiter) Await(ctx context.Context, p Predicate, opts ...AwaitOption) error {
	var cfg awaitConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if p.Eval == nil {
		return nil
	}

	a.mu.Lock()
	w := newWindow(p.WindowTicks)
	cur := a.store.Current()
	if cur != nil {
		w.push(cur)
		if p.Eval(w) {
			a.mu.Unlock()
			return nil
		}
	}

	pa := &pendingAwait{
		seq:           a.nextSeq,
		pred:          p,
		window:        w,
		deadlineTicks: cfg.deadlineTicks,
		done:          make(chan error, 1),
	}
	a.nextSeq++
	if cur != nil {
		pa.lastTick = cur.Tick
		pa.seeded = true
		if cfg.deadlineTicks > 0 {
			pa.deadline = cur.Tick + cfg.deadlineTicks
			pa.anchored = true
		}
	}
	a.pending = append(a.pending, pa)
	a.mu.Unlock()

	select {
	case err := <-pa.done:
		return err
	case <-ctx.Done():
		a.cancel(pa)
		// A resolution may have raced the cancellation and won; it takes
		// precedence so the caller never misses a satisfied await.
		select {
		case err := <-pa.done:
			return err
		default:
		}
		return ctx.Err()
	}
}

// PendingCount reports how many awaits are currently registered.
func (a *Awaiter) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// cancel removes pa from the registry unless it already reached a
// terminal state. Safe to call any number of times.
func (a *Awaiter) cancel(pa *pendingAwait) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pa.state != awaitRegistered {
		return
	}
	pa.state = awaitCancelled
	for i, p := range a.pending {
		if p == pa {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			break
		}
	}
}

// onPublish is the per-tick evaluation pass. It runs under the registry
// lock, so it is atomic with respect to registration and cancellation:
// every pending await is evaluated against snap exactly once. An await
// registered while a publish is in flight evaluates against snap via
// the immediate check in Await and is skipped here via lastTick.
func (a *Awaiter) onPublish(snap *Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	keep := a.pending[:0]
	for _, pa := range a.pending {
		if pa.seeded && pa.lastTick == snap.Tick {
			keep = append(keep, pa)
			continue
		}
		if pa.deadlineTicks > 0 && !pa.anchored {
			pa.deadline = snap.Tick + pa.deadlineTicks
			pa.anchored = true
		}
		pa.window.push(snap)
		pa.lastTick = snap.Tick
		pa.seeded = true
		if pa.pred.Eval(pa.window) {
			pa.state = awaitSatisfied
			if a.resolveHook != nil {
				a.resolveHook(pa.seq, nil)
			}
			pa.done <- nil
			continue
		}
		if pa.anchored && snap.Tick >= pa.deadline {
			pa.state = awaitTimedOut
			if a.resolveHook != nil {
				a.resolveHook(pa.seq, ErrTimeout)
			}
			pa.done <- ErrTimeout
			continue
		}
		keep = append(keep, pa)
	}
	for i := len(keep); i < len(a.pending); i++ {
		a.pending[i] = nil
	}
	a.pending = keep
}
