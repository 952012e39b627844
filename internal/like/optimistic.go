package like

import "sync"

// Phase is the state of an optimistic transaction.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Optimistic holds a value that is changed before remote confirmation and
// restored if the confirmation fails. At most one transaction is pending
// at a time.
type Optimistic[T any] struct {
	mu       sync.Mutex
	current  T
	previous T
	phase    Phase
}

func NewOptimistic[T any](initial T) *Optimistic[T] {
	return &Optimistic[T]{current: initial}
}

// Begin captures the current value, applies the optimistic change and
// returns the captured value. ok is false, and nothing changes, while
// another transaction is pending.
func (o *Optimistic[T]) Begin(apply func(T) T) (previous T, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase == PhasePending {
		return previous, false
	}
	o.previous = o.current
	o.current = apply(o.current)
	o.phase = PhasePending
	return o.previous, true
}

// Commit ends the pending transaction, keeping the optimistic value after
// reconcile (which may be nil) has had a chance to adjust it.
func (o *Optimistic[T]) Commit(reconcile func(T) T) T {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase != PhasePending {
		return o.current
	}
	if reconcile != nil {
		o.current = reconcile(o.current)
	}
	o.phase = PhaseCommitted
	return o.current
}

// Rollback ends the pending transaction, restoring the captured value.
func (o *Optimistic[T]) Rollback() T {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase != PhasePending {
		return o.current
	}
	o.current = o.previous
	o.phase = PhaseRolledBack
	return o.current
}

func (o *Optimistic[T]) Current() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Phase returns PhasePending during a transaction, otherwise how the last one
// ended (PhaseIdle if there was none).
func (o *Optimistic[T]) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}
