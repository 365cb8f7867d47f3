package mavity

import (
	"fmt"

	"github.com/google/uuid"
)

// TickHook inspects consecutive snapshots after each tick. The returned
// errors are routed to the engine's log sink; they do not stop the run.
// diag.Check has the matching shape.
type TickHook func(prev, next *Snapshot, p SimParams) []error

// Engine is the host-side facade over a backend: it owns the run identity,
// the log sink, and the optional per-tick verification hook.
type Engine struct {
	backend Backend
	log     Logger
	runID   uuid.UUID

	hook TickHook
	prev *Snapshot
}

type Option func(*Engine)

// WithLogger attaches a log sink. The default drops everything.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTickHook attaches a snapshot inspector run after every tick. Snapshots
// are read back each tick, so this is a diagnostic-build option.
func WithTickHook(h TickHook) Option {
	return func(e *Engine) { e.hook = h }
}

// NewEngine wraps an already-constructed backend.
func NewEngine(b Backend, opts ...Option) (*Engine, error) {
	if b == nil {
		return nil, fmt.Errorf("engine: nil backend")
	}
	e := &Engine{
		backend: b,
		log:     NewNopLogger(),
		runID:   uuid.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log.Infof("engine %s: backend=%s", e.runID, b.Name())
	return e, nil
}

// RunID identifies this engine instance in logs and diagnostic artifacts.
func (e *Engine) RunID() uuid.UUID { return e.runID }

// Params returns the simulation constants.
func (e *Engine) Params() SimParams { return e.backend.Params() }

// Ticks returns the completed pass count.
func (e *Engine) Ticks() int { return e.backend.Ticks() }

// Snapshot reads the current state back from the backend.
func (e *Engine) Snapshot() (*Snapshot, error) { return e.backend.Snapshot() }

// Tick advances one pass and, when a hook is attached, verifies the result.
func (e *Engine) Tick() error {
	if e.hook != nil && e.prev == nil {
		snap, err := e.backend.Snapshot()
		if err != nil {
			return fmt.Errorf("engine %s: pre-tick snapshot: %w", e.runID, err)
		}
		e.prev = snap
	}

	if err := e.backend.Tick(); err != nil {
		return fmt.Errorf("engine %s: tick %d: %w", e.runID, e.backend.Ticks(), err)
	}

	if e.hook != nil {
		next, err := e.backend.Snapshot()
		if err != nil {
			return fmt.Errorf("engine %s: post-tick snapshot: %w", e.runID, err)
		}
		for _, verr := range e.hook(e.prev, next, e.backend.Params()) {
			e.log.Errorf("tick %d: %v", e.backend.Ticks(), verr)
		}
		e.prev = next
	}
	return nil
}

// Close releases the backend's resources. The engine is unusable afterwards.
func (e *Engine) Close() error { return e.backend.Close() }
