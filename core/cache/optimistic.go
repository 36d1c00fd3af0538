package cache

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/eduassist/core"
)

var ErrMutationReused = errors.New("mutation instance already ran")

type (
	// UpdateFunc computes the speculative value from the current cached
	// value. It must not mutate `current` in place; the returned value
	// replaces it.
	UpdateFunc func(current interface{}) interface{}

	// MutationFunc performs the remote write.
	MutationFunc func(ctx context.Context) (interface{}, error)

	// RollbackFunc derives the restore value from the pre-mutation
	// snapshot. When nil, the snapshot is restored verbatim.
	RollbackFunc func(snapshot interface{}) interface{}

	// KeyedUpdate pairs a cache key with its speculative update.
	KeyedUpdate struct {
		Key      Key
		Update   UpdateFunc
		Rollback RollbackFunc
	}
)

// State of a mutation instance. Committed and RolledBack are terminal;
// an instance is never reused.
type State int

const (
	StateIdle State = iota
	StateSpeculating
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeculating:
		return "speculating"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

type options struct {
	successMsg string
	errorMsg   string
	// reconcile re-keys the speculative value with the server payload
	// after a successful remote write.
	reconcile func(result interface{}) (interface{}, bool)
}

type Option func(*options)

// WithSuccessMessage emits a success notification once the remote
// write commits.
func WithSuccessMessage(msg string) Option {
	return func(o *options) { o.successMsg = msg }
}

// WithErrorMessage emits an error notification when the mutation rolls
// back. The original error is still returned to the caller.
func WithErrorMessage(msg string) Option {
	return func(o *options) { o.errorMsg = msg }
}

// WithReconcile replaces the speculative value with a server-confirmed
// one derived from the remote result. Only valid for single-key
// mutations.
func WithReconcile(fn func(result interface{}) (interface{}, bool)) Option {
	return func(o *options) { o.reconcile = fn }
}

// Mutator applies speculative updates to a shared cache around remote
// writes: snapshot before the speculative write, restore on failure.
// Concurrent mutations on overlapping keys are last-write-wins; the
// cache is a UI-grade store, not a correctness-critical one.
type Mutator struct {
	cache    Cache
	notifier Notifier
	logger   core.Logger
}

func NewMutator(cache Cache, notifier Notifier, logger core.Logger) *Mutator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Mutator{cache: cache, notifier: notifier, logger: logger}
}

func (m *Mutator) Cache() Cache { return m.cache }

// Perform runs a single-key optimistic mutation:
//  1. snapshot the current value at key;
//  2. if present, write update(current) synchronously so every reader
//     sees it before the remote call is dispatched;
//  3. run mutate;
//  4. on success keep the speculative (or reconciled) value and return
//     the remote result;
//  5. on failure restore the snapshot and return the original error.
func (m *Mutator) Perform(ctx context.Context, key Key, update UpdateFunc, mutate MutationFunc, opts ...Option) (interface{}, error) {
	return m.PerformGroup(ctx, []KeyedUpdate{{Key: key, Update: update}}, mutate, opts...)
}

// PerformGroup runs an optimistic mutation over several related keys as
// a group: every key is snapshotted before any is written, and on
// failure every written key is rolled back. Partial rollback is not a
// valid state.
func (m *Mutator) PerformGroup(ctx context.Context, updates []KeyedUpdate, mutate MutationFunc, opts ...Option) (interface{}, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	mut := &mutation{
		mutator: m,
		updates: updates,
		opts:    o,
	}
	return mut.run(ctx, mutate)
}

// mutation is a single-use optimistic mutation instance; it owns its
// snapshots for the duration of its lifecycle.
type mutation struct {
	mutator *Mutator
	updates []KeyedUpdate
	opts    options
	state   State

	snapshots []snapshot
}

type snapshot struct {
	key     Key
	value   interface{}
	existed bool
	wrote   bool
}

func (mut *mutation) run(ctx context.Context, mutate MutationFunc) (interface{}, error) {
	if mut.state != StateIdle {
		return nil, ErrMutationReused
	}

	if err := mut.speculate(ctx); err != nil {
		// an unreadable cache never blocks the remote write; skip the
		// speculative phase entirely
		mut.mutator.logger.Warn("optimistic update skipped", err)
		mut.snapshots = nil
	}
	mut.state = StateSpeculating

	result, err := mutate(ctx)
	if err != nil {
		mut.rollback(ctx)
		mut.state = StateRolledBack
		if mut.opts.errorMsg != "" {
			mut.mutator.notifier.Error(mut.opts.errorMsg)
		}
		// always propagate the original error; rollback is not recovery
		return nil, err
	}

	mut.reconcile(ctx, result)
	mut.state = StateCommitted
	if mut.opts.successMsg != "" {
		mut.mutator.notifier.Success(mut.opts.successMsg)
	}
	return result, nil
}

// speculate snapshots all keys first, then applies all updates, so a
// failure mid-group can always restore every touched key.
func (mut *mutation) speculate(ctx context.Context) error {
	cache := mut.mutator.cache

	mut.snapshots = make([]snapshot, 0, len(mut.updates))
	for _, upd := range mut.updates {
		current, ok, err := cache.Get(ctx, upd.Key)
		if err != nil {
			return pkgerrors.Wrapf(err, "reading cache key %s", upd.Key)
		}
		mut.snapshots = append(mut.snapshots, snapshot{key: upd.Key, value: current, existed: ok})
	}

	for i, upd := range mut.updates {
		if !mut.snapshots[i].existed {
			// nothing cached yet; nothing to speculate on
			continue
		}
		if err := cache.Set(ctx, upd.Key, upd.Update(mut.snapshots[i].value)); err != nil {
			mut.rollback(ctx)
			return pkgerrors.Wrapf(err, "writing cache key %s", upd.Key)
		}
		mut.snapshots[i].wrote = true
	}
	return nil
}

func (mut *mutation) rollback(ctx context.Context) {
	cache := mut.mutator.cache

	for i, snap := range mut.snapshots {
		if !snap.wrote {
			continue
		}
		restore := snap.value
		if fn := mut.updates[i].Rollback; fn != nil {
			restore = fn(snap.value)
		}
		if err := cache.Set(ctx, snap.key, restore); err != nil {
			mut.mutator.logger.Error("rolling back cache key "+snap.key.String(), err)
		}
	}
}

func (mut *mutation) reconcile(ctx context.Context, result interface{}) {
	if mut.opts.reconcile == nil || len(mut.updates) != 1 {
		return
	}
	value, ok := mut.opts.reconcile(result)
	if !ok {
		return
	}
	if err := mut.mutator.cache.Set(ctx, mut.updates[0].Key, value); err != nil {
		mut.mutator.logger.Error("reconciling cache key "+mut.updates[0].Key.String(), err)
	}
}
