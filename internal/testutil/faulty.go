package testutil

import (
	"context"
	"sync"

	"github.com/roach88/healthlog/internal/model"
)

// Repository is the write and bulk-read surface of a collection repository.
type Repository[T model.Entity] interface {
	Add(ctx context.Context, item T) error
	Update(ctx context.Context, item T) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	BatchUpsert(ctx context.Context, items []T) error
	GetAll(ctx context.Context) ([]T, error)
}

// Op names a repository operation for fault injection.
type Op string

const (
	OpAdd         Op = "add"
	OpUpdate      Op = "update"
	OpDelete      Op = "delete"
	OpClear       Op = "clear"
	OpBatchUpsert Op = "batch_upsert"
	OpGetAll      Op = "get_all"
)

// FaultyRepository wraps a repository and fails chosen calls.
//
// Queued errors are returned in order, one per call, without reaching the
// wrapped repository. A call may also be held until the test releases it,
// which lets tests observe the cache while a write is in flight.
//
// Thread-safety: all methods are safe for concurrent use.
type FaultyRepository[T model.Entity] struct {
	inner Repository[T]

	mu     sync.Mutex
	errs   map[Op][]error
	gates  map[Op][]chan struct{}
	calls  map[Op]int
	called chan Op
}

// NewFaultyRepository wraps inner. With no faults queued it behaves exactly
// like inner.
func NewFaultyRepository[T model.Entity](inner Repository[T]) *FaultyRepository[T] {
	return &FaultyRepository[T]{
		inner:  inner,
		errs:   make(map[Op][]error),
		gates:  make(map[Op][]chan struct{}),
		calls:  make(map[Op]int),
		called: make(chan Op, 64),
	}
}

// Fail queues errs for the next calls of op.
func (r *FaultyRepository[T]) Fail(op Op, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[op] = append(r.errs[op], errs...)
}

// Hold blocks the next call of op until the returned release func is called.
// The held call then proceeds (and may still fail if an error is queued).
func (r *FaultyRepository[T]) Hold(op Op) (release func()) {
	gate := make(chan struct{})

	r.mu.Lock()
	r.gates[op] = append(r.gates[op], gate)
	r.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Called returns a channel receiving op for every call as it starts.
// Tests use it to wait until a held call has reached the repository.
func (r *FaultyRepository[T]) Called() <-chan Op {
	return r.called
}

// Calls returns how many times op was invoked.
func (r *FaultyRepository[T]) Calls(op Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// Add implements Repository.
func (r *FaultyRepository[T]) Add(ctx context.Context, item T) error {
	if err := r.enter(OpAdd); err != nil {
		return err
	}
	return r.inner.Add(ctx, item)
}

// Update implements Repository.
func (r *FaultyRepository[T]) Update(ctx context.Context, item T) error {
	if err := r.enter(OpUpdate); err != nil {
		return err
	}
	return r.inner.Update(ctx, item)
}

// Delete implements Repository.
func (r *FaultyRepository[T]) Delete(ctx context.Context, key string) error {
	if err := r.enter(OpDelete); err != nil {
		return err
	}
	return r.inner.Delete(ctx, key)
}

// Clear implements Repository.
func (r *FaultyRepository[T]) Clear(ctx context.Context) error {
	if err := r.enter(OpClear); err != nil {
		return err
	}
	return r.inner.Clear(ctx)
}

// BatchUpsert implements Repository.
func (r *FaultyRepository[T]) BatchUpsert(ctx context.Context, items []T) error {
	if err := r.enter(OpBatchUpsert); err != nil {
		return err
	}
	return r.inner.BatchUpsert(ctx, items)
}

// GetAll implements Repository.
func (r *FaultyRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	if err := r.enter(OpGetAll); err != nil {
		return nil, err
	}
	return r.inner.GetAll(ctx)
}

// enter records the call, waits on a pending gate, and pops a queued error.
func (r *FaultyRepository[T]) enter(o Op) error {
	r.mu.Lock()
	r.calls[o]++
	var gate chan struct{}
	if gates := r.gates[o]; len(gates) > 0 {
		gate, r.gates[o] = gates[0], gates[1:]
	}
	r.mu.Unlock()

	select {
	case r.called <- o:
	default:
	}

	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if errs := r.errs[o]; len(errs) > 0 {
		err := errs[0]
		r.errs[o] = errs[1:]
		return err
	}
	return nil
}
