package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/looplab/fsm"
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/healthlog/internal/model"
	"github.com/roach88/healthlog/internal/store"
)

// Repository is the durable side of a collection.
// *repo.Repository satisfies it.
type Repository[T model.Entity] interface {
	Add(ctx context.Context, item T) error
	Update(ctx context.Context, item T) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	BatchUpsert(ctx context.Context, items []T) error
	GetAll(ctx context.Context) ([]T, error)
}

// Config describes one cached collection.
type Config[T model.Entity] struct {
	// Name is used in logs and error ops ("fields", "records").
	Name string

	// Repo is the repository writes go through.
	Repo Repository[T]

	// Compare orders the mirror. It must be a total order.
	Compare func(a, b T) int

	// Migrate fills attributes introduced after an entity was stored and
	// reports whether it changed anything. May be nil.
	Migrate func(item T) (T, bool)
}

// Collection is the optimistic mirror of one collection.
//
// Besides the mirror it tracks, per key, the last value known to be stored
// and the number of unresolved mutations. Whenever the last mutation of a
// key resolves, the key shows its stored value again, so the mirror matches
// the database once nothing is in flight.
//
// Thread-safety: all methods are safe for concurrent use. Repository calls
// are made without holding the mirror lock, so mutations of different
// entities proceed independently.
type Collection[T model.Entity] struct {
	cfg  Config[T]
	opts Options
	l    *zap.Logger

	mu      sync.Mutex
	items   []T
	stored  map[string]T   // last value known to be durable
	pending map[string]int // unresolved mutations per key
	seq     uint64         // id of the most recently issued operation
	status  *fsm.FSM
	lastErr *store.Error

	loads singleflight.Group
}

// change is the effect of a mutation on one key. A nil item removes the key.
type change[T model.Entity] struct {
	key  string
	item *T
}

func put[T model.Entity](item T) change[T] {
	return change[T]{key: item.Key(), item: &item}
}

func remove[T model.Entity](key string) change[T] {
	return change[T]{key: key}
}

func puts[T model.Entity](items []T) []change[T] {
	changes := make([]change[T], 0, len(items))
	for _, item := range items {
		changes = append(changes, put(item))
	}
	return changes
}

// New creates an empty collection. Call Load to populate it.
func New[T model.Entity](cfg Config[T], opts Options, l *zap.Logger) *Collection[T] {
	l = l.Named(cfg.Name)
	return &Collection[T]{
		cfg:     cfg,
		opts:    opts,
		l:       l,
		items:   []T{},
		stored:  make(map[string]T),
		pending: make(map[string]int),
		status:  newStatusFSM(l),
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.cfg.Name
}

// Mirror returns a copy of the mirror in collection order.
// It never fails and never touches storage.
func (c *Collection[T]) Mirror() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Get returns the mirrored entity for key.
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(key); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Len returns the number of mirrored entities.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Status returns the outcome of the most recently issued operation.
func (c *Collection[T]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.status.Current()
	return Status{
		State:   state,
		Loading: state == StateLoading,
		Err:     c.lastErr,
	}
}

// ClearError acknowledges a failed operation and returns the status to idle.
func (c *Collection[T]) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = nil
	fire(c.status, eventReset)
}

// Add stores item, showing it in the mirror immediately.
func (c *Collection[T]) Add(ctx context.Context, item T) error {
	return c.mutate(ctx, "add", func() []change[T] {
		return []change[T]{put(item)}
	}, func(ctx context.Context) error {
		return c.cfg.Repo.Add(ctx, item)
	})
}

// Update stores item, replacing the mirrored entity immediately.
func (c *Collection[T]) Update(ctx context.Context, item T) error {
	return c.mutate(ctx, "update", func() []change[T] {
		return []change[T]{put(item)}
	}, func(ctx context.Context) error {
		return c.cfg.Repo.Update(ctx, item)
	})
}

// Delete removes key, hiding it from the mirror immediately.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.mutate(ctx, "delete", func() []change[T] {
		return []change[T]{remove[T](key)}
	}, func(ctx context.Context) error {
		return c.cfg.Repo.Delete(ctx, key)
	})
}

// Clear removes every entity.
func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.mutate(ctx, "clear", func() []change[T] {
		keys := c.keysLocked()
		for key := range c.stored {
			if !slices.Contains(keys, key) {
				keys = append(keys, key)
			}
		}

		changes := make([]change[T], 0, len(keys))
		for _, key := range keys {
			changes = append(changes, remove[T](key))
		}
		return changes
	}, c.cfg.Repo.Clear)
}

// BatchUpsert stores items in one transaction. The mirror shows all of them
// immediately and loses all of them if the write fails.
func (c *Collection[T]) BatchUpsert(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}

	return c.mutate(ctx, "batch_upsert", func() []change[T] {
		return puts(items)
	}, func(ctx context.Context) error {
		return c.cfg.Repo.BatchUpsert(ctx, items)
	})
}

// Load replaces the mirror with the stored collection, then migrates
// entities stored by older versions and writes them back.
//
// Concurrent calls share a single read. If the read fails the mirror is
// left unchanged. Keys with mutations in flight keep their mirrored state.
// If the migration write-back fails the mirror shows the entities as
// loaded, before migration.
func (c *Collection[T]) Load(ctx context.Context) error {
	_, err, shared := c.loads.Do("load", func() (any, error) {
		return nil, c.load(ctx)
	})
	if shared {
		c.l.Debug("Joined in-flight load")
	}
	return err
}

func (c *Collection[T]) load(ctx context.Context) error {
	c.mu.Lock()
	id := c.beginLocked()
	c.mu.Unlock()

	items, err := c.cfg.Repo.GetAll(ctx)
	if err != nil {
		se := store.Classify(c.cfg.Name+".load", err)

		c.mu.Lock()
		c.resolveLocked(id, se)
		c.mu.Unlock()

		c.l.Warn("Load failed", zap.Error(se))
		return se
	}

	c.mu.Lock()
	c.stored = make(map[string]T, len(items))
	for _, item := range items {
		c.stored[item.Key()] = item
	}
	c.rebaseLocked()
	c.resolveLocked(id, nil)
	c.mu.Unlock()

	c.l.Debug("Loaded", zap.Int("count", len(items)))

	return c.migrate(ctx)
}

// migrate writes back every mirrored entity the migrator changes.
// Entities that are still invalid after migration are left as loaded.
func (c *Collection[T]) migrate(ctx context.Context) error {
	if c.cfg.Migrate == nil {
		return nil
	}

	c.mu.Lock()
	var changed []T
	for _, item := range c.items {
		migrated, ok := c.cfg.Migrate(item)
		if !ok {
			continue
		}
		if err := migrated.Validate(); err != nil {
			c.l.Warn("Skipping entity that cannot be migrated", zap.String("key", item.Key()), zap.Error(err))
			continue
		}
		changed = append(changed, migrated)
	}
	c.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}

	c.l.Info("Migrating stored entities", zap.Int("count", len(changed)))

	return c.mutate(ctx, "migrate", func() []change[T] {
		return puts(changed)
	}, func(ctx context.Context) error {
		return c.cfg.Repo.BatchUpsert(ctx, changed)
	})
}

// mutate runs the optimistic protocol. plan runs under the lock and returns
// the changes to apply to the mirror before call writes them.
//
// When call succeeds the changes become the stored values. When it fails,
// RollbackEntity leaves the mirror alone and RollbackSnapshot restores the
// mirror captured before plan. Either way every key left without an
// unresolved mutation then shows its stored value.
func (c *Collection[T]) mutate(ctx context.Context, op string, plan func() []change[T], call func(ctx context.Context) error) error {
	c.mu.Lock()
	var prev []T
	if c.opts.Rollback == RollbackSnapshot {
		prev = c.snapshotLocked()
	}

	changes := plan()
	for _, ch := range changes {
		c.applyLocked(ch)
		c.pending[ch.key]++
	}
	id := c.beginLocked()
	c.mu.Unlock()

	err := call(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	var se *store.Error
	if err != nil {
		se = store.Classify(c.cfg.Name+"."+op, err)
	}

	for _, ch := range changes {
		if se == nil {
			c.storeLocked(ch)
		}
		if c.pending[ch.key]--; c.pending[ch.key] <= 0 {
			delete(c.pending, ch.key)
		}
	}

	switch {
	case se == nil || c.opts.Rollback != RollbackSnapshot:
		for _, ch := range changes {
			if c.pending[ch.key] == 0 {
				c.settleLocked(ch.key)
			}
		}
	default:
		c.items = prev
		c.rebaseLocked()
	}

	c.resolveLocked(id, se)
	if se != nil {
		c.l.Warn("Mutation rolled back", zap.String("op", op), zap.Int("keys", len(changes)), zap.Error(se))
		return se
	}
	return nil
}

// beginLocked issues a new operation id and marks the collection loading.
func (c *Collection[T]) beginLocked() uint64 {
	c.seq++
	fire(c.status, eventBegin)
	return c.seq
}

// resolveLocked records the outcome of operation id.
// Only the most recently issued operation decides the status.
func (c *Collection[T]) resolveLocked(id uint64, err *store.Error) {
	if id != c.seq {
		return
	}

	if err != nil {
		c.lastErr = err
		fire(c.status, eventFail)
		return
	}
	c.lastErr = nil
	fire(c.status, eventSucceed)
}

func (c *Collection[T]) applyLocked(ch change[T]) {
	if ch.item == nil {
		c.removeLocked(ch.key)
		return
	}
	c.upsertLocked(*ch.item)
}

func (c *Collection[T]) storeLocked(ch change[T]) {
	if ch.item == nil {
		delete(c.stored, ch.key)
		return
	}
	c.stored[ch.key] = *ch.item
}

// settleLocked makes key show its stored value.
func (c *Collection[T]) settleLocked(key string) {
	c.removeLocked(key)
	if item, ok := c.stored[key]; ok {
		c.insertLocked(item)
	}
}

// rebaseLocked makes every key without an unresolved mutation show its
// stored value. Keys with one keep their mirrored state.
func (c *Collection[T]) rebaseLocked() {
	items := make([]T, 0, len(c.stored)+len(c.pending))
	for _, item := range c.items {
		if c.pending[item.Key()] > 0 {
			items = append(items, item)
		}
	}
	for key, item := range c.stored {
		if c.pending[key] == 0 {
			items = append(items, item)
		}
	}
	slices.SortStableFunc(items, c.cfg.Compare)
	c.items = items
}

func (c *Collection[T]) indexLocked(key string) int {
	return slices.IndexFunc(c.items, func(item T) bool {
		return item.Key() == key
	})
}

func (c *Collection[T]) keysLocked() []string {
	keys := make([]string, 0, len(c.items))
	for _, item := range c.items {
		keys = append(keys, item.Key())
	}
	return keys
}

// insertLocked inserts item at its ordered position.
func (c *Collection[T]) insertLocked(item T) {
	i, _ := slices.BinarySearchFunc(c.items, item, c.cfg.Compare)
	c.items = slices.Insert(c.items, i, item)
}

func (c *Collection[T]) removeLocked(key string) {
	if i := c.indexLocked(key); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
}

func (c *Collection[T]) upsertLocked(item T) {
	c.removeLocked(item.Key())
	c.insertLocked(item)
}

// snapshotLocked returns a deep copy of the mirror.
func (c *Collection[T]) snapshotLocked() []T {
	var out []T
	if err := deepcopy.Copy(&out, c.items); err != nil {
		c.l.Warn("Deep copy failed, falling back to shallow copy", zap.Error(err))
		out = slices.Clone(c.items)
	}
	if out == nil {
		out = []T{}
	}
	return out
}
