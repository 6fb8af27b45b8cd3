// Package view keeps in-memory lists in step with the store by reloading the
// full list after every successful write.
package view

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

// Loader fetches every record of a list from the store.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Mutation performs one write and reports whether it took effect.
type Mutation func(ctx context.Context) (bool, error)

// List is a snapshot of one record type. Apply and Reload are serialized;
// Items may be read at any time and sees either the old or the new snapshot.
type List[T any] struct {
	name   string
	load   Loader[T]
	logger *applog.Logger

	// op serializes mutate+reload sequences
	op sync.Mutex

	mu       sync.RWMutex
	items    []T
	loadedAt time.Time
}

// New returns an empty list named name that reloads through load.
func New[T any](name string, load Loader[T], logger *applog.Logger) *List[T] {
	return &List[T]{
		name:   name,
		load:   load,
		logger: applog.OrDefault(logger, applog.ComponentView),
		items:  []T{},
	}
}

// Name returns the list name used in logs and errors.
func (l *List[T]) Name() string { return l.name }

// Items returns a copy of the current snapshot.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// LoadedAt returns when the snapshot was last replaced, zero if never.
func (l *List[T]) LoadedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadedAt
}

// Reload replaces the snapshot with the store contents. On error the
// previous snapshot stays.
func (l *List[T]) Reload(ctx context.Context) error {
	l.op.Lock()
	defer l.op.Unlock()
	return l.reload(ctx)
}

func (l *List[T]) reload(ctx context.Context) error {
	start := time.Now()
	items, err := l.load(ctx)
	if err != nil {
		l.logger.ErrorContext(ctx, "Reload failed, keeping previous snapshot",
			"list", l.name,
			applog.FieldError, err)
		return fmt.Errorf("reload %s: %w", l.name, err)
	}
	if items == nil {
		items = []T{}
	}

	l.mu.Lock()
	l.items = items
	l.loadedAt = time.Now()
	l.mu.Unlock()

	l.logger.DebugContext(ctx, "List reloaded",
		"list", l.name,
		applog.FieldCount, len(items),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// ReloadError means a mutation reached the store but the reload after it
// failed, so the snapshot still shows the state before the write.
type ReloadError struct {
	List string
	Err  error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("%s written but not reloaded: %v", e.List, e.Err)
}

func (e *ReloadError) Unwrap() error { return e.Err }

// Committed reports whether the write behind err reached the store: err is
// nil or a *ReloadError.
func Committed(err error) bool {
	var re *ReloadError
	return err == nil || errors.As(err, &re)
}

// Apply runs mutation and, when it reports success, reloads the list. A
// mutation that errors or reports false leaves the snapshot untouched; false
// is returned as a *core.PersistenceError wrapping core.ErrNoRowsAffected.
// A failed reload after a successful mutation is returned as a *ReloadError.
func (l *List[T]) Apply(ctx context.Context, mutation Mutation) error {
	l.op.Lock()
	defer l.op.Unlock()

	ok, err := mutation(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "Mutation failed", "list", l.name, applog.FieldError, err)
		return err
	}
	if !ok {
		l.logger.WarnContext(ctx, "Mutation changed nothing", "list", l.name)
		return &core.PersistenceError{Op: "apply " + l.name, Err: core.ErrNoRowsAffected}
	}

	if err := l.reload(ctx); err != nil {
		return &ReloadError{List: l.name, Err: err}
	}
	return nil
}

// Created adapts a create result: success means a positive id and no error.
func Created(id int64, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return id > 0, nil
}

// Changed adapts an update or delete result.
func Changed(ok bool, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return ok, nil
}
