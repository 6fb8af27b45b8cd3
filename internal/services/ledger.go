package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/view"
)

// Store is the persistence surface the ledger writes through.
type Store interface {
	CreateCategory(ctx context.Context, c core.Category) (int64, error)
	UpdateCategory(ctx context.Context, c core.Category) (bool, error)
	DeleteCategory(ctx context.Context, c core.Category) (bool, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateExpense(ctx context.Context, e core.Expense) (int64, error)
	UpdateExpense(ctx context.Context, e core.Expense) (bool, error)
	DeleteExpense(ctx context.Context, e core.Expense) (bool, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
}

// Publisher announces committed writes.
type Publisher interface {
	Publish(ctx context.Context, event amqp.ChangeEvent) error
}

// Ledger validates form input, writes through the store and keeps the
// category and expense lists reloaded after every successful write.
//
// A write that committed but whose list could not be reloaded still returns
// its id, publishes its change event and reports a *view.ReloadError;
// view.Committed tells it apart from a failed write.
type Ledger struct {
	store      Store
	categories *view.List[core.Category]
	expenses   *view.List[core.Expense]
	publisher  Publisher
	logger     *applog.Logger
}

// NewLedger builds a ledger over store. publisher may be nil.
func NewLedger(store Store, publisher Publisher, logger *applog.Logger) *Ledger {
	return &Ledger{
		store:      store,
		categories: view.New[core.Category]("categories", store.ListCategories, logger),
		expenses:   view.New[core.Expense]("expenses", store.ListExpenses, logger),
		publisher:  publisher,
		logger:     applog.OrDefault(logger, applog.ComponentLedger),
	}
}

// Categories returns the current category snapshot.
func (l *Ledger) Categories() []core.Category { return l.categories.Items() }

// Expenses returns the current expense snapshot.
func (l *Ledger) Expenses() []core.Expense { return l.expenses.Items() }

// Refresh reloads both lists from the store.
func (l *Ledger) Refresh(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.categories.Reload(ctx) })
	g.Go(func() error { return l.expenses.Reload(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh ledger: %w", err)
	}

	l.logger.InfoContext(ctx, "Ledger refreshed",
		"categories", len(l.categories.Items()),
		"expenses", len(l.expenses.Items()))
	return nil
}

// Reload reloads the list holding entity, one of amqp.EntityCategory or
// amqp.EntityExpense.
func (l *Ledger) Reload(ctx context.Context, entity string) error {
	switch entity {
	case amqp.EntityCategory:
		return l.categories.Reload(ctx)
	case amqp.EntityExpense:
		return l.expenses.Reload(ctx)
	}
	return fmt.Errorf("reload: unknown entity %q", entity)
}

// AddCategory stores a new category and returns its id.
func (l *Ledger) AddCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := l.categories.Apply(ctx, func(ctx context.Context) (bool, error) {
		var err error
		id, err = l.store.CreateCategory(ctx, c)
		return view.Created(id, err)
	})
	if !view.Committed(err) {
		return 0, fmt.Errorf("add category: %w", err)
	}
	return id, l.committed(ctx, amqp.EntityCategory, amqp.OpCreate, id, err)
}

// UpdateCategory rewrites an existing category.
func (l *Ledger) UpdateCategory(ctx context.Context, c core.Category) error {
	if !c.Persisted() {
		return core.NewValidationError("id", "Please select a category to update")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	err := l.categories.Apply(ctx, func(ctx context.Context) (bool, error) {
		return view.Changed(l.store.UpdateCategory(ctx, c))
	})
	if !view.Committed(err) {
		return fmt.Errorf("update category: %w", err)
	}
	return l.committed(ctx, amqp.EntityCategory, amqp.OpUpdate, c.ID, err)
}

// DeleteCategory removes a category no expense references.
func (l *Ledger) DeleteCategory(ctx context.Context, id int64) error {
	if id <= 0 {
		return core.NewValidationError("id", "Please select a category to delete")
	}

	err := l.categories.Apply(ctx, func(ctx context.Context) (bool, error) {
		return view.Changed(l.store.DeleteCategory(ctx, core.Category{ID: id}))
	})
	if !view.Committed(err) {
		return fmt.Errorf("delete category: %w", err)
	}
	return l.committed(ctx, amqp.EntityCategory, amqp.OpDelete, id, err)
}

// AddExpense stores a new expense and returns its id. A zero CreatedAt is
// stamped with the current time.
func (l *Ledger) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := l.validateExpense(e); err != nil {
		return 0, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var id int64
	err := l.expenses.Apply(ctx, func(ctx context.Context) (bool, error) {
		var err error
		id, err = l.store.CreateExpense(ctx, e)
		return view.Created(id, err)
	})
	if !view.Committed(err) {
		return 0, fmt.Errorf("add expense: %w", err)
	}
	return id, l.committed(ctx, amqp.EntityExpense, amqp.OpCreate, id, err)
}

// UpdateExpense rewrites an existing expense.
func (l *Ledger) UpdateExpense(ctx context.Context, e core.Expense) error {
	if !e.Persisted() {
		return core.NewValidationError("id", "Please select an expense to update")
	}
	if err := l.validateExpense(e); err != nil {
		return err
	}

	err := l.expenses.Apply(ctx, func(ctx context.Context) (bool, error) {
		return view.Changed(l.store.UpdateExpense(ctx, e))
	})
	if !view.Committed(err) {
		return fmt.Errorf("update expense: %w", err)
	}
	return l.committed(ctx, amqp.EntityExpense, amqp.OpUpdate, e.ID, err)
}

// DeleteExpense removes an expense.
func (l *Ledger) DeleteExpense(ctx context.Context, id int64) error {
	if id <= 0 {
		return core.NewValidationError("id", "Please select an expense to delete")
	}

	err := l.expenses.Apply(ctx, func(ctx context.Context) (bool, error) {
		return view.Changed(l.store.DeleteExpense(ctx, core.Expense{ID: id}))
	})
	if !view.Committed(err) {
		return fmt.Errorf("delete expense: %w", err)
	}
	return l.committed(ctx, amqp.EntityExpense, amqp.OpDelete, id, err)
}

// validateExpense also requires the category to be one the user can see.
func (l *Ledger) validateExpense(e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	known := slices.ContainsFunc(l.categories.Items(), func(c core.Category) bool {
		return c.ID == e.CategoryID
	})
	if !known {
		return core.NewValidationError("category_id", "Please select a category")
	}
	return nil
}

// committed finishes a write that reached the store. The change is always
// published; a failed reload comes back as a *view.ReloadError.
func (l *Ledger) committed(ctx context.Context, entity, op string, id int64, err error) error {
	l.publish(ctx, entity, op, id)
	if err == nil {
		return nil
	}

	l.logger.WarnContext(ctx, "Write committed but list not reloaded",
		applog.FieldEntity, entity,
		applog.FieldOperation, op,
		applog.FieldID, id,
		applog.FieldError, err)
	return fmt.Errorf("%s %s: %w", op, entity, err)
}

// publish never fails the caller: the write has already committed.
func (l *Ledger) publish(ctx context.Context, entity, op string, id int64) {
	if l.publisher == nil {
		return
	}

	event := amqp.NewChangeEvent(entity, op, id)
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish change event",
			applog.FieldEntity, entity,
			applog.FieldOperation, op,
			applog.FieldID, id,
			applog.FieldError, err)
	}
}
