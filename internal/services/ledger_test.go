package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/storage"
	"expensetracker/internal/view"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.ChangeEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, e amqp.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) last() amqp.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func setupLedger(t *testing.T) (*Ledger, *fakePublisher) {
	t.Helper()
	ctx := context.Background()

	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	repo, err := storage.NewRepository(ctx, db, applog.Discard())
	require.NoError(t, err)

	pub := &fakePublisher{}
	ledger := NewLedger(repo, pub, applog.Discard())
	require.NoError(t, ledger.Refresh(ctx))
	return ledger, pub
}

func lunch(categoryID int64) core.Expense {
	return core.NewExpense(categoryID, core.Cash, 500, "Lunch", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC))
}

func TestLedgerFoodLunchScenario(t *testing.T) {
	ledger, pub := setupLedger(t)
	ctx := context.Background()

	catID, err := ledger.AddCategory(ctx, core.Category{Name: "Food", Description: "Meals"})
	require.NoError(t, err)
	require.Len(t, ledger.Categories(), 1)
	assert.Equal(t, "Food", ledger.Categories()[0].Name)

	expID, err := ledger.AddExpense(ctx, lunch(catID))
	require.NoError(t, err)

	expenses := ledger.Expenses()
	require.Len(t, expenses, 1)
	assert.Equal(t, expID, expenses[0].ID)
	assert.Equal(t, catID, expenses[0].CategoryID)
	assert.Equal(t, core.Cash, expenses[0].PaymentMethod)
	assert.Equal(t, int64(500), expenses[0].Amount)
	assert.Equal(t, "Lunch", expenses[0].Description)

	require.Len(t, pub.events, 2)
	assert.Equal(t, amqp.EntityExpense, pub.last().Entity)
	assert.Equal(t, amqp.OpCreate, pub.last().Op)
	assert.Equal(t, expID, pub.last().RecordID)
}

func TestLedgerUpdateAndDelete(t *testing.T) {
	ledger, pub := setupLedger(t)
	ctx := context.Background()

	catID, err := ledger.AddCategory(ctx, core.Category{Name: "Food", Description: "Meals"})
	require.NoError(t, err)

	require.NoError(t, ledger.UpdateCategory(ctx, core.Category{ID: catID, Name: "Groceries", Description: "Weekly"}))
	assert.Equal(t, "Groceries", ledger.Categories()[0].Name)
	assert.Equal(t, amqp.OpUpdate, pub.last().Op)

	expID, err := ledger.AddExpense(ctx, lunch(catID))
	require.NoError(t, err)

	e := ledger.Expenses()[0]
	e.Amount = 750
	e.PaymentMethod = core.BankAccount
	require.NoError(t, ledger.UpdateExpense(ctx, e))
	assert.Equal(t, int64(750), ledger.Expenses()[0].Amount)
	assert.Equal(t, core.BankAccount, ledger.Expenses()[0].PaymentMethod)

	require.NoError(t, ledger.DeleteExpense(ctx, expID))
	assert.Empty(t, ledger.Expenses())

	require.NoError(t, ledger.DeleteCategory(ctx, catID))
	assert.Empty(t, ledger.Categories())
	assert.Equal(t, amqp.EntityCategory, pub.last().Entity)
	assert.Equal(t, amqp.OpDelete, pub.last().Op)
}

func TestLedgerValidation(t *testing.T) {
	ledger, pub := setupLedger(t)
	ctx := context.Background()

	catID, err := ledger.AddCategory(ctx, core.Category{Name: "Food", Description: "Meals"})
	require.NoError(t, err)
	published := len(pub.events)

	_, err = ledger.AddCategory(ctx, core.Category{Name: "  ", Description: "x"})
	assert.True(t, core.IsValidationError(err))

	noMethod := lunch(catID)
	noMethod.PaymentMethod = core.PaymentMethod{}
	_, err = ledger.AddExpense(ctx, noMethod)
	assert.True(t, core.IsValidationError(err))

	zero := lunch(catID)
	zero.Amount = 0
	_, err = ledger.AddExpense(ctx, zero)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = ledger.AddExpense(ctx, lunch(catID+100))
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "category_id", ve.Field)

	err = ledger.UpdateCategory(ctx, core.Category{Name: "Unsaved", Description: "x"})
	assert.True(t, core.IsValidationError(err))

	assert.Empty(t, ledger.Expenses())
	assert.Len(t, pub.events, published)
}

func TestLedgerMissingRecordsKeepSnapshot(t *testing.T) {
	ledger, pub := setupLedger(t)
	ctx := context.Background()

	_, err := ledger.AddCategory(ctx, core.Category{Name: "Food", Description: "Meals"})
	require.NoError(t, err)
	published := len(pub.events)

	err = ledger.UpdateCategory(ctx, core.Category{ID: 999, Name: "Ghost", Description: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoRowsAffected)

	err = ledger.DeleteExpense(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNoRowsAffected)

	assert.Len(t, ledger.Categories(), 1)
	assert.Len(t, pub.events, published)
}

func TestLedgerRefusesDeletingUsedCategory(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	catID, err := ledger.AddCategory(ctx, core.Category{Name: "Food", Description: "Meals"})
	require.NoError(t, err)
	_, err = ledger.AddExpense(ctx, lunch(catID))
	require.NoError(t, err)

	err = ledger.DeleteCategory(ctx, catID)
	assert.ErrorIs(t, err, core.ErrCategoryInUse)
	assert.Len(t, ledger.Categories(), 1)
	assert.Len(t, ledger.Expenses(), 1)
}

func TestLedgerPublishFailureDoesNotFailWrite(t *testing.T) {
	ledger, pub := setupLedger(t)
	pub.err = errors.New("broker down")

	id, err := ledger.AddCategory(context.Background(), core.Category{Name: "Food", Description: "Meals"})
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Len(t, ledger.Categories(), 1)
}

func TestLedgerWithoutPublisher(t *testing.T) {
	ledger, _ := setupLedger(t)
	ledger.publisher = nil

	_, err := ledger.AddCategory(context.Background(), core.Category{Name: "Food", Description: "Meals"})
	assert.NoError(t, err)
}

func TestLedgerReloadByEntity(t *testing.T) {
	ctx := context.Background()

	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	repo, err := storage.NewRepository(ctx, db, applog.Discard())
	require.NoError(t, err)

	writer := NewLedger(repo, nil, applog.Discard())
	reader := NewLedger(repo, nil, applog.Discard())
	require.NoError(t, reader.Refresh(ctx))

	catID, err := writer.AddCategory(ctx, core.Category{Name: "Food", Description: "Meals"})
	require.NoError(t, err)
	_, err = writer.AddExpense(ctx, lunch(catID))
	require.NoError(t, err)

	assert.Empty(t, reader.Categories())

	require.NoError(t, reader.Reload(ctx, amqp.EntityCategory))
	assert.Len(t, reader.Categories(), 1)
	assert.Empty(t, reader.Expenses(), "only the named list is reloaded")

	require.NoError(t, reader.Reload(ctx, amqp.EntityExpense))
	assert.Len(t, reader.Expenses(), 1)

	assert.Error(t, reader.Reload(ctx, "income"))
}

// flakyLists fails list reads on demand while writes still reach the store.
type flakyLists struct {
	*storage.Repository
	listErr error
}

func (f *flakyLists) ListCategories(ctx context.Context) ([]core.Category, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.ListCategories(ctx)
}

func (f *flakyLists) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.ListExpenses(ctx)
}

func TestLedgerCommittedWriteWithFailedReload(t *testing.T) {
	ctx := context.Background()

	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "flaky.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	repo, err := storage.NewRepository(ctx, db, applog.Discard())
	require.NoError(t, err)

	store := &flakyLists{Repository: repo}
	pub := &fakePublisher{}
	ledger := NewLedger(store, pub, applog.Discard())
	require.NoError(t, ledger.Refresh(ctx))

	foodID, err := ledger.AddCategory(ctx, core.Category{Name: "Food", Description: "Meals"})
	require.NoError(t, err)

	listDown := errors.New("list down")
	store.listErr = listDown

	id, err := ledger.AddCategory(ctx, core.Category{Name: "Rent", Description: "Flat"})
	require.Error(t, err)
	assert.ErrorIs(t, err, listDown)
	var re *view.ReloadError
	assert.ErrorAs(t, err, &re)
	assert.True(t, view.Committed(err))
	assert.Positive(t, id, "the stored id is returned")
	event := pub.last()
	assert.Equal(t, amqp.EntityCategory, event.Entity)
	assert.Equal(t, amqp.OpCreate, event.Op)
	assert.Equal(t, id, event.RecordID)
	assert.Len(t, ledger.Categories(), 1, "snapshot stays as before the write")

	expID, err := ledger.AddExpense(ctx, lunch(foodID))
	assert.True(t, view.Committed(err))
	assert.Positive(t, expID)
	assert.Equal(t, expID, pub.last().RecordID)

	err = ledger.DeleteExpense(ctx, expID)
	assert.True(t, view.Committed(err))
	assert.Equal(t, amqp.OpDelete, pub.last().Op)

	store.listErr = nil
	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2, "the write is in the store")
	require.NoError(t, ledger.Refresh(ctx))
	assert.Len(t, ledger.Categories(), 2)
	assert.Empty(t, ledger.Expenses())
}

func TestLedgerFailedWriteIsNotCommitted(t *testing.T) {
	ledger, pub := setupLedger(t)

	err := ledger.DeleteExpense(context.Background(), 999)
	require.Error(t, err)
	assert.False(t, view.Committed(err))
	assert.Empty(t, pub.events)
}
