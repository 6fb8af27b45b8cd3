package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

func setupTestRepo(t *testing.T) (*Repository, *DB) {
	t.Helper()
	ctx := context.Background()

	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	repo, err := NewRepository(ctx, db, applog.Discard())
	require.NoError(t, err)
	return repo, db
}

func mustCategory(t *testing.T, repo *Repository, name string) int64 {
	t.Helper()
	id, err := repo.CreateCategory(context.Background(), core.Category{Name: name})
	require.NoError(t, err)
	require.Positive(t, id)
	return id
}

func sampleExpense(categoryID int64) core.Expense {
	return core.Expense{
		CategoryID:    categoryID,
		PaymentMethod: core.Cash,
		Amount:        500,
		Description:   "Lunch",
		ExpenseDate:   time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		CreatedAt:     time.Date(2024, 3, 1, 12, 31, 0, 0, time.UTC),
	}
}

func TestCategoryCreateThenList(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateCategory(ctx, core.Category{Name: "Food", Description: "Groceries and eating out"})
	require.NoError(t, err)
	assert.Positive(t, id)

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, core.Category{ID: id, Name: "Food", Description: "Groceries and eating out"}, categories[0])
}

func TestCategoryIDsAreDistinct(t *testing.T) {
	repo, _ := setupTestRepo(t)

	a := mustCategory(t, repo, "Food")
	b := mustCategory(t, repo, "Transport")
	assert.NotEqual(t, a, b)
}

func TestListOnEmptyStore(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.NotNil(t, categories)
	assert.Empty(t, categories)

	expenses, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	assert.NotNil(t, expenses)
	assert.Empty(t, expenses)
}

func TestUpdateCategory(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	id := mustCategory(t, repo, "Food")

	ok, err := repo.UpdateCategory(ctx, core.Category{ID: id, Name: "Groceries", Description: "Weekly shop"})
	require.NoError(t, err)
	assert.True(t, ok)

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Groceries", categories[0].Name)
	assert.Equal(t, "Weekly shop", categories[0].Description)
}

func TestUpdateCategoryStoresEmptyName(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	id := mustCategory(t, repo, "Food")

	ok, err := repo.UpdateCategory(ctx, core.Category{ID: id, Name: ""})
	require.NoError(t, err)
	assert.True(t, ok)

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", categories[0].Name)
}

func TestMissingIDsReportNoChange(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	catID := mustCategory(t, repo, "Food")
	expID, err := repo.CreateExpense(ctx, sampleExpense(catID))
	require.NoError(t, err)

	categoriesBefore, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	expensesBefore, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, categoriesBefore, 1)
	require.Len(t, expensesBefore, 1)

	ok, err := repo.UpdateCategory(ctx, core.Category{ID: 999, Name: "Ghost", Description: "Nobody"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteCategory(ctx, core.Category{ID: 999})
	require.NoError(t, err)
	assert.False(t, ok)

	ghost := sampleExpense(catID)
	ghost.ID = 999
	ghost.Amount = 1
	ghost.Description = "Ghost"
	ok, err = repo.UpdateExpense(ctx, ghost)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteExpense(ctx, ghost)
	require.NoError(t, err)
	assert.False(t, ok)

	categoriesAfter, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	expensesAfter, err := repo.ListExpenses(ctx)
	require.NoError(t, err)

	assert.Equal(t, categoriesBefore, categoriesAfter)
	assert.Equal(t, expensesBefore, expensesAfter)
	assert.Equal(t, expID, expensesAfter[0].ID)
}

func TestDeleteTwice(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	id := mustCategory(t, repo, "Food")

	ok, err := repo.DeleteCategory(ctx, core.Category{ID: id})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DeleteCategory(ctx, core.Category{ID: id})
	require.NoError(t, err)
	assert.False(t, ok)

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestExpenseRoundTrip(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	catID := mustCategory(t, repo, "Food")

	for _, pm := range core.PaymentMethods() {
		t.Run(pm.String(), func(t *testing.T) {
			e := sampleExpense(catID)
			e.PaymentMethod = pm

			id, err := repo.CreateExpense(ctx, e)
			require.NoError(t, err)

			expenses, err := repo.ListExpenses(ctx)
			require.NoError(t, err)

			var got *core.Expense
			for i := range expenses {
				if expenses[i].ID == id {
					got = &expenses[i]
				}
			}
			require.NotNil(t, got, "expense %d not listed", id)
			assert.Equal(t, catID, got.CategoryID)
			assert.Equal(t, pm, got.PaymentMethod)
			assert.Equal(t, int64(500), got.Amount)
			assert.Equal(t, "Lunch", got.Description)
			assert.True(t, e.ExpenseDate.Equal(got.ExpenseDate), "expense date %v", got.ExpenseDate)
			assert.True(t, e.CreatedAt.Equal(got.CreatedAt), "created at %v", got.CreatedAt)
		})
	}
}

func TestUpdateExpenseKeepsCreatedAt(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	food := mustCategory(t, repo, "Food")
	travel := mustCategory(t, repo, "Travel")

	e := sampleExpense(food)
	id, err := repo.CreateExpense(ctx, e)
	require.NoError(t, err)

	e.ID = id
	e.CategoryID = travel
	e.PaymentMethod = core.BankAccount
	e.Amount = 1200
	e.Description = "Train ticket"
	e.CreatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	ok, err := repo.UpdateExpense(ctx, e)
	require.NoError(t, err)
	require.True(t, ok)

	expenses, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	got := expenses[0]
	assert.Equal(t, travel, got.CategoryID)
	assert.Equal(t, core.BankAccount, got.PaymentMethod)
	assert.Equal(t, int64(1200), got.Amount)
	assert.Equal(t, "Train ticket", got.Description)
	assert.True(t, sampleExpense(food).CreatedAt.Equal(got.CreatedAt))
}

func TestDeleteReferencedCategoryIsRefused(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	catID := mustCategory(t, repo, "Food")

	expID, err := repo.CreateExpense(ctx, sampleExpense(catID))
	require.NoError(t, err)

	ok, err := repo.DeleteCategory(ctx, core.Category{ID: catID})
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCategoryInUse)
	assert.True(t, core.IsPersistenceError(err))

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)

	ok, err = repo.DeleteExpense(ctx, core.Expense{ID: expID})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.DeleteCategory(ctx, core.Category{ID: catID})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListExpensesDecodeFailures(t *testing.T) {
	tests := []struct {
		name   string
		method any
		column string
		null   bool
	}{
		{name: "null payment method", method: nil, column: "payment_method", null: true},
		{name: "unknown payment method", method: "CREDIT_CARD", column: "payment_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, db := setupTestRepo(t)
			ctx := context.Background()
			catID := mustCategory(t, repo, "Food")

			res, err := db.db.ExecContext(ctx,
				"INSERT INTO expenses (category_id, payment_method, amount, description, expense_date, created_at) VALUES (?, ?, ?, ?, ?, ?)",
				catID, tt.method, 10, "Coffee", time.Now().UTC(), time.Now().UTC())
			require.NoError(t, err)
			rowID, err := res.LastInsertId()
			require.NoError(t, err)

			expenses, err := repo.ListExpenses(ctx)
			assert.Nil(t, expenses)
			require.Error(t, err)

			var de *core.DecodeError
			require.True(t, errors.As(err, &de), "got %T: %v", err, err)
			assert.Equal(t, tt.column, de.Column)
			assert.Equal(t, rowID, de.RowID)
			assert.Equal(t, tt.null, de.Null)
		})
	}
}

func TestNullAmountIsDecodeError(t *testing.T) {
	repo, db := setupTestRepo(t)
	ctx := context.Background()
	catID := mustCategory(t, repo, "Food")

	_, err := db.db.ExecContext(ctx,
		"INSERT INTO expenses (category_id, payment_method, amount, description) VALUES (?, 'CASH', NULL, 'Coffee')",
		catID)
	require.NoError(t, err)

	_, err = repo.ListExpenses(ctx)
	var de *core.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "amount", de.Column)
	assert.True(t, de.Null)
}

func TestNullableColumnsDecodeToZeroValues(t *testing.T) {
	repo, db := setupTestRepo(t)
	ctx := context.Background()
	catID := mustCategory(t, repo, "Food")

	_, err := db.db.ExecContext(ctx,
		"INSERT INTO expenses (category_id, payment_method, amount) VALUES (?, 'BANK_ACCOUNT', 42)",
		catID)
	require.NoError(t, err)
	_, err = db.db.ExecContext(ctx, "INSERT INTO categories (name) VALUES ('Misc')")
	require.NoError(t, err)

	expenses, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "", expenses[0].Description)
	assert.True(t, expenses[0].ExpenseDate.IsZero())
	assert.True(t, expenses[0].CreatedAt.IsZero())

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "", categories[1].Description)
}

func TestNewRepositoryRejectsSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.db.ExecContext(ctx, "CREATE TABLE categories (category_id INTEGER PRIMARY KEY, name TEXT, description TEXT)")
	require.NoError(t, err)
	_, err = db.db.ExecContext(ctx, "CREATE TABLE expenses (id INTEGER PRIMARY KEY, category_id INTEGER)")
	require.NoError(t, err)

	_, err = NewRepository(ctx, db, applog.Discard())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
	assert.True(t, core.IsPersistenceError(err))
}

func TestClosedStoreIsConnectivityError(t *testing.T) {
	repo, db := setupTestRepo(t)
	require.NoError(t, db.Close())

	_, err := repo.ListCategories(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsConnectivityError(err), "got %T: %v", err, err)

	_, err = repo.CreateCategory(context.Background(), core.Category{Name: "Food"})
	assert.True(t, core.IsConnectivityError(err), "got %T: %v", err, err)
}

func TestDialectRebind(t *testing.T) {
	q := "UPDATE expenses SET amount = ?, description = ? WHERE id = ?"

	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, "UPDATE expenses SET amount = $1, description = $2 WHERE id = $3", Postgres.Rebind(q))
}

func TestStatementsFollowColumnTables(t *testing.T) {
	assert.Equal(t,
		"INSERT INTO categories (name, description) VALUES (?, ?)",
		categoriesTable.insertSQL())
	assert.Equal(t,
		"UPDATE expenses SET category_id = ?, payment_method = ?, amount = ?, description = ?, expense_date = ? WHERE id = ?",
		expensesTable.updateSQL())

	pg := newStatements(Postgres)
	assert.Equal(t, "INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id", pg.insertCategory)
	assert.Equal(t,
		"DELETE FROM categories WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM expenses WHERE category_id = $2)",
		pg.deleteCategory)
}
