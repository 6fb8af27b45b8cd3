package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

type statements struct {
	insertCategory     string
	updateCategory     string
	deleteCategory     string
	categoryReferenced string
	listCategories     string

	insertExpense string
	updateExpense string
	deleteExpense string
	listExpenses  string
}

func newStatements(d Dialect) statements {
	returning := ""
	if d.returning {
		returning = " RETURNING id"
	}
	return statements{
		insertCategory: d.Rebind(categoriesTable.insertSQL() + returning),
		updateCategory: d.Rebind(categoriesTable.updateSQL()),
		// restrict: a category still referenced by an expense is never removed
		deleteCategory: d.Rebind(categoriesTable.deleteSQL() +
			" AND NOT EXISTS (SELECT 1 FROM expenses WHERE category_id = ?)"),
		categoryReferenced: d.Rebind("SELECT EXISTS (SELECT 1 FROM expenses WHERE category_id = ?)"),
		listCategories:     categoriesTable.selectAllSQL(),

		insertExpense: d.Rebind(expensesTable.insertSQL() + returning),
		updateExpense: d.Rebind(expensesTable.updateSQL()),
		deleteExpense: d.Rebind(expensesTable.deleteSQL()),
		listExpenses:  expensesTable.selectAllSQL(),
	}
}

// Repository runs one parameterized statement per call against the store.
// It keeps no records between calls and opens no transactions.
type Repository struct {
	provider Provider
	dialect  Dialect
	stmts    statements
	logger   *applog.Logger
}

// NewRepository checks the declared column tables against the live schema
// once and returns a ready repository.
func NewRepository(ctx context.Context, p Provider, logger *applog.Logger) (*Repository, error) {
	r := &Repository{
		provider: p,
		dialect:  p.Dialect(),
		stmts:    newStatements(p.Dialect()),
		logger:   applog.OrDefault(logger, applog.ComponentStorage),
	}

	conn, err := r.acquire(ctx, "verify schema")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	for _, t := range []table{categoriesTable, expensesTable} {
		if err := t.verify(ctx, conn); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Repository) acquire(ctx context.Context, op string) (*sql.Conn, error) {
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		var ce *core.ConnectivityError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &core.ConnectivityError{Op: op, Err: err}
	}
	return conn, nil
}

// insert executes an insert and returns the generated key. It returns 0 with
// a *core.PersistenceError when the row count is not 1 or no key came back.
func (r *Repository) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	conn, err := r.acquire(ctx, op)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if r.dialect.returning {
		var id sql.NullInt64
		err := conn.QueryRowContext(ctx, query, args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &core.PersistenceError{Op: op, Err: core.ErrNoRowsAffected}
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		if !id.Valid || id.Int64 <= 0 {
			return 0, &core.PersistenceError{Op: op, Err: core.ErrNoGeneratedID}
		}
		return id.Int64, nil
	}

	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n != 1 {
		return 0, &core.PersistenceError{
			Op:  op,
			Err: fmt.Errorf("%w: expected 1 row, got %d", core.ErrNoRowsAffected, n),
		}
	}
	id, err := res.LastInsertId()
	if err != nil || id <= 0 {
		return 0, &core.PersistenceError{Op: op, Err: core.ErrNoGeneratedID}
	}
	return id, nil
}

// exec executes an update or delete and reports whether any row changed.
func (r *Repository) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	conn, err := r.acquire(ctx, op)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	return execAffected(ctx, conn, op, query, args...)
}

func execAffected(ctx context.Context, conn *sql.Conn, op, query string, args ...any) (bool, error) {
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n > 0, nil
}

// CreateCategory inserts c and returns the store-assigned id.
func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	id, err := r.insert(ctx, "create category", r.stmts.insertCategory, c.Name, c.Description)
	if err != nil {
		return 0, err
	}

	r.logger.InfoContext(ctx, "Category saved",
		applog.FieldID, id,
		"name", c.Name)
	return id, nil
}

// UpdateCategory rewrites name and description. It returns false when no row
// has c.ID.
func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (bool, error) {
	ok, err := r.exec(ctx, "update category", r.stmts.updateCategory, c.Name, c.Description, c.ID)
	if err != nil {
		return false, err
	}

	r.logger.InfoContext(ctx, "Category update executed", applog.FieldID, c.ID, applog.FieldSuccess, ok)
	return ok, nil
}

// DeleteCategory removes the category unless an expense still references it.
// A missing id returns false; a referenced one returns false with a
// *core.PersistenceError wrapping core.ErrCategoryInUse.
func (r *Repository) DeleteCategory(ctx context.Context, c core.Category) (bool, error) {
	const op = "delete category"

	conn, err := r.acquire(ctx, op)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	ok, err := execAffected(ctx, conn, op, r.stmts.deleteCategory, c.ID, c.ID)
	if err != nil {
		return false, err
	}
	if ok {
		r.logger.InfoContext(ctx, "Category deleted", applog.FieldID, c.ID)
		return true, nil
	}

	var referenced bool
	if err := conn.QueryRowContext(ctx, r.stmts.categoryReferenced, c.ID).Scan(&referenced); err != nil {
		return false, fmt.Errorf("%s: check references: %w", op, err)
	}
	if referenced {
		r.logger.WarnContext(ctx, "Category delete refused, still referenced", applog.FieldID, c.ID)
		return false, &core.PersistenceError{Op: op, Err: core.ErrCategoryInUse}
	}
	return false, nil
}

// ListCategories returns every category in store order.
func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	conn, err := r.acquire(ctx, "list categories")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, r.stmts.listCategories)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]core.Category, 0)
	for rows.Next() {
		var (
			c    core.Category
			desc sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &desc); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Description = desc.String
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	r.logger.DebugContext(ctx, "Categories loaded", applog.FieldCount, len(categories))
	return categories, nil
}

// CreateExpense inserts e and returns the store-assigned id.
func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	id, err := r.insert(ctx, "create expense", r.stmts.insertExpense,
		e.CategoryID,
		e.PaymentMethod.String(),
		decimal.NewFromInt(e.Amount),
		e.Description,
		e.ExpenseDate.UTC(),
		e.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, err
	}

	r.logger.InfoContext(ctx, "Expense saved",
		applog.FieldID, id,
		applog.FieldCategoryID, e.CategoryID,
		applog.FieldPaymentMethod, e.PaymentMethod.String(),
		applog.FieldAmount, e.Amount)
	return id, nil
}

// UpdateExpense rewrites every mutable field; created_at is left alone.
func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) (bool, error) {
	ok, err := r.exec(ctx, "update expense", r.stmts.updateExpense,
		e.CategoryID,
		e.PaymentMethod.String(),
		decimal.NewFromInt(e.Amount),
		e.Description,
		e.ExpenseDate.UTC(),
		e.ID,
	)
	if err != nil {
		return false, err
	}

	r.logger.InfoContext(ctx, "Expense update executed", applog.FieldID, e.ID, applog.FieldSuccess, ok)
	return ok, nil
}

// DeleteExpense removes the expense with e.ID.
func (r *Repository) DeleteExpense(ctx context.Context, e core.Expense) (bool, error) {
	ok, err := r.exec(ctx, "delete expense", r.stmts.deleteExpense, e.ID)
	if err != nil {
		return false, err
	}

	r.logger.InfoContext(ctx, "Expense delete executed", applog.FieldID, e.ID, applog.FieldSuccess, ok)
	return ok, nil
}

// ListExpenses returns every expense in store order. A NULL or unknown
// payment method fails the call with a *core.DecodeError.
func (r *Repository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	conn, err := r.acquire(ctx, "list expenses")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, r.stmts.listExpenses)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	r.logger.DebugContext(ctx, "Expenses loaded", applog.FieldCount, len(expenses))
	return expenses, nil
}

func scanExpense(rows *sql.Rows) (core.Expense, error) {
	var (
		e           core.Expense
		categoryID  sql.NullInt64
		method      sql.NullString
		amount      decimal.NullDecimal
		desc        sql.NullString
		expenseDate sql.NullTime
		createdAt   sql.NullTime
	)
	if err := rows.Scan(&e.ID, &categoryID, &method, &amount, &desc, &expenseDate, &createdAt); err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	if !method.Valid {
		return core.Expense{}, &core.DecodeError{Column: "payment_method", RowID: e.ID, Null: true}
	}
	pm, err := core.ParsePaymentMethod(method.String)
	if err != nil {
		var de *core.DecodeError
		if errors.As(err, &de) {
			de.RowID = e.ID
		}
		return core.Expense{}, err
	}
	if !amount.Valid {
		return core.Expense{}, &core.DecodeError{Column: "amount", RowID: e.ID, Null: true}
	}

	e.CategoryID = categoryID.Int64
	e.PaymentMethod = pm
	e.Amount = amount.Decimal.IntPart()
	e.Description = desc.String
	e.ExpenseDate = expenseDate.Time
	e.CreatedAt = createdAt.Time
	return e, nil
}
