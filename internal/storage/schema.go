package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"expensetracker/internal/core"
)

// table is the field-to-column declaration for one record type. columns is
// the insert bind order; mutable is the update bind order (the key is bound
// last).
type table struct {
	name    string
	key     string
	columns []string
	mutable []string
}

var (
	categoriesTable = table{
		name:    "categories",
		key:     "id",
		columns: []string{"name", "description"},
		mutable: []string{"name", "description"},
	}

	expensesTable = table{
		name:    "expenses",
		key:     "id",
		columns: []string{"category_id", "payment_method", "amount", "description", "expense_date", "created_at"},
		mutable: []string{"category_id", "payment_method", "amount", "description", "expense_date"},
	}
)

// selectColumns is the scan order: key first, then columns.
func (t table) selectColumns() []string {
	return append([]string{t.key}, t.columns...)
}

func (t table) insertSQL() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(t.columns, ", "), marks)
}

func (t table) updateSQL() string {
	sets := make([]string, len(t.mutable))
	for i, c := range t.mutable {
		sets[i] = c + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.name, strings.Join(sets, ", "), t.key)
}

func (t table) deleteSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.name, t.key)
}

func (t table) selectAllSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.selectColumns(), ", "), t.name)
}

// verify checks the live table exposes exactly the declared columns, in order.
func (t table) verify(ctx context.Context, conn *sql.Conn) error {
	rows, err := conn.QueryContext(ctx, t.selectAllSQL()+" WHERE 1 = 0")
	if err != nil {
		return &core.PersistenceError{
			Op:  "verify " + t.name,
			Err: fmt.Errorf("%w: %v", core.ErrSchemaMismatch, err),
		}
	}
	defer rows.Close()

	got, err := rows.Columns()
	if err != nil {
		return &core.PersistenceError{Op: "verify " + t.name, Err: err}
	}

	want := t.selectColumns()
	if len(got) != len(want) {
		return &core.PersistenceError{
			Op:  "verify " + t.name,
			Err: fmt.Errorf("%w: got columns %v, want %v", core.ErrSchemaMismatch, got, want),
		}
	}
	for i := range want {
		if !strings.EqualFold(got[i], want[i]) {
			return &core.PersistenceError{
				Op:  "verify " + t.name,
				Err: fmt.Errorf("%w: column %d is %q, want %q", core.ErrSchemaMismatch, i, got[i], want[i]),
			}
		}
	}
	return rows.Err()
}
