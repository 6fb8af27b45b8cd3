package core

import (
	"strings"
	"time"
)

type (
	// Category groups expenses. An ID of zero or less means the category
	// has not been persisted yet.
	Category struct {
		ID          int64
		Name        string
		Description string
	}

	// Expense is a single spending record linked to a Category.
	Expense struct {
		ID            int64
		CategoryID    int64
		PaymentMethod PaymentMethod
		Amount        int64
		Description   string
		ExpenseDate   time.Time
		CreatedAt     time.Time // set once by NewExpense, never updated
	}
)

// NewExpense returns an unpersisted expense stamped with the creation time.
func NewExpense(categoryID int64, pm PaymentMethod, amount int64, description string, expenseDate time.Time) Expense {
	return Expense{
		CategoryID:    categoryID,
		PaymentMethod: pm,
		Amount:        amount,
		Description:   description,
		ExpenseDate:   expenseDate,
		CreatedAt:     time.Now().UTC(),
	}
}

// Persisted reports whether the store has assigned an id.
func (c Category) Persisted() bool { return c.ID > 0 }

// Persisted reports whether the store has assigned an id.
func (e Expense) Persisted() bool { return e.ID > 0 }

// Validate checks the fields the category form requires.
// The repository never calls it.
func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", "Please fill all the fields")
	}
	if strings.TrimSpace(c.Description) == "" {
		return NewValidationError("description", "Please fill all the fields")
	}
	return nil
}

// Validate checks the fields the expense form requires.
// The repository never calls it.
func (e Expense) Validate() error {
	if e.CategoryID <= 0 {
		return NewValidationError("category_id", "Please select a category")
	}
	if !e.PaymentMethod.Valid() {
		return NewValidationError("payment_method", "Please select a payment method")
	}
	if e.Amount <= 0 {
		return invalidAmount()
	}
	if strings.TrimSpace(e.Description) == "" {
		return NewValidationError("description", "Please fill all the fields")
	}
	if len(e.Description) > 200 {
		return NewValidationError("description", "Description too long (max 200 characters)")
	}
	if e.ExpenseDate.IsZero() {
		return NewValidationError("expense_date", "Please fill all the fields")
	}
	return nil
}
