package http

import (
	"strings"
	"time"

	"expensetracker/internal/core"
)

type categoryDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type expenseDTO struct {
	ID            int64              `json:"id"`
	CategoryID    int64              `json:"category_id"`
	CategoryName  string             `json:"category_name,omitempty"`
	PaymentMethod core.PaymentMethod `json:"payment_method"`
	Amount        int64              `json:"amount"`
	Description   string             `json:"description"`
	ExpenseDate   time.Time          `json:"expense_date"`
	CreatedAt     time.Time          `json:"created_at"`
}

type categoriesResponse struct {
	Message    string        `json:"message,omitempty"`
	Warning    string        `json:"warning,omitempty"`
	ID         int64         `json:"id,omitempty"`
	Categories []categoryDTO `json:"categories"`
}

type expensesResponse struct {
	Message  string       `json:"message,omitempty"`
	Warning  string       `json:"warning,omitempty"`
	ID       int64        `json:"id,omitempty"`
	Expenses []expenseDTO `json:"expenses"`
}

type refreshResponse struct {
	Message    string        `json:"message"`
	Categories []categoryDTO `json:"categories"`
	Expenses   []expenseDTO  `json:"expenses"`
}

func toCategoryDTOs(categories []core.Category) []categoryDTO {
	out := make([]categoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryDTO{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	return out
}

// toExpenseDTOs resolves category names from the category snapshot.
func toExpenseDTOs(expenses []core.Expense, categories []core.Category) []expenseDTO {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	out := make([]expenseDTO, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseDTO{
			ID:            e.ID,
			CategoryID:    e.CategoryID,
			CategoryName:  names[e.CategoryID],
			PaymentMethod: e.PaymentMethod,
			Amount:        e.Amount,
			Description:   e.Description,
			ExpenseDate:   e.ExpenseDate,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
