package http

import (
	"net/http"

	"expensetracker/internal/view"
)

func (s *Server) expensesBody(message, warning string, id int64) expensesResponse {
	return expensesResponse{
		Message:  message,
		Warning:  warning,
		ID:       id,
		Expenses: toExpenseDTOs(s.ledger.Expenses(), s.ledger.Categories()),
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.expensesBody("", "", 0)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	e, err := parseExpense(p)
	if err != nil {
		s.writeError(w, r, err, "Failed to add expense", "")
		return
	}

	id, err := s.ledger.AddExpense(r.Context(), e)
	if !view.Committed(err) {
		s.writeError(w, r, err, "Failed to add expense", "")
		return
	}

	NewResponse().
		Status(http.StatusCreated).
		TriggerExpensesChanged().
		JSON(s.expensesBody("Expense added successfully!", staleNote(r, err), id)).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "Please select an expense to update")
	if err != nil {
		s.writeError(w, r, err, "Failed to update expense", "")
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	e, err := parseExpense(p)
	if err != nil {
		s.writeError(w, r, err, "Failed to update expense", "")
		return
	}
	e.ID = id

	err = s.ledger.UpdateExpense(r.Context(), e)
	if !view.Committed(err) {
		s.writeError(w, r, err, "Failed to update expense", "Expense not found")
		return
	}

	NewResponse().
		TriggerExpensesChanged().
		JSON(s.expensesBody("Expense updated successfully!", staleNote(r, err), 0)).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "Please select an expense to delete")
	if err != nil {
		s.writeError(w, r, err, "Failed to delete expense", "")
		return
	}

	err = s.ledger.DeleteExpense(r.Context(), id)
	if !view.Committed(err) {
		s.writeError(w, r, err, "Failed to delete expense", "Expense not found")
		return
	}

	NewResponse().
		TriggerExpensesChanged().
		JSON(s.expensesBody("Expense deleted successfully!", staleNote(r, err), 0)).
		Write(w)
}
