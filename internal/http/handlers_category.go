package http

import (
	"net/http"

	"expensetracker/internal/view"
)

func (s *Server) categoriesBody(message, warning string, id int64) categoriesResponse {
	return categoriesResponse{
		Message:    message,
		Warning:    warning,
		ID:         id,
		Categories: toCategoryDTOs(s.ledger.Categories()),
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.categoriesBody("", "", 0)).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	id, err := s.ledger.AddCategory(r.Context(), parseCategory(p))
	if !view.Committed(err) {
		s.writeError(w, r, err, "Failed to add category", "")
		return
	}

	NewResponse().
		Status(http.StatusCreated).
		TriggerCategoriesChanged().
		JSON(s.categoriesBody("Category added successfully!", staleNote(r, err), id)).
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "Please select a category to update")
	if err != nil {
		s.writeError(w, r, err, "Failed to update category", "")
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	c := parseCategory(p)
	c.ID = id
	err = s.ledger.UpdateCategory(r.Context(), c)
	if !view.Committed(err) {
		s.writeError(w, r, err, "Failed to update category", "Category not found")
		return
	}

	NewResponse().
		TriggerCategoriesChanged().
		JSON(s.categoriesBody("Category updated successfully!", staleNote(r, err), 0)).
		Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "Please select a category to delete")
	if err != nil {
		s.writeError(w, r, err, "Failed to delete category", "")
		return
	}

	err = s.ledger.DeleteCategory(r.Context(), id)
	if !view.Committed(err) {
		s.writeError(w, r, err, "Failed to delete category", "Category not found")
		return
	}

	NewResponse().
		TriggerCategoriesChanged().
		JSON(s.categoriesBody("Category deleted successfully!", staleNote(r, err), 0)).
		Write(w)
}
