package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string][]core.PaymentMethod{
		"payment_methods": core.PaymentMethods(),
	}).Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Refresh(r.Context()); err != nil {
		s.writeError(w, r, err, "Error loading data", "")
		return
	}

	categories := s.ledger.Categories()
	NewResponse().
		TriggerCategoriesChanged().
		TriggerExpensesChanged().
		JSON(refreshResponse{
			Message:    "Data refreshed",
			Categories: toCategoryDTOs(categories),
			Expenses:   toExpenseDTOs(s.ledger.Expenses(), categories),
		}).
		Write(w)
}

const staleListWarning = "Saved, but the list could not be reloaded. Refresh to see the latest data."

// staleNote returns the warning for a committed write whose list was not
// reloaded, or "" when err is nil.
func staleNote(r *http.Request, err error) string {
	if err == nil {
		return ""
	}
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Answering with a stale list", applog.FieldError, err)
	return staleListWarning
}

// parseBody reads the request body, writing a 400 on malformed input.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Invalid request body", applog.FieldError, err)
		BadRequestError("Invalid request format").Write(w)
		return nil, false
	}
	return p, true
}

// writeError maps ledger errors onto responses. notFound, when set, is the
// message used for an update or delete that matched no record.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, failure, notFound string) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	var (
		ve *core.ValidationError
		de *core.DecodeError
	)
	switch {
	case errors.As(err, &ve):
		logger.InfoContext(ctx, "Rejected input", "field", ve.Field, applog.FieldError, ve.Msg)
		FieldError(ve.Field, ve.Msg).Write(w)
	case errors.Is(err, core.ErrCategoryInUse):
		logger.InfoContext(ctx, "Category still in use", applog.FieldError, err)
		ConflictError("Cannot delete a category that still has expenses").Write(w)
	case notFound != "" && errors.Is(err, core.ErrNoRowsAffected):
		NotFoundError(notFound).Write(w)
	case core.IsConnectivityError(err):
		logger.ErrorContext(ctx, "Store unreachable", applog.FieldError, err)
		ServiceUnavailableError("Database unavailable").Write(w)
	case errors.As(err, &de):
		logger.ErrorContext(ctx, "Stored data could not be decoded",
			"column", de.Column,
			applog.FieldID, de.RowID,
			applog.FieldError, err)
		InternalServerError(failure).Write(w)
	default:
		logger.ErrorContext(ctx, failure, applog.FieldError, err)
		InternalServerError(failure).Write(w)
	}
}
