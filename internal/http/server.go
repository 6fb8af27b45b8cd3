package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

// Ledger is what the handlers need from the service layer.
type Ledger interface {
	Categories() []core.Category
	Expenses() []core.Expense
	Refresh(ctx context.Context) error
	AddCategory(ctx context.Context, c core.Category) (int64, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id int64) error
	AddExpense(ctx context.Context, e core.Expense) (int64, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id int64) error
}

// ReadyFunc reports whether the store is reachable.
type ReadyFunc func(ctx context.Context) error

type Server struct {
	http.Server
	ledger      Ledger
	ready       ReadyFunc
	logger      *applog.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// ready may be nil.
func NewServer(addr string, ledger Ledger, ready ReadyFunc, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		ledger:      ledger,
		ready:       ready,
		logger:      applog.OrDefault(logger, applog.ComponentHTTP),
		rateLimiter: newRateLimiter(60, time.Minute),
		metrics:     &securityMetrics{},
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("POST /categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("PUT /expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /payment-methods", handlePaymentMethods)
	mux.HandleFunc("POST /refresh", s.handleRefresh)

	s.Handler = applog.Middleware(s.logger)(s.withSecurity(mux))
	return s
}

// Shutdown stops the rate limiter, logs the security counters and gracefully
// shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.metrics.logSummary(ctx, s.logger)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
