// Package server exposes balances and history to the dashboard over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/savings-ledger/internal/balance"
	"github.com/example/savings-ledger/internal/history"
	"github.com/example/savings-ledger/pkg/transaction"
)

// Balances resolves account balances.
type Balances interface {
	Balance(ctx context.Context, account string, product transaction.Product) (decimal.Decimal, error)
	Balances(ctx context.Context, account string) (map[transaction.Product]decimal.Decimal, error)
}

// Histories returns merged transaction history.
type Histories interface {
	History(ctx context.Context, account string) ([]transaction.Transaction, error)
	ProductHistory(ctx context.Context, account string, product transaction.Product) ([]transaction.Transaction, error)
	CircleHistory(ctx context.Context, account, circle string) ([]transaction.Transaction, error)
}

// Server is the HTTP front of the savings core.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	balances Balances
	history  Histories
	log      zerolog.Logger
}

// New creates a server listening on addr.
func New(addr string, balances Balances, histories Histories, log zerolog.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		balances: balances,
		history:  histories,
		log:      log.With().Str("component", "server").Logger(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api/v1/accounts/{account}", func(r chi.Router) {
		r.Get("/balances", s.handleBalances)
		r.Get("/balances/{product}", s.handleBalance)
		r.Get("/history", s.handleHistory)
		r.Get("/circles/{circle}/history", s.handleCircleHistory)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type balanceResponse struct {
	Account string          `json:"account"`
	Product string          `json:"product"`
	Balance decimal.Decimal `json:"balance"`
}

type transactionResponse struct {
	transaction.Transaction
	DisplayWeek *int `json:"displayWeek,omitempty"`
}

type historyResponse struct {
	Account      string                `json:"account"`
	Transactions []transactionResponse `json:"transactions"`
	Totals       transaction.Totals    `json:"totals"`
	FetchedAt    time.Time             `json:"fetchedAt"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	product, err := transaction.ParseProduct(chi.URLParam(r, "product"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bal, err := s.balances.Balance(r.Context(), account, product)
	if err != nil {
		s.writeCallerError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, balanceResponse{Account: account, Product: string(product), Balance: bal})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	bals, err := s.balances.Balances(r.Context(), account)
	if err != nil {
		s.writeCallerError(w, err)
		return
	}

	out := make([]balanceResponse, 0, len(bals))
	for _, p := range transaction.SavingsProducts {
		if bal, ok := bals[p]; ok {
			out = append(out, balanceResponse{Account: account, Product: string(p), Balance: bal})
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	var (
		txs []transaction.Transaction
		err error
	)
	if p := r.URL.Query().Get("product"); p != "" {
		product, perr := transaction.ParseProduct(p)
		if perr != nil {
			s.writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		txs, err = s.history.ProductHistory(r.Context(), account, product)
	} else {
		txs, err = s.history.History(r.Context(), account)
	}
	if err != nil {
		s.writeCallerError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, newHistoryResponse(account, txs))
}

func (s *Server) handleCircleHistory(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	txs, err := s.history.CircleHistory(r.Context(), account, chi.URLParam(r, "circle"))
	if err != nil {
		s.writeCallerError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, newHistoryResponse(account, txs))
}

func newHistoryResponse(account string, txs []transaction.Transaction) historyResponse {
	l := &transaction.List{FetchedAt: time.Now().UTC()}
	l.Add(txs...)

	rows := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, transactionResponse{Transaction: tx, DisplayWeek: tx.DisplayWeek()})
	}
	return historyResponse{
		Account:      account,
		Transactions: rows,
		Totals:       l.Totals(),
		FetchedAt:    l.FetchedAt,
	}
}

// writeCallerError maps caller-misuse errors to 400. The core degrades every
// runtime failure to empty data, so anything else is unexpected.
func (s *Server) writeCallerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, balance.ErrMissingAccount),
		errors.Is(err, balance.ErrUnsupportedProduct),
		errors.Is(err, history.ErrInvalidCircle):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("Unexpected core error")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
