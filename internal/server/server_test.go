package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/savings-ledger/internal/balance"
	"github.com/example/savings-ledger/internal/history"
	"github.com/example/savings-ledger/pkg/transaction"
)

const account = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type stubBalances struct{}

func (stubBalances) Balance(_ context.Context, _ string, p transaction.Product) (decimal.Decimal, error) {
	if p == transaction.GroupCircle {
		return decimal.Zero, fmt.Errorf("%s: %w", p, balance.ErrUnsupportedProduct)
	}
	return decimal.RequireFromString("12.5"), nil
}

func (stubBalances) Balances(context.Context, string) (map[transaction.Product]decimal.Decimal, error) {
	return map[transaction.Product]decimal.Decimal{
		transaction.QuickSave: decimal.NewFromInt(5),
		transaction.SafeLock:  decimal.Zero,
	}, nil
}

type stubHistory struct {
	lastProduct transaction.Product
}

func circleTxs() []transaction.Transaction {
	zero, one := 0, 1
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []transaction.Transaction{
		{ID: "b", Kind: transaction.Withdraw, Product: transaction.GroupCircle, Amount: decimal.NewFromInt(4), Date: now, Week: &one},
		{ID: "a", Kind: transaction.Save, Product: transaction.GroupCircle, Amount: decimal.NewFromInt(1), Date: now.Add(-time.Hour), Week: &zero},
	}
}

func (h *stubHistory) History(context.Context, string) ([]transaction.Transaction, error) {
	return circleTxs(), nil
}

func (h *stubHistory) ProductHistory(_ context.Context, _ string, p transaction.Product) ([]transaction.Transaction, error) {
	h.lastProduct = p
	return []transaction.Transaction{}, nil
}

func (h *stubHistory) CircleHistory(_ context.Context, _ string, circle string) ([]transaction.Transaction, error) {
	if circle == "bad" {
		return nil, fmt.Errorf("%q: %w", circle, history.ErrInvalidCircle)
	}
	return circleTxs(), nil
}

func newTestServer() (*Server, *stubHistory) {
	h := &stubHistory{}
	return New(":0", stubBalances{}, h, zerolog.Nop()), h
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer()
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleBalance(t *testing.T) {
	s, _ := newTestServer()

	rec := get(t, s, "/api/v1/accounts/"+account+"/balances/quicksave")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "quicksave", body["product"])
	assert.Equal(t, "12.5", body["balance"])

	rec = get(t, s, "/api/v1/accounts/"+account+"/balances/circle")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, s, "/api/v1/accounts/"+account+"/balances/piggybank")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBalances(t *testing.T) {
	s, _ := newTestServer()

	rec := get(t, s, "/api/v1/accounts/"+account+"/balances")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "quicksave", body[0]["product"])
	assert.Equal(t, "safelock", body[1]["product"])
}

func TestHandleHistory(t *testing.T) {
	s, h := newTestServer()

	rec := get(t, s, "/api/v1/accounts/"+account+"/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Transactions []struct {
			ID          string `json:"id"`
			Type        string `json:"type"`
			Week        *int   `json:"week"`
			DisplayWeek *int   `json:"displayWeek"`
		} `json:"transactions"`
		Totals map[string]string `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Transactions, 2)
	assert.Equal(t, "withdraw", body.Transactions[0].Type)
	require.NotNil(t, body.Transactions[0].DisplayWeek)
	assert.Equal(t, 2, *body.Transactions[0].DisplayWeek)
	assert.Equal(t, 1, *body.Transactions[0].Week)
	assert.Equal(t, "1", body.Totals["saved"])
	assert.Equal(t, "4", body.Totals["withdrawn"])

	rec = get(t, s, "/api/v1/accounts/"+account+"/history?product=safelock")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, transaction.SafeLock, h.lastProduct)

	rec = get(t, s, "/api/v1/accounts/"+account+"/history?product=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCircleHistory(t *testing.T) {
	s, _ := newTestServer()

	rec := get(t, s, "/api/v1/accounts/"+account+"/circles/0x2222222222222222222222222222222222222222/history")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, s, "/api/v1/accounts/"+account+"/circles/bad/history")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
