package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/engine"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/schema"
)

type nopEmitter struct{}

func (nopEmitter) Emit(schema.TradeEvent) {}

func newStatusFixture(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	registry := schema.NewRegistry()
	require.NoError(t, registry.AddSymbol("BTCUSDT"))

	led := ledger.New(ledger.Config{})
	require.NoError(t, led.OpenAccount("acct-1", decimal.RequireFromString("1000000")))

	metrics := obs.NewMetrics()
	eng := engine.New(engine.Config{}, registry, led, nopEmitter{}, metrics)
	eng.Start(t.Context())
	t.Cleanup(eng.Stop)

	return NewServer(eng, led, metrics, nil, registry), eng
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newStatusFixture(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Accepting)
}

func TestStatusEndpointReportsPrices(t *testing.T) {
	server, eng := newStatusFixture(t)

	eng.ApplyTick(schema.MarketTick{
		Symbol:    "BTCUSDT",
		Price:     decimal.RequireFromString("50000"),
		Sequence:  1,
		Timestamp: time.Now().UTC(),
	})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Health.Accepting)
	require.Contains(t, body.Prices, "BTCUSDT")
	assert.True(t, body.Prices["BTCUSDT"].Price.Equal(decimal.RequireFromString("50000")))
	assert.Equal(t, uint64(1), body.Prices["BTCUSDT"].Sequence)
}

func TestAccountEndpoints(t *testing.T) {
	server, _ := newStatusFixture(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/acct-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var acct schema.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
	assert.Equal(t, "acct-1", acct.AccountID)
	assert.True(t, acct.CashBalance.Equal(decimal.RequireFromString("1000000")))

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/acct-1/positions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
