package ops

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/engine"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/schema"
)

// Depther reports the number of trade events awaiting delivery.
type Depther interface {
	Depth() int
}

// Server exposes health and status over HTTP.
type Server struct {
	eng       *engine.Engine
	led       *ledger.Ledger
	metrics   *obs.Metrics
	publisher Depther
	registry  *schema.Registry
	router    *mux.Router
}

// NewServer wires the status endpoints.
func NewServer(eng *engine.Engine, led *ledger.Ledger, metrics *obs.Metrics, publisher Depther, registry *schema.Registry) *Server {
	s := &Server{
		eng:       eng,
		led:       led,
		metrics:   metrics,
		publisher: publisher,
		registry:  registry,
		router:    mux.NewRouter(),
	}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/accounts/{accountId}", s.handleAccount).Methods("GET")
	s.router.HandleFunc("/accounts/{accountId}/positions", s.handlePositions).Methods("GET")
	return s
}

// Handler returns the HTTP handler for serving.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	logs.Infof("status server listening. addr: %s", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type healthResponse struct {
	Status    string `json:"status"`
	Accepting bool   `json:"accepting"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.eng.Health()
	status := "ok"
	code := http.StatusOK
	if !health.Accepting {
		status = "stopped"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{Status: status, Accepting: health.Accepting})
}

type priceEntry struct {
	Price    decimal.Decimal `json:"price"`
	Sequence uint64          `json:"sequence"`
}

type statusResponse struct {
	Health    engine.Health         `json:"health"`
	Metrics   obs.Snapshot          `json:"metrics"`
	EmitDepth int                   `json:"emitDepth"`
	Prices    map[string]priceEntry `json:"prices"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	prices := make(map[string]priceEntry)
	for _, symbol := range s.registry.Symbols() {
		if entry, ok := s.eng.Price(symbol); ok {
			prices[symbol] = priceEntry{Price: entry.Price, Sequence: entry.Sequence}
		}
	}
	depth := 0
	if s.publisher != nil {
		depth = s.publisher.Depth()
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Health:    s.eng.Health(),
		Metrics:   s.metrics.Snapshot(),
		EmitDepth: depth,
		Prices:    prices,
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]
	acct, ok := s.led.Account(accountID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]
	if !s.led.HasAccount(accountID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
		return
	}
	positions := make([]schema.Position, 0)
	for _, pos := range s.led.Positions() {
		if pos.AccountID == accountID {
			positions = append(positions, pos)
		}
	}
	writeJSON(w, http.StatusOK, positions)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Warnf("write response. err: %v", err)
	}
}
