/*
Package engine orchestrates the execution core.

# Flow

Signals run dedup -> validation -> order creation -> matching -> ledger,
ticks run snapshot update -> limit re-evaluation, and every ledger-applied
fill, terminal rejection, and cancellation is handed to the emitter for the
analytics boundary.

# Sharding

The unit of serialization is the (accountId, symbol) pair. Each pair owns a
partition with a single goroutine and a bounded mailbox; messages for the
same pair are totally ordered, unrelated pairs run in parallel. The market
snapshot store is the only state touched outside partition ownership.
*/
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/dedup"
	"main/internal/ledger"
	"main/internal/match"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/snapshot"
)

var (
	ErrNotRunning = errors.New("engine not running")
	// ErrMailboxFull means the partition could not admit the message. The
	// caller requeues and retries; the message is never processed out of
	// order.
	ErrMailboxFull = errors.New("partition mailbox full")
)

// DefaultMailboxSize bounds each partition's inbound queue.
const DefaultMailboxSize = 256

// Emitter receives trade events after each committed state change. The
// hand-off must not block partition progress.
type Emitter interface {
	Emit(event schema.TradeEvent)
}

// Config holds the engine's tunables.
type Config struct {
	SlippageBps int64
	DedupWindow time.Duration
	MailboxSize int
}

// Engine is the execution coordinator.
type Engine struct {
	cfg      Config
	registry *schema.Registry
	store    *snapshot.Store
	dedup    *dedup.Deduplicator
	sim      *match.Simulator
	ledger   *ledger.Ledger
	emitter  Emitter
	metrics  *obs.Metrics

	mu         sync.Mutex
	partitions map[string]*partition
	bySymbol   map[string][]*partition
	orderRoute map[string]*partition

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires an engine. The ledger carries the fee model and the seeded
// accounts; the registry carries the tradable symbols.
func New(cfg Config, registry *schema.Registry, led *ledger.Ledger, emitter Emitter, metrics *obs.Metrics) *Engine {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = DefaultMailboxSize
	}
	return &Engine{
		cfg:        cfg,
		registry:   registry,
		store:      snapshot.NewStore(),
		dedup:      dedup.New(cfg.DedupWindow),
		sim:        match.NewSimulator(match.Config{SlippageBps: cfg.SlippageBps}),
		ledger:     led,
		emitter:    emitter,
		metrics:    metrics,
		partitions: make(map[string]*partition),
		bySymbol:   make(map[string][]*partition),
		orderRoute: make(map[string]*partition),
	}
}

// Start makes the engine accept work. Partitions spawn lazily under the
// derived context.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
}

// Stop stops accepting work and waits for every partition to drain out.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	e.wg.Wait()
}

// SubmitSignal admits a signal into its partition. Duplicate signals and
// HOLD advice are silent no-ops. ErrMailboxFull asks the caller to retry;
// the admission is rolled back so the retry is not deduplicated away.
func (e *Engine) SubmitSignal(sig schema.Signal) error {
	if sig.Side == schema.SideHold {
		e.metrics.IncSignalIgnored()
		return nil
	}
	if !e.dedup.Admit(sig.SignalID) {
		e.metrics.IncSignalDuplicate()
		return nil
	}
	p, err := e.partitionFor(sig.AccountID, sig.Symbol)
	if err != nil {
		e.dedup.Forget(sig.SignalID)
		return err
	}
	if err := p.mailbox.TryPublish(message{signal: &sig}); err != nil {
		e.dedup.Forget(sig.SignalID)
		e.metrics.IncMailboxReject()
		return ErrMailboxFull
	}
	e.metrics.IncSignalAccepted()
	return nil
}

// ApplyTick updates the snapshot store and wakes every partition working
// the symbol. Stale ticks are discarded without error. The wake-up is
// coalesced through a one-slot channel, so it is never lost and never
// blocks tick ingestion.
func (e *Engine) ApplyTick(tick schema.MarketTick) {
	if !e.store.Apply(tick) {
		e.metrics.IncTickStale()
		return
	}
	e.metrics.IncTickApplied()

	e.mu.Lock()
	parts := e.bySymbol[tick.Symbol]
	e.mu.Unlock()
	for _, p := range parts {
		select {
		case p.reeval <- struct{}{}:
		default:
		}
	}
}

// SubmitCancel routes a cancel request to the order's partition. A cancel
// for an order the engine never created signals upstream desynchronization
// and is logged and dropped.
func (e *Engine) SubmitCancel(req schema.CancelRequest) error {
	e.mu.Lock()
	p, ok := e.orderRoute[req.OrderID]
	e.mu.Unlock()
	if !ok {
		logs.Warnf("cancel for unknown order dropped. orderId: %s", req.OrderID)
		return nil
	}
	if err := p.mailbox.TryPublish(message{cancel: &req}); err != nil {
		e.metrics.IncMailboxReject()
		return ErrMailboxFull
	}
	return nil
}

// Price exposes the snapshot store for read-only callers.
func (e *Engine) Price(symbol string) (snapshot.Entry, bool) {
	return e.store.Price(symbol)
}

// Health is the operational status surface. It carries no business
// semantics.
type Health struct {
	Accepting     bool `json:"accepting"`
	Partitions    int  `json:"partitions"`
	MailboxDepth  int  `json:"mailboxDepth"`
	PricedSymbols int  `json:"pricedSymbols"`
}

// Health reports whether the engine accepts work and how deep partition
// mailboxes are.
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := Health{
		Accepting:     e.ctx != nil && e.ctx.Err() == nil,
		Partitions:    len(e.partitions),
		PricedSymbols: e.store.SymbolCount(),
	}
	for _, p := range e.partitions {
		h.MailboxDepth += p.mailbox.Len()
	}
	return h
}

func (e *Engine) partitionFor(accountID, symbol string) (*partition, error) {
	key := accountID + "|" + symbol
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil || e.ctx.Err() != nil {
		return nil, ErrNotRunning
	}
	if p, ok := e.partitions[key]; ok {
		return p, nil
	}
	p := newPartition(e, key, accountID, symbol, e.cfg.MailboxSize)
	e.partitions[key] = p
	e.bySymbol[symbol] = append(e.bySymbol[symbol], p)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		p.run(e.ctx)
	}()
	return p, nil
}

func (e *Engine) routeOrder(orderID string, p *partition) {
	e.mu.Lock()
	e.orderRoute[orderID] = p
	e.mu.Unlock()
}
