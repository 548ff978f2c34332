package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/schema"
)

const (
	waitFor = 2 * time.Second
	tickDur = 5 * time.Millisecond
	settle  = 50 * time.Millisecond
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type captureEmitter struct {
	mu     sync.Mutex
	events []schema.TradeEvent
}

func (c *captureEmitter) Emit(event schema.TradeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureEmitter) snapshot() []schema.TradeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schema.TradeEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *captureEmitter) count(kind schema.TradeEventKind) int {
	n := 0
	for _, ev := range c.snapshot() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (c *captureEmitter) last() (schema.TradeEvent, bool) {
	events := c.snapshot()
	if len(events) == 0 {
		return schema.TradeEvent{}, false
	}
	return events[len(events)-1], true
}

type fixture struct {
	eng     *Engine
	led     *ledger.Ledger
	emitted *captureEmitter
	seq     uint64
}

func newFixture(t *testing.T, cfg Config, feeBps int64) *fixture {
	t.Helper()
	registry := schema.NewRegistry()
	require.NoError(t, registry.AddSymbol("BTCUSDT"))
	require.NoError(t, registry.AddSymbol("ETHUSDT"))

	led := ledger.New(ledger.Config{FeeBps: feeBps})
	require.NoError(t, led.OpenAccount("acct-1", dec("1000000")))

	emitted := &captureEmitter{}
	eng := New(cfg, registry, led, emitted, obs.NewMetrics())
	eng.Start(t.Context())
	t.Cleanup(eng.Stop)
	return &fixture{eng: eng, led: led, emitted: emitted}
}

func (f *fixture) tick(symbol, price string) {
	f.seq++
	f.eng.ApplyTick(schema.MarketTick{
		Symbol:    symbol,
		Price:     dec(price),
		Sequence:  f.seq,
		Timestamp: time.Now().UTC(),
	})
}

func signal(id, symbol string, side schema.Side, orderType schema.OrderType, qty, limit string) schema.Signal {
	sig := schema.Signal{
		SignalID:   id,
		AccountID:  "acct-1",
		Symbol:     symbol,
		Side:       side,
		Type:       orderType,
		Quantity:   dec(qty),
		ReceivedAt: time.Now().UTC(),
	}
	if limit != "" {
		sig.LimitPrice = dec(limit)
	}
	return sig
}

func (f *fixture) waitFills(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.emitted.count(schema.TradeEventFill) >= n
	}, waitFor, tickDur)
}

// A market buy before any tick stays working, then fills on
// the first tick with slippage applied against the trader.
func TestMarketBuyWaitsForFirstTick(t *testing.T) {
	f := newFixture(t, Config{SlippageBps: 10}, 0)

	require.NoError(t, f.eng.SubmitSignal(signal("sig-a", "BTCUSDT", schema.SideBuy, schema.OrderTypeMarket, "10", "")))
	time.Sleep(settle)
	assert.Empty(t, f.emitted.snapshot(), "no fill may exist before the first tick")

	f.tick("BTCUSDT", "50000")
	f.waitFills(t, 1)

	ev, ok := f.emitted.last()
	require.True(t, ok)
	assert.Equal(t, schema.TradeEventFill, ev.Kind)
	assert.Equal(t, schema.OrderStatusFilled, ev.OrderStatus)
	require.NotNil(t, ev.Fill)
	// 50000 * (1 + 10/10000) = 50050
	assert.True(t, ev.Fill.Price.Equal(dec("50050")), "got %s", ev.Fill.Price)
	assert.True(t, ev.Fill.Quantity.Equal(dec("10")))
	assert.Equal(t, uint64(1), ev.Fill.TickSequence)
}

// The same signal id creates exactly one order.
func TestDuplicateSignalIsNoOp(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	f.tick("BTCUSDT", "50000")

	sig := signal("sig-b", "BTCUSDT", schema.SideBuy, schema.OrderTypeMarket, "1", "")
	require.NoError(t, f.eng.SubmitSignal(sig))
	require.NoError(t, f.eng.SubmitSignal(sig))
	f.waitFills(t, 1)
	time.Sleep(settle)

	assert.Equal(t, 1, f.emitted.count(schema.TradeEventFill))
	acct, _ := f.led.Account("acct-1")
	assert.True(t, acct.CashBalance.Equal(dec("950000")), "got %s", acct.CashBalance)
}

// A limit order ignores the standing snapshot and fills from
// the tick that crosses its limit, at that tick's price, no slippage.
func TestLimitOrderFillsOnCrossingTick(t *testing.T) {
	f := newFixture(t, Config{SlippageBps: 25}, 0)
	f.tick("ETHUSDT", "47000")

	require.NoError(t, f.eng.SubmitSignal(signal("sig-c", "ETHUSDT", schema.SideSell, schema.OrderTypeLimit, "5", "48000")))
	time.Sleep(settle)
	assert.Empty(t, f.emitted.snapshot())

	f.tick("ETHUSDT", "47900")
	time.Sleep(settle)
	assert.Empty(t, f.emitted.snapshot(), "price below a sell limit must not fill")

	f.tick("ETHUSDT", "48050")
	f.waitFills(t, 1)

	ev, _ := f.emitted.last()
	require.NotNil(t, ev.Fill)
	assert.True(t, ev.Fill.Price.Equal(dec("48050")))
	assert.Equal(t, int64(0), ev.Fill.SlippageBps)
	assert.Equal(t, schema.OrderStatusFilled, ev.OrderStatus)
}

func TestLimitBuyFillsWhenPriceDrops(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	f.tick("ETHUSDT", "49000")

	require.NoError(t, f.eng.SubmitSignal(signal("sig-cb", "ETHUSDT", schema.SideBuy, schema.OrderTypeLimit, "5", "48000")))
	time.Sleep(settle)
	assert.Empty(t, f.emitted.snapshot())

	f.tick("ETHUSDT", "47900")
	f.waitFills(t, 1)

	ev, _ := f.emitted.last()
	require.NotNil(t, ev.Fill)
	assert.True(t, ev.Fill.Price.Equal(dec("47900")))
}

// A committed cancel wins against any later qualifying tick.
func TestCanceledOrderNeverFills(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	f.tick("ETHUSDT", "49000")

	require.NoError(t, f.eng.SubmitSignal(signal("sig-d", "ETHUSDT", schema.SideBuy, schema.OrderTypeLimit, "5", "48000")))
	require.Eventually(t, func() bool {
		f.eng.mu.Lock()
		defer f.eng.mu.Unlock()
		return len(f.eng.orderRoute) == 1
	}, waitFor, tickDur)

	var orderID string
	f.eng.mu.Lock()
	for id := range f.eng.orderRoute {
		orderID = id
	}
	f.eng.mu.Unlock()

	require.NoError(t, f.eng.SubmitCancel(schema.CancelRequest{OrderID: orderID, RequestedAt: time.Now().UTC()}))
	require.Eventually(t, func() bool {
		return f.emitted.count(schema.TradeEventCanceled) == 1
	}, waitFor, tickDur)

	f.tick("ETHUSDT", "47000")
	time.Sleep(settle)
	assert.Equal(t, 0, f.emitted.count(schema.TradeEventFill))

	ev, _ := f.emitted.last()
	assert.Equal(t, schema.TradeEventCanceled, ev.Kind)
	assert.Equal(t, schema.OrderStatusCanceled, ev.OrderStatus)

	// The limit buy's reserved cash is returned on cancel.
	acct, _ := f.led.Account("acct-1")
	assert.True(t, acct.ReservedCash.IsZero())
}

// Cash moves by exactly price*quantity plus fees.
func TestCashMovesByNotionalPlusFees(t *testing.T) {
	f := newFixture(t, Config{}, 10)
	f.tick("BTCUSDT", "100")

	require.NoError(t, f.eng.SubmitSignal(signal("sig-e1", "BTCUSDT", schema.SideBuy, schema.OrderTypeMarket, "10", "")))
	f.waitFills(t, 1)
	acct, _ := f.led.Account("acct-1")
	// notional 1000, fee 1
	assert.True(t, acct.CashBalance.Equal(dec("998999")), "got %s", acct.CashBalance)

	require.NoError(t, f.eng.SubmitSignal(signal("sig-e2", "BTCUSDT", schema.SideSell, schema.OrderTypeMarket, "10", "")))
	f.waitFills(t, 2)
	acct, _ = f.led.Account("acct-1")
	// credit 1000 - fee 1
	assert.True(t, acct.CashBalance.Equal(dec("999998")), "got %s", acct.CashBalance)
}

func TestValidationFailuresRejectTerminally(t *testing.T) {
	f := newFixture(t, Config{}, 0)

	cases := []struct {
		name   string
		sig    schema.Signal
		reason schema.RejectReason
	}{
		{"non-positive quantity", signal("sig-r1", "BTCUSDT", schema.SideBuy, schema.OrderTypeMarket, "0", ""), schema.RejectReasonInvalidQty},
		{"missing limit price", signal("sig-r2", "BTCUSDT", schema.SideBuy, schema.OrderTypeLimit, "1", ""), schema.RejectReasonMissingLimit},
		{"unknown symbol", signal("sig-r3", "DOGEUSDT", schema.SideBuy, schema.OrderTypeMarket, "1", ""), schema.RejectReasonUnknownSymbol},
	}
	for i, tc := range cases {
		require.NoError(t, f.eng.SubmitSignal(tc.sig), tc.name)
		require.Eventually(t, func() bool {
			return f.emitted.count(schema.TradeEventRejected) >= i+1
		}, waitFor, tickDur, tc.name)
		ev, _ := f.emitted.last()
		assert.Equal(t, schema.OrderStatusRejected, ev.OrderStatus, tc.name)
		assert.Equal(t, tc.reason, ev.Reason, tc.name)
	}
}

func TestUnknownAccountRejected(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	sig := signal("sig-ua", "BTCUSDT", schema.SideBuy, schema.OrderTypeMarket, "1", "")
	sig.AccountID = "acct-missing"

	require.NoError(t, f.eng.SubmitSignal(sig))
	require.Eventually(t, func() bool {
		return f.emitted.count(schema.TradeEventRejected) == 1
	}, waitFor, tickDur)
	ev, _ := f.emitted.last()
	assert.Equal(t, schema.RejectReasonUnknownAccount, ev.Reason)
}

func TestLimitBuyReservesCash(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	f.tick("ETHUSDT", "49000")

	require.NoError(t, f.eng.SubmitSignal(signal("sig-rc", "ETHUSDT", schema.SideBuy, schema.OrderTypeLimit, "10", "48000")))
	require.Eventually(t, func() bool {
		acct, _ := f.led.Account("acct-1")
		return acct.ReservedCash.Equal(dec("480000"))
	}, waitFor, tickDur)

	// A second limit buy beyond free cash is rejected.
	require.NoError(t, f.eng.SubmitSignal(signal("sig-rc2", "ETHUSDT", schema.SideBuy, schema.OrderTypeLimit, "20", "48000")))
	require.Eventually(t, func() bool {
		return f.emitted.count(schema.TradeEventRejected) == 1
	}, waitFor, tickDur)
	ev, _ := f.emitted.last()
	assert.Equal(t, schema.RejectReasonInsufficientCash, ev.Reason)

	// The first order fills and its reserve is released.
	f.tick("ETHUSDT", "47900")
	f.waitFills(t, 1)
	require.Eventually(t, func() bool {
		acct, _ := f.led.Account("acct-1")
		return acct.ReservedCash.IsZero()
	}, waitFor, tickDur)
}

func TestHoldSignalIsIgnored(t *testing.T) {
	f := newFixture(t, Config{}, 0)

	require.NoError(t, f.eng.SubmitSignal(signal("sig-h", "BTCUSDT", schema.SideHold, schema.OrderTypeMarket, "1", "")))
	time.Sleep(settle)
	assert.Empty(t, f.emitted.snapshot())
	assert.Equal(t, Health{Accepting: true}, f.eng.Health())
}

func TestStaleTickDoesNotMovePrices(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	f.tick("BTCUSDT", "50000")
	f.eng.ApplyTick(schema.MarketTick{Symbol: "BTCUSDT", Price: dec("1"), Sequence: 1, Timestamp: time.Now().UTC()})

	entry, ok := f.eng.Price("BTCUSDT")
	require.True(t, ok)
	assert.True(t, entry.Price.Equal(dec("50000")))
}

func TestPartitionsForDifferentPairsAreIndependent(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	f.tick("BTCUSDT", "100")
	f.tick("ETHUSDT", "10")

	require.NoError(t, f.eng.SubmitSignal(signal("sig-p1", "BTCUSDT", schema.SideBuy, schema.OrderTypeMarket, "1", "")))
	require.NoError(t, f.eng.SubmitSignal(signal("sig-p2", "ETHUSDT", schema.SideBuy, schema.OrderTypeMarket, "1", "")))
	f.waitFills(t, 2)

	h := f.eng.Health()
	assert.Equal(t, 2, h.Partitions)

	btc, _ := f.led.Position("acct-1", "BTCUSDT")
	eth, _ := f.led.Position("acct-1", "ETHUSDT")
	assert.True(t, btc.NetQuantity.Equal(dec("1")))
	assert.True(t, eth.NetQuantity.Equal(dec("1")))
}

func TestSubmitBeforeStart(t *testing.T) {
	registry := schema.NewRegistry()
	require.NoError(t, registry.AddSymbol("BTCUSDT"))
	eng := New(Config{}, registry, ledger.New(ledger.Config{}), &captureEmitter{}, obs.NewMetrics())

	err := eng.SubmitSignal(signal("sig-ns", "BTCUSDT", schema.SideBuy, schema.OrderTypeMarket, "1", ""))
	assert.ErrorIs(t, err, ErrNotRunning)
}
