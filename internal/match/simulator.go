// Package match decides whether and how a working order fills against the
// current market snapshot. No order book depth is modeled: market orders
// fill in full at the snapshot price moved adversely by the configured
// slippage, limit orders fill in full at the triggering price once crossed.
package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/internal/snapshot"
)

var bpsDenominator = decimal.NewFromInt(10000)

// Config holds the fill economics.
type Config struct {
	// SlippageBps is the adverse price deviation applied to market orders,
	// in basis points.
	SlippageBps int64
}

// Simulator produces fills for working orders.
type Simulator struct {
	cfg Config
}

// NewSimulator creates a simulator with the given economics.
func NewSimulator(cfg Config) *Simulator {
	return &Simulator{cfg: cfg}
}

// Evaluate inspects a fillable order against the symbol's latest entry and
// returns the fill it produces, if any. The fill always covers the full
// remaining quantity and records the sequence of the tick it consumed.
func (s *Simulator) Evaluate(o *schema.Order, entry snapshot.Entry, now time.Time) (schema.Fill, bool) {
	if o == nil || !o.Status.Fillable() || !entry.Price.IsPositive() {
		return schema.Fill{}, false
	}
	remaining := o.Remaining()
	if !remaining.IsPositive() {
		return schema.Fill{}, false
	}

	switch o.Type {
	case schema.OrderTypeMarket:
		return s.fill(o, s.slip(entry.Price, o.Side), remaining, s.cfg.SlippageBps, entry, now), true
	case schema.OrderTypeLimit:
		if !crossed(o.Side, entry.Price, o.LimitPrice) {
			return schema.Fill{}, false
		}
		// The trader's limit is honored exactly: the fill uses the
		// triggering tick's price with no slippage.
		return s.fill(o, entry.Price, remaining, 0, entry, now), true
	default:
		return schema.Fill{}, false
	}
}

func (s *Simulator) fill(o *schema.Order, price, qty decimal.Decimal, slippageBps int64, entry snapshot.Entry, now time.Time) schema.Fill {
	return schema.Fill{
		FillID:       uuid.NewString(),
		OrderID:      o.OrderID,
		Price:        price,
		Quantity:     qty,
		SlippageBps:  slippageBps,
		TickSequence: entry.Sequence,
		Timestamp:    now,
	}
}

// slip moves the price against the trader: up for buys, down for sells.
func (s *Simulator) slip(price decimal.Decimal, side schema.Side) decimal.Decimal {
	if s.cfg.SlippageBps == 0 {
		return price
	}
	factor := bpsDenominator.Add(decimal.NewFromInt(side.Sign() * s.cfg.SlippageBps))
	return price.Mul(factor).Div(bpsDenominator)
}

// crossed reports whether the market price satisfies the limit:
// price <= limit for buys, price >= limit for sells.
func crossed(side schema.Side, price, limit decimal.Decimal) bool {
	switch side {
	case schema.SideBuy:
		return price.LessThanOrEqual(limit)
	case schema.SideSell:
		return price.GreaterThanOrEqual(limit)
	default:
		return false
	}
}
