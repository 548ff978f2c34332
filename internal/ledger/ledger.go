// Package ledger applies fills to account cash and per-symbol positions as
// one atomic unit. Fills are write-once: re-applying a fill ID is refused,
// which keeps the ledger idempotent under replays.
package ledger

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

var (
	ErrUnknownAccount   = errors.New("account not found")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrDuplicateFill    = errors.New("fill already applied")
	ErrInsufficientCash = errors.New("insufficient cash")
)

var bpsDenominator = decimal.NewFromInt(10000)

// Config holds the fee model.
type Config struct {
	// FeeBps is a flat fee on fill notional, in basis points.
	FeeBps int64
}

// FillEffect reports what applying one fill changed.
type FillEffect struct {
	Fee         decimal.Decimal
	CashDelta   decimal.Decimal
	RealizedPnL decimal.Decimal
	Position    schema.Position
	Account     schema.Account
}

type accountState struct {
	acct      schema.Account
	positions map[string]*schema.Position
}

// Ledger owns account and position state for every paper account.
type Ledger struct {
	cfg      Config
	mu       sync.Mutex
	accounts map[string]*accountState
	applied  map[string]struct{}
}

// New creates an empty ledger.
func New(cfg Config) *Ledger {
	return &Ledger{
		cfg:      cfg,
		accounts: make(map[string]*accountState),
		applied:  make(map[string]struct{}),
	}
}

// OpenAccount seeds a paper account with opening cash.
func (l *Ledger) OpenAccount(accountID string, cash decimal.Decimal) error {
	if accountID == "" {
		return ErrUnknownAccount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[accountID]; ok {
		return ErrDuplicateAccount
	}
	l.accounts[accountID] = &accountState{
		acct:      schema.Account{AccountID: accountID, CashBalance: cash},
		positions: make(map[string]*schema.Position),
	}
	return nil
}

// HasAccount reports whether the account exists.
func (l *Ledger) HasAccount(accountID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.accounts[accountID]
	return ok
}

// Account returns a copy of the account state.
func (l *Ledger) Account(accountID string) (schema.Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.accounts[accountID]
	if !ok {
		return schema.Account{}, false
	}
	return st.acct, true
}

// Position returns a copy of the (account, symbol) position. A missing
// position reads as flat.
func (l *Ledger) Position(accountID, symbol string) (schema.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.accounts[accountID]
	if !ok {
		return schema.Position{}, false
	}
	pos, ok := st.positions[symbol]
	if !ok {
		return schema.Position{AccountID: accountID, Symbol: symbol}, false
	}
	return *pos, true
}

// FreeCash returns cash not committed to unfilled limit orders.
func (l *Ledger) FreeCash(accountID string) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.accounts[accountID]
	if !ok {
		return decimal.Decimal{}, false
	}
	return st.acct.CashBalance.Sub(st.acct.ReservedCash), true
}

// Fee returns the fee charged on the given notional.
func (l *Ledger) Fee(notional decimal.Decimal) decimal.Decimal {
	if l.cfg.FeeBps == 0 {
		return decimal.Decimal{}
	}
	return notional.Mul(decimal.NewFromInt(l.cfg.FeeBps)).Div(bpsDenominator)
}

// CostOf returns notional plus fee for a prospective fill, the amount a
// buy must be able to pay.
func (l *Ledger) CostOf(price, qty decimal.Decimal) decimal.Decimal {
	notional := price.Mul(qty)
	return notional.Add(l.Fee(notional))
}

// Reserve commits free cash to an unfilled limit order.
func (l *Ledger) Reserve(accountID string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.accounts[accountID]
	if !ok {
		return ErrUnknownAccount
	}
	if st.acct.CashBalance.Sub(st.acct.ReservedCash).LessThan(amount) {
		return ErrInsufficientCash
	}
	st.acct.ReservedCash = st.acct.ReservedCash.Add(amount)
	return nil
}

// Release returns reserved cash, clamping at zero.
func (l *Ledger) Release(accountID string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.accounts[accountID]
	if !ok {
		return
	}
	st.acct.ReservedCash = st.acct.ReservedCash.Sub(amount)
	if st.acct.ReservedCash.IsNegative() {
		st.acct.ReservedCash = decimal.Decimal{}
	}
}

// ApplyFill atomically updates the position and cash for one fill.
// releaseReserved is the reserved cash freed by this fill (limit buys);
// it is released even when the fill also debits the balance.
func (l *Ledger) ApplyFill(accountID, symbol string, side schema.Side, fill schema.Fill, releaseReserved decimal.Decimal) (FillEffect, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.accounts[accountID]
	if !ok {
		return FillEffect{}, ErrUnknownAccount
	}
	if _, ok := l.applied[fill.FillID]; ok {
		return FillEffect{}, ErrDuplicateFill
	}

	notional := fill.Price.Mul(fill.Quantity)
	fee := l.Fee(notional)

	var cashDelta decimal.Decimal
	switch side {
	case schema.SideBuy:
		cashDelta = notional.Add(fee).Neg()
		available := st.acct.CashBalance.Sub(st.acct.ReservedCash).Add(releaseReserved)
		if available.Add(cashDelta).IsNegative() {
			return FillEffect{}, ErrInsufficientCash
		}
	case schema.SideSell:
		cashDelta = notional.Sub(fee)
	default:
		return FillEffect{}, ErrUnknownAccount
	}

	pos, ok := st.positions[symbol]
	if !ok {
		pos = &schema.Position{AccountID: accountID, Symbol: symbol}
		st.positions[symbol] = pos
	}
	realized := ReduceFill(pos, side, fill.Price, fill.Quantity)

	st.acct.CashBalance = st.acct.CashBalance.Add(cashDelta)
	st.acct.ReservedCash = st.acct.ReservedCash.Sub(releaseReserved)
	if st.acct.ReservedCash.IsNegative() {
		st.acct.ReservedCash = decimal.Decimal{}
	}
	l.applied[fill.FillID] = struct{}{}

	return FillEffect{
		Fee:         fee,
		CashDelta:   cashDelta,
		RealizedPnL: realized,
		Position:    *pos,
		Account:     st.acct,
	}, nil
}

// ReduceFill folds a signed fill into the position and returns the
// P&L realized by any closing quantity. Extensions recompute the entry
// price as a weighted average; reversals open the residual at the fill
// price. Replay tooling reuses it to rebuild positions from the journal.
func ReduceFill(pos *schema.Position, side schema.Side, price, qty decimal.Decimal) decimal.Decimal {
	signed := qty
	if side == schema.SideSell {
		signed = qty.Neg()
	}
	q0 := pos.NetQuantity
	next := q0.Add(signed)

	var realized decimal.Decimal
	switch {
	case q0.IsZero() || q0.Sign() == signed.Sign():
		// Extending (or opening): weighted-average entry.
		abs0 := q0.Abs()
		total := abs0.Add(qty)
		pos.AvgEntryPrice = pos.AvgEntryPrice.Mul(abs0).Add(price.Mul(qty)).Div(total)
	default:
		closing := decimal.Min(qty, q0.Abs())
		diff := price.Sub(pos.AvgEntryPrice)
		if q0.Sign() < 0 {
			diff = diff.Neg()
		}
		realized = closing.Mul(diff)
		pos.RealizedPnL = pos.RealizedPnL.Add(realized)
		switch {
		case next.IsZero():
			pos.AvgEntryPrice = decimal.Decimal{}
		case next.Sign() != q0.Sign():
			// Reversal: the residual opens at the fill price.
			pos.AvgEntryPrice = price
		}
	}
	pos.NetQuantity = next
	return realized
}

// Positions returns copies of every open or historical position.
func (l *Ledger) Positions() []schema.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]schema.Position, 0)
	for _, st := range l.accounts {
		for _, pos := range st.positions {
			out = append(out, *pos)
		}
	}
	return out
}
