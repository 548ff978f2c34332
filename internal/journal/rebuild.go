package journal

import (
	"time"

	"main/internal/ledger"
	"main/internal/schema"
)

// Rebuild replays fill events into a fresh position set, using the same
// reduction the ledger applies on the hot path. Rejections and cancels
// carry no position effect and are skipped.
func Rebuild(events []schema.TradeEvent) Snapshot {
	positions := make(map[string]*schema.Position)
	for _, event := range events {
		if event.Kind != schema.TradeEventFill || event.Fill == nil {
			continue
		}
		key := event.AccountID + "/" + event.Symbol
		pos, ok := positions[key]
		if !ok {
			pos = &schema.Position{AccountID: event.AccountID, Symbol: event.Symbol}
			positions[key] = pos
		}
		ledger.ReduceFill(pos, event.Side, event.Fill.Price, event.Fill.Quantity)
	}

	out := make([]schema.Position, 0, len(positions))
	for _, pos := range positions {
		out = append(out, *pos)
	}
	sortPositions(out)
	return Snapshot{
		Timestamp: time.Now().UTC(),
		Positions: out,
	}
}
