package main

import (
	"flag"
	"log"

	"main/internal/journal"
)

func main() {
	journalPath := flag.String("journal", "data/trades.jsonl", "Trade journal to replay")
	snapshotPath := flag.String("snapshot", "", "Position snapshot to verify against (empty=print only)")
	flag.Parse()

	events, err := journal.ReadAll(*journalPath)
	if err != nil {
		log.Fatalf("journal read failed: %v", err)
	}

	rebuilt := journal.Rebuild(events)
	log.Printf("replay completed: events=%d positions=%d", len(events), len(rebuilt.Positions))
	for _, pos := range rebuilt.Positions {
		log.Printf("position: account=%s symbol=%s qty=%s avgEntry=%s realized=%s",
			pos.AccountID, pos.Symbol, pos.NetQuantity, pos.AvgEntryPrice, pos.RealizedPnL)
	}

	if *snapshotPath == "" {
		return
	}
	expected, err := journal.ReadSnapshot(*snapshotPath)
	if err != nil {
		log.Fatalf("snapshot read failed: %v", err)
	}
	if err := journal.CompareSnapshots(expected, rebuilt); err != nil {
		log.Fatalf("snapshot mismatch: %v", err)
	}
	log.Printf("snapshot verified: positions=%d", len(rebuilt.Positions))
}
