package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/ledger"
	"main/internal/schema"
)

// Snapshot captures every account position at a point in time.
type Snapshot struct {
	Timestamp time.Time         `json:"timestamp"`
	Positions []schema.Position `json:"positions"`
}

// TakeSnapshot builds a snapshot from the ledger's current positions.
func TakeSnapshot(led *ledger.Ledger) Snapshot {
	positions := led.Positions()
	sortPositions(positions)
	return Snapshot{
		Timestamp: time.Now().UTC(),
		Positions: positions,
	}
}

func sortPositions(positions []schema.Position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].AccountID != positions[j].AccountID {
			return positions[i].AccountID < positions[j].AccountID
		}
		return positions[i].Symbol < positions[j].Symbol
	})
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks that two snapshots hold the same positions.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Positions) != len(actual.Positions) {
		return errors.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[string]schema.Position, len(expected.Positions))
	for _, pos := range expected.Positions {
		expectedMap[pos.AccountID+"/"+pos.Symbol] = pos
	}
	for _, pos := range actual.Positions {
		want, ok := expectedMap[pos.AccountID+"/"+pos.Symbol]
		if !ok {
			return errors.Errorf("snapshot missing position: %s %s", pos.AccountID, pos.Symbol)
		}
		if !want.NetQuantity.Equal(pos.NetQuantity) {
			return errors.Errorf("qty mismatch: %s %s expected=%s actual=%s", pos.AccountID, pos.Symbol, want.NetQuantity, pos.NetQuantity)
		}
		if !want.AvgEntryPrice.Equal(pos.AvgEntryPrice) {
			return errors.Errorf("entry price mismatch: %s %s expected=%s actual=%s", pos.AccountID, pos.Symbol, want.AvgEntryPrice, pos.AvgEntryPrice)
		}
		if !want.RealizedPnL.Equal(pos.RealizedPnL) {
			return errors.Errorf("realized pnl mismatch: %s %s expected=%s actual=%s", pos.AccountID, pos.Symbol, want.RealizedPnL, pos.RealizedPnL)
		}
	}
	return nil
}
