package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/dedup"
	"main/internal/engine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadResolvesFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"redis": {
			"addr": "redis:6379",
			"ticksChannel": "md.ticks",
			"signalsChannel": "exec.signals",
			"cancelsChannel": "exec.cancels",
			"tradesChannel": "exec.trades"
		},
		"engine": {
			"slippageBps": 10,
			"feeBps": 5,
			"dedupWindowMinutes": 60,
			"mailboxSize": 128
		},
		"symbols": ["BTCUSDT", "ETHUSDT"],
		"accounts": [
			{"accountId": "acct-1", "cash": "1000000"},
			{"accountId": "acct-2", "cash": "50000.50"}
		],
		"journal": {"path": "data/trades.jsonl", "snapshotPath": "data/positions.json"},
		"health": {"addr": ":9090"}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, loaded.Registry.SymbolCount())
	assert.True(t, loaded.Registry.Has("BTCUSDT"))

	assert.Equal(t, int64(10), loaded.Engine.SlippageBps)
	assert.Equal(t, int64(5), loaded.Ledger.FeeBps)
	assert.Equal(t, time.Hour, loaded.Engine.DedupWindow)
	assert.Equal(t, 128, loaded.Engine.MailboxSize)

	require.Len(t, loaded.Accounts, 2)
	assert.Equal(t, "acct-1", loaded.Accounts[0].AccountID)
	assert.True(t, loaded.Accounts[1].Cash.Equal(decimal.RequireFromString("50000.50")))

	assert.Equal(t, "redis:6379", loaded.Redis.Addr)
	assert.Equal(t, "md.ticks", loaded.Channels.Ticks)
	assert.Equal(t, "exec.trades", loaded.Redis.Trades)
	assert.Equal(t, ":9090", loaded.Health.Addr)
	assert.Nil(t, loaded.Postgres)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"symbols": ["BTCUSDT"],
		"accounts": [{"accountId": "acct-1", "cash": "1000"}]
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, defaultSlippageBps, loaded.Engine.SlippageBps)
	assert.Equal(t, int64(0), loaded.Ledger.FeeBps)
	assert.Equal(t, dedup.DefaultWindow, loaded.Engine.DedupWindow)
	assert.Equal(t, engine.DefaultMailboxSize, loaded.Engine.MailboxSize)
	assert.Equal(t, "localhost:6379", loaded.Redis.Addr)
	assert.Equal(t, "market.ticks", loaded.Channels.Ticks)
	assert.Equal(t, "trade.signals", loaded.Channels.Signals)
	assert.Equal(t, "trade.cancels", loaded.Channels.Cancels)
	assert.Equal(t, "trade.events", loaded.Redis.Trades)
	assert.Equal(t, defaultHealthAddr, loaded.Health.Addr)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"no symbols":    `{"accounts": [{"accountId": "a", "cash": "1"}]}`,
		"no accounts":   `{"symbols": ["BTCUSDT"]}`,
		"bad cash":      `{"symbols": ["BTCUSDT"], "accounts": [{"accountId": "a", "cash": "abc"}]}`,
		"negative cash": `{"symbols": ["BTCUSDT"], "accounts": [{"accountId": "a", "cash": "-1"}]}`,
		"dup symbol":    `{"symbols": ["BTCUSDT", "BTCUSDT"], "accounts": [{"accountId": "a", "cash": "1"}]}`,
		"bad slippage":  `{"symbols": ["BTCUSDT"], "accounts": [{"accountId": "a", "cash": "1"}], "engine": {"slippageBps": -1}}`,
		"bad mailbox":   `{"symbols": ["BTCUSDT"], "accounts": [{"accountId": "a", "cash": "1"}], "engine": {"mailboxSize": 0}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
