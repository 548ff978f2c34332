// Package ops loads and resolves the runtime configuration.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/dedup"
	"main/internal/engine"
	"main/internal/ingest"
	"main/internal/ledger"
	"main/internal/schema"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Redis     RedisConfig     `json:"redis"`
	Engine    EngineConfig    `json:"engine"`
	Symbols   []string        `json:"symbols"`
	Accounts  []AccountConfig `json:"accounts"`
	Postgres  *PostgresConfig `json:"postgres"`
	Journal   JournalConfig   `json:"journal"`
	Health    HealthConfig    `json:"health"`
	Profiling ProfilingConfig `json:"profiling"`
}

// RedisConfig describes the pub/sub endpoint and channel names.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Ticks    string `json:"ticksChannel"`
	Signals  string `json:"signalsChannel"`
	Cancels  string `json:"cancelsChannel"`
	Trades   string `json:"tradesChannel"`
}

// EngineConfig captures the tunable economics and sizing knobs.
type EngineConfig struct {
	SlippageBps        *int64 `json:"slippageBps"`
	FeeBps             *int64 `json:"feeBps"`
	DedupWindowMinutes *int64 `json:"dedupWindowMinutes"`
	MailboxSize        *int   `json:"mailboxSize"`
}

// AccountConfig seeds one paper account.
type AccountConfig struct {
	AccountID string `json:"accountId"`
	Cash      string `json:"cash"`
}

// PostgresConfig describes the optional trade archive database.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// JournalConfig describes the optional trade journal.
type JournalConfig struct {
	Path         string `json:"path"`
	SnapshotPath string `json:"snapshotPath"`
}

// HealthConfig describes the status HTTP listener.
type HealthConfig struct {
	Addr string `json:"addr"`
}

// ProfilingConfig describes the optional pyroscope target.
type ProfilingConfig struct {
	Enabled   bool   `json:"enabled"`
	ServerURL string `json:"serverUrl"`
	AppName   string `json:"appName"`
}

// AccountSeed is a resolved opening balance.
type AccountSeed struct {
	AccountID string
	Cash      decimal.Decimal
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry  *schema.Registry
	Engine    engine.Config
	Ledger    ledger.Config
	Accounts  []AccountSeed
	Redis     RedisConfig
	Channels  ingest.Channels
	Postgres  *PostgresConfig
	Journal   JournalConfig
	Health    HealthConfig
	Profiling ProfilingConfig
}

const (
	defaultSlippageBps = int64(5)
	defaultHealthAddr  = ":8080"
)

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	registry, err := buildRegistry(cfg.Symbols)
	if err != nil {
		return Loaded{}, err
	}
	accounts, err := resolveAccounts(cfg.Accounts)
	if err != nil {
		return Loaded{}, err
	}
	redisCfg, channels, err := resolveRedis(cfg.Redis)
	if err != nil {
		return Loaded{}, err
	}
	engineCfg, ledgerCfg, err := resolveEngine(cfg.Engine)
	if err != nil {
		return Loaded{}, err
	}
	health := cfg.Health
	if health.Addr == "" {
		health.Addr = defaultHealthAddr
	}
	return Loaded{
		Registry:  registry,
		Engine:    engineCfg,
		Ledger:    ledgerCfg,
		Accounts:  accounts,
		Redis:     redisCfg,
		Channels:  channels,
		Postgres:  cfg.Postgres,
		Journal:   cfg.Journal,
		Health:    health,
		Profiling: cfg.Profiling,
	}, nil
}

func buildRegistry(symbols []string) (*schema.Registry, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}
	reg := schema.NewRegistry()
	for _, name := range symbols {
		if err := reg.AddSymbol(name); err != nil {
			return nil, fmt.Errorf("symbol %q: %w", name, err)
		}
	}
	return reg, nil
}

func resolveAccounts(accounts []AccountConfig) ([]AccountSeed, error) {
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured")
	}
	seeds := make([]AccountSeed, 0, len(accounts))
	for _, acct := range accounts {
		if acct.AccountID == "" {
			return nil, fmt.Errorf("account with empty id")
		}
		cash, err := decimal.NewFromString(acct.Cash)
		if err != nil {
			return nil, fmt.Errorf("account %s cash: %w", acct.AccountID, err)
		}
		if cash.IsNegative() {
			return nil, fmt.Errorf("account %s cash must be >= 0", acct.AccountID)
		}
		seeds = append(seeds, AccountSeed{AccountID: acct.AccountID, Cash: cash})
	}
	return seeds, nil
}

func resolveRedis(cfg RedisConfig) (RedisConfig, ingest.Channels, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Ticks == "" {
		cfg.Ticks = "market.ticks"
	}
	if cfg.Signals == "" {
		cfg.Signals = "trade.signals"
	}
	if cfg.Cancels == "" {
		cfg.Cancels = "trade.cancels"
	}
	if cfg.Trades == "" {
		cfg.Trades = "trade.events"
	}
	channels := ingest.Channels{
		Ticks:   cfg.Ticks,
		Signals: cfg.Signals,
		Cancels: cfg.Cancels,
	}
	return cfg, channels, nil
}

func resolveEngine(cfg EngineConfig) (engine.Config, ledger.Config, error) {
	engineCfg := engine.Config{
		SlippageBps: defaultSlippageBps,
		DedupWindow: dedup.DefaultWindow,
		MailboxSize: engine.DefaultMailboxSize,
	}
	var ledgerCfg ledger.Config
	if cfg.SlippageBps != nil {
		if *cfg.SlippageBps < 0 {
			return engine.Config{}, ledger.Config{}, fmt.Errorf("slippageBps must be >= 0")
		}
		engineCfg.SlippageBps = *cfg.SlippageBps
	}
	if cfg.FeeBps != nil {
		if *cfg.FeeBps < 0 {
			return engine.Config{}, ledger.Config{}, fmt.Errorf("feeBps must be >= 0")
		}
		ledgerCfg.FeeBps = *cfg.FeeBps
	}
	if cfg.DedupWindowMinutes != nil {
		if *cfg.DedupWindowMinutes <= 0 {
			return engine.Config{}, ledger.Config{}, fmt.Errorf("dedupWindowMinutes must be > 0")
		}
		engineCfg.DedupWindow = time.Duration(*cfg.DedupWindowMinutes) * time.Minute
	}
	if cfg.MailboxSize != nil {
		if *cfg.MailboxSize <= 0 {
			return engine.Config{}, ledger.Config{}, fmt.Errorf("mailboxSize must be > 0")
		}
		engineCfg.MailboxSize = *cfg.MailboxSize
	}
	return engineCfg, ledgerCfg, nil
}
