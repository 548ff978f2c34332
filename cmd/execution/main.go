package main

import (
	"context"
	"flag"
	"log"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/emit"
	"main/internal/engine"
	"main/internal/ingest"
	"main/internal/journal"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/store"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if loaded.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: appName(loaded.Profiling.AppName),
			ServerAddress:   loaded.Profiling.ServerURL,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	if err := run(loaded); err != nil {
		log.Fatalf("execution engine failed: %v", err)
	}
}

func appName(name string) string {
	if name == "" {
		return "execution-engine"
	}
	return name
}

func run(loaded ops.Loaded) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		logs.Info("shutdown signal received")
		cancel()
	}()

	led := ledger.New(loaded.Ledger)
	for _, seed := range loaded.Accounts {
		if err := led.OpenAccount(seed.AccountID, seed.Cash); err != nil {
			return err
		}
		logs.Infof("account seeded. id: %s, cash: %s", seed.AccountID, seed.Cash)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     loaded.Redis.Addr,
		Password: loaded.Redis.Password,
		DB:       loaded.Redis.DB,
	})
	defer client.Close()

	sinks := []emit.Sink{emit.NewRedisSink(client, loaded.Redis.Trades)}

	var journalWriter *journal.Writer
	if loaded.Journal.Path != "" {
		w, err := journal.NewWriter(loaded.Journal.Path)
		if err != nil {
			return err
		}
		journalWriter = w
		sinks = append(sinks, w)
		logs.Infof("journaling trades. path: %s", loaded.Journal.Path)
	}

	var pg *conn.Client
	if loaded.Postgres != nil {
		c, err := conn.New(conn.Option{
			Host:     loaded.Postgres.Host,
			Port:     loaded.Postgres.Port,
			User:     loaded.Postgres.User,
			Password: loaded.Postgres.Password,
			Database: loaded.Postgres.Database,
			SSLMode:  loaded.Postgres.SSLMode,
		})
		if err != nil {
			return err
		}
		pg = c
		repo := store.NewTradeRepo(pg.DB())
		if err := repo.Migrate(); err != nil {
			return err
		}
		sinks = append(sinks, repo)
		logs.Infof("archiving trades. database: %s", loaded.Postgres.Database)
	}

	metrics := obs.NewMetrics()
	publisher := emit.NewPublisher(metrics, sinks...)
	publisher.Start(ctx)

	eng := engine.New(loaded.Engine, loaded.Registry, led, publisher, metrics)
	eng.Start(ctx)

	consumer := ingest.NewConsumer(client, loaded.Channels, eng)
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Run(ctx)
	}()

	statusServer := ops.NewServer(eng, led, metrics, publisher, loaded.Registry)
	go func() {
		if err := statusServer.Run(loaded.Health.Addr); err != nil {
			logs.Warnf("status server stopped. err: %v", err)
		}
	}()

	logs.Infof("execution engine running. symbols: %d, accounts: %d", loaded.Registry.SymbolCount(), len(loaded.Accounts))

	select {
	case <-ctx.Done():
	case err := <-consumerDone:
		if err != nil {
			logs.Errorf("consumer stopped. err: %v", err)
		}
		cancel()
	}

	eng.Stop()
	publisher.Wait()

	if journalWriter != nil {
		if err := journalWriter.Close(); err != nil {
			logs.Warnf("journal close. err: %v", err)
		}
	}
	if loaded.Journal.SnapshotPath != "" {
		snap := journal.TakeSnapshot(led)
		if err := journal.WriteSnapshot(loaded.Journal.SnapshotPath, snap); err != nil {
			logs.Warnf("snapshot write. err: %v", err)
		} else {
			logs.Infof("positions snapshotted. path: %s, count: %d", loaded.Journal.SnapshotPath, len(snap.Positions))
		}
	}
	if pg != nil {
		if err := pg.Close(); err != nil {
			logs.Warnf("postgres close. err: %v", err)
		}
	}

	snapshot := metrics.Snapshot()
	logs.Infof("metrics: ticks=%d signals=%d fills=%d cancels=%d emitted=%d",
		snapshot.TicksApplied, snapshot.SignalsAccepted, snapshot.Fills, snapshot.Cancels, snapshot.EventsEmitted)
	return nil
}
