package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabriziomello/pg-normalize-query/config"
	"github.com/fabriziomello/pg-normalize-query/dsn"
	"github.com/fabriziomello/pg-normalize-query/pgstat"
	"github.com/fabriziomello/pg-normalize-query/server"
	"github.com/fabriziomello/pg-normalize-query/stats"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("pg-normalized", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "pg-normalized: query normalization daemon\n\nUsage:\n  pg-normalized [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n  DATABASE_URL    DSN for pg_stat_activity sampling (read by default via -dsn-env)\n")
	}

	cfgPath := fs.String("config", "", "YAML config file")
	grpcAddr := fs.String("grpc", "", "gRPC server address (default from config, :9092)")
	dsnEnv := fs.String("dsn-env", "", "environment variable holding the DSN to sample (default DATABASE_URL)")
	interval := fs.Duration("interval", 0, "pg_stat_activity sampling interval (default 1s)")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("pg-normalized %s\n", version)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if *grpcAddr != "" {
		cfg.Daemon.GRPC = *grpcAddr
	}
	if *dsnEnv != "" {
		cfg.Daemon.DSNEnv = *dsnEnv
	}
	if *interval > 0 {
		cfg.Daemon.Interval = config.Duration(*interval)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	norm, err := cfg.Normalizer()
	if err != nil {
		return err
	}

	// Sampler (optional)
	var (
		agg     *stats.Aggregator
		sampler *pgstat.Sampler
	)
	if raw := os.Getenv(cfg.Daemon.DSNEnv); raw != "" {
		db, err := dsn.Open(raw)
		if err != nil {
			return fmt.Errorf("open db for sampling: %w", err)
		}
		defer func() { _ = db.Close() }()
		agg = stats.NewAggregator(norm)
		sampler = pgstat.NewSampler(db)
		log.Printf("sampling enabled every %s", time.Duration(cfg.Daemon.Interval))
	} else {
		log.Printf("sampling disabled (%s not set)", cfg.Daemon.DSNEnv)
	}

	// gRPC server
	var lc net.ListenConfig
	grpcLis, err := lc.Listen(ctx, "tcp", cfg.Daemon.GRPC)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.Daemon.GRPC, err)
	}
	srv := server.New(norm, agg)
	go func() {
		log.Printf("gRPC server listening on %s", cfg.Daemon.GRPC)
		if err := srv.Serve(grpcLis); err != nil {
			log.Printf("grpc serve: %v", err)
		}
	}()
	defer srv.GracefulStop()

	if sampler == nil {
		<-ctx.Done()
		return nil
	}

	b := cfg.Daemon.Burst
	burst := stats.NewBurst(b.Threshold, time.Duration(b.Window), time.Duration(b.Cooldown))
	step := time.Duration(cfg.Daemon.Interval)

	err = sampler.Run(ctx, step, func(snap *pgstat.Snapshot) {
		observe(log.Default(), snap, agg, burst, step)
	}, func(err error) {
		log.Printf("sample: %v", err)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logTop(agg, cfg.Daemon.Top)
	return nil
}

// observe charges each active statement with one sampling interval. Log
// lines carry the snapshot ID so they can be matched with sample errors.
func observe(logger *log.Logger, snap *pgstat.Snapshot, agg *stats.Aggregator, burst *stats.Burst, step time.Duration) {
	for _, a := range snap.Activities {
		nq, err := agg.Add(a.Query, step)
		if err != nil {
			logger.Printf("sample %s: pid %d: %v", snap.ID, a.PID, err)
			continue
		}
		if r := burst.Record(nq, snap.Taken); r.Alert != nil {
			logger.Printf("sample %s: burst: %d x %s (db=%s)", snap.ID, r.Alert.Count, r.Alert.Query, a.Database)
		}
	}
	burst.Prune(snap.Taken)
}

func logTop(agg *stats.Aggregator, n int) {
	rows := agg.Rows(stats.SortTotal)
	if len(rows) > n {
		rows = rows[:n]
	}
	for _, r := range rows {
		log.Printf("%016x count=%d total=%s p95=%s %s", r.Fingerprint, r.Count, r.Total, r.P95, r.Query)
	}
}
