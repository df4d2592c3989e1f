package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fabriziomello/pg-normalize-query/config"
	"github.com/fabriziomello/pg-normalize-query/dsn"
	"github.com/fabriziomello/pg-normalize-query/explain"
	"github.com/fabriziomello/pg-normalize-query/highlight"
	"github.com/fabriziomello/pg-normalize-query/query"
	"github.com/fabriziomello/pg-normalize-query/server"
	"github.com/fabriziomello/pg-normalize-query/stats"
)

var version = "dev"

type options struct {
	configPath  string
	fallback    string
	maxDepth    int
	fingerprint bool
	literals    bool
	color       bool
	explain     bool
	verbose     bool
	remote      string
	top         int
	sort        string
	reset       bool
}

func (o options) validate() error {
	switch {
	case o.remote != "" && (o.literals || o.explain):
		return errors.New("-literals and -explain cannot be used with -remote")
	case o.top > 0 && o.remote == "":
		return errors.New("-top requires -remote")
	case (o.sort != "" || o.reset) && o.top == 0:
		return errors.New("-sort and -reset require -top")
	case o.verbose && !o.explain:
		return errors.New("-verbose requires -explain")
	}
	if o.sort != "" {
		if _, err := stats.ParseSortMode(o.sort); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	fs := flag.NewFlagSet("pg-normalize", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "pg-normalize: replace constants in PostgreSQL queries with $n placeholders\n\nUsage:\n  pg-normalize [flags] [query]\n\nReads the query from stdin when no argument is given.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.StringVar(&opts.fallback, "fallback", "", "on syntax errors: none, raw, redact, lexical")
	fs.IntVar(&opts.maxDepth, "max-depth", 0, "parse tree nesting limit")
	fs.BoolVar(&opts.fingerprint, "fingerprint", false, "print the fingerprint before the query")
	fs.BoolVar(&opts.literals, "literals", false, "list the replaced literals")
	fs.BoolVar(&opts.color, "color", false, "highlight the output")
	fs.BoolVar(&opts.explain, "explain", false, "print the generic plan of the normalized query (PostgreSQL 16+, DSN from $DATABASE_URL)")
	fs.BoolVar(&opts.verbose, "verbose", false, "with -explain, include output columns in the plan")
	fs.StringVar(&opts.remote, "remote", "", "pg-normalized gRPC address to use instead of the local engine")
	fs.IntVar(&opts.top, "top", 0, "with -remote, print the n most expensive sampled queries")
	fs.StringVar(&opts.sort, "sort", "", "with -top, order by total, count, avg or p95 (default total)")
	fs.BoolVar(&opts.reset, "reset", false, "with -top, start a new collection period on the daemon")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("pg-normalize %s\n", version)
		return
	}

	var in io.Reader = os.Stdin
	if fs.NArg() > 0 {
		in = strings.NewReader(strings.Join(fs.Args(), " "))
	}

	if err := run(context.Background(), opts, in, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pg-normalize: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.fallback != "" {
		cfg.Fallback = opts.fallback
	}
	if opts.maxDepth > 0 {
		cfg.MaxDepth = opts.maxDepth
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.remote != "" {
		return runRemote(ctx, opts, in, out)
	}
	if opts.explain && os.Getenv(cfg.Daemon.DSNEnv) == "" {
		return fmt.Errorf("-explain requires %s", cfg.Daemon.DSNEnv)
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}
	sql := string(data)

	norm, err := cfg.Normalizer()
	if err != nil {
		return err
	}

	var fp uint64
	if opts.fingerprint {
		sql = query.TrimStatement(sql)
	}
	res, err := norm.Extract(sql)
	if err != nil {
		return err
	}
	normalized := res.Query
	if opts.fingerprint {
		fp = query.Hash(normalized)
	}
	printQuery(out, opts, fp, normalized)

	if opts.literals {
		for i, lit := range res.Literals {
			ph := fmt.Sprintf("$%d", res.HighestParam+i+1)
			if opts.color {
				ph = highlight.Placeholders(ph)
			}
			fmt.Fprintf(out, "%s\t%s\n", ph, lit)
		}
	}

	if opts.explain {
		return printPlan(ctx, out, opts, os.Getenv(cfg.Daemon.DSNEnv), normalized)
	}
	return nil
}

func printPlan(ctx context.Context, out io.Writer, opts options, raw, normalized string) error {
	db, err := dsn.Open(raw)
	if err != nil {
		return fmt.Errorf("open db for explain: %w", err)
	}
	c := explain.NewClient(db)
	defer func() { _ = c.Close() }()

	mode := explain.Generic
	if opts.verbose {
		mode = explain.GenericVerbose
	}
	res, err := c.Run(ctx, mode, normalized)
	if err != nil {
		return err
	}
	plan := res.Plan
	if opts.color {
		plan = highlight.Plan(plan)
	}
	fmt.Fprintln(out, plan)
	return nil
}

func runRemote(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	conn, err := grpc.NewClient(opts.remote, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect %s: %w", opts.remote, err)
	}
	defer func() { _ = conn.Close() }()
	c := server.NewClient(conn)

	if opts.top > 0 {
		mode, err := stats.ParseSortMode(cmp.Or(opts.sort, stats.SortTotal.String()))
		if err != nil {
			return err
		}
		rows, err := c.Top(ctx, server.TopOptions{Limit: opts.top, Sort: mode, Reset: opts.reset})
		if err != nil {
			return err
		}
		title := fmt.Sprintf("Top %d queries by %s", len(rows), mode)
		if opts.color {
			title = highlight.Header(title)
		}
		fmt.Fprintln(out, title)
		for _, r := range rows {
			fmt.Fprintf(out, "%016x\t%d\t%s\t%s\n", r.Fingerprint, r.Count, r.Total, colorize(opts, r.Query))
		}
		return nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}
	sql := string(data)
	if opts.fingerprint {
		sql = query.TrimStatement(sql)
	}

	normalized, err := c.Normalize(ctx, sql)
	if err != nil {
		return err
	}
	var fp uint64
	if opts.fingerprint {
		if fp, err = c.Fingerprint(ctx, sql); err != nil {
			return err
		}
	}
	printQuery(out, opts, fp, normalized)
	return nil
}

func printQuery(out io.Writer, opts options, fp uint64, normalized string) {
	if opts.fingerprint {
		fmt.Fprintf(out, "%016x\t", fp)
	}
	fmt.Fprintln(out, colorize(opts, normalized))
}

func colorize(opts options, s string) string {
	if !opts.color {
		return s
	}
	return highlight.SQL(s)
}
