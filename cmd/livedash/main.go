package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/livedash/pkg/aggregate"
	"github.com/umputun/livedash/pkg/classify"
	"github.com/umputun/livedash/pkg/config"
	"github.com/umputun/livedash/pkg/domain"
	"github.com/umputun/livedash/pkg/identity"
	"github.com/umputun/livedash/pkg/session"
	"github.com/umputun/livedash/pkg/store"
	"github.com/umputun/livedash/server"
)

// Opts with all CLI options
type Opts struct {
	Config  string `short:"c" long:"config" env:"CONFIG" description:"configuration file, built-in sources if not set"`
	Listen  string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`
	DB      string `long:"db" env:"DB" description:"database dsn, overrides config"`
	Seed    string `long:"seed" env:"SEED" description:"yaml file with records imported on start"`
	BaseURL string `long:"base-url" env:"BASE_URL" description:"public url used for rss links"`

	IdentityEmail string `long:"identity-email" env:"IDENTITY_EMAIL" description:"email of the initial identity"`
	IdentityID    string `long:"identity-id" env:"IDENTITY_ID" description:"id of the initial identity"`

	// common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	SetupLog(opts.Debug)

	log.Printf("[INFO] starting livedash version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// run wires store, engine and server and blocks until ctx is done or any of them fails
func run(ctx context.Context, opts Opts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.New(ctx, store.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		PollInterval:    cfg.Store.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			lgr.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	if opts.Seed != "" {
		n, err := st.LoadSeed(ctx, opts.Seed)
		if err != nil {
			return fmt.Errorf("failed to load seed: %w", err)
		}
		lgr.Printf("[INFO] imported %d records from %s", n, opts.Seed)
	}

	agg := aggregate.New(cfg.AggregateConfig(), classify.New(cfg.ClassifyConfig()))
	mgr := session.New(st, agg, cfg.RetryOptions())
	mgr.OnUpdate(func(v domain.View) {
		lgr.Printf("[DEBUG] view revision %d, state %s, feed %d, recent %d, errors %d",
			v.Revision, v.State, len(v.Feed), len(v.RecentActivity), len(v.Errors))
	})

	holder := identity.NewHolder(initialIdentity(opts))
	stopFollow := mgr.Follow(holder)
	defer stopFollow()

	srv := server.New(server.Params{
		Config:     cfg,
		Dashboard:  mgr,
		Identities: holder,
		Records:    st,
		BaseURL:    opts.BaseURL,
		Version:    revision,
		Debug:      opts.Debug,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := mgr.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("session manager failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// loadConfig reads the config file or falls back to built-in sources, then applies cli overrides
func loadConfig(opts Opts) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	if opts.DB != "" {
		cfg.Database.DSN = opts.DB
	}
	return cfg, nil
}

func initialIdentity(opts Opts) *domain.Identity {
	email, id := strings.TrimSpace(opts.IdentityEmail), strings.TrimSpace(opts.IdentityID)
	if email == "" && id == "" {
		return nil
	}
	return &domain.Identity{ID: id, Email: email}
}

// SetupLog configures lgr and the std logger
func SetupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
