package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/letter4ceo/morning-letter/pkg/ai"
	"github.com/letter4ceo/morning-letter/pkg/config"
	"github.com/letter4ceo/morning-letter/pkg/feed"
	"github.com/letter4ceo/morning-letter/pkg/letter"
	"github.com/letter4ceo/morning-letter/pkg/repository"
	"github.com/letter4ceo/morning-letter/pkg/scheduler"
	"github.com/letter4ceo/morning-letter/pkg/stibee"
	"github.com/letter4ceo/morning-letter/server"
)

// Opts with all CLI options
type Opts struct {
	Config  string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`
	NoSched bool   `long:"no-scheduler" env:"NO_SCHEDULER" description:"disable the periodic scheduler"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	// .env is optional, real deployments use actual environment variables
	_ = godotenv.Load()

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

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Fatalf("[ERROR] failed to load config: %v", err)
	}

	setupLog(opts.Debug, opts.NoColor, secrets(cfg)...)
	log.Printf("[INFO] starting morning-letter version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
	log.Print("[INFO] shutdown complete")
}

// run wires the pipeline together and blocks until the context is cancelled
func run(ctx context.Context, cfg *config.Config, opts Opts) error {
	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer func() {
		if closeErr := repos.Close(); closeErr != nil {
			log.Printf("[WARN] failed to close database: %v", closeErr)
		}
	}()

	fetcher := feed.NewFetcher(cfg.GetIngestConfig(), repos.News)
	generator := ai.NewGenerator(cfg.GetAIConfig(), repos.News)
	mailer := stibee.NewClient(cfg.GetStibeeConfig())

	letterSvc := letter.NewService(repos.Newsletter, repos.News)
	dispatcher := letter.NewDispatcher(repos.Newsletter, repos.News, repos.Subscriber, mailer, cfg.GetDispatchConfig())

	ingestCfg := cfg.GetIngestConfig()
	sched := scheduler.NewScheduler(cfg.GetDispatchConfig().TickInterval,
		scheduler.Job{
			Name: "feed-fetch",
			When: scheduler.AtHour(ingestCfg.FetchHour),
			Run: func(ctx context.Context, _ time.Time) error {
				result := fetcher.FetchAll(ctx)
				if len(result.Errors) > 0 {
					return fmt.Errorf("%d categories failed", len(result.Errors))
				}
				return nil
			},
		},
		scheduler.Job{
			Name: "dispatch-due",
			When: scheduler.EveryTick(),
			Run: func(ctx context.Context, now time.Time) error {
				_, err := dispatcher.ProcessDue(ctx, now)
				return err
			},
		},
	)

	if !opts.NoSched {
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv := server.New(cfg, fetcher, repos.News, letterSvc, dispatcher,
		repos.Subscriber, generator, sched, mailer, revision, opts.Debug)
	return srv.Run(ctx)
}

// secrets collects the credential values to mask in log output
func secrets(cfg *config.Config) []string {
	var res []string
	for _, s := range []string{cfg.AI.Gemini.APIKey, cfg.AI.OpenAI.APIKey, cfg.AI.Claude.APIKey, cfg.Stibee.APIKey} {
		if s != "" {
			res = append(res, s)
		}
	}
	return res
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.StackTraceOnError)
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
