package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/project-tktt/request-relay/internal/config"
	"github.com/project-tktt/request-relay/internal/dispatch"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/project-tktt/request-relay/internal/trigger"
	"github.com/rs/zerolog"
)

const usage = `usage: relay <command> [flags]

commands:
  manual   scan the page once and report sent/total
  auto     scan when the auto-scrape preference is on (repeats with AUTO_INTERVAL)
  status   check the collector
  prefs    show or set the auto-scrape preference
`

func main() {
	cfg := config.Load()
	logger := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], cfg, logger, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Error().Err(err).Msg("relay failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg *config.Config, logger zerolog.Logger, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return flag.ErrHelp
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "manual":
		return runManual(ctx, rest, cfg, logger, out)
	case "auto":
		return runAuto(ctx, rest, cfg, logger)
	case "status":
		return runStatus(ctx, rest, cfg, out)
	case "prefs":
		return runPrefs(ctx, rest, cfg, logger, out)
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// sourceFlags are shared by manual and auto
type sourceFlags struct {
	file string
	url  string
	sink string
}

func (f *sourceFlags) register(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&f.file, "file", "", "scan a saved HTML page instead of fetching")
	fs.StringVar(&f.url, "url", cfg.Relay.PageURL, "listing page to fetch")
	fs.StringVar(&f.sink, "sink", "http", "delivery target: http or queue")
}

func runManual(ctx context.Context, args []string, cfg *config.Config, logger zerolog.Logger, out io.Writer) error {
	fs := flag.NewFlagSet("manual", flag.ContinueOnError)
	var src sourceFlags
	src.register(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := buildPipeline(ctx, cfg, src, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	res := deps.pipeline.RunManual(ctx, deps.loader)
	fmt.Fprintln(out, res.Feedback.Message)
	return res.Err
}

func runAuto(ctx context.Context, args []string, cfg *config.Config, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("auto", flag.ContinueOnError)
	var src sourceFlags
	src.register(fs, cfg)
	interval := fs.Duration("interval", cfg.Relay.AutoInterval, "repeat the cycle this often; 0 runs once")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := buildPipeline(ctx, cfg, src, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	prefs := openPreferences(ctx, cfg, deps, logger)
	runAutoScheduler(ctx, deps, prefs, *interval, logger)
	return nil
}

// runAutoScheduler runs the unsupervised cycle now and then on every tick
func runAutoScheduler(ctx context.Context, deps *relayDeps, prefs trigger.PreferenceStore, interval time.Duration, logger zerolog.Logger) {
	p := deps.pipeline

	// Run immediately on startup
	p.RunAuto(ctx, prefs, deps.loader)
	if interval <= 0 {
		return
	}

	logger.Info().Dur("interval", interval).Msg("auto scheduler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("auto scheduler stopping")
			return
		case <-ticker.C:
			p.RunAuto(ctx, prefs, deps.loader)
		}
	}
}

func runStatus(ctx context.Context, args []string, cfg *config.Config, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	endpoint := fs.String("url", cfg.Relay.StatusURL, "collector status endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := dispatch.NewStatusClient(*endpoint, 0).Check(ctx)
	fmt.Fprintln(out, dispatch.Describe(st, err))
	return nil
}

func runPrefs(ctx context.Context, args []string, cfg *config.Config, logger zerolog.Logger, out io.Writer) error {
	fs := flag.NewFlagSet("prefs", flag.ContinueOnError)
	set := fs.String("auto", "", "set auto scrape: on or off")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rdb, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()
	prefs := trigger.NewRedisPreferences(rdb, cfg.Redis.PrefsKey)

	switch *set {
	case "":
	case "on", "true", "1":
		if err := prefs.Set(ctx, trigger.AutoScrapeKey, true); err != nil {
			return err
		}
	case "off", "false", "0":
		if err := prefs.Set(ctx, trigger.AutoScrapeKey, false); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid -auto value %q", *set)
	}

	on, err := prefs.Get(ctx, trigger.AutoScrapeKey)
	if err != nil {
		return err
	}
	logger.Debug().Bool("auto_scrape", on).Msg("preference read")
	fmt.Fprintf(out, "auto scrape: %s\n", onOff(on))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
