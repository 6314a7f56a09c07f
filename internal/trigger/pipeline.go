// Package trigger decides when the extract-and-dispatch cycle runs.
//
// The same pipeline has two operating modes. The supervised mode is started
// by an explicit user action, drives the Affordance through busy and back
// to idle, and reports the sent/total result. The unsupervised mode runs once
// per page load when the auto-scrape preference is on, after a settle delay,
// and discards its result.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/project-tktt/request-relay/internal/common/extractor"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/rs/zerolog"
)

// Mode names an operating mode of the pipeline.
type Mode string

const (
	ModeSupervised   Mode = "supervised"
	ModeUnsupervised Mode = "unsupervised"
)

// Feedback texts shown after a supervised run.
const (
	MsgNoJobs     = "No jobs found on page"
	MsgLoadFailed = "Could not load page"
)

// Extractor produces the records of one page.
type Extractor interface {
	ExtractFrom(ctx context.Context, loader extractor.DocumentLoader) ([]domain.JobRecord, error)
}

// Dispatcher delivers records and reports the aggregate outcome.
type Dispatcher interface {
	SendAll(ctx context.Context, records []domain.JobRecord) domain.DeliverySummary
}

// Config holds trigger timing
type Config struct {
	// Wait before an unsupervised scan so dynamic content can render
	SettleDelay time.Duration
	// How long the "no jobs" message stays up
	NoJobsTTL time.Duration
	// How long the sent/total message stays up
	ResultTTL time.Duration
}

// DefaultConfig returns the stock timings
func DefaultConfig() Config {
	return Config{
		SettleDelay: 3 * time.Second,
		NoJobsTTL:   3 * time.Second,
		ResultTTL:   5 * time.Second,
	}
}

// ManualResult is what a supervised run reports back
type ManualResult struct {
	Found    int
	Summary  domain.DeliverySummary
	Feedback domain.Feedback
	Err      error
}

// Pipeline wires one extractor to one dispatcher. It keeps no state between runs
// other than the affordance shown to the user.
type Pipeline struct {
	extractor  Extractor
	dispatcher Dispatcher
	affordance *domain.Affordance
	cfg        Config
	log        zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a pipeline. Zero timings fall back to DefaultConfig.
func NewPipeline(ext Extractor, disp Dispatcher, cfg Config, logger zerolog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if cfg.NoJobsTTL <= 0 {
		cfg.NoJobsTTL = def.NoJobsTTL
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = def.ResultTTL
	}
	return &Pipeline{
		extractor:  ext,
		dispatcher: disp,
		affordance: domain.NewAffordance(),
		cfg:        cfg,
		log:        logx.Component(logger, "trigger"),
		sleep:      wait,
	}
}

// Affordance exposes the interactive trigger state for rendering.
func (p *Pipeline) Affordance() *domain.Affordance {
	return p.affordance
}

// RunManual runs the supervised mode and reports its result.
func (p *Pipeline) RunManual(ctx context.Context, loader extractor.DocumentLoader) ManualResult {
	p.affordance.Busy()
	log := p.log.With().Str("mode", string(ModeSupervised)).Logger()

	records, err := p.extractor.ExtractFrom(ctx, loader)
	if err != nil {
		log.Error().Err(err).Msg("extraction failed")
		fb := p.affordance.Finish(MsgLoadFailed, domain.ToneError, p.cfg.NoJobsTTL)
		return ManualResult{Feedback: fb, Err: err}
	}

	if len(records) == 0 {
		log.Info().Str("page", loader.Name()).Msg("no jobs found")
		fb := p.affordance.Finish(MsgNoJobs, domain.ToneError, p.cfg.NoJobsTTL)
		return ManualResult{Feedback: fb}
	}

	summary := p.dispatcher.SendAll(ctx, records)
	msg := fmt.Sprintf("Sent %d/%d jobs to dashboard!", summary.Sent, summary.Total)
	fb := p.affordance.Finish(msg, domain.ToneSuccess, p.cfg.ResultTTL)

	log.Info().Int("sent", summary.Sent).Int("total", summary.Total).Msg("manual run finished")
	return ManualResult{Found: len(records), Summary: summary, Feedback: fb}
}

// RunAuto runs the unsupervised mode when the auto-scrape preference is on.
// It reports whether a cycle was started; the delivery result is not inspected.
func (p *Pipeline) RunAuto(ctx context.Context, prefs PreferenceStore, loader extractor.DocumentLoader) bool {
	log := p.log.With().Str("mode", string(ModeUnsupervised)).Logger()

	enabled, err := prefs.Get(ctx, AutoScrapeKey)
	if err != nil {
		log.Warn().Err(err).Msg("could not read preference, skipping")
		return false
	}
	if !enabled {
		log.Debug().Msg("auto scrape disabled")
		return false
	}

	if err := p.sleep(ctx, p.cfg.SettleDelay); err != nil {
		return false
	}

	records, err := p.extractor.ExtractFrom(ctx, loader)
	if err != nil {
		log.Error().Err(err).Msg("extraction failed")
		return true
	}
	if len(records) > 0 {
		p.dispatcher.SendAll(ctx, records)
	}
	return true
}

// Run dispatches to the named mode. prefs is only consulted by the
// unsupervised mode.
func (p *Pipeline) Run(ctx context.Context, mode Mode, prefs PreferenceStore, loader extractor.DocumentLoader) error {
	switch mode {
	case ModeSupervised:
		return p.RunManual(ctx, loader).Err
	case ModeUnsupervised:
		p.RunAuto(ctx, prefs, loader)
		return nil
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
