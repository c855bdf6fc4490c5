package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"whaling/internal/core"
	"whaling/internal/debounce"
	applog "whaling/internal/log"
	"whaling/internal/metrics"
)

var (
	ErrUnknownYear   = errors.New("unknown year")
	ErrUnknownSource = errors.New("unknown selection source")
	ErrNoRecord      = errors.New("no record for location and year")
	ErrNoRecords     = errors.New("no records loaded")
)

// Config holds the selection defaults and the refresh timings.
type Config struct {
	InitialYear  int
	InitialDelay time.Duration // before the first selection is applied
	FadeOutDelay time.Duration // fade-out transition before the layer refresh
	RefreshDelay time.Duration // between hiding and showing the layer
	FadeInDelay  time.Duration // after the layer is shown again
}

func DefaultConfig() Config {
	return Config{
		InitialYear:  core.DefaultYear,
		InitialDelay: 250 * time.Millisecond,
		FadeOutDelay: 200 * time.Millisecond,
		RefreshDelay: 5 * time.Millisecond,
		FadeInDelay:  50 * time.Millisecond,
	}
}

// Collaborators groups the rendering ports driven by the synchronizer.
type Collaborators struct {
	Labels Labels
	Layer  MapLayer
	Chart  Chart
	Popup  Popup
}

// Synchronizer owns the selected year and the per-year totals. It borrows
// the record collection and never modifies it.
type Synchronizer struct {
	mu      sync.Mutex
	records []core.Record
	totals  core.YearTotals
	current int
	cfg     Config

	labels Labels
	layer  MapLayer
	chart  Chart
	popup  Popup

	sched   debounce.Scheduler
	fadeIn  *debounce.Debouncer
	metrics *metrics.Metrics
}

// Option customizes a Synchronizer.
type Option func(*Synchronizer)

// WithScheduler replaces the wall clock used for the refresh timers.
func WithScheduler(s debounce.Scheduler) Option {
	return func(sy *Synchronizer) { sy.sched = s }
}

// WithMetrics records selections on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(sy *Synchronizer) { sy.metrics = m }
}

// NewSynchronizer precomputes the year totals for records.
func NewSynchronizer(records []core.Record, c Collaborators, cfg Config, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		records: records,
		totals:  core.BuildYearTotals(records),
		current: cfg.InitialYear,
		cfg:     cfg,
		labels:  c.Labels,
		layer:   c.Layer,
		chart:   c.Chart,
		popup:   c.Popup,
		sched:   debounce.RealClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fadeIn = debounce.New(s.sched)
	return s
}

// Totals returns the precomputed per-year totals.
func (s *Synchronizer) Totals() core.YearTotals {
	return s.totals
}

// Records returns the record collection. Callers must not modify it.
func (s *Synchronizer) Records() []core.Record {
	return s.records
}

// CurrentYear returns the selected year.
func (s *Synchronizer) CurrentYear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Dispatch applies a YearSelected message. It is the single entry point for
// the slider, both charts and remote controllers.
func (s *Synchronizer) Dispatch(ctx context.Context, msg core.YearSelected) error {
	if !msg.Source.Valid() {
		s.metrics.ObserveRejected("unknown_source")
		return fmt.Errorf("%w: %q", ErrUnknownSource, msg.Source)
	}
	start := time.Now()
	if err := s.SetYear(ctx, msg.Year); err != nil {
		s.metrics.ObserveRejected("unknown_year")
		fields := applog.NewFields().
			WithComponent(applog.ComponentView).
			WithSelection(msg.Year, string(msg.Source)).
			WithError(err)
		slog.WarnContext(ctx, "Year selection rejected", fields.ToSlice()...)
		return err
	}
	s.metrics.ObserveSelection(string(msg.Source), time.Since(start))
	slog.DebugContext(ctx, "Year selected",
		applog.FieldComponent, applog.ComponentView,
		applog.FieldYear, msg.Year,
		applog.FieldSource, msg.Source)
	return nil
}

// SetYear moves every collaborator to year. A year without records is
// rejected with ErrUnknownYear and leaves the view untouched.
func (s *Synchronizer) SetYear(ctx context.Context, year int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, ok := s.totals.Lookup(year)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownYear, year)
	}
	s.current = year

	s.labels.SetYearLabel(year)
	s.labels.SetTotalLabel(core.FormatTotal(total.WhaleTotal))

	s.layer.SetFade(FadeOut, year)
	for _, r := range s.records {
		s.layer.SetMarkerVisible(r.Seq, r.Year == year)
	}
	s.scheduleRefresh(year)

	s.chart.Select(s.totals.Index(year))

	if loc, open := s.popup.Selected(); open {
		if r, found := core.FindRecord(s.records, loc, year); found {
			s.popup.Open(r)
		} else {
			s.popup.Close()
		}
	}
	return nil
}

// scheduleRefresh waits for the fade-out, redraws the layer by hiding and
// showing it, then fades the markers back in. Only the fade-in is replaced
// by a newer selection; the hide/show toggles of earlier selections still
// run. Every step takes s.mu so it never lands inside another SetYear.
func (s *Synchronizer) scheduleRefresh(year int) {
	debounce.Chain(s.sched,
		debounce.Step{Delay: s.cfg.FadeOutDelay, Fn: func() { s.locked(func() { s.layer.SetLayerVisible(false) }) }},
		debounce.Step{Delay: s.cfg.RefreshDelay, Fn: func() {
			s.locked(func() {
				s.layer.SetLayerVisible(true)
				s.fadeIn.Schedule(s.cfg.FadeInDelay, func() {
					s.locked(func() { s.layer.SetFade(FadeIn, year) })
				})
			})
		}},
	)
}

func (s *Synchronizer) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// OpenPopup opens the detail popup for location at the selected year.
func (s *Synchronizer) OpenPopup(ctx context.Context, location string) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := core.FindRecord(s.records, location, s.current)
	if !ok {
		return core.Record{}, fmt.Errorf("%w: %s/%d", ErrNoRecord, location, s.current)
	}
	s.popup.Open(r)
	slog.DebugContext(ctx, "Popup opened",
		applog.FieldComponent, applog.ComponentView,
		applog.FieldLocation, location,
		applog.FieldYear, s.current)
	return r, nil
}

// ClosePopup closes the detail popup.
func (s *Synchronizer) ClosePopup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popup.Close()
}

// Start applies the initial selection after the configured delay. When the
// configured year has no records the most recent year is used instead.
func (s *Synchronizer) Start(ctx context.Context) error {
	first, last, ok := s.totals.Bounds()
	if !ok {
		return ErrNoRecords
	}
	year := s.cfg.InitialYear
	if _, found := s.totals.Lookup(year); !found {
		slog.WarnContext(ctx, "Initial year has no records, using latest year",
			applog.FieldComponent, applog.ComponentView,
			"configured", year,
			"first", first,
			"last", last)
		year = last
	}
	s.sched.AfterFunc(s.cfg.InitialDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.Dispatch(ctx, core.YearSelected{Year: year, Source: core.SourceStartup}); err != nil {
			slog.ErrorContext(ctx, "Initial year selection failed",
				applog.FieldComponent, applog.ComponentView,
				applog.FieldError, err)
		}
	})
	return nil
}

// Stop cancels the pending fade-in.
func (s *Synchronizer) Stop() {
	s.fadeIn.Cancel()
}
