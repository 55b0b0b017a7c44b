// Package sampler implements the sampling loop: acquire a reading, classify
// it, then drive the persist, notify and upload channels once per interval.
//
// Cycle states:
//
//	Acquiring -> Evaluating -> Persisting -> Notifying (optional) -> Uploading -> Sleeping
//
// A recoverable acquisition failure skips straight to Sleeping. The three
// channels are attempted independently; a failure in one is logged and the
// next is still attempted. The loop ends only on cancellation or when the
// source reports acquisition_exhausted.
package sampler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"airwatch/internal/config"
	"airwatch/internal/evaluate"
	"airwatch/internal/metrics"
	"airwatch/internal/notify"
	"airwatch/internal/source"
	"airwatch/internal/state"
	"airwatch/internal/telemetry"
	"airwatch/internal/types"
)

// SettingsProvider returns the settings for the next cycle. Satisfied by
// *config.SettingsLoader.
type SettingsProvider interface {
	Current(ctx context.Context) *config.Settings
}

// Config holds the collaborators of a Loop. Source, Persister and Settings are
// required; the remaining fields have no-op or default fallbacks.
type Config struct {
	Device    string
	Interval  time.Duration
	Source    source.DataSource
	Settings  SettingsProvider
	Persister state.Persister
	Notifier  notify.Notifier
	Sink      telemetry.Sink
	Metrics   metrics.CycleMetrics
	Clock     types.Clock
	Logger    *slog.Logger
}

// Loop is the single sampling worker of a device.
type Loop struct {
	device    string
	interval  time.Duration
	source    source.DataSource
	settings  SettingsProvider
	persister state.Persister
	notifier  notify.Notifier
	sink      telemetry.Sink
	metrics   metrics.CycleMetrics
	clock     types.Clock
	logger    *slog.Logger

	newCycleID func() string
}

// New creates a Loop.
func New(cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = config.DefaultUpdateInterval
	}
	sink := cfg.Sink
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Loop{
		device:     cfg.Device,
		interval:   interval,
		source:     cfg.Source,
		settings:   cfg.Settings,
		persister:  cfg.Persister,
		notifier:   cfg.Notifier,
		sink:       sink,
		metrics:    m,
		clock:      clock,
		logger:     logger.With("component", "sampler", "device", cfg.Device),
		newCycleID: uuid.NewString,
	}
}

// Run executes cycles until ctx is cancelled or the source is exhausted.
// Both ends are normal terminations and return nil.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.InfoContext(ctx, "sampling loop started", "interval", l.interval.String())

	for {
		if ctx.Err() != nil {
			l.logger.InfoContext(ctx, "sampling loop stopped")
			return nil
		}

		if err := l.RunCycle(ctx); err != nil && types.IsFatal(err) {
			l.logger.ErrorContext(ctx, "data source exhausted, stopping sampling loop",
				"reason", string(types.CodeOf(err)),
				"error", err,
			)
			return nil
		}

		if !l.sleep(ctx) {
			l.logger.InfoContext(ctx, "sampling loop stopped")
			return nil
		}
	}
}

// RunCycle performs one cycle. It returns the acquisition error when the
// cycle was skipped and nil otherwise; channel failures are logged, counted
// and never returned.
func (l *Loop) RunCycle(ctx context.Context) error {
	start := l.clock.Now()
	cycleID := l.newCycleID()
	logger := l.logger.With("cycle_id", cycleID)
	ctx = types.WithLogger(types.WithCycleID(ctx, cycleID), logger)

	settings := l.settings.Current(ctx)
	if settings != nil && settings.UpdateInterval > 0 {
		l.setInterval(ctx, settings.Interval())
	}

	reading, err := l.source.Acquire(ctx)
	if err != nil {
		code := types.CodeOf(err)
		logger.WarnContext(ctx, "acquisition failed, skipping cycle",
			"component", code.Component(),
			"reason", string(code),
			"error", err,
		)
		l.metrics.RecordCycle(ctx, types.CycleAcquisitionFailed, l.clock.Now().Sub(start))
		return err
	}

	thresholds := types.NewThresholds(nil, nil, nil)
	if settings != nil {
		thresholds = settings.Thresholds()
	}
	classification := evaluate.Evaluate(reading, thresholds)

	logger.InfoContext(ctx, "reading classified",
		"co2", reading.CO2PPM,
		"temperature", reading.TemperatureC,
		"humidity", reading.HumidityPct,
		"data_source", reading.SourceLabel,
		"status", string(classification.Status),
		"warnings", classification.Warnings(),
	)

	l.persist(ctx, reading, classification)
	if classification.Escalated() {
		l.notify(ctx, settings, reading, classification)
	}
	l.upload(ctx, reading)

	if c, ok := l.source.(source.Committer); ok {
		if err := c.Commit(ctx); err != nil {
			l.channelFailed(ctx, types.ChannelPersist, "cursor commit failed", err)
		}
	}

	l.metrics.RecordCycle(ctx, types.CycleOK, l.clock.Now().Sub(start))
	return nil
}

func (l *Loop) persist(ctx context.Context, r types.Reading, c types.Classification) {
	record := types.NewPersistedState(l.device, r, c, l.clock.Now())
	if err := l.persister.Persist(ctx, record); err != nil {
		l.channelFailed(ctx, types.ChannelPersist, "state persist failed", err)
	}
}

func (l *Loop) notify(ctx context.Context, settings *config.Settings, r types.Reading, c types.Classification) {
	logger := types.LoggerFromContext(ctx, l.logger)
	if l.notifier == nil || settings == nil || !settings.Email.Enabled {
		logger.DebugContext(ctx, "alert not sent, email disabled")
		return
	}
	alert := notify.Alert{Device: l.device, Reading: r, Classification: c}
	if err := l.notifier.Notify(ctx, alert, settings.Email); err != nil {
		l.channelFailed(ctx, types.ChannelNotify, "alert delivery failed", err)
	}
}

func (l *Loop) upload(ctx context.Context, r types.Reading) {
	if err := l.sink.Upload(ctx, r); err != nil {
		l.channelFailed(ctx, types.ChannelUpload, "telemetry upload failed", err)
	}
}

func (l *Loop) channelFailed(ctx context.Context, channel types.Channel, msg string, err error) {
	code := types.CodeOf(err)
	types.LoggerFromContext(ctx, l.logger).ErrorContext(ctx, msg,
		"channel", string(channel),
		"component", code.Component(),
		"reason", string(code),
		"error", err,
	)
	l.metrics.RecordChannelFailure(ctx, channel)
}

// setInterval applies a reloaded update_interval to the following sleeps.
func (l *Loop) setInterval(ctx context.Context, interval time.Duration) {
	if interval == l.interval {
		return
	}
	types.LoggerFromContext(ctx, l.logger).InfoContext(ctx, "update interval changed",
		"from", l.interval.String(),
		"to", interval.String(),
	)
	l.interval = interval
}

// sleep waits one interval. It returns false when ctx was cancelled first.
func (l *Loop) sleep(ctx context.Context) bool {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
