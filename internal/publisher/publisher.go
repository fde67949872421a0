package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/influxdb"
)

// Default intervals, used when Options leaves them at zero.
const (
	defaultPollInterval      = 300 * time.Second
	defaultRepublishInterval = 200 * time.Millisecond

	// livePushTimeout bounds one Grafana Live push.
	livePushTimeout = 5 * time.Second
)

// EventReadingUpdated is the event channel for changed current readings.
const EventReadingUpdated = "reading.updated"

// Source is the device state the publisher drains.
// This interface is satisfied by *device.Registry.
type Source interface {
	// Flush returns and resets every dirty record.
	Flush() []device.Snapshot

	// TakeChanged returns every record with an unpublished current reading.
	TakeChanged() []device.Snapshot

	// Snapshots returns every record.
	Snapshots() []device.Snapshot
}

// AggregateSink receives the aggregated time-series points.
// This interface is satisfied by *influxdb.Client.
type AggregateSink interface {
	// WriteReading queues one device's fields. Writes are asynchronous.
	WriteReading(label string, fields map[string]any, t time.Time)

	// Flush sends the queued points.
	Flush()
}

// CurrentSink receives the per-device current-reading republish.
// This interface is satisfied by *mqtt.Client.
type CurrentSink interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// LiveSink receives Grafana Live frames.
// This interface is satisfied by *live.Client.
type LiveSink interface {
	Push(ctx context.Context, lines []string) error
}

// EventSink receives per-device update events.
// This interface is satisfied by *api.Hub.
type EventSink interface {
	Broadcast(channel string, payload any)
}

// Logger defines the logging interface used by the publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Publisher. Every sink is optional; a nil sink is
// skipped.
type Options struct {
	Source Source

	Aggregates AggregateSink
	Current    CurrentSink
	Live       LiveSink
	Events     EventSink

	// Layout names the measurement and tag of aggregate points. It is only
	// used to render dry-run output; the sink applies its own layout.
	Layout influxdb.Layout

	// PollInterval is the aggregate flush period.
	PollInterval time.Duration

	// RepublishInterval is the current-reading check period.
	RepublishInterval time.Duration

	// RepublishPrefix is the MQTT topic prefix. Empty disables republish.
	RepublishPrefix string

	// RepublishMeasurement prefixes the "name" field of the republish body.
	RepublishMeasurement string

	RepublishQoS    byte
	RepublishRetain bool

	// LiveMeasurement is the Grafana Live measurement name.
	LiveMeasurement string

	// DryRunCycles > 0 prints every payload to Output instead of sending
	// it, and stops Run after that many flush cycles.
	DryRunCycles int

	// Output receives dry-run text. Defaults to os.Stdout.
	Output io.Writer

	Logger Logger
}

// Stats counts what the publisher has sent.
type Stats struct {
	FlushCycles   uint64 `json:"flush_cycles"`
	PointsWritten uint64 `json:"points_written"`
	Republished   uint64 `json:"republished"`
	RepublishErrs uint64 `json:"republish_errors"`
	LivePushes    uint64 `json:"live_pushes"`
	LiveErrs      uint64 `json:"live_errors"`
}

// Publisher drains the registry to the configured sinks.
//
// Two loops run on independent tickers: the aggregate flush on
// PollInterval and the current-reading republish on RepublishInterval.
// They share nothing but the Source, whose methods are individually
// atomic.
//
// Thread Safety: Run may only be called once. Stats is safe for concurrent use.
type Publisher struct {
	opts   Options
	logger Logger
	out    io.Writer
	now    func() time.Time

	// dryRunLeft counts down flush cycles in dry-run mode.
	dryRunLeft int

	flushCycles   atomic.Uint64
	pointsWritten atomic.Uint64
	republished   atomic.Uint64
	republishErrs atomic.Uint64
	livePushes    atomic.Uint64
	liveErrs      atomic.Uint64

	runOnce sync.Once
}

// New creates a publisher. Call Run to start it.
func New(opts Options) (*Publisher, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.RepublishInterval <= 0 {
		opts.RepublishInterval = defaultRepublishInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return &Publisher{
		opts:       opts,
		logger:     logger,
		out:        out,
		now:        time.Now,
		dryRunLeft: opts.DryRunCycles,
	}, nil
}

// DryRun reports whether payloads are printed instead of sent.
func (p *Publisher) DryRun() bool {
	return p.opts.DryRunCycles > 0
}

// Run starts both loops and blocks until ctx is cancelled or, in dry-run
// mode, the last cycle has been printed.
//
// On cancellation the pending aggregates are flushed one final time so a
// restart does not lose a partial poll interval.
func (p *Publisher) Run(ctx context.Context) error {
	started := false
	p.runOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("publisher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.logger.Info("publisher started",
		"poll_interval", p.opts.PollInterval,
		"republish_interval", p.opts.RepublishInterval,
		"dryrun_cycles", p.opts.DryRunCycles,
	)

	var wg sync.WaitGroup
	wg.Add(2) //nolint:mnd // flush and republish loops
	go func() {
		defer wg.Done()
		p.flushLoop(runCtx, cancel)
	}()
	go func() {
		defer wg.Done()
		p.republishLoop(runCtx)
	}()
	wg.Wait()

	if !p.DryRun() {
		p.flushOnce()
	}
	p.logger.Info("publisher stopped", "stats", p.Stats())
	return nil
}

// flushLoop runs the aggregate flush. In dry-run mode it cancels the run
// once the cycle budget is spent.
func (p *Publisher) flushLoop(ctx context.Context, stop context.CancelFunc) {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flushOnce()
			if p.DryRun() {
				p.dryRunLeft--
				if p.dryRunLeft <= 0 {
					p.logger.Info("dry run complete", "cycles", p.opts.DryRunCycles)
					stop()
					return
				}
			}
		}
	}
}

// republishLoop runs the current-reading republish.
func (p *Publisher) republishLoop(ctx context.Context) {
	ticker := time.NewTicker(p.opts.RepublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.republishOnce(ctx)
		}
	}
}

// Stats returns the publisher counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		FlushCycles:   p.flushCycles.Load(),
		PointsWritten: p.pointsWritten.Load(),
		Republished:   p.republished.Load(),
		RepublishErrs: p.republishErrs.Load(),
		LivePushes:    p.livePushes.Load(),
		LiveErrs:      p.liveErrs.Load(),
	}
}
