package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/live"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/mqtt"
)

// republishOnce sends every changed current reading to MQTT and the event
// sink, and refreshes the Grafana Live frame when anything changed.
func (p *Publisher) republishOnce(ctx context.Context) {
	changed := p.opts.Source.TakeChanged()
	if len(changed) == 0 {
		return
	}

	for _, s := range changed {
		p.republishDevice(s)
		if p.opts.Events != nil {
			p.opts.Events.Broadcast(EventReadingUpdated, s)
		}
	}

	p.pushLive(ctx)
}

// republishDevice publishes one device's current reading.
func (p *Publisher) republishDevice(s device.Snapshot) {
	if p.opts.RepublishPrefix == "" {
		return
	}

	body := CurrentBody(p.opts.RepublishMeasurement, s.Label, s.Current)
	topic := (mqtt.Topics{}).Republish(p.opts.RepublishPrefix, s.Label)

	if p.DryRun() {
		fmt.Fprintf(p.out, "Dryrun MQTT - %s = %s\n", topic, body)
		return
	}
	if p.opts.Current == nil {
		return
	}

	if err := p.opts.Current.Publish(topic, body, p.opts.RepublishQoS, p.opts.RepublishRetain); err != nil {
		p.republishErrs.Add(1)
		p.logger.Warn("republish failed", "topic", topic, "error", err)
		return
	}
	p.republished.Add(1)
}

// pushLive sends one frame covering every device with a temperature.
func (p *Publisher) pushLive(ctx context.Context) {
	if p.opts.Live == nil && !p.DryRun() {
		return
	}

	fields := LiveFields(p.opts.Source.Snapshots())
	if len(fields) == 0 {
		return
	}
	line := live.FormatLine(p.opts.LiveMeasurement, fields, p.now())

	if p.DryRun() {
		fmt.Fprintf(p.out, "Dryrun Grafana - %s\n", line)
		return
	}

	pushCtx, cancel := context.WithTimeout(ctx, livePushTimeout)
	defer cancel()

	if err := p.opts.Live.Push(pushCtx, []string{line}); err != nil {
		p.liveErrs.Add(1)
		p.logger.Warn("grafana live push failed", "error", err)
		return
	}
	p.livePushes.Add(1)
	p.logger.Debug("grafana live push", "fields", len(fields), "bytes", len(line))
}

// DescribeSinks lists the active sinks for the startup log.
func (p *Publisher) DescribeSinks() string {
	if p.DryRun() {
		return "dryrun"
	}
	var sinks []string
	if p.opts.Aggregates != nil {
		sinks = append(sinks, "influxdb")
	}
	if p.opts.Current != nil && p.opts.RepublishPrefix != "" {
		sinks = append(sinks, "mqtt")
	}
	if p.opts.Live != nil {
		sinks = append(sinks, "grafana")
	}
	if p.opts.Events != nil {
		sinks = append(sinks, "websocket")
	}
	if len(sinks) == 0 {
		return "none"
	}
	return strings.Join(sinks, ",")
}
