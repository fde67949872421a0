package publisher

import (
	"fmt"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/influxdb"
)

// flushOnce drains the dirty records and writes one point per device that
// has a temperature. In dry-run mode the line protocol is printed instead.
//
// Without an aggregate sink the registry is left alone: a flush resets the
// aggregates that the Grafana Live frame reads.
func (p *Publisher) flushOnce() {
	if p.opts.Aggregates == nil && !p.DryRun() {
		return
	}

	snaps := p.opts.Source.Flush()
	p.flushCycles.Add(1)

	now := p.now()
	written := 0
	for _, s := range snaps {
		fields, ok := AggregateFields(s.Aggregate)
		if !ok {
			p.logger.Debug("skipping device without temperature", "device", s.Label)
			continue
		}

		if p.DryRun() {
			line := influxdb.LineProtocol(p.opts.Layout.Point(s.Label, fields, now))
			fmt.Fprintf(p.out, "Dryrun InfluxDB - %s\n", line)
		} else {
			p.opts.Aggregates.WriteReading(s.Label, fields, now)
		}
		written++
	}

	if written > 0 && !p.DryRun() {
		p.opts.Aggregates.Flush()
	}
	p.pointsWritten.Add(uint64(written)) // #nosec G115 -- non-negative count

	p.logger.Debug("aggregate flush",
		"dirty", len(snaps),
		"written", written,
	)
}
