// Package device tracks the state of every Ruuvi sensor the bridge hears.
//
// The package sits between the decoder (package ruuvi) and the publishers.
// It owns one record per hardware address and decides which samples are
// new, how they are summarised between flushes, and what name a device is
// published under.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────────┐
//	│                          device package                            │
//	│                                                                    │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌────────────────┐  │
//	│  │     Registry     │──▶│    NameTable     │   │ UnknownTracker │  │
//	│  │  (registry.go)   │   │   (names.go)     │   │  (unknown.go)  │  │
//	│  │                  │   │                  │   │                │  │
//	│  │ • Dedup by seq   │   │ • addr ⇄ label   │   │ • once per addr│  │
//	│  │ • Aggregation    │   │ • Startup load   │   │ • Diagnostics  │  │
//	│  │ • Flush / Take   │   └────────▲─────────┘   └────────────────┘  │
//	│  └──────────────────┘            │                                 │
//	│                        ┌─────────┴──────────┐                      │
//	│                        │ MappingRepository  │                      │
//	│                        │  (repository.go)   │                      │
//	│                        └────────────────────┘                      │
//	└────────────────────────────────────────────────────────────────────┘
//
// # Record Lifecycle
//
// A record is created by the first successfully decoded advertisement from
// an address and lives for the rest of the process. Every advertisement
// replaces the current reading. Only a sample with a new measurement
// sequence is folded into the aggregate:
//
//   - temperature: seeded by the first sample, then (agg + sample) / 2
//   - humidity: running maximum
//   - battery, RSSI: last value
//
// Flush hands the dirty records to the time-series writer and restarts
// their aggregates. TakeChanged hands newly sampled records to the
// current-reading republisher. The two run on different schedules and do
// not affect each other.
//
// # Usage
//
//	names := device.NewNameTable()
//	if err := names.AddMapping("AA:BB:CC:DD:EE:FF", "Kitchen"); err != nil {
//	    log.Warn("mapping rejected", "error", err)
//	}
//
//	registry := device.NewRegistry(names)
//	registry.SetLogger(log)
//
//	// From the transport
//	if err := registry.DecodeAndApply(payload, rssi); err != nil {
//	    log.Warn("advertisement rejected", "error", err)
//	}
//
//	// From the publisher
//	for _, s := range registry.Flush() {
//	    write(s.Label, s.Aggregate)
//	}
//
// # Thread Safety
//
// Registry is safe for concurrent use. One mutex covers all records, so a
// flush never observes a half-applied sample. Decoding runs before the
// lock is taken.
package device
