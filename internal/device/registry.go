package device

import (
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// record is the mutable per-device state owned by the Registry.
type record struct {
	address ruuvi.Address
	raw     string

	current       ruuvi.Reading
	lastPublished ruuvi.Reading
	aggregate     Aggregate

	sequence    uint16
	hasSequence bool

	dirty       bool
	changed     bool // pending current-reading republish
	updateCount uint64

	firstSeen time.Time
	lastSeen  time.Time
}

// Registry holds one record per sensor and applies decoded samples to it.
//
// Samples are deduplicated by measurement sequence: a re-broadcast updates
// the current reading but is not folded into the aggregate again. Two
// independent consumers drain the registry: Flush for the aggregated
// time-series write and TakeChanged for the current-reading republish.
//
// A single mutex covers every record, so a flush always sees a consistent
// view. Decoding happens outside the lock.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.Mutex
	records map[ruuvi.Address]*record
	unknown *UnknownTracker
	names   *NameTable
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry that resolves labels through names.
// A nil names table is treated as empty.
func NewRegistry(names *NameTable) *Registry {
	if names == nil {
		names = NewNameTable()
	}
	return &Registry{
		records: make(map[ruuvi.Address]*record),
		unknown: NewUnknownTracker(),
		names:   names,
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the registry. It may be called while
// samples are being applied.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Names returns the name table used for label resolution.
func (r *Registry) Names() *NameTable {
	return r.names
}

// DecodeAndApply decodes one advertisement and applies it.
//
// Parameters:
//   - payload: Raw advertisement hex text as relayed by the gateway
//   - rssi: Received signal strength in dBm, reported by the gateway
//
// Returns:
//   - error: The *ruuvi.DecodeError if the frame was rejected; the
//     registry is not touched in that case
func (r *Registry) DecodeAndApply(payload string, rssi int) error {
	adv, err := ruuvi.Decode(payload)
	if err != nil {
		return err
	}
	adv.Reading.RSSIDBm = rssi
	r.Apply(adv.Address, adv.Reading, payload)
	return nil
}

// Apply records one decoded sample for addr.
//
// The current reading and raw text are always replaced. The sample is
// folded into the aggregate only if it is the first one for the device or
// its measurement sequence differs from the previous sample.
func (r *Registry) Apply(addr ruuvi.Address, reading ruuvi.Reading, raw string) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, named := r.names.Label(addr); !named && r.unknown.Record(addr) {
		r.logger.Info("unknown device", "address", addr.String(), "mac", addr.Colon())
	}

	rec, ok := r.records[addr]
	if !ok {
		rec = &record{address: addr, firstSeen: now}
		r.records[addr] = rec
		r.logger.Debug("device record created", "address", addr.String())
	}

	rec.current = reading
	rec.raw = raw
	rec.lastSeen = now

	if rec.hasSequence && rec.sequence == reading.MeasurementSequence {
		return
	}

	rec.updateCount++
	rec.dirty = true
	rec.changed = true
	rec.aggregate.fold(reading)
	rec.sequence = reading.MeasurementSequence
	rec.hasSequence = true
}

// Flush returns a snapshot of every dirty record, taken before the reset,
// and then resets each of them: the aggregate temperature and humidity
// restart, dirty is cleared and the current reading becomes the last
// published one.
//
// The result is sorted by address.
func (r *Registry) Flush() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Snapshot
	for _, rec := range r.records {
		if !rec.dirty {
			continue
		}
		out = append(out, r.snapshotLocked(rec))

		rec.aggregate.reset()
		rec.dirty = false
		rec.lastPublished = rec.current
	}

	sortSnapshots(out)
	if len(out) > 0 {
		r.logger.Debug("registry flushed", "records", len(out))
	}
	return out
}

// TakeChanged returns every record that received a new sample since the
// last call and clears that mark. Aggregates and the dirty flag are left
// alone, so this can run on its own schedule alongside Flush.
//
// The result is sorted by address.
func (r *Registry) TakeChanged() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Snapshot
	for _, rec := range r.records {
		if !rec.changed {
			continue
		}
		out = append(out, r.snapshotLocked(rec))
		rec.changed = false
	}

	sortSnapshots(out)
	return out
}

// Snapshot returns a copy of the record for addr.
func (r *Registry) Snapshot(addr ruuvi.Address) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[addr]
	if !ok {
		return Snapshot{}, ErrDeviceNotFound
	}
	return r.snapshotLocked(rec), nil
}

// Snapshots returns a copy of every record, sorted by address.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, r.snapshotLocked(rec))
	}
	sortSnapshots(out)
	return out
}

// UnknownDevices returns the addresses seen without a name mapping, in
// first-seen order.
func (r *Registry) UnknownDevices() []ruuvi.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unknown.Addresses()
}

// Count returns the number of device records.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// snapshotLocked copies rec. Caller must hold r.mu.
func (r *Registry) snapshotLocked(rec *record) Snapshot {
	label, named := r.names.Label(rec.address)
	if !named {
		label = rec.address.String()
	}
	return Snapshot{
		Address:       rec.address,
		Label:         label,
		Named:         named,
		Raw:           rec.raw,
		Current:       rec.current,
		LastPublished: rec.lastPublished,
		Aggregate:     rec.aggregate,
		Dirty:         rec.dirty,
		UpdateCount:   rec.updateCount,
		FirstSeen:     rec.firstSeen,
		LastSeen:      rec.lastSeen,
	}
}

func sortSnapshots(s []Snapshot) {
	sort.Slice(s, func(i, j int) bool { return s[i].Address < s[j].Address })
}
