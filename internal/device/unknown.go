package device

import "github.com/nerrad567/ruuvi-bridge/internal/ruuvi"

// UnknownTracker remembers addresses that were seen without a name mapping.
// Entries are never removed.
//
// UnknownTracker is not safe for concurrent use; the Registry guards it
// with its own lock.
type UnknownTracker struct {
	seen  map[ruuvi.Address]struct{}
	order []ruuvi.Address
}

// NewUnknownTracker creates an empty tracker.
func NewUnknownTracker() *UnknownTracker {
	return &UnknownTracker{seen: make(map[ruuvi.Address]struct{})}
}

// Record adds addr and reports whether it was new.
func (u *UnknownTracker) Record(addr ruuvi.Address) bool {
	if _, ok := u.seen[addr]; ok {
		return false
	}
	u.seen[addr] = struct{}{}
	u.order = append(u.order, addr)
	return true
}

// Addresses returns the recorded addresses in first-seen order.
func (u *UnknownTracker) Addresses() []ruuvi.Address {
	out := make([]ruuvi.Address, len(u.order))
	copy(out, u.order)
	return out
}

// Len returns the number of recorded addresses.
func (u *UnknownTracker) Len() int {
	return len(u.order)
}
