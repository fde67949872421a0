package device

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// NameTable is a bidirectional lookup between hardware addresses and labels.
//
// Both directions are unique: one label per address and one address per
// label. The table is filled at startup and only read afterwards, but it is
// safe for concurrent use either way.
type NameTable struct {
	mu        sync.RWMutex
	byAddress map[ruuvi.Address]string
	byLabel   map[string]ruuvi.Address
}

// NewNameTable creates an empty name table.
func NewNameTable() *NameTable {
	return &NameTable{
		byAddress: make(map[ruuvi.Address]string),
		byLabel:   make(map[string]ruuvi.Address),
	}
}

// AddMapping parses addressText and adds it under label.
//
// Parameters:
//   - addressText: 12 hex digits, optionally ':' separated, any case
//   - label: Non-empty display name; surrounding space is trimmed
//
// Returns:
//   - error: ErrInvalidMapping for a bad address or empty label,
//     ErrDuplicateMapping if either side is already mapped
func (t *NameTable) AddMapping(addressText, label string) error {
	addr, err := ruuvi.ParseAddress(addressText)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMapping, err)
	}
	return t.Add(addr, label)
}

// Add maps an already parsed address to label. The table is unchanged when
// an error is returned.
func (t *NameTable) Add(addr ruuvi.Address, label string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	label, err := t.checkLocked(addr, label)
	if err != nil {
		return err
	}

	t.byAddress[addr] = label
	t.byLabel[label] = addr
	return nil
}

// Check reports whether Add would accept the mapping, without adding it.
// It returns the trimmed label.
func (t *NameTable) Check(addr ruuvi.Address, label string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.checkLocked(addr, label)
}

func (t *NameTable) checkLocked(addr ruuvi.Address, label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("%w: empty label for %s", ErrInvalidMapping, addr)
	}
	if existing, ok := t.byAddress[addr]; ok {
		return "", fmt.Errorf("%w: address %s is already mapped to %q", ErrDuplicateMapping, addr, existing)
	}
	if existing, ok := t.byLabel[label]; ok {
		return "", fmt.Errorf("%w: label %q is already used by %s", ErrDuplicateMapping, label, existing)
	}
	return label, nil
}

// Label returns the label mapped to addr.
func (t *NameTable) Label(addr ruuvi.Address) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	label, ok := t.byAddress[addr]
	return label, ok
}

// Address returns the address mapped to label.
func (t *NameTable) Address(label string) (ruuvi.Address, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	addr, ok := t.byLabel[label]
	return addr, ok
}

// Mappings returns every mapping sorted by label.
func (t *NameTable) Mappings() []Mapping {
	t.mu.RLock()
	out := make([]Mapping, 0, len(t.byAddress))
	for addr, label := range t.byAddress {
		out = append(out, Mapping{Address: addr, Name: label})
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of mappings.
func (t *NameTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byAddress)
}
