package device

import (
	"errors"
	"testing"

	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

func TestNameTable_AddMapping(t *testing.T) {
	names := NewNameTable()

	if err := names.AddMapping("AA:BB:CC:DD:EE:FF", "Kitchen"); err != nil {
		t.Fatalf("AddMapping() error = %v", err)
	}
	if err := names.AddMapping("f0661b4d4621", " Garden "); err != nil {
		t.Fatalf("AddMapping() error = %v", err)
	}

	if label, ok := names.Label(0xAABBCCDDEEFF); !ok || label != "Kitchen" {
		t.Errorf("Label() = %q, %v; want Kitchen, true", label, ok)
	}
	if addr, ok := names.Address("Garden"); !ok || addr != 0xF0661B4D4621 {
		t.Errorf("Address(Garden) = %s, %v; want F0661B4D4621, true", addr, ok)
	}
	if _, ok := names.Label(0x1); ok {
		t.Error("Label() of unmapped address should report false")
	}
	if names.Len() != 2 {
		t.Errorf("Len() = %d, want 2", names.Len())
	}
}

func TestNameTable_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		address string
		label   string
		wantErr error
	}{
		{name: "duplicate label", address: "000000000002", label: "Kitchen", wantErr: ErrDuplicateMapping},
		{name: "duplicate address", address: "aabbccddeeff", label: "Pantry", wantErr: ErrDuplicateMapping},
		{name: "identical mapping", address: "AABBCCDDEEFF", label: "Kitchen", wantErr: ErrDuplicateMapping},
		{name: "empty label", address: "000000000003", label: "  ", wantErr: ErrInvalidMapping},
		{name: "short address", address: "AABBCC", label: "Porch", wantErr: ErrInvalidMapping},
		{name: "non-hex address", address: "XXBBCCDDEEFF", label: "Porch", wantErr: ErrInvalidMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := NewNameTable()
			if err := names.AddMapping("AABBCCDDEEFF", "Kitchen"); err != nil {
				t.Fatalf("seed AddMapping() error = %v", err)
			}

			err := names.AddMapping(tt.address, tt.label)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddMapping() error = %v, want %v", err, tt.wantErr)
			}

			// The table must be unchanged after a rejection
			if names.Len() != 1 {
				t.Errorf("Len() = %d after rejection, want 1", names.Len())
			}
			if label, _ := names.Label(0xAABBCCDDEEFF); label != "Kitchen" {
				t.Errorf("existing mapping changed to %q", label)
			}
		})
	}
}

func TestNameTable_InvalidAddressWrapsParseError(t *testing.T) {
	err := NewNameTable().AddMapping("nope", "Porch")
	if !errors.Is(err, ruuvi.ErrInvalidAddress) {
		t.Errorf("AddMapping() error = %v, want it to wrap ruuvi.ErrInvalidAddress", err)
	}
}

func TestNameTable_MappingsSortedByLabel(t *testing.T) {
	names := NewNameTable()
	for addr, label := range map[ruuvi.Address]string{
		0x3: "Loft",
		0x1: "Bedroom",
		0x2: "Cellar",
	} {
		if err := names.Add(addr, label); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	got := names.Mappings()
	want := []string{"Bedroom", "Cellar", "Loft"}
	if len(got) != len(want) {
		t.Fatalf("Mappings() returned %d entries, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.Name != want[i] {
			t.Errorf("Mappings()[%d].Name = %q, want %q", i, m.Name, want[i])
		}
	}
}

func TestNameTable_CheckDoesNotMutate(t *testing.T) {
	names := NewNameTable()
	if err := names.AddMapping("AABBCCDDEEFF", "Kitchen"); err != nil {
		t.Fatalf("AddMapping() error = %v", err)
	}

	tests := []struct {
		name    string
		addr    ruuvi.Address
		label   string
		want    string
		wantErr error
	}{
		{name: "free", addr: 0xF0661B4D4621, label: " Garden ", want: "Garden"},
		{name: "address taken", addr: 0xAABBCCDDEEFF, label: "Other", wantErr: ErrDuplicateMapping},
		{name: "label taken", addr: 0xF0661B4D4621, label: "Kitchen", wantErr: ErrDuplicateMapping},
		{name: "empty label", addr: 0xF0661B4D4621, label: "", wantErr: ErrInvalidMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := names.Check(tt.addr, tt.label)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Check() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Check() = %q, want %q", got, tt.want)
			}
		})
	}

	if names.Len() != 1 {
		t.Errorf("Len() = %d after Check, want 1", names.Len())
	}
	if _, ok := names.Label(0xF0661B4D4621); ok {
		t.Error("Check() added a mapping")
	}
}

func TestUnknownTracker(t *testing.T) {
	u := NewUnknownTracker()

	if !u.Record(0xB) {
		t.Error("first Record(B) should report new")
	}
	if !u.Record(0xA) {
		t.Error("first Record(A) should report new")
	}
	if u.Record(0xB) {
		t.Error("second Record(B) should report seen")
	}

	got := u.Addresses()
	if len(got) != 2 || got[0] != 0xB || got[1] != 0xA {
		t.Errorf("Addresses() = %v, want [B A] in first-seen order", got)
	}

	// The returned slice is a copy
	got[0] = 0xF
	if u.Addresses()[0] != 0xB {
		t.Error("Addresses() exposed internal state")
	}
	if u.Len() != 2 {
		t.Errorf("Len() = %d, want 2", u.Len())
	}
}
