package model

import (
	"errors"
	"testing"
)

func TestRegistryFoundation(t *testing.T) {
	r := NewRegistry()

	names := r.Names()
	expected := []string{"config-client", "config-server", "health-client", "health-server"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d names, got %v", len(expected), names)
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("names[%d] = %s, want %s", i, names[i], name)
		}
	}

	id, err := r.Identifier("config-server")
	if err != nil {
		t.Fatalf("Identifier failed: %v", err)
	}
	if id != ConfigurationServerID {
		t.Errorf("expected %s, got %s", ConfigurationServerID, id)
	}

	name, ok := r.Lookup(HealthClientID)
	if !ok || name != "health-client" {
		t.Errorf("expected health-client, got %q (ok=%v)", name, ok)
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	vendor := Opaque{ID: Vendor(0x05F1, 0x0001), Publication: true}

	if err := r.Register("vendor", func() Model { return vendor }); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("vendor", func() Model { return vendor }); !errors.Is(err, ErrDuplicateModel) {
		t.Errorf("expected ErrDuplicateModel, got %v", err)
	}

	m, err := r.New("vendor")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m.Identifier() != vendor.ID {
		t.Errorf("expected %s, got %s", vendor.ID, m.Identifier())
	}

	if _, err := r.New("missing"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
	if _, ok := r.Lookup(SIG(0xFFFF)); ok {
		t.Error("expected lookup of unknown identifier to fail")
	}
}

func TestRegistryCapabilities(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("vendor", func() Model {
		return Opaque{ID: Vendor(0x05F1, 0x0001), Publication: true}
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name string
		sub  bool
		pub  bool
	}{
		{"config-server", false, false},
		{"health-server", false, true},
		{"health-client", true, false},
		{"vendor", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, pub, err := r.Capabilities(tt.name)
			if err != nil {
				t.Fatalf("Capabilities failed: %v", err)
			}
			if sub != tt.sub || pub != tt.pub {
				t.Errorf("got sub=%v pub=%v, want sub=%v pub=%v", sub, pub, tt.sub, tt.pub)
			}
		})
	}

	if _, _, err := r.Capabilities("missing"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}
