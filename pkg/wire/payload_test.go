package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseAccessPayload(t *testing.T) {
	data := []byte{0x52, 0x08, 0x4F, 0x2A}

	p, err := ParseAccessPayload(data)
	if err != nil {
		t.Fatalf("ParseAccessPayload failed: %v", err)
	}
	if p.Opcode != OneOctet(0x52) {
		t.Errorf("expected opcode 0x52, got %s", p.Opcode)
	}
	if !bytes.Equal(p.Parameters, []byte{0x08, 0x4F, 0x2A}) {
		t.Errorf("unexpected parameters %x", p.Parameters)
	}

	// Parameters must not alias the input.
	data[1] = 0xFF
	if p.Parameters[0] != 0x08 {
		t.Error("parameters alias input slice")
	}
}

func TestParseAccessPayloadBounds(t *testing.T) {
	t.Run("AtLimit", func(t *testing.T) {
		data := make([]byte, MaxAccessPayloadSize)
		data[0] = 0x52
		p, err := ParseAccessPayload(data)
		if err != nil {
			t.Fatalf("expected payload at limit to parse: %v", err)
		}
		if p.Len() != MaxAccessPayloadSize {
			t.Errorf("expected length %d, got %d", MaxAccessPayloadSize, p.Len())
		}
		if !p.Segmented() {
			t.Error("expected large payload to require segmentation")
		}
	})

	t.Run("OverLimit", func(t *testing.T) {
		data := make([]byte, MaxAccessPayloadSize+1)
		_, err := ParseAccessPayload(data)
		if !errors.Is(err, ErrInvalidLength) {
			t.Errorf("expected ErrInvalidLength, got %v", err)
		}
	})

	t.Run("WorkingBufferIsNotTheBound", func(t *testing.T) {
		data := make([]byte, MaxUpperTransportPDUSize)
		_, err := ParseAccessPayload(data)
		if !errors.Is(err, ErrInvalidLength) {
			t.Errorf("expected ErrInvalidLength for %d octets, got %v", MaxUpperTransportPDUSize, err)
		}
	})
}

func TestAccessPayloadBytes(t *testing.T) {
	p := AccessPayload{Opcode: TwoOctet(0x82, 0x31), Parameters: []byte{0x4F, 0x00}}

	b, err := p.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !bytes.Equal(b, []byte{0x82, 0x31, 0x4F, 0x00}) {
		t.Errorf("unexpected encoding %x", b)
	}
	if p.Segmented() {
		t.Error("4-octet payload must fit unsegmented")
	}

	oversized := AccessPayload{Opcode: OneOctet(0x52), Parameters: make([]byte, MaxAccessPayloadSize)}
	if _, err := oversized.Bytes(); !errors.Is(err, ErrBufferOverflow) {
		t.Errorf("expected ErrBufferOverflow, got %v", err)
	}
}
