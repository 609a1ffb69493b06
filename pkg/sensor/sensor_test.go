package sensor

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

func TestMarshalledRecords(t *testing.T) {
	tests := []struct {
		name     string
		property PropertyID
		value    []byte
		want     []byte
	}{
		{"FormatA", 0x004F, []byte{0x2A}, []byte{0xE0, 0x09, 0x2A}},
		{"FormatAMaxLength", 0x0001, bytes.Repeat([]byte{0x11}, 16), append([]byte{0x3E, 0x00}, bytes.Repeat([]byte{0x11}, 16)...)},
		{"FormatBWideProperty", 0x0800, []byte{0x01, 0x02}, []byte{0x03, 0x00, 0x08, 0x01, 0x02}},
		{"FormatBLongValue", 0x0010, bytes.Repeat([]byte{0x22}, 17), append([]byte{0x21, 0x10, 0x00}, bytes.Repeat([]byte{0x22}, 17)...)},
		{"FormatBZeroLength", 0x004F, []byte{}, []byte{0xFF, 0x4F, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := wire.NewBuffer(wire.MaxAccessPayloadSize)
			if err := emitRecord(buf, tt.property, tt.value); err != nil {
				t.Fatalf("emitRecord failed: %v", err)
			}
			if !bytes.Equal(buf.Bytes(), tt.want) {
				t.Fatalf("encoded %x, want %x", buf.Bytes(), tt.want)
			}

			records, err := parseRecords(buf.Bytes())
			if err != nil {
				t.Fatalf("parseRecords failed: %v", err)
			}
			if len(records) != 1 {
				t.Fatalf("expected 1 record, got %d", len(records))
			}
			if records[0].property != tt.property {
				t.Errorf("property %s, want %s", records[0].property, tt.property)
			}
			if !bytes.Equal(records[0].value, tt.value) {
				t.Errorf("value %x, want %x", records[0].value, tt.value)
			}
		})
	}
}

func TestParseRecordsErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"TruncatedFormatA", []byte{0xE0}, wire.ErrInvalidLength},
		{"TruncatedFormatB", []byte{0x03, 0x00}, wire.ErrInvalidLength},
		{"TruncatedValue", []byte{0xE2, 0x09, 0x2A}, wire.ErrInvalidLength},
		{"ProhibitedProperty", []byte{0x00, 0x00, 0x2A}, wire.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRecords(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := Descriptor{
		PropertyID:        0x004F,
		PositiveTolerance: 0x0123,
		NegativeTolerance: 0x0ABC,
		Sampling:          SamplingArithmeticMean,
		MeasurementPeriod: 0x40,
		UpdateInterval:    0x41,
	}

	buf := wire.NewBuffer(descriptorSize)
	if err := d.emit(buf); err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	want := []byte{0x4F, 0x00, 0x23, 0xC1, 0xAB, 0x02, 0x40, 0x41}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded %x, want %x", buf.Bytes(), want)
	}

	got, err := parseDescriptor(buf.Bytes())
	if err != nil {
		t.Fatalf("parseDescriptor failed: %v", err)
	}
	if got != d {
		t.Errorf("got %+v, want %+v", got, d)
	}

	d.PositiveTolerance = 0x1000
	if err := d.emit(wire.NewBuffer(descriptorSize)); !errors.Is(err, wire.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for wide tolerance, got %v", err)
	}
}

func TestServerParse(t *testing.T) {
	server := NewServer(Config{Descriptors: []Descriptor{NewDescriptor(0x004F, 1)}})

	if server.Identifier() != ServerID {
		t.Errorf("unexpected identifier %s", server.Identifier())
	}

	t.Run("GetAll", func(t *testing.T) {
		msg, err := server.Parse(OpcodeGet, nil)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if msg != (Get{}) {
			t.Errorf("got %+v", msg)
		}
	})

	t.Run("GetProperty", func(t *testing.T) {
		msg, err := server.Parse(OpcodeGet, []byte{0x4F, 0x00})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if msg != (Get{PropertyID: 0x004F}) {
			t.Errorf("got %+v", msg)
		}
	})

	t.Run("GetBadLength", func(t *testing.T) {
		_, err := server.Parse(OpcodeGet, []byte{0x4F})
		if !errors.Is(err, wire.ErrInvalidLength) {
			t.Errorf("expected ErrInvalidLength, got %v", err)
		}
	})

	t.Run("DescriptorGet", func(t *testing.T) {
		msg, err := server.Parse(OpcodeDescriptorGet, []byte{0x4F, 0x00})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		status := server.Describe(msg.(DescriptorGet))
		if len(status.Descriptors) != 1 || status.Descriptors[0].PropertyID != 0x004F {
			t.Errorf("unexpected descriptors %+v", status)
		}

		status = server.Describe(DescriptorGet{PropertyID: 0x0050})
		if status.Unknown != 0x0050 || len(status.Descriptors) != 0 {
			t.Errorf("expected unknown property, got %+v", status)
		}
	})

	t.Run("ColumnNotRecognized", func(t *testing.T) {
		msg, err := server.Parse(wire.TwoOctet(0x82, 0x32), []byte{0x4F, 0x00})
		if msg != nil || err != nil {
			t.Errorf("expected (nil, nil), got %v %v", msg, err)
		}
	})
}

func TestStatusReencodeIdentity(t *testing.T) {
	client := NewClient(Config{})
	params := []byte{
		0xE0, 0x09, 0x2A, // 0x004F = 0x2A
		0x03, 0x00, 0x08, 0x01, 0x02, // 0x0800 = 0x0102
	}

	msg, err := client.Parse(OpcodeStatus, params)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	status, ok := msg.(Status)
	if !ok {
		t.Fatalf("expected Status, got %T", msg)
	}

	encoded, err := model.Encode(status)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(encoded[:1], []byte{0x52}) {
		t.Errorf("unexpected opcode %x", encoded[:1])
	}
	if !bytes.Equal(encoded[1:], params) {
		t.Errorf("re-encoded %x, want %x", encoded[1:], params)
	}

	op, rest, err := wire.ParseOpcode(encoded)
	if err != nil {
		t.Fatalf("ParseOpcode failed: %v", err)
	}
	again, err := client.Parse(op, rest)
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if got := again.(Status).Data.(Raw)[0x0800]; !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Errorf("re-parsed value %x", got)
	}
}

func TestStatusEncodeFailureWritesNothing(t *testing.T) {
	status := Status{Properties: []PropertyID{0x004F, 0x0050}, Data: Raw{0x004F: {0x2A}}}

	buf := wire.NewBuffer(wire.MaxAccessPayloadSize)
	_ = buf.WriteByte(0x52)
	err := status.EmitParameters(buf)
	if !errors.Is(err, wire.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if buf.Len() != 1 {
		t.Errorf("expected buffer rolled back to 1 octet, got %d", buf.Len())
	}
}

func TestDescriptorStatusParse(t *testing.T) {
	client := NewClient(Config{})

	msg, err := client.Parse(OpcodeDescriptorStatus, []byte{0x50, 0x00})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.(DescriptorStatus).Unknown != 0x0050 {
		t.Errorf("expected unknown 0x0050, got %+v", msg)
	}

	_, err = client.Parse(OpcodeDescriptorStatus, []byte{0x4F, 0x00, 0x00})
	if !errors.Is(err, wire.ErrInvalidLength) {
		t.Errorf("expected ErrInvalidLength, got %v", err)
	}

	status := DescriptorStatus{Descriptors: []Descriptor{{PropertyID: 0x004F}, {PropertyID: 0x0050}}}
	encoded, err := model.Encode(status)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	again, err := client.Parse(OpcodeDescriptorStatus, encoded[1:])
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(again.(DescriptorStatus).Descriptors) != 2 {
		t.Errorf("expected 2 descriptors, got %+v", again)
	}
}

func TestRawAcceptsAnyProperty(t *testing.T) {
	r := Raw{}
	value := []byte{0x01, 0x02}
	for _, property := range []PropertyID{0x004F, 0x0800, 0xFFFF} {
		if err := r.Decode(property, value); err != nil {
			t.Errorf("Decode(%s) failed: %v", property, err)
		}
	}

	// Decode keeps its own copy.
	value[0] = 0xFF
	if got := r[0x0800]; !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Errorf("stored value %x", got)
	}

	if err := r.Encode(0x0050, wire.NewBuffer(4)); !errors.Is(err, wire.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for missing value, got %v", err)
	}
}

func TestStatusUnknownProperty(t *testing.T) {
	encoded, err := model.Encode(Status{Unknown: 0x0050})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Format B with length 0x7F: no value follows.
	if want := []byte{0x52, 0xFF, 0x50, 0x00}; !bytes.Equal(encoded, want) {
		t.Errorf("encoded %x, want %x", encoded, want)
	}

	client := NewClient(Config{})
	parsed, err := client.Parse(OpcodeStatus, encoded[1:])
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	status := parsed.(Status)
	if status.Unknown != 0x0050 || len(status.Properties) != 0 {
		t.Errorf("unexpected status %+v", status)
	}

	_, err = model.Encode(Status{Unknown: 0x0050, Properties: []PropertyID{0x004F}, Data: Raw{0x004F: {0x2A}}})
	if !errors.Is(err, wire.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}
