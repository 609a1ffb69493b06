package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Limits applied when reading a log. Events are flat records; anything
// deeper or larger than this is a corrupt file.
const (
	maxNesting   = 8
	maxElements  = 4096
	maxByteSlice = 1 << 16
)

var (
	// eventEncoding writes events with canonical key order and RFC 3339
	// timestamps with nanoseconds, so identical events encode identically.
	eventEncoding = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	})

	eventDecoding = mustDecMode(cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyQuiet,
		IndefLength:      cbor.IndefLengthAllowed,
		MaxNestedLevels:  maxNesting,
		MaxArrayElements: maxElements,
		MaxMapPairs:      maxElements,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor encoder options: %v", err))
	}
	return mode
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	mode, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor decoder options: %v", err))
	}
	return mode
}

// EncodeEvent returns the CBOR form of event. Fields use integer keys.
func EncodeEvent(event Event) ([]byte, error) {
	data, err := eventEncoding.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode log event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses a single CBOR encoded event.
func DecodeEvent(data []byte) (Event, error) {
	if len(data) > maxByteSlice {
		return Event{}, fmt.Errorf("decode log event: %d bytes exceeds %d", len(data), maxByteSlice)
	}
	var event Event
	if err := eventDecoding.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode log event: %w", err)
	}
	return event, nil
}

// NewEncoder returns an encoder writing a stream of events to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return eventEncoding.NewEncoder(w)
}

// NewDecoder returns a decoder reading a stream of events from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return eventDecoding.NewDecoder(r)
}
