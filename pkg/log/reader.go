package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for filtering log events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// SessionID filters by exact session ID match.
	SessionID string

	// Direction filters by message direction.
	Direction *Direction

	// Layer filters by protocol layer.
	Layer *Layer

	// Category filters by event category.
	Category *Category

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time

	// ObjectPath filters by object path, including objects below it.
	ObjectPath string

	// Opcode filters access messages by printed opcode, e.g. "0x52".
	Opcode string
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.SessionID != "" && event.SessionID != f.SessionID {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.ObjectPath != "" && event.ObjectPath != f.ObjectPath &&
		!strings.HasPrefix(event.ObjectPath, strings.TrimSuffix(f.ObjectPath, "/")+"/") {
		return false
	}
	if f.Opcode != "" && (event.Message == nil || !strings.EqualFold(event.Message.Opcode, f.Opcode)) {
		return false
	}
	return true
}

// Reader reads protocol log events from a capture file.
// It provides an iterator interface for streaming large files.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter

	header    Header
	hasHeader bool

	// first holds the first item when it was not a header.
	first cbor.RawMessage
}

// NewReader creates a Reader that reads all events from the specified log file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the filter.
// Streams without a capture header are read as plain event sequences.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}

	var raw cbor.RawMessage
	switch err := r.decoder.Decode(&raw); {
	case errors.Is(err, io.EOF):
		return r, nil
	case err != nil:
		_ = f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	r.header, r.hasHeader, err = parseHeader(raw)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !r.hasHeader {
		r.first = raw
	}
	return r, nil
}

// Header returns the capture header, if the file has one.
func (r *Reader) Header() (Header, bool) {
	return r.header, r.hasHeader
}

// Next returns the next event that matches the filter.
// Returns io.EOF when no more events are available.
func (r *Reader) Next() (Event, error) {
	for {
		event, err := r.decode()
		if err != nil {
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

func (r *Reader) decode() (Event, error) {
	var event Event
	if r.first != nil {
		raw := r.first
		r.first = nil
		if err := eventDecoding.Unmarshal(raw, &event); err != nil {
			return Event{}, fmt.Errorf("decode log event: %w", err)
		}
		return event, nil
	}
	if err := r.decoder.Decode(&event); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		return Event{}, err
	}
	return event, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll returns every event of the log file at path matching filter.
func ReadAll(path string, filter Filter) ([]Event, error) {
	r, err := NewFilteredReader(path, filter)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var events []Event
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}
