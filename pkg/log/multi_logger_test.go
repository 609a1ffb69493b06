package log

import (
	"sync"
	"testing"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestMultiLoggerFansOut(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	if m.Len() != 2 {
		t.Fatalf("expected nil logger skipped, got %d loggers", m.Len())
	}

	m.Log(Event{SessionID: "x"})
	m.Log(Event{SessionID: "y"})

	if a.count() != 2 || b.count() != 2 {
		t.Errorf("expected 2 events each, got %d and %d", a.count(), b.count())
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	m := NewMultiLogger()
	m.Log(Event{})
}

func TestMultiLoggerConcurrent(t *testing.T) {
	rec := &recordingLogger{}
	m := NewMultiLogger(rec, NoopLogger{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Log(Event{})
		}()
	}
	wg.Wait()

	if rec.count() != 50 {
		t.Errorf("expected 50 events, got %d", rec.count())
	}
}
