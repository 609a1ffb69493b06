package log

// Logger receives the protocol events of a mesh session: calls to and from
// the daemon, access messages, state changes and errors. A nil Logger in
// the session configuration disables capture.
type Logger interface {
	// Log records event. It is called from the goroutines handling daemon
	// calls, concurrently, and a slow Log delays the reply to the daemon.
	Log(event Event)
}

// NoopLogger drops every event. Its zero value is ready to use.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
