// Package log provides structured protocol logging for mesh applications.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (bus, access, application).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/mesh/sensor.mlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Access: Inbound and outbound access messages (MessageEvent)
//   - Bus: Daemon method calls such as JoinComplete or RequestProvData (CallEvent)
//   - Application: Registration and attach state changes (StateChangeEvent)
//
// Errors returned to the daemon have a dedicated event type.
//
// # File Format
//
// Capture files (.mlog) are a sequence of CBOR items. The first is a Header
// wrapped in a tag whose number spells "mesh", so files start with the
// bytes 0xDA 'm' 'e' 's' 'h'. Each following item is one Event with integer
// keys. Reader also accepts plain event streams without a header. The
// mesh-tool log commands provide viewing, filtering, and statistics.
package log
