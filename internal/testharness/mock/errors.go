package mock

import "errors"

// Mock package errors.
var (
	// ErrExportFailed is returned by Export when a failure was injected for the path.
	ErrExportFailed = errors.New("export failed")

	// ErrNotExported is returned when inspecting a path with no exports.
	ErrNotExported = errors.New("path not exported")
)
