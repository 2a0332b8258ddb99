package monitoring

import "errors"

var (
	// ErrBindFailure is returned when the server cannot listen on any of the
	// ports it tried. The error also wraps the last bind error.
	ErrBindFailure = errors.New("cannot bind a port for the progress server")

	// ErrResourceNotReadable is returned when a static resource does not
	// resolve to readable bytes.
	ErrResourceNotReadable = errors.New("resource is not readable")

	// ErrNotStarted is returned when waiting for or stopping a server that
	// was never started.
	ErrNotStarted = errors.New("progress server not started")

	// ErrAlreadyStarted is returned when starting a server twice.
	ErrAlreadyStarted = errors.New("progress server already started")
)
