package repository

import "errors"

var (
	// ErrIndexNotReady is returned when a query reaches an ANN index that was
	// never built or loaded. This is a fatal configuration error, not a
	// condition to retry.
	ErrIndexNotReady = errors.New("ann index not ready: no index built or loaded")

	// ErrUnknownBook is returned when a request references an id that is not
	// part of the served canonical catalog.
	ErrUnknownBook = errors.New("unknown canonical book id")

	// ErrNoSignalAvailable is returned when a book has no applicable
	// similarity source at all: no explicit links, no description vector and
	// no genre vector. It is a valid, expected outcome rather than a crash,
	// but callers should treat it as exceptional given near-universal genre
	// coverage.
	ErrNoSignalAvailable = errors.New("no similarity signal available for book")
)
