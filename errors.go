package caliper

import "errors"

// Error kinds returned by the public contract. Only programmer errors
// (invalid attribute, unmatched end, an unknown writer service name)
// are observable; every other path succeeds or is fatal.
var (
	// ErrInvalidArgument is returned for an invalid attribute sentinel,
	// an end without a matching begin, or an out-of-range identifier.
	ErrInvalidArgument = errors.New("caliper: invalid argument")

	// ErrOutOfMemory names a fatal arena or registry exhaustion. No
	// function in this package returns or logs it: node id space
	// exhaustion panics explicitly, and memory exhaustion ends the
	// process through the Go runtime.
	ErrOutOfMemory = errors.New("caliper: out of memory")

	// ErrNotFound is returned by WriteMetadata when the configured
	// writer service name has no registered Writer.
	ErrNotFound = errors.New("caliper: writer service not found")
)
