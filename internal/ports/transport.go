// Package ports defines interfaces for external dependencies (Ports and Adapters pattern).
package ports

// Transport is a byte-stream console connection: a serial line, a terminal
// server socket, or anything else that moves bytes to and from a device.
// The session engine only needs bytes in, bytes out, and an available-byte
// count; it never interprets escape sequences or frames.
//
// Implementations are not required to be safe for concurrent use. The
// session owns its transport exclusively.
type Transport interface {
	// Open establishes the connection. Opening an already-open transport
	// is a no-op.
	Open() error

	// Close releases the connection. Closing a closed transport is a no-op.
	Close() error

	// IsOpen reports whether the connection is established.
	IsOpen() bool

	// Available returns the number of bytes that can be read without
	// blocking. Zero with a nil error means no data yet.
	Available() (int, error)

	// Read reads up to len(p) bytes. It must not block when Available
	// reported at least one byte.
	Read(p []byte) (int, error)

	// Write sends bytes to the device.
	Write(p []byte) (int, error)

	// Flush forces any buffered written bytes onto the wire.
	Flush() error
}
