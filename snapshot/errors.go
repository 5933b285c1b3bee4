package snapshot

import "errors"

// Sentinel errors for snapshot stores and archives.
var (
	// ErrNotFound is returned when a snapshot cannot be found.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrInvalidID is returned when an id is not a UUID.
	ErrInvalidID = errors.New("snapshot: invalid id")

	// ErrAlreadyExists is returned when saving a snapshot whose id is taken.
	// Snapshots are immutable once saved.
	ErrAlreadyExists = errors.New("snapshot: already exists")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("snapshot: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("snapshot: already connected")

	// ErrInvalidURI is returned when an archive URI has the wrong scheme or
	// no key.
	ErrInvalidURI = errors.New("snapshot: invalid uri")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
