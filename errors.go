package diskmemo

import (
	"errors"
	"fmt"
)

var (
	ErrNilProducer = errors.New("diskmemo: producer is required")
	ErrNoCodec     = errors.New("diskmemo: codec is required for this value type")
	ErrClosed      = errors.New("diskmemo: closed")
)

// SerializationError means a produced value could not be encoded (or its
// encoding could not be decoded back). Nothing was published.
type SerializationError struct {
	Fingerprint string
	Err         error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("diskmemo: serialize %q: %v", e.Fingerprint, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// DeserializationError describes an entry on disk that could not be read back.
// The pipeline recovers from it by repopulating; it reaches callers only
// through Hooks and the Logger.
type DeserializationError struct {
	Path string
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("diskmemo: deserialize %s: %v", e.Path, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// LockError is a fault of the lock primitive itself. Contention is never
// reported as an error.
type LockError struct {
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("diskmemo: lock %s: %v", e.Path, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

// FilesystemError is a failure to publish an entry.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("diskmemo: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
