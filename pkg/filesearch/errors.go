package filesearch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveStore indicates an operation needs a selected store.
	ErrNoActiveStore = errors.New("no active file search store")
	ErrNotFound      = errors.New("not found")
	ErrEmptyQuery    = errors.New("query is empty")
)

// RemoteError wraps a failure reported by, or on the way to, the remote service.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// WrapRemote wraps err as a RemoteError for op. A nil err stays nil and an
// existing RemoteError is returned as is.
func WrapRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// IsRemote reports whether err came from the remote service.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
