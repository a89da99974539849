package sections

import (
	"errors"
	"fmt"

	"cv-backend/internal/store"
)

// ErrUnauthenticated is returned before any store access when no owner is set.
var ErrUnauthenticated = errors.New("not authenticated")

// RemoteError wraps a failure of the remote store.
type RemoteError struct {
	Op      string
	Section Kind
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Section, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsForbidden reports whether err is a write against a row the owner does not hold.
func IsForbidden(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func remote(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Section: kind, Err: err}
}
