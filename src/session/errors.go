package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected  = errors.New("session is not connected")
	ErrClosed        = errors.New("session is closed")
	ErrLoginTimeout  = errors.New("timed out waiting for login acknowledgement")
	ErrLoginRejected = errors.New("login rejected by gateway")
)

// -----------------------------------------------------------------------------

// SessionError tags a failure with the session operation it happened in
type SessionError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("session %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session %s [%s]: %v", e.Op, e.SessionID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
