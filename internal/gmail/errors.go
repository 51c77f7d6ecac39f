package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// TransportError wraps a failure returned by the remote mail API. Retriable
// reports whether the orchestrator's single bounded retry may be attempted
// (HTTP 429 and 5xx responses).
type TransportError struct {
	Status    int
	Retriable bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport error (http %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// asTransportError normalizes any remote-call error into a TransportError.
// googleapi errors carry the HTTP status; anything else is a non-retriable
// transport failure.
func asTransportError(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &TransportError{
			Status:    gerr.Code,
			Retriable: gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500,
			Err:       err,
		}
	}
	return &TransportError{Err: err}
}

// ParseError reports a structurally malformed message envelope. A message
// with an empty body or zero attachments is not a parse error.
type ParseError struct {
	MessageID string
	Reason    string
}

func (e *ParseError) Error() string {
	if e.MessageID != "" {
		return fmt.Sprintf("failed to parse message %s: %s", e.MessageID, e.Reason)
	}
	return fmt.Sprintf("failed to parse message: %s", e.Reason)
}

// ProtectedLabelError is returned when a destructive operation would touch
// a protected label. No remote call is made for the rejected operation.
type ProtectedLabelError struct {
	Label  string
	Intent Intent
}

func (e *ProtectedLabelError) Error() string {
	if e.Intent != "" {
		return fmt.Sprintf("label %q is protected, refusing %s", e.Label, e.Intent)
	}
	return fmt.Sprintf("label %q is protected", e.Label)
}

// ValidationError reports malformed caller input: a bad FilterSpec field,
// an invalid email address, or a missing required argument.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthPendingError is returned when a call is attempted while the session
// is still authenticating and the bounded wait elapsed.
type AuthPendingError struct {
	Waited string
}

func (e *AuthPendingError) Error() string {
	return fmt.Sprintf("session still authenticating after %s", e.Waited)
}

// ErrSessionClosed is returned for operations on a disposed session.
var ErrSessionClosed = errors.New("session is closed")
