package tripauth

import (
	"errors"

	"github.com/travelplanner/tripauth/session"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrRequestFailed is returned when requesting or resending a code fails.
	ErrRequestFailed = errors.New("otp request failed")
	// ErrInvalidCode is returned when the backend does not exchange the code for a token.
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrBusy is returned when a request for the same challenge is still outstanding.
	ErrBusy = errors.New("request already in flight")
	// ErrStaleResponse is returned when a response arrives after its challenge was replaced or abandoned.
	ErrStaleResponse = errors.New("response arrived for a discarded challenge")
	// ErrWrongPhase is returned when an operation is not legal in the current login phase.
	ErrWrongPhase = errors.New("operation not allowed in current login phase")
	// ErrResendCooldown is returned by Resend while the countdown is running and the cooldown is enforced.
	ErrResendCooldown = errors.New("resend not available yet")
	// ErrLoginClosed is returned by operations on a detached LoginFlow.
	ErrLoginClosed = errors.New("login flow detached")
	// ErrNotAuthenticated is returned when an operation needs a session and none is held or the backend rejected it.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrStorageUnavailable wraps durable session storage failures.
	ErrStorageUnavailable = session.ErrStorageUnavailable
	// ErrTokenDecode marks a held token that could not be decoded. Bootstrap only logs it.
	ErrTokenDecode = session.ErrTokenDecode
)

// ValidationError is a locally detected input problem with a message fit for display.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

const (
	msgInvalidEmail = "Please enter a valid email address"
	msgIncomplete   = "Please enter a 6-digit code"
	msgSendFailed   = "Failed to send the code. Please try again."
	msgBadCode      = "Invalid or expired code. Please try again."
	msgBusy         = "Please wait for the current request to finish."
	msgCooldown     = "You can request a new code when the timer runs out."
	msgGeneric      = "Something went wrong. Please try again."
)

// UserMessage maps err to the text shown to the user. Validation errors keep their
// specific message; everything else gets a short generic one.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrBusy):
		return msgBusy
	case errors.Is(err, ErrResendCooldown):
		return msgCooldown
	case errors.Is(err, ErrRequestFailed):
		return msgSendFailed
	case errors.Is(err, ErrInvalidCode):
		return msgBadCode
	default:
		return msgGeneric
	}
}
