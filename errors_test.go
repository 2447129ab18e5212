package tripauth

import (
	"errors"
	"fmt"
	"testing"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ValidationError{Field: "email", Message: msgInvalidEmail}, msgInvalidEmail},
		{fmt.Errorf("%w: timeout", ErrRequestFailed), msgSendFailed},
		{fmt.Errorf("%w: 400", ErrInvalidCode), msgBadCode},
		{ErrBusy, msgBusy},
		{ErrResendCooldown, msgCooldown},
		{fmt.Errorf("%w: disk", ErrStorageUnavailable), msgGeneric},
		{errors.New("anything"), msgGeneric},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Fatalf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ValidationError{Field: "code", Message: msgIncomplete})
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ValidationError to match ErrValidation")
	}
	if errors.Is(err, ErrInvalidCode) {
		t.Fatal("ValidationError must not match other sentinels")
	}
}
