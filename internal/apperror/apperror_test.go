package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case checks that errors.Is() classifies a constructor's result
// under the right sentinel, and under no other.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("project", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "email is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("users", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Credential wraps ErrCredential",
			err:       Credential(CodeWeakPassword, "password too short"),
			target:    ErrCredential,
			wantMatch: true,
		},
		{
			name:      "Network wraps ErrNetwork",
			err:       Network("store unreachable", errors.New("dial tcp: refused")),
			target:    ErrNetwork,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("admins only"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("project", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Credential does NOT match ErrNetwork",
			err:       Credential(CodeInvalidCredential, "wrong password"),
			target:    ErrNetwork,
			wantMatch: false,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("service/auth: signing up: %w", Credential(CodeDuplicateEmail, "taken")),
			target:    ErrCredential,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("project", "abc123"),
			wantMessage: "project not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "Network hides the cause from the message",
			err:         Network("record store unavailable", errors.New("i/o timeout")),
			wantMessage: "record store unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestNetworkKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Network("identity provider unavailable", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Credential(CodeCancelled, "sign-in cancelled"))
	if got := CodeOf(err); got != CodeCancelled {
		t.Errorf("CodeOf() = %q, want %q", got, CodeCancelled)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
