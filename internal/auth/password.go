package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// PASSWORD HASHING: WHY BCRYPT?
// bcrypt is deliberately slow, salts every hash, and embeds the salt and cost
// in its output, so a single TEXT column holds everything Verify needs.
//
// Hash format:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost
//	 version

// defaultCost is the bcrypt work factor used in production.
const defaultCost = 12

// Password policy. MinPasswordLength matches what hosted identity services
// enforce by default; MaxPasswordBytes is bcrypt's hard input limit.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

var (
	// ErrPasswordTooShort and ErrPasswordTooLong are returned by CheckPolicy.
	ErrPasswordTooShort = fmt.Errorf("auth: password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)

	// ErrPasswordMismatch is returned by Verify when the password is wrong.
	ErrPasswordMismatch = errors.New("auth: invalid password")
)

// PasswordService provides bcrypt hashing, verification and the password policy.
//
// It's a struct (not free functions) so that the cost can be injected in
// tests: cost 4 makes hashing take microseconds instead of ~250ms.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom bcrypt
// cost. Use 4 (bcrypt.MinCost) in tests in other packages.
//
// Do NOT use in production: low costs are far too weak.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// CheckPolicy reports whether plaintext is acceptable as a new password.
func (p *PasswordService) CheckPolicy(plaintext string) error {
	if utf8.RuneCountInString(plaintext) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(plaintext) > MaxPasswordBytes {
		// bcrypt would silently truncate; reject explicitly instead.
		return ErrPasswordTooLong
	}
	return nil
}

// Hash hashes the given plaintext password with bcrypt.
// It does not apply the policy; callers creating credentials call CheckPolicy first.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// The comparison is constant-time. A wrong password yields ErrPasswordMismatch.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
