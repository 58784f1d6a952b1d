package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Two kinds of secret go through bcrypt here: account passwords, and the
// optional password an owner puts on a video. Both are stored only as the
// full bcrypt output, which carries its own salt and cost:
//
//	$2a$12$<22-char salt><31-char hash>
//
// so a stored hash keeps verifying after defaultCost is raised; only new
// hashes pay the higher cost.
//
// An empty hash means "no password set" (a GitHub-only account, or a video
// without a password) and never verifies, whatever the input.
const (
	defaultCost = 12
	// bcrypt ignores everything past 72 bytes, so longer input is refused
	// rather than silently truncated.
	maxPasswordBytes = 72
)

// ErrPasswordMismatch is returned by Verify for a wrong password, and for
// accounts that have no password (GitHub-only sign-in).
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService hashes account and video passwords with bcrypt.
type PasswordService struct {
	cost int
}

func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest uses a low cost so tests in other packages
// stay fast. Do not use in production.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
