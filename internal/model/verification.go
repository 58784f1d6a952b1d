package model

import "time"

const (
	// CodeLifetime is how long an emailed code stays usable.
	CodeLifetime = 5 * time.Minute
	// MaxDailyCodes caps code issuance per user per calendar day (UTC).
	MaxDailyCodes = 5
)

// EmailVerification is a one-time 6-digit code mailed to a user.
type EmailVerification struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	Code      string    `json:"-"         db:"code"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	IsUsed    bool      `json:"isUsed"    db:"is_used"`
}

// IsValid reports whether the code is unused and now is not past expiry.
func (v *EmailVerification) IsValid(now time.Time) bool {
	return !v.IsUsed && !now.After(v.ExpiresAt)
}

// VerificationAttempt counts codes issued to one user on one day.
type VerificationAttempt struct {
	UserID string `db:"user_id"`
	Date   string `db:"date"` // YYYY-MM-DD
	Count  int    `db:"count"`
}

func (a VerificationAttempt) MaxReached() bool {
	return a.Count >= MaxDailyCodes
}

// AttemptDate is the counter key for t.
func AttemptDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
