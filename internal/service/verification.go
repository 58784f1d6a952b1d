package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/metrics"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

const codeDigits = 6

// Messages shown on the verification form.
const (
	MsgCodeDigits  = "Verification code must contain only digits"
	MsgCodeInvalid = "Invalid verification code"
	MsgCodeExpired = "Verification code has expired"
	MsgCodeLimit   = "You've reached the maximum number of verification attempts for today. Please try again tomorrow."
)

// VerificationService issues and checks the 6-digit email codes.
//
// Issuance is capped at model.MaxDailyCodes per user per UTC day. The
// counter is read, incremented in Go and written back, so two concurrent
// requests for the same user can both pass the check.
type VerificationService struct {
	repo   repository.VerificationRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewVerificationService(repo repository.VerificationRepository, logger *slog.Logger) *VerificationService {
	return &VerificationService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateCode issues a fresh code valid for model.CodeLifetime. Once the
// daily cap is reached it returns an apperror.ErrRateLimited error and
// creates nothing.
func (s *VerificationService) CreateCode(ctx context.Context, userID string) (*model.EmailVerification, error) {
	now := s.now()

	attempt, err := s.repo.GetAttempt(ctx, userID, model.AttemptDate(now))
	if err != nil {
		return nil, fmt.Errorf("creating verification code: %w", err)
	}
	if attempt.MaxReached() {
		metrics.RecordVerificationCode("rate_limited")
		return nil, apperror.RateLimited(MsgCodeLimit)
	}

	attempt.UserID = userID
	attempt.Date = model.AttemptDate(now)
	attempt.Count++
	if err := s.repo.SaveAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("creating verification code: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("creating verification code: %w", err)
	}

	v := &model.EmailVerification{
		UserID:    userID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(model.CodeLifetime),
	}
	if err := s.repo.CreateCode(ctx, v); err != nil {
		return nil, fmt.Errorf("creating verification code: %w", err)
	}

	metrics.RecordVerificationCode("issued")
	s.logger.Info("verification code issued",
		slog.String("userID", userID),
		slog.Int("attempt", attempt.Count),
	)
	return v, nil
}

// Verify consumes code for userID and marks the user verified. The most
// recently created unused match is the one checked for expiry.
func (s *VerificationService) Verify(ctx context.Context, userID, code string) error {
	v, err := s.check(ctx, userID, code)
	if err != nil {
		return err
	}

	if err := s.repo.Consume(ctx, v.ID, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Lost a race with another request for the same code.
			return apperror.ValidationFailed("code", MsgCodeInvalid)
		}
		return fmt.Errorf("verifying code: %w", err)
	}

	s.logger.Info("email verified", slog.String("userID", userID))
	return nil
}

// check validates code without consuming it.
func (s *VerificationService) check(ctx context.Context, userID, code string) (*model.EmailVerification, error) {
	code = strings.TrimSpace(code)
	if !isCode(code) {
		return nil, apperror.ValidationFailed("code", MsgCodeDigits)
	}

	v, err := s.repo.LatestUnused(ctx, userID, code)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("code", MsgCodeInvalid)
		}
		return nil, fmt.Errorf("verifying code: %w", err)
	}
	if !v.IsValid(s.now()) {
		return nil, apperror.ValidationFailed("code", MsgCodeExpired)
	}
	return v, nil
}

// AttemptsLeft is how many more codes userID may request today.
func (s *VerificationService) AttemptsLeft(ctx context.Context, userID string) (int, error) {
	a, err := s.repo.GetAttempt(ctx, userID, model.AttemptDate(s.now()))
	if err != nil {
		return 0, fmt.Errorf("reading verification attempts: %w", err)
	}
	return max(model.MaxDailyCodes-a.Count, 0), nil
}

func isCode(s string) bool {
	if len(s) != codeDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// generateCode draws each digit uniformly from crypto/rand.
func generateCode() (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < codeDigits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generating code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
