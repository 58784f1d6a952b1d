// Package service holds the business rules. Handlers translate HTTP into
// calls on these services; services talk to storage only through the
// repository interfaces:
//
//	handler (HTTP) → service (rules) → repository (DB)
//	                ↘ auth (JWT, bcrypt, edit tokens)
//
// Services never see *http.Request. Who is asking arrives as a
// model.RequestContext built once per request by the handler layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/auth"
	"github.com/sakif/videohub/internal/mail"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
	"github.com/sakif/videohub/internal/validation"
)

const (
	MsgEmailTaken       = "Email already in use"
	MsgBadCredentials   = "Invalid email or password"
	MsgVerifyFirst      = "Please verify your email before signing in."
	MsgAlreadyVerified  = "Your email is already verified."
	MsgNoPendingEmail   = "No pending email change found."
	githubNoReplyDomain = "users.noreply.github.com"
)

// AccountService runs registration, sign-in and profile changes.
type AccountService struct {
	users     repository.UserRepository
	verify    *VerificationService
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	mailer    mail.Mailer
	isAdmin   func(email string) bool
	logger    *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	verify *VerificationService,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	mailer mail.Mailer,
	isAdmin func(email string) bool,
	logger *slog.Logger,
) *AccountService {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &AccountService{
		users:     users,
		verify:    verify,
		passwords: passwords,
		tokens:    tokens,
		mailer:    mailer,
		isAdmin:   isAdmin,
		logger:    logger,
	}
}

// AuthResult bundles the user with a freshly issued session JWT so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// UnverifiedError is returned by Login for an account whose email has not
// been confirmed. It is a validation error on "code"; the handler uses
// UserID to resume the verification flow.
type UnverifiedError struct {
	UserID string
}

func (e *UnverifiedError) Error() string { return MsgVerifyFirst }

func (e *UnverifiedError) Unwrap() error {
	return apperror.ValidationFailed("code", MsgVerifyFirst)
}

type RegisterInput struct {
	Username        string `form:"username"  validate:"notblank,max=150"`
	Email           string `form:"email"     validate:"required,email,max=254"`
	Password        string `form:"password1" validate:"required,min=8,max=72"`
	PasswordConfirm string `form:"password2" validate:"required,eqfield=Password"`
}

// Register creates an unverified account and mails it a code. When no code
// can be issued the account is removed again.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	if err := s.emailAvailable(ctx, in.Email, ""); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", in.Email, err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      s.isAdmin(in.Email),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("email", MsgEmailTaken)
		}
		return nil, fmt.Errorf("registering %s: %w", in.Email, err)
	}

	v, err := s.verify.CreateCode(ctx, user.ID)
	if err != nil {
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error("removing user after failed code issue",
				slog.String("userID", user.ID),
				slog.Any("error", delErr),
			)
		}
		return nil, err
	}
	s.sendCode(ctx, user.Email, v.Code)

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.Bool("admin", user.IsAdmin),
	)
	return user, nil
}

// ResendCode mails a new code to a user who is still unverified.
func (s *AccountService) ResendCode(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("resending code: %w", err)
	}
	if user.IsEmailVerified {
		return apperror.ValidationFailed("code", MsgAlreadyVerified)
	}

	v, err := s.verify.CreateCode(ctx, user.ID)
	if err != nil {
		return err
	}
	s.sendCode(ctx, user.Email, v.Code)
	return nil
}

// ConfirmRegistration checks the code, welcomes the user and signs them in.
func (s *AccountService) ConfirmRegistration(ctx context.Context, userID, code string) (*AuthResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("confirming registration: %w", err)
	}
	if user.IsEmailVerified {
		return nil, apperror.ValidationFailed("code", MsgAlreadyVerified)
	}

	if err := s.verify.Verify(ctx, userID, code); err != nil {
		return nil, err
	}
	user.IsEmailVerified = true

	s.send(ctx, mail.WelcomeMessage(user.Email, user.Username))
	return s.session(user)
}

// AttemptsLeft is shown on the verification form.
func (s *AccountService) AttemptsLeft(ctx context.Context, userID string) (int, error) {
	return s.verify.AttemptsLeft(ctx, userID)
}

type LoginInput struct {
	Email    string `form:"email"    validate:"required"`
	Password string `form:"password" validate:"required"`
}

// Login checks credentials. Unknown email and wrong password share one
// message.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("", MsgBadCredentials)
		}
		return nil, fmt.Errorf("logging in: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.ValidationFailed("", MsgBadCredentials)
		}
		return nil, fmt.Errorf("logging in: %w", err)
	}

	if !user.IsEmailVerified {
		return nil, &UnverifiedError{UserID: user.ID}
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.session(user)
}

func (s *AccountService) Profile(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return user, nil
}

type ProfileInput struct {
	Username string `form:"username" validate:"notblank,max=150"`
	Email    string `form:"email"    validate:"required,email,max=254"`
}

// ProfileResult carries the saved user and, when the email changed, the
// address waiting for confirmation.
type ProfileResult struct {
	User         *model.User
	PendingEmail string
}

// UpdateProfile saves the username at once. A new email is only stored
// after ConfirmEmailChange; until then a code is mailed to it.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*ProfileResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &ProfileResult{User: user}
	if !strings.EqualFold(in.Email, user.Email) {
		if err := s.emailAvailable(ctx, in.Email, user.ID); err != nil {
			return nil, err
		}
		v, err := s.verify.CreateCode(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		s.sendCode(ctx, in.Email, v.Code)
		res.PendingEmail = in.Email
	}

	user.Username = in.Username
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	s.logger.Info("profile updated",
		slog.String("userID", user.ID),
		slog.Bool("emailPending", res.PendingEmail != ""),
	)
	return res, nil
}

// ConfirmEmailChange swaps in pendingEmail once code checks out.
func (s *AccountService) ConfirmEmailChange(ctx context.Context, userID, pendingEmail, code string) (*model.User, error) {
	if pendingEmail == "" {
		return nil, apperror.ValidationFailed("code", MsgNoPendingEmail)
	}
	if err := s.verify.Verify(ctx, userID, code); err != nil {
		return nil, err
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Email = pendingEmail
	user.IsEmailVerified = true
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("email", MsgEmailTaken)
		}
		return nil, fmt.Errorf("confirming email change: %w", err)
	}

	s.send(ctx, mail.WelcomeMessage(user.Email, user.Username))
	s.logger.Info("email changed", slog.String("userID", user.ID))
	return user, nil
}

// LoginWithGitHub upserts the account linked to the GitHub profile and
// signs it in. GitHub accounts count as verified.
func (s *AccountService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("github login: missing profile")
	}

	email := gh.Email
	if email == "" {
		email = fmt.Sprintf("%s@%s", gh.Login, githubNoReplyDomain)
	}
	githubID := gh.ID

	user := &model.User{
		Username:        gh.Login,
		Email:           email,
		IsEmailVerified: true,
		IsAdmin:         s.isAdmin(email),
		GitHubID:        &githubID,
		AvatarURL:       gh.AvatarURL,
	}
	if err := s.users.UpsertGitHub(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("user", email)
		}
		return nil, fmt.Errorf("github login (githubID=%d): %w", gh.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.session(user)
}

func (s *AccountService) session(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Session{UserID: user.ID, Admin: user.IsAdmin})
	if err != nil {
		return nil, fmt.Errorf("issuing session for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// emailAvailable fails unless email is free or already belongs to selfID.
func (s *AccountService) emailAvailable(ctx context.Context, email, selfID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("checking email: %w", err)
	case existing.ID == selfID:
		return nil
	default:
		return apperror.ValidationFailed("email", MsgEmailTaken)
	}
}

func (s *AccountService) sendCode(ctx context.Context, to, code string) {
	s.send(ctx, mail.VerificationMessage(to, code))
}

// send logs delivery failures; the code can always be resent.
func (s *AccountService) send(ctx context.Context, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("sending mail",
			slog.String("subject", msg.Subject),
			slog.Any("error", err),
		)
	}
}
