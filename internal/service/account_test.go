package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/auth"
	"github.com/sakif/videohub/internal/mail"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository/sqlite"
)

type accountFixture struct {
	svc    *AccountService
	db     *sqlite.DB
	mails  *mail.Recorder
	tokens *auth.TokenService
	clock  *clock
}

func newTestAccounts(t *testing.T) *accountFixture {
	t.Helper()
	db := newTestDB(t)
	verify, _, c := newTestVerificationOn(t, db)

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	mails := &mail.Recorder{}
	isAdmin := func(email string) bool { return strings.EqualFold(email, "boss@example.com") }
	svc := NewAccountService(db.Users(), verify, auth.NewPasswordServiceForTest(), tokens, mails, isAdmin, discardLogger())
	return &accountFixture{svc: svc, db: db, mails: mails, tokens: tokens, clock: c}
}

func newTestVerificationOn(t *testing.T, db *sqlite.DB) (*VerificationService, *sqlite.DB, *clock) {
	t.Helper()
	svc := NewVerificationService(db.Verifications(), discardLogger())
	c := &clock{t: time.Now().UTC()}
	svc.now = c.Now
	return svc, db, c
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// lastCode pulls the code out of the most recent mail to addr.
func (f *accountFixture) lastCode(t *testing.T, addr string) string {
	t.Helper()
	sent := f.mails.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].To != addr {
			continue
		}
		if m := codePattern.FindStringSubmatch(sent[i].Body); m != nil {
			return m[1]
		}
	}
	t.Fatalf("no code mailed to %s", addr)
	return ""
}

func validRegistration(name string) RegisterInput {
	return RegisterInput{
		Username:        name,
		Email:           name + "@example.com",
		Password:        "correct horse",
		PasswordConfirm: "correct horse",
	}
}

func TestRegister_CreatesUnverifiedAndMailsCode(t *testing.T) {
	f := newTestAccounts(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validRegistration("alex"))
	require.NoError(t, err)

	assert.False(t, user.IsEmailVerified)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	msg, ok := f.mails.Last()
	require.True(t, ok)
	assert.Equal(t, "alex@example.com", msg.To)
	assert.Regexp(t, codePattern, msg.Body)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*RegisterInput)
		field string
	}{
		{"blank username", func(in *RegisterInput) { in.Username = "  " }, "username"},
		{"bad email", func(in *RegisterInput) { in.Email = "nope" }, "email"},
		{"short password", func(in *RegisterInput) { in.Password, in.PasswordConfirm = "short", "short" }, "password1"},
		{"mismatch", func(in *RegisterInput) { in.PasswordConfirm = "something else" }, "password2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestAccounts(t)
			in := validRegistration("alex")
			tt.edit(&in)

			_, err := f.svc.Register(context.Background(), in)
			require.ErrorIs(t, err, apperror.ErrValidation)
			assert.Contains(t, apperror.FieldErrors(err), tt.field)
			assert.Empty(t, f.mails.Sent())
		})
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newTestAccounts(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validRegistration("alex"))
	require.NoError(t, err)

	in := validRegistration("other")
	in.Email = "ALEX@example.com"
	_, err = f.svc.Register(ctx, in)
	assert.Equal(t, MsgEmailTaken, fieldMessage(t, err, "email"))
}

func TestRegister_AdminEmail(t *testing.T) {
	f := newTestAccounts(t)
	in := validRegistration("boss")

	user, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
}

func TestConfirmRegistration_IssuesSession(t *testing.T) {
	f := newTestAccounts(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validRegistration("alex"))
	require.NoError(t, err)

	res, err := f.svc.ConfirmRegistration(ctx, user.ID, f.lastCode(t, user.Email))
	require.NoError(t, err)
	assert.True(t, res.User.IsEmailVerified)

	sess, err := f.tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)

	msg, _ := f.mails.Last()
	assert.Equal(t, mail.WelcomeMessage(user.Email, "alex").Subject, msg.Subject)

	_, err = f.svc.ConfirmRegistration(ctx, user.ID, "000000")
	assert.Equal(t, MsgAlreadyVerified, fieldMessage(t, err, "code"))
}

func TestResendCode_RateLimitedAfterFive(t *testing.T) {
	f := newTestAccounts(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validRegistration("alex"))
	require.NoError(t, err)

	for i := 1; i < model.MaxDailyCodes; i++ {
		require.NoError(t, f.svc.ResendCode(ctx, user.ID))
	}
	err = f.svc.ResendCode(ctx, user.ID)
	require.ErrorIs(t, err, apperror.ErrRateLimited)

	left, err := f.svc.AttemptsLeft(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, left)
	assert.Len(t, f.mails.Sent(), model.MaxDailyCodes)
}

func TestLogin(t *testing.T) {
	f := newTestAccounts(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validRegistration("alex"))
	require.NoError(t, err)

	t.Run("unverified", func(t *testing.T) {
		_, err := f.svc.Login(ctx, LoginInput{Email: user.Email, Password: "correct horse"})
		var unverified *UnverifiedError
		require.True(t, errors.As(err, &unverified))
		assert.Equal(t, user.ID, unverified.UserID)
		assert.Equal(t, MsgVerifyFirst, fieldMessage(t, err, "code"))
	})

	_, err = f.svc.ConfirmRegistration(ctx, user.ID, f.lastCode(t, user.Email))
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  bool
	}{
		{"ok", "alex@example.com", "correct horse", false},
		{"email case ignored", "Alex@Example.com", "correct horse", false},
		{"wrong password", "alex@example.com", "wrong horse", true},
		{"unknown email", "nobody@example.com", "correct horse", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Login(ctx, LoginInput{Email: tt.email, Password: tt.password})
			if tt.wantErr {
				assert.Equal(t, MsgBadCredentials, fieldMessage(t, err, "__all__"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, res.User.ID)
			assert.NotEmpty(t, res.Token)
		})
	}
}

func TestUpdateProfile_EmailChangeNeedsConfirmation(t *testing.T) {
	f := newTestAccounts(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validRegistration("alex"))
	require.NoError(t, err)
	_, err = f.svc.ConfirmRegistration(ctx, user.ID, f.lastCode(t, user.Email))
	require.NoError(t, err)

	res, err := f.svc.UpdateProfile(ctx, user.ID, ProfileInput{Username: "alexandra", Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", res.PendingEmail)

	// Username applies at once, email waits.
	stored, err := f.svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alexandra", stored.Username)
	assert.Equal(t, "alex@example.com", stored.Email)

	_, err = f.svc.ConfirmEmailChange(ctx, user.ID, "", f.lastCode(t, "new@example.com"))
	assert.Equal(t, MsgNoPendingEmail, fieldMessage(t, err, "code"))

	updated, err := f.svc.ConfirmEmailChange(ctx, user.ID, res.PendingEmail, f.lastCode(t, "new@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.True(t, updated.IsEmailVerified)
}

func TestUpdateProfile_SameEmailNoCode(t *testing.T) {
	f := newTestAccounts(t)
	ctx := context.Background()
	user := createUser(t, f.db, "alex", true)

	res, err := f.svc.UpdateProfile(ctx, user.ID, ProfileInput{Username: "lex", Email: user.Email})
	require.NoError(t, err)
	assert.Empty(t, res.PendingEmail)
	assert.Empty(t, f.mails.Sent())
}

func TestUpdateProfile_EmailTakenByOther(t *testing.T) {
	f := newTestAccounts(t)
	ctx := context.Background()
	alex := createUser(t, f.db, "alex", true)
	createUser(t, f.db, "sam", true)

	_, err := f.svc.UpdateProfile(ctx, alex.ID, ProfileInput{Username: "alex", Email: "sam@example.com"})
	assert.Equal(t, MsgEmailTaken, fieldMessage(t, err, "email"))
}

func TestProfile_RequiresUser(t *testing.T) {
	f := newTestAccounts(t)
	_, err := f.svc.Profile(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestLoginWithGitHub(t *testing.T) {
	f := newTestAccounts(t)
	ctx := context.Background()

	first, err := f.svc.LoginWithGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octo", AvatarURL: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "octo@users.noreply.github.com", first.User.Email)
	assert.True(t, first.User.IsEmailVerified)

	second, err := f.svc.LoginWithGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octo", AvatarURL: "a2"})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "a2", second.User.AvatarURL)

	_, err = f.svc.LoginWithGitHub(ctx, nil)
	assert.Error(t, err)
}
