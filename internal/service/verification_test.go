package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository/sqlite"
)

func newTestVerification(t *testing.T) (*VerificationService, *sqlite.DB, *clock) {
	t.Helper()
	db := newTestDB(t)
	svc := NewVerificationService(db.Verifications(), discardLogger())
	c := &clock{t: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)}
	svc.now = c.Now
	return svc, db, c
}

func fieldMessage(t *testing.T, err error, field string) string {
	t.Helper()
	require.ErrorIs(t, err, apperror.ErrValidation)
	msgs := apperror.FieldErrors(err)[field]
	require.NotEmpty(t, msgs, "no message for %q in %v", field, err)
	return msgs[0]
}

func TestCreateCode_FormatAndExpiry(t *testing.T) {
	svc, db, c := newTestVerification(t)
	u := createUser(t, db, "alex", false)

	v, err := svc.CreateCode(context.Background(), u.ID)
	require.NoError(t, err)

	assert.True(t, isCode(v.Code), "code %q", v.Code)
	assert.Equal(t, c.Now().Add(model.CodeLifetime), v.ExpiresAt)
	assert.False(t, v.IsUsed)
}

func TestCreateCode_DailyLimit(t *testing.T) {
	svc, db, c := newTestVerification(t)
	u := createUser(t, db, "alex", false)
	ctx := context.Background()

	for i := 0; i < model.MaxDailyCodes; i++ {
		_, err := svc.CreateCode(ctx, u.ID)
		require.NoError(t, err, "issue %d", i+1)
	}

	left, err := svc.AttemptsLeft(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	v, err := svc.CreateCode(ctx, u.ID)
	assert.Nil(t, v)
	require.ErrorIs(t, err, apperror.ErrRateLimited)
	assert.Equal(t, MsgCodeLimit, err.Error())

	// The counter is per UTC day.
	c.Advance(24 * time.Hour)
	_, err = svc.CreateCode(ctx, u.ID)
	require.NoError(t, err)

	left, err = svc.AttemptsLeft(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MaxDailyCodes-1, left)
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		code    func(issued string) string
		advance time.Duration
		wantMsg string
	}{
		{"letters", func(string) string { return "12a456" }, 0, MsgCodeDigits},
		{"too short", func(string) string { return "12345" }, 0, MsgCodeDigits},
		{"wrong code", func(issued string) string { return flipDigit(issued) }, 0, MsgCodeInvalid},
		{"expired", func(issued string) string { return issued }, model.CodeLifetime + time.Second, MsgCodeExpired},
		{"ok at expiry", func(issued string) string { return issued }, model.CodeLifetime, ""},
		{"ok with spaces", func(issued string) string { return " " + issued + " " }, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, c := newTestVerification(t)
			u := createUser(t, db, "alex", false)
			ctx := context.Background()

			v, err := svc.CreateCode(ctx, u.ID)
			require.NoError(t, err)
			c.Advance(tt.advance)

			err = svc.Verify(ctx, u.ID, tt.code(v.Code))
			got, getErr := db.Users().GetByID(ctx, u.ID)
			require.NoError(t, getErr)

			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.True(t, got.IsEmailVerified)
				return
			}
			assert.Equal(t, tt.wantMsg, fieldMessage(t, err, "code"))
			assert.False(t, got.IsEmailVerified)
		})
	}
}

func TestVerify_CodeIsSingleUse(t *testing.T) {
	svc, db, _ := newTestVerification(t)
	u := createUser(t, db, "alex", false)
	ctx := context.Background()

	v, err := svc.CreateCode(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, u.ID, v.Code))

	err = svc.Verify(ctx, u.ID, v.Code)
	assert.Equal(t, MsgCodeInvalid, fieldMessage(t, err, "code"))
}

func TestVerify_OtherUsersCode(t *testing.T) {
	svc, db, _ := newTestVerification(t)
	alex := createUser(t, db, "alex", false)
	sam := createUser(t, db, "sam", false)
	ctx := context.Background()

	v, err := svc.CreateCode(ctx, alex.ID)
	require.NoError(t, err)

	err = svc.Verify(ctx, sam.ID, v.Code)
	assert.Equal(t, MsgCodeInvalid, fieldMessage(t, err, "code"))
}

func TestVerify_RepositoryFailure(t *testing.T) {
	svc, db, _ := newTestVerification(t)
	u := createUser(t, db, "alex", false)
	require.NoError(t, db.Close())

	err := svc.Verify(context.Background(), u.ID, "123456")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrValidation))
}

func TestProperty_GeneratedCodesAreSixDigits(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every generated code is six ascii digits", prop.ForAll(
		func(_ int) bool {
			code, err := generateCode()
			return err == nil && isCode(code)
		},
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func flipDigit(code string) string {
	b := []byte(code)
	b[0] = '0' + (b[0]-'0'+1)%10
	return string(b)
}
