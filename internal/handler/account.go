package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/auth"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/service"
)

// Signed cookies that stand in for server-side session state between
// two steps of a flow.
const (
	pendingVerificationCookie = "pending_verification"
	pendingEmailCookie        = "pending_email"
	oauthStateCookie          = "oauth_state"

	pendingLifetime = 30 * time.Minute

	msgNoPendingVerification = "No pending verification found. Please register again."
)

// AccountHandler runs registration, verification, sign-in and profile
// changes, plus the optional GitHub OAuth flow.
type AccountHandler struct {
	accounts *service.AccountService
	jar      *auth.TokenJar
	github   *auth.GitHubProvider // nil when OAuth is not configured
	secure   bool
	logger   *slog.Logger
}

func NewAccountHandler(
	accounts *service.AccountService,
	jar *auth.TokenJar,
	github *auth.GitHubProvider,
	secure bool,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		jar:      jar,
		github:   github,
		secure:   secure,
		logger:   logger,
	}
}

type userEnvelope struct {
	Success      bool        `json:"success"`
	User         *model.User `json:"user,omitempty"`
	PendingEmail string      `json:"pending_email,omitempty"`
	AttemptsLeft *int        `json:"attempts_left,omitempty"`
	Message      string      `json:"message,omitempty"`
}

// HandleRegister answers POST /accounts/register. The new user id goes
// into the pending_verification cookie for the verify step.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username:        r.FormValue("username"),
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password1"),
		PasswordConfirm: r.FormValue("password2"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.jar.Set(w, pendingVerificationCookie, user.ID, pendingLifetime); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userEnvelope{
		Success: true,
		Message: "A verification code has been sent to your email.",
	})
}

// HandleVerify answers POST /accounts/verify with the emailed code.
func (h *AccountHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pendingUser(w, r)
	if !ok {
		return
	}

	res, err := h.accounts.ConfirmRegistration(r.Context(), userID, r.FormValue("code"))
	if err != nil {
		h.writeWithAttempts(w, r, userID, err)
		return
	}
	h.jar.Clear(w, pendingVerificationCookie)
	h.setSession(w, res.Token)
	writeJSON(w, http.StatusOK, userEnvelope{Success: true, User: res.User})
}

// HandleResend answers POST /accounts/verify/resend.
func (h *AccountHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pendingUser(w, r)
	if !ok {
		return
	}
	if err := h.accounts.ResendCode(r.Context(), userID); err != nil {
		h.writeWithAttempts(w, r, userID, err)
		return
	}
	left, err := h.accounts.AttemptsLeft(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{
		Success:      true,
		AttemptsLeft: &left,
		Message:      "A new verification code has been sent to your email.",
	})
}

// HandleLogin answers POST /accounts/login. An unverified account gets
// the pending cookie so it can go straight to the verify step.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	res, err := h.accounts.Login(r.Context(), service.LoginInput{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	})
	if err != nil {
		var unverified *service.UnverifiedError
		if errors.As(err, &unverified) {
			if setErr := h.jar.Set(w, pendingVerificationCookie, unverified.UserID, pendingLifetime); setErr != nil {
				h.logger.Warn("setting pending verification cookie failed", slog.String("error", setErr.Error()))
			}
		}
		writeError(w, err)
		return
	}
	h.setSession(w, res.Token)
	writeJSON(w, http.StatusOK, userEnvelope{Success: true, User: res.User})
}

// HandleLogout clears the session cookie. The JWT stays valid until it
// expires, but the browser no longer sends it.
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, userEnvelope{Success: true, Message: "logged out"})
}

// HandleMe answers GET /accounts/me behind RequireAuth.
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{Success: true, User: user})
}

// HandleProfile answers POST /accounts/profile. A changed email is held
// in the pending_email cookie until confirmed.
func (h *AccountHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	res, err := h.accounts.UpdateProfile(r.Context(), userID, service.ProfileInput{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if res.PendingEmail != "" {
		if err := h.jar.Set(w, pendingEmailCookie, res.PendingEmail, pendingLifetime); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, userEnvelope{Success: true, User: res.User, PendingEmail: res.PendingEmail})
}

// HandleConfirmEmail answers POST /accounts/email/confirm.
func (h *AccountHandler) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var pending string
	if err := h.jar.Get(r, pendingEmailCookie, &pending); err != nil {
		pending = ""
	}
	user, err := h.accounts.ConfirmEmailChange(r.Context(), userID, pending, r.FormValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.jar.Clear(w, pendingEmailCookie)
	writeJSON(w, http.StatusOK, userEnvelope{Success: true, User: user})
}

// ===== GITHUB OAUTH =====

// HandleGitHubLogin redirects to GitHub. A random state goes into a
// short-lived cookie and must come back unchanged on the callback.
func (h *AccountHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback checks state, exchanges the code, signs the user
// in and redirects home.
func (h *AccountHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	res, err := h.accounts.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setSession(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ===== HELPERS =====

func (h *AccountHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// pendingUser reads the pending_verification cookie and answers 400 on
// its own when there is none.
func (h *AccountHandler) pendingUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	var userID string
	if err := h.jar.Get(r, pendingVerificationCookie, &userID); err != nil || userID == "" {
		writeError(w, apperror.ValidationFailed("", msgNoPendingVerification))
		return "", false
	}
	return userID, true
}

// writeWithAttempts adds the remaining daily attempts to a failed verify
// or resend, as the verify form shows them.
func (h *AccountHandler) writeWithAttempts(w http.ResponseWriter, r *http.Request, userID string, err error) {
	fields := apperror.FieldErrors(err)
	if fields == nil && !errors.Is(err, apperror.ErrRateLimited) {
		writeError(w, err)
		return
	}
	left, leftErr := h.accounts.AttemptsLeft(r.Context(), userID)
	if leftErr != nil {
		writeError(w, err)
		return
	}

	body := struct {
		ErrorResponse
		AttemptsLeft int `json:"attempts_left"`
	}{AttemptsLeft: left}
	status := statusFor(err)
	if fields != nil {
		body.Errors = fields
	} else {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			body.Error = appErr.Message
		}
	}
	writeJSON(w, status, body)
}
