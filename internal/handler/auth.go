package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler serves token login/logout and the optional GitHub OAuth flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleTokenLogin     → check email + password, return a token
//   - HandleTokenLogout    → clear the token cookie
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, log in or register, set the cookie
//
// DEPENDENCY CHAIN:
//   - auth   *service.AuthService   → verifies credentials, issues JWTs
//   - github *auth.GitHubProvider   → performs the OAuth code exchange (nil when not configured)
type AuthHandler struct {
	auth      *service.AuthService
	github    *auth.GitHubProvider
	cookieTTL time.Duration
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieTTL should match the token
// lifetime so the browser drops the cookie when the token expires.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	cookieTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:      authService,
		github:    github,
		cookieTTL: cookieTTL,
		logger:    logger,
	}
}

// HandleTokenLogin exchanges credentials for a token.
//
// HTTP: POST /api/auth/token/login/
// REQUEST BODY: {"email": "...", "password": "..."}
// RESPONSE:     {"auth_token": "<jwt>"}
//
// Clients send the token back as "Authorization: Token <jwt>".
func (h *AuthHandler) HandleTokenLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_token": result.Token})
}

// HandleTokenLogout ends the session.
//
// HTTP: POST /api/auth/token/logout/
//
// Tokens are stateless JWTs, so "logout" deletes the cookie. A token the
// client copied elsewhere stays valid until it expires.
func (h *AuthHandler) HandleTokenLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Log into the linked account, or create one
//  4. Store the JWT in an HttpOnly cookie
//  5. Redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
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

	// --- Step 3: Log in or register ---
	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 4: Issue JWT cookie ---
	// HttpOnly = JavaScript cannot read this cookie (XSS protection).
	// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	// --- Step 5: Redirect to the app ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
