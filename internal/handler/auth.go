package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/auth"
	"github.com/sakif/nowastemate/internal/service"
)

const stateCookie = "oauth_state"

// GitHubOAuth is the part of auth.GitHubProvider the handler uses.
type GitHubOAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// GitHubHandler runs the optional "Sign in with GitHub" flow.
//
//   - HandleLogin    → redirect to GitHub with a CSRF state cookie
//   - HandleCallback → check state, exchange the code, sign in the matching
//     approved account
//
// GitHub sign-in never registers anyone; it links to an existing account
// by email on first use.
type GitHubHandler struct {
	site     *Site
	github   GitHubOAuth
	accounts *service.AccountService
}

func NewGitHubHandler(site *Site, github GitHubOAuth, accounts *service.AccountService) *GitHubHandler {
	return &GitHubHandler{site: site, github: github, accounts: accounts}
}

// HandleLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
func (h *GitHubHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *GitHubHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.site.logger.Warn("github callback: state mismatch")
		redirectWithFlash(w, r, "/login/", levelError, "GitHub sign-in failed. Please try again.")
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.site.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		redirectWithFlash(w, r, "/login/", levelInfo, "GitHub sign-in was cancelled.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		redirectWithFlash(w, r, "/login/", levelError, "GitHub sign-in failed. Please try again.")
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.site.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		redirectWithFlash(w, r, "/login/", levelError, "GitHub sign-in failed. Please try again.")
		return
	}

	account, err := h.accounts.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		if !isExpected(err) {
			h.site.logger.Error("github callback: sign-in failed", slog.String("error", err.Error()))
		}
		redirectWithFlash(w, r, "/login/", levelError, apperror.MessageOf(err, genericFailure))
		return
	}

	if err := h.site.sessions.Issue(w, account.ID); err != nil {
		h.site.logger.Error("github callback: issuing session", slog.String("error", err.Error()))
		redirectWithFlash(w, r, "/login/", levelError, genericFailure)
		return
	}

	redirectWithFlash(w, r, "/dashboard/", levelInfo, "Welcome back, "+account.Username+"!")
}
