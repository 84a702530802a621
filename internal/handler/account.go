package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/service"
)

// AccountHandler serves registration, password login and logout.
type AccountHandler struct {
	site     *Site
	accounts *service.AccountService
	// githubEnabled shows the GitHub button on the login page.
	githubEnabled bool
}

func NewAccountHandler(site *Site, accounts *service.AccountService, githubEnabled bool) *AccountHandler {
	return &AccountHandler{site: site, accounts: accounts, githubEnabled: githubEnabled}
}

var registerFields = []string{"username", "email", "phone_number", "role"}

// HandleRegisterForm renders the form. ?role=donor|ngo preselects the role.
//
// HTTP: GET /register/
func (h *AccountHandler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	form := map[string]string{}
	if role := model.Role(r.URL.Query().Get("role")); role.Valid() {
		form["role"] = string(role)
	}
	h.site.page(w, r, http.StatusOK, "register", pageData{Title: "Register", Form: form})
}

// HandleRegister creates an unapproved account.
//
// HTTP: POST /register/
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.site.page(w, r, http.StatusBadRequest, "register", pageData{Title: "Register", Error: "Invalid form submission."})
		return
	}

	_, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirm"),
		PhoneNumber:     r.PostFormValue("phone_number"),
		Role:            model.Role(r.PostFormValue("role")),
	})
	if err != nil {
		h.registerFailed(w, r, err)
		return
	}

	redirectWithFlash(w, r, "/login/", levelSuccess, "Registration successful! Please wait for admin approval.")
}

func (h *AccountHandler) registerFailed(w http.ResponseWriter, r *http.Request, err error) {
	pd := pageData{
		Title:   "Register",
		Form:    formValues(r, registerFields...),
		Flashes: []Flash{{Level: levelError, Text: "Registration failed. Please correct the errors below."}},
	}
	var appErr *apperror.AppError
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
		if errors.As(err, &appErr) && appErr.Field != "" {
			pd.Errors = map[string]string{appErr.Field: appErr.Message}
		} else {
			pd.Error = apperror.MessageOf(err, genericFailure)
		}
		h.site.page(w, r, http.StatusBadRequest, "register", pd)
	default:
		h.site.logger.Error("registration failed", slog.String("error", err.Error()))
		pd.Flashes = []Flash{{Level: levelError, Text: genericFailure}}
		h.site.page(w, r, http.StatusInternalServerError, "register", pd)
	}
}

// HandleLoginForm renders the login page. A logged-in member goes straight
// to the dashboard.
//
// HTTP: GET /login/
func (h *AccountHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	if v, err := h.site.resolve(r); err == nil && v != nil {
		http.Redirect(w, r, "/dashboard/", http.StatusSeeOther)
		return
	}
	h.site.page(w, r, http.StatusOK, "login", pageData{
		Title: "Log in",
		Form:  map[string]string{"next": r.URL.Query().Get("next")},
		Data:  h.githubEnabled,
	})
}

// HandleLogin verifies credentials and starts a session. Unapproved accounts
// are refused here and nowhere else.
//
// HTTP: POST /login/
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.loginFailed(w, r, http.StatusBadRequest, "Invalid form submission.")
		return
	}

	account, err := h.accounts.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if isExpected(err) {
			h.loginFailed(w, r, http.StatusUnauthorized, apperror.MessageOf(err, "Invalid username or password."))
			return
		}
		h.site.logger.Error("login failed", slog.String("error", err.Error()))
		h.loginFailed(w, r, http.StatusInternalServerError, genericFailure)
		return
	}

	if err := h.site.sessions.Issue(w, account.ID); err != nil {
		h.site.logger.Error("issuing session", slog.String("error", err.Error()))
		h.loginFailed(w, r, http.StatusInternalServerError, genericFailure)
		return
	}

	to := safeNext(r.PostFormValue("next"), "/dashboard/")
	redirectWithFlash(w, r, to, levelInfo, fmt.Sprintf("Welcome back, %s!", account.Username))
}

func (h *AccountHandler) loginFailed(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.site.page(w, r, status, "login", pageData{
		Title: "Log in",
		Form:  formValues(r, "username", "next"),
		Error: msg,
		Data:  h.githubEnabled,
	})
}

// HandleLogout ends the session.
//
// HTTP: POST /logout/
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.site.sessions.Clear(w)
	redirectWithFlash(w, r, "/", levelInfo, "You have successfully logged out.")
}
