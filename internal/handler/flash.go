package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookie = "flash"

// Flash levels, used as CSS class suffixes.
const (
	levelSuccess = "success"
	levelInfo    = "info"
	levelWarning = "warning"
	levelError   = "error"
)

// Flash is a one-shot status message shown on the next rendered page.
type Flash struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// setFlash stores a message for the page after the next redirect.
func setFlash(w http.ResponseWriter, level, text string) {
	raw, err := json.Marshal([]Flash{{Level: level, Text: text}})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes reads and clears pending messages. A malformed cookie is
// dropped silently.
func popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	cookie, err := r.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var out []Flash
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// redirectWithFlash is the standard ending of a mutating handler.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, to, level, text string) {
	setFlash(w, level, text)
	http.Redirect(w, r, to, http.StatusSeeOther)
}
