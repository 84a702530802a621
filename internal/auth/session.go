package auth

import (
	"net/http"
)

// SessionCookie is the name of the HttpOnly cookie carrying the session JWT.
const SessionCookie = "token"

// Sessions reads and writes the session cookie.
//
// Handlers do not look the caller up from request context. They ask Sessions
// for the account ID and pass the resolved identity on explicitly.
type Sessions struct {
	tokens *TokenService
	secure bool
}

// NewSessions creates a Sessions. secure sets the Secure cookie attribute and
// should be true whenever the site is served over HTTPS.
func NewSessions(tokens *TokenService, secure bool) *Sessions {
	return &Sessions{tokens: tokens, secure: secure}
}

// Issue signs a token for accountID and stores it in the session cookie.
func (s *Sessions) Issue(w http.ResponseWriter, accountID string) error {
	token, err := s.tokens.Generate(accountID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear deletes the session cookie. Tokens are stateless, so logging out
// only removes the browser's copy.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// AccountID returns the account ID of a valid session cookie. A missing,
// expired or tampered cookie yields ("", false).
func (s *Sessions) AccountID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	id, err := s.tokens.Validate(cookie.Value)
	if err != nil {
		return "", false
	}
	return id, true
}
