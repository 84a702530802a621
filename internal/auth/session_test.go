package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_IssueThenRead(t *testing.T) {
	s := NewSessions(newTestTokenService(t), false)

	rr := httptest.NewRecorder()
	require.NoError(t, s.Issue(rr, "acct-1"))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(time.Hour.Seconds()), cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	id, ok := s.AccountID(req)
	assert.True(t, ok)
	assert.Equal(t, "acct-1", id)
}

func TestSessions_AccountIDRejectsBadCookies(t *testing.T) {
	ts := newTestTokenService(t)
	s := NewSessions(ts, false)
	expired, _ := ts.GenerateWithDuration("acct-1", -time.Minute)

	for name, value := range map[string]string{
		"expired": expired,
		"garbage": "abc",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: value})
			_, ok := s.AccountID(req)
			assert.False(t, ok)
		})
	}

	_, ok := s.AccountID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok, "no cookie")
}

func TestSessions_Clear(t *testing.T) {
	s := NewSessions(newTestTokenService(t), true)
	rr := httptest.NewRecorder()
	s.Clear(rr)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
}
