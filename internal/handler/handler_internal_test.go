package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/web"
)

func TestFlash_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/donate/", nil)
	redirectWithFlash(rec, req, "/dashboard/", levelSuccess, "Your donation has been posted successfully!")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/", rec.Header().Get("Location"))

	next := httptest.NewRequest(http.MethodGet, "/dashboard/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}

	rec2 := httptest.NewRecorder()
	got := popFlashes(rec2, next)
	require.Len(t, got, 1)
	assert.Equal(t, Flash{Level: levelSuccess, Text: "Your donation has been posted successfully!"}, got[0])

	cleared := rec2.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, flashCookie, cleared[0].Name)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestFlash_MalformedCookieIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: "%%%not-base64"})

	assert.Nil(t, popFlashes(httptest.NewRecorder(), req))
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/dashboard/"},
		{"/donations/?keyword=rice", "/donations/?keyword=rice"},
		{"https://evil.example.com/", "/dashboard/"},
		{"//evil.example.com/", "/dashboard/"},
		{"/\\evil.example.com", "/dashboard/"},
		{"dashboard/", "/dashboard/"},
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			assert.Equal(t, tt.want, safeNext(tt.next, "/dashboard/"))
		})
	}
}

func TestRefererPath(t *testing.T) {
	tests := []struct {
		name    string
		referer string
		want    string
	}{
		{"missing", "", "/dashboard/"},
		{"same host", "http://example.com/donations/?category=bakery", "/donations/?category=bakery"},
		{"relative", "/impact/", "/impact/"},
		{"other host", "http://evil.example.com/steal", "/dashboard/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://example.com/notifications/mark-as-read/", nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			assert.Equal(t, tt.want, refererPath(req, "/dashboard/"))
		})
	}
}

func TestFlashFor(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantText  string
	}{
		{"validation", apperror.ValidationFailed("rating", "Rating must be between 1 and 5."), levelWarning, "Rating must be between 1 and 5."},
		{"conflict", apperror.Conflict("You have already reviewed this donation."), levelWarning, "You have already reviewed this donation."},
		{"not found", apperror.NotFound("donation", "x"), levelError, "The requested item could not be found."},
		{"forbidden", apperror.Forbidden("You can only complete your own donations."), levelError, "You can only complete your own donations."},
		{"unknown", io.ErrUnexpectedEOF, levelError, genericFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, text := flashFor(tt.err)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestParsePickup(t *testing.T) {
	got, err := parsePickup("2030-05-01T18:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 5, 1, 18, 30, 0, 0, time.UTC), got)

	got, err = parsePickup("2030-05-01T18:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 5, 1, 16, 30, 0, 0, time.UTC), got)

	got, err = parsePickup("  ")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parsePickup("tomorrow")
	require.ErrorIs(t, err, apperror.ErrValidation)
}

func TestBarsFor(t *testing.T) {
	day := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := barsFor([]model.DailyCount{
		{Day: day, Count: 0},
		{Day: day.AddDate(0, 0, 1), Count: 2},
		{Day: day.AddDate(0, 0, 2), Count: 4},
	})

	require.Len(t, bars, 3)
	assert.Equal(t, Bar{Label: "Jan 1", Count: 0, Percent: 0}, bars[0])
	assert.Equal(t, 50, bars[1].Percent)
	assert.Equal(t, 100, bars[2].Percent)

	for _, b := range barsFor([]model.DailyCount{{Day: day}}) {
		assert.Zero(t, b.Percent)
	}
}

func TestRenderer_EmbeddedTemplates(t *testing.T) {
	r, err := NewRenderer(web.Templates(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusBadRequest, "contact", pageData{
		Title:  "Contact us",
		Form:   map[string]string{"name": "Ada <script>"},
		Errors: map[string]string{"email": "Please enter a valid email address."},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Please enter a valid email address.")
	assert.Contains(t, body, "Ada &lt;script&gt;")
	assert.False(t, strings.Contains(body, "<script>"))
}

func TestRenderer_UnknownPage(t *testing.T) {
	r, err := NewRenderer(web.Templates(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "nope", pageData{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
