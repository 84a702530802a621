package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/auth"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/service"
)

// ViewerHandler is a handler that runs only for a resolved caller.
type ViewerHandler func(w http.ResponseWriter, r *http.Request, v *model.Viewer)

// pageData is what every template receives.
type pageData struct {
	Title         string
	Viewer        *model.Viewer
	Flashes       []Flash
	Notifications *model.NotificationSummary
	// Form echoes submitted values back into a re-rendered form.
	Form   map[string]string
	Errors map[string]string
	Error  string
	Data   any
}

// Site is shared by all page handlers: rendering, sessions and the
// authorization gate.
type Site struct {
	renderer      *Renderer
	sessions      *auth.Sessions
	gate          *auth.Gate
	notifications *service.NotificationService
	logger        *slog.Logger
}

func NewSite(
	renderer *Renderer,
	sessions *auth.Sessions,
	gate *auth.Gate,
	notifications *service.NotificationService,
	logger *slog.Logger,
) *Site {
	return &Site{
		renderer:      renderer,
		sessions:      sessions,
		gate:          gate,
		notifications: notifications,
		logger:        logger,
	}
}

// resolve returns the caller behind the session cookie, if any. The error is
// from auth.Gate.Resolve; an administrator comes back with a Viewer and
// apperror.ErrProfileMissing.
func (s *Site) resolve(r *http.Request) (*model.Viewer, error) {
	id, _ := s.sessions.AccountID(r)
	return s.gate.Resolve(r.Context(), id)
}

// optionalViewer is resolve for public pages: any failure means anonymous,
// except that administrators still show as logged in.
func (s *Site) optionalViewer(r *http.Request) *model.Viewer {
	v, err := s.resolve(r)
	if err != nil && !errors.Is(err, apperror.ErrProfileMissing) {
		return nil
	}
	return v
}

// page renders name with the layout data filled in. A nil pd.Viewer is
// resolved from the session.
func (s *Site) page(w http.ResponseWriter, r *http.Request, status int, name string, pd pageData) {
	if pd.Viewer == nil {
		pd.Viewer = s.optionalViewer(r)
	}
	pd.Flashes = append(popFlashes(w, r), pd.Flashes...)
	if pd.Viewer != nil {
		summary, err := s.notifications.Summary(r.Context(), pd.Viewer.ID())
		if err != nil {
			s.logger.Warn("loading notifications", slog.String("error", err.Error()))
		} else {
			pd.Notifications = summary
		}
	}
	s.renderer.Render(w, status, name, pd)
}

// RequireViewer runs next only for a logged-in member.
//
//   - no or stale session: redirect to /login/ with ?next=
//   - administrator: redirect home with a pointer to the admin CLI
//   - account without profile: redirect home with an error
func (s *Site) RequireViewer(next ViewerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.resolve(r)
		switch {
		case err == nil:
			next(w, r, v)
		case errors.Is(err, apperror.ErrUnauthenticated):
			if _, err := r.Cookie(auth.SessionCookie); err == nil {
				s.sessions.Clear(w)
			}
			to := "/login/?next=" + url.QueryEscape(r.URL.RequestURI())
			redirectWithFlash(w, r, to, levelInfo, apperror.MessageOf(err, "Please log in to continue."))
		case errors.Is(err, apperror.ErrProfileMissing) && v != nil && v.Account.IsAdmin:
			redirectWithFlash(w, r, "/", levelInfo,
				"Admin accounts have no dashboard. Use the nowastemate-admin command to manage the site.")
		case errors.Is(err, apperror.ErrProfileMissing):
			redirectWithFlash(w, r, "/", levelError,
				"Your user profile is not set up correctly. Please contact support.")
		default:
			s.failRedirect(w, r, err, "/")
		}
	}
}

// RequireRole is RequireViewer plus a role check. A mismatch redirects to
// the dashboard without running next.
func (s *Site) RequireRole(role model.Role, next ViewerHandler) http.HandlerFunc {
	return s.RequireViewer(func(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
		if err := s.gate.Authorize(v, role); err != nil {
			s.failRedirect(w, r, err, "/dashboard/")
			return
		}
		next(w, r, v)
	})
}

// safeNext accepts only local absolute paths, so a crafted ?next= cannot
// redirect off-site.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

// formValues copies the named fields of a parsed form for re-rendering.
func formValues(r *http.Request, names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = r.FormValue(n)
	}
	return out
}
