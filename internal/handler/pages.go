package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/service"
)

var contactFields = []string{"name", "email", "subject", "message"}

// PageHandler serves the public pages and the notification controls.
type PageHandler struct {
	site     *Site
	contact  *service.ContactService
	impact   *service.ImpactService
	notifier *service.NotificationService
}

func NewPageHandler(
	site *Site,
	contact *service.ContactService,
	impact *service.ImpactService,
	notifier *service.NotificationService,
) *PageHandler {
	return &PageHandler{site: site, contact: contact, impact: impact, notifier: notifier}
}

// Home is the landing page.
//
// HTTP: GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.site.page(w, r, http.StatusOK, "home", pageData{Title: "NoWasteMate"})
}

// ContactForm renders the contact form.
//
// HTTP: GET /contact/
func (h *PageHandler) ContactForm(w http.ResponseWriter, r *http.Request) {
	h.site.page(w, r, http.StatusOK, "contact", pageData{Title: "Contact us"})
}

// Contact stores a message for the administrators.
//
// HTTP: POST /contact/
func (h *PageHandler) Contact(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, "/contact/", levelError, "Invalid form submission.")
		return
	}

	msg := &model.ContactMessage{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Subject: r.PostFormValue("subject"),
		Message: r.PostFormValue("message"),
	}
	if err := h.contact.Submit(r.Context(), msg); err != nil {
		errs := fieldErrors(err)
		if errs == nil {
			h.site.failRedirect(w, r, err, "/contact/")
			return
		}
		h.site.page(w, r, http.StatusBadRequest, "contact", pageData{
			Title:  "Contact us",
			Form:   formValues(r, contactFields...),
			Errors: errs,
		})
		return
	}

	redirectWithFlash(w, r, "/contact/", levelSuccess, "Thank you for your message! We will get back to you soon.")
}

// Bar is one column of the 30-day chart. Percent is relative to the busiest
// day.
type Bar struct {
	Label   string
	Count   int
	Percent int
}

type impactView struct {
	Impact *model.Impact
	Bars   []Bar
}

func barsFor(daily []model.DailyCount) []Bar {
	peak := 0
	for _, d := range daily {
		peak = max(peak, d.Count)
	}
	out := make([]Bar, 0, len(daily))
	for _, d := range daily {
		b := Bar{Label: d.Day.Format("Jan 2"), Count: d.Count}
		if peak > 0 {
			b.Percent = d.Count * 100 / peak
		}
		out = append(out, b)
	}
	return out
}

// Impact is the public statistics page.
//
// HTTP: GET /impact/
func (h *PageHandler) Impact(w http.ResponseWriter, r *http.Request) {
	stats, err := h.impact.Impact(r.Context())
	if err != nil {
		h.site.logger.Error("loading impact", slog.String("error", err.Error()))
		h.Error(w, r, http.StatusInternalServerError, genericFailure)
		return
	}
	h.site.page(w, r, http.StatusOK, "impact", pageData{
		Title: "Our impact",
		Data:  impactView{Impact: stats, Bars: barsFor(stats.Daily)},
	})
}

// MarkNotificationsRead clears the caller's unread badge and returns to the
// page the form was posted from.
//
// HTTP: POST /notifications/mark-as-read/
func (h *PageHandler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
	if _, err := h.notifier.MarkAllRead(r.Context(), v.ID()); err != nil {
		h.site.failRedirect(w, r, err, "/dashboard/")
		return
	}
	http.Redirect(w, r, refererPath(r, "/dashboard/"), http.StatusSeeOther)
}

// refererPath returns the local path of the Referer header, or fallback.
func refererPath(r *http.Request, fallback string) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" {
		return fallback
	}
	if ref.Host != "" && ref.Host != r.Host {
		return fallback
	}
	to := ref.Path
	if ref.RawQuery != "" {
		to += "?" + ref.RawQuery
	}
	return safeNext(to, fallback)
}

// Error renders the error page with status.
func (h *PageHandler) Error(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.site.page(w, r, status, "error", pageData{Title: http.StatusText(status), Error: msg})
}

// NotFound is the router's fallback.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Error(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

// TooManyRequests is the rate limiter's denial response for form posts.
func (h *PageHandler) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	h.Error(w, r, http.StatusTooManyRequests, "Too many attempts. Please wait a minute and try again.")
}
