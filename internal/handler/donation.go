package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/service"
)

// pickupLayout is what <input type="datetime-local"> submits.
const pickupLayout = "2006-01-02T15:04"

var donationFields = []string{"food_item", "quantity", "category", "pickup_location", "pickup_by"}

// DonationHandler serves the dashboards and the donation lifecycle.
type DonationHandler struct {
	site      *Site
	donations *service.DonationService
}

func NewDonationHandler(site *Site, donations *service.DonationService) *DonationHandler {
	return &DonationHandler{site: site, donations: donations}
}

// Dashboard shows the donor or NGO dashboard depending on the caller's role.
//
// HTTP: GET /dashboard/
func (h *DonationHandler) Dashboard(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
	switch v.Role() {
	case model.RoleDonor:
		data, err := h.donations.ForDonor(r.Context(), v)
		if err != nil {
			h.site.failRedirect(w, r, err, "/")
			return
		}
		h.site.page(w, r, http.StatusOK, "donor_dashboard", pageData{Title: "Donor dashboard", Viewer: v, Data: data})
	case model.RoleNGO:
		data, err := h.donations.ForNGO(r.Context(), v)
		if err != nil {
			h.site.failRedirect(w, r, err, "/")
			return
		}
		h.site.page(w, r, http.StatusOK, "ngo_dashboard", pageData{Title: "NGO dashboard", Viewer: v, Data: data})
	default:
		redirectWithFlash(w, r, "/", levelError, "Your user profile is not set up correctly. Please contact support.")
	}
}

// PostForm renders the empty donation form.
//
// HTTP: GET /donate/
func (h *DonationHandler) PostForm(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
	h.site.page(w, r, http.StatusOK, "post_donation", pageData{Title: "Donate food", Viewer: v})
}

// Post creates a donation and notifies approved NGOs.
//
// HTTP: POST /donate/
func (h *DonationHandler) Post(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, "/donate/", levelError, "Invalid form submission.")
		return
	}

	in := service.PostInput{
		FoodItem:       r.PostFormValue("food_item"),
		Quantity:       r.PostFormValue("quantity"),
		Category:       model.Category(r.PostFormValue("category")),
		PickupLocation: r.PostFormValue("pickup_location"),
	}
	pickup, err := parsePickup(r.PostFormValue("pickup_by"))
	if err != nil {
		h.postFailed(w, r, v, err)
		return
	}
	in.PickupBy = pickup

	if _, err := h.donations.Post(r.Context(), v, in); err != nil {
		h.postFailed(w, r, v, err)
		return
	}

	redirectWithFlash(w, r, "/dashboard/", levelSuccess, "Your donation has been posted successfully!")
}

func (h *DonationHandler) postFailed(w http.ResponseWriter, r *http.Request, v *model.Viewer, err error) {
	errs := fieldErrors(err)
	if errs == nil {
		h.site.failRedirect(w, r, err, "/donate/")
		return
	}
	h.site.page(w, r, http.StatusBadRequest, "post_donation", pageData{
		Title:   "Donate food",
		Viewer:  v,
		Form:    formValues(r, donationFields...),
		Errors:  errs,
		Flashes: []Flash{{Level: levelError, Text: "Please correct the errors below."}},
	})
}

// parsePickup reads a datetime-local value as UTC. An empty value is left
// for the service to reject as a missing field.
func parsePickup(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(pickupLayout, raw, time.UTC)
	if err != nil {
		// also accept a full RFC 3339 timestamp
		if t2, err2 := time.Parse(time.RFC3339, raw); err2 == nil {
			return t2.UTC(), nil
		}
		return time.Time{}, apperror.ValidationFailed("pickup_by", "Enter a valid date and time.")
	}
	return t, nil
}

// Browse lists available donations with optional filters.
//
// HTTP: GET /donations/?keyword=&category=&location=
func (h *DonationHandler) Browse(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
	q := r.URL.Query()
	f := service.BrowseFilter{
		Keyword:  q.Get("keyword"),
		Category: model.Category(q.Get("category")),
		Location: q.Get("location"),
	}

	list, err := h.donations.Browse(r.Context(), v, f)
	if err != nil {
		h.site.failRedirect(w, r, err, "/dashboard/")
		return
	}

	h.site.page(w, r, http.StatusOK, "view_donations", pageData{
		Title:  "Available donations",
		Viewer: v,
		Form:   map[string]string{"keyword": f.Keyword, "category": string(f.Category), "location": f.Location},
		Data:   list,
	})
}

// Claim reserves an available donation for the calling NGO.
//
// HTTP: POST /donations/claim/{id}/
func (h *DonationHandler) Claim(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
	d, err := h.donations.Claim(r.Context(), v, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrConflict) {
			redirectWithFlash(w, r, "/donations/", levelError, "This donation is no longer available.")
			return
		}
		h.site.failRedirect(w, r, err, "/donations/")
		return
	}

	redirectWithFlash(w, r, "/dashboard/", levelSuccess,
		fmt.Sprintf("You have successfully claimed the donation: '%s'.", d.FoodItem))
}

// Complete marks the caller's claimed donation as handed over.
//
// HTTP: POST /donations/complete/{id}/
func (h *DonationHandler) Complete(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
	d, err := h.donations.Complete(r.Context(), v, chi.URLParam(r, "id"))
	if err != nil {
		h.site.failRedirect(w, r, err, "/dashboard/")
		return
	}

	redirectWithFlash(w, r, "/dashboard/", levelSuccess,
		fmt.Sprintf("Donation '%s' marked as completed. You can now review the NGO.", d.FoodItem))
}
