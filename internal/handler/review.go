package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/service"
)

type ReviewHandler struct {
	site    *Site
	reviews *service.ReviewService
}

func NewReviewHandler(site *Site, reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{site: site, reviews: reviews}
}

// Form shows the review form for the counterpart of a completed donation.
//
// HTTP: GET /review/add/{id}/
func (h *ReviewHandler) Form(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
	target, err := h.reviews.Target(r.Context(), v, chi.URLParam(r, "id"))
	if err != nil {
		h.site.failRedirect(w, r, err, "/dashboard/")
		return
	}
	h.site.page(w, r, http.StatusOK, "add_review", pageData{
		Title:  "Leave a review",
		Viewer: v,
		Form:   map[string]string{"rating": strconv.Itoa(model.MaxRating)},
		Data:   target,
	})
}

// Submit stores the review. A bad rating or comment re-renders the form; a
// second review of the same donation goes back to the dashboard.
//
// HTTP: POST /review/add/{id}/
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request, v *model.Viewer) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, "/review/add/"+id+"/", levelError, "Invalid form submission.")
		return
	}

	// a non-number falls through to the range check as 0
	rating, _ := strconv.Atoi(r.PostFormValue("rating"))
	_, err := h.reviews.Submit(r.Context(), v, id, rating, r.PostFormValue("comment"))
	if err == nil {
		redirectWithFlash(w, r, "/dashboard/", levelSuccess, "Thank you for your review!")
		return
	}

	if errs := fieldErrors(err); errs != nil {
		target, terr := h.reviews.Target(r.Context(), v, id)
		if terr != nil {
			h.site.failRedirect(w, r, terr, "/dashboard/")
			return
		}
		h.site.page(w, r, http.StatusBadRequest, "add_review", pageData{
			Title:  "Leave a review",
			Viewer: v,
			Form:   formValues(r, "rating", "comment"),
			Errors: errs,
			Data:   target,
		})
		return
	}

	h.site.failRedirect(w, r, err, "/dashboard/")
}
