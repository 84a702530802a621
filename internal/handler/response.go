package handler

// ERROR MAPPING:
// Services return apperror values. Nothing here writes a status code for
// them; the site is HTML only. Each error becomes either
//
//   - an inline field message on a re-rendered form (validation), or
//   - a flash message on the page the browser is redirected to.
//
// Unknown errors are logged and shown as a generic message. Their text may
// contain SQL or file paths and is never sent to the browser.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/nowastemate/internal/apperror"
)

const genericFailure = "Something went wrong. Please try again."

// flashFor picks the flash level and text for err.
func flashFor(err error) (level, text string) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return levelError, genericFailure
	}

	switch {
	case errors.Is(err, apperror.ErrValidation),
		errors.Is(err, apperror.ErrConflict):
		return levelWarning, appErr.Message
	case errors.Is(err, apperror.ErrNotFound):
		return levelError, "The requested item could not be found."
	case errors.Is(err, apperror.ErrForbidden),
		errors.Is(err, apperror.ErrRoleMismatch),
		errors.Is(err, apperror.ErrUnapproved),
		errors.Is(err, apperror.ErrUnauthenticated),
		errors.Is(err, apperror.ErrProfileMissing):
		return levelError, appErr.Message
	}
	return levelError, genericFailure
}

// isExpected reports whether err is a domain outcome rather than a fault.
func isExpected(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}

// fieldErrors turns a validation error into the form's error map.
func fieldErrors(err error) map[string]string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrValidation) && appErr.Field != "" {
		return map[string]string{appErr.Field: appErr.Message}
	}
	return nil
}

// failRedirect logs unexpected errors and redirects to with a flash.
func (s *Site) failRedirect(w http.ResponseWriter, r *http.Request, err error, to string) {
	if !isExpected(err) {
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	level, text := flashFor(err)
	redirectWithFlash(w, r, to, level, text)
}
