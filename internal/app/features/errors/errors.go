// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

// pageData is the view model for error pages.
type pageData struct {
	viewdata.BaseVM
	Status  int
	Message string
}

// Handler serves the static error pages.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden renders the "access denied" page.
// GET /forbidden
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	RenderForbidden(w, r, "", "")
}

// Unauthorized renders the "sign in required" page.
// GET /unauthorized
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	RenderUnauthorized(w, r, "")
}

// RenderUnauthorized shows the sign-in-required page. backURL defaults to /login.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, backURL string) {
	data := pageData{
		BaseVM:  viewdata.NewBaseVM(r, "Sign in required", "/login"),
		Status:  http.StatusUnauthorized,
		Message: "Please sign in to continue.",
	}
	if backURL != "" {
		data.BackURL = backURL
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	templates.Render(w, r, "error_unauthorized", data)
}

// RenderForbidden shows the access-denied page with msg.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if msg == "" {
		msg = "You don't have permission to view this page."
	}
	data := pageData{
		BaseVM:  viewdata.NewBaseVM(r, "Access denied", "/"),
		Status:  http.StatusForbidden,
		Message: msg,
	}
	if backURL != "" {
		data.BackURL = backURL
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("HX-Reswap", "none")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(msg))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	templates.Render(w, r, "error_forbidden", data)
}
