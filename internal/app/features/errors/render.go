// internal/app/features/errors/render.go
package errors

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	nav "github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
)

// RenderUnauthorized shows the sign-in-required page. An empty backURL
// sends the reader to /login.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, backURL string) {
	if backURL == "" {
		backURL = "/login"
	}
	renderAccessError(w, r, "Sign in required", "Please sign in to continue.", backURL)
}

// RenderForbidden shows the access-denied page with msg. An empty backURL
// falls back to a safe referrer, then /.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if backURL == "" {
		backURL = nav.ResolveBackURL(r, "/")
	}
	renderAccessError(w, r, "Access denied", msg, backURL)
}

// RenderNotFound shows the not-found page with a 404 status. Handlers use
// it when a routed id doesn't resolve to a record.
func RenderNotFound(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = "The page you're looking for doesn't exist or has moved."
	}
	role, name := "", ""
	u, signed := auth.CurrentUser(r)
	if signed && u != nil {
		role, name = u.Role, u.Name
	}

	w.WriteHeader(http.StatusNotFound)
	templates.Render(w, r, "error_page", pageData{
		Title:      "Page not found",
		IsLoggedIn: signed,
		Role:       role,
		UserName:   name,
		Message:    msg,
		BackURL:    "/",
	})
}

func renderAccessError(w http.ResponseWriter, r *http.Request, title, msg, backURL string) {
	role, name := "", ""
	u, signed := auth.CurrentUser(r)
	if signed && u != nil {
		role, name = u.Role, u.Name
	}

	templates.Render(w, r, "error_forbidden", pageData{
		Title:      title,
		IsLoggedIn: signed,
		Role:       role,
		UserName:   name,
		Message:    msg,
		BackURL:    backURL,
	})
}
