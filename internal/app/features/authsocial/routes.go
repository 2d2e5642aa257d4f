// internal/app/features/authsocial/routes.go
package authsocial

import "github.com/go-chi/chi/v5"

// Routes returns the router for the social sign-in endpoints.
// These routes are public (no authentication required).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// GET /auth/{provider} - Initiate the provider's OAuth flow
	r.Get("/{provider}", h.ServeBegin)

	// GET /auth/{provider}/callback - Handle the provider's OAuth callback
	r.Get("/{provider}/callback", h.ServeCallback)

	return r
}
