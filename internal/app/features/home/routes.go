package home

import "github.com/go-chi/chi/v5"

// Routes returns the subrouter for the public feed, mounted at the site
// root.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeRoot)
	return r
}
