// internal/app/features/profile/routes.go
package profile

import (
	"github.com/go-chi/chi/v5"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireVerified)
		pr.Get("/", h.ServeProfile)
		pr.Post("/password", h.HandleChangePassword)
		pr.Post("/bookmarks", h.HandleToggleBookmark)
		pr.Post("/likes", h.HandleToggleLike)
	})

	return r
}
