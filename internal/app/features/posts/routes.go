// internal/app/features/posts/routes.go
package posts

import (
	"github.com/go-chi/chi/v5"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/{postID}", h.ServePost)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireVerified)
		pr.Get("/new", h.ServeCompose)
		pr.Post("/new", h.HandleCreate)
		pr.Get("/{postID}/edit", h.ServeEdit)
		pr.Post("/{postID}/edit", h.HandleUpdate)
		pr.Post("/{postID}/delete", h.HandleDelete)
		pr.Post("/{postID}/comments", h.HandleAddComment)
		pr.Post("/{postID}/comment-upvotes", h.HandleToggleCommentUpvote)
	})

	return r
}
