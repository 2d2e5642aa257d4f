// internal/app/features/posts/posts.go
package posts

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	"github.com/rfmartin/paperpress/internal/app/system/authz"
	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
	"github.com/rfmartin/paperpress/internal/app/system/viewdata"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// postData is the view model for the post detail page.
type postData struct {
	viewdata.BaseVM

	Post     models.Post
	Content  template.HTML // sanitized at the store boundary
	Author   string
	IsAuthor bool
	Liked    bool
}

// formData is the view model for the compose and edit forms.
type formData struct {
	viewdata.BaseVM

	Editing    bool
	Post       models.Post
	TagsText   string
	Categories []models.Category
	Error      string
}

// ServePost renders one post with its comments. Drafts are visible to
// their author only; everyone else gets the not-found page so draft ids
// stay unguessable.
func (h *Handler) ServePost(w http.ResponseWriter, r *http.Request) {
	postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "postID"))
	if err != nil {
		uierrors.RenderNotFound(w, r, "That post doesn't exist or has been removed.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	post, err := h.Posts.GetByID(ctx, postID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderNotFound(w, r, "That post doesn't exist or has been removed.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load post failed", err, "Failed to load the post.", "/")
		return
	}

	_, _, uid, signedIn := authz.UserCtx(r)
	isAuthor := signedIn && post.AuthorID == uid

	if !post.Published && !isAuthor {
		uierrors.RenderNotFound(w, r, "That post doesn't exist or has been removed.")
		return
	}

	// Authors previewing their own work don't count as readers.
	if !isAuthor {
		if err := h.Posts.IncrementViews(ctx, postID); err != nil {
			h.Log.Warn("failed to count view", zap.Error(err), zap.String("post_id", postID.Hex()))
		} else {
			post.Views++
		}
	}

	author := ""
	if a, err := h.Users.GetByID(ctx, post.AuthorID); err == nil {
		author = a.Name
	}

	liked := false
	if signedIn {
		for _, id := range post.Likes {
			if id == uid {
				liked = true
				break
			}
		}
	}

	data := postData{
		BaseVM:   viewdata.NewBaseVM(r, h.DB, post.Title, "/"),
		Post:     *post,
		Content:  template.HTML(post.Content),
		Author:   author,
		IsAuthor: isAuthor,
		Liked:    liked,
	}

	templates.Render(w, r, "post", data)
}

// ServeCompose renders the new-post form.
func (h *Handler) ServeCompose(w http.ResponseWriter, r *http.Request) {
	if _, _, _, ok := authz.UserCtx(r); !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	data := formData{
		BaseVM:     viewdata.NewBaseVM(r, h.DB, "Write a post", "/profile"),
		Categories: h.listCategories(r),
	}
	templates.Render(w, r, "post_form", data)
}

// HandleCreate processes the new-post form.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/posts/new")
		return
	}

	post := postFromForm(r)
	if strings.TrimSpace(post.Title) == "" {
		h.renderFormWithError(w, r, false, post, "A title is required.")
		return
	}
	post.AuthorID = uid

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Posts.Create(ctx, post)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create post failed", err, "Failed to save the post.", "/posts/new")
		return
	}

	h.Log.Info("post created",
		zap.String("user_id", uid.Hex()),
		zap.String("post_id", created.ID.Hex()),
		zap.Bool("published", created.Published))

	http.Redirect(w, r, "/posts/"+created.ID.Hex(), http.StatusSeeOther)
}

// ServeEdit renders the edit form for the requester's own post.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownPost(w, r)
	if !ok {
		return
	}

	data := formData{
		BaseVM:     viewdata.NewBaseVM(r, h.DB, "Edit post", "/posts/"+post.ID.Hex()),
		Editing:    true,
		Post:       *post,
		TagsText:   strings.Join(post.Tags, ", "),
		Categories: h.listCategories(r),
	}
	templates.Render(w, r, "post_form", data)
}

// HandleUpdate processes the edit form for the requester's own post.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownPost(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/posts/"+post.ID.Hex())
		return
	}

	submitted := postFromForm(r)
	if strings.TrimSpace(submitted.Title) == "" {
		submitted.ID = post.ID
		h.renderFormWithError(w, r, true, submitted, "A title is required.")
		return
	}

	post.Title = submitted.Title
	post.Description = submitted.Description
	post.Content = submitted.Content
	post.CoverImage = submitted.CoverImage
	post.CategoryID = submitted.CategoryID
	post.Tags = submitted.Tags
	post.Published = submitted.Published

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Posts.Update(ctx, post); err != nil {
		h.ErrLog.LogServerError(w, r, "update post failed", err, "Failed to save the post.", "/posts/"+post.ID.Hex())
		return
	}

	h.Log.Info("post updated",
		zap.String("user_id", post.AuthorID.Hex()),
		zap.String("post_id", post.ID.Hex()))

	http.Redirect(w, r, "/posts/"+post.ID.Hex(), http.StatusSeeOther)
}

// HandleDelete removes the requester's own post.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownPost(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err := h.Posts.Delete(ctx, post.ID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.LogServerError(w, r, "delete post failed", err, "Failed to delete the post.", "/profile")
		return
	}

	h.Log.Info("post deleted",
		zap.String("user_id", post.AuthorID.Hex()),
		zap.String("post_id", post.ID.Hex()))

	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// ownPost loads the routed post and verifies the requester wrote it.
// On failure it has already written the response.
func (h *Handler) ownPost(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return nil, false
	}

	postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "postID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid post id", err, "Invalid post.", "/profile")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	post, err := h.Posts.GetByID(ctx, postID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderNotFound(w, r, "That post doesn't exist or has been removed.")
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load post failed", err, "Failed to load the post.", "/profile")
		return nil, false
	}

	if post.AuthorID != uid {
		uierrors.RenderForbidden(w, r, "Only the author can change this post.", "/posts/"+post.ID.Hex())
		return nil, false
	}

	return post, true
}

// renderFormWithError re-renders the compose or edit form with a message.
func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, editing bool, post models.Post, msg string) {
	title := "Write a post"
	if editing {
		title = "Edit post"
	}
	data := formData{
		BaseVM:     viewdata.NewBaseVM(r, h.DB, title, "/profile"),
		Editing:    editing,
		Post:       post,
		TagsText:   strings.Join(post.Tags, ", "),
		Categories: h.listCategories(r),
		Error:      msg,
	}
	templates.Render(w, r, "post_form", data)
}

// listCategories loads the category options for the forms. Failures are
// logged and the form renders without a category select.
func (h *Handler) listCategories(r *http.Request) []models.Category {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	cats, err := h.Categories.List(ctx)
	if err != nil {
		h.Log.Error("failed to list categories", zap.Error(err))
		return nil
	}
	return cats
}

// postFromForm reads the editable post fields out of a parsed form.
func postFromForm(r *http.Request) models.Post {
	p := models.Post{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Content:     r.FormValue("content"),
		CoverImage:  r.FormValue("cover_image"),
		Published:   r.FormValue("published") == "on",
		Tags:        parseTags(r.FormValue("tags")),
	}
	if id, err := primitive.ObjectIDFromHex(r.FormValue("category_id")); err == nil {
		p.CategoryID = &id
	}
	return p
}

// parseTags splits a comma-separated tag list, dropping empties.
func parseTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
