// internal/app/features/posts/comments.go
package posts

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	"github.com/rfmartin/paperpress/internal/app/system/authz"
	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// HandleAddComment appends a comment to a post. The commenter's display
// name is denormalized onto the comment at the store.
func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	_, name, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/")
		return
	}

	postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "postID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid post id", err, "Invalid post.", "/")
		return
	}

	text := strings.TrimSpace(r.FormValue("text"))
	if text == "" {
		h.ErrLog.LogBadRequest(w, r, "empty comment", nil, "Comment text is required.", "/posts/"+postID.Hex())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	comment, err := h.Posts.AddComment(ctx, postID, uid, name, text)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderNotFound(w, r, "That post doesn't exist or has been removed.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "add comment failed", err, "Failed to save the comment.", "/posts/"+postID.Hex())
		return
	}

	h.Log.Debug("comment added",
		zap.String("user_id", uid.Hex()),
		zap.String("post_id", postID.Hex()),
		zap.String("comment_id", comment.ID.Hex()))

	http.Redirect(w, r, "/posts/"+postID.Hex()+"#comments", http.StatusSeeOther)
}

// HandleToggleCommentUpvote adds or removes the user's upvote on a comment.
func (h *Handler) HandleToggleCommentUpvote(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/")
		return
	}

	postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "postID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid post id", err, "Invalid post.", "/")
		return
	}

	commentID, err := primitive.ObjectIDFromHex(r.FormValue("comment_id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid comment id", err, "Invalid comment.", "/posts/"+postID.Hex())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	upvoted, err := h.Posts.ToggleCommentUpvote(ctx, postID, commentID, uid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.LogBadRequest(w, r, "unknown comment", err, "Comment not found.", "/posts/"+postID.Hex())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "toggle comment upvote failed", err, "Failed to update the comment.", "/posts/"+postID.Hex())
		return
	}

	h.Log.Debug("comment upvote toggled",
		zap.String("user_id", uid.Hex()),
		zap.String("post_id", postID.Hex()),
		zap.String("comment_id", commentID.Hex()),
		zap.Bool("upvoted", upvoted))

	http.Redirect(w, r, "/posts/"+postID.Hex()+"#comments", http.StatusSeeOther)
}
