// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	"github.com/rfmartin/paperpress/internal/app/system/authutil"
	"github.com/rfmartin/paperpress/internal/app/system/authz"
	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
	"github.com/rfmartin/paperpress/internal/app/system/viewdata"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// profileData is the view model for the profile page.
type profileData struct {
	viewdata.BaseVM

	// Account info (read-only display)
	FullName       string
	Email          string
	AvatarURL      string
	LinkedAccounts []string

	// Password section (only shown for accounts with a password)
	ShowPasswordSection bool
	PasswordRules       string

	// Authored and bookmarked posts
	OwnPosts  []models.Post
	Bookmarks []models.Post

	// Form state
	Error   template.HTML
	Success template.HTML
}

// ServeProfile renders the user's profile page.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		uierrors.RenderForbidden(w, r, "Account not found.", "/")
		return
	}

	own, err := h.Posts.ListByAuthor(ctx, uid)
	if err != nil {
		h.Log.Error("failed to list authored posts", zap.Error(err), zap.String("user_id", uid.Hex()))
	}

	var bookmarks []models.Post
	if len(user.Bookmarks) > 0 {
		bookmarks, err = h.Posts.GetByIDs(ctx, user.Bookmarks)
		if err != nil {
			h.Log.Error("failed to load bookmarked posts", zap.Error(err), zap.String("user_id", uid.Hex()))
		}
	}

	data := profileData{
		BaseVM:              viewdata.NewBaseVM(r, h.DB, "Profile", "/"),
		FullName:            user.Name,
		Email:               user.Email,
		AvatarURL:           user.ProfilePic,
		LinkedAccounts:      linkedAccounts(user),
		ShowPasswordSection: user.PasswordHash != nil,
		PasswordRules:       authutil.PasswordRules(),
		OwnPosts:            own,
		Bookmarks:           bookmarks,
	}

	if r.URL.Query().Get("success") == "password" {
		data.Success = "Password changed successfully."
	}

	templates.Render(w, r, "profile", data)
}

// HandleChangePassword processes the password change form.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/profile")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		uierrors.RenderForbidden(w, r, "Account not found.", "/")
		return
	}

	// Social-only accounts have no password to change.
	if user.PasswordHash == nil {
		h.renderProfileWithError(w, r, user, "Password change is only available for accounts with a password.")
		return
	}

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")
	confirmPassword := r.FormValue("confirm_password")

	if !authutil.CheckPassword(currentPassword, *user.PasswordHash) {
		h.renderProfileWithError(w, r, user, "Current password is incorrect.")
		return
	}

	if err := authutil.ValidatePassword(newPassword); err != nil {
		h.renderProfileWithError(w, r, user, err.Error())
		return
	}

	if newPassword != confirmPassword {
		h.renderProfileWithError(w, r, user, "New passwords do not match.")
		return
	}

	if authutil.CheckPassword(newPassword, *user.PasswordHash) {
		h.renderProfileWithError(w, r, user, "New password cannot be the same as your current password.")
		return
	}

	hash, err := authutil.HashPassword(newPassword)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "Failed to update password.", "/profile")
		return
	}

	if err := h.Users.SetPassword(ctx, uid, hash); err != nil {
		h.ErrLog.LogServerError(w, r, "update password failed", err, "Failed to update password.", "/profile")
		return
	}

	h.Log.Info("user changed password", zap.String("user_id", uid.Hex()))

	http.Redirect(w, r, "/profile?success=password", http.StatusSeeOther)
}

// HandleToggleBookmark adds or removes a post from the user's bookmarks.
func (h *Handler) HandleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/profile")
		return
	}

	postID, err := primitive.ObjectIDFromHex(r.FormValue("post_id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid post id", err, "Invalid post.", "/profile")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	added, err := h.Users.ToggleBookmark(ctx, uid, postID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "toggle bookmark failed", err, "Failed to update bookmarks.", "/profile")
		return
	}

	h.Log.Debug("bookmark toggled",
		zap.String("user_id", uid.Hex()),
		zap.String("post_id", postID.Hex()),
		zap.Bool("added", added))

	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// HandleToggleLike adds or removes the user's like on a post.
func (h *Handler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/profile")
		return
	}

	postID, err := primitive.ObjectIDFromHex(r.FormValue("post_id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid post id", err, "Invalid post.", "/profile")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	liked, err := h.Posts.ToggleLike(ctx, postID, uid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.LogBadRequest(w, r, "unknown post", err, "Post not found.", "/profile")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "toggle like failed", err, "Failed to update likes.", "/profile")
		return
	}

	h.Log.Debug("like toggled",
		zap.String("user_id", uid.Hex()),
		zap.String("post_id", postID.Hex()),
		zap.Bool("liked", liked))

	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// renderProfileWithError re-renders the profile page with a form error.
func (h *Handler) renderProfileWithError(w http.ResponseWriter, r *http.Request, user *models.User, msg string) {
	data := profileData{
		BaseVM:              viewdata.NewBaseVM(r, h.DB, "Profile", "/"),
		FullName:            user.Name,
		Email:               user.Email,
		AvatarURL:           user.ProfilePic,
		LinkedAccounts:      linkedAccounts(user),
		ShowPasswordSection: user.PasswordHash != nil,
		PasswordRules:       authutil.PasswordRules(),
		Error:               template.HTML(template.HTMLEscapeString(msg)),
	}
	templates.Render(w, r, "profile", data)
}

// linkedAccounts names the social providers attached to the account.
func linkedAccounts(u *models.User) []string {
	var names []string
	if u.GoogleID != nil {
		names = append(names, "Google")
	}
	if u.TwitterID != nil {
		names = append(names, "Twitter")
	}
	if u.GitHubID != nil {
		names = append(names, "GitHub")
	}
	return names
}
