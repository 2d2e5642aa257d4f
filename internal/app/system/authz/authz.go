// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "visitor", "", NilObjectID, false. This ensures callers can trust that
// ok=true means a valid, authenticated user with a valid ObjectID.
// The role is normalized to lowercase for consistent comparison.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// UserID returns the current user's ObjectID, or NilObjectID if not signed in.
func UserID(r *http.Request) primitive.ObjectID {
	_, _, id, ok := UserCtx(r)
	if !ok {
		return primitive.NilObjectID
	}
	return id
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == "admin"
}

// IsModerator reports whether the current request's user is specifically a moderator.
func IsModerator(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == "moderator"
}

// CanModerate reports whether the current request's user can moderate content.
// Admins can do everything a moderator can.
func CanModerate(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && (role == "admin" || role == "moderator")
}

// IsVerified reports whether the current request's user has a verified email.
func IsVerified(r *http.Request) bool {
	user, ok := auth.CurrentUser(r)
	return ok && user.Verified
}
