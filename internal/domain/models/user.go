// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents every account on the platform: readers, writers,
// moderators, and admins.
//
// NOTE:
//   - Email is stored lowercased; NameCI holds the folded name for
//     case/diacritic-insensitive sorting and search.
//   - PasswordHash is nil for accounts created purely through a social
//     provider. Writes to it go through the users store's SetPassword so
//     saving other fields never rehashes.
//   - VerificationCode/VerificationCodeExpires are present only while an
//     email-verification cycle is pending.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name       string             `bson:"name" json:"name"`
	NameCI     string             `bson:"name_ci" json:"name_ci"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`     // lowercased; may be "" for social accounts
	ProfilePic string             `bson:"profile_pic,omitempty" json:"profile_pic,omitempty"`

	PasswordHash *string `bson:"password_hash,omitempty" json:"-"`

	// Social provider subject identifiers. At most one user may hold a
	// given (provider, id) pair; unique sparse indexes enforce this.
	GoogleID  *string `bson:"google_id,omitempty" json:"-"`
	TwitterID *string `bson:"twitter_id,omitempty" json:"-"`
	GitHubID  *string `bson:"github_id,omitempty" json:"-"`

	EmailVerified           bool       `bson:"email_verified" json:"email_verified"`
	VerificationCode        *string    `bson:"verification_code,omitempty" json:"-"`
	VerificationCodeExpires *time.Time `bson:"verification_code_expires,omitempty" json:"-"`

	Role   string `bson:"role" json:"role"`               // admin | moderator | user
	Status string `bson:"status,omitempty" json:"status"` // active | blocked | pending

	Bookmarks []primitive.ObjectID `bson:"bookmarks,omitempty" json:"bookmarks,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DefaultProfilePic is used when a signup or social profile supplies no
// avatar.
const DefaultProfilePic = "/images/default-user.png"

// ProviderID returns the stored subject id for the named provider, or nil.
func (u *User) ProviderID(provider string) *string {
	switch provider {
	case "google":
		return u.GoogleID
	case "twitter":
		return u.TwitterID
	case "github":
		return u.GitHubID
	}
	return nil
}
