// internal/domain/models/sitesettings.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// SiteSettings is a singleton document controlling site-wide behavior.
// Mutated only through the admin surface; the auth flows read it to decide
// whether signups are open and which role new accounts receive.
type SiteSettings struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SiteTitle       string             `bson:"site_title,omitempty" json:"site_title,omitempty"`
	SiteDescription string             `bson:"site_description,omitempty" json:"site_description,omitempty"`
	LogoURL         string             `bson:"logo_url,omitempty" json:"logo_url,omitempty"`
	ContactEmail    string             `bson:"contact_email,omitempty" json:"contact_email,omitempty"`

	AllowRegistration bool   `bson:"allow_registration" json:"allow_registration"`
	DefaultUserRole   string `bson:"default_user_role,omitempty" json:"default_user_role,omitempty"` // user | moderator | admin
}
