// internal/app/store/settings/settingsstore.go
package settingsstore

import (
	"context"

	"github.com/rfmartin/paperpress/internal/app/system/normalize"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Defaults applied when no settings document has been saved yet.
const (
	DefaultSiteTitle = "PaperPress"
	DefaultUserRole  = "user"
)

// Store provides access to the site_settings singleton document.
type Store struct {
	c *mongo.Collection
}

// New creates a new settings store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("site_settings")}
}

// Get returns the site settings, or defaults when none have been saved.
// Registration is open by default.
func (s *Store) Get(ctx context.Context) (models.SiteSettings, error) {
	var settings models.SiteSettings
	err := s.c.FindOne(ctx, bson.M{}).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		return models.SiteSettings{
			SiteTitle:         DefaultSiteTitle,
			AllowRegistration: true,
			DefaultUserRole:   DefaultUserRole,
		}, nil
	}
	if err != nil {
		return models.SiteSettings{}, err
	}
	if settings.DefaultUserRole == "" {
		settings.DefaultUserRole = DefaultUserRole
	}
	return settings, nil
}

// Save updates the site settings. Uses upsert so it works whether the
// document exists or not.
func (s *Store) Save(ctx context.Context, settings models.SiteSettings) error {
	role := normalize.Role(settings.DefaultUserRole)
	if role == "" {
		role = DefaultUserRole
	}

	update := bson.M{
		"$set": bson.M{
			"site_title":         settings.SiteTitle,
			"site_description":   settings.SiteDescription,
			"logo_url":           settings.LogoURL,
			"contact_email":      normalize.Email(settings.ContactEmail),
			"allow_registration": settings.AllowRegistration,
			"default_user_role":  role,
		},
		"$setOnInsert": bson.M{
			"_id": primitive.NewObjectID(),
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, bson.M{}, update, opts)
	return err
}
