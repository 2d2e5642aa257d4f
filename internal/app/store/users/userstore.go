// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rfmartin/paperpress/internal/app/system/normalize"
	"github.com/rfmartin/paperpress/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when a create violates the unique
	// index on email.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrDuplicateProvider is returned when a create violates a unique
	// provider-id index.
	ErrDuplicateProvider = errors.New("this provider identity is already linked to a user")

	errBadRole   = errors.New(`role must be "admin"|"moderator"|"user"`)
	errBadStatus = errors.New(`status must be "active"|"blocked"|"pending"`)
)

// GetByID loads a user by ObjectID. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns
// mongo.ErrNoDocuments if not found. An empty email never matches
// (federated accounts without an email all store "").
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalize.Email(email)
	if email == "" {
		return nil, mongo.ErrNoDocuments
	}
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByProvider looks up a user by (provider, external id). Returns
// mongo.ErrNoDocuments if not found.
func (s *Store) GetByProvider(ctx context.Context, provider, externalID string) (*models.User, error) {
	field, ok := providerField(provider)
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{field: externalID}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing & validating fields.
// The unique indexes on email and the provider ids are the arbiters for
// concurrent creates; their violations come back as ErrDuplicateEmail /
// ErrDuplicateProvider.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Email = normalize.Email(u.Email)
	if u.ProfilePic == "" {
		u.ProfilePic = models.DefaultProfilePic
	}
	if u.Role == "" {
		u.Role = "user"
	}
	if u.Status == "" {
		u.Status = "active"
	}

	switch normalize.Role(u.Role) {
	case "admin", "moderator", "user":
		// ok
	default:
		return models.User{}, errBadRole
	}

	switch normalize.Status(u.Status) {
	case "active", "blocked", "pending":
		// ok
	default:
		return models.User{}, errBadStatus
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, classifyDup(err)
		}
		return models.User{}, err
	}
	return u, nil
}

// Save updates profile fields only. It never touches the password hash or
// the verification-code fields; those have dedicated write paths so a
// profile save cannot rehash a password or disturb a pending verification
// cycle.
func (s *Store) Save(ctx context.Context, u *models.User) error {
	set := bson.M{
		"name":        normalize.Name(u.Name),
		"name_ci":     text.Fold(u.Name),
		"profile_pic": u.ProfilePic,
		"updated_at":  time.Now().UTC(),
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": set})
	return err
}

// SetPassword hashes are written only through this method; the hash is
// computed by the caller (authutil) so the store stays mechanical.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	}})
	return err
}

// SetVerified marks an account's email as verified without touching any
// pending code (federated upgrade path).
func (s *Store) SetVerified(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"email_verified": true,
		"updated_at":     time.Now().UTC(),
	}})
	return err
}

// SetVerificationCode stores a fresh code and expiry on the account.
func (s *Store) SetVerificationCode(ctx context.Context, id primitive.ObjectID, code string, expires time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"verification_code":         code,
		"verification_code_expires": expires,
		"updated_at":                time.Now().UTC(),
	}})
	return err
}

// MarkEmailVerified flips the account to verified and clears the pending
// code in one write, so a verified account never carries a live code.
func (s *Store) MarkEmailVerified(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"email_verified": true,
			"updated_at":     time.Now().UTC(),
		},
		"$unset": bson.M{
			"verification_code":         "",
			"verification_code_expires": "",
		},
	})
	return err
}

// ToggleBookmark adds the post to the user's bookmarks if absent, removes
// it if present, and reports whether it is bookmarked afterwards.
func (s *Store) ToggleBookmark(ctx context.Context, userID, postID primitive.ObjectID) (bool, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	bookmarked := false
	for _, id := range u.Bookmarks {
		if id == postID {
			bookmarked = true
			break
		}
	}

	var update bson.M
	if bookmarked {
		update = bson.M{"$pull": bson.M{"bookmarks": postID}}
	} else {
		update = bson.M{"$addToSet": bson.M{"bookmarks": postID}}
	}
	if _, err := s.c.UpdateOne(ctx, bson.M{"_id": userID}, update); err != nil {
		return false, err
	}
	return !bookmarked, nil
}

// SetStatus is the administrative block/unblock write.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	switch normalize.Status(status) {
	case "active", "blocked", "pending":
		// ok
	default:
		return errBadStatus
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     normalize.Status(status),
		"updated_at": time.Now().UTC(),
	}})
	return err
}

func providerField(provider string) (string, bool) {
	switch normalize.Provider(provider) {
	case "google":
		return "google_id", true
	case "twitter":
		return "twitter_id", true
	case "github":
		return "github_id", true
	}
	return "", false
}

// classifyDup decides which unique index a duplicate-key error violated.
// The driver surfaces the index name in the error text.
func classifyDup(err error) error {
	msg := err.Error()
	for _, field := range []string{"google_id", "twitter_id", "github_id"} {
		if strings.Contains(msg, field) {
			return ErrDuplicateProvider
		}
	}
	return ErrDuplicateEmail
}
