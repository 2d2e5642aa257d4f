// internal/app/store/categories/categorystore.go
package categorystore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/rfmartin/paperpress/internal/app/system/normalize"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateName is returned when a category with the same folded name or
// slug already exists.
var ErrDuplicateName = errors.New("category already exists")

var errEmptyName = errors.New("category name is required")

// Store provides access to the categories collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new category store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("categories")}
}

// Slugify converts a display name into a URL slug.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Create inserts a category. The slug is derived from the name.
func (s *Store) Create(ctx context.Context, name string) (models.Category, error) {
	name = normalize.Name(name)
	if name == "" {
		return models.Category{}, errEmptyName
	}

	now := time.Now().UTC()
	cat := models.Category{
		Name:      name,
		NameCI:    text.Fold(name),
		Slug:      Slugify(name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.c.InsertOne(ctx, cat)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Category{}, ErrDuplicateName
		}
		return models.Category{}, err
	}
	cat.ID = res.InsertedID.(primitive.ObjectID)
	return cat, nil
}

// GetBySlug returns the category with the given slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var cat models.Category
	if err := s.c.FindOne(ctx, bson.M{"slug": slug}).Decode(&cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// List returns all categories sorted by name.
func (s *Store) List(ctx context.Context) ([]models.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var cats []models.Category
	if err := cur.All(ctx, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// Delete removes a category. Posts keep their dangling category_id; views
// treat an unknown category as uncategorized.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
