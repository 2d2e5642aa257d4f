package testutil

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// FixturePassword is the plaintext password behind every fixture user's
// hash, for tests that drive the login path.
const FixturePassword = "correct horse battery staple"

var (
	fixtureHashOnce sync.Once
	fixtureHash     string
)

// fixturePasswordHash returns the bcrypt hash of FixturePassword, computed
// once per test binary at MinCost to keep fixture creation fast.
func fixturePasswordHash(t *testing.T) string {
	t.Helper()
	fixtureHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(FixturePassword), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("failed to hash fixture password: %v", err)
		}
		fixtureHash = string(h)
	})
	return fixtureHash
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a verified local-account user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	hash := fixturePasswordHash(f.t)
	user := models.User{
		ID:            primitive.NewObjectID(),
		Name:          name,
		NameCI:        text.Fold(name),
		Email:         email,
		PasswordHash:  &hash,
		ProfilePic:    models.DefaultProfilePic,
		EmailVerified: true,
		Role:          role,
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateUnverifiedUser creates a local-account user still pending email
// verification, holding the given code.
func (f *Fixtures) CreateUnverifiedUser(ctx context.Context, name, email, code string, expires time.Time) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	hash := fixturePasswordHash(f.t)
	user := models.User{
		ID:                      primitive.NewObjectID(),
		Name:                    name,
		NameCI:                  text.Fold(name),
		Email:                   email,
		PasswordHash:            &hash,
		ProfilePic:              models.DefaultProfilePic,
		EmailVerified:           false,
		VerificationCode:        &code,
		VerificationCodeExpires: &expires,
		Role:                    "user",
		Status:                  "active",
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create unverified test user: %v", err)
	}
	return user
}

// CreateFederatedUser creates a user bound to a provider identity, with no
// password hash.
func (f *Fixtures) CreateFederatedUser(ctx context.Context, name, email, provider, externalID string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:            primitive.NewObjectID(),
		Name:          name,
		NameCI:        text.Fold(name),
		Email:         email,
		ProfilePic:    models.DefaultProfilePic,
		EmailVerified: true,
		Role:          "user",
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	switch provider {
	case "google":
		user.GoogleID = &externalID
	case "twitter":
		user.TwitterID = &externalID
	case "github":
		user.GitHubID = &externalID
	default:
		f.t.Fatalf("unknown provider %q", provider)
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create federated test user: %v", err)
	}
	return user
}

// CreateAdmin creates a verified admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, "admin")
}

// CreateBlockedUser creates a user with blocked status.
func (f *Fixtures) CreateBlockedUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:            primitive.NewObjectID(),
		Name:          name,
		NameCI:        text.Fold(name),
		Email:         email,
		ProfilePic:    models.DefaultProfilePic,
		EmailVerified: true,
		Role:          "user",
		Status:        "blocked",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create blocked test user: %v", err)
	}
	return user
}

// CreatePost creates a published post by the given author.
func (f *Fixtures) CreatePost(ctx context.Context, title string, authorID primitive.ObjectID) models.Post {
	f.t.Helper()

	now := time.Now().UTC()
	post := models.Post{
		ID:        primitive.NewObjectID(),
		Title:     title,
		TitleCI:   text.Fold(title),
		Content:   "<p>Test post body.</p>",
		AuthorID:  authorID,
		Published: true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("posts").InsertOne(ctx, post); err != nil {
		f.t.Fatalf("failed to create test post: %v", err)
	}
	return post
}

// CreateCategory creates a category with the given name.
func (f *Fixtures) CreateCategory(ctx context.Context, name string) models.Category {
	f.t.Helper()

	now := time.Now().UTC()
	cat := models.Category{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Slug:      strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("categories").InsertOne(ctx, cat); err != nil {
		f.t.Fatalf("failed to create test category: %v", err)
	}
	return cat
}
