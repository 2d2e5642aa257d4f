package categorystore_test

import (
	"errors"
	"testing"

	categorystore "github.com/rfmartin/paperpress/internal/app/store/categories"
	"github.com/rfmartin/paperpress/internal/app/system/indexes"
	"github.com/rfmartin/paperpress/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tech", "tech"},
		{"Food & Drink", "food-drink"},
		{"  Daily  Life  ", "daily-life"},
		{"C++ Tips", "c-tips"},
		{"2026 Review", "2026-review"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := categorystore.Slugify(tc.in); got != tc.want {
				t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCreateAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := categorystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, "Food & Drink")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Slug != "food-drink" {
		t.Errorf("expected derived slug, got %q", created.Slug)
	}

	if _, err := store.Create(ctx, "Tech"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	cats, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}

	found, err := store.GetBySlug(ctx, "food-drink")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if found.ID != created.ID {
		t.Error("expected to resolve the created category")
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	store := categorystore.New(db)

	if _, err := store.Create(ctx, "Tech"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Case variants fold to the same name.
	_, err := store.Create(ctx, "TECH")
	if !errors.Is(err, categorystore.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := categorystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, "Doomed")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetBySlug(ctx, "doomed"); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments after delete, got %v", err)
	}
}
