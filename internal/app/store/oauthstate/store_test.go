package oauthstate_test

import (
	"testing"
	"time"

	"github.com/rfmartin/paperpress/internal/app/store/oauthstate"
	"github.com/rfmartin/paperpress/internal/testutil"
)

func TestSaveAndConsume(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	expires := time.Now().UTC().Add(10 * time.Minute)
	if err := store.Save(ctx, "state-abc", "google", "/bookmarks", "pkce-verifier-abc", expires); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	returnURL, verifier, valid, err := store.Consume(ctx, "state-abc", "google")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !valid {
		t.Fatal("expected state to be valid")
	}
	if returnURL != "/bookmarks" {
		t.Errorf("expected return URL %q, got %q", "/bookmarks", returnURL)
	}
	if verifier != "pkce-verifier-abc" {
		t.Errorf("expected verifier to round-trip, got %q", verifier)
	}

	// One-time use: second consume fails.
	_, _, valid, err = store.Consume(ctx, "state-abc", "google")
	if err != nil {
		t.Fatalf("second Consume failed: %v", err)
	}
	if valid {
		t.Error("expected consumed state to be invalid")
	}
}

func TestConsume_WrongProvider(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	expires := time.Now().UTC().Add(10 * time.Minute)
	if err := store.Save(ctx, "state-xyz", "github", "", "pkce-verifier-xyz", expires); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, _, valid, err := store.Consume(ctx, "state-xyz", "google")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if valid {
		t.Error("state issued for github must not validate for google")
	}

	// Still consumable by the right provider.
	_, _, valid, err = store.Consume(ctx, "state-xyz", "github")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !valid {
		t.Error("expected state to remain valid for its own provider")
	}
}

func TestConsume_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	expired := time.Now().UTC().Add(-time.Minute)
	if err := store.Save(ctx, "state-old", "google", "", "", expired); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, _, valid, err := store.Consume(ctx, "state-old", "google")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if valid {
		t.Error("expected expired state to be invalid")
	}
}

func TestConsume_Unknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, _, valid, err := store.Consume(ctx, "never-saved", "google")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if valid {
		t.Error("expected unknown state to be invalid")
	}
}

func TestCleanupExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	if err := store.Save(ctx, "live", "google", "", "", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, "dead", "google", "", "", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	removed, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	_, _, valid, err := store.Consume(ctx, "live", "google")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !valid {
		t.Error("live state must survive cleanup")
	}
}
