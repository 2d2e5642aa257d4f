package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"github.com/rfmartin/paperpress/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testUserID returns a valid ObjectID hex string for tests.
func testUserID() string {
	return primitive.NewObjectID().Hex()
}

func TestIsAdmin_True_ForAdmin(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: "admin",
	})

	if !authz.IsAdmin(req) {
		t.Error("expected IsAdmin to return true for admin user")
	}
}

func TestIsAdmin_False_ForModerator(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: "moderator",
	})

	if authz.IsAdmin(req) {
		t.Error("expected IsAdmin to return false for moderator user")
	}
}

func TestIsAdmin_False_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	if authz.IsAdmin(req) {
		t.Error("expected IsAdmin to return false when no user")
	}
}

func TestCanModerate(t *testing.T) {
	cases := []struct {
		role string
		want bool
	}{
		{"admin", true},
		{"Admin", true},
		{"moderator", true},
		{"user", false},
		{"visitor", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/test", nil)
		req = auth.WithTestUser(req, &auth.SessionUser{
			ID:   testUserID(),
			Role: tc.role,
		})
		if got := authz.CanModerate(req); got != tc.want {
			t.Errorf("CanModerate with role %q = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestIsModerator_ExcludesAdmin(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: "admin",
	})

	if authz.IsModerator(req) {
		t.Error("expected IsModerator to return false for admin user")
	}
}

func TestUserCtx_ValidUser(t *testing.T) {
	id := testUserID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   id,
		Name: "Marta Reyes",
		Role: "User",
	})

	role, name, userID, ok := authz.UserCtx(req)
	if !ok {
		t.Fatal("expected ok=true for valid user")
	}
	if role != "user" {
		t.Errorf("role = %q, want lowercased %q", role, "user")
	}
	if name != "Marta Reyes" {
		t.Errorf("name = %q, want %q", name, "Marta Reyes")
	}
	if userID.Hex() != id {
		t.Errorf("userID = %s, want %s", userID.Hex(), id)
	}
}

func TestUserCtx_MalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   "not-a-valid-objectid",
		Role: "admin",
	})

	role, _, userID, ok := authz.UserCtx(req)
	if ok {
		t.Error("expected ok=false for malformed user ID")
	}
	if role != "visitor" {
		t.Errorf("role = %q, want %q", role, "visitor")
	}
	if !userID.IsZero() {
		t.Errorf("userID = %s, want NilObjectID", userID.Hex())
	}
}

func TestUserCtx_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	role, name, userID, ok := authz.UserCtx(req)
	if ok {
		t.Error("expected ok=false when no user in context")
	}
	if role != "visitor" || name != "" || !userID.IsZero() {
		t.Errorf("got (%q, %q, %s), want (visitor, empty, nil)", role, name, userID.Hex())
	}
}

func TestUserID(t *testing.T) {
	id := testUserID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: id, Role: "user"})

	if got := authz.UserID(req).Hex(); got != id {
		t.Errorf("UserID = %s, want %s", got, id)
	}

	anon := httptest.NewRequest("GET", "/test", nil)
	if !authz.UserID(anon).IsZero() {
		t.Error("expected NilObjectID for anonymous request")
	}
}

func TestHasAnyRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: "moderator",
	})

	if !authz.HasAnyRole(req, "admin", "moderator") {
		t.Error("expected HasAnyRole(admin, moderator) to match moderator")
	}
	if authz.HasAnyRole(req, "admin", "user") {
		t.Error("expected HasAnyRole(admin, user) to not match moderator")
	}
}

func TestRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: testUserID(), Role: "Admin"})

	role, ok := authz.Role(req)
	if !ok || role != "admin" {
		t.Errorf("Role = (%q, %v), want (admin, true)", role, ok)
	}

	anon := httptest.NewRequest("GET", "/test", nil)
	if _, ok := authz.Role(anon); ok {
		t.Error("expected no role for anonymous request")
	}
}

func TestIsVerified(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:       testUserID(),
		Role:     "user",
		Verified: true,
	})
	if !authz.IsVerified(req) {
		t.Error("expected IsVerified to return true")
	}

	pending := httptest.NewRequest("GET", "/test", nil)
	pending = auth.WithTestUser(pending, &auth.SessionUser{
		ID:   testUserID(),
		Role: "user",
	})
	if authz.IsVerified(pending) {
		t.Error("expected IsVerified to return false for unverified user")
	}
}
