package login_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	"github.com/rfmartin/paperpress/internal/app/features/login"
	userstore "github.com/rfmartin/paperpress/internal/app/store/users"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"github.com/rfmartin/paperpress/internal/app/system/identity"
	"github.com/rfmartin/paperpress/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*login.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	errLog := uierrors.NewErrorLogger(logger)

	sessionMgr, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}

	engine := identity.New(userstore.New(db), logger)
	handler := login.NewHandler(db, sessionMgr, errLog, engine, nil, nil, logger)
	fixtures := testutil.NewFixtures(t, db)
	return handler, fixtures
}

func postLogin(t *testing.T, handler *login.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	handler.HandleLoginPost(rec, req)
	return rec
}

func TestHandleLoginPost_VerifiedUser(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateUser(ctx, "Ana Reader", "ana@example.com", "user")

	rec := postLogin(t, handler, url.Values{
		"email":    {"ana@example.com"},
		"password": {testutil.FixturePassword},
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location: got %q, want %q", loc, "/")
	}

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected session cookie to be set")
	}
}

func TestHandleLoginPost_WithReturnURL(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateUser(ctx, "Ana Reader", "ana@example.com", "user")

	rec := postLogin(t, handler, url.Values{
		"email":    {"ana@example.com"},
		"password": {testutil.FixturePassword},
		"return":   {"/profile"},
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/profile" {
		t.Errorf("Location: got %q, want %q", loc, "/profile")
	}
}

func TestHandleLoginPost_UnverifiedUserHeldForVerification(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateUnverifiedUser(ctx, "New Writer", "new@example.com", "482913", time.Now().Add(10*time.Minute))

	rec := postLogin(t, handler, url.Values{
		"email":    {"new@example.com"},
		"password": {testutil.FixturePassword},
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/verify-email" {
		t.Errorf("Location: got %q, want %q", loc, "/verify-email")
	}
}

func TestHandleLoginPost_UnknownEmail_RendersForm(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", strings.NewReader(url.Values{
		"email":    {"nobody@example.com"},
		"password": {"whatever"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// Re-rendering the form needs the template engine, which isn't booted
	// in tests; the recover confirms we took the render path, not a redirect.
	func() {
		defer func() { recover() }()
		handler.HandleLoginPost(rec, req)
	}()

	if loc := rec.Header().Get("Location"); loc != "" {
		t.Errorf("expected no redirect for unknown email, got Location %q", loc)
	}
}

func TestHandleLoginPost_WrongPassword_NoRedirect(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateUser(ctx, "Ana Reader", "ana@example.com", "user")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", strings.NewReader(url.Values{
		"email":    {"ana@example.com"},
		"password": {"not-the-password"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	func() {
		defer func() { recover() }()
		handler.HandleLoginPost(rec, req)
	}()

	if loc := rec.Header().Get("Location"); loc != "" {
		t.Errorf("expected no redirect for wrong password, got Location %q", loc)
	}
}

func TestHandleLoginPost_UnsafeReturnURLFallsBackHome(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateUser(ctx, "Ana Reader", "ana@example.com", "user")

	rec := postLogin(t, handler, url.Values{
		"email":    {"ana@example.com"},
		"password": {testutil.FixturePassword},
		"return":   {"https://evil.example.com/phish"},
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location: got %q, want %q", loc, "/")
	}
}
