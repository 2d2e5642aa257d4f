// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
	settingsstore "github.com/rfmartin/paperpress/internal/app/store/settings"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"github.com/rfmartin/paperpress/internal/app/system/authz"
	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, db, "Page Title", "/default-back"),
//	    // page-specific fields...
//	}
type BaseVM struct {
	// Site settings (from database)
	SiteName        string
	SiteDescription string
	LogoURL         string

	// User context (from auth middleware)
	IsLoggedIn bool
	Role       string
	UserName   string
	ProfilePic string

	// Page context
	Title       string
	BackURL     string
	CurrentPath string

	// CSRF protection
	CSRFToken string // Token for form submission
}

// NewBaseVM creates a fully populated BaseVM for a page.
// This is the preferred way to create a BaseVM for embedding in view models.
//
// Parameters:
//   - r: the HTTP request
//   - db: database for loading site settings (can be nil for defaults)
//   - title: the page title
//   - backDefault: default URL for the back button if none in request
func NewBaseVM(r *http.Request, db *mongo.Database, title, backDefault string) BaseVM {
	role, name, _, signedIn := authz.UserCtx(r)

	vm := BaseVM{
		SiteName:    settingsstore.DefaultSiteTitle,
		IsLoggedIn:  signedIn,
		Role:        role,
		UserName:    name,
		Title:       title,
		BackURL:     httpnav.ResolveBackURL(r, backDefault),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}

	if user, ok := auth.CurrentUser(r); ok {
		vm.ProfilePic = user.ProfilePic
	}

	if db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		settings, err := settingsstore.New(db).Get(ctx)
		if err == nil {
			vm.SiteName = settings.SiteTitle
			vm.SiteDescription = settings.SiteDescription
			vm.LogoURL = settings.LogoURL
		}
	}

	return vm
}

// GetSiteName returns the site title from settings, or the default if not available.
func GetSiteName(ctx context.Context, db *mongo.Database) string {
	if db == nil {
		return settingsstore.DefaultSiteTitle
	}

	settings, err := settingsstore.New(db).Get(ctx)
	if err != nil {
		return settingsstore.DefaultSiteTitle
	}
	return settings.SiteTitle
}

// GetSettings returns the full site settings, or defaults if not available.
func GetSettings(ctx context.Context, db *mongo.Database) models.SiteSettings {
	if db == nil {
		return models.SiteSettings{
			SiteTitle:         settingsstore.DefaultSiteTitle,
			AllowRegistration: true,
			DefaultUserRole:   settingsstore.DefaultUserRole,
		}
	}

	settings, err := settingsstore.New(db).Get(ctx)
	if err != nil {
		return models.SiteSettings{
			SiteTitle:         settingsstore.DefaultSiteTitle,
			AllowRegistration: true,
			DefaultUserRole:   settingsstore.DefaultUserRole,
		}
	}
	return settings
}
