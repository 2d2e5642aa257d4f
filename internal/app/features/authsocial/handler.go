// internal/app/features/authsocial/handler.go
package authsocial

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"
	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	"github.com/rfmartin/paperpress/internal/app/store/oauthstate"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"github.com/rfmartin/paperpress/internal/app/system/identity"
	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// stateTTL bounds how long a consent round-trip may take.
const stateTTL = 10 * time.Minute

// Credentials is the per-provider OAuth client configuration.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Handler runs the OAuth flow for every configured provider.
type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Identity   *identity.Engine
	StateStore *oauthstate.Store
	BaseURL    string // e.g., "https://paperpress.example.com"

	providers map[string]Provider
	creds     map[string]Credentials
	order     []string
}

// NewHandler creates the social sign-in handler. Providers without
// credentials are registered but report as not configured.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	engine *identity.Engine,
	stateStore *oauthstate.Store,
	baseURL string,
	creds map[string]Credentials,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		DB:         db,
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Identity:   engine,
		StateStore: stateStore,
		BaseURL:    baseURL,
		providers:  make(map[string]Provider),
		creds:      creds,
	}
	for _, p := range []Provider{Google(), Twitter(), GitHub()} {
		h.providers[p.Name] = p
		h.order = append(h.order, p.Name)
	}
	return h
}

// Enabled returns the names of providers with credentials, in
// registration order. The login page uses this for its buttons.
func (h *Handler) Enabled() []string {
	var names []string
	for _, name := range h.order {
		if h.IsConfigured(name) {
			names = append(names, name)
		}
	}
	return names
}

// IsConfigured reports whether the named provider has OAuth credentials.
func (h *Handler) IsConfigured(name string) bool {
	c, ok := h.creds[name]
	return ok && c.ClientID != "" && c.ClientSecret != ""
}

// oauth2Config builds the provider's OAuth2 client configuration.
func (h *Handler) oauth2Config(p Provider) *oauth2.Config {
	c := h.creds[p.Name]
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  fmt.Sprintf("%s/auth/%s/callback", h.BaseURL, p.Name),
		Scopes:       p.Scopes,
		Endpoint:     p.Endpoint,
	}
}

// provider resolves the chi URL parameter to a registered provider.
func (h *Handler) provider(r *http.Request) (Provider, bool) {
	p, ok := h.providers[chi.URLParam(r, "provider")]
	return p, ok
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/{provider}                                                         |
| Initiates the flow by redirecting to the provider's consent screen.          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeBegin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !h.IsConfigured(p.Name) {
		h.Log.Warn("social provider not configured", zap.String("provider", p.Name))
		http.Redirect(w, r, "/login?error="+p.Name+"_not_configured", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	returnURL := query.Get(r, "return")

	// PKCE: Twitter rejects code flows without it; Google and GitHub
	// accept the challenge.
	verifier := oauth2.GenerateVerifier()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	expiresAt := time.Now().UTC().Add(stateTTL)
	if err := h.StateStore.Save(ctx, state, p.Name, returnURL, verifier, expiresAt); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	url := h.oauth2Config(p).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	h.Log.Debug("initiating social sign-in",
		zap.String("provider", p.Name),
		zap.String("return_url", returnURL))

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/{provider}/callback                                                |
| Validates state, exchanges the code, maps the profile through the identity   |
| engine, and establishes the session.                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("social sign-in denied",
			zap.String("provider", p.Name),
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		http.Redirect(w, r, "/login?error="+p.Name+"_denied", http.StatusSeeOther)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter", zap.String("provider", p.Name))
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, verifier, valid, err := h.StateStore.Consume(ctxTimeout, state, p.Name)
	if err != nil {
		h.Log.Error("failed to consume OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state", zap.String("provider", p.Name))
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter", zap.String("provider", p.Name))
		http.Redirect(w, r, "/login?error=invalid_code", http.StatusSeeOther)
		return
	}

	token, err := h.oauth2Config(p).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		h.Log.Error("failed to exchange OAuth code",
			zap.Error(err),
			zap.String("provider", p.Name))
		http.Redirect(w, r, "/login?error=token_exchange", http.StatusSeeOther)
		return
	}

	profile, err := h.fetchProfile(ctx, p, token)
	if err != nil {
		h.Log.Error("failed to fetch provider profile",
			zap.Error(err),
			zap.String("provider", p.Name))
		http.Redirect(w, r, "/login?error=user_info", http.StatusSeeOther)
		return
	}

	// Fresh deadline: the consent round-trips above ran on the request
	// context and may have outlived the earlier one.
	ctxEngine, cancelEngine := context.WithTimeout(ctx, timeouts.Short())
	defer cancelEngine()

	res, err := h.Identity.LoginFederated(ctxEngine, profile)
	if errors.Is(err, identity.ErrEmailTaken) {
		h.Log.Warn("provider email belongs to an existing local account",
			zap.String("provider", p.Name),
			zap.String("external_id", profile.ExternalID))
		http.Redirect(w, r, "/login?error=email_in_use", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.Log.Error("federated login failed",
			zap.Error(err),
			zap.String("provider", p.Name),
			zap.String("external_id", profile.ExternalID))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	h.establishAndRedirect(w, r, res.User.ID.Hex(), p.Name, returnURL)
}

// fetchProfile calls the provider's userinfo endpoint with the token and
// maps the response through the descriptor.
func (h *Handler) fetchProfile(ctx context.Context, p Provider, token *oauth2.Token) (identity.Profile, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(p.UserInfoURL)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return identity.Profile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return identity.Profile{}, fmt.Errorf("read userinfo: %w", err)
	}

	return p.ExtractProfile(raw)
}

// establishAndRedirect creates the authenticated session and sends the
// user to their destination.
func (h *Handler) establishAndRedirect(w http.ResponseWriter, r *http.Request, userID, provider, returnURL string) {
	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			h.Log.Warn("session cookie invalid, using fresh session",
				zap.Error(err),
				zap.String("user_id", userID))
		} else {
			h.Log.Error("session store error during login, using fresh session",
				zap.Error(err),
				zap.String("user_id", userID))
		}
	}

	if err := h.SessionMgr.Establish(w, r, sess, userID); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", userID))
		http.Redirect(w, r, "/login?error=session", http.StatusSeeOther)
		return
	}

	h.Log.Info("user signed in via social provider",
		zap.String("user_id", userID),
		zap.String("provider", provider))

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", "/"), http.StatusSeeOther)
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
