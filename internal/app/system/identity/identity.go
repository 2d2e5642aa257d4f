// internal/app/system/identity/identity.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rfmartin/paperpress/internal/app/system/authutil"
	"github.com/rfmartin/paperpress/internal/app/system/normalize"
	"github.com/rfmartin/paperpress/internal/app/system/verifycode"
	userstore "github.com/rfmartin/paperpress/internal/app/store/users"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Failure taxonomy. Handlers branch on these with errors.Is; anything else
// coming out of the engine is an infrastructure failure from the user
// store and must be surfaced as a generic server error with no state
// change.
var (
	ErrUnknownAccount       = errors.New("no account for that email")
	ErrBadCredentials       = errors.New("password does not match")
	ErrEmailTaken           = errors.New("email already registered")
	ErrProviderIDTaken      = errors.New("provider identity already linked")
	ErrSessionExpired       = errors.New("pending verification session expired")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")
	ErrCooldownActive       = errors.New("verification code recently sent")
)

// Status is the terminal state of a successful identity resolution.
type Status int

const (
	// StatusVerified means the caller may be given a logged-in session.
	StatusVerified Status = iota + 1
	// StatusPendingVerification means identity is proven but email
	// verification must complete first; no session yet.
	StatusPendingVerification
)

// Result is the outcome handed to the session layer. Code/CodeExpires are
// populated when this operation issued a fresh verification code, so the
// caller can mail it; they are never persisted anywhere but the user
// record.
type Result struct {
	Status      Status
	User        *models.User
	Code        string
	CodeExpires time.Time
}

// Profile is a provider-verified identity, normalized to one shape for all
// providers.
type Profile struct {
	Provider    string // google | twitter | github
	ExternalID  string
	DisplayName string
	Username    string
	Email       string
	AvatarURL   string
}

// UserStore is the slice of the users store the engine needs. Absent
// records are reported as mongo.ErrNoDocuments; duplicate creates as
// userstore.ErrDuplicateEmail / userstore.ErrDuplicateProvider.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByProvider(ctx context.Context, provider, externalID string) (*models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	SetVerified(ctx context.Context, id primitive.ObjectID) error
	SetVerificationCode(ctx context.Context, id primitive.ObjectID, code string, expires time.Time) error
	MarkEmailVerified(ctx context.Context, id primitive.ObjectID) error
}

// Engine resolves a proof of identity (password match or provider-verified
// profile) to exactly one user record and decides whether the caller may
// proceed to a session or must verify their email first.
type Engine struct {
	users UserStore
	log   *zap.Logger

	// Now is the clock; tests override it.
	Now func() time.Time
}

// New creates an Engine over the given user store.
func New(users UserStore, logger *zap.Logger) *Engine {
	return &Engine{users: users, log: logger, Now: time.Now}
}

// SignUp registers a local account. The account starts unverified with a
// fresh verification code; the caller mails the returned code and holds
// the session in the pending-verification state.
func (e *Engine) SignUp(ctx context.Context, name, email, password, role string) (*Result, error) {
	email = normalize.Email(email)

	// Advisory pre-check; the unique index on email is the real arbiter.
	_, err := e.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case errors.Is(err, mongo.ErrNoDocuments):
		// continue
	default:
		return nil, fmt.Errorf("look up email: %w", err)
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := e.Now()
	code, expires := verifycode.Issue(now)

	u := models.User{
		Name:                    normalize.Name(name),
		Email:                   email,
		PasswordHash:            &hash,
		ProfilePic:              models.DefaultProfilePic,
		EmailVerified:           false,
		VerificationCode:        &code,
		VerificationCodeExpires: &expires,
		Role:                    role,
	}

	created, err := e.users.Create(ctx, u)
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			// Lost the race to a concurrent signup with the same email.
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	e.log.Info("local account created, verification pending",
		zap.String("user_id", created.ID.Hex()))

	return &Result{
		Status:      StatusPendingVerification,
		User:        &created,
		Code:        code,
		CodeExpires: expires,
	}, nil
}

// LoginLocal proves identity with email + password. A verified account
// resolves to StatusVerified; an unverified one to
// StatusPendingVerification with no hint issued about why (the caller
// shows the same verify redirect either way).
func (e *Engine) LoginLocal(ctx context.Context, email, password string) (*Result, error) {
	u, err := e.users.GetByEmail(ctx, normalize.Email(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUnknownAccount
		}
		return nil, fmt.Errorf("look up email: %w", err)
	}

	if u.PasswordHash == nil || !authutil.CheckPassword(password, *u.PasswordHash) {
		return nil, ErrBadCredentials
	}

	if !u.EmailVerified {
		return &Result{Status: StatusPendingVerification, User: u}, nil
	}
	return &Result{Status: StatusVerified, User: u}, nil
}

// LoginFederated resolves a provider-verified profile. Both branches end
// Verified: provider-asserted identity is trusted for email ownership, so
// federated logins never enter the pending-verification state.
func (e *Engine) LoginFederated(ctx context.Context, p Profile) (*Result, error) {
	provider := normalize.Provider(p.Provider)

	u, err := e.users.GetByProvider(ctx, provider, p.ExternalID)
	switch {
	case err == nil:
		// Legacy records that predate the created-verified invariant get
		// upgraded here; accounts created below are always verified.
		if !u.EmailVerified {
			if err := e.users.SetVerified(ctx, u.ID); err != nil {
				return nil, fmt.Errorf("upgrade verification: %w", err)
			}
			u.EmailVerified = true
		}
		return &Result{Status: StatusVerified, User: u}, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		// continue to create
	default:
		return nil, fmt.Errorf("look up provider identity: %w", err)
	}

	created, err := e.users.Create(ctx, e.newFederatedUser(provider, p))
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateProvider) {
			// Lost the race to a concurrent callback for the same
			// identity; the winner's record is this caller's account.
			winner, lookupErr := e.users.GetByProvider(ctx, provider, p.ExternalID)
			if lookupErr != nil {
				return nil, ErrProviderIDTaken
			}
			return &Result{Status: StatusVerified, User: winner}, nil
		}
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create federated user: %w", err)
	}

	e.log.Info("federated account created",
		zap.String("provider", provider),
		zap.String("user_id", created.ID.Hex()))

	return &Result{Status: StatusVerified, User: &created}, nil
}

// CompleteVerification consumes a pending-verification session: a matching,
// unexpired code flips the account to verified exactly once and clears the
// code, so resubmitting the same code afterwards fails.
func (e *Engine) CompleteVerification(ctx context.Context, userID primitive.ObjectID, code string) (*Result, error) {
	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("load pending user: %w", err)
	}

	stored := ""
	if u.VerificationCode != nil {
		stored = *u.VerificationCode
	}
	var expires time.Time
	if u.VerificationCodeExpires != nil {
		expires = *u.VerificationCodeExpires
	}

	if !verifycode.IsValid(code, stored, expires, e.Now()) {
		return nil, ErrInvalidOrExpiredCode
	}

	if err := e.users.MarkEmailVerified(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	u.EmailVerified = true
	u.VerificationCode = nil
	u.VerificationCodeExpires = nil

	e.log.Info("email verified", zap.String("user_id", u.ID.Hex()))

	return &Result{Status: StatusVerified, User: u}, nil
}

// ResendCode issues a replacement verification code for a pending account,
// subject to the cooldown. The caller mails the returned code.
func (e *Engine) ResendCode(ctx context.Context, userID primitive.ObjectID) (*Result, error) {
	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("load pending user: %w", err)
	}

	var prevExpires time.Time
	if u.VerificationCodeExpires != nil {
		prevExpires = *u.VerificationCodeExpires
	}

	now := e.Now()
	if !verifycode.ResendAllowed(prevExpires, now) {
		return nil, ErrCooldownActive
	}

	code, expires := verifycode.Issue(now)
	if err := e.users.SetVerificationCode(ctx, u.ID, code, expires); err != nil {
		return nil, fmt.Errorf("store verification code: %w", err)
	}
	u.VerificationCode = &code
	u.VerificationCodeExpires = &expires

	e.log.Info("verification code reissued", zap.String("user_id", u.ID.Hex()))

	return &Result{
		Status:      StatusPendingVerification,
		User:        u,
		Code:        code,
		CodeExpires: expires,
	}, nil
}

// newFederatedUser builds the record for a first-seen provider identity.
// Created verified unconditionally, with no password hash.
func (e *Engine) newFederatedUser(provider string, p Profile) models.User {
	name := normalize.Name(p.DisplayName)
	if name == "" {
		name = normalize.Name(p.Username)
	}

	avatar := p.AvatarURL
	if avatar == "" {
		avatar = models.DefaultProfilePic
	}

	u := models.User{
		Name:          name,
		Email:         normalize.Email(p.Email), // may be ""
		ProfilePic:    avatar,
		EmailVerified: true,
		Role:          "user",
	}

	externalID := p.ExternalID
	switch provider {
	case "google":
		u.GoogleID = &externalID
	case "twitter":
		u.TwitterID = &externalID
	case "github":
		u.GitHubID = &externalID
	}
	return u
}
