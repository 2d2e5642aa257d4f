package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	userstore "github.com/rfmartin/paperpress/internal/app/store/users"
	"github.com/rfmartin/paperpress/internal/app/system/identity"
	"github.com/rfmartin/paperpress/internal/app/system/verifycode"
	"github.com/rfmartin/paperpress/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// fakeUserStore is an in-memory identity.UserStore honoring the same error
// contract as the Mongo-backed store: absent records are
// mongo.ErrNoDocuments, duplicate creates are the userstore sentinels.
type fakeUserStore struct {
	users map[primitive.ObjectID]*models.User

	// createErr, when set, is returned by the next Create call.
	createErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[primitive.ObjectID]*models.User)}
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, mongo.ErrNoDocuments
	}
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUserStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByProvider(_ context.Context, provider, externalID string) (*models.User, error) {
	for _, u := range f.users {
		if pid := u.ProviderID(provider); pid != nil && *pid == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUserStore) Create(_ context.Context, u models.User) (models.User, error) {
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return models.User{}, err
	}
	if u.Email != "" {
		for _, existing := range f.users {
			if existing.Email == u.Email {
				return models.User{}, userstore.ErrDuplicateEmail
			}
		}
	}
	for _, provider := range []string{"google", "twitter", "github"} {
		pid := u.ProviderID(provider)
		if pid == nil {
			continue
		}
		for _, existing := range f.users {
			if epid := existing.ProviderID(provider); epid != nil && *epid == *pid {
				return models.User{}, userstore.ErrDuplicateProvider
			}
		}
	}
	u.ID = primitive.NewObjectID()
	if u.Role == "" {
		u.Role = "user"
	}
	if u.Status == "" {
		u.Status = "active"
	}
	cp := u
	f.users[u.ID] = &cp
	return u, nil
}

func (f *fakeUserStore) SetVerified(_ context.Context, id primitive.ObjectID) error {
	u, ok := f.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.EmailVerified = true
	return nil
}

func (f *fakeUserStore) SetVerificationCode(_ context.Context, id primitive.ObjectID, code string, expires time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.VerificationCode = &code
	u.VerificationCodeExpires = &expires
	return nil
}

func (f *fakeUserStore) MarkEmailVerified(_ context.Context, id primitive.ObjectID) error {
	u, ok := f.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.EmailVerified = true
	u.VerificationCode = nil
	u.VerificationCodeExpires = nil
	return nil
}

func newTestEngine(t *testing.T) (*identity.Engine, *fakeUserStore) {
	t.Helper()
	store := newFakeUserStore()
	return identity.New(store, zap.NewNop()), store
}

func TestSignUp_CreatesPendingAccountWithCode(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.SignUp(ctx, "  Ada Lovelace  ", "Ada@Example.COM", "s3cret-pass", "user")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if res.Status != identity.StatusPendingVerification {
		t.Errorf("expected pending verification, got %v", res.Status)
	}
	if len(res.Code) != verifycode.CodeLength {
		t.Errorf("expected %d-digit code, got %q", verifycode.CodeLength, res.Code)
	}
	if res.CodeExpires.IsZero() {
		t.Error("expected code expiry to be set")
	}

	u := res.User
	if u.Email != "ada@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.Name != "Ada Lovelace" {
		t.Errorf("expected trimmed name, got %q", u.Name)
	}
	if u.EmailVerified {
		t.Error("new local account must start unverified")
	}
	if u.PasswordHash == nil || *u.PasswordHash == "s3cret-pass" {
		t.Error("password must be stored hashed")
	}

	stored, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("created user not in store: %v", err)
	}
	if stored.VerificationCode == nil || *stored.VerificationCode != res.Code {
		t.Error("verification code must be persisted on the user record")
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.SignUp(ctx, "First", "dup@example.com", "password-one", "user"); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}

	_, err := eng.SignUp(ctx, "Second", "dup@example.com", "password-two", "user")
	if !errors.Is(err, identity.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	// Case and whitespace variants collide with the same record.
	_, err = eng.SignUp(ctx, "Third", "  DUP@Example.com ", "password-three", "user")
	if !errors.Is(err, identity.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken for case variant, got %v", err)
	}
}

func TestSignUp_LosesCreateRace(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	// Pre-check passes but the store's unique index rejects the insert.
	store.createErr = userstore.ErrDuplicateEmail
	_, err := eng.SignUp(ctx, "Racer", "race@example.com", "password-one", "user")
	if !errors.Is(err, identity.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken on lost race, got %v", err)
	}
}

func TestLoginLocal_UnknownEmail(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.LoginLocal(context.Background(), "nobody@example.com", "whatever-pass")
	if !errors.Is(err, identity.ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount, got %v", err)
	}
}

func TestLoginLocal_WrongPassword(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.SignUp(ctx, "Ada", "ada@example.com", "right-password", "user"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	_, err := eng.LoginLocal(ctx, "ada@example.com", "wrong-password")
	if !errors.Is(err, identity.ErrBadCredentials) {
		t.Errorf("expected ErrBadCredentials, got %v", err)
	}
}

func TestLoginLocal_FederatedOnlyAccountHasNoPassword(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.LoginFederated(ctx, identity.Profile{
		Provider:    "google",
		ExternalID:  "g-123",
		DisplayName: "Grace Hopper",
		Email:       "grace@example.com",
	}); err != nil {
		t.Fatalf("LoginFederated failed: %v", err)
	}

	// Any password fails against a hash-less account.
	_, err := eng.LoginLocal(ctx, "grace@example.com", "")
	if !errors.Is(err, identity.ErrBadCredentials) {
		t.Errorf("expected ErrBadCredentials for passwordless account, got %v", err)
	}
}

func TestLoginLocal_UnverifiedGoesPending(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.SignUp(ctx, "Ada", "ada@example.com", "right-password", "user"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	res, err := eng.LoginLocal(ctx, "ada@example.com", "right-password")
	if err != nil {
		t.Fatalf("LoginLocal failed: %v", err)
	}
	if res.Status != identity.StatusPendingVerification {
		t.Errorf("expected pending verification for unverified account, got %v", res.Status)
	}
	if res.Code != "" {
		t.Error("login must not issue a fresh code; resend does that")
	}
}

func TestLoginLocal_VerifiedSucceeds(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	signup, err := eng.SignUp(ctx, "Ada", "ada@example.com", "right-password", "user")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := store.MarkEmailVerified(ctx, signup.User.ID); err != nil {
		t.Fatalf("MarkEmailVerified failed: %v", err)
	}

	res, err := eng.LoginLocal(ctx, "ada@example.com", "right-password")
	if err != nil {
		t.Fatalf("LoginLocal failed: %v", err)
	}
	if res.Status != identity.StatusVerified {
		t.Errorf("expected verified, got %v", res.Status)
	}
	if res.User.ID != signup.User.ID {
		t.Error("login must resolve to the signed-up account")
	}
}

func TestLoginFederated_FirstSeenCreatesVerifiedAccount(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.LoginFederated(ctx, identity.Profile{
		Provider:    "github",
		ExternalID:  "gh-42",
		DisplayName: "",
		Username:    "octocat",
		Email:       "Octo@Example.com",
		AvatarURL:   "https://avatars.example.com/octo.png",
	})
	if err != nil {
		t.Fatalf("LoginFederated failed: %v", err)
	}

	if res.Status != identity.StatusVerified {
		t.Errorf("expected verified, got %v", res.Status)
	}
	u := res.User
	if !u.EmailVerified {
		t.Error("federated accounts must be created verified")
	}
	if u.PasswordHash != nil {
		t.Error("federated accounts must have no password hash")
	}
	if u.Name != "octocat" {
		t.Errorf("expected username fallback for empty display name, got %q", u.Name)
	}
	if u.Email != "octo@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.GitHubID == nil || *u.GitHubID != "gh-42" {
		t.Error("expected github id to be bound")
	}
	if u.ProfilePic != "https://avatars.example.com/octo.png" {
		t.Errorf("expected provider avatar, got %q", u.ProfilePic)
	}
}

func TestLoginFederated_ReturningUserResolvesSameAccount(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.LoginFederated(ctx, identity.Profile{
		Provider: "twitter", ExternalID: "tw-7", DisplayName: "Bird",
	})
	if err != nil {
		t.Fatalf("first LoginFederated failed: %v", err)
	}

	// Display name changed at the provider; the binding is by external id.
	second, err := eng.LoginFederated(ctx, identity.Profile{
		Provider: "twitter", ExternalID: "tw-7", DisplayName: "Renamed Bird",
	})
	if err != nil {
		t.Fatalf("second LoginFederated failed: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Error("same provider identity must resolve to the same account")
	}
	if second.User.Name != "Bird" {
		t.Errorf("returning login must not rewrite the profile, got name %q", second.User.Name)
	}
}

func TestLoginFederated_EmptyEmailAllowed(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	// Two distinct identities without email must not collide.
	if _, err := eng.LoginFederated(ctx, identity.Profile{
		Provider: "twitter", ExternalID: "tw-1", Username: "one",
	}); err != nil {
		t.Fatalf("first LoginFederated failed: %v", err)
	}
	if _, err := eng.LoginFederated(ctx, identity.Profile{
		Provider: "twitter", ExternalID: "tw-2", Username: "two",
	}); err != nil {
		t.Fatalf("second LoginFederated failed: %v", err)
	}
}

func TestLoginFederated_UpgradesLegacyUnverifiedRecord(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	// A record from before the created-verified invariant.
	gid := "g-legacy"
	legacy, err := store.Create(ctx, models.User{
		Name:          "Legacy",
		Email:         "legacy@example.com",
		GoogleID:      &gid,
		EmailVerified: false,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	res, err := eng.LoginFederated(ctx, identity.Profile{
		Provider: "google", ExternalID: "g-legacy", DisplayName: "Legacy",
	})
	if err != nil {
		t.Fatalf("LoginFederated failed: %v", err)
	}
	if res.Status != identity.StatusVerified {
		t.Errorf("expected verified, got %v", res.Status)
	}

	stored, err := store.GetByID(ctx, legacy.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !stored.EmailVerified {
		t.Error("legacy record must be upgraded to verified")
	}
}

func TestLoginFederated_LostCreateRaceResolvesWinner(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	// The concurrent callback already created the account.
	gid := "g-race"
	winner, err := store.Create(ctx, models.User{
		Name: "Winner", GoogleID: &gid, EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	store.createErr = userstore.ErrDuplicateProvider

	res, err := eng.LoginFederated(ctx, identity.Profile{
		Provider: "google", ExternalID: "g-race", DisplayName: "Loser",
	})
	if err != nil {
		t.Fatalf("LoginFederated after lost race failed: %v", err)
	}
	if res.User.ID != winner.ID {
		t.Error("lost race must resolve to the winner's account")
	}
}

func TestCompleteVerification_HappyPath(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	signup, err := eng.SignUp(ctx, "Ada", "ada@example.com", "right-password", "user")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	res, err := eng.CompleteVerification(ctx, signup.User.ID, signup.Code)
	if err != nil {
		t.Fatalf("CompleteVerification failed: %v", err)
	}
	if res.Status != identity.StatusVerified {
		t.Errorf("expected verified, got %v", res.Status)
	}

	stored, err := store.GetByID(ctx, signup.User.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !stored.EmailVerified {
		t.Error("account must be verified after code acceptance")
	}
	if stored.VerificationCode != nil || stored.VerificationCodeExpires != nil {
		t.Error("code must be cleared on acceptance")
	}
}

func TestCompleteVerification_WrongCode(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	signup, err := eng.SignUp(ctx, "Ada", "ada@example.com", "right-password", "user")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	wrong := "000000"
	if wrong == signup.Code {
		wrong = "000001"
	}
	_, err = eng.CompleteVerification(ctx, signup.User.ID, wrong)
	if !errors.Is(err, identity.ErrInvalidOrExpiredCode) {
		t.Errorf("expected ErrInvalidOrExpiredCode, got %v", err)
	}
}

func TestCompleteVerification_ExpiredCode(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return base }

	signup, err := eng.SignUp(ctx, "Ada", "ada@example.com", "right-password", "user")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	// Exactly at expiry the code is already dead.
	eng.Now = func() time.Time { return base.Add(verifycode.Expiry) }
	_, err = eng.CompleteVerification(ctx, signup.User.ID, signup.Code)
	if !errors.Is(err, identity.ErrInvalidOrExpiredCode) {
		t.Errorf("expected ErrInvalidOrExpiredCode at expiry, got %v", err)
	}
}

func TestCompleteVerification_CodeAcceptedOnlyOnce(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	signup, err := eng.SignUp(ctx, "Ada", "ada@example.com", "right-password", "user")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if _, err := eng.CompleteVerification(ctx, signup.User.ID, signup.Code); err != nil {
		t.Fatalf("first CompleteVerification failed: %v", err)
	}

	// The code was cleared on acceptance; replay must fail.
	_, err = eng.CompleteVerification(ctx, signup.User.ID, signup.Code)
	if !errors.Is(err, identity.ErrInvalidOrExpiredCode) {
		t.Errorf("expected ErrInvalidOrExpiredCode on replay, got %v", err)
	}
}

func TestCompleteVerification_MissingUser(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.CompleteVerification(context.Background(), primitive.NewObjectID(), "123456")
	if !errors.Is(err, identity.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestResendCode_CooldownThenReplace(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return base }

	signup, err := eng.SignUp(ctx, "Ada", "ada@example.com", "right-password", "user")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	// Inside the cooldown window.
	eng.Now = func() time.Time { return base.Add(verifycode.Cooldown - time.Second) }
	if _, err := eng.ResendCode(ctx, signup.User.ID); !errors.Is(err, identity.ErrCooldownActive) {
		t.Errorf("expected ErrCooldownActive inside window, got %v", err)
	}

	// At the boundary the resend goes through and replaces the code.
	resendAt := base.Add(verifycode.Cooldown)
	eng.Now = func() time.Time { return resendAt }
	res, err := eng.ResendCode(ctx, signup.User.ID)
	if err != nil {
		t.Fatalf("ResendCode failed: %v", err)
	}
	if res.Status != identity.StatusPendingVerification {
		t.Errorf("expected pending verification, got %v", res.Status)
	}
	if res.Code == "" {
		t.Fatal("expected a replacement code")
	}
	if want := resendAt.Add(verifycode.Expiry); !res.CodeExpires.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, res.CodeExpires)
	}

	stored, err := store.GetByID(ctx, signup.User.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.VerificationCode == nil || *stored.VerificationCode != res.Code {
		t.Error("replacement code must be persisted")
	}

	// The old code is dead once replaced (unless the draw repeats it).
	if signup.Code != res.Code {
		if _, err := eng.CompleteVerification(ctx, signup.User.ID, signup.Code); !errors.Is(err, identity.ErrInvalidOrExpiredCode) {
			t.Errorf("expected old code to be rejected, got %v", err)
		}
	}
}

func TestResendCode_NoPriorCodeAllowed(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	seeded, err := store.Create(ctx, models.User{
		Name: "NoCode", Email: "nocode@example.com",
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	res, err := eng.ResendCode(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("ResendCode without prior code failed: %v", err)
	}
	if res.Code == "" {
		t.Error("expected a fresh code")
	}
}

func TestResendCode_MissingUser(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.ResendCode(context.Background(), primitive.NewObjectID())
	if !errors.Is(err, identity.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}
