// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// State represents an OAuth2 state token stored for CSRF protection,
// together with the PKCE verifier for the same handshake.
type State struct {
	State     string    `bson:"state"`
	Provider  string    `bson:"provider"`             // google | twitter | github
	ReturnURL string    `bson:"return_url,omitempty"` // Where to redirect after auth
	Verifier  string    `bson:"verifier,omitempty"`   // PKCE code verifier
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store manages OAuth2 state tokens in MongoDB. Indexes (unique state,
// TTL on expires_at) are ensured at startup.
type Store struct {
	c *mongo.Collection
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

// Save stores a state token bound to a provider, along with the PKCE
// verifier for the token exchange, with the given expiration.
func (s *Store) Save(ctx context.Context, state, provider, returnURL, verifier string, expiresAt time.Time) error {
	st := State{
		State:     state,
		Provider:  provider,
		ReturnURL: returnURL,
		Verifier:  verifier,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.c.InsertOne(ctx, st)
	return err
}

// Consume checks whether a state token exists for the given provider and is
// not expired. If valid, it deletes the token (one-time use) and returns the
// associated return URL and PKCE verifier. Returns false if the state is
// invalid, expired, or was issued for a different provider.
func (s *Store) Consume(ctx context.Context, state, provider string) (returnURL, verifier string, valid bool, err error) {
	var st State
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"provider":   provider,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&st)

	if err == mongo.ErrNoDocuments {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}

	return st.ReturnURL, st.Verifier, true, nil
}

// CleanupExpired removes expired state tokens.
// This is a backup for when TTL index cleanup is delayed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
