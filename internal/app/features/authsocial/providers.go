// internal/app/features/authsocial/providers.go
package authsocial

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rfmartin/paperpress/internal/app/system/identity"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Provider describes one federated sign-in source. The handler is the same
// for every provider; only the descriptor differs.
type Provider struct {
	Name        string
	Scopes      []string
	Endpoint    oauth2.Endpoint
	UserInfoURL string

	// ExtractProfile maps the provider's userinfo response to the
	// engine's provider-neutral profile.
	ExtractProfile func(raw []byte) (identity.Profile, error)
}

// Google returns the descriptor for Google sign-in.
func Google() Provider {
	return Provider{
		Name: "google",
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint:       google.Endpoint,
		UserInfoURL:    "https://www.googleapis.com/oauth2/v2/userinfo",
		ExtractProfile: extractGoogleProfile,
	}
}

// GitHub returns the descriptor for GitHub sign-in.
func GitHub() Provider {
	return Provider{
		Name:           "github",
		Scopes:         []string{"read:user", "user:email"},
		Endpoint:       githuboauth.Endpoint,
		UserInfoURL:    "https://api.github.com/user",
		ExtractProfile: extractGitHubProfile,
	}
}

// Twitter returns the descriptor for Twitter sign-in. Twitter's v2 API
// never returns an email address, so accounts created through it carry
// an empty email.
func Twitter() Provider {
	return Provider{
		Name:   "twitter",
		Scopes: []string{"tweet.read", "users.read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://twitter.com/i/oauth2/authorize",
			TokenURL: "https://api.twitter.com/2/oauth2/token",
		},
		UserInfoURL:    "https://api.twitter.com/2/users/me?user.fields=profile_image_url",
		ExtractProfile: extractTwitterProfile,
	}
}

func extractGoogleProfile(raw []byte) (identity.Profile, error) {
	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return identity.Profile{}, fmt.Errorf("decode google userinfo: %w", err)
	}
	if info.ID == "" {
		return identity.Profile{}, fmt.Errorf("google userinfo missing id")
	}
	return identity.Profile{
		Provider:    "google",
		ExternalID:  info.ID,
		DisplayName: info.Name,
		Email:       strings.ToLower(info.Email),
		AvatarURL:   info.Picture,
	}, nil
}

func extractGitHubProfile(raw []byte) (identity.Profile, error) {
	var info struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return identity.Profile{}, fmt.Errorf("decode github userinfo: %w", err)
	}
	if info.ID == 0 {
		return identity.Profile{}, fmt.Errorf("github userinfo missing id")
	}
	return identity.Profile{
		Provider:    "github",
		ExternalID:  strconv.FormatInt(info.ID, 10),
		DisplayName: info.Name,
		Username:    info.Login,
		Email:       strings.ToLower(info.Email),
		AvatarURL:   info.AvatarURL,
	}, nil
}

func extractTwitterProfile(raw []byte) (identity.Profile, error) {
	var info struct {
		Data struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return identity.Profile{}, fmt.Errorf("decode twitter userinfo: %w", err)
	}
	if info.Data.ID == "" {
		return identity.Profile{}, fmt.Errorf("twitter userinfo missing id")
	}
	return identity.Profile{
		Provider:    "twitter",
		ExternalID:  info.Data.ID,
		DisplayName: info.Data.Name,
		Username:    info.Data.Username,
		AvatarURL:   info.Data.ProfileImageURL,
	}, nil
}
