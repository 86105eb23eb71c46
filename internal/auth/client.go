// Package auth talks to the auth service and keeps the restored
// session blob (credential plus profile summary) in local storage.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-client/internal/localstore"
	"github.com/angelmondragon/storefront-client/pkg/rest"
)

// StorageKey is the fixed key for the persisted credential/profile blob.
const StorageKey = "auth_profile"

var errRestClientRequired = errors.New("auth rest client is required")

// Profile is the last-known authenticated identity, persisted so a
// session can be restored on the next start. The blob is plain and
// versionless; an unparsable one reads as absent.
type Profile struct {
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
	Access   string `json:"access"`
}

type Client struct {
	rest  *rest.Client
	store *localstore.Store
}

func New(restClient *rest.Client, store *localstore.Store) (*Client, error) {
	if restClient == nil {
		return nil, errRestClientRequired
	}
	return &Client{rest: restClient, store: store}, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (Profile, error) {
	payload := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}

	var reply struct {
		Access  string `json:"access"`
		IsStaff bool   `json:"is_staff"`
	}
	if err := c.rest.Do(ctx, "auth.login", http.MethodPost, "/api/auth/login/", payload, &reply); err != nil {
		return Profile{}, err
	}
	return Profile{
		Username: username,
		IsStaff:  reply.IsStaff,
		Access:   reply.Access,
	}, nil
}

// Register creates an account. It does not authenticate the visitor;
// a successful registration still requires an explicit login.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	payload := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Username: username, Email: email, Password: password}

	var reply struct {
		Message string `json:"message"`
	}
	if err := c.rest.Do(ctx, "auth.register", http.MethodPost, "/api/auth/register/", payload, &reply); err != nil {
		return "", err
	}
	if reply.Message == "" {
		reply.Message = "account created"
	}
	return reply.Message, nil
}

// Account is the full profile record behind the profile endpoints,
// as opposed to the slim Profile blob kept for session restore.
type Account struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	DateJoined string `json:"date_joined,omitempty"`
}

// UpdateAccountInput carries the editable profile fields. All three
// are sent; the server keeps whatever matches the current value.
type UpdateAccountInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// FetchAccount reads the signed-in user's profile.
func (c *Client) FetchAccount(ctx context.Context) (Account, error) {
	var account Account
	if err := c.rest.Get(ctx, "profile.view", "/api/profile/", &account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// UpdateAccount patches the editable profile fields and returns the
// server's view of the result.
func (c *Client) UpdateAccount(ctx context.Context, input UpdateAccountInput) (Account, error) {
	var account Account
	if err := c.rest.Do(ctx, "profile.update", http.MethodPatch, "/api/profile/update/", input, &account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// SaveProfile persists the credential/profile blob.
func (c *Client) SaveProfile(profile Profile) {
	if c.store == nil {
		return
	}
	c.store.Set(StorageKey, profile)
}

// LoadProfile returns the persisted profile, if any usable one exists.
func (c *Client) LoadProfile() (Profile, bool) {
	if c.store == nil {
		return Profile{}, false
	}
	var profile Profile
	if !c.store.Get(StorageKey, &profile) {
		return Profile{}, false
	}
	if strings.TrimSpace(profile.Access) == "" {
		return Profile{}, false
	}
	return profile, true
}

// ClearProfile removes the persisted blob.
func (c *Client) ClearProfile() {
	if c.store == nil {
		return
	}
	c.store.Remove(StorageKey)
}

// CredentialExpired peeks at the token's expiry claim without
// verifying the signature; the client holds no signing secret. A
// token that cannot be parsed at all is treated as expired.
func CredentialExpired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
