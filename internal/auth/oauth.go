package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultProviderURL is the identity provider's backend API base.
const DefaultProviderURL = "https://api.clerk.com/v1"

// Profile is what we keep from the provider's user object.
type Profile struct {
	ID        string
	Email     string
	Username  string
	FirstName string
	LastName  string
	ImageURL  string
}

// providerUser mirrors the fields of GET /users/{id} we care about. The
// provider returns a much larger object.
type providerUser struct {
	ID                    string  `json:"id"`
	Username              *string `json:"username"`
	FirstName             *string `json:"first_name"`
	LastName              *string `json:"last_name"`
	ImageURL              string  `json:"image_url"`
	PrimaryEmailAddressID *string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// ProviderClient calls the identity provider's backend API with the
// secret key as a static bearer token.
type ProviderClient struct {
	baseURL string
	client  *http.Client
}

// NewProviderClient builds a client for baseURL (DefaultProviderURL when
// empty). oauth2.NewClient attaches "Authorization: Bearer <secretKey>" to
// every request; ctx may carry a custom *http.Client under oauth2.HTTPClient.
func NewProviderClient(ctx context.Context, baseURL, secretKey string) *ProviderClient {
	if baseURL == "" {
		baseURL = DefaultProviderURL
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: secretKey, TokenType: "Bearer"})
	return &ProviderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  oauth2.NewClient(ctx, src),
	}
}

// FetchUser returns the provider profile for subject.
func (c *ProviderClient) FetchUser(ctx context.Context, subject string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+url.PathEscape(subject), nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building provider request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling provider users API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: provider users API returned status %d", resp.StatusCode)
	}

	var pu providerUser
	if err := json.NewDecoder(resp.Body).Decode(&pu); err != nil {
		return nil, fmt.Errorf("auth: decoding provider user: %w", err)
	}
	if pu.ID == "" {
		return nil, fmt.Errorf("auth: provider returned a user without an id")
	}

	return pu.profile(), nil
}

func (pu *providerUser) profile() *Profile {
	p := &Profile{
		ID:        pu.ID,
		Username:  deref(pu.Username),
		FirstName: deref(pu.FirstName),
		LastName:  deref(pu.LastName),
		ImageURL:  pu.ImageURL,
	}

	primary := deref(pu.PrimaryEmailAddressID)
	for _, e := range pu.EmailAddresses {
		if e.ID == primary {
			p.Email = e.EmailAddress
			break
		}
	}
	if p.Email == "" && len(pu.EmailAddresses) > 0 {
		p.Email = pu.EmailAddresses[0].EmailAddress
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
