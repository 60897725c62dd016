package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providerUserJSON = `{
  "id": "user_2abc",
  "username": null,
  "first_name": "Ada",
  "last_name": "Lovelace",
  "image_url": "https://img.example.com/ada.png",
  "primary_email_address_id": "idn_2",
  "email_addresses": [
    {"id": "idn_1", "email_address": "old@example.com"},
    {"id": "idn_2", "email_address": "ada@example.com"}
  ]
}`

func TestNewProviderClient_BaseURL(t *testing.T) {
	assert.Equal(t, DefaultProviderURL, NewProviderClient(context.Background(), "", "sk").baseURL)
	assert.Equal(t, "http://localhost:8080/v1", NewProviderClient(context.Background(), "http://localhost:8080/v1/", "sk").baseURL)
}

func TestProviderClient_FetchUser(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(providerUserJSON))
	}))
	t.Cleanup(srv.Close)

	c := NewProviderClient(context.Background(), srv.URL+"/v1/", "sk_test_123")
	p, err := c.FetchUser(context.Background(), "user_2abc")
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	assert.Equal(t, "/v1/users/user_2abc", gotPath)
	assert.Equal(t, &Profile{
		ID:        "user_2abc",
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		ImageURL:  "https://img.example.com/ada.png",
	}, p)
}

func TestProviderClient_FetchUser_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"errors":[]}`},
		{"bad json", http.StatusOK, `{`},
		{"missing id", http.StatusOK, `{"first_name":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			c := NewProviderClient(context.Background(), srv.URL, "sk_test_123")
			_, err := c.FetchUser(context.Background(), "user_2abc")
			assert.Error(t, err)
		})
	}
}
