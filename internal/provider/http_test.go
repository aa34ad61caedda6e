package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"memberhub/internal/platform/config"
)

type HTTPClientSuite struct {
	suite.Suite
	ctx context.Context
}

func TestHTTPClientSuite(t *testing.T) {
	suite.Run(t, new(HTTPClientSuite))
}

func (s *HTTPClientSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *HTTPClientSuite) newClient(handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	s.T().Cleanup(server.Close)
	client := NewHTTPClient(config.ProviderConfig{
		BaseURL:      server.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Audience:     "https://provider.example/api/v2/",
	}, server.Client())
	return client, server
}

func (s *HTTPClientSuite) TestExchangeClientCredentials() {
	s.Run("posts the grant and maps the response", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			s.Equal(http.MethodPost, r.Method)
			s.Equal("/oauth/token", r.URL.Path)

			var body map[string]string
			s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
			s.Equal("client_credentials", body["grant_type"])
			s.Equal("client-id", body["client_id"])

			s.Require().NoError(json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-123",
				"expires_in":   3600,
			}))
		})

		creds, err := client.ExchangeClientCredentials(s.ctx)
		s.Require().NoError(err)
		s.Equal("tok-123", creds.AccessToken)
		s.Equal(int64(3600), creds.ExpiresIn)
	})

	s.Run("provider 5xx is transient", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream exploded", http.StatusServiceUnavailable)
		})

		_, err := client.ExchangeClientCredentials(s.ctx)
		s.Require().Error(err)
		s.True(IsTransient(err))
		s.False(IsNotFound(err))
	})
}

func (s *HTTPClientSuite) TestGetUserByID() {
	s.Run("maps the user document and sends the bearer token", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			s.Equal("/api/v2/users/auth0|ana", r.URL.Path)
			s.Equal("Bearer tok", r.Header.Get("Authorization"))

			s.Require().NoError(json.NewEncoder(w).Encode(map[string]any{
				"user_id": "auth0|ana",
				"email":   "ana@stateu.edu",
				"name":    "Ana Li",
				"picture": "https://cdn.example/ana.png",
				"app_metadata": map[string]any{
					"contactId": "contact-1",
				},
			}))
		})

		identity, err := client.GetUserByID(s.ctx, "tok", "auth0|ana")
		s.Require().NoError(err)
		s.Equal("auth0|ana", identity.SubjectID)
		s.Equal("ana@stateu.edu", identity.Email)
		s.Equal("Ana Li", identity.DisplayName)
		s.Equal("contact-1", identity.Metadata["contactId"])
		s.Equal("ana@stateu.edu", identity.RawClaims["email"])
	})

	s.Run("404 is not-found and not transient", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such user", http.StatusNotFound)
		})

		_, err := client.GetUserByID(s.ctx, "tok", "auth0|ghost")
		s.Require().Error(err)
		s.True(IsNotFound(err))
		s.False(IsTransient(err))
	})

	s.Run("429 is transient", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		})

		_, err := client.GetUserByID(s.ctx, "tok", "auth0|ana")
		s.Require().Error(err)
		s.True(IsTransient(err))
	})
}

func (s *HTTPClientSuite) TestEmailLookups() {
	s.Run("search hits the query endpoint with the v3 engine", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			s.Equal("/api/v2/users", r.URL.Path)
			s.Equal(`email:"ana@stateu.edu"`, r.URL.Query().Get("q"))
			s.Equal("v3", r.URL.Query().Get("search_engine"))

			s.Require().NoError(json.NewEncoder(w).Encode([]map[string]any{
				{"user_id": "auth0|ana", "email": "ana@stateu.edu"},
			}))
		})

		users, err := client.SearchUsersByEmail(s.ctx, "tok", "ana@stateu.edu")
		s.Require().NoError(err)
		s.Require().Len(users, 1)
		s.Equal("auth0|ana", users[0].SubjectID)
	})

	s.Run("users-by-email bypasses the search index", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			s.Equal("/api/v2/users-by-email", r.URL.Path)
			s.Equal("ana@stateu.edu", r.URL.Query().Get("email"))
			s.Require().NoError(json.NewEncoder(w).Encode([]map[string]any{}))
		})

		users, err := client.GetUsersByEmail(s.ctx, "tok", "ana@stateu.edu")
		s.Require().NoError(err)
		s.Empty(users)
	})

	s.Run("listing passes pagination parameters", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			s.Equal("0", r.URL.Query().Get("page"))
			s.Equal("100", r.URL.Query().Get("per_page"))
			s.Require().NoError(json.NewEncoder(w).Encode([]map[string]any{
				{"user_id": "auth0|a"},
				{"user_id": "auth0|b"},
			}))
		})

		users, err := client.ListUsers(s.ctx, "tok", 0, 100)
		s.Require().NoError(err)
		s.Len(users, 2)
	})
}

func (s *HTTPClientSuite) TestPatchUserMetadata() {
	client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPatch, r.Method)
		s.Equal("/api/v2/users/auth0|ana", r.URL.Path)

		var body map[string]map[string]any
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal(true, body["app_metadata"]["onboardingCompleted"])

		s.Require().NoError(json.NewEncoder(w).Encode(map[string]any{
			"user_id":      "auth0|ana",
			"app_metadata": body["app_metadata"],
		}))
	})

	identity, err := client.PatchUserMetadata(s.ctx, "tok", "auth0|ana", map[string]any{
		"onboardingCompleted": true,
	})
	s.Require().NoError(err)
	s.Equal(true, identity.Metadata["onboardingCompleted"])
}
