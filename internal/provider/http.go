package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"memberhub/internal/platform/config"
)

// HTTPClient implements API against an Auth0-compatible management API.
type HTTPClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	audience     string
	http         *http.Client
}

// NewHTTPClient builds a provider client. The http.Client may be nil, in
// which case http.DefaultClient is used; callers impose timeouts via ctx.
func NewHTTPClient(cfg config.ProviderConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		audience:     cfg.Audience,
		http:         httpClient,
	}
}

func (c *HTTPClient) ExchangeClientCredentials(ctx context.Context) (Credentials, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"audience":      c.audience,
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("marshal token request: %w", err)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.do(ctx, http.MethodPost, "/oauth/token", "", bytes.NewReader(body), &out); err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: out.AccessToken, ExpiresIn: out.ExpiresIn}, nil
}

func (c *HTTPClient) GetUserByID(ctx context.Context, token, subjectID string) (*Identity, error) {
	path := "/api/v2/users/" + url.PathEscape(subjectID)
	identity, err := c.getUser(ctx, token, path)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func (c *HTTPClient) SearchUsersByEmail(ctx context.Context, token, email string) ([]Identity, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("email:%q", email))
	q.Set("search_engine", "v3")
	return c.getUsers(ctx, token, "/api/v2/users?"+q.Encode())
}

func (c *HTTPClient) GetUsersByEmail(ctx context.Context, token, email string) ([]Identity, error) {
	q := url.Values{}
	q.Set("email", email)
	return c.getUsers(ctx, token, "/api/v2/users-by-email?"+q.Encode())
}

func (c *HTTPClient) ListUsers(ctx context.Context, token string, page, perPage int) ([]Identity, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	return c.getUsers(ctx, token, "/api/v2/users?"+q.Encode())
}

func (c *HTTPClient) PatchUserMetadata(ctx context.Context, token, subjectID string, metadata map[string]any) (*Identity, error) {
	body, err := json.Marshal(map[string]any{"app_metadata": metadata})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata patch: %w", err)
	}

	var raw map[string]any
	path := "/api/v2/users/" + url.PathEscape(subjectID)
	if err := c.do(ctx, http.MethodPatch, path, token, bytes.NewReader(body), &raw); err != nil {
		return nil, err
	}
	identity := identityFromRaw(raw)
	return &identity, nil
}

func (c *HTTPClient) getUser(ctx context.Context, token, path string) (*Identity, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, path, token, nil, &raw); err != nil {
		return nil, err
	}
	identity := identityFromRaw(raw)
	return &identity, nil
}

func (c *HTTPClient) getUsers(ctx context.Context, token, path string) ([]Identity, error) {
	var raws []map[string]any
	if err := c.do(ctx, http.MethodGet, path, token, nil, &raws); err != nil {
		return nil, err
	}
	identities := make([]Identity, 0, len(raws))
	for _, raw := range raws {
		identities = append(identities, identityFromRaw(raw))
	}
	return identities, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Cap the error body; provider error pages can be large.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{status: resp.StatusCode, body: string(snippet)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// identityFromRaw maps a raw provider user document to an Identity while
// keeping the full document available as claims.
func identityFromRaw(raw map[string]any) Identity {
	identity := Identity{RawClaims: raw}
	if v, ok := raw["user_id"].(string); ok {
		identity.SubjectID = v
	}
	if v, ok := raw["email"].(string); ok {
		identity.Email = v
	}
	if v, ok := raw["name"].(string); ok {
		identity.DisplayName = v
	}
	if v, ok := raw["picture"].(string); ok {
		identity.PictureURL = v
	}
	if v, ok := raw["app_metadata"].(map[string]any); ok {
		identity.Metadata = v
	}
	return identity
}
