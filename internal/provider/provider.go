// Package provider defines the contract against the external identity
// provider's administrative API. The engine only depends on this interface;
// the HTTP implementation targets an Auth0-compatible management API.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Identity is a provider-side user record. Metadata is the mutable
// application metadata the engine synchronizes; RawClaims carries everything
// else the provider returned.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
	PictureURL  string
	RawClaims   map[string]any
	Metadata    map[string]any
}

// SessionIdentity is the request-scoped identity derived from the caller's
// session token. It is read-only to the engine and re-derived each request.
type SessionIdentity struct {
	SubjectID   string
	Email       string
	DisplayName string
	PictureURL  string
	RawClaims   map[string]any
	Metadata    map[string]any
}

// Credentials is the result of a client-credentials exchange.
type Credentials struct {
	AccessToken string
	ExpiresIn   int64 // seconds
}

// API is the administrative surface the engine consumes. Read lookups take
// the bearer token acquired by the token cache so credential handling stays
// in one place.
type API interface {
	ExchangeClientCredentials(ctx context.Context) (Credentials, error)
	GetUserByID(ctx context.Context, token, subjectID string) (*Identity, error)
	// SearchUsersByEmail queries the provider's search index. The index is
	// eventually consistent and may miss recently created users.
	SearchUsersByEmail(ctx context.Context, token, email string) ([]Identity, error)
	// GetUsersByEmail hits the dedicated users-by-email endpoint, which
	// bypasses the search index.
	GetUsersByEmail(ctx context.Context, token, email string) ([]Identity, error)
	// ListUsers returns one page of users for the bounded last-resort scan.
	ListUsers(ctx context.Context, token string, page, perPage int) ([]Identity, error)
	PatchUserMetadata(ctx context.Context, token, subjectID string, metadata map[string]any) (*Identity, error)
}

// apiError carries the HTTP status of a failed provider call so retry
// policies can distinguish transient from permanent failures.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider: status %d: %s", e.status, e.body)
}

func (e *apiError) Transient() bool {
	return e.status >= 500 || e.status == 429
}

// IsTransient reports whether err is worth retrying: provider 5xx/429
// responses and transport-level failures. Anything unclassified counts as
// transient so network hiccups are not misread as permanent rejections.
func IsTransient(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Transient()
	}
	return true
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.status == 404
}
