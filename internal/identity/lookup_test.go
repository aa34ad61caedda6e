package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"memberhub/internal/provider"
	"memberhub/pkg/platform/audit"
	"memberhub/pkg/platform/sentinel"
)

type fakeAPI struct {
	getUserByID  func(ctx context.Context, token, id string) (*provider.Identity, error)
	searchByMail func(ctx context.Context, token, email string) ([]provider.Identity, error)
	byMail       func(ctx context.Context, token, email string) ([]provider.Identity, error)
	list         func(ctx context.Context, token string, page, perPage int) ([]provider.Identity, error)
}

func (f *fakeAPI) ExchangeClientCredentials(context.Context) (provider.Credentials, error) {
	return provider.Credentials{AccessToken: "tok", ExpiresIn: 3600}, nil
}

func (f *fakeAPI) GetUserByID(ctx context.Context, token, id string) (*provider.Identity, error) {
	if f.getUserByID == nil {
		return nil, errors.New("unexpected GetUserByID")
	}
	return f.getUserByID(ctx, token, id)
}

func (f *fakeAPI) SearchUsersByEmail(ctx context.Context, token, email string) ([]provider.Identity, error) {
	if f.searchByMail == nil {
		return nil, nil
	}
	return f.searchByMail(ctx, token, email)
}

func (f *fakeAPI) GetUsersByEmail(ctx context.Context, token, email string) ([]provider.Identity, error) {
	if f.byMail == nil {
		return nil, nil
	}
	return f.byMail(ctx, token, email)
}

func (f *fakeAPI) ListUsers(ctx context.Context, token string, page, perPage int) ([]provider.Identity, error) {
	if f.list == nil {
		return nil, nil
	}
	return f.list(ctx, token, page, perPage)
}

func (f *fakeAPI) PatchUserMetadata(context.Context, string, string, map[string]any) (*provider.Identity, error) {
	return nil, errors.New("unexpected PatchUserMetadata")
}

type staticTokens struct {
	err error
}

func (s staticTokens) GetToken(context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "mgmt-token", nil
}

// capturePublisher records events so tests can assert on audited fallbacks.
type capturePublisher struct {
	events []audit.Event
}

func (p *capturePublisher) Publish(_ context.Context, event audit.Event) {
	p.events = append(p.events, event)
}

type LookupSuite struct {
	suite.Suite
	ctx context.Context
}

func TestLookupSuite(t *testing.T) {
	suite.Run(t, new(LookupSuite))
}

func (s *LookupSuite) SetupTest() {
	s.ctx = context.Background()
}

func identityFor(email string) provider.Identity {
	return provider.Identity{SubjectID: "auth0|" + email, Email: email}
}

func (s *LookupSuite) TestFindBySubjectID() {
	s.Run("direct fetch by id", func() {
		api := &fakeAPI{getUserByID: func(_ context.Context, token, id string) (*provider.Identity, error) {
			s.Equal("mgmt-token", token)
			s.Equal("auth0|123", id)
			return &provider.Identity{SubjectID: id, Email: "user@example.com"}, nil
		}}
		lookup, err := New(api, staticTokens{})
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{SubjectID: "auth0|123"})
		s.Require().NoError(err)
		s.Require().NotNil(identity)
		s.Equal("auth0|123", identity.SubjectID)
	})

	s.Run("fetch error degrades to not found", func() {
		api := &fakeAPI{getUserByID: func(context.Context, string, string) (*provider.Identity, error) {
			return nil, errors.New("boom")
		}}
		lookup, err := New(api, staticTokens{})
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{SubjectID: "auth0|123"})
		s.ErrorIs(err, sentinel.ErrIdentityNotFound)
		s.Nil(identity)
	})
}

func (s *LookupSuite) TestFindByEmail() {
	s.Run("normalizes case and whitespace before comparison", func() {
		var searched string
		api := &fakeAPI{searchByMail: func(_ context.Context, _, email string) ([]provider.Identity, error) {
			searched = email
			return []provider.Identity{identityFor(email)}, nil
		}}
		lookup, err := New(api, staticTokens{})
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{Email: "  User@Example.COM "})
		s.Require().NoError(err)
		s.Require().NotNil(identity)
		s.Equal("user@example.com", searched)
		s.Equal("user@example.com", identity.Email)
	})

	s.Run("falls through to by-email endpoint when index is stale", func() {
		api := &fakeAPI{
			searchByMail: func(context.Context, string, string) ([]provider.Identity, error) {
				return nil, nil // index hasn't caught up
			},
			byMail: func(_ context.Context, _, email string) ([]provider.Identity, error) {
				return []provider.Identity{identityFor(email)}, nil
			},
		}
		lookup, err := New(api, staticTokens{})
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{Email: "fresh@example.com"})
		s.Require().NoError(err)
		s.Require().NotNil(identity)
		s.Equal("fresh@example.com", identity.Email)
	})

	s.Run("listing scan matches case-insensitively as last resort", func() {
		api := &fakeAPI{
			list: func(_ context.Context, _ string, page, perPage int) ([]provider.Identity, error) {
				s.Equal(0, page)
				s.Equal(scanPageSize, perPage)
				return []provider.Identity{
					identityFor("other@example.com"),
					{SubjectID: "auth0|42", Email: "MiXeD@Example.com"},
				}, nil
			},
		}
		lookup, err := New(api, staticTokens{})
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{Email: "mixed@example.com"})
		s.Require().NoError(err)
		s.Require().NotNil(identity)
		s.Equal("auth0|42", identity.SubjectID)
	})

	s.Run("strategy errors are skipped not propagated", func() {
		api := &fakeAPI{
			searchByMail: func(context.Context, string, string) ([]provider.Identity, error) {
				return nil, errors.New("search 503")
			},
			byMail: func(_ context.Context, _, email string) ([]provider.Identity, error) {
				return []provider.Identity{identityFor(email)}, nil
			},
		}
		lookup, err := New(api, staticTokens{})
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{Email: "user@example.com"})
		s.NoError(err)
		s.NotNil(identity)
	})

	s.Run("all strategies empty yields the not-found sentinel", func() {
		lookup, err := New(&fakeAPI{}, staticTokens{})
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{Email: "ghost@example.com"})
		s.ErrorIs(err, sentinel.ErrIdentityNotFound)
		s.Nil(identity)
	})

	s.Run("token failure degrades to not found", func() {
		lookup, err := New(&fakeAPI{}, staticTokens{err: errors.New("exchange down")})
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{Email: "user@example.com"})
		s.ErrorIs(err, sentinel.ErrIdentityNotFound)
		s.Nil(identity)
	})

	s.Run("empty query yields not found", func() {
		lookup, err := New(&fakeAPI{}, staticTokens{})
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{})
		s.ErrorIs(err, sentinel.ErrIdentityNotFound)
		s.Nil(identity)
	})
}

func (s *LookupSuite) TestScanFallbackAudit() {
	s.Run("listing scan hit publishes a fallback event", func() {
		api := &fakeAPI{
			list: func(context.Context, string, int, int) ([]provider.Identity, error) {
				return []provider.Identity{{SubjectID: "auth0|42", Email: "late@example.com"}}, nil
			},
		}
		publisher := &capturePublisher{}
		lookup, err := New(api, staticTokens{}, WithAuditPublisher(publisher))
		s.Require().NoError(err)

		identity, err := lookup.Find(s.ctx, Query{Email: "late@example.com"})
		s.Require().NoError(err)
		s.Require().NotNil(identity)

		s.Require().Len(publisher.events, 1)
		s.Equal(audit.ActionIdentityScanFallback, publisher.events[0].Action)
		s.Equal("auth0|42", publisher.events[0].SubjectID)
		s.Equal("late@example.com", publisher.events[0].Email)
	})

	s.Run("search index hit is not audited", func() {
		api := &fakeAPI{searchByMail: func(_ context.Context, _, email string) ([]provider.Identity, error) {
			return []provider.Identity{identityFor(email)}, nil
		}}
		publisher := &capturePublisher{}
		lookup, err := New(api, staticTokens{}, WithAuditPublisher(publisher))
		s.Require().NoError(err)

		_, err = lookup.Find(s.ctx, Query{Email: "user@example.com"})
		s.Require().NoError(err)
		s.Empty(publisher.events)
	})
}
