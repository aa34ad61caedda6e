package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"memberhub/pkg/requestcontext"
)

type MiddlewareSuite struct {
	suite.Suite
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) TestParseUserAgent() {
	s.Run("empty user agent returns unknown device", func() {
		s.Equal("Unknown Device", ParseUserAgent(""))
	})

	s.Run("chrome on desktop includes browser and OS", func() {
		result := ParseUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		s.Contains(result, "Chrome")
		s.Contains(result, "on")
		s.NotContains(result, "_")
	})

	s.Run("firefox on linux includes browser and OS", func() {
		result := ParseUserAgent("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		s.Contains(result, "Firefox")
		s.Contains(result, "on")
	})

	s.Run("unknown user agent still renders a summary", func() {
		result := ParseUserAgent("Unknown/1.0")
		s.Contains(result, "on")
	})
}

func (s *MiddlewareSuite) TestClientIP() {
	s.Run("prefers the first forwarded address", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		s.Equal("203.0.113.9", ClientIP(r))
	})

	s.Run("falls back to the remote address", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.4:5131"
		s.Equal("192.0.2.4", ClientIP(r))
	})
}

func (s *MiddlewareSuite) TestRequestID() {
	s.Run("generates an id and echoes it in the response", func() {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.RequestID(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		s.NotEmpty(seen)
		s.Equal(seen, rec.Header().Get("X-Request-ID"))
	})

	s.Run("honors a caller-supplied id", func() {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.RequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-42")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		s.Equal("req-42", seen)
	})

	s.Run("pins the request-scoped clock", func() {
		var first, second time.Time
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			first = requestcontext.Now(r.Context())
			second = requestcontext.Now(r.Context())
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		s.False(first.IsZero())
		s.Equal(first, second)
	})
}

func (s *MiddlewareSuite) TestClientDevice() {
	s.Run("attaches the parsed summary to the context", func() {
		var seen string
		handler := ClientDevice(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.Device(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		s.Contains(seen, "Chrome")
	})

	s.Run("device summary reads the request context value", func() {
		ctx := requestcontext.WithDevice(context.Background(), "Firefox on Linux")
		s.Equal("Firefox on Linux", DeviceSummary(ctx))
		s.Empty(DeviceSummary(context.Background()))
	})
}

func (s *MiddlewareSuite) TestRequireSession() {
	secret := []byte("test-session-secret")

	signToken := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString(secret)
		s.Require().NoError(err)
		return signed
	}

	s.Run("valid token yields a session identity", func() {
		token := signToken(jwt.MapClaims{
			"sub":         "auth0|ana",
			"email":       "ana@stateu.edu",
			"name":        "Ana Li",
			MetadataClaim: map[string]any{"contactId": "contact-1"},
			"exp":         time.Now().Add(time.Hour).Unix(),
		})

		var gotSubject, gotContact string
		handler := RequireSession(secret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			s.Require().True(ok)
			gotSubject = session.SubjectID
			gotContact, _ = session.Metadata["contactId"].(string)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		s.Equal(http.StatusOK, rec.Code)
		s.Equal("auth0|ana", gotSubject)
		s.Equal("contact-1", gotContact)
	})

	s.Run("missing header is rejected", func() {
		handler := RequireSession(secret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Fail("handler must not run")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("expired token is rejected", func() {
		token := signToken(jwt.MapClaims{
			"sub": "auth0|ana",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		handler := RequireSession(secret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Fail("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("wrong signature is rejected", func() {
		other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "auth0|ana",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := other.SignedString([]byte("other-secret"))
		s.Require().NoError(err)

		handler := RequireSession(secret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Fail("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}
