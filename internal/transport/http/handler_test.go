package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"memberhub/internal/engine"
	"memberhub/internal/profile"
	"memberhub/internal/provider"
)

var testSecret = []byte("handler-test-secret")

// fakeEngine records calls and returns canned results.
type fakeEngine struct {
	profile         profile.Profile
	lastMinimal     bool
	updateResult    engine.UpdateResult
	updateErr       error
	check           engine.IdentityCheck
	checkErr        error
	onboarding      engine.OnboardingResult
	onboardingErr   error
	lastSubjectID   string
	lastContactID   string
	lastFields      map[string]any
	lastCheckedMail string
}

func (f *fakeEngine) GetProfile(_ context.Context, session provider.SessionIdentity, opts engine.GetProfileOptions) profile.Profile {
	f.lastSubjectID = session.SubjectID
	f.lastMinimal = opts.Minimal
	return f.profile
}

func (f *fakeEngine) UpdateProfile(_ context.Context, subjectID, contactID string, fields map[string]any) (engine.UpdateResult, error) {
	f.lastSubjectID = subjectID
	f.lastContactID = contactID
	f.lastFields = fields
	return f.updateResult, f.updateErr
}

func (f *fakeEngine) CheckIdentityExists(_ context.Context, email string) (engine.IdentityCheck, error) {
	f.lastCheckedMail = email
	return f.check, f.checkErr
}

func (f *fakeEngine) SetOnboardingCompleted(_ context.Context, subjectID string) (engine.OnboardingResult, error) {
	f.lastSubjectID = subjectID
	return f.onboarding, f.onboardingErr
}

type HandlerSuite struct {
	suite.Suite
	engine *fakeEngine
	server http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.engine = &fakeEngine{}
	r := chi.NewRouter()
	New(s.engine, testSecret, nil).Register(r)
	s.server = r
}

func (s *HandlerSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *HandlerSuite) sessionToken() string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "auth0|ana",
		"email": "ana@stateu.edu",
		"name":  "Ana Li",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	s.Require().NoError(err)
	return signed
}

func (s *HandlerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Authorization", "Bearer "+s.sessionToken())
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestGetProfile() {
	s.Run("returns the aggregated profile", func() {
		s.engine.profile = profile.Profile{SubjectID: "auth0|ana", FirstName: "Ana"}

		rec := s.do(http.MethodGet, "/profile", nil)
		s.Equal(http.StatusOK, rec.Code)

		var got profile.Profile
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.Equal("Ana", got.FirstName)
		s.False(s.engine.lastMinimal)
		s.Equal("auth0|ana", s.engine.lastSubjectID)
	})

	s.Run("minimal query flag selects minimal mode", func() {
		rec := s.do(http.MethodGet, "/profile?minimal=true", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.True(s.engine.lastMinimal)
	})

	s.Run("rejects requests without a session", func() {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		rec := httptest.NewRecorder()
		s.server.ServeHTTP(rec, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *HandlerSuite) TestUpdateProfile() {
	s.Run("delegates to the engine with the session subject", func() {
		s.engine.updateResult = engine.UpdateResult{Success: true, ContactID: "contact-1", Persisted: true}

		rec := s.do(http.MethodPatch, "/profile", map[string]any{
			"contactId": "contact-1",
			"fields":    map[string]any{"firstName": "Anna"},
		})
		s.Equal(http.StatusOK, rec.Code)

		s.Equal("auth0|ana", s.engine.lastSubjectID)
		s.Equal("contact-1", s.engine.lastContactID)
		s.Equal("Anna", s.engine.lastFields["firstName"])

		var got engine.UpdateResult
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.True(got.Success)
	})

	s.Run("rejects an empty patch", func() {
		rec := s.do(http.MethodPatch, "/profile", map[string]any{"contactId": "contact-1"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("maps engine failures to 502", func() {
		s.engine.updateErr = errors.New("store down")

		rec := s.do(http.MethodPatch, "/profile", map[string]any{
			"contactId": "contact-1",
			"fields":    map[string]any{"firstName": "Anna"},
		})
		s.Equal(http.StatusBadGateway, rec.Code)
	})
}

func (s *HandlerSuite) TestIdentityCheck() {
	s.Run("returns both existence flags", func() {
		s.engine.check = engine.IdentityCheck{ExistsInProvider: true, ExistsInDomainStore: true, DomainRecordID: "contact-1"}

		rec := s.do(http.MethodGet, "/identity/check?email=ana%40stateu.edu", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("ana@stateu.edu", s.engine.lastCheckedMail)

		var got engine.IdentityCheck
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.True(got.ExistsInProvider)
		s.Equal("contact-1", got.DomainRecordID)
	})

	s.Run("missing email is a 400", func() {
		s.engine.checkErr = errors.New("email is required")
		rec := s.do(http.MethodGet, "/identity/check", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestOnboardingComplete() {
	s.Run("reports the persistence outcome", func() {
		s.engine.onboarding = engine.OnboardingResult{Success: true, Persisted: false}

		rec := s.do(http.MethodPost, "/profile/onboarding-complete", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("auth0|ana", s.engine.lastSubjectID)

		var got engine.OnboardingResult
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.True(got.Success)
		s.False(got.Persisted)
	})

	s.Run("token failures are a 502", func() {
		s.engine.onboardingErr = errors.New("token exchange failed")
		rec := s.do(http.MethodPost, "/profile/onboarding-complete", nil)
		s.Equal(http.StatusBadGateway, rec.Code)
	})
}

func (s *HandlerSuite) TestHealthz() {
	s.Run("healthy", func() {
		router := NewRouter(New(s.engine, testSecret, nil), func(context.Context) error { return nil }, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("unhealthy dependency yields 503", func() {
		router := NewRouter(New(s.engine, testSecret, nil), func(context.Context) error { return errors.New("db down") }, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})
}
