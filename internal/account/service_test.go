package account

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hongminglow/all-in-dash/internal/http/respond"
	"github.com/hongminglow/all-in-dash/internal/models"
	"github.com/hongminglow/all-in-dash/internal/models/dto"
)

type stubBackend struct {
	calls   []string
	auth    dto.AuthResponse
	profile models.Profile
	err     error
	saved   dto.PreferencesRequest
}

func (b *stubBackend) SignUp(ctx context.Context, req dto.SignupRequest) (dto.AuthResponse, error) {
	b.calls = append(b.calls, "signup:"+req.Name)
	return b.auth, b.err
}

func (b *stubBackend) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	b.calls = append(b.calls, "login:"+req.Email)
	return b.auth, b.err
}

func (b *stubBackend) SavePreferences(ctx context.Context, req dto.PreferencesRequest) error {
	b.calls = append(b.calls, "onboarding")
	b.saved = req
	return b.err
}

func (b *stubBackend) Profile(ctx context.Context) (models.Profile, error) {
	b.calls = append(b.calls, "profile")
	return b.profile, b.err
}

func (b *stubBackend) UpdateProfile(ctx context.Context, req dto.PreferencesRequest) error {
	b.calls = append(b.calls, "update")
	b.saved = req
	return b.err
}

type stubSession struct {
	token       string
	user        *models.User
	loggedOut   int
	loginErr    error
	prefsMarked bool
}

func (s *stubSession) Login(ctx context.Context, token string, user models.User) error {
	if s.loginErr != nil {
		return s.loginErr
	}
	s.token, s.user = token, &user
	return nil
}

func (s *stubSession) Logout() {
	s.loggedOut++
	s.token, s.user = "", nil
}

func (s *stubSession) UpdateUser(user models.User) { s.user = &user }

func (s *stubSession) MarkPreferencesSet() {
	s.prefsMarked = true
	if s.user != nil {
		s.user.HasPreferences = true
	}
}

func (s *stubSession) NextRoute() string {
	switch {
	case s.user == nil:
		return "/"
	case s.user.HasPreferences:
		return "/dashboard"
	default:
		return "/onboarding"
	}
}

type invalidations int

func (i *invalidations) Invalidate() { *i++ }

func newService(t *testing.T) (*Service, *stubBackend, *stubSession, *invalidations) {
	t.Helper()
	backend := &stubBackend{}
	sess := &stubSession{}
	inv := new(invalidations)
	return NewService(backend, sess, inv, zaptest.NewLogger(t)), backend, sess, inv
}

func TestSignUpValidation(t *testing.T) {
	svc, backend, _, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name, email, password string
		want                  string
	}{
		{"A", "a@example.com", "pw", "Name must be at least 2 characters long"},
		{"   ", "a@example.com", "pw", "Name must be at least 2 characters long"},
		{"R2-D2", "a@example.com", "pw", "Name must contain only English letters and spaces"},
		{"Ada", "not-an-email", "pw", "Email address is invalid"},
		{"Ada", "a@example.com", "", "Password is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name+"/"+tc.email, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tc.name, tc.email, tc.password)
			var verr *dto.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.want, verr.Message)
		})
	}
	assert.Empty(t, backend.calls, "validation errors never reach the network")
}

func TestSignUpStartsSession(t *testing.T) {
	svc, backend, sess, _ := newService(t)
	backend.auth = dto.AuthResponse{Token: "t1", User: models.User{ID: "u1", Name: "Ada Lovelace"}}

	route, err := svc.SignUp(context.Background(), "  Ada Lovelace ", " ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "/onboarding", route)
	assert.Equal(t, []string{"signup:Ada Lovelace"}, backend.calls)
	assert.Equal(t, "t1", sess.token)
}

func TestLogIn(t *testing.T) {
	svc, backend, sess, _ := newService(t)
	ctx := context.Background()

	backend.err = &respond.Error{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
	_, err := svc.LogIn(ctx, "ada@example.com", "wrong")
	assert.EqualError(t, err, "Invalid credentials")
	assert.Nil(t, sess.user)

	backend.err = errors.New("dial tcp: connection refused")
	_, err = svc.LogIn(ctx, "ada@example.com", "pw")
	assert.EqualError(t, err, FallbackAuthMessage)

	backend.err = nil
	backend.auth = dto.AuthResponse{Token: "t1", User: models.User{ID: "u1", HasPreferences: true}}
	route, err := svc.LogIn(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", route)

	sess.loginErr = errors.New("disk full")
	_, err = svc.LogIn(ctx, "ada@example.com", "pw")
	assert.ErrorContains(t, err, "start session")
}

func TestSavePreferences(t *testing.T) {
	svc, backend, sess, inv := newService(t)
	ctx := context.Background()
	sess.user = &models.User{ID: "u1"}

	err := svc.SavePreferences(ctx, models.Preferences{ContentTypes: []string{models.ContentCharts}})
	var verr *dto.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Please select your investor type", verr.Message)

	err = svc.SavePreferences(ctx, models.Preferences{InvestorType: models.InvestorHODLer})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Please select at least one content type", verr.Message)
	assert.Empty(t, backend.calls)

	backend.err = &respond.Error{Status: http.StatusInternalServerError}
	err = svc.SavePreferences(ctx, models.Preferences{InvestorType: models.InvestorHODLer, ContentTypes: []string{models.ContentCharts}})
	assert.EqualError(t, err, FallbackSaveMessage)
	assert.Zero(t, *inv)
	assert.False(t, sess.prefsMarked)

	backend.err = nil
	require.NoError(t, svc.SavePreferences(ctx, models.Preferences{InvestorType: models.InvestorHODLer, ContentTypes: []string{models.ContentCharts}}))
	assert.Equal(t, 1, int(*inv), "cache cleared after saving")
	assert.True(t, sess.prefsMarked)
	assert.Equal(t, []string{}, backend.saved.Assets)
	assert.Equal(t, "/dashboard", sess.NextRoute())
}

func TestProfileAndUpdate(t *testing.T) {
	svc, backend, sess, inv := newService(t)
	ctx := context.Background()
	sess.user = &models.User{ID: "u1"}

	backend.profile = models.Profile{ID: "u1", Name: "Ada"}
	profile, err := svc.Profile(ctx)
	require.NoError(t, err)
	require.NotNil(t, profile.Preferences, "missing preferences read as empty")
	assert.Equal(t, "Ada", sess.user.Name)

	prefs := models.Preferences{Assets: []string{"bitcoin"}, InvestorType: models.InvestorDeFi, ContentTypes: []string{models.ContentFun}}
	require.NoError(t, svc.UpdatePreferences(ctx, prefs))
	assert.Equal(t, 1, int(*inv))
	assert.Equal(t, prefs.Assets, backend.saved.Assets)

	backend.err = &respond.Error{Status: http.StatusBadRequest, Message: "Invalid asset"}
	assert.EqualError(t, svc.UpdatePreferences(ctx, prefs), "Invalid asset")
	_, err = svc.Profile(ctx)
	assert.EqualError(t, err, "Invalid asset")

	svc.LogOut()
	assert.Equal(t, 1, sess.loggedOut)
}
