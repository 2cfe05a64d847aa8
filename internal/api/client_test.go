package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/all-in-dash/internal/apitest"
	"github.com/hongminglow/all-in-dash/internal/http/respond"
	"github.com/hongminglow/all-in-dash/internal/models"
	"github.com/hongminglow/all-in-dash/internal/models/dto"
)

// bearerTransport stands in for the request pipeline in these tests.
type bearerTransport struct {
	token string
}

func (b *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if b.token != "" {
		out.Header.Set("Authorization", "Bearer "+b.token)
	}
	return http.DefaultTransport.RoundTrip(out)
}

func newClient(t *testing.T) (*Client, *apitest.Server, *bearerTransport) {
	t.Helper()
	srv := apitest.New(t, clockwork.NewFakeClockAt(time.Now()))
	transport := &bearerTransport{}
	return New(srv.BaseURL()+"/", &http.Client{Transport: transport}), srv, transport
}

func TestAuthEndpoints(t *testing.T) {
	client, _, _ := newClient(t)
	ctx := context.Background()

	signup, err := client.SignUp(ctx, dto.SignupRequest{Name: "Ada Lovelace", Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, signup.Token)
	assert.Equal(t, "Ada Lovelace", signup.User.Name)
	assert.False(t, signup.User.HasPreferences)

	_, err = client.SignUp(ctx, dto.SignupRequest{Name: "Ada Lovelace", Email: "ada@example.com", Password: "secret"})
	var apiErr *respond.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "User already exists", apiErr.Message)

	login, err := client.Login(ctx, dto.LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, login.User.ID)

	_, err = client.Login(ctx, dto.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Unauthorized())
	assert.Equal(t, "Invalid credentials", respond.Message(err, "Login failed"))
}

func TestAuthenticatedEndpoints(t *testing.T) {
	client, srv, transport := newClient(t)
	ctx := context.Background()

	user := srv.AddUser(t, "Grace", "grace@example.com", "pw", nil)

	_, err := client.Dashboard(ctx)
	var apiErr *respond.Error
	require.True(t, errors.As(err, &apiErr), "no credential yet")
	assert.True(t, apiErr.Unauthorized())

	transport.token = srv.Token(t, user.ID, time.Hour)

	prefs := models.Preferences{Assets: []string{"bitcoin"}, InvestorType: models.InvestorHODLer, ContentTypes: []string{models.ContentCharts}}
	require.NoError(t, client.SavePreferences(ctx, dto.NewPreferencesRequest(prefs)))
	assert.Equal(t, &prefs, srv.Preferences(user.ID))

	profile, err := client.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.ID)
	assert.True(t, profile.User().HasPreferences)

	payload, err := client.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, payload.News, 2)
	assert.Equal(t, []string{models.ContentCharts}, payload.Preferences.ContentTypes)
	assert.Equal(t, "67123.45", payload.Prices[0].Price.String())

	require.NoError(t, client.SubmitFeedback(ctx, dto.FeedbackRequest{TargetType: models.TargetNews, TargetID: "n1", Vote: 1}))
	assert.Equal(t, map[string]int{"news-n1": 1}, srv.Votes(user.ID))

	payload, err = client.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, payload.Votes["news-n1"])

	prefs.ContentTypes = []string{models.ContentSocial, models.ContentFun}
	require.NoError(t, client.UpdateProfile(ctx, dto.NewPreferencesRequest(prefs)))
	assert.Equal(t, prefs.ContentTypes, srv.Preferences(user.ID).ContentTypes)
}

func TestServerErrorsCarryMessage(t *testing.T) {
	client, srv, transport := newClient(t)
	user := srv.AddUser(t, "Grace", "grace@example.com", "pw", nil)
	transport.token = srv.Token(t, user.ID, time.Hour)

	srv.FailNext("/dashboard", http.StatusInternalServerError, "upstream price feed down")
	_, err := client.Dashboard(context.Background())
	require.Error(t, err)
	assert.Equal(t, "upstream price feed down", respond.Message(err, "Failed to load dashboard"))
	assert.Equal(t, 1, srv.Hits("/dashboard"))
}

func TestTransportErrorsAreWrapped(t *testing.T) {
	client := New("http://127.0.0.1:1/api", &http.Client{Timeout: time.Second})
	_, err := client.Profile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /profile")
	assert.Equal(t, "Failed to load profile", respond.Message(err, "Failed to load profile"))
}
