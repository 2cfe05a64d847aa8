package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hongminglow/all-in-dash/internal/http/respond"
	"github.com/hongminglow/all-in-dash/internal/models"
	"github.com/hongminglow/all-in-dash/internal/models/dto"
)

// Client calls the dashboard backend. Authentication is handled by the
// http.Client's transport (see middleware.Pipeline).
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL, e.g. http://localhost:5000/api.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// SignUp registers an account and returns its first credential.
func (c *Client) SignUp(ctx context.Context, req dto.SignupRequest) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/signup", req, &out)
	return out, err
}

// Login exchanges email and password for a credential.
func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", req, &out)
	return out, err
}

// SavePreferences submits the onboarding survey.
func (c *Client) SavePreferences(ctx context.Context, req dto.PreferencesRequest) error {
	return c.do(ctx, http.MethodPost, "/onboarding", req, nil)
}

// Dashboard fetches the personalized dashboard.
func (c *Client) Dashboard(ctx context.Context) (models.DashboardPayload, error) {
	var out models.DashboardPayload
	err := c.do(ctx, http.MethodGet, "/dashboard", nil, &out)
	return out, err
}

// SubmitFeedback records a vote on a dashboard item.
func (c *Client) SubmitFeedback(ctx context.Context, req dto.FeedbackRequest) error {
	return c.do(ctx, http.MethodPost, "/feedback", req, nil)
}

// Profile fetches the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (models.Profile, error) {
	var out models.Profile
	err := c.do(ctx, http.MethodGet, "/profile", nil, &out)
	return out, err
}

// UpdateProfile replaces the user's preferences.
func (c *Client) UpdateProfile(ctx context.Context, req dto.PreferencesRequest) error {
	return c.do(ctx, http.MethodPut, "/profile", req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return respond.Decode(resp, out)
}
