// Package account implements sign-up, login, onboarding and profile flows on
// top of the session manager.
package account

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/all-in-dash/internal/http/respond"
	"github.com/hongminglow/all-in-dash/internal/models"
	"github.com/hongminglow/all-in-dash/internal/models/dto"
)

// Messages shown when the server gives no reason.
const (
	FallbackAuthMessage        = "Something went wrong"
	FallbackSaveMessage        = "Failed to save preferences"
	FallbackUpdateMessage      = "Failed to update preferences"
	FallbackLoadProfileMessage = "Failed to load profile"
)

// Backend is the slice of the API the account flows need.
type Backend interface {
	SignUp(ctx context.Context, req dto.SignupRequest) (dto.AuthResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error)
	SavePreferences(ctx context.Context, req dto.PreferencesRequest) error
	Profile(ctx context.Context) (models.Profile, error)
	UpdateProfile(ctx context.Context, req dto.PreferencesRequest) error
}

// Session is the part of the session manager the flows drive.
type Session interface {
	Login(ctx context.Context, token string, user models.User) error
	Logout()
	UpdateUser(user models.User)
	MarkPreferencesSet()
	NextRoute() string
}

// Invalidator drops cached dashboard content.
type Invalidator interface {
	Invalidate()
}

// Error is a failed request. Message is fit to show the user.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func failure(err error, fallback string) error {
	return &Error{Message: respond.Message(err, fallback), Err: err}
}

// Service runs the account flows.
type Service struct {
	backend   Backend
	session   Session
	dashboard Invalidator
	logger    *zap.Logger
}

// NewService wires the flows to their collaborators.
func NewService(backend Backend, session Session, dashboard Invalidator, logger *zap.Logger) *Service {
	return &Service{backend: backend, session: session, dashboard: dashboard, logger: logger}
}

// SignUp registers an account, signs in and returns the route to show next.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (string, error) {
	req := dto.SignupRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := dto.Validate(req); err != nil {
		return "", err
	}

	resp, err := s.backend.SignUp(ctx, req)
	if err != nil {
		s.logger.Info("signup failed", zap.String("email", req.Email), zap.Error(err))
		return "", failure(err, FallbackAuthMessage)
	}
	return s.start(ctx, resp)
}

// LogIn signs in and returns the route to show next.
func (s *Service) LogIn(ctx context.Context, email, password string) (string, error) {
	req := dto.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := dto.Validate(req); err != nil {
		return "", err
	}

	resp, err := s.backend.Login(ctx, req)
	if err != nil {
		s.logger.Info("login failed", zap.String("email", req.Email), zap.Error(err))
		return "", failure(err, FallbackAuthMessage)
	}
	return s.start(ctx, resp)
}

func (s *Service) start(ctx context.Context, resp dto.AuthResponse) (string, error) {
	if err := s.session.Login(ctx, resp.Token, resp.User); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return s.session.NextRoute(), nil
}

// SavePreferences submits the onboarding survey.
func (s *Service) SavePreferences(ctx context.Context, prefs models.Preferences) error {
	req := dto.NewPreferencesRequest(prefs)
	if err := dto.Validate(req); err != nil {
		return err
	}
	if err := s.backend.SavePreferences(ctx, req); err != nil {
		return failure(err, FallbackSaveMessage)
	}
	s.dashboard.Invalidate()
	s.session.MarkPreferencesSet()
	return nil
}

// Profile loads the signed-in user's profile and refreshes the session's
// copy of the user.
func (s *Service) Profile(ctx context.Context) (models.Profile, error) {
	profile, err := s.backend.Profile(ctx)
	if err != nil {
		return models.Profile{}, failure(err, FallbackLoadProfileMessage)
	}
	if profile.Preferences == nil {
		profile.Preferences = &models.Preferences{}
	}
	s.session.UpdateUser(profile.User())
	return profile, nil
}

// UpdatePreferences replaces the user's preferences.
func (s *Service) UpdatePreferences(ctx context.Context, prefs models.Preferences) error {
	req := dto.NewPreferencesRequest(prefs)
	if err := dto.Validate(req); err != nil {
		return err
	}
	if err := s.backend.UpdateProfile(ctx, req); err != nil {
		return failure(err, FallbackUpdateMessage)
	}
	s.dashboard.Invalidate()
	s.session.MarkPreferencesSet()
	return nil
}

// LogOut ends the session.
func (s *Service) LogOut() {
	s.session.Logout()
}
