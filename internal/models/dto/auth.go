package dto

import "github.com/hongminglow/all-in-dash/internal/models"

type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,letterspace"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by both /auth/signup and /auth/login.
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type PreferencesRequest struct {
	Assets       []string `json:"assets" validate:"dive,required"`
	InvestorType string   `json:"investorType" validate:"required,investortype"`
	ContentTypes []string `json:"contentTypes" validate:"min=1,dive,contenttype"`
}

type FeedbackRequest struct {
	TargetType string `json:"targetType" validate:"required,targettype"`
	TargetID   string `json:"targetId" validate:"required"`
	Vote       int    `json:"vote" validate:"oneof=-1 1"`
}

// NewPreferencesRequest copies survey answers into a request body.
func NewPreferencesRequest(p models.Preferences) PreferencesRequest {
	assets := p.Assets
	if assets == nil {
		assets = []string{}
	}
	return PreferencesRequest{Assets: assets, InvestorType: p.InvestorType, ContentTypes: p.ContentTypes}
}
