// Package apitest runs an in-process fake of the dashboard backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/all-in-dash/internal/models"
	"github.com/hongminglow/all-in-dash/internal/models/dto"
)

type account struct {
	user         models.User
	passwordHash []byte
	preferences  *models.Preferences
	votes        map[string]int
}

type failure struct {
	status  int
	message string
}

// Server is a fake backend. Routes mirror the real API under /api.
type Server struct {
	*httptest.Server
	Tokens *TokenManager

	clock     clockwork.Clock
	startedAt time.Time
	logger    *zap.Logger

	mu       sync.Mutex
	accounts map[string]*account // by email
	byID     map[string]*account
	nextID   int
	hits     map[string]int
	failures map[string][]failure
	content  models.DashboardPayload
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the default test logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New starts a fake backend and stops it when the test ends. It logs to t
// unless WithLogger says otherwise.
func New(t testing.TB, clock clockwork.Clock, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		Tokens:    NewTokenManager("apitest-secret", time.Hour, clock),
		clock:     clock,
		startedAt: clock.Now(),
		logger:    zaptest.NewLogger(t).Named("apitest"),
		accounts:  make(map[string]*account),
		byID:      make(map[string]*account),
		hits:      make(map[string]int),
		failures:  make(map[string][]failure),
		content:   sampleContent(clock.Now()),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/auth/signup", s.handleSignup)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/onboarding", s.authenticated(s.handleOnboarding))
	mux.HandleFunc("/api/dashboard", s.authenticated(s.handleDashboard))
	mux.HandleFunc("/api/feedback", s.authenticated(s.handleFeedback))
	mux.HandleFunc("/api/profile", s.authenticated(s.handleProfile))

	s.Server = httptest.NewServer(s.track(mux))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to api.New.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// Hits returns how many requests reached path (e.g. "/dashboard").
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits["/api"+path]
}

// FailNext makes the next request to path answer with status and message.
func (s *Server) FailNext(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := "/api" + path
	s.failures[key] = append(s.failures[key], failure{status: status, message: message})
}

// EditContent changes the dashboard content served to every user.
func (s *Server) EditContent(edit func(*models.DashboardPayload)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edit(&s.content)
}

// AddUser registers an account directly and returns it.
func (s *Server) AddUser(t testing.TB, name, email, password string, prefs *models.Preferences) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(name, email, hash, prefs).user
}

// Token issues a credential for userID that expires after ttl.
func (s *Server) Token(t testing.TB, userID string, ttl time.Duration) string {
	t.Helper()
	token, err := s.Tokens.GenerateWithTTL(userID, ttl)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// Votes returns the votes recorded for a user.
func (s *Server) Votes(userID string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	if acc, ok := s.byID[userID]; ok {
		for k, v := range acc.votes {
			out[k] = v
		}
	}
	return out
}

// Preferences returns the stored preferences for a user.
func (s *Server) Preferences(userID string) *models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.byID[userID]; ok && acc.preferences != nil {
		p := *acc.preferences
		return &p
	}
	return nil
}

func (s *Server) createLocked(name, email string, hash []byte, prefs *models.Preferences) *account {
	s.nextID++
	acc := &account{
		user:         models.User{ID: fmt.Sprintf("user-%d", s.nextID), Name: name, Email: email},
		passwordHash: hash,
		preferences:  prefs,
		votes:        make(map[string]int),
	}
	acc.user.HasPreferences = prefs != nil && prefs.InvestorType != ""
	s.accounts[strings.ToLower(email)] = acc
	s.byID[acc.user.ID] = acc
	return acc
}

// track counts hits and replays queued failures before routing.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		var fail *failure
		if queue := s.failures[r.URL.Path]; len(queue) > 0 {
			fail = &queue[0]
			s.failures[r.URL.Path] = queue[1:]
		}
		s.mu.Unlock()

		if fail != nil {
			s.logger.Debug("injected failure", zap.String("path", r.URL.Path), zap.Int("status", fail.status))
			s.respondError(w, fail.status, fail.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userHandler func(w http.ResponseWriter, r *http.Request, acc *account)

func (s *Server) authenticated(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			s.respondError(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		sub, err := s.Tokens.Verify(raw)
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		s.mu.Lock()
		acc, ok := s.byID[sub]
		s.mu.Unlock()
		if !ok {
			s.respondError(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		next(w, r, acc)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": s.clock.Since(s.startedAt).Truncate(time.Second).String(),
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req dto.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "Please provide all required fields")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[strings.ToLower(req.Email)]; exists {
		s.mu.Unlock()
		s.respondError(w, http.StatusBadRequest, "User already exists")
		return
	}
	acc := s.createLocked(strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), hash, nil)
	s.mu.Unlock()

	s.respondAuth(w, http.StatusCreated, acc)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(req.Email))]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		s.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.respondAuth(w, http.StatusOK, acc)
}

func (s *Server) respondAuth(w http.ResponseWriter, status int, acc *account) {
	token, err := s.Tokens.Generate(acc.user.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	s.mu.Lock()
	user := acc.user
	s.mu.Unlock()
	s.respondJSON(w, status, dto.AuthResponse{Token: token, User: user})
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request, acc *account) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.savePreferences(w, r, acc)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, acc *account) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		profile := models.Profile{ID: acc.user.ID, Name: acc.user.Name, Email: acc.user.Email, Preferences: acc.preferences}
		s.mu.Unlock()
		s.respondJSON(w, http.StatusOK, profile)
	case http.MethodPut:
		s.savePreferences(w, r, acc)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) savePreferences(w http.ResponseWriter, r *http.Request, acc *account) {
	var req dto.PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	s.mu.Lock()
	acc.preferences = &models.Preferences{Assets: req.Assets, InvestorType: req.InvestorType, ContentTypes: req.ContentTypes}
	acc.user.HasPreferences = req.InvestorType != ""
	s.mu.Unlock()
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Preferences saved"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, acc *account) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	payload := s.content.Clone()
	for k, v := range acc.votes {
		payload.Votes[k] = v
	}
	if acc.preferences != nil {
		payload.Preferences.ContentTypes = append([]string(nil), acc.preferences.ContentTypes...)
	}
	payload.UpdatedAt = s.clock.Now()
	s.mu.Unlock()
	s.respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, acc *account) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req dto.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Vote != 1 && req.Vote != -1 {
		s.respondError(w, http.StatusBadRequest, "Vote must be 1 or -1")
		return
	}
	s.mu.Lock()
	acc.votes[models.VoteKey(req.TargetType, req.TargetID)] = req.Vote
	s.mu.Unlock()
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Feedback recorded"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", zap.Int("status", status), zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"message": message})
}

func sampleContent(now time.Time) models.DashboardPayload {
	return models.DashboardPayload{
		News: []models.NewsItem{
			{ID: "n1", Title: "Bitcoin ETF inflows hit a monthly high", Source: "CoinDesk", URL: "https://example.com/n1", PublishedAt: now.Add(-2 * time.Hour)},
			{ID: "n2", Title: "Ethereum gas fees drop after upgrade", Source: "The Block", URL: "https://example.com/n2", PublishedAt: now.Add(-5 * time.Hour)},
		},
		Prices: []models.PriceItem{
			{ID: "bitcoin", Name: "Bitcoin", Price: decimal.RequireFromString("67123.45"), Change24h: decimal.RequireFromString("2.31")},
			{ID: "ethereum", Name: "Ethereum", Price: decimal.RequireFromString("3120.08"), Change24h: decimal.RequireFromString("-0.87")},
		},
		Insight: &models.Insight{ID: "i1", Text: "Volatility is compressing; a breakout is likely this week.", GeneratedAt: now},
		Meme:    &models.Meme{ID: "m1", Title: "Buy the dip", URL: "/memes/dip.png"},
		Votes:   map[string]int{},
	}
}
