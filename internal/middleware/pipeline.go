package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/all-in-dash/internal/storage"
)

// ErrCredentialExpired is returned, without dispatching, for requests that
// would have carried an expired credential.
var ErrCredentialExpired = errors.New("credential expired")

// Reasons attached to expiration notices.
const (
	ReasonExpiredLocally = "expired"
	ReasonUnauthorized   = "unauthorized"
)

// ExpiryChecker decides whether a credential is still usable.
type ExpiryChecker interface {
	IsExpired(token string) bool
}

// ExpirationNotifier receives credential-expired notices.
type ExpirationNotifier interface {
	NotifyExpired(ctx context.Context, token, reason string)
}

// Pipeline is an http.RoundTripper that attaches the stored credential to
// outbound requests and drops it when it turns out to be invalid.
type Pipeline struct {
	store    storage.CredentialStore
	checker  ExpiryChecker
	notifier ExpirationNotifier
	next     http.RoundTripper
	logger   *zap.Logger

	mu       sync.RWMutex
	defaults http.Header
}

var _ http.RoundTripper = (*Pipeline)(nil)

// NewPipeline wraps next. A nil next means http.DefaultTransport.
func NewPipeline(store storage.CredentialStore, checker ExpiryChecker, notifier ExpirationNotifier, next http.RoundTripper, logger *zap.Logger) *Pipeline {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Pipeline{
		store:    store,
		checker:  checker,
		notifier: notifier,
		next:     next,
		logger:   logger,
		defaults: make(http.Header),
	}
}

// SetDefaultHeader adds a header sent with every request unless the request sets it.
func (p *Pipeline) SetDefaultHeader(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaults.Set(key, value)
}

// DelDefaultHeader removes a default header.
func (p *Pipeline) DelDefaultHeader(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaults.Del(key)
}

// DefaultHeader returns the current value of a default header.
func (p *Pipeline) DefaultHeader(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.defaults.Get(key)
}

// RoundTrip implements http.RoundTripper.
func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	p.mu.RLock()
	for key, values := range p.defaults {
		if out.Header.Get(key) == "" {
			out.Header[key] = append([]string(nil), values...)
		}
	}
	p.mu.RUnlock()

	token, err := p.store.Load(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		p.logger.Warn("load credential", zap.Error(err))
	}
	if token == "" {
		token = bearer(out)
	}
	if token != "" {
		if p.checker.IsExpired(token) {
			closeBody(req)
			p.invalidate(ctx, token, ReasonExpiredLocally)
			p.logger.Info("refusing request with expired credential", zap.String("path", req.URL.Path))
			return nil, ErrCredentialExpired
		}
		out.Header.Set("Authorization", "Bearer "+token)
	}
	if out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := p.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && hasBearer(out) {
		p.invalidate(ctx, bearer(out), ReasonUnauthorized)
		p.logger.Info("credential rejected by server", zap.String("path", req.URL.Path))
	}
	return resp, nil
}

// invalidate drops token from the store unless a newer credential replaced
// it, and reports it expired.
func (p *Pipeline) invalidate(ctx context.Context, token, reason string) {
	ctx = context.WithoutCancel(ctx)
	stored, err := p.store.Load(ctx)
	switch {
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		p.logger.Warn("load credential", zap.Error(err))
	case stored != "" && stored == token:
		if err := p.store.Remove(ctx); err != nil {
			p.logger.Warn("remove credential", zap.Error(err))
		}
	}
	p.notifier.NotifyExpired(ctx, token, reason)
}

func bearer(req *http.Request) string {
	if !hasBearer(req) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer "))
}

func hasBearer(req *http.Request) bool {
	return strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ")
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
