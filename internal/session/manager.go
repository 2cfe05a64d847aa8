package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hongminglow/all-in-dash/internal/events"
	"github.com/hongminglow/all-in-dash/internal/models"
	"github.com/hongminglow/all-in-dash/internal/storage"
)

// DefaultPollInterval is how often an authenticated session re-checks its credential.
const DefaultPollInterval = 5 * time.Minute

// Routes the session steers the front end to.
const (
	RouteEntry      = "/"
	RouteDashboard  = "/dashboard"
	RouteOnboarding = "/onboarding"
	RouteProfile    = "/profile"
)

const authorizationHeader = "Authorization"

// State is the lifecycle stage of the session.
type State int

const (
	Unauthenticated State = iota
	Initializing
	Authenticated
	Expiring
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Initializing:
		return "initializing"
	case Authenticated:
		return "authenticated"
	case Expiring:
		return "expiring"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is a read-only copy of the session. User is only meaningful when
// Loading is false.
type Snapshot struct {
	Credential string
	User       *models.User
	Loading    bool
	State      State
}

// ProfileFetcher loads the signed-in user's profile.
type ProfileFetcher interface {
	Profile(ctx context.Context) (models.Profile, error)
}

// ExpiryChecker decides whether a credential is still usable.
type ExpiryChecker interface {
	IsExpired(token string) bool
}

// HeaderSetter manages headers sent with every request.
type HeaderSetter interface {
	SetDefaultHeader(key, value string)
	DelDefaultHeader(key string)
}

// ExpirySource delivers credential-expired notices from the request pipeline.
type ExpirySource interface {
	OnExpired(ctx context.Context, fn func(events.Notice)) error
}

// Dependencies are the collaborators a Manager needs.
type Dependencies struct {
	Store    storage.CredentialStore
	Codec    ExpiryChecker
	Profiles ProfileFetcher
	Headers  HeaderSetter
	Expiry   ExpirySource
	Clock    clockwork.Clock
	Logger   *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithNavigator sets the callback used to send the user to another route
// after the session collapses.
func WithNavigator(navigate func(route string)) Option {
	return func(m *Manager) { m.navigate = navigate }
}

// WithLogoutHook registers fn to run after every logout.
func WithLogoutHook(fn func()) Option {
	return func(m *Manager) { m.logoutHooks = append(m.logoutHooks, fn) }
}

// WithStoreWatch makes Start watch the credential store for outside changes
// when the store supports it.
func WithStoreWatch(enabled bool) Option {
	return func(m *Manager) { m.watchStore = enabled }
}

// Manager owns the credential and user identity. It is the only component
// that stores a credential.
type Manager struct {
	deps         Dependencies
	pollInterval time.Duration
	navigate     func(route string)
	logoutHooks  []func()
	watchStore   bool

	mu         sync.RWMutex
	state      State
	token      string
	user       *models.User
	loading    bool
	generation uint64
	lifetime   context.Context
	shutdown   context.CancelFunc
	stopPoll   context.CancelFunc
}

// NewManager creates a Manager in the Initializing state. Call Start to
// restore a stored session.
func NewManager(deps Dependencies, opts ...Option) *Manager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	m := &Manager{
		deps:         deps,
		pollInterval: DefaultPollInterval,
		navigate:     func(string) {},
		state:        Initializing,
		loading:      true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lifetime, m.shutdown = context.WithCancel(context.Background())
	return m
}

// Start subscribes to expiration notices and restores the stored session.
// Failures to restore leave the session unauthenticated and are not errors.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.deps.Expiry.OnExpired(m.lifetime, m.handleExpired); err != nil {
		return fmt.Errorf("subscribe to expiration notices: %w", err)
	}
	if m.watchStore {
		m.startWatch()
	}

	m.mu.Lock()
	m.state = Initializing
	m.loading = true
	m.mu.Unlock()

	token, err := m.deps.Store.Load(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.deps.Logger.Warn("load stored credential", zap.Error(err))
	}

	if token == "" {
		m.deps.Headers.DelDefaultHeader(authorizationHeader)
		m.finishLoading(Unauthenticated)
		return nil
	}

	if m.deps.Codec.IsExpired(token) {
		m.deps.Logger.Info("stored credential expired, logging out")
		m.logout(ctx)
		m.finishLoading(Unauthenticated)
		return nil
	}

	m.mu.Lock()
	m.token = token
	gen := m.generation
	m.mu.Unlock()
	m.deps.Headers.SetDefaultHeader(authorizationHeader, "Bearer "+token)

	profile, err := m.deps.Profiles.Profile(ctx)

	m.mu.Lock()
	if gen != m.generation {
		// Login or logout happened while the profile was loading; theirs wins.
		m.loading = false
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		m.deps.Logger.Warn("fetch profile failed, logging out", zap.Error(err))
		m.logout(ctx)
		m.finishLoading(Unauthenticated)
		return nil
	}
	user := profile.User()
	m.user = &user
	m.state = Authenticated
	m.loading = false
	m.startPollLocked()
	m.mu.Unlock()

	m.deps.Logger.Info("session restored", zap.String("user", user.ID))
	return nil
}

// Login stores token and makes user the current identity.
func (m *Manager) Login(ctx context.Context, token string, user models.User) error {
	if err := m.deps.Store.Save(ctx, token); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	m.deps.Headers.SetDefaultHeader(authorizationHeader, "Bearer "+token)

	m.mu.Lock()
	m.generation++
	m.token = token
	m.user = &user
	m.state = Authenticated
	m.loading = false
	m.startPollLocked()
	m.mu.Unlock()

	m.deps.Logger.Info("logged in", zap.String("user", user.ID))
	return nil
}

// Logout clears the credential and identity. Calling it again is harmless.
func (m *Manager) Logout() {
	m.logout(context.Background())
}

func (m *Manager) logout(ctx context.Context) {
	m.mu.Lock()
	m.endLocked(ctx, Unauthenticated)
}

// endLocked clears the session, holding state until teardown finishes. It
// must be called with m.mu held and releases it before running hooks.
func (m *Manager) endLocked(ctx context.Context, state State) {
	m.generation++
	gen := m.generation
	m.token = ""
	m.user = nil
	m.state = state
	stop := m.stopPoll
	m.stopPoll = nil
	hooks := m.logoutHooks
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if err := m.deps.Store.Remove(context.WithoutCancel(ctx)); err != nil {
		m.deps.Logger.Warn("remove credential", zap.Error(err))
	}
	m.deps.Headers.DelDefaultHeader(authorizationHeader)
	for _, hook := range hooks {
		hook()
	}

	m.mu.Lock()
	if m.generation == gen {
		m.state = Unauthenticated
	}
	m.mu.Unlock()
}

// UpdateUser replaces the current identity. The credential and polling are untouched.
func (m *Manager) UpdateUser(user models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return
	}
	m.user = &user
}

// MarkPreferencesSet records that the user finished onboarding.
func (m *Manager) MarkPreferencesSet() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return
	}
	u := *m.user
	u.HasPreferences = true
	m.user = &u
}

// Close stops polling and all subscriptions. The stored credential is kept.
func (m *Manager) Close() {
	m.mu.Lock()
	stop := m.stopPoll
	m.stopPoll = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
	m.shutdown()
}

// Snapshot returns a copy of the session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{Credential: m.token, Loading: m.loading, State: m.state}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// State returns the lifecycle stage.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Authenticated reports whether a user is signed in.
func (m *Manager) Authenticated() bool {
	return m.State() == Authenticated
}

// Token returns the current credential, or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns a copy of the current identity, or nil.
func (m *Manager) User() *models.User {
	return m.Snapshot().User
}

// NextRoute is where the front end should send the user right now.
func (m *Manager) NextRoute() string {
	snap := m.Snapshot()
	switch {
	case snap.State != Authenticated || snap.User == nil:
		return RouteEntry
	case snap.User.HasPreferences:
		return RouteDashboard
	default:
		return RouteOnboarding
	}
}

func (m *Manager) finishLoading(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.loading = false
}

// startPollLocked replaces any running poller. m.mu must be held.
func (m *Manager) startPollLocked() {
	if m.stopPoll != nil {
		m.stopPoll()
	}
	ctx, cancel := context.WithCancel(m.lifetime)
	m.stopPoll = cancel
	ticker := m.deps.Clock.NewTicker(m.pollInterval)
	go m.poll(ctx, ticker)
}

func (m *Manager) poll(ctx context.Context, ticker clockwork.Ticker) {
	defer ticker.Stop()

	m.checkStored()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.checkStored()
		}
	}
}

// checkStored collapses an authenticated session whose stored credential is
// gone or expired.
func (m *Manager) checkStored() {
	m.mu.Lock()
	current, state := m.token, m.state
	m.mu.Unlock()
	if state != Authenticated {
		return
	}
	token, err := m.deps.Store.Load(m.lifetime)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.deps.Logger.Warn("load stored credential", zap.Error(err))
		return
	}
	if token == "" || m.deps.Codec.IsExpired(token) {
		m.expire(current, "credential check")
	}
}

func (m *Manager) handleExpired(n events.Notice) {
	m.mu.Lock()
	current := m.token
	m.mu.Unlock()
	if current == "" || !n.Matches(current) {
		m.deps.Logger.Debug("ignoring expiration notice for another credential",
			zap.String("reason", n.Reason), zap.String("credential", n.Fingerprint))
		return
	}
	m.expire(current, n.Reason)
}

// expire ends the session if token is still its credential.
func (m *Manager) expire(token, reason string) {
	m.mu.Lock()
	if m.token == "" || m.token != token {
		m.mu.Unlock()
		return
	}
	m.endLocked(m.lifetime, Expiring)

	m.deps.Logger.Info("credential expired, logged out", zap.String("reason", reason))
	m.navigate(RouteEntry)
}

func (m *Manager) startWatch() {
	watcher, ok := m.deps.Store.(storage.Watcher)
	if !ok {
		m.deps.Logger.Debug("credential store cannot be watched")
		return
	}
	if err := watcher.Watch(m.lifetime, m.checkStored); err != nil {
		m.deps.Logger.Warn("watch credential store", zap.Error(err))
	}
}
