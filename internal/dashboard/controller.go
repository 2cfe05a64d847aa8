package dashboard

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hongminglow/all-in-dash/internal/cache"
	"github.com/hongminglow/all-in-dash/internal/http/respond"
	"github.com/hongminglow/all-in-dash/internal/models"
	"github.com/hongminglow/all-in-dash/internal/models/dto"
)

// FallbackMessage is shown when a load fails without a server message.
const FallbackMessage = "Failed to load dashboard"

const loadKey = "dashboard"

// ErrNotAuthenticated is returned when there is no session to load for, or
// the session ended while a request was in flight.
var ErrNotAuthenticated = errors.New("not authenticated")

// Direction is a vote.
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

// VoteState maps "{type}-{id}" to the active vote on that item.
type VoteState map[string]int

// Get returns the active direction on an item, or 0 when there is none.
func (v VoteState) Get(targetType, targetID string) Direction {
	return Direction(v[models.VoteKey(targetType, targetID)])
}

// Backend is the slice of the API the controller needs.
type Backend interface {
	Dashboard(ctx context.Context) (models.DashboardPayload, error)
	SubmitFeedback(ctx context.Context, req dto.FeedbackRequest) error
}

// Session reports who is signed in.
type Session interface {
	Authenticated() bool
	Token() string
}

// View is what Load hands to the front end.
type View struct {
	Payload   models.DashboardPayload
	Votes     VoteState
	FetchedAt time.Time
	Cached    bool
}

// Sections returns the sections the payload's preferences enable.
func (v View) Sections() []Section {
	return VisibleSections(v.Payload.Preferences.ContentTypes)
}

func (v View) clone() View {
	v.Payload = v.Payload.Clone()
	v.Votes = maps.Clone(v.Votes)
	return v
}

// LoadError is a failed fetch. Message is fit to show the user.
type LoadError struct {
	Message string
	Err     error
}

func (e *LoadError) Error() string { return e.Message }

func (e *LoadError) Unwrap() error { return e.Err }

// Controller loads the dashboard and records votes. It is the only writer of
// the dashboard cache.
type Controller struct {
	backend Backend
	session Session
	cache   *cache.Dashboard
	logger  *zap.Logger
	group   singleflight.Group

	mu    sync.Mutex
	votes VoteState
	// gen is bumped by Invalidate. Fetches started under an older gen never
	// reach the cache.
	gen uint64
	// seq numbers fetches in start order; written is the seq behind the
	// cached entry.
	seq     uint64
	written uint64
}

// NewController wires a controller to its collaborators.
func NewController(backend Backend, session Session, dashboards *cache.Dashboard, logger *zap.Logger) *Controller {
	return &Controller{
		backend: backend,
		session: session,
		cache:   dashboards,
		logger:  logger,
		votes:   make(VoteState),
	}
}

// Load returns the dashboard, from cache when it is fresh and force is false.
// Concurrent unforced loads share one fetch; a forced load always issues its
// own. A failed fetch leaves the cache untouched.
func (c *Controller) Load(ctx context.Context, force bool) (View, error) {
	if !c.session.Authenticated() {
		return View{}, ErrNotAuthenticated
	}

	if !force {
		if entry := c.cache.Read(); c.cache.IsFresh(entry) {
			c.seedVotes(entry.Payload.Votes)
			return c.view(entry, true), nil
		}
	}

	token := c.session.Token()
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	fetch := func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), token, gen)
	}
	var ch <-chan singleflight.Result
	if force {
		res := make(chan singleflight.Result, 1)
		go func() {
			v, err := fetch()
			res <- singleflight.Result{Val: v, Err: err}
		}()
		ch = res
	} else {
		ch = c.group.DoChan(fmt.Sprintf("%s-%d", loadKey, gen), fetch)
	}

	select {
	case <-ctx.Done():
		return View{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return View{}, res.Err
		}
		return res.Val.(View).clone(), nil
	}
}

func (c *Controller) fetch(ctx context.Context, token string, gen uint64) (View, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	payload, err := c.backend.Dashboard(ctx)
	if err != nil {
		c.logger.Warn("fetch dashboard", zap.Error(err))
		return View{}, &LoadError{Message: respond.Message(err, FallbackMessage), Err: err}
	}

	if !c.session.Authenticated() || c.session.Token() != token {
		c.logger.Debug("session changed during dashboard fetch, dropping result")
		return View{}, ErrNotAuthenticated
	}

	c.mu.Lock()
	if gen != c.gen || seq < c.written {
		c.mu.Unlock()
		// Superseded by an invalidation or a newer fetch: the caller still
		// gets what it asked for, but the cache keeps the newer state.
		c.logger.Debug("dashboard fetch superseded, not caching", zap.Uint64("seq", seq))
		return View{
			Payload:   payload,
			Votes:     VoteState(maps.Clone(payload.Votes)),
			FetchedAt: c.cache.Now(),
		}, nil
	}
	c.cache.Write(payload)
	c.written = seq
	entry := c.cache.Read()
	c.votes = seededVotes(entry.Payload.Votes)
	c.mu.Unlock()

	return c.view(entry, false), nil
}

// Vote records dir on a dashboard item. The vote shows immediately and is
// rolled back if the server rejects it. Voting the active direction again
// does nothing.
func (c *Controller) Vote(ctx context.Context, targetType, targetID string, dir Direction) error {
	req := dto.FeedbackRequest{TargetType: targetType, TargetID: targetID, Vote: int(dir)}
	if err := dto.Validate(req); err != nil {
		return err
	}
	if !c.session.Authenticated() {
		return ErrNotAuthenticated
	}

	key := models.VoteKey(targetType, targetID)
	c.mu.Lock()
	prev, had := c.votes[key]
	if had && prev == int(dir) {
		c.mu.Unlock()
		return nil
	}
	c.votes[key] = int(dir)
	gen := c.gen
	c.mu.Unlock()

	if err := c.backend.SubmitFeedback(ctx, req); err != nil {
		c.mu.Lock()
		if c.gen == gen && c.votes[key] == int(dir) {
			if had {
				c.votes[key] = prev
			} else {
				delete(c.votes, key)
			}
		}
		c.mu.Unlock()
		return fmt.Errorf("submit vote on %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}
	// A load may have reseeded the votes while the submit was in flight.
	c.votes[key] = int(dir)
	c.cache.Patch(func(p *models.DashboardPayload) {
		p.Votes[key] = int(dir)
	})
	return nil
}

// Votes returns a copy of the current vote state.
func (c *Controller) Votes() VoteState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.votes)
}

// Invalidate drops the cached dashboard and vote state. Fetches already in
// flight can no longer fill the cache.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Clear()
	c.votes = make(VoteState)
}

func (c *Controller) seedVotes(votes map[string]int) {
	c.mu.Lock()
	c.votes = seededVotes(votes)
	c.mu.Unlock()
}

func seededVotes(votes map[string]int) VoteState {
	seeded := VoteState(maps.Clone(votes))
	if seeded == nil {
		seeded = make(VoteState)
	}
	return seeded
}

func (c *Controller) view(entry cache.Entry, cached bool) View {
	return View{
		Payload:   entry.Payload.Clone(),
		Votes:     c.Votes(),
		FetchedAt: entry.FetchedAt,
		Cached:    cached,
	}
}
