// Package session owns the signed-in session: the single-flight token
// refresh that sits between callers and the transport, and the Manager
// that is the only writer of the session State.
package session

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/log"
	"github.com/felixgeelhaar/devquote/internal/metrics"
	"github.com/felixgeelhaar/devquote/internal/tokenstore"
)

// DefaultRefreshTimeout bounds one refresh call.
const DefaultRefreshTimeout = 15 * time.Second

const tracerName = "github.com/felixgeelhaar/devquote/internal/session"

// RefreshStatus is the coordinator's global state.
type RefreshStatus int

const (
	StatusIdle RefreshStatus = iota
	StatusRefreshing
)

func (s RefreshStatus) String() string {
	if s == StatusRefreshing {
		return "refreshing"
	}
	return "idle"
}

// Refresher trades a refresh token for a new pair. *api.AuthService
// implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
}

// Hooks let the Manager follow refresh outcomes. Both run after the
// coordinator lock is released.
type Hooks struct {
	OnRefreshed     func(pair domain.TokenPair)
	OnRefreshFailed func(err error)
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	// Transport is the bare client. It must not be the coordinator itself.
	Transport      api.Doer
	Refresher      Refresher
	Store          *tokenstore.Store
	RefreshTimeout time.Duration
	Logger         *log.Logger
	Metrics        *metrics.Metrics
}

type refreshResult struct {
	pair domain.TokenPair
	err  error
}

// Coordinator implements api.Doer. A 401 on a request that has not been
// replayed yet triggers at most one refresh call at a time; every request
// that hit 401 meanwhile waits for that refresh and is replayed once with
// the token it produced.
type Coordinator struct {
	transport api.Doer
	refresher Refresher
	store     *tokenstore.Store
	timeout   time.Duration
	logger    *log.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	mu      sync.Mutex
	status  RefreshStatus
	waiters []chan refreshResult
	epoch   uint64
	hooks   Hooks
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &Coordinator{
		transport: cfg.Transport,
		refresher: cfg.Refresher,
		store:     cfg.Store,
		timeout:   timeout,
		logger:    log.OrDefault(cfg.Logger).With("component", "refresh"),
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer(tracerName),
	}
}

// SetHooks replaces the refresh hooks.
func (c *Coordinator) SetHooks(h Hooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = h
}

// Status returns the current refresh status.
func (c *Coordinator) Status() RefreshStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Invalidate marks the current session as ended. A refresh already in
// flight is discarded when it completes and its waiters fail with
// AUTH-004.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()
}

// Do sends req through the transport and applies the refresh rule to a
// 401 reply. Any other outcome is returned unchanged.
//
// The first attempt is pinned to the stored access token. A 401 for a
// token that has been replaced since is replayed with the stored one
// instead of starting another refresh.
func (c *Coordinator) Do(ctx context.Context, req *api.Request) (*api.Response, error) {
	if !req.SkipAuth && !req.Retried && req.BearerOverride == "" {
		if token, err := c.store.AccessToken(ctx); err == nil && token != "" {
			req = req.Clone()
			req.BearerOverride = token
		}
	}

	resp, err := c.transport.Do(ctx, req)
	if err == nil || req.SkipAuth || req.Retried || !api.IsUnauthorized(err) {
		return resp, err
	}

	pair, rerr := c.refresh(ctx, req.BearerOverride)
	if rerr != nil {
		return nil, rerr
	}

	replay := req.Clone()
	replay.Retried = true
	replay.BearerOverride = pair.AccessToken

	resp, err = c.transport.Do(ctx, replay)
	if err != nil {
		c.metrics.ObserveReplay("failure")
		return nil, err
	}
	c.metrics.ObserveReplay("success")
	return resp, nil
}

// Refresh runs or joins the single-flight refresh without replaying
// anything.
func (c *Coordinator) Refresh(ctx context.Context) (domain.TokenPair, error) {
	return c.refresh(ctx, "")
}

// refresh joins the running refresh or starts one. rejected is the access
// token the backend just refused; when the store already holds a different
// one, that token is returned without a new refresh. Refresh results are
// stored under c.mu, so the comparison cannot race a finishing refresh.
func (c *Coordinator) refresh(ctx context.Context, rejected string) (domain.TokenPair, error) {
	c.mu.Lock()
	if c.status == StatusRefreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		return c.wait(ctx, ch)
	}
	if rejected != "" {
		current, err := c.store.AccessToken(ctx)
		if err == nil && current != "" && current != rejected {
			c.mu.Unlock()
			c.logger.DebugContext(ctx, "access token replaced since the request was sent, replaying without refresh")
			return domain.TokenPair{AccessToken: current}, nil
		}
	}
	c.status = StatusRefreshing
	epoch := c.epoch
	c.mu.Unlock()

	pair, err := c.run(ctx, epoch)

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.status = StatusIdle
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{pair: pair, err: err}
	}
	return pair, err
}

// wait blocks until the leader publishes. A cancelled waiter leaves; its
// buffered channel still receives the result.
func (c *Coordinator) wait(ctx context.Context, ch <-chan refreshResult) (domain.TokenPair, error) {
	c.metrics.WaiterAdded()
	defer c.metrics.WaiterDone()

	select {
	case res := <-ch:
		return res.pair, res.err
	case <-ctx.Done():
		return domain.TokenPair{}, ctx.Err()
	}
}

// run performs the refresh call. It is detached from the caller's
// cancellation and bounded by the refresh timeout. The new pair is stored
// before run returns, so no waiter is released ahead of the write.
func (c *Coordinator) run(ctx context.Context, epoch uint64) (domain.TokenPair, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "session.refresh")
	defer span.End()
	start := time.Now()

	pair, err := c.exchange(ctx)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.metrics.ObserveRefresh("stale", time.Since(start))
		span.SetAttributes(attribute.String("devquote.refresh.outcome", "stale"))
		c.logger.InfoContext(ctx, "discarding refresh result, session ended meanwhile")
		return domain.TokenPair{}, errors.NewSessionEndedError()
	}
	if err == nil {
		err = c.store.StoreTokens(ctx, pair.AccessToken, pair.RefreshToken)
	}
	if err != nil && !errors.HasCode(err, errors.ErrCodeStorageCrypto) {
		if cerr := c.store.ClearSession(ctx); cerr != nil {
			c.logger.WithError(cerr).ErrorContext(ctx, "failed to clear session after refresh failure")
		}
	}
	hooks := c.hooks
	c.mu.Unlock()

	if err != nil {
		rerr := errors.NewRefreshFailedError(err)
		c.metrics.ObserveRefresh("failure", time.Since(start))
		c.metrics.ObserveError(string(rerr.Code), "session")
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		c.logger.WithError(err).WarnContext(ctx, "token refresh failed, session cleared")
		if hooks.OnRefreshFailed != nil {
			hooks.OnRefreshFailed(rerr)
		}
		return domain.TokenPair{}, rerr
	}

	c.metrics.ObserveRefresh("success", time.Since(start))
	span.SetAttributes(attribute.String("devquote.refresh.outcome", "success"))
	c.logger.DebugContext(ctx, "token refreshed", "duration_ms", time.Since(start).Milliseconds())
	if hooks.OnRefreshed != nil {
		hooks.OnRefreshed(pair)
	}
	return pair, nil
}

// exchange reads the stored refresh token and calls the refresh endpoint.
func (c *Coordinator) exchange(ctx context.Context) (domain.TokenPair, error) {
	stored, err := c.store.GetTokens(ctx)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if stored.Refresh == "" {
		return domain.TokenPair{}, errors.NewNotAuthenticatedError("no refresh token stored")
	}

	next, err := c.refresher.Refresh(ctx, stored.Refresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	current := domain.TokenPair{AccessToken: stored.Access, RefreshToken: stored.Refresh}
	return current.Merge(*next), nil
}
