package session

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
)

// fanOut issues n echo requests through the coordinator concurrently and
// waits until all of them are parked on one held refresh.
func fanOut(t *testing.T, f *fixture, n int) (results chan error, release func()) {
	t.Helper()
	release = f.srv.HoldRefresh()
	results = make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := api.Get(context.Background(), f.coord, fmt.Sprintf("/echo/%d", i), nil)
			results <- err
		}(i)
	}
	require.Eventually(t, func() bool {
		return f.srv.RefreshCalls() == 1 && f.waiters() == n-1
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusRefreshing, f.coord.Status())
	return results, release
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	access := f.mgr.State().Tokens.AccessToken
	f.srv.Expire(access)
	f.srv.SetNextRefresh(domain.TokenPair{AccessToken: "A2", RefreshToken: "R2"})

	results, release := fanOut(t, f, 3)
	release()
	for i := 0; i < 3; i++ {
		require.NoError(t, <-results)
	}

	assert.Equal(t, 1, f.srv.RefreshCalls())
	assert.Equal(t, StatusIdle, f.coord.Status())

	var replays int
	for _, r := range f.srv.Requests() {
		if r.Method != http.MethodGet {
			continue
		}
		switch r.Bearer() {
		case access:
		case "A2":
			replays++
		default:
			t.Errorf("request %s carried unexpected token %q", r.Path, r.Bearer())
		}
	}
	assert.Equal(t, 3, replays)

	assert.Equal(t, "A2", f.storedTokens(t).Access)
	assert.Equal(t, "R2", f.storedTokens(t).Refresh)
	assert.Equal(t, "A2", f.mgr.State().Tokens.AccessToken)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Replays.WithLabelValues("success")))
}

// gatedDoer holds back the first reply for path until hold is closed.
type gatedDoer struct {
	api.Doer
	path string
	sent chan struct{}
	hold chan struct{}
}

func (g *gatedDoer) Do(ctx context.Context, req *api.Request) (*api.Response, error) {
	resp, err := g.Doer.Do(ctx, req)
	if req.Path == g.path && !req.Retried {
		close(g.sent)
		<-g.hold
	}
	return resp, err
}

func TestLate401ReusesFinishedRefresh(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	access := f.mgr.State().Tokens.AccessToken
	f.srv.Expire(access)
	f.srv.SetNextRefresh(domain.TokenPair{AccessToken: "A2", RefreshToken: "R2"})

	gate := &gatedDoer{Doer: f.client, path: "/echo/late", sent: make(chan struct{}), hold: make(chan struct{})}
	coord := NewCoordinator(CoordinatorConfig{
		Transport: gate,
		Refresher: api.NewAuthService(f.client, f.client),
		Store:     f.store,
		Logger:    f.mgr.logger,
		Metrics:   f.metrics,
	})

	late := make(chan error, 1)
	go func() {
		_, err := api.Get(context.Background(), coord, "/echo/late", nil)
		late <- err
	}()
	<-gate.sent

	_, err := api.Get(context.Background(), coord, "/echo/early", nil)
	require.NoError(t, err)
	require.Equal(t, 1, f.srv.RefreshCalls())

	close(gate.hold)
	require.NoError(t, <-late)

	assert.Equal(t, 1, f.srv.RefreshCalls())
	assert.Equal(t, "A2", f.storedTokens(t).Access)
	assert.Equal(t, "R2", f.storedTokens(t).Refresh)

	attempts := f.srv.RequestsTo("/echo/late")
	require.Len(t, attempts, 2)
	assert.Equal(t, access, attempts[0].Bearer())
	assert.Equal(t, "A2", attempts[1].Bearer())
}

func TestRetried401IsNotRefreshedAgain(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	_, err := api.Get(context.Background(), f.coord, "/status/401", nil)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, 1, f.srv.RefreshCalls())

	attempts := f.srv.RequestsTo("/status/401")
	require.Len(t, attempts, 2)
	assert.NotEqual(t, attempts[0].Bearer(), attempts[1].Bearer())
	assert.Equal(t, f.storedTokens(t).Access, attempts[1].Bearer())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Replays.WithLabelValues("failure")))
}

func TestRetriedRequestIsReturnedAsIs(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	_, err := f.coord.Do(context.Background(), &api.Request{Method: http.MethodGet, Path: "/status/401", Retried: true})
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, 0, f.srv.RefreshCalls())
}

func TestNon401FailuresPropagate(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	for _, status := range []int{400, 403, 404, 500, 503} {
		_, err := api.Get(context.Background(), f.coord, fmt.Sprintf("/status/%d", status), nil)
		assert.Equal(t, status, api.StatusOf(err))
	}
	assert.Equal(t, 0, f.srv.RefreshCalls())
	assert.True(t, f.mgr.State().IsAuthenticated)
}

func TestSkipAuth401DoesNotRefresh(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	_, err := f.coord.Do(context.Background(), &api.Request{Method: http.MethodGet, Path: "/echo/x", SkipAuth: true})
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, 0, f.srv.RefreshCalls())
}

func TestRefreshFailureEndsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.srv.ExpireAll()
	f.srv.FailRefresh(http.StatusBadRequest, `{"error":"refresh token revoked"}`)

	_, err := api.Get(context.Background(), f.coord, "/echo/x", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRefreshFailed))
	assert.Equal(t, http.StatusBadRequest, api.StatusOf(err))

	state := f.mgr.State()
	assert.False(t, state.IsAuthenticated)
	assert.Nil(t, state.User)
	assert.Nil(t, state.Tokens)
	assert.Equal(t, MsgSessionExpired, state.Error)

	assert.True(t, f.storedTokens(t).Empty())
	user, err := f.store.GetUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRefreshFailureFailsEveryWaiter(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.srv.ExpireAll()
	f.srv.FailRefresh(http.StatusUnauthorized, `{"message":"refresh token expired"}`)

	results, release := fanOut(t, f, 4)
	release()
	for i := 0; i < 4; i++ {
		err := <-results
		assert.True(t, errors.HasCode(err, errors.ErrCodeRefreshFailed), "got %v", err)
	}
	assert.Equal(t, 1, f.srv.RefreshCalls())
	assert.Empty(t, f.srv.RequestsTo("/echo/0")[1:], "no replay after a failed refresh")
	assert.False(t, f.mgr.State().IsAuthenticated)
}

func TestCancelledWaiterLeavesOthersAlone(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.srv.ExpireAll()
	release := f.srv.HoldRefresh()

	leader := make(chan error, 1)
	go func() {
		_, err := api.Get(context.Background(), f.coord, "/echo/leader", nil)
		leader <- err
	}()
	require.Eventually(t, func() bool { return f.srv.RefreshCalls() == 1 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waiter := make(chan error, 1)
	go func() {
		_, err := api.Get(ctx, f.coord, "/echo/waiter", nil)
		waiter <- err
	}()
	require.Eventually(t, func() bool { return f.waiters() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-waiter, context.Canceled)
	assert.Equal(t, 0, f.waiters())

	release()
	require.NoError(t, <-leader)
	assert.True(t, f.mgr.State().IsAuthenticated)
}

func TestCancelledLeaderDoesNotAbortRefresh(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.srv.ExpireAll()
	release := f.srv.HoldRefresh()

	ctx, cancel := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() {
		_, err := api.Get(ctx, f.coord, "/echo/leader", nil)
		leader <- err
	}()
	require.Eventually(t, func() bool { return f.srv.RefreshCalls() == 1 }, 5*time.Second, 5*time.Millisecond)

	waiter := make(chan error, 1)
	go func() {
		_, err := api.Get(context.Background(), f.coord, "/echo/waiter", nil)
		waiter <- err
	}()
	require.Eventually(t, func() bool { return f.waiters() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	release()

	require.NoError(t, <-waiter)
	assert.Error(t, <-leader)
	assert.True(t, f.mgr.State().IsAuthenticated)
	assert.Equal(t, 1, f.srv.RefreshCalls())
}

func TestRefreshWithoutNewRefreshTokenKeepsOld(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	before := f.storedTokens(t)
	f.srv.ExpireAll()
	f.srv.SetNextRefresh(domain.TokenPair{AccessToken: "A-only"})

	_, err := api.Get(context.Background(), f.coord, "/echo/x", nil)
	require.NoError(t, err)

	after := f.storedTokens(t)
	assert.Equal(t, "A-only", after.Access)
	assert.Equal(t, before.Refresh, after.Refresh)
	assert.Equal(t, before.Refresh, f.mgr.State().Tokens.RefreshToken)
}

func TestRefreshFinishingAfterLogoutIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	access := f.mgr.State().Tokens.AccessToken
	f.srv.Expire(access)
	release := f.srv.HoldRefresh()

	result := make(chan error, 1)
	go func() {
		_, err := api.Get(context.Background(), f.coord, "/echo/x", nil)
		result <- err
	}()
	require.Eventually(t, func() bool { return f.srv.RefreshCalls() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, f.mgr.Logout(context.Background()))
	release()

	err := <-result
	assert.True(t, errors.HasCode(err, errors.ErrCodeSessionEnded), "got %v", err)
	assert.True(t, f.storedTokens(t).Empty(), "stale refresh must not resurrect tokens")
	assert.False(t, f.mgr.State().IsAuthenticated)
}

func TestRefreshWithoutStoredRefreshToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRefreshFailed))
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotAuthenticated))
	assert.Equal(t, 0, f.srv.RefreshCalls())
}

func TestRefreshStoreWriteFailureClearsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.srv.ExpireAll()
	f.backend.set(false, true)

	_, err := api.Get(context.Background(), f.coord, "/echo/x", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRefreshFailed))
	assert.True(t, errors.HasCode(err, errors.ErrCodeStorageWrite))
	assert.False(t, f.mgr.State().IsAuthenticated)
	assert.Empty(t, f.srv.RequestsTo("/echo/x")[1:], "no replay with an unstored token")
}

func TestSequentialRefreshes(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	for round := 0; round < 3; round++ {
		f.srv.ExpireAll()
		_, err := api.Get(context.Background(), f.coord, "/echo/round", nil)
		require.NoError(t, err, "round %d", round)
	}
	assert.Equal(t, 3, f.srv.RefreshCalls())
	assert.Equal(t, StatusIdle, f.coord.Status())
}

func TestRefreshStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "refreshing", StatusRefreshing.String())
}
