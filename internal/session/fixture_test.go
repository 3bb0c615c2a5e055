package session

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/api/apitest"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/log"
	"github.com/felixgeelhaar/devquote/internal/metrics"
	"github.com/felixgeelhaar/devquote/internal/tokenstore"
)

var alice = domain.User{
	ID:       1,
	Username: "alice",
	Profiles: []domain.Profile{{ID: 3, Name: "User", ProfileType: domain.ProfileUser}},
}

var aliceCreds = domain.Credentials{Username: "alice", Password: "secret123"}

type fixture struct {
	srv     *apitest.Server
	backend *flakyBackend
	store   *tokenstore.Store
	client  *api.Client
	coord   *Coordinator
	mgr     *Manager
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("alice", "secret123", alice)
	return newFixtureFor(t, srv)
}

// newFixtureFor wires a fresh client stack against an existing server.
func newFixtureFor(t testing.TB, srv *apitest.Server) *fixture {
	t.Helper()
	_, m := metrics.NewRegistry()
	backend := &flakyBackend{Backend: tokenstore.NewMemoryBackend()}
	store := tokenstore.New(backend, log.Discard(), m)

	client, err := api.NewClient(api.Config{
		BaseURL: srv.BaseURL(),
		Tokens:  store,
		Logger:  log.Discard(),
		Metrics: m,
	})
	require.NoError(t, err)

	coord := NewCoordinator(CoordinatorConfig{
		Transport:      client,
		Refresher:      api.NewAuthService(client, client),
		Store:          store,
		RefreshTimeout: 5 * time.Second,
		Logger:         log.Discard(),
		Metrics:        m,
	})
	mgr := NewManager(ManagerConfig{
		Auth:        api.NewAuthService(client, coord),
		Coordinator: coord,
		Store:       store,
		Logger:      log.Discard(),
		Metrics:     m,
	})

	return &fixture{srv: srv, backend: backend, store: store, client: client, coord: coord, mgr: mgr, metrics: m}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.mgr.Login(context.Background(), aliceCreds))
}

// waiters reports how many callers are blocked on the running refresh.
func (f *fixture) waiters() int {
	return int(testutil.ToFloat64(f.metrics.RefreshWaiters))
}

func (f *fixture) storedTokens(t *testing.T) tokenstore.Tokens {
	t.Helper()
	tokens, err := f.store.GetTokens(context.Background())
	require.NoError(t, err)
	return tokens
}

var errBackendDown = stderrors.New("backend down")

// flakyBackend fails reads or writes on demand.
type flakyBackend struct {
	tokenstore.Backend

	mu        sync.Mutex
	failGet   bool
	failWrite bool
	getErr    error
}

func (b *flakyBackend) set(failGet, failWrite bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failGet, b.failWrite = failGet, failWrite
	b.getErr = nil
}

// failGetWith makes every read return err.
func (b *flakyBackend) failGetWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getErr = err
}

func (b *flakyBackend) Get(ctx context.Context, key tokenstore.Key) (string, bool, error) {
	b.mu.Lock()
	fail, getErr := b.failGet, b.getErr
	b.mu.Unlock()
	if getErr != nil {
		return "", false, getErr
	}
	if fail {
		return "", false, errBackendDown
	}
	return b.Backend.Get(ctx, key)
}

func (b *flakyBackend) SetMulti(ctx context.Context, values map[tokenstore.Key]string) error {
	b.mu.Lock()
	fail := b.failWrite
	b.mu.Unlock()
	if fail {
		return errBackendDown
	}
	return b.Backend.SetMulti(ctx, values)
}

// recorder collects every published state.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) listen(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}
