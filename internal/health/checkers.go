package health

import (
	"context"
	"net/http"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/tokenstore"
)

// StoreChecker reads the stored session to prove the backend is usable and
// the passphrase opens it. A wrong passphrase is unhealthy with error_code
// STORE-003.
type StoreChecker struct {
	store *tokenstore.Store
}

func NewStoreChecker(store *tokenstore.Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (c *StoreChecker) Name() string { return "token-store" }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	backend := c.store.Backend().Name()
	tokens, err := c.store.GetTokens(ctx)
	if err != nil {
		r := Unhealthy(err.Error()).WithDetail("backend", backend)
		if code := errors.CodeOf(err); code != "" {
			r = r.WithDetail("error_code", string(code))
		}
		return r
	}
	return Healthy(backend).
		WithDetail("backend", backend).
		WithDetail("session_stored", !tokens.Empty())
}

// ProbePath is an authenticated endpoint. Probing it without a token gets
// a 401 from a live backend.
const ProbePath = "/auth/validate"

// BackendChecker probes the backend without credentials. Any HTTP reply
// proves it reachable; 401 and 403 are the expected ones.
type BackendChecker struct {
	client *api.Client
	path   string
}

func NewBackendChecker(client *api.Client) *BackendChecker {
	return &BackendChecker{client: client, path: ProbePath}
}

func (c *BackendChecker) Name() string { return "backend" }

func (c *BackendChecker) Check(ctx context.Context) *Result {
	_, err := c.client.Do(ctx, &api.Request{Method: http.MethodGet, Path: c.path, SkipAuth: true})
	status := api.StatusOf(err)
	switch {
	case err == nil, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return Healthy(c.client.BaseURL() + " is reachable")
	case status == 0:
		return Unhealthy(err.Error()).WithDetail("base_url", c.client.BaseURL())
	default:
		return Degraded(err.Error()).WithDetail("status", status)
	}
}
