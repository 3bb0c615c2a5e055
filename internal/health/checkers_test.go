package health

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/api/apitest"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/tokenstore"
)

func TestStoreChecker(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.New(tokenstore.NewMemoryBackend(), nil, nil)
	checker := NewStoreChecker(store)

	r := checker.Check(ctx)
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, "memory", r.Details["backend"])
	assert.Equal(t, false, r.Details["session_stored"])

	require.NoError(t, store.StoreTokens(ctx, "A1", "R1"))
	r = checker.Check(ctx)
	assert.Equal(t, true, r.Details["session_stored"])
}

func TestStoreCheckerWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	sealed, err := tokenstore.NewFileBackend(tokenstore.FileConfig{Path: path, Passphrase: "right"})
	require.NoError(t, err)
	require.NoError(t, tokenstore.New(sealed, nil, nil).StoreTokens(ctx, "A1", "R1"))

	reopened, err := tokenstore.NewFileBackend(tokenstore.FileConfig{Path: path, Passphrase: "wrong"})
	require.NoError(t, err)
	r := NewStoreChecker(tokenstore.New(reopened, nil, nil)).Check(ctx)

	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, "file", r.Details["backend"])
	assert.Equal(t, string(errors.ErrCodeStorageCrypto), r.Details["error_code"])
}

func TestBackendChecker(t *testing.T) {
	srv := apitest.New(t)

	client, err := api.NewClient(api.Config{BaseURL: srv.BaseURL()})
	require.NoError(t, err)

	r := NewBackendChecker(client).Check(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)

	requests := srv.RequestsTo(ProbePath)
	require.Len(t, requests, 1)
	assert.Empty(t, requests[0].Authorization)
}

func TestBackendCheckerUnexpectedStatus(t *testing.T) {
	srv := apitest.New(t)

	client, err := api.NewClient(api.Config{BaseURL: srv.BaseURL()})
	require.NoError(t, err)

	checker := &BackendChecker{client: client, path: "/status/503"}
	r := checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, http.StatusServiceUnavailable, r.Details["status"])
}

func TestBackendCheckerUnreachable(t *testing.T) {
	client, err := api.NewClient(api.Config{BaseURL: "http://127.0.0.1:1/api"})
	require.NoError(t, err)

	r := NewBackendChecker(client).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
}
