package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/exitcode"
)

func TestProjectsListRefreshesExpiredToken(t *testing.T) {
	h := newHarness(t)
	h.srv.AddProject(1, map[string]any{"name": "Portal", "repositoryUrl": "https://git.example.com/portal"})
	h.srv.AddProject(2, map[string]any{"name": "Billing"})
	h.login()
	h.srv.ExpireAll()

	out := h.mustRun("projects", "list")
	assert.Contains(t, out, "Portal")
	assert.Contains(t, out, "Billing")
	assert.Contains(t, out, "page 0 of 1, 2 total")
	assert.Equal(t, 1, h.srv.RefreshCalls())

	requests := h.srv.RequestsTo("/projects")
	require.Len(t, requests, 2)
	assert.NotEqual(t, requests[0].Bearer(), requests[1].Bearer(), "replay carries the refreshed token")
}

func TestProjectsListPaging(t *testing.T) {
	h := newHarness(t)
	for i := int64(1); i <= 7; i++ {
		h.srv.AddProject(i, map[string]any{"name": "project"})
	}
	h.login()

	var page struct {
		Content       []map[string]any `json:"content"`
		Number        int              `json:"number"`
		TotalElements int              `json:"totalElements"`
	}
	out := h.mustRun("projects", "list", "--page", "1", "--size", "5", "--sort", "name,desc", "-o", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Len(t, page.Content, 2)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 7, page.TotalElements)

	query := h.srv.RequestsTo("/projects")[0].Query
	assert.Equal(t, []string{"name,desc"}, query["sort"])
}

func TestProjectsListFlagErrors(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, _, err := h.run("projects", "list", "--page=-1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	_, _, err = h.run("projects", "list", "--sort", "name,sideways")
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}

func TestProjectsRequireSession(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("projects", "list")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotAuthenticated))
	assert.Empty(t, h.srv.RequestsTo("/projects"))
}

func TestProjectsShow(t *testing.T) {
	h := newHarness(t)
	h.srv.AddProject(3, map[string]any{"name": "Portal", "repositoryUrl": "https://git.example.com/portal"})
	h.login()

	out := h.mustRun("projects", "show", "3")
	assert.Contains(t, out, "Portal")
	assert.Contains(t, out, "https://git.example.com/portal")

	_, _, err := h.run("projects", "show", "99")
	require.Error(t, err)
	assert.Equal(t, exitcode.RequestError, exitcode.DetermineExitCode(err))

	_, _, err = h.run("projects", "show", "abc")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}

func TestTasksListAndShow(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTask(4, map[string]any{
		"code":     "DQ-4",
		"title":    "Export quotes",
		"priority": "HIGH",
		"subTasks": []map[string]any{{"title": "api", "amount": 120.5}, {"title": "ui", "amount": 80}},
	})
	h.login()

	out := h.mustRun("tasks", "list", "--priority", "high", "--search", "export")
	assert.Contains(t, out, "DQ-4")
	assert.Contains(t, out, "200.50")

	query := h.srv.RequestsTo("/tasks")[0].Query
	assert.Equal(t, "HIGH", query.Get("priority"))
	assert.Equal(t, "export", query.Get("search"))

	out = h.mustRun("tasks", "show", "4")
	for _, want := range []string{"DQ-4", "Export quotes", "HIGH", "SUBTASK", "120.50", "80.00"} {
		assert.Contains(t, out, want)
	}
}

func TestTasksListRejectsUnknownPriority(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, _, err := h.run("tasks", "list", "--priority", "someday")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
	assert.Empty(t, h.srv.RequestsTo("/tasks"))
}

func TestAPICommand(t *testing.T) {
	h := newHarness(t)
	h.login()
	token := strings.TrimSpace(h.mustRun("auth", "token", "--show"))

	var echo map[string]string
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("api", "get", "/echo/ping")), &echo))
	assert.Equal(t, "GET", echo["method"])
	assert.Equal(t, "alice", echo["user"])
	assert.Equal(t, token, echo["token"])

	out := h.mustRun("api", "PUT", "/echo/projects/3", "--data", `{"name":"Portal"}`)
	assert.Contains(t, out, `"method": "PUT"`)
}

func TestAPICommandValidation(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("api", "FETCH", "/tasks")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	_, _, err = h.run("api", "POST", "/tasks", "--data", "{not json")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	_, _, err = h.run("api", "GET")
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}

func TestAPICommandRetriesOnce(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, _, err := h.run("api", "GET", "/status/401")
	require.Error(t, err)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))
	assert.Len(t, h.srv.RequestsTo("/status/401"), 2)
	assert.Equal(t, 1, h.srv.RefreshCalls())
}
