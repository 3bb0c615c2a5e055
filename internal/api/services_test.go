package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/api/apitest"
	"github.com/felixgeelhaar/devquote/internal/domain"
)

func TestListOptions_Query(t *testing.T) {
	tests := []struct {
		name string
		opts ListOptions
		want string
	}{
		{"defaults", ListOptions{}, "page=0&size=10"},
		{"negative page", ListOptions{Page: -3, Size: 5}, "page=0&size=5"},
		{"size capped", ListOptions{Size: 500}, "page=0&size=100"},
		{
			name: "sort and filters",
			opts: ListOptions{
				Page:    2,
				Size:    20,
				Sort:    []SortField{{"name", "asc"}, {"id", "desc"}},
				Filters: map[string]string{"name": " api ", "code": ""},
			},
			want: "name=api&page=2&size=20&sort=name%2Casc&sort=id%2Cdesc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Query().Encode())
		})
	}
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("createdAt")
	require.NoError(t, err)
	assert.Equal(t, "createdAt,asc", s.String())

	s, err = ParseSort(" title , DESC ")
	require.NoError(t, err)
	assert.Equal(t, "title,desc", s.String())

	_, err = ParseSort(",asc")
	assert.Error(t, err)
	_, err = ParseSort("title,sideways")
	assert.Error(t, err)
}

func TestProjectService_ListAndGet(t *testing.T) {
	srv := apitest.New(t)
	for i := int64(1); i <= 12; i++ {
		srv.AddProject(i, map[string]any{"name": "project", "repositoryUrl": "https://git.example.com/p"})
	}
	pair := srv.Issue("alice")
	c := newTestClient(t, srv.BaseURL(), staticTokens{token: pair.AccessToken})
	projects := NewProjectService(c)
	ctx := context.Background()

	page, err := projects.List(ctx, ListOptions{Page: 1, Size: 5})
	require.NoError(t, err)
	assert.Len(t, page.Content, 5)
	assert.Equal(t, int64(12), page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(6), page.Content[0].ID)
	assert.False(t, page.First)

	p, err := projects.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "https://git.example.com/p", p.RepositoryURL)

	_, err = projects.Get(ctx, 99)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestTaskService_Get(t *testing.T) {
	srv := apitest.New(t)
	srv.AddTask(4, map[string]any{
		"code":     "DQ-4",
		"title":    "Export quotes",
		"priority": "HIGH",
		"subTasks": []map[string]any{{"title": "api", "amount": 120.5}, {"title": "ui", "amount": 80}},
	})
	c := newTestClient(t, srv.BaseURL(), staticTokens{token: srv.Issue("alice").AccessToken})

	task, err := NewTaskService(c).Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCode("DQ-4"), task.Code)
	assert.Equal(t, domain.PriorityHigh, task.Priority)
	assert.InDelta(t, 200.5, task.Amount(), 0.001)
}

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func recordingServer(t *testing.T, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, body: body})
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestProjectService_Writes(t *testing.T) {
	ts, calls := recordingServer(t, `{"id":5,"name":"Portal","repositoryUrl":"https://git.example.com/portal"}`)
	projects := NewProjectService(newTestClient(t, ts.URL, nil))
	ctx := context.Background()

	created, err := projects.Create(ctx, ProjectInput{Name: "Portal", RepositoryURL: "https://git.example.com/portal"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), created.ID)

	_, err = projects.Update(ctx, 5, ProjectInput{Name: "Portal 2"})
	require.NoError(t, err)
	require.NoError(t, projects.Delete(ctx, 5))

	require.Len(t, *calls, 3)
	assert.Equal(t, recorded{method: "POST", path: "/projects", body: map[string]any{"name": "Portal", "repositoryUrl": "https://git.example.com/portal"}}, (*calls)[0])
	assert.Equal(t, "PUT", (*calls)[1].method)
	assert.Equal(t, "/projects/5", (*calls)[1].path)
	assert.Equal(t, "DELETE", (*calls)[2].method)
}

func TestTaskService_BulkDeleteAndSubTasks(t *testing.T) {
	ts, calls := recordingServer(t, `[{"id":1,"taskId":9,"title":"api","amount":10}]`)
	tasks := NewTaskService(newTestClient(t, ts.URL, nil))
	ctx := context.Background()

	require.NoError(t, tasks.BulkDelete(ctx, []int64{1, 2, 3}))
	subTasks, err := tasks.SubTasks(ctx, 9)
	require.NoError(t, err)

	require.Len(t, subTasks, 1)
	assert.Equal(t, int64(9), subTasks[0].TaskID)

	assert.Equal(t, "/tasks/bulk", (*calls)[0].path)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, (*calls)[0].body["ids"])
	assert.Equal(t, "/tasks/9/subtasks", (*calls)[1].path)
}
