// Package client embeds the devquote session client in other programs.
//
// Usage:
//
//	c, err := client.New(ctx, client.Options{BaseURL: "https://quotes.example.com/api"})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if err := c.Login(ctx, "alice", password); err != nil {
//	    return err
//	}
//	page, err := c.Tasks(ctx, types.ListOptions{Size: 20})
//
// Expired access tokens are refreshed once, shared by every concurrent
// call, and the failed request is replayed with the new token.
package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/app"
	"github.com/felixgeelhaar/devquote/internal/config"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/log"
	"github.com/felixgeelhaar/devquote/internal/version"
	"github.com/felixgeelhaar/devquote/pkg/devquote/types"
)

// Options configures New. Only BaseURL is required.
type Options struct {
	BaseURL string

	// StoragePath keeps the session in a file so it outlives the process.
	// Empty keeps it in memory.
	StoragePath string

	// Passphrase seals the tokens in StoragePath.
	Passphrase string

	// Timeout bounds each request. Zero uses the default.
	Timeout time.Duration

	HTTPClient *http.Client

	// LogOutput receives JSON logs at LogLevel. Nil discards logs.
	LogOutput io.Writer
	LogLevel  string
}

// Client is safe for concurrent use.
type Client struct {
	app *app.App
}

// New builds a client. It does not contact the backend; call Restore to
// pick up a stored session.
func New(ctx context.Context, opts Options) (*Client, error) {
	cfg := config.Default()
	cfg.API.BaseURL = opts.BaseURL
	if opts.Timeout > 0 {
		cfg.API.Timeout = opts.Timeout
	}
	if opts.StoragePath != "" {
		cfg.Storage.Backend = config.BackendFile
		cfg.Storage.Path = opts.StoragePath
		cfg.Storage.Passphrase = opts.Passphrase
	} else {
		cfg.Storage.Backend = config.BackendMemory
	}

	logger := log.Discard()
	if opts.LogOutput != nil {
		logCfg := log.DefaultConfig()
		logCfg.Level = log.ParseLevel(opts.LogLevel)
		logCfg.Format = log.FormatJSON
		logCfg.Output = log.NewOutput(opts.LogOutput)
		logger = log.New(logCfg)
	}

	a, err := app.New(ctx, app.Options{
		Config:     cfg,
		Logger:     logger,
		HTTPClient: opts.HTTPClient,
		UserAgent:  version.GetInfo().UserAgent(),
	})
	if err != nil {
		return nil, err
	}
	return &Client{app: a}, nil
}

// Close releases the token store.
func (c *Client) Close() error {
	return c.app.Close()
}

// Login signs in and stores the session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.app.Session.Login(ctx, domain.Credentials{Username: username, Password: password})
}

// Logout ends the session. Local state is cleared even when the backend
// call fails.
func (c *Client) Logout(ctx context.Context) error {
	return c.app.Session.Logout(ctx)
}

// Restore loads the stored session and reports whether it is usable.
func (c *Client) Restore(ctx context.Context) bool {
	c.app.Session.LoadStoredAuth(ctx)
	return c.app.Session.State().IsAuthenticated
}

// State returns a snapshot of the session.
func (c *Client) State() types.State {
	return c.app.Session.State()
}

// Subscribe calls fn on every session change until unsubscribe is called.
func (c *Client) Subscribe(fn func(types.State)) (unsubscribe func()) {
	return c.app.Session.Subscribe(fn)
}

// HasPermission reports whether the signed-in user may perform operation
// on resource.
func (c *Client) HasPermission(resource, operation string) bool {
	return c.app.Session.HasPermission(resource, operation)
}

// Profile fetches the current user from the backend.
func (c *Client) Profile(ctx context.Context) (*types.User, error) {
	return c.app.Session.RefreshProfile(ctx)
}

// UpdateProfile changes the name or email of the current user.
func (c *Client) UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.User, error) {
	return c.app.Session.UpdateProfile(ctx, update)
}

// ChangePassword changes the password of the current user.
func (c *Client) ChangePassword(ctx context.Context, change types.PasswordChange) error {
	return c.app.Session.ChangePassword(ctx, change)
}

func (c *Client) Projects(ctx context.Context, opts types.ListOptions) (*types.ProjectPage, error) {
	return c.app.Projects.List(ctx, opts)
}

func (c *Client) Project(ctx context.Context, id int64) (*types.Project, error) {
	return c.app.Projects.Get(ctx, id)
}

func (c *Client) Tasks(ctx context.Context, opts types.ListOptions) (*types.TaskPage, error) {
	return c.app.Tasks.List(ctx, opts)
}

func (c *Client) Task(ctx context.Context, id int64) (*types.Task, error) {
	return c.app.Tasks.Get(ctx, id)
}

func (c *Client) CreateProject(ctx context.Context, in types.ProjectInput) (*types.Project, error) {
	return c.app.Projects.Create(ctx, in)
}

func (c *Client) UpdateProject(ctx context.Context, id int64, in types.ProjectInput) (*types.Project, error) {
	return c.app.Projects.Update(ctx, id, in)
}

func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.app.Projects.Delete(ctx, id)
}

func (c *Client) CreateTask(ctx context.Context, in types.TaskInput) (*types.Task, error) {
	return c.app.Tasks.Create(ctx, in)
}

func (c *Client) UpdateTask(ctx context.Context, id int64, in types.TaskInput) (*types.Task, error) {
	return c.app.Tasks.Update(ctx, id, in)
}

// DeleteTasks deletes one task, or several in a single bulk call.
func (c *Client) DeleteTasks(ctx context.Context, ids ...int64) error {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return c.app.Tasks.Delete(ctx, ids[0])
	}
	return c.app.Tasks.BulkDelete(ctx, ids)
}

func (c *Client) Requesters(ctx context.Context, opts types.ListOptions) (*types.RequesterPage, error) {
	return c.app.Requesters.List(ctx, opts)
}

func (c *Client) Requester(ctx context.Context, id int64) (*types.Requester, error) {
	return c.app.Requesters.Get(ctx, id)
}

func (c *Client) CreateRequester(ctx context.Context, in types.RequesterInput) (*types.Requester, error) {
	return c.app.Requesters.Create(ctx, in)
}

func (c *Client) UpdateRequester(ctx context.Context, id int64, in types.RequesterInput) (*types.Requester, error) {
	return c.app.Requesters.Update(ctx, id, in)
}

func (c *Client) DeleteRequester(ctx context.Context, id int64) error {
	return c.app.Requesters.Delete(ctx, id)
}

// Deliveries lists deliveries grouped by task. Filter with the "status"
// key of opts.Filters.
func (c *Client) Deliveries(ctx context.Context, opts types.ListOptions) (*types.DeliveryGroupPage, error) {
	return c.app.Deliveries.ListGrouped(ctx, opts)
}

func (c *Client) Delivery(ctx context.Context, id int64) (*types.Delivery, error) {
	return c.app.Deliveries.Get(ctx, id)
}

// DeliveryGroup returns the delivery of a task with its counters.
func (c *Client) DeliveryGroup(ctx context.Context, taskID int64) (*types.DeliveryGroup, error) {
	return c.app.Deliveries.Group(ctx, taskID)
}

// DeliveryStatistics counts delivery items per status.
func (c *Client) DeliveryStatistics(ctx context.Context) (*types.DeliveryStatusCount, error) {
	return c.app.Deliveries.Statistics(ctx)
}

func (c *Client) CreateDelivery(ctx context.Context, in types.DeliveryInput) (*types.Delivery, error) {
	return c.app.Deliveries.Create(ctx, in)
}

func (c *Client) UpdateDelivery(ctx context.Context, id int64, in types.DeliveryInput) (*types.Delivery, error) {
	return c.app.Deliveries.Update(ctx, id, in)
}

// DeleteDeliveries deletes one delivery, or several in a single bulk call.
func (c *Client) DeleteDeliveries(ctx context.Context, ids ...int64) error {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return c.app.Deliveries.Delete(ctx, ids[0])
	}
	return c.app.Deliveries.BulkDelete(ctx, ids)
}

// AvailableTasks lists the tasks a delivery can be created for.
func (c *Client) AvailableTasks(ctx context.Context, page, size int) (*types.AvailableTaskPage, error) {
	return c.app.Deliveries.AvailableTasks(ctx, page, size)
}

func (c *Client) AvailableProjects(ctx context.Context) ([]types.AvailableProject, error) {
	return c.app.Deliveries.AvailableProjects(ctx)
}

func (c *Client) AddDeliveryItem(ctx context.Context, deliveryID int64, in types.DeliveryItemInput) (*types.DeliveryItem, error) {
	return c.app.Deliveries.AddItem(ctx, deliveryID, in)
}

func (c *Client) UpdateDeliveryItem(ctx context.Context, deliveryID, itemID int64, in types.DeliveryItemInput) (*types.DeliveryItem, error) {
	return c.app.Deliveries.UpdateItem(ctx, deliveryID, itemID, in)
}

func (c *Client) RemoveDeliveryItem(ctx context.Context, deliveryID, itemID int64) error {
	return c.app.Deliveries.RemoveItem(ctx, deliveryID, itemID)
}

// Do sends an authenticated request and returns the raw response body.
// body is JSON encoded unless it is a []byte.
func (c *Client) Do(ctx context.Context, method, path string, body any) ([]byte, error) {
	resp, err := c.app.Doer().Do(ctx, &api.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
