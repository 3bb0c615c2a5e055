package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
)

// Delivery tracks the rollout of one task across projects. Each project
// is one item.
type Delivery struct {
	ID         int64                 `json:"id"`
	TaskID     int64                 `json:"taskId"`
	TaskName   string                `json:"taskName,omitempty"`
	TaskCode   domain.TaskCode       `json:"taskCode,omitempty"`
	Status     domain.DeliveryStatus `json:"status"`
	TotalItems int                   `json:"totalItems,omitempty"`
	Items      []DeliveryItem        `json:"items,omitempty"`
	CreatedAt  string                `json:"createdAt,omitempty"`
	UpdatedAt  string                `json:"updatedAt,omitempty"`
}

// DeliveryItem is the state of a delivery in one project.
type DeliveryItem struct {
	ID           int64                 `json:"id"`
	DeliveryID   int64                 `json:"deliveryId"`
	ProjectID    int64                 `json:"projectId"`
	ProjectName  string                `json:"projectName,omitempty"`
	TaskID       int64                 `json:"taskId,omitempty"`
	Status       domain.DeliveryStatus `json:"status"`
	Branch       string                `json:"branch,omitempty"`
	SourceBranch string                `json:"sourceBranch,omitempty"`
	PullRequest  string                `json:"pullRequest,omitempty"`
	Script       string                `json:"script,omitempty"`
	StartedAt    string                `json:"startedAt,omitempty"`
	FinishedAt   string                `json:"finishedAt,omitempty"`
}

// DeliveryStatusCount counts deliveries or items per status.
type DeliveryStatusCount struct {
	Pending      int `json:"pending"`
	Development  int `json:"development"`
	Delivered    int `json:"delivered"`
	Homologation int `json:"homologation"`
	Approved     int `json:"approved"`
	Rejected     int `json:"rejected"`
	Production   int `json:"production"`
}

// Of returns the count for status.
func (c DeliveryStatusCount) Of(status domain.DeliveryStatus) int {
	switch status {
	case domain.DeliveryPending:
		return c.Pending
	case domain.DeliveryDevelopment:
		return c.Development
	case domain.DeliveryDelivered:
		return c.Delivered
	case domain.DeliveryHomologation:
		return c.Homologation
	case domain.DeliveryApproved:
		return c.Approved
	case domain.DeliveryRejected:
		return c.Rejected
	case domain.DeliveryProduction:
		return c.Production
	}
	return 0
}

func (c DeliveryStatusCount) Total() int {
	var n int
	for _, s := range domain.DeliveryStatuses {
		n += c.Of(s)
	}
	return n
}

// DeliveryGroup is the deliveries of one task with their counters.
type DeliveryGroup struct {
	TaskID              int64                 `json:"taskId"`
	TaskName            string                `json:"taskName"`
	TaskCode            domain.TaskCode       `json:"taskCode"`
	TaskValue           float64               `json:"taskValue,omitempty"`
	DeliveryID          int64                 `json:"deliveryId,omitempty"`
	DeliveryStatus      domain.DeliveryStatus `json:"deliveryStatus"`
	TotalItems          int                   `json:"totalItems,omitempty"`
	StatusCounts        DeliveryStatusCount   `json:"statusCounts"`
	TotalDeliveries     int                   `json:"totalDeliveries"`
	CompletedDeliveries int                   `json:"completedDeliveries"`
	PendingDeliveries   int                   `json:"pendingDeliveries"`
	Deliveries          []Delivery            `json:"deliveries"`
	CreatedAt           string                `json:"createdAt,omitempty"`
	UpdatedAt           string                `json:"updatedAt,omitempty"`
}

// AvailableTask is a task a delivery can be created for.
type AvailableTask struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Code        domain.TaskCode `json:"code"`
	Amount      float64         `json:"amount,omitempty"`
	HasDelivery bool            `json:"hasDelivery,omitempty"`
}

// AvailableProject is a project a delivery item can target.
type AvailableProject struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	RepositoryURL string `json:"repositoryUrl,omitempty"`
}

// DeliveryInput is the body of create and update calls. An empty Status
// leaves the choice to the backend.
type DeliveryInput struct {
	TaskID int64                 `json:"taskId"`
	Status domain.DeliveryStatus `json:"status,omitempty"`
	Items  []DeliveryItemInput   `json:"items,omitempty"`
}

// DeliveryItemInput creates or updates one item. ID is set only when an
// update targets an existing item.
type DeliveryItemInput struct {
	ID           int64                 `json:"id,omitempty"`
	ProjectID    int64                 `json:"projectId"`
	Status       domain.DeliveryStatus `json:"status,omitempty"`
	Branch       string                `json:"branch,omitempty"`
	SourceBranch string                `json:"sourceBranch,omitempty"`
	PullRequest  string                `json:"pullRequest,omitempty"`
	Script       string                `json:"script,omitempty"`
	StartedAt    string                `json:"startedAt,omitempty"`
	FinishedAt   string                `json:"finishedAt,omitempty"`
}

func (in DeliveryItemInput) Validate() error {
	if in.ProjectID <= 0 {
		return errors.NewValidationError("project", "is required")
	}
	return validStatus(in.Status)
}

// Validate checks the task, the status and every item. Two items may not
// target the same project.
func (in DeliveryInput) Validate() error {
	if in.TaskID <= 0 {
		return errors.NewValidationError("task", "is required")
	}
	if err := validStatus(in.Status); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(in.Items))
	for _, item := range in.Items {
		if err := item.Validate(); err != nil {
			return err
		}
		if seen[item.ProjectID] {
			return errors.NewValidationError("items", fmt.Sprintf("project %d appears twice", item.ProjectID))
		}
		seen[item.ProjectID] = true
	}
	return nil
}

func validStatus(s domain.DeliveryStatus) error {
	if s == "" {
		return nil
	}
	if err := s.Validate(); err != nil {
		return errors.NewValidationError("status", err.Error())
	}
	return nil
}

// Page size of AvailableTasks when none is given.
const defaultAvailableTasksSize = 50

// DeliveryService wraps the /deliveries endpoints.
type DeliveryService struct {
	doer Doer
}

// NewDeliveryService creates a delivery endpoint wrapper over d.
func NewDeliveryService(d Doer) *DeliveryService {
	return &DeliveryService{doer: d}
}

// ListGrouped retrieves one page of deliveries grouped by task
func (s *DeliveryService) ListGrouped(ctx context.Context, opts ListOptions) (*Page[DeliveryGroup], error) {
	var page Page[DeliveryGroup]
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: "/deliveries/grouped-by-task", Query: opts.Query()}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get retrieves a delivery with its items
func (s *DeliveryService) Get(ctx context.Context, id int64) (*Delivery, error) {
	var d Delivery
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: deliveryPath(id)}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Group retrieves the delivery group of a task
func (s *DeliveryService) Group(ctx context.Context, taskID int64) (*DeliveryGroup, error) {
	var g DeliveryGroup
	path := fmt.Sprintf("/deliveries/group/%d", taskID)
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: path}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *DeliveryService) Create(ctx context.Context, in DeliveryInput) (*Delivery, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var d Delivery
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPost, Path: "/deliveries", Body: in}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeliveryService) Update(ctx context.Context, id int64, in DeliveryInput) (*Delivery, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var d Delivery
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPut, Path: deliveryPath(id), Body: in}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeliveryService) Delete(ctx context.Context, id int64) error {
	_, err := s.doer.Do(ctx, &Request{Method: http.MethodDelete, Path: deliveryPath(id)})
	return err
}

// BulkDelete deletes several deliveries in one call
func (s *DeliveryService) BulkDelete(ctx context.Context, ids []int64) error {
	_, err := s.doer.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   "/deliveries/bulk",
		Body:   map[string][]int64{"ids": ids},
	})
	return err
}

// Statistics retrieves the item counts per status across every delivery
func (s *DeliveryService) Statistics(ctx context.Context) (*DeliveryStatusCount, error) {
	var counts DeliveryStatusCount
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: "/deliveries/statistics"}, &counts); err != nil {
		return nil, err
	}
	return &counts, nil
}

// AvailableTasks retrieves the tasks a delivery can be created for. Only
// paging is honoured; a zero size asks for 50.
func (s *DeliveryService) AvailableTasks(ctx context.Context, page, size int) (*Page[AvailableTask], error) {
	if page < 0 {
		page = DefaultPage
	}
	if size <= 0 {
		size = defaultAvailableTasksSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var out Page[AvailableTask]
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: "/deliveries/available-tasks", Query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *DeliveryService) AvailableProjects(ctx context.Context) ([]AvailableProject, error) {
	var projects []AvailableProject
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: "/deliveries/available-projects"}, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// AddItem adds a project to a delivery
func (s *DeliveryService) AddItem(ctx context.Context, deliveryID int64, in DeliveryItemInput) (*DeliveryItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var item DeliveryItem
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPost, Path: deliveryPath(deliveryID) + "/items", Body: in}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem changes one item of a delivery
func (s *DeliveryService) UpdateItem(ctx context.Context, deliveryID, itemID int64, in DeliveryItemInput) (*DeliveryItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var item DeliveryItem
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPut, Path: deliveryItemPath(deliveryID, itemID), Body: in}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *DeliveryService) RemoveItem(ctx context.Context, deliveryID, itemID int64) error {
	_, err := s.doer.Do(ctx, &Request{Method: http.MethodDelete, Path: deliveryItemPath(deliveryID, itemID)})
	return err
}

func deliveryPath(id int64) string {
	return fmt.Sprintf("/deliveries/%d", id)
}

func deliveryItemPath(deliveryID, itemID int64) string {
	return fmt.Sprintf("/deliveries/%d/items/%d", deliveryID, itemID)
}
