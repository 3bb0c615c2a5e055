package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
)

// Task is a unit of quoted work.
type Task struct {
	ID            int64               `json:"id"`
	Code          domain.TaskCode     `json:"code"`
	Title         string              `json:"title"`
	Description   string              `json:"description,omitempty"`
	Priority      domain.TaskPriority `json:"priority,omitempty"`
	TaskType      domain.TaskType     `json:"taskType,omitempty"`
	RequesterID   int64               `json:"requesterId"`
	RequesterName string              `json:"requesterName,omitempty"`
	SystemModule  string              `json:"systemModule,omitempty"`
	ServerOrigin  string              `json:"serverOrigin,omitempty"`
	MeetingLink   string              `json:"meetingLink,omitempty"`
	Link          string              `json:"link,omitempty"`
	SubTasks      []SubTask           `json:"subTasks,omitempty"`
	CreatedAt     string              `json:"createdAt,omitempty"`
	UpdatedAt     string              `json:"updatedAt,omitempty"`
}

// Amount sums the subtask amounts.
func (t Task) Amount() float64 {
	var total float64
	for _, st := range t.SubTasks {
		total += st.Amount
	}
	return total
}

// SubTask is a priced line of a task.
type SubTask struct {
	ID          int64   `json:"id,omitempty"`
	TaskID      int64   `json:"taskId,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

// TaskInput is the body of create and update calls.
type TaskInput struct {
	Code         domain.TaskCode     `json:"code"`
	Title        string              `json:"title"`
	Description  string              `json:"description,omitempty"`
	Priority     domain.TaskPriority `json:"priority,omitempty"`
	TaskType     domain.TaskType     `json:"taskType,omitempty"`
	RequesterID  int64               `json:"requesterId"`
	SystemModule string              `json:"systemModule,omitempty"`
	ServerOrigin string              `json:"serverOrigin,omitempty"`
	MeetingLink  string              `json:"meetingLink,omitempty"`
	Link         string              `json:"link,omitempty"`
	SubTasks     []SubTask           `json:"subTasks,omitempty"`
}

// Validate checks the fields the backend rejects before a call is made.
func (in TaskInput) Validate() error {
	if err := in.Code.Validate(); err != nil {
		return errors.NewValidationError("code", err.Error())
	}
	if strings.TrimSpace(in.Title) == "" {
		return errors.NewValidationError("title", "is required")
	}
	if in.RequesterID <= 0 {
		return errors.NewValidationError("requester", "is required")
	}
	if in.Priority != "" {
		if err := in.Priority.Validate(); err != nil {
			return errors.NewValidationError("priority", err.Error())
		}
	}
	for i, st := range in.SubTasks {
		if strings.TrimSpace(st.Title) == "" {
			return errors.NewValidationError(fmt.Sprintf("subtask %d", i+1), "title is required")
		}
		if st.Amount < 0 {
			return errors.NewValidationError(fmt.Sprintf("subtask %d", i+1), "amount must not be negative")
		}
	}
	return nil
}

// TaskService wraps the /tasks endpoints.
type TaskService struct {
	doer Doer
}

// NewTaskService creates a task endpoint wrapper over d.
func NewTaskService(d Doer) *TaskService {
	return &TaskService{doer: d}
}

// List retrieves one page of tasks
func (s *TaskService) List(ctx context.Context, opts ListOptions) (*Page[Task], error) {
	var page Page[Task]
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: "/tasks", Query: opts.Query()}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get retrieves a task by ID
func (s *TaskService) Get(ctx context.Context, id int64) (*Task, error) {
	var task Task
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: taskPath(id)}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Create creates a new task
func (s *TaskService) Create(ctx context.Context, in TaskInput) (*Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var task Task
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPost, Path: "/tasks", Body: in}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update replaces a task's fields
func (s *TaskService) Update(ctx context.Context, id int64, in TaskInput) (*Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var task Task
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPut, Path: taskPath(id), Body: in}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete deletes a task
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	_, err := s.doer.Do(ctx, &Request{Method: http.MethodDelete, Path: taskPath(id)})
	return err
}

// BulkDelete deletes several tasks in one call
func (s *TaskService) BulkDelete(ctx context.Context, ids []int64) error {
	_, err := s.doer.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   "/tasks/bulk",
		Body:   map[string][]int64{"ids": ids},
	})
	return err
}

// SubTasks retrieves the subtasks of a task
func (s *TaskService) SubTasks(ctx context.Context, taskID int64) ([]SubTask, error) {
	var subTasks []SubTask
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: taskPath(taskID) + "/subtasks"}, &subTasks); err != nil {
		return nil, err
	}
	return subTasks, nil
}

func taskPath(id int64) string {
	return fmt.Sprintf("/tasks/%d", id)
}
