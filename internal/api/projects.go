package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/felixgeelhaar/devquote/internal/errors"
)

// Project is a customer project.
type Project struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	RepositoryURL string `json:"repositoryUrl,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// ProjectInput is the body of create and update calls.
type ProjectInput struct {
	Name          string `json:"name"`
	RepositoryURL string `json:"repositoryUrl,omitempty"`
}

// Validate checks the name is set and the repository, when given, is an
// absolute URL.
func (in ProjectInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.NewValidationError("name", "is required")
	}
	if in.RepositoryURL != "" {
		u, err := url.Parse(in.RepositoryURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.NewValidationError("repository url", fmt.Sprintf("%q is not an absolute URL", in.RepositoryURL))
		}
	}
	return nil
}

// ProjectService wraps the /projects endpoints.
type ProjectService struct {
	doer Doer
}

// NewProjectService creates a project endpoint wrapper over d.
func NewProjectService(d Doer) *ProjectService {
	return &ProjectService{doer: d}
}

// List retrieves one page of projects
func (s *ProjectService) List(ctx context.Context, opts ListOptions) (*Page[Project], error) {
	var page Page[Project]
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: "/projects", Query: opts.Query()}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// All retrieves every project without paging
func (s *ProjectService) All(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: "/projects/all"}, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Get retrieves a project by ID
func (s *ProjectService) Get(ctx context.Context, id int64) (*Project, error) {
	var project Project
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: projectPath(id)}, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Create creates a new project
func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var project Project
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPost, Path: "/projects", Body: in}, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Update replaces a project's fields
func (s *ProjectService) Update(ctx context.Context, id int64, in ProjectInput) (*Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var project Project
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPut, Path: projectPath(id), Body: in}, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Delete deletes a project
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	_, err := s.doer.Do(ctx, &Request{Method: http.MethodDelete, Path: projectPath(id)})
	return err
}

func projectPath(id int64) string {
	return fmt.Sprintf("/projects/%d", id)
}
