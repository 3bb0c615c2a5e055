package api

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/felixgeelhaar/devquote/internal/errors"
)

// Requester is the person who asked for a task.
type Requester struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// RequesterInput is the body of create and update calls.
type RequesterInput struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Validate checks the name is set and the email, when given, parses.
func (in RequesterInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.NewValidationError("name", "is required")
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return errors.NewValidationError("email", fmt.Sprintf("%q is not a valid address", in.Email))
		}
	}
	return nil
}

// RequesterService wraps the /requesters endpoints.
type RequesterService struct {
	doer Doer
}

// NewRequesterService creates a requester endpoint wrapper over d.
func NewRequesterService(d Doer) *RequesterService {
	return &RequesterService{doer: d}
}

// List retrieves one page of requesters
func (s *RequesterService) List(ctx context.Context, opts ListOptions) (*Page[Requester], error) {
	var page Page[Requester]
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: "/requesters", Query: opts.Query()}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *RequesterService) Get(ctx context.Context, id int64) (*Requester, error) {
	var r Requester
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodGet, Path: requesterPath(id)}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create validates in and creates a requester
func (s *RequesterService) Create(ctx context.Context, in RequesterInput) (*Requester, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var r Requester
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPost, Path: "/requesters", Body: in}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Update validates in and replaces a requester's fields
func (s *RequesterService) Update(ctx context.Context, id int64, in RequesterInput) (*Requester, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var r Requester
	if err := doJSON(ctx, s.doer, &Request{Method: http.MethodPut, Path: requesterPath(id), Body: in}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RequesterService) Delete(ctx context.Context, id int64) error {
	_, err := s.doer.Do(ctx, &Request{Method: http.MethodDelete, Path: requesterPath(id)})
	return err
}

func requesterPath(id int64) string {
	return fmt.Sprintf("/requesters/%d", id)
}
