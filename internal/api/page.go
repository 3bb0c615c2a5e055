package api

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Page is a Spring-style paginated reply.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
	Empty         bool  `json:"empty"`
}

// Default paging values, matching the backend.
const (
	DefaultPage = 0
	DefaultSize = 10
	MaxPageSize = 100
)

// SortField orders a listing by one field.
type SortField struct {
	Field     string
	Direction string
}

func (s SortField) String() string {
	return s.Field + "," + s.Direction
}

// ParseSort parses "field" or "field,asc|desc".
func ParseSort(s string) (SortField, error) {
	field, dir, _ := strings.Cut(strings.TrimSpace(s), ",")
	field = strings.TrimSpace(field)
	dir = strings.ToLower(strings.TrimSpace(dir))
	if field == "" {
		return SortField{}, fmt.Errorf("sort %q has no field", s)
	}
	switch dir {
	case "":
		dir = "asc"
	case "asc", "desc":
	default:
		return SortField{}, fmt.Errorf("sort %q: direction must be asc or desc", s)
	}
	return SortField{Field: field, Direction: dir}, nil
}

// ListOptions are the paging, sorting and filter parameters of a listing.
type ListOptions struct {
	Page    int
	Size    int
	Sort    []SortField
	Filters map[string]string
}

// Query encodes the options. Empty filters are dropped.
func (o ListOptions) Query() url.Values {
	q := url.Values{}
	page := o.Page
	if page < 0 {
		page = DefaultPage
	}
	size := o.Size
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	for _, s := range o.Sort {
		q.Add("sort", s.String())
	}

	keys := make([]string, 0, len(o.Filters))
	for k := range o.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(o.Filters[k]); v != "" {
			q.Set(k, v)
		}
	}
	return q
}
