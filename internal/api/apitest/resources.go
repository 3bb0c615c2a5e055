package apitest

import (
	"cmp"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/devquote/internal/domain"
)

// Delivery is the fake's stored delivery.
type Delivery struct {
	ID        int64          `json:"id"`
	TaskID    int64          `json:"taskId"`
	Status    string         `json:"status"`
	Items     []DeliveryItem `json:"items"`
	CreatedAt string         `json:"createdAt,omitempty"`
}

// DeliveryItem is one project of a stored delivery.
type DeliveryItem struct {
	ID          int64  `json:"id"`
	DeliveryID  int64  `json:"deliveryId"`
	ProjectID   int64  `json:"projectId"`
	ProjectName string `json:"projectName,omitempty"`
	Status      string `json:"status"`
	Branch      string `json:"branch,omitempty"`
	PullRequest string `json:"pullRequest,omitempty"`
}

type collection func() map[int64]map[string]any

// timestamp is stamped on every record the fake writes.
const timestamp = "2026-01-01T00:00:00Z"

func (s *Server) routeResources(mux *http.ServeMux) {
	projects := func() map[int64]map[string]any { return s.projects }
	tasks := func() map[int64]map[string]any { return s.tasks }
	requesters := func() map[int64]map[string]any { return s.requesters }

	for path, items := range map[string]collection{"/projects": projects, "/tasks": tasks, "/requesters": requesters} {
		mux.HandleFunc("GET "+BasePath+path, s.authed(s.listHandler(items)))
		mux.HandleFunc("GET "+BasePath+path+"/{id}", s.authed(s.getHandler(items)))
		mux.HandleFunc("POST "+BasePath+path, s.authed(s.createHandler(items)))
		mux.HandleFunc("PUT "+BasePath+path+"/{id}", s.authed(s.updateHandler(items)))
		mux.HandleFunc("DELETE "+BasePath+path+"/{id}", s.authed(s.deleteHandler(items)))
	}
	mux.HandleFunc("DELETE "+BasePath+"/tasks/bulk", s.authed(s.bulkDeleteHandler(tasks)))

	mux.HandleFunc("GET "+BasePath+"/deliveries/grouped-by-task", s.authed(s.handleDeliveryGroups))
	mux.HandleFunc("GET "+BasePath+"/deliveries/group/{taskId}", s.authed(s.handleDeliveryGroup))
	mux.HandleFunc("GET "+BasePath+"/deliveries/statistics", s.authed(s.handleDeliveryStatistics))
	mux.HandleFunc("GET "+BasePath+"/deliveries/{id}", s.authed(s.handleGetDelivery))
	mux.HandleFunc("POST "+BasePath+"/deliveries", s.authed(s.handleCreateDelivery))
	mux.HandleFunc("DELETE "+BasePath+"/deliveries/bulk", s.authed(s.handleBulkDeleteDeliveries))
	mux.HandleFunc("DELETE "+BasePath+"/deliveries/{id}", s.authed(s.handleDeleteDelivery))
	mux.HandleFunc("PUT "+BasePath+"/deliveries/{id}/items/{itemId}", s.authed(s.handleUpdateDeliveryItem))
}

// AddRequester seeds the requester listing.
func (s *Server) AddRequester(id int64, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requesters[id] = withID(id, fields)
}

// AddDelivery seeds a delivery. Item delivery IDs are filled in.
func (s *Server) AddDelivery(d Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range d.Items {
		d.Items[i].DeliveryID = d.ID
	}
	s.deliveries[d.ID] = d
}

// Project, Task and Requester return a stored record, or nil.
func (s *Server) Project(id int64) map[string]any   { return s.lookup(s.projects, id) }
func (s *Server) Task(id int64) map[string]any      { return s.lookup(s.tasks, id) }
func (s *Server) Requester(id int64) map[string]any { return s.lookup(s.requesters, id) }

// Delivery returns a stored delivery.
func (s *Server) Delivery(id int64) (Delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	return d, ok
}

func (s *Server) lookup(items map[int64]map[string]any, id int64) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return items[id]
}

func (s *Server) createHandler(items collection) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
			return
		}
		s.mu.Lock()
		all := items()
		var id int64 = 1
		for existing := range all {
			id = max(id, existing+1)
		}
		item := withID(id, body)
		item["createdAt"] = timestamp
		all[id] = item
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, item)
	}
}

func (s *Server) updateHandler(items collection) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
			return
		}
		s.mu.Lock()
		all := items()
		prev, found := all[id]
		if found {
			item := withID(id, body)
			item["createdAt"] = prev["createdAt"]
			item["updatedAt"] = timestamp
			all[id] = item
			prev = item
		}
		s.mu.Unlock()
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, prev)
	}
}

func (s *Server) deleteHandler(items collection) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		s.mu.Lock()
		_, found := items()[id]
		delete(items(), id)
		s.mu.Unlock()
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) bulkDeleteHandler(items collection) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		var body struct {
			IDs []int64 `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "ids are required"})
			return
		}
		s.mu.Lock()
		for _, id := range body.IDs {
			delete(items(), id)
		}
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request, _ string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	d, found := s.Delivery(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCreateDelivery(w http.ResponseWriter, r *http.Request, _ string) {
	var d Delivery
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil || d.TaskID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "taskId is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.deliveries {
		if existing.TaskID == d.TaskID {
			writeJSON(w, http.StatusConflict, map[string]any{"message": "task already has a delivery"})
			return
		}
		d.ID = max(d.ID, existing.ID)
	}
	d.ID++
	if d.Status == "" {
		d.Status = string(domain.DeliveryPending)
	}
	for i := range d.Items {
		d.Items[i].ID = int64(i + 1)
		d.Items[i].DeliveryID = d.ID
		if d.Items[i].Status == "" {
			d.Items[i].Status = d.Status
		}
	}
	d.CreatedAt = timestamp
	s.deliveries[d.ID] = d
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleDeleteDelivery(w http.ResponseWriter, r *http.Request, _ string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	_, found := s.deliveries[id]
	delete(s.deliveries, id)
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDeleteDeliveries(w http.ResponseWriter, r *http.Request, _ string) {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "ids are required"})
		return
	}
	s.mu.Lock()
	for _, id := range body.IDs {
		delete(s.deliveries, id)
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateDeliveryItem(w http.ResponseWriter, r *http.Request, _ string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}
	var patch DeliveryItem
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, found := s.deliveries[id]
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	for i, item := range d.Items {
		if item.ID != itemID {
			continue
		}
		if patch.Status != "" {
			item.Status = patch.Status
		}
		if patch.Branch != "" {
			item.Branch = patch.Branch
		}
		if patch.PullRequest != "" {
			item.PullRequest = patch.PullRequest
		}
		d.Items[i] = item
		s.deliveries[id] = d
		writeJSON(w, http.StatusOK, item)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "item not found"})
}

func (s *Server) handleDeliveryStatistics(w http.ResponseWriter, _ *http.Request, _ string) {
	s.mu.Lock()
	var items []DeliveryItem
	for _, d := range s.deliveries {
		items = append(items, d.Items...)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, countStatuses(items))
}

func (s *Server) handleDeliveryGroup(w http.ResponseWriter, r *http.Request, _ string) {
	taskID, ok := pathID(w, r, "taskId")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deliveries {
		if d.TaskID == taskID {
			writeJSON(w, http.StatusOK, s.groupLocked(d))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "task has no delivery"})
}

// handleDeliveryGroups pages the groups ordered by task ID. The status
// filter matches the delivery status.
func (s *Server) handleDeliveryGroups(w http.ResponseWriter, r *http.Request, _ string) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	if size <= 0 {
		size = 10
	}
	status := q.Get("status")

	s.mu.Lock()
	var all []map[string]any
	for _, d := range s.deliveries {
		if status != "" && d.Status != status {
			continue
		}
		all = append(all, s.groupLocked(d))
	}
	s.mu.Unlock()
	slices.SortFunc(all, func(a, b map[string]any) int {
		return cmp.Compare(a["taskId"].(int64), b["taskId"].(int64))
	})

	content := []map[string]any{}
	for i := page * size; i < len(all) && i < (page+1)*size; i++ {
		content = append(content, all[i])
	}
	totalPages := (len(all) + size - 1) / size
	writeJSON(w, http.StatusOK, map[string]any{
		"content":       content,
		"number":        page,
		"size":          size,
		"totalElements": len(all),
		"totalPages":    totalPages,
		"first":         page == 0,
		"last":          page >= totalPages-1,
		"empty":         len(content) == 0,
	})
}

func (s *Server) groupLocked(d Delivery) map[string]any {
	task := s.tasks[d.TaskID]
	completed := 0
	for _, item := range d.Items {
		if domain.DeliveryStatus(item.Status).Completed() {
			completed++
		}
	}
	return map[string]any{
		"taskId":              d.TaskID,
		"taskName":            task["title"],
		"taskCode":            task["code"],
		"deliveryId":          d.ID,
		"deliveryStatus":      d.Status,
		"totalItems":          len(d.Items),
		"statusCounts":        countStatuses(d.Items),
		"totalDeliveries":     len(d.Items),
		"completedDeliveries": completed,
		"pendingDeliveries":   len(d.Items) - completed,
		"deliveries":          []Delivery{d},
	}
}

func countStatuses(items []DeliveryItem) map[string]int {
	counts := map[string]int{}
	for _, s := range domain.DeliveryStatuses {
		counts[strings.ToLower(string(s))] = 0
	}
	for _, item := range items {
		counts[strings.ToLower(item.Status)]++
	}
	return counts
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid " + name})
		return 0, false
	}
	return id, true
}
