// Package dbaastest runs an in-process fake control plane for tests. It
// speaks the JSON envelope dialect the client expects: single resources
// wrapped in their singular key, lists in their plural key plus links,
// errors as {"message","code"} bodies.
package dbaastest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RecordedRequest keeps what a handler saw, raw URI included, so tests can
// assert exact wire shapes.
type RecordedRequest struct {
	Method string
	URI    string
	Body   []byte
}

type Server struct {
	srv    *httptest.Server
	router chi.Router

	mu sync.Mutex

	// Knobs, set before the first request.
	TenantID         string
	Token            string
	AmbiguousCatalog bool
	// GetsUntilActive is how many GETs an instance answers BUILD before
	// flipping to ACTIVE.
	GetsUntilActive int

	AuthCount int
	Requests  []RecordedRequest

	instanceOrder []string
	instances     map[string]map[string]any
	instanceGets  map[string]int
	users         map[string][]map[string]any
	databases     map[string][]map[string]any
	backupOrder   []string
	backups       map[string]map[string]any
	logs          map[string][]map[string]any
	nextID        int
}

func NewServer() *Server {
	s := &Server{
		TenantID:        "t-1000",
		Token:           uuid.NewString(),
		GetsUntilActive: 3,
		instances:       map[string]map[string]any{},
		instanceGets:    map[string]int{},
		users:           map[string][]map[string]any{},
		databases:       map[string][]map[string]any{},
		backups:         map[string]map[string]any{},
		logs:            map[string][]map[string]any{},
	}
	s.router = chi.NewRouter()
	s.routes()
	s.srv = httptest.NewServer(s.record(s.router))
	return s
}

func (s *Server) Close()          { s.srv.Close() }
func (s *Server) URL() string     { return s.srv.URL }
func (s *Server) AuthURL() string { return s.srv.URL + "/v2.0" }

// ServiceURL is where the catalog points API traffic.
func (s *Server) ServiceURL() string {
	return fmt.Sprintf("%s/v1.0/%s", s.srv.URL, s.TenantID)
}

// LastRequest returns the most recent recorded request matching method and a
// URI substring, or nil.
func (s *Server) LastRequest(method, contains string) *RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Requests) - 1; i >= 0; i-- {
		r := s.Requests[i]
		if r.Method == method && strings.Contains(r.URI, contains) {
			return &r
		}
	}
	return nil
}

// AddInstance seeds an instance record directly.
func (s *Server) AddInstance(rec map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := rec["id"].(string)
	s.instances[id] = rec
	s.instanceOrder = append(s.instanceOrder, id)
}

// AddLog seeds guest log metadata for one instance.
func (s *Server) AddLog(instanceID string, log map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[instanceID] = append(s.logs[instanceID], log)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.Requests = append(s.Requests, RecordedRequest{Method: r.Method, URI: r.URL.RequestURI(), Body: body})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	s.router.Post("/v2.0/tokens", s.handleTokens)

	s.router.Route("/v1.0/{tenant}", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Post("/instances", s.instanceCreate)
		r.Get("/instances", s.instanceList)
		r.Get("/instances/{id}", s.instanceGet)
		r.Delete("/instances/{id}", s.instanceDelete)
		r.Post("/instances/{id}/action", s.instanceAction)

		r.Post("/instances/{id}/users", s.userCreate)
		r.Get("/instances/{id}/users", s.userList)
		r.Get("/instances/{id}/users/{user}", s.userGet)
		r.Delete("/instances/{id}/users/{user}", s.userDelete)

		r.Post("/instances/{id}/databases", s.databaseCreate)
		r.Get("/instances/{id}/databases", s.databaseList)
		r.Delete("/instances/{id}/databases/{name}", s.databaseDelete)

		r.Get("/instances/{id}/log", s.logList)
		r.Post("/instances/{id}/log", s.logAction)

		r.Post("/backups", s.backupCreate)
		r.Get("/backups", s.backupList)
		r.Get("/backups/{id}", s.backupGet)
		r.Delete("/backups/{id}", s.backupDelete)

		r.Get("/flavors", s.flavorList)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.Token
		s.mu.Unlock()
		if r.Header.Get("X-Auth-Token") != token {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.AuthCount++
	token := s.Token
	ambiguous := s.AmbiguousCatalog
	s.mu.Unlock()

	var req struct {
		Auth map[string]json.RawMessage `json:"auth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "undecodable credentials")
		return
	}
	if _, ok := req.Auth["passwordCredentials"]; !ok {
		if _, ok := req.Auth["RAX-KSKEY:apiKeyCredentials"]; !ok {
			writeError(w, http.StatusUnauthorized, "unrecognized credential shape")
			return
		}
	}

	services := []map[string]any{{
		"type": "database",
		"name": "cloudDatabases",
		"endpoints": []map[string]any{
			{"region": "RegionOne", "publicURL": s.ServiceURL()},
		},
	}}
	if ambiguous {
		services = append(services, map[string]any{
			"type": "database",
			"name": "legacyDatabases",
			"endpoints": []map[string]any{
				{"region": "RegionOne", "publicURL": s.ServiceURL() + "-legacy"},
			},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access": map[string]any{
			"token":          map[string]any{"id": token, "tenant": map[string]any{"id": s.TenantID}},
			"serviceCatalog": services,
		},
	})
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *Server) instanceCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Instance map[string]any `json:"instance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Instance == nil {
		writeError(w, http.StatusBadRequest, "missing instance envelope")
		return
	}

	s.mu.Lock()
	id := s.newID("i")
	rec := map[string]any{
		"id":     id,
		"name":   req.Instance["name"],
		"status": "BUILD",
	}
	if flavor, ok := req.Instance["flavorRef"].(string); ok {
		rec["flavor"] = map[string]any{"id": flavor}
	}
	if vol, ok := req.Instance["volume"].(map[string]any); ok {
		rec["volume"] = map[string]any{"size": vol["size"]}
	}
	if ds, ok := req.Instance["datastore"]; ok {
		rec["datastore"] = ds
	}
	s.instances[id] = rec
	s.instanceOrder = append(s.instanceOrder, id)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"instance": rec})
}

func (s *Server) instanceList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]map[string]any, 0, len(s.instanceOrder))
	for _, id := range s.instanceOrder {
		items = append(items, s.instances[id])
	}
	s.writePage(w, r, "instances", items)
}

// writePage slices items by limit/marker and emits a rel=next link when a
// further page exists. Callers hold the lock.
func (s *Server) writePage(w http.ResponseWriter, r *http.Request, key string, items []map[string]any) {
	marker := r.URL.Query().Get("marker")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	start := 0
	if marker != "" {
		for i, item := range items {
			if fmt.Sprintf("%v", item["id"]) == marker || fmt.Sprintf("%v", item["name"]) == marker {
				start = i + 1
				break
			}
		}
	}
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	page := items[start:end]

	body := map[string]any{key: page}
	if end < len(items) {
		last := fmt.Sprintf("%v", page[len(page)-1]["id"])
		if last == "<nil>" {
			last = fmt.Sprintf("%v", page[len(page)-1]["name"])
		}
		href := fmt.Sprintf("%s%s?limit=%d&marker=%s", s.srv.URL, r.URL.Path, limit, last)
		body["links"] = []map[string]any{{"rel": "next", "href": href}}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) instanceGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.instances[id]
	if !ok {
		writeError(w, http.StatusNotFound, "instance not found")
		return
	}
	s.instanceGets[id]++
	if rec["status"] == "BUILD" && s.instanceGets[id] >= s.GetsUntilActive {
		rec["status"] = "ACTIVE"
	}
	writeJSON(w, http.StatusOK, map[string]any{"instance": rec})
}

func (s *Server) instanceDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		writeError(w, http.StatusNotFound, "instance not found")
		return
	}
	delete(s.instances, id)
	for i, oid := range s.instanceOrder {
		if oid == id {
			s.instanceOrder = append(s.instanceOrder[:i], s.instanceOrder[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) instanceAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		writeError(w, http.StatusNotFound, "instance not found")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) userCreate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Users []map[string]any `json:"users"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Users) == 0 {
		writeError(w, http.StatusBadRequest, "missing users envelope")
		return
	}
	s.mu.Lock()
	for _, u := range req.Users {
		if _, ok := u["host"]; !ok {
			u["host"] = "%"
		}
		s.users[id] = append(s.users[id], u)
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) userList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writePage(w, r, "users", s.users[id])
}

// splitUserRef undoes the name@host reference. The router hands the segment
// through raw, so the %40 separator and %2e dots may still be escaped.
func splitUserRef(ref string) (name, host string) {
	if i := strings.LastIndex(ref, "%40"); i >= 0 {
		name, host = ref[:i], ref[i+len("%40"):]
	} else if i := strings.LastIndex(ref, "@"); i >= 0 {
		name, host = ref[:i], ref[i+1:]
	} else {
		return ref, ""
	}
	name = strings.ReplaceAll(name, "%2e", ".")
	if u, err := url.PathUnescape(host); err == nil {
		host = u
	}
	return name, host
}

func (s *Server) findUser(instanceID, ref string) (map[string]any, int) {
	name, host := splitUserRef(ref)
	for i, u := range s.users[instanceID] {
		if u["name"] != name {
			continue
		}
		uh, _ := u["host"].(string)
		if host == "" || uh == host {
			return u, i
		}
	}
	return nil, -1
}

func (s *Server) userGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, _ := s.findUser(chi.URLParam(r, "id"), chi.URLParam(r, "user"))
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) userDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	u, i := s.findUser(id, chi.URLParam(r, "user"))
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.users[id] = append(s.users[id][:i], s.users[id][i+1:]...)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) databaseCreate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Databases []map[string]any `json:"databases"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Databases) == 0 {
		writeError(w, http.StatusBadRequest, "missing databases envelope")
		return
	}
	s.mu.Lock()
	s.databases[id] = append(s.databases[id], req.Databases...)
	s.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) databaseList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writePage(w, r, "databases", s.databases[id])
}

func (s *Server) databaseDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, db := range s.databases[id] {
		if db["name"] == name {
			s.databases[id] = append(s.databases[id][:i], s.databases[id][i+1:]...)
			w.WriteHeader(http.StatusAccepted)
			return
		}
	}
	writeError(w, http.StatusNotFound, "database not found")
}

func (s *Server) logList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := s.logs[id]
	if logs == nil {
		logs = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) logAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing log name")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, log := range s.logs[id] {
		if log["name"] == req.Name {
			log["status"] = "Published"
			writeJSON(w, http.StatusOK, map[string]any{"log": log})
			return
		}
	}
	writeError(w, http.StatusNotFound, "log not found")
}

func (s *Server) backupCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Backup map[string]any `json:"backup"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Backup == nil {
		writeError(w, http.StatusBadRequest, "missing backup envelope")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	instance, _ := req.Backup["instance"].(string)
	rec := map[string]any{
		"id":          s.newID("b"),
		"name":        req.Backup["name"],
		"instance_id": instance,
		"status":      "NEW",
	}
	if parent, ok := req.Backup["parent_id"].(string); ok && parent != "" {
		rec["parent_id"] = parent
	} else if inc, ok := req.Backup["incremental"].(float64); ok && inc == 1 {
		// Server-side parent selection: the newest existing backup of the
		// same instance.
		for i := len(s.backupOrder) - 1; i >= 0; i-- {
			prev := s.backups[s.backupOrder[i]]
			if prev["instance_id"] == instance {
				rec["parent_id"] = prev["id"]
				break
			}
		}
		if _, ok := rec["parent_id"]; !ok {
			rec["parent_id"] = "b-genesis"
		}
	}
	id := rec["id"].(string)
	s.backups[id] = rec
	s.backupOrder = append(s.backupOrder, id)

	writeJSON(w, http.StatusOK, map[string]any{"backup": rec})
}

func (s *Server) backupList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance := r.URL.Query().Get("instance_id")
	items := make([]map[string]any, 0, len(s.backupOrder))
	for _, id := range s.backupOrder {
		b := s.backups[id]
		if instance != "" && b["instance_id"] != instance {
			continue
		}
		items = append(items, b)
	}
	s.writePage(w, r, "backups", items)
}

func (s *Server) backupGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backups[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backup": b})
}

func (s *Server) backupDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.backups[id]; !ok {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}
	delete(s.backups, id)
	for i, oid := range s.backupOrder {
		if oid == id {
			s.backupOrder = append(s.backupOrder[:i], s.backupOrder[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) flavorList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writePage(w, r, "flavors", []map[string]any{
		{"id": json.Number("1"), "name": "m1.tiny", "ram": 512, "vcpus": 1, "disk": 5},
		{"id": json.Number("2"), "name": "m1.small", "ram": 2048, "vcpus": 1, "disk": 20},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message, "code": status})
}
