package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/evalix/core"
	"github.com/trezcool/evalix/core/auth"
	"github.com/trezcool/evalix/core/sheet"
)

// NewConfig returns the TEST config.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Debug = false
	conf.Store.Driver = core.DriverMemory
	conf.Store.SessionFile = t.TempDir() + "/evalix_user.json"
	return conf
}

func Token(t *testing.T, conf *core.Config, username string, isAdmin bool) string {
	t.Helper()
	token, err := auth.GenerateToken(auth.NewClaims(conf, username, isAdmin), conf.SecretKey)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	return token
}

func CreateSheet(t *testing.T, repo sheet.Repository, year, period int, rows ...sheet.Row) sheet.Sheet {
	t.Helper()
	doc := sheet.NewDocument(year, period)
	if rows != nil {
		doc = sheet.Payload{Rows: rows}.Derive().Document(year, period)
	}
	rec, err := repo.CreateSheet(context.Background(), doc)
	if err != nil {
		t.Fatalf("CreateSheet() failed: %v", err)
	}
	s, err := sheet.Normalize(rec)
	if err != nil {
		t.Fatalf("CreateSheet() failed: %v", err)
	}
	return s
}

// RecordedRequest is a request received by a MockStore.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
	At     time.Time
}

// MockStore is an in-process REST collection that behaves like a MockAPI resource:
// string ids, string-compared query filters and whole-document PUT.
type MockStore struct {
	*httptest.Server
	Resource string

	mu       sync.Mutex
	items    map[string]map[string]interface{}
	order    []string
	nextID   int
	failures []int
	listBody []byte
	requests []RecordedRequest
}

// NewMockStore starts a MockStore serving /{resource}; it is closed with the test.
func NewMockStore(t *testing.T, resource string) *MockStore {
	t.Helper()
	ms := &MockStore{
		Resource: resource,
		items:    make(map[string]map[string]interface{}),
		nextID:   1,
	}
	ms.Server = httptest.NewServer(http.HandlerFunc(ms.serve))
	t.Cleanup(ms.Close)
	return ms
}

// FailNext makes the next len(statuses) requests answer with these statuses, in order.
func (ms *MockStore) FailNext(statuses ...int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.failures = append(ms.failures, statuses...)
}

// ListWith makes every collection GET answer 200 with body instead of the stored items.
func (ms *MockStore) ListWith(body string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.listBody = []byte(body)
}

// Seed stores raw items as-is; an item without "id" gets the next one.
func (ms *MockStore) Seed(items ...map[string]interface{}) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, item := range items {
		ms.insert(item)
	}
}

func (ms *MockStore) Items() []map[string]interface{} {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	items := make([]map[string]interface{}, 0, len(ms.order))
	for _, id := range ms.order {
		items = append(items, ms.items[id])
	}
	return items
}

func (ms *MockStore) Requests() []RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RecordedRequest(nil), ms.requests...)
}

// CountRequests returns how many requests used method, "" for all.
func (ms *MockStore) CountRequests(method string) int {
	n := 0
	for _, r := range ms.Requests() {
		if method == "" || r.Method == method {
			n++
		}
	}
	return n
}

func (ms *MockStore) insert(item map[string]interface{}) map[string]interface{} {
	id, ok := item["id"]
	if !ok || id == nil || fmt.Sprint(id) == "" {
		id = strconv.Itoa(ms.nextID)
		ms.nextID++
	}
	item["id"] = fmt.Sprint(id)
	ms.items[item["id"].(string)] = item
	ms.order = append(ms.order, item["id"].(string))
	return item
}

func (ms *MockStore) serve(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.requests = append(ms.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
		At:     time.Now(),
	})

	if len(ms.failures) > 0 {
		status := ms.failures[0]
		ms.failures = ms.failures[1:]
		w.WriteHeader(status)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 0 || parts[0] != ms.Resource || len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var id string
	if len(parts) == 2 {
		id = parts[1]
	}

	switch {
	case id == "" && r.Method == http.MethodGet:
		ms.list(w, r)
	case id == "" && r.Method == http.MethodPost:
		item, ok := decodeItem(w, body)
		if !ok {
			return
		}
		delete(item, "id")
		writeJSON(w, http.StatusCreated, ms.insert(item))
	case id != "":
		item, found := ms.items[id]
		if !found {
			writeJSON(w, http.StatusNotFound, "Not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, item)
		case http.MethodPut:
			newItem, ok := decodeItem(w, body)
			if !ok {
				return
			}
			newItem["id"] = id
			ms.items[id] = newItem
			writeJSON(w, http.StatusOK, newItem)
		case http.MethodDelete:
			delete(ms.items, id)
			for i, oid := range ms.order {
				if oid == id {
					ms.order = append(ms.order[:i], ms.order[i+1:]...)
					break
				}
			}
			writeJSON(w, http.StatusOK, item)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (ms *MockStore) list(w http.ResponseWriter, r *http.Request) {
	if ms.listBody != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(ms.listBody)
		return
	}

	q := r.URL.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]map[string]interface{}, 0, len(ms.order))
	for _, id := range ms.order {
		item := ms.items[id]
		match := true
		for _, k := range keys {
			if fmt.Sprint(item[k]) != q.Get(k) {
				match = false
				break
			}
		}
		if match {
			items = append(items, item)
		}
	}
	writeJSON(w, http.StatusOK, items)
}

func decodeItem(w http.ResponseWriter, body []byte) (map[string]interface{}, bool) {
	item := make(map[string]interface{})
	if err := json.Unmarshal(body, &item); err != nil {
		writeJSON(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return item, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
