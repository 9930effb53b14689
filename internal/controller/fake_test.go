package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/wificonnector/internal/config"
	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

const apiPrefix = "/wsg/api/public/v9_1"

// fakeController issues service tickets on login and serves query pages
// through the configured handler once the ticket checks out.
type fakeController struct {
	srv *httptest.Server

	mu          sync.Mutex
	logins      int
	validTicket string
	loginStatus int
	// unavailable answers that many logins with 503 before accepting.
	unavailable int
	queries     map[string]int
	query       func(w http.ResponseWriter, r *http.Request, page, limit int)
}

func newFakeController(t *testing.T) *fakeController {
	t.Helper()

	f := &fakeController{queries: make(map[string]int)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeController) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == apiPrefix+"/session" && r.Method == http.MethodPost:
		f.login(w, r)
	case r.URL.Path == apiPrefix+"/session" && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusOK)
	case strings.HasPrefix(r.URL.Path, apiPrefix+"/query/"):
		f.serveQuery(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeController) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.logins++
	status := f.loginStatus
	if f.unavailable > 0 {
		f.unavailable--
		status = http.StatusServiceUnavailable
	}
	if status == 0 && (req.Username != "reader" || req.Password != "secret") {
		status = http.StatusUnauthorized
	}
	if status != 0 {
		f.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	f.validTicket = fmt.Sprintf("ST-%d", f.logins)
	ticket := f.validTicket
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"serviceTicket": ticket})
}

func (f *fakeController) serveQuery(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	valid := f.validTicket != "" && r.URL.Query().Get("serviceTicket") == f.validTicket
	handler := f.query
	f.mu.Unlock()

	if !valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	page, limit := pageParams(r)

	f.mu.Lock()
	f.queries[fmt.Sprintf("%s#%d", r.URL.Path, page)]++
	f.mu.Unlock()

	if handler == nil {
		writeJSON(w, map[string]any{"totalCount": 0, "list": []any{}})
		return
	}
	handler(w, r, page, limit)
}

func pageParams(r *http.Request) (int, int) {
	if r.Method == http.MethodPost {
		var req pageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		return req.Page, req.Limit
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

// expire invalidates the ticket handed out at the last login.
func (f *fakeController) expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validTicket = "expired"
}

func (f *fakeController) setQuery(h func(w http.ResponseWriter, r *http.Request, page, limit int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = h
}

func (f *fakeController) failLogins(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = n
}

func (f *fakeController) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeController) pageRequests(kind string, page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[fmt.Sprintf("%s/query/%s#%d", apiPrefix, kind, page)]
}

func (f *fakeController) config() *config.ControllerConfig {
	return &config.ControllerConfig{
		BaseURL:    f.srv.URL,
		Username:   "reader",
		Password:   "secret",
		APIVersion: "v9_1",
		Timeout:    5 * time.Second,
	}
}

func newTestSession(t *testing.T, f *fakeController) (*Client, *SessionManager) {
	t.Helper()

	cfg := f.config()
	client := NewClient(sl.Discard(), cfg)
	t.Cleanup(func() { require.NoError(t, client.Close()) })

	return client, NewSessionManager(sl.Discard(), client, cfg.Username, cfg.Password)
}

func testPolicy() retry.Policy {
	return retry.NewPolicy(3, time.Millisecond, 5*time.Millisecond)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
