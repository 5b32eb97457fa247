// Package testutil provides an httptest-backed Reddit stand-in, a manual
// clock and payload builders shared by package tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// Response is one canned reply.
type Response struct {
	Status  int
	Body    string
	Headers map[string]string
}

// RequestEntry records an incoming request.
type RequestEntry struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Form    url.Values
}

// MockServer replays queued responses per path. When a path's queue is down
// to its last response, that response repeats.
type MockServer struct {
	server *httptest.Server

	mu          sync.Mutex
	responses   map[string][]Response
	defaultResp Response
	requestLog  []RequestEntry
	callCount   map[string]int
}

// NewMockServer starts a server that is closed with the test.
func NewMockServer(t testing.TB) *MockServer {
	ms := &MockServer{
		responses: make(map[string][]Response),
		callCount: make(map[string]int),
		defaultResp: Response{
			Status: http.StatusNotFound,
			Body:   `{"message": "Not Found", "error": 404}`,
		},
	}
	ms.server = httptest.NewServer(ms)
	t.Cleanup(ms.server.Close)
	return ms
}

// URL returns the base URL of the server.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Client returns an *http.Client wired to the server.
func (ms *MockServer) Client() *http.Client {
	return ms.server.Client()
}

// On queues responses for path, replacing any earlier queue.
func (ms *MockServer) On(path string, responses ...Response) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = append([]Response(nil), responses...)
}

// OnJSON queues a single 200 JSON response for path.
func (ms *MockServer) OnJSON(path, body string) {
	ms.On(path, Response{Status: http.StatusOK, Body: body})
}

// SetDefaultResponse sets the reply for paths with no queue.
func (ms *MockServer) SetDefaultResponse(r Response) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.defaultResp = r
}

// CallCount returns the number of requests seen for path.
func (ms *MockServer) CallCount(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.callCount[path]
}

// Requests returns a copy of the request log.
func (ms *MockServer) Requests() []RequestEntry {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RequestEntry(nil), ms.requestLog...)
}

// LastRequest returns the last request made to path.
func (ms *MockServer) LastRequest(path string) (RequestEntry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i := len(ms.requestLog) - 1; i >= 0; i-- {
		if ms.requestLog[i].Path == path {
			return ms.requestLog[i], nil
		}
	}
	return RequestEntry{}, fmt.Errorf("no requests found for path: %s", path)
}

// ServeHTTP implements http.Handler.
func (ms *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	ms.mu.Lock()
	ms.callCount[r.URL.Path]++
	ms.requestLog = append(ms.requestLog, RequestEntry{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Headers: r.Header.Clone(),
		Form:    r.PostForm,
	})

	resp := ms.defaultResp
	if queue, ok := ms.responses[r.URL.Path]; ok && len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			ms.responses[r.URL.Path] = queue[1:]
		}
	}
	ms.mu.Unlock()

	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
}

// RateLimitHeaders returns Reddit's rate-limit headers.
func RateLimitHeaders(remaining, used int, reset time.Duration) map[string]string {
	return map[string]string{
		"X-Ratelimit-Remaining": fmt.Sprint(remaining),
		"X-Ratelimit-Used":      fmt.Sprint(used),
		"X-Ratelimit-Reset":     fmt.Sprint(int(reset.Seconds())),
	}
}
