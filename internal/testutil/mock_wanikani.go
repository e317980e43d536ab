// Package testutil provides testing utilities for the WaniKani client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/Sternrassler/wanikani-dict/pkg/client"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockWaniKani is a configurable mock WaniKani API server for testing.
type MockWaniKani struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	pages    [][]client.Subject

	// Tracking
	RequestCount      int
	RequestURIs       []string
	LastRequestHeader http.Header
}

// NewMockWaniKani creates a new mock WaniKani server.
func NewMockWaniKani() *MockWaniKani {
	mock := &MockWaniKani{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestURIs = append(mock.RequestURIs, r.URL.RequestURI())
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server root URL.
func (m *MockWaniKani) URL() string {
	return m.server.URL
}

// BaseURL returns the API root to use as client.Config.BaseURL.
func (m *MockWaniKani) BaseURL() string {
	return m.server.URL + "/v2"
}

// Close shuts down the mock server.
func (m *MockWaniKani) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockWaniKani) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestURIs = nil
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockWaniKani) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockWaniKani) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetSubjectPages serves the given pages from /v2/subjects. Page 1 is the
// plain collection URL; page n>1 is reached through the next_url of n-1.
func (m *MockWaniKani) SetSubjectPages(pages ...[]client.Subject) {
	m.mu.Lock()
	m.pages = pages
	m.mu.Unlock()

	m.SetHandler("/v2/subjects", func(w http.ResponseWriter, r *http.Request) {
		n := 1
		if p := r.URL.Query().Get("page"); p != "" {
			v, err := strconv.Atoi(p)
			if err != nil {
				http.Error(w, "bad page", http.StatusBadRequest)
				return
			}
			n = v
		}

		m.mu.RLock()
		all := m.pages
		m.mu.RUnlock()

		if n < 1 || n > len(all) {
			http.Error(w, "no such page", http.StatusNotFound)
			return
		}

		total := 0
		for _, p := range all {
			total += len(p)
		}

		var next *string
		if n < len(all) {
			u := fmt.Sprintf("%s/v2/subjects?page=%d", m.server.URL, n+1)
			next = &u
		}

		data := all[n-1]
		if data == nil {
			data = []client.Subject{}
		}

		writeJSON(w, http.StatusOK, client.PageResult{
			Object:     "collection",
			URL:        m.server.URL + r.URL.RequestURI(),
			Pages:      client.Pages{PerPage: 1000, NextURL: next},
			TotalCount: total,
			Data:       data,
		})
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockWaniKani) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockWaniKani) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// defaultHandler answers unknown paths with the API's 404 body.
func (m *MockWaniKani) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not found","code":404}`))
}

// NewSubject builds a subject with the given kind tag, slug and meanings.
func NewSubject(id int, object, slug string, meanings ...string) client.Subject {
	s := client.Subject{
		ID:     id,
		Object: object,
		Data: client.SubjectData{
			Slug:     slug,
			Meanings: make([]client.Meaning, 0, len(meanings)),
		},
	}
	for i, meaning := range meanings {
		s.Data.Meanings = append(s.Data.Meanings, client.Meaning{
			Meaning:        meaning,
			Primary:        i == 0,
			AcceptedAnswer: true,
		})
	}
	return s
}

// NewPageBody renders a single collection page as a JSON string.
func NewPageBody(nextURL *string, subjects ...client.Subject) string {
	if subjects == nil {
		subjects = []client.Subject{}
	}
	b, err := json.Marshal(client.PageResult{
		Object:     "collection",
		Pages:      client.Pages{PerPage: 1000, NextURL: nextURL},
		TotalCount: len(subjects),
		Data:       subjects,
	})
	if err != nil {
		panic(err)
	}
	return string(b)
}

// NewHealthyResponse creates a 200 OK response with rate limit headers.
func NewHealthyResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"RateLimit-Limit":     "60",
			"RateLimit-Remaining": "59",
			"RateLimit-Reset":     "1700000060",
			"Content-Type":        "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"Rate limit exceeded","code":429}`,
		Headers: map[string]string{
			"RateLimit-Limit":     "60",
			"RateLimit-Remaining": "0",
			"Content-Type":        "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a response with the given 5xx status.
func NewServerErrorResponse(status int) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       `{"error":"Service unavailable"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("RateLimit-Limit", "60")
	w.Header().Set("RateLimit-Remaining", "59")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
