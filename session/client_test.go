package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Provider != "anthropic" {
			t.Errorf("unexpected provider %q", req.Provider)
		}
		json.NewEncoder(w).Encode(Session{
			Success:    true,
			SessionID:  "sess-1",
			SessionURL: "https://view.example/sess-1",
			ConnectURL: "wss://connect.example/sess-1",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	sess, err := client.Create(context.Background(), CreateRequest{Provider: "anthropic", Goal: "book a flight"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if sess.SessionID != "sess-1" || sess.ConnectURL == "" {
		t.Fatalf("unexpected session %#v", sess)
	}
}

func TestClientCreate_Refused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Session{Success: false, Message: "no capacity"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	_, err = client.Create(context.Background(), CreateRequest{Provider: "openai"})
	if err == nil || !strings.Contains(err.Error(), "no capacity") {
		t.Fatalf("expected refusal error, got %v", err)
	}
}

func TestClientCreate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.Create(context.Background(), CreateRequest{Provider: "gemini"}); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestClientRelease(t *testing.T) {
	var released atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == "/v1/sessions/sess-1" {
			released.Store(true)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if err := client.Release(context.Background(), "sess-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !released.Load() {
		t.Fatalf("release never reached the server")
	}
	// Releasing an unknown session is not an error.
	if err := client.Release(context.Background(), "gone"); err != nil {
		t.Fatalf("release of missing session must succeed: %v", err)
	}
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}

func TestCacheCollapsesConcurrentCreates(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	cache := NewCache()
	create := func(ctx context.Context) (Session, error) {
		calls.Add(1)
		<-release
		return Session{Success: true, SessionID: "shared"}, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]Session, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Acquire(context.Background(), "run-1", create)
		}(i)
	}

	// Let all goroutines pile onto the single in-flight entry.
	deadline := time.Now().Add(2 * time.Second)
	for cache.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one upstream create, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil || results[i].SessionID != "shared" {
			t.Fatalf("waiter %d got %#v, %v", i, results[i], errs[i])
		}
	}
	if cache.Pending() != 0 {
		t.Fatalf("entry must be cleared after settling")
	}
}

func TestCacheRetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache()

	_, err := cache.Acquire(context.Background(), "run-1", func(ctx context.Context) (Session, error) {
		calls.Add(1)
		return Session{}, context.DeadlineExceeded
	})
	if err == nil {
		t.Fatalf("expected first create to fail")
	}

	sess, err := cache.Acquire(context.Background(), "run-1", func(ctx context.Context) (Session, error) {
		calls.Add(1)
		return Session{Success: true, SessionID: "second"}, nil
	})
	if err != nil || sess.SessionID != "second" {
		t.Fatalf("retry after failure must provision fresh: %#v, %v", sess, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected two creates, got %d", calls.Load())
	}
}

func TestCacheWaiterHonorsContext(t *testing.T) {
	cache := NewCache()
	block := make(chan struct{})
	defer close(block)

	go cache.Acquire(context.Background(), "run-1", func(ctx context.Context) (Session, error) {
		<-block
		return Session{Success: true, SessionID: "slow"}, nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for cache.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cache.Acquire(ctx, "run-1", nil); err != context.Canceled {
		t.Fatalf("cancelled waiter must return ctx error, got %v", err)
	}
}

func TestLiveViewURL(t *testing.T) {
	var viewer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wrapper":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><body><div><iframe src="` + viewer + `"></iframe></div></body></html>`))
		case "/plain":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><body>no frame here</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	viewer = srv.URL + "/viewer"

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	got, err := client.LiveViewURL(context.Background(), srv.URL+"/wrapper")
	if err != nil {
		t.Fatalf("live view failed: %v", err)
	}
	if got != viewer {
		t.Fatalf("expected iframe src %q, got %q", viewer, got)
	}

	// A page without an iframe falls back to the page URL itself.
	got, err = client.LiveViewURL(context.Background(), srv.URL+"/plain")
	if err != nil {
		t.Fatalf("live view fallback failed: %v", err)
	}
	if got != srv.URL+"/plain" {
		t.Fatalf("expected fallback to page URL, got %q", got)
	}
}
