package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatusEndpoint(t *testing.T) {
	s := NewServer(":0", func() Status {
		return Status{
			LoggedIn:      true,
			PostsToday:    3,
			CommentsToday: 1,
		}
	})

	for _, path := range []string{"/", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s returned %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s content type %q", path, ct)
		}

		var got Status
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("GET %s bad body: %v", path, err)
		}
		if got.Status != "ok" {
			t.Errorf("status %q, want ok", got.Status)
		}
		if !got.LoggedIn || got.PostsToday != 3 || got.CommentsToday != 1 {
			t.Errorf("snapshot not passed through: %+v", got)
		}
		if got.Uptime == "" {
			t.Error("uptime missing")
		}
	}
}

func TestStatusEndpoint_NilProvider(t *testing.T) {
	s := NewServer(":0", nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with nil provider, got %d", rec.Code)
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
