package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_RetriesOn500(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(3, time.Millisecond))

	var result map[string]string
	if err := c.get(context.Background(), "/x", nil, &result); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if result["ok"] != "yes" {
		t.Errorf("result = %v", result)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestClient_NoRetryOn404(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(3, time.Millisecond))

	var result any
	err := c.get(context.Background(), "/x", nil, &result)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (404 is not retryable)", got)
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	c := NewClient(server.URL)

	var result map[string]any
	err := c.get(context.Background(), "/x", nil, &result)
	if err == nil {
		t.Fatal("get succeeded on malformed body")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindMalformed {
		t.Errorf("err = %v, want malformed kind", err)
	}
}

func TestClient_NetworkErrorIsUnavailable(t *testing.T) {
	// Closed server: every request fails at the transport level.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewClient(server.URL, WithRetries(0, time.Millisecond))

	var result any
	err := c.get(context.Background(), "/x", nil, &result)
	if err == nil {
		t.Fatal("get succeeded against closed server")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindUnavailable {
		t.Errorf("err = %v, want unavailable kind", err)
	}
}

func TestError_IsRetryable(t *testing.T) {
	tests := []struct {
		err  Error
		want bool
	}{
		{Error{Kind: KindUnavailable, StatusCode: 500}, true},
		{Error{Kind: KindUnavailable, StatusCode: 503}, true},
		{Error{Kind: KindUnavailable, StatusCode: 429}, true},
		{Error{Kind: KindUnavailable, StatusCode: 400}, false},
		{Error{Kind: KindNotFound, StatusCode: 404}, false},
		{Error{Kind: KindMalformed}, false},
	}

	for _, tt := range tests {
		if got := tt.err.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(%+v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
