package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv}
	t.Cleanup(s.Close)
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

var fastRetry = Retry{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond}

func chatReq() GenerateRequest {
	return GenerateRequest{Model: "test-model", Messages: []Message{{Role: RoleUser, Content: "hi"}}, MaxTokens: 1}
}

// statusSequence answers /chat/completions with the given statuses in order;
// the last status repeats.
func statusSequence(t *testing.T, statuses []int, retryAfter string, calls *int32) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(calls, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		st := statuses[i]
		if st == http.StatusTooManyRequests && retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.WriteHeader(st)
		if st >= 200 && st < 300 {
			_ = json.NewEncoder(w).Encode(GenerateResponse{ID: "gen-1", Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: " ok "}}}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "try later"}})
	}))
}

func TestGenerateRetriesOn429And5xx(t *testing.T) {
	var calls int32
	srv := statusSequence(t, []int{429, 503, 200}, "0", &calls)
	c := NewClient("test", 2*time.Second, fastRetry).WithBaseURL(srv.URL)

	resp, err := c.Generate(context.Background(), chatReq())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	text, err := resp.Text()
	if err != nil || text != "ok" {
		t.Fatalf("unexpected text %q (%v)", text, err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryAfterHonored(t *testing.T) {
	var calls int32
	srv := statusSequence(t, []int{429, 200}, "1", &calls)
	c := NewClient("test", 5*time.Second, fastRetry).WithBaseURL(srv.URL)

	start := time.Now()
	if _, err := c.Generate(context.Background(), chatReq()); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected at least ~1s delay due to Retry-After, got %v", elapsed)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	var calls int32
	srv := statusSequence(t, []int{429}, "5", &calls)
	c := NewClient("test", 5*time.Second, fastRetry).WithBaseURL(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, chatReq())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusUnauthorized, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{http.StatusBadRequest, func(err error) bool { var e *BadRequestError; return errors.As(err, &e) }},
		{http.StatusServiceUnavailable, func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
	}
	for _, tc := range cases {
		var calls int32
		srv := statusSequence(t, []int{tc.status}, "", &calls)
		c := NewClient("test", 2*time.Second, fastRetry).WithBaseURL(srv.URL)
		_, err := c.Generate(context.Background(), chatReq())
		if !tc.check(err) {
			t.Fatalf("status %d: unexpected error type %T: %v", tc.status, err, err)
		}
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))
	c := NewClient("test", 2*time.Second, Retry{MaxAttempts: 1}).WithBaseURL(srv.URL)
	_, err := c.Generate(context.Background(), chatReq())
	if err == nil || !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
}

func TestGenerateRequiresKey(t *testing.T) {
	_, err := NewClient("", 0, Retry{}).Generate(context.Background(), chatReq())
	var mk *MissingKeyError
	if !errors.As(err, &mk) || mk.Env != "OPENROUTER_API_KEY" {
		t.Fatalf("expected missing key error, got %v", err)
	}
}
