package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
)

func testMessage() *domain.NeuralMessage {
	return &domain.NeuralMessage{
		AgentID:   "mw-01",
		Directive: "SYNC_MEMORY",
		Payload:   json.RawMessage(`{"key":"value"}`),
		Metadata:  domain.MessageMetadata{CorrelationID: "11111111-1111-4111-8111-111111111111"},
	}
}

func TestForwarderDeliversMessage(t *testing.T) {
	var gotDirective, gotCorrID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDirective = r.Header.Get("X-Janus-Directive")
		gotCorrID = r.Header.Get("X-Janus-Correlation-ID")
		w.Write([]byte(`{"synced":true}`))
	}))
	defer ts.Close()

	f := NewHTTPForwarder(time.Second)
	data, err := f.Call(context.Background(), ts.URL, testMessage())
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if string(data) != `{"synced":true}` {
		t.Fatalf("response = %s", data)
	}
	if gotDirective != "SYNC_MEMORY" || gotCorrID == "" {
		t.Fatalf("headers: directive=%q corr=%q", gotDirective, gotCorrID)
	}
}

func TestForwarderMapsThrottle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	f := NewHTTPForwarder(time.Second)
	_, err := f.Call(context.Background(), ts.URL, testMessage())

	var tErr *ThrottleError
	if !errors.As(err, &tErr) {
		t.Fatalf("err = %v, want ThrottleError", err)
	}
	if tErr.RetryAfter != 7*time.Second {
		t.Fatalf("retry_after = %v", tErr.RetryAfter)
	}
}

func TestForwarderNetworkErrorIsUnreachable(t *testing.T) {
	f := NewHTTPForwarder(200 * time.Millisecond)
	_, err := f.Call(context.Background(), "http://127.0.0.1:1/handle", testMessage())
	if !errors.Is(err, ErrAgentUnreachable) {
		t.Fatalf("err = %v, want ErrAgentUnreachable", err)
	}
}

func TestReliableCallerRetriesIdempotentOnly(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	rc := NewReliableCaller(NewHTTPForwarder(time.Second), time.Second)
	data, err := rc.Forward(context.Background(), ts.URL, testMessage(), true)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("response = %s", data)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestReliableCallerSingleAttemptForNonIdempotent(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	rc := NewReliableCaller(NewHTTPForwarder(time.Second), time.Second)
	if _, err := rc.Forward(context.Background(), ts.URL, testMessage(), false); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1 (no retries for non-idempotent)", n)
	}
}
