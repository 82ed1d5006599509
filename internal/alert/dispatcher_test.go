package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/riskwatch/riskwatch/internal/common/errors"
	"github.com/riskwatch/riskwatch/internal/eventstore"
)

func testAlert() *eventstore.SecurityAlert {
	return &eventstore.SecurityAlert{
		AlertID:            "al-1",
		UserID:             "user1",
		Title:              "Elevated account risk: high",
		Message:            "The account risk score is elevated.",
		Severity:           eventstore.SeverityHigh,
		Category:           eventstore.CategoryAuthentication,
		Timestamp:          time.Now().UTC(),
		ActionRequired:     true,
		RecommendedActions: []string{"enable multi-factor authentication"},
	}
}

func TestWebhookSinkDeliversPayload(t *testing.T) {
	var mu sync.Mutex
	var received map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		received = body
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, 5*time.Second)
	if err := sink.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received["id"] != "al-1" || received["severity"] != "high" {
		t.Errorf("unexpected payload: %+v", received)
	}
}

func TestWebhookSinkReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := sink.Send(ctx, testAlert()); err == nil {
		t.Fatal("expected an error from a failing endpoint")
	}
}

type failingSink struct{}

func (failingSink) Name() string { return "broken" }
func (failingSink) Send(ctx context.Context, al *eventstore.SecurityAlert) error {
	return context.DeadlineExceeded
}

func TestDispatcherIsNonBlockingAndSwallowsFailures(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	slow := NewWebhookSink(server.URL, 5*time.Second)
	d := NewDispatcher([]NotificationSink{failingSink{}, slow}, zap.NewNop())

	start := time.Now()
	d.Send(context.Background(), testAlert())
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Send blocked for %v", elapsed)
	}

	close(release)
	d.Wait()
}

func TestDispatcherClassifiesChannelFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	d := NewDispatcher([]NotificationSink{failingSink{}}, zap.New(core))

	d.Send(context.Background(), testAlert())
	d.Wait()

	entries := logs.FilterMessage("alert delivery failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d failure log entries, want 1", len(entries))
	}
	var logged error
	for _, f := range entries[0].Context {
		if f.Key == "error" {
			logged, _ = f.Interface.(error)
		}
	}
	if !errors.IsErrorCode(logged, errors.ErrDispatch) {
		t.Errorf("logged error not classified as dispatch failure: %v", logged)
	}
}

func TestLogSinkNeverFails(t *testing.T) {
	sink := NewLogSink("push", zap.NewNop())
	if err := sink.Send(context.Background(), testAlert()); err != nil {
		t.Errorf("log sink returned %v", err)
	}
	if sink.Name() != "push" {
		t.Errorf("name = %q", sink.Name())
	}
}
