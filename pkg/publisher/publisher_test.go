package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reporoller/reporoller/pkg/config"
	"github.com/reporoller/reporoller/pkg/observer"
	"github.com/reporoller/reporoller/pkg/secret"
)

func testEvent() RepositoryCreatedEvent {
	return NewRepositoryCreatedEvent("acme", "widgets", "private", "https://hub.example/acme/widgets", "main", "", time.Unix(0, 0).UTC())
}

func TestPublish_DeliversToActiveMatchingEndpoint(t *testing.T) {
	var received atomic.Bool
	var signature atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Store(true)
		signature.Store(r.Header.Get("X-RepoRoller-Signature-256"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resolver := secret.NewFakeResolver(map[string]string{"webhook-secret": "s3cr3t"})
	pub := NewPublisher(resolver, observer.NewRecordingObserver())

	endpoints := []config.NotificationEndpoint{
		{URL: server.URL, Active: true, EventFilter: []string{EventTypeRepositoryCreated}, SigningSecretRef: "webhook-secret"},
	}
	outcomes := pub.Publish(context.Background(), endpoints, testEvent())

	if !received.Load() {
		t.Fatal("expected the endpoint to receive a request")
	}
	if sig, _ := signature.Load().(string); sig == "" || sig[:7] != "sha256=" {
		t.Errorf("signature header = %q", sig)
	}
	if len(outcomes) != 1 || !outcomes[0].Success {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}

func TestPublish_SkipsInactiveEndpoint(t *testing.T) {
	var called atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer server.Close()

	pub := NewPublisher(secret.NewFakeResolver(nil), nil)
	outcomes := pub.Publish(context.Background(), []config.NotificationEndpoint{
		{URL: server.URL, Active: false, EventFilter: []string{EventTypeRepositoryCreated}},
	}, testEvent())

	if called.Load() {
		t.Error("inactive endpoint should never be called")
	}
	if outcomes != nil {
		t.Errorf("outcomes = %+v, want nil for no eligible endpoints", outcomes)
	}
}

func TestPublish_SkipsEndpointNotSubscribedToEvent(t *testing.T) {
	var called atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer server.Close()

	pub := NewPublisher(secret.NewFakeResolver(nil), nil)
	pub.Publish(context.Background(), []config.NotificationEndpoint{
		{URL: server.URL, Active: true, EventFilter: []string{"repository.deleted"}},
	}, testEvent())

	if called.Load() {
		t.Error("endpoint not subscribed to repository.created should never be called")
	}
}

func TestPublish_UnresolvableSecretSkipsWithoutCallingEndpoint(t *testing.T) {
	var called atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer server.Close()

	rec := observer.NewRecordingObserver()
	pub := NewPublisher(secret.NewFakeResolver(nil), rec)
	outcomes := pub.Publish(context.Background(), []config.NotificationEndpoint{
		{URL: server.URL, Active: true, EventFilter: []string{EventTypeRepositoryCreated}, SigningSecretRef: "missing"},
	}, testEvent())

	if called.Load() {
		t.Error("endpoint should not be called when its secret cannot be resolved")
	}
	if len(outcomes) != 1 || !outcomes[0].Skipped {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if len(rec.Warns) == 0 {
		t.Error("expected a WARN log for the unresolvable secret")
	}
}

func TestPublish_NonSuccessStatusRecordedAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	pub := NewPublisher(secret.NewFakeResolver(map[string]string{"s": "v"}), nil)
	outcomes := pub.Publish(context.Background(), []config.NotificationEndpoint{
		{URL: server.URL, Active: true, EventFilter: []string{EventTypeRepositoryCreated}, SigningSecretRef: "s"},
	}, testEvent())

	if len(outcomes) != 1 || outcomes[0].Success {
		t.Fatalf("outcomes = %+v, want a failed delivery", outcomes)
	}
	if outcomes[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", outcomes[0].StatusCode)
	}
}

func TestPublish_PayloadSerialisedOnce(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload RepositoryCreatedEvent
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		bodies = append(bodies, []byte(payload.EventID))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resolver := secret.NewFakeResolver(map[string]string{"a": "x", "b": "y"})
	pub := NewPublisher(resolver, nil)
	event := testEvent()
	pub.Publish(context.Background(), []config.NotificationEndpoint{
		{URL: server.URL, Active: true, EventFilter: []string{EventTypeRepositoryCreated}, SigningSecretRef: "a"},
		{URL: server.URL, Active: true, EventFilter: []string{EventTypeRepositoryCreated}, SigningSecretRef: "b"},
	}, event)

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("expected two deliveries, got %d", len(bodies))
	}
	if string(bodies[0]) != event.EventID || string(bodies[1]) != event.EventID {
		t.Error("both endpoints should receive the same event ID from one serialised payload")
	}
}
