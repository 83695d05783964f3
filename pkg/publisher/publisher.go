// Package publisher implements the EventPublisher (spec §4.6): assembling
// the applicable notification endpoints, signing one serialised event
// payload per endpoint's secret, and delivering it fire-and-forget.
package publisher

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/reporoller/reporoller/pkg/config"
	"github.com/reporoller/reporoller/pkg/constants"
	"github.com/reporoller/reporoller/pkg/httputil"
	"github.com/reporoller/reporoller/pkg/observer"
	"github.com/reporoller/reporoller/pkg/ratelimit"
	"github.com/reporoller/reporoller/pkg/secret"
)

// maxConcurrentDeliveries bounds the per-endpoint worker pool, grounded on
// the same pool.NewWithResults(...).WithMaxGoroutines(...) pattern used by
// the builder.
const maxConcurrentDeliveries = 8

// DeliveryOutcome is recorded per endpoint (spec §4.6 "Record the outcome
// (status code, elapsed ms, success flag)").
type DeliveryOutcome struct {
	URL        string
	Skipped    bool
	SkipReason string
	StatusCode int
	ElapsedMS  int64
	Success    bool
	Err        error
}

// Publisher is the EventPublisher.
type Publisher struct {
	client   *httputil.Client
	resolver secret.Resolver
	observer observer.Observer
}

// NewPublisher builds a Publisher. obs defaults to observer.NoopObserver{} if nil.
func NewPublisher(resolver secret.Resolver, obs observer.Observer) *Publisher {
	if obs == nil {
		obs = observer.NoopObserver{}
	}
	return &Publisher{
		client:   httputil.NewClient(&httputil.ClientOptions{UserAgent: "reporoller-publisher"}),
		resolver: resolver,
		observer: obs,
	}
}

// Publish filters endpoints to the ones eligible for event, serialises the
// payload once, and delivers it to each endpoint concurrently. It is
// fire-and-forget: delivery failures are recorded, never returned as a
// package-level error, and the caller is expected to invoke Publish from a
// detached goroutine (spec §4.6 "Runs as a detached background task; the
// creator's reply is never delayed by its progress").
func (p *Publisher) Publish(ctx context.Context, endpoints []config.NotificationEndpoint, event RepositoryCreatedEvent) []DeliveryOutcome {
	eligible := filterEndpoints(endpoints, event.EventType)
	if len(eligible) == 0 {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.observer.Error("publisher", fmt.Sprintf("failed to serialise event %s: %v", event.EventID, err))
		outcomes := make([]DeliveryOutcome, len(eligible))
		for i, e := range eligible {
			outcomes[i] = DeliveryOutcome{URL: e.URL, Skipped: true, SkipReason: "payload serialisation failed"}
		}
		return outcomes
	}

	results := pool.NewWithResults[DeliveryOutcome]().WithMaxGoroutines(maxConcurrentDeliveries)
	for _, endpoint := range eligible {
		endpoint := endpoint
		results.Go(func() DeliveryOutcome {
			return p.deliver(ctx, endpoint, body)
		})
	}
	outcomes := results.Wait()

	for _, o := range outcomes {
		if o.Skipped {
			p.observer.Warn("publisher", fmt.Sprintf("skipped delivery to %s: %s", o.URL, o.SkipReason))
		} else if !o.Success {
			p.observer.Warn("publisher", fmt.Sprintf("delivery to %s failed: %v", o.URL, o.Err))
		} else {
			p.observer.Info("publisher", fmt.Sprintf("delivered to %s in %dms", o.URL, o.ElapsedMS))
		}
		p.recordMetric(o)
	}
	return outcomes
}

// filterEndpoints drops inactive endpoints and ones whose filter excludes
// eventType (spec §4.6 "Filtering").
func filterEndpoints(endpoints []config.NotificationEndpoint, eventType string) []config.NotificationEndpoint {
	var eligible []config.NotificationEndpoint
	for _, e := range endpoints {
		if !e.Active {
			continue
		}
		if !e.AcceptsEvent(eventType) {
			continue
		}
		eligible = append(eligible, e)
	}
	return eligible
}

// deliver runs the five-step per-endpoint protocol of spec §4.6.
func (p *Publisher) deliver(ctx context.Context, endpoint config.NotificationEndpoint, body []byte) DeliveryOutcome {
	secretValue, err := p.resolveSecret(ctx, endpoint)
	if err != nil {
		return DeliveryOutcome{URL: endpoint.URL, Skipped: true, SkipReason: "secret resolution failed"}
	}

	signature := signHMACSHA256(secretValue, body)
	timeout := endpointTimeout(endpoint)
	client := p.client.WithTimeout(timeout)

	deliverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var outcome DeliveryOutcome
	outcome.URL = endpoint.URL

	// Fire-and-forget (§4.6): honour the webhook-delivery rate limit by
	// waiting for a token, but never retry the delivery itself — a single
	// attempt only, so a throttled or erroring endpoint is never POSTed to
	// twice for one creation event.
	if err = ratelimit.Wait(deliverCtx, ratelimit.OperationWebhookDelivery); err != nil {
		outcome.Err = err
		return outcome
	}

	start := time.Now()
	err = func() error {
		resp, postErr := client.PostJSON(deliverCtx, endpoint.URL, body, map[string]string{
			constants.SignatureHeader: "sha256=" + signature,
		})
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		outcome.StatusCode = resp.StatusCode
		if resp.StatusCode >= 400 {
			return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
		}
		return nil
	}()

	outcome.ElapsedMS = time.Since(start).Milliseconds()
	if err != nil {
		outcome.Err = err
		outcome.Success = false
		return outcome
	}
	outcome.Success = true
	return outcome
}

// resolveSecret resolves the endpoint's signing secret, logging WARN with
// a sanitised message on failure (spec §4.6 step 1).
func (p *Publisher) resolveSecret(ctx context.Context, endpoint config.NotificationEndpoint) (string, error) {
	value, err := p.resolver.Resolve(ctx, endpoint.SigningSecretRef)
	if err != nil {
		p.observer.Warn("publisher", fmt.Sprintf("resolving signing secret for %s failed: %v", endpoint.URL, err))
		return "", err
	}
	return value, nil
}

func signHMACSHA256(secretValue string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secretValue))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// endpointTimeout clamps the endpoint's configured timeout to
// [MinWebhookTimeoutSeconds, MaxWebhookTimeoutSeconds], defaulting to
// DefaultWebhookTimeoutSeconds when unset (spec §4.6 "default 5 s, max 30 s").
func endpointTimeout(endpoint config.NotificationEndpoint) time.Duration {
	seconds := endpoint.TimeoutSeconds
	if seconds == 0 {
		seconds = constants.DefaultWebhookTimeoutSeconds
	}
	if seconds < constants.MinWebhookTimeoutSeconds {
		seconds = constants.MinWebhookTimeoutSeconds
	}
	if seconds > constants.MaxWebhookTimeoutSeconds {
		seconds = constants.MaxWebhookTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (p *Publisher) recordMetric(o DeliveryOutcome) {
	m := p.observer.Metrics()
	if m == nil {
		return
	}
	result := "success"
	if !o.Success {
		result = "failure"
	}
	m.RecordWebhookDelivery(result, float64(o.ElapsedMS)/1000.0)
}
