package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-interio/internal/events"
	"github.com/noah-isme/backend-interio/internal/obs"
	"github.com/noah-isme/backend-interio/internal/resilience"
)

// Dispatcher forwards domain events to subscribed webhook endpoints. It
// implements events.Notifier. Deliveries retry with exponential backoff up to
// MaxAttempts behind a per-endpoint circuit breaker; a delivery that exhausts
// its attempts is logged and dropped.
type Dispatcher struct {
	Registry    *Registry
	Client      *http.Client
	MaxAttempts int
	BackoffBase time.Duration
	// Async detaches deliveries from the emitting request. Tests leave it
	// off so deliveries complete before Notify returns.
	Async  bool
	Logger zerolog.Logger

	mu       sync.Mutex
	breakers map[uuid.UUID]*resilience.Breaker
}

// Notify fans the event out to every endpoint subscribed to its topic.
func (d *Dispatcher) Notify(ctx context.Context, event events.Event) error {
	if d == nil || d.Registry == nil {
		return nil
	}
	endpoints := d.Registry.ForTopic(event.Topic)
	if len(endpoints) == 0 {
		return nil
	}
	if d.Async {
		for _, ep := range endpoints {
			go d.deliverWithRetry(context.WithoutCancel(ctx), ep, event)
		}
		return nil
	}
	var joined error
	for _, ep := range endpoints {
		if err := d.deliverWithRetry(ctx, ep, event); err != nil {
			joined = errors.Join(joined, err)
		}
	}
	return joined
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, ep Endpoint, event events.Event) error {
	status, err := d.deliver(ctx, ep, event)
	if err == nil && status >= 200 && status < 300 {
		if obs.WebhookDeliveriesTotal != nil {
			obs.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		}
		return nil
	}
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
	}
	failure := fmt.Errorf("deliver to %s: status=%d err=%w", ep.URL, status, errOrPlaceholder(err))
	d.Logger.Warn().
		Err(failure).
		Str("endpoint_id", ep.ID.String()).
		Str("topic", event.Topic).
		Msg("webhook delivery exhausted retries")
	return failure
}

func (d *Dispatcher) deliver(ctx context.Context, ep Endpoint, event events.Event) (int, error) {
	if d.Client == nil {
		d.Client = HTTPClient(5 * time.Second)
	}
	ctx, span := otel.Tracer("notify.Dispatcher").Start(ctx, "Dispatcher.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.endpoint_id", ep.ID.String()),
		attribute.String("webhook.topic", event.Topic),
	)
	if err := validateURL(ep.URL); err != nil {
		span.RecordError(err)
		return 0, err
	}
	body, err := marshalEnvelope(event)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "interio-api-webhooks/1.0")
	req.Header.Set("X-Event-ID", event.ID.String())
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(ep.Secret, ts, event.ID.String(), body))

	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	base := d.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	client := resilience.HTTPClient{
		Client:      d.Client,
		Breaker:     d.breakerFor(ep),
		BaseBackoff: base,
		MaxAttempts: maxAttempts,
		Jitter:      0.2,
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, nil
}

func (d *Dispatcher) breakerFor(ep Endpoint) *resilience.Breaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.breakers == nil {
		d.breakers = make(map[uuid.UUID]*resilience.Breaker)
	}
	b, ok := d.breakers[ep.ID]
	if !ok {
		b = resilience.NewBreaker(10, 0.8, 30*time.Second).
			WithTarget("webhook:" + ep.URL).
			WithLogger(d.Logger)
		d.breakers[ep.ID] = b
	}
	return b
}

func marshalEnvelope(event events.Event) ([]byte, error) {
	envelope := struct {
		EventID     string          `json:"eventId"`
		Topic       string          `json:"topic"`
		AggregateID string          `json:"aggregateId"`
		Data        json.RawMessage `json:"data"`
		OccurredAt  time.Time       `json:"occurredAt"`
	}{
		EventID:     event.ID.String(),
		Topic:       event.Topic,
		AggregateID: event.AggregateID.String(),
		Data:        event.Payload,
		OccurredAt:  event.OccurredAt,
	}
	return json.Marshal(envelope)
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the endpoint
// secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client instrumented for webhook delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func errOrPlaceholder(err error) error {
	if err != nil {
		return err
	}
	return errors.New("non-2xx response")
}
