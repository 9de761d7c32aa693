package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("client")

const serviceName = "dealer-backend"

// ErrorRecorder receives one call per failed backend request.
type ErrorRecorder interface {
	IncrExternalError(service string)
}

// Backend talks to the dealer REST backend. Every call goes through the
// bulkhead and the circuit breaker. Idempotent methods (GET, PUT) also go
// through RetryWithBackoff, which retries transport errors and 5xx responses;
// POSTs such as order creation and approval actions are sent exactly once.
type Backend struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	metrics    ErrorRecorder
}

// NewBackend creates a Backend. metrics may be nil.
func NewBackend(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics ErrorRecorder) *Backend {
	return &Backend{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
		metrics:    metrics,
	}
}

type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	out      any
	resource string
	id       string
}

func (c *Backend) do(ctx context.Context, rq call) error {
	ctx, span := tracer.Start(ctx, "Backend."+rq.op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", rq.method),
		attribute.String("backend.path", rq.path),
	)

	var payload []byte
	if rq.body != nil {
		var err error
		payload, err = json.Marshal(rq.body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", rq.op, err)
		}
	}

	target := c.baseURL + rq.path
	if len(rq.query) > 0 {
		target += "?" + rq.query.Encode()
	}

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrTimeout{Operation: rq.op}
	}
	defer c.bulkhead.Release()

	attempt := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, rq.method, target, reader)
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return decodeBody(resp.Body, rq.out)
		}
		return statusError(resp, rq.resource, rq.id)
	}

	retry := idempotent(rq.method)
	span.SetAttributes(attribute.Bool("backend.retryable", retry))
	_, err := c.cb.Execute(func() (any, error) {
		if !retry {
			return nil, attempt()
		}
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, attempt)
	})
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return c.translate(ctx, rq.op, err)
}

// idempotent reports whether repeating a request cannot change the outcome.
// A POST the backend already committed must not be resent after a 5xx.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func (c *Backend) translate(ctx context.Context, op string, err error) error {
	err = resilience.Unwrap(err)

	var (
		notFound     *domain.ErrNotFound
		conflict     *domain.ErrConflict
		validation   *domain.ErrValidation
		unauthorized *domain.ErrUnauthorized
		forbidden    *domain.ErrForbidden
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &conflict), errors.As(err, &validation),
		errors.As(err, &unauthorized), errors.As(err, &forbidden):
		return err
	}

	c.recordError()
	switch {
	case resilience.IsOpen(err):
		return &domain.ErrCircuitOpen{Service: serviceName}
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return &domain.ErrTimeout{Operation: op}
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

func (c *Backend) recordError() {
	if c.metrics != nil {
		c.metrics.IncrExternalError(serviceName)
	}
}

func decodeBody(body io.Reader, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode backend response: %w", err))
	}
	return nil
}

// statusError maps a non-2xx response. 5xx stays retryable; everything else is permanent.
func statusError(resp *http.Response, resource, id string) error {
	msg := readMessage(resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, msg)
	}

	var err error
	switch resp.StatusCode {
	case http.StatusNotFound:
		err = &domain.ErrNotFound{Resource: resource, ID: id}
	case http.StatusConflict:
		err = &domain.ErrConflict{Message: msg}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		err = &domain.ErrValidation{Field: resource, Message: msg}
	case http.StatusUnauthorized:
		err = &domain.ErrUnauthorized{Message: msg}
	case http.StatusForbidden:
		err = &domain.ErrForbidden{Action: msg}
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, msg)
	default:
		err = fmt.Errorf("backend returned status %d: %s", resp.StatusCode, msg)
	}
	return resilience.Permanent(err)
}

func readMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

func idString(id int64) string {
	return fmt.Sprintf("%d", id)
}

func userQuery(userID int64) url.Values {
	return url.Values{"userId": []string{idString(userID)}}
}
