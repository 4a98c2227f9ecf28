// Package gateway talks to the remote party REST API. Every response body is
// a JSON envelope of the form {"data": ...}; the client unwraps it and returns
// the payload.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukerupert/partyplanner/internal/model"
)

const tracerName = "github.com/dukerupert/partyplanner/internal/gateway"

// Config holds the remote API location.
type Config struct {
	BaseURL string // e.g. https://fsa-crud-2aa9294fe819.herokuapp.com/api
	Cohort  string
	Timeout time.Duration
}

// Client issues requests against {BaseURL}/{Cohort}.
type Client struct {
	apiURL     string
	httpClient *http.Client
	tracer     trace.Tracer
}

type clientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) clientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a gateway client for the given configuration.
func NewClient(cfg Config, opts ...clientOption) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		apiURL:     strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(cfg.Cohort, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIURL returns the collection root every path is resolved against.
func (c *Client) APIURL() string {
	return c.apiURL
}

const maxResponseBytes = 1 << 20

type envelope[T any] struct {
	Data  T               `json:"data"`
	Error json.RawMessage `json:"error"`
}

func (c *Client) FetchAllParties(ctx context.Context) ([]model.Party, error) {
	return do[[]model.Party](ctx, c, http.MethodGet, "/events", nil)
}

// FetchParty returns nil without error when the server answers with null data.
func (c *Client) FetchParty(ctx context.Context, id int64) (*model.Party, error) {
	return do[*model.Party](ctx, c, http.MethodGet, eventPath(id), nil)
}

func (c *Client) FetchAllRsvps(ctx context.Context) ([]model.RSVP, error) {
	return do[[]model.RSVP](ctx, c, http.MethodGet, "/rsvps", nil)
}

func (c *Client) FetchAllGuests(ctx context.Context) ([]model.Guest, error) {
	return do[[]model.Guest](ctx, c, http.MethodGet, "/guests", nil)
}

// CreateParty posts a new event. The returned party is whatever the server
// echoed back; it is the zero value when the response carries no data.
func (c *Client) CreateParty(ctx context.Context, p model.NewParty) (model.Party, error) {
	return do[model.Party](ctx, c, http.MethodPost, "/events", p)
}

func (c *Client) DeleteParty(ctx context.Context, id int64) error {
	_, err := do[json.RawMessage](ctx, c, http.MethodDelete, eventPath(id), nil)
	return err
}

func eventPath(id int64) string {
	return "/events/" + strconv.FormatInt(id, 10)
}

func do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var zero T

	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)

	fail := func(err error) (T, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fail(fmt.Errorf("marshal request: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reqBody)
	if err != nil {
		return fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fail(fmt.Errorf("%s %s: read body: %w", method, path, err))
	}
	if len(raw) > maxResponseBytes {
		return fail(fmt.Errorf("%s %s: response exceeds %d bytes", method, path, maxResponseBytes))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope[json.RawMessage]
		_ = json.Unmarshal(raw, &env)
		return fail(&StatusError{
			Method:  method,
			Path:    path,
			Code:    resp.StatusCode,
			Message: errorMessage(env.Error),
		})
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return zero, nil
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fail(fmt.Errorf("%s %s: response is not JSON: %w", method, path, err))
		}
		return fail(fmt.Errorf("%s %s: decode response: %w", method, path, err))
	}
	return env.Data, nil
}
