// Package jsonstore implements the client of the remote JSON document store.
// Each resource lives behind GET/PUT endpoints; for resources whose endpoint
// name and body layout changed over time the client probes the known aliases
// and shapes and remembers the first one the server accepts.
package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/pkg/circuitbreaker"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the store client.
type ClientConfig struct {
	// BaseURL is the store origin, e.g. http://localhost:5174
	BaseURL string

	// Timeout is the per-request timeout
	Timeout time.Duration

	// CircuitBreaker settings; Name is filled in when empty
	CircuitBreaker circuitbreaker.Config

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client

	// Logger for structured logging
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:        baseURL,
		Timeout:        10 * time.Second,
		CircuitBreaker: circuitbreaker.DefaultConfig("jsonstore"),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// resolved is the remembered endpoint and body shape of a resource.
type resolved struct {
	alias int
	shape int
}

// Client talks to the remote document store. It is safe for concurrent use.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger

	mu       sync.Mutex
	resolved map[document.Name]resolved
}

// NewClient creates a store client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.CircuitBreaker.Name == "" {
		config.CircuitBreaker.Name = "jsonstore"
	}
	config.CircuitBreaker.IsFailure = isTransient
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	log := config.Logger.With(logger.Component("jsonstore"))
	cbConfig := config.CircuitBreaker
	cbConfig.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		breaker:    circuitbreaker.New(cbConfig),
		log:        log,
		resolved:   make(map[document.Name]resolved),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Load fetches one resource and returns its canonical document
// (document.SemestersDocument, document.SubjectsDocument, ...). Responses in
// any accepted shape are normalized.
func (c *Client) Load(ctx context.Context, name document.Name) (any, error) {
	r, err := routeFor(name)
	if err != nil {
		return nil, err
	}

	for i, alias := range c.aliasOrder(name, r) {
		body, err := c.doRequest(ctx, http.MethodGet, alias.path, nil)
		if err != nil {
			if endpointAbsent(err) {
				c.log.Debug("endpoint absent, trying next alias",
					logger.Resource(string(name)), logger.String("path", alias.path))
				continue
			}
			return nil, err
		}

		doc, err := document.Parse(name, r.canonicalize(body))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		if i > 0 {
			c.remember(name, resolved{alias: alias.index})
		}
		return doc, nil
	}
	return nil, fmt.Errorf("load %s: %w", name, ErrEndpointUnsupported)
}

// Save replaces one resource with doc, its canonical document. The first
// alias/shape pair the server accepts is remembered for later saves.
func (c *Client) Save(ctx context.Context, name document.Name, doc any) error {
	r, err := routeFor(name)
	if err != nil {
		return err
	}
	bodies, err := r.bodies(doc)
	if err != nil {
		return err
	}

	c.mu.Lock()
	known, isKnown := c.resolved[name]
	c.mu.Unlock()

	if isKnown && known.shape < len(bodies) {
		_, err := c.doRequest(ctx, http.MethodPut, r.aliases[known.alias], bodies[known.shape])
		if err == nil {
			return nil
		}
		if !endpointAbsent(err) && !shapeRejected(err) {
			return err
		}
		c.forget(name)
	}

	var rejected error
	for _, alias := range c.aliasOrder(name, r) {
		for si, body := range bodies {
			_, err := c.doRequest(ctx, http.MethodPut, alias.path, body)
			if err == nil {
				c.remember(name, resolved{alias: alias.index, shape: si})
				if alias.index > 0 || si > 0 {
					c.log.Info("resolved legacy endpoint",
						logger.Resource(string(name)),
						logger.String("path", alias.path),
						logger.String("shape", r.shapes[si].name),
					)
				}
				return nil
			}
			if endpointAbsent(err) {
				break
			}
			if shapeRejected(err) {
				rejected = err
				continue
			}
			return err
		}
		if rejected != nil {
			return fmt.Errorf("save %s: %w: %w", name, ErrPayloadRejected, rejected)
		}
	}
	return fmt.Errorf("save %s: %w", name, ErrEndpointUnsupported)
}

type aliasRef struct {
	index int
	path  string
}

// aliasOrder returns the aliases with the remembered one first.
func (c *Client) aliasOrder(name document.Name, r route) []aliasRef {
	c.mu.Lock()
	known, ok := c.resolved[name]
	c.mu.Unlock()

	out := make([]aliasRef, 0, len(r.aliases))
	if ok && known.alias < len(r.aliases) {
		out = append(out, aliasRef{index: known.alias, path: r.aliases[known.alias]})
	}
	for i, p := range r.aliases {
		if ok && i == known.alias {
			continue
		}
		out = append(out, aliasRef{index: i, path: p})
	}
	return out
}

func (c *Client) remember(name document.Name, r resolved) {
	c.mu.Lock()
	c.resolved[name] = r
	c.mu.Unlock()
}

func (c *Client) forget(name document.Name) {
	c.mu.Lock()
	delete(c.resolved, name)
	c.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs one HTTP request through the circuit breaker. Saves are
// not retried here; a failed save stays dirty until the next mutation.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var resp []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.doSingleRequest(ctx, method, path, body)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, err
}

// doSingleRequest performs a single HTTP request and returns the body of a
// 2xx response.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug("store request",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Latency(time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			se.Message = payload.Error
		}
		return nil, se
	}
	return respBody, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus reports the client's resilience state.
type ClientStatus struct {
	CircuitBreaker string            `json:"circuitBreaker"`
	Resolved       map[string]string `json:"resolved"`
}

// Status returns the breaker state and the remembered endpoints.
func (c *Client) Status() ClientStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := ClientStatus{
		CircuitBreaker: c.breaker.State().String(),
		Resolved:       make(map[string]string, len(c.resolved)),
	}
	for name, res := range c.resolved {
		r := routes[name]
		st.Resolved[string(name)] = r.aliases[res.alias] + " (" + r.shapes[res.shape].name + ")"
	}
	return st
}

// Reset closes the breaker and forgets every resolved endpoint.
func (c *Client) Reset() {
	c.breaker.Reset()
	c.mu.Lock()
	c.resolved = make(map[document.Name]resolved)
	c.mu.Unlock()
}

// IsUnsupported reports whether err means the resource cannot be synced.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrEndpointUnsupported)
}
