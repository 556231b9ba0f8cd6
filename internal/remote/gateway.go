// Package remote talks to the third-party inventory service.
//
// A Gateway evaluates an ordered list of transport paths for each logical
// call and retries whole calls according to a RetryPolicy. The typed Client
// on top maps the service's records.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Request is one logical call to the remote service. Decode, when set, is
// run against each path's body; an error makes that path's answer malformed
// so the gateway moves on to the next path.
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Body     []byte
	Decode   func(json.RawMessage) error
}

// Response is a well-formed success answer.
type Response struct {
	Status int
	Body   json.RawMessage
	Path   string
}

// SendFunc delivers a request over one transport path.
type SendFunc func(ctx context.Context, req *Request) (*Response, error)

// Path is one named transport strategy.
type Path struct {
	Name string
	Send SendFunc
}

// Observer receives per-path outcomes.
type Observer interface {
	ObservePath(path, outcome string)
}

// Gateway tries transport paths in order until one succeeds.
type Gateway struct {
	paths    []Path
	policy   RetryPolicy
	limiter  *rate.Limiter
	observer Observer
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithRetryPolicy sets the policy used by CallWithRetry.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(g *Gateway) {
		if p != nil {
			g.policy = p
		}
	}
}

// WithLimiter paces logical calls.
func WithLimiter(l *rate.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithObserver records path outcomes.
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithSleep replaces the backoff wait, used by tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.sleep = fn
		}
	}
}

// New constructs a Gateway over paths, evaluated in the given order.
func New(paths []Path, opts ...Option) (*Gateway, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	g := &Gateway{
		paths:  append([]Path(nil), paths...),
		policy: DefaultRetryPolicy(),
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Paths returns the configured path names in evaluation order.
func (g *Gateway) Paths() []string {
	names := make([]string, 0, len(g.paths))
	for _, p := range g.paths {
		names = append(names, p.Name)
	}
	return names
}

// Call performs one logical call, falling through the paths in order. The
// first path returning a success whose body is JSON and passes req.Decode
// wins; when every path fails the
// returned *GatewayError carries each failure and unwraps to the last one.
func (g *Gateway) Call(ctx context.Context, req *Request) (*Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	gwErr := &GatewayError{Method: req.Method, Endpoint: req.Endpoint, Tries: 1}
	for _, p := range g.paths {
		resp, err := p.Send(ctx, req)
		if err == nil && resp != nil && !json.Valid(resp.Body) {
			err = &MalformedResponseError{Path: p.Name, Err: errors.New("body is not valid JSON")}
		}
		if err == nil && resp == nil {
			err = &MalformedResponseError{Path: p.Name, Err: errors.New("empty response")}
		}
		if err == nil && req.Decode != nil {
			if decodeErr := req.Decode(resp.Body); decodeErr != nil {
				err = &MalformedResponseError{Path: p.Name, Err: decodeErr}
			}
		}
		if err == nil {
			resp.Path = p.Name
			g.observe(p.Name, "success")
			return resp, nil
		}
		g.observe(p.Name, outcome(err))
		g.logger.Debug("remote path failed",
			slog.String("path", p.Name),
			slog.String("endpoint", req.Endpoint),
			slog.Any("error", err))
		gwErr.Attempts = append(gwErr.Attempts, Attempt{Path: p.Name, Err: err})
		if ctx.Err() != nil {
			break
		}
	}
	return nil, gwErr
}

// CallWithRetry repeats Call while the policy allows it.
func (g *Gateway) CallWithRetry(ctx context.Context, req *Request) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := g.Call(ctx, req)
		if err == nil {
			return resp, nil
		}
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			gwErr.Tries = attempt
		}
		decision := g.policy.Next(attempt, err)
		if !decision.Retry {
			return nil, err
		}
		g.logger.Warn("remote call failed, retrying",
			slog.String("endpoint", req.Endpoint),
			slog.Int("attempt", attempt),
			slog.Duration("after", decision.After),
			slog.Any("error", err))
		if err := g.sleep(ctx, decision.After); err != nil {
			return nil, err
		}
	}
}

func (g *Gateway) observe(path, result string) {
	if g.observer != nil {
		g.observer.ObservePath(path, result)
	}
}

func outcome(err error) string {
	var auth *AuthError
	var transport *TransportError
	var malformed *MalformedResponseError
	var rejected *RemoteValidationError
	switch {
	case errors.As(err, &auth):
		return "auth"
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.As(err, &transport):
		return "transport"
	default:
		return "error"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
