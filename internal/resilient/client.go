// Package resilient guards outbound requests with pacing, burst-window
// throttling and a retry loop driven by Signal values.
//
// A Client is single flight: Execute and Call serialize on an internal mutex
// so one Client produces one conservative request stream. Reconfiguration
// and Status are safe to call concurrently with an in-flight request; the new
// policy applies from the next attempt.
package resilient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
)

var tracer = otel.Tracer("github.com/jamesprial/go-reddit-collector/internal/resilient")

// Profile selects the request identity a thunk should use.
type Profile int

const (
	// ProfileDefault is the ordinary request profile.
	ProfileDefault Profile = iota
	// ProfileAlternate is used once after a 403 on the first attempt.
	ProfileAlternate
)

func (p Profile) String() string {
	if p == ProfileAlternate {
		return "alternate"
	}
	return "default"
}

// Thunk performs one network attempt.
type Thunk[T any] func(ctx context.Context, profile Profile) (T, error)

// Options configures a Client. A zero Policy means DefaultPolicy, a nil Clock
// means wall-clock time and a nil Rand means math/rand. Rand must return a
// uniform value in [0, 1).
type Options struct {
	Policy   Policy
	Clock    Clock
	Rand     func() float64
	Observer Observer
	Logger   *slog.Logger
}

// Client executes thunks under a Policy.
type Client struct {
	clock    Clock
	rand     func() float64
	observer Observer
	logger   *slog.Logger

	flight sync.Mutex

	mu             sync.Mutex
	policy         Policy
	stealth        bool
	history        []time.Time
	lastRequest    time.Time
	forceWaitUntil time.Time
	totalRequests  int
	totalRetries   int
	started        time.Time
}

// New returns a Client with the given options.
func New(opts Options) *Client {
	c := &Client{
		clock:    opts.Clock,
		rand:     opts.Rand,
		observer: opts.Observer,
		logger:   opts.Logger,
		policy:   opts.Policy.withDefaults(),
	}
	if opts.Policy == (Policy{}) {
		c.policy = DefaultPolicy()
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	if c.rand == nil {
		c.rand = rand.Float64
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.started = c.clock.Now()
	return c
}

// Execute runs thunk under the retry policy and validates the raw payload
// shape. A nil payload with a nil error means "no result": the resource does
// not exist, access was refused, or the server kept returning payloads that
// do not look like Reddit responses.
func (c *Client) Execute(ctx context.Context, thunk Thunk[json.RawMessage]) (json.RawMessage, error) {
	raw, ok, err := Call(ctx, c, thunk, ValidPayload)
	if err != nil || !ok {
		return nil, err
	}
	return raw, nil
}

// Call runs fn under the retry policy. valid may be nil. ok is false when the
// call ended without a result and without a fatal error.
func Call[T any](ctx context.Context, c *Client, fn Thunk[T], valid func(T) bool) (T, bool, error) {
	c.flight.Lock()
	defer c.flight.Unlock()

	ctx, span := tracer.Start(ctx, "resilient.Call")
	defer span.End()

	var zero T
	var (
		lastErr       error
		lastKind      Kind
		lastRateDelay time.Duration
		attempts      int
	)

	maxRetries := c.Policy().MaxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.throttle(ctx, attempt); err != nil {
			return zero, false, err
		}

		attempts++
		c.emit(Event{Kind: EventAttempt, Attempt: attempt})
		out, callErr := fn(ctx, ProfileDefault)
		c.recordRequest()

		sig := classify(ctx, out, callErr, valid)
		if sig == nil {
			c.emit(Event{Kind: EventSuccess, Attempt: attempt})
			span.SetAttributes(attribute.Int("attempts", attempts))
			return out, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, false, ctxErr
		}

		span.AddEvent("attempt failed", traceAttrs(attempt, sig))
		lastErr, lastKind = sig.cause(), sig.Kind

		switch sig.Kind {
		case NotFound:
			c.emit(Event{Kind: EventNoResult, Attempt: attempt, Signal: sig})
			return zero, false, nil

		case Forbidden:
			if attempt == 0 {
				return alternate(ctx, c, fn, valid, sig)
			}
			c.emit(Event{Kind: EventNoResult, Attempt: attempt, Signal: sig})
			return zero, false, nil

		case Fatal:
			c.emit(Event{Kind: EventFatal, Attempt: attempt, Signal: sig})
			span.RecordError(lastErr)
			span.SetStatus(codes.Error, lastErr.Error())
			return zero, false, lastErr
		}

		if attempt == maxRetries {
			break
		}

		var delay time.Duration
		if sig.Kind == RateLimited {
			delay = c.rateLimitDelay(attempt, sig)
			if delay < lastRateDelay {
				delay = lastRateDelay
			}
			lastRateDelay = delay
		} else {
			delay = c.transientDelay(attempt)
		}

		c.mu.Lock()
		c.totalRetries++
		c.mu.Unlock()

		c.emit(Event{Kind: EventRetry, Attempt: attempt, Delay: delay, Signal: sig})
		c.logger.Warn("request attempt failed, retrying",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"signal", sig.Kind.String(),
			"delay", delay)
		if err := c.clock.Sleep(ctx, delay); err != nil {
			return zero, false, err
		}
	}

	if lastKind == Malformed {
		c.emit(Event{Kind: EventNoResult, Attempt: attempts - 1})
		c.logger.Warn("giving up on malformed responses", "attempts", attempts)
		return zero, false, nil
	}

	failed := &pkgerrs.RequestFailedError{Attempts: attempts, Err: lastErr}
	c.emit(Event{Kind: EventGiveUp, Attempt: attempts - 1})
	c.logger.Error("request failed", "attempts", attempts, "err", lastErr)
	span.RecordError(failed)
	span.SetStatus(codes.Error, failed.Error())
	return zero, false, failed
}

// alternate performs the single best-effort retry after a 403. The attempt
// is throttled like any other, after the longer pause.
func alternate[T any](ctx context.Context, c *Client, fn Thunk[T], valid func(T) bool, forbidden *Signal) (T, bool, error) {
	var zero T

	pause := 2 * c.Policy().RequestDelay
	c.emit(Event{Kind: EventAlternate, Attempt: 0, Delay: pause, Signal: forbidden})
	c.logger.Warn("access forbidden, trying alternate request profile", "delay", pause)
	if err := c.clock.Sleep(ctx, pause); err != nil {
		return zero, false, err
	}
	if err := c.throttle(ctx, 1); err != nil {
		return zero, false, err
	}

	c.emit(Event{Kind: EventAttempt, Attempt: 1})
	out, err := fn(ctx, ProfileAlternate)
	c.recordRequest()

	sig := classify(ctx, out, err, valid)
	if sig == nil {
		c.emit(Event{Kind: EventSuccess, Attempt: 1})
		return out, true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, false, ctxErr
	}
	if sig.Kind == Fatal {
		c.emit(Event{Kind: EventFatal, Attempt: 1, Signal: sig})
		return zero, false, sig.cause()
	}
	c.emit(Event{Kind: EventNoResult, Attempt: 1, Signal: sig})
	return zero, false, nil
}

// classify turns the outcome of one attempt into a Signal, nil on success.
func classify[T any](ctx context.Context, out T, err error, valid func(T) bool) *Signal {
	if err == nil {
		if valid == nil || valid(out) {
			return nil
		}
		return &Signal{Kind: Malformed, Err: &pkgerrs.MalformedResponseError{Reason: "unrecognized payload shape"}}
	}
	var sig *Signal
	if errors.As(err, &sig) {
		return sig
	}
	if ctx.Err() != nil {
		return &Signal{Kind: Fatal, Err: ctx.Err()}
	}
	var malformed *pkgerrs.MalformedResponseError
	if errors.As(err, &malformed) {
		return &Signal{Kind: Malformed, Err: err}
	}
	var auth *pkgerrs.AuthError
	if errors.As(err, &auth) {
		return &Signal{Kind: Fatal, Err: err}
	}
	var rl *pkgerrs.RateLimitError
	if errors.As(err, &rl) {
		return &Signal{Kind: RateLimited, RetryAfter: rl.RetryAfter, Err: err}
	}
	return &Signal{Kind: Transient, Err: err}
}

// rateLimitDelay is Retry-After when given, otherwise
// BaseDelay × multiplier^attempt × jitter.
func (c *Client) rateLimitDelay(attempt int, sig *Signal) time.Duration {
	if sig.RetryAfter > 0 {
		return sig.RetryAfter
	}
	p := c.Policy()
	mult := rateMultiplier
	jitter := c.jitter(p)
	if sig.BotSuspected {
		mult = botMultiplier
		jitter = botJitterMin
		if p.UseRandomDelays {
			jitter = botJitterMin + c.rand()*(botJitterMax-botJitterMin)
		}
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt)) * jitter)
}

// transientDelay is 2^attempt seconds plus up to one second of noise.
func (c *Client) transientDelay(attempt int) time.Duration {
	secs := math.Pow(2, float64(attempt)) + c.rand()
	return time.Duration(secs * float64(time.Second))
}

func (c *Client) jitter(p Policy) float64 {
	if !p.UseRandomDelays {
		return 1.0
	}
	return p.JitterMin + c.rand()*(p.JitterMax-p.JitterMin)
}

// throttle applies the burst window, any forced wait and the minimum
// inter-request delay, in that order.
func (c *Client) throttle(ctx context.Context, attempt int) error {
	p := c.Policy()

	c.mu.Lock()
	now := c.clock.Now()
	c.pruneLocked(now, p.BurstWindow)
	var burstWait time.Duration
	if len(c.history) >= p.MaxRequestsPerWindow {
		oldest := c.history[0]
		buffer := time.Duration((1 + 4*c.rand()) * float64(time.Second))
		burstWait = p.BurstWindow - now.Sub(oldest) + buffer
	}
	c.mu.Unlock()

	if burstWait > 0 {
		c.emit(Event{Kind: EventBurstWait, Attempt: attempt, Delay: burstWait})
		c.logger.Info("burst window full, pausing", "delay", burstWait, "max_requests", p.MaxRequestsPerWindow)
		if err := c.clock.Sleep(ctx, burstWait); err != nil {
			return err
		}
		c.mu.Lock()
		c.history = c.history[:0]
		c.mu.Unlock()
	}

	if err := c.waitForForcedDelay(ctx, attempt); err != nil {
		return err
	}

	c.mu.Lock()
	last := c.lastRequest
	stealth := c.stealth
	c.mu.Unlock()
	if last.IsZero() {
		return nil
	}
	minDelay := time.Duration(float64(p.RequestDelay) * c.jitter(p))
	if stealth && minDelay < StealthMinRequestDelay {
		minDelay = StealthMinRequestDelay
	}
	elapsed := c.clock.Now().Sub(last)
	if elapsed >= minDelay {
		return nil
	}
	wait := minDelay - elapsed
	c.emit(Event{Kind: EventPacing, Attempt: attempt, Delay: wait})
	return c.clock.Sleep(ctx, wait)
}

func (c *Client) waitForForcedDelay(ctx context.Context, attempt int) error {
	c.mu.Lock()
	until := c.forceWaitUntil
	c.mu.Unlock()
	if until.IsZero() {
		return nil
	}

	now := c.clock.Now()
	if now.Before(until) {
		wait := until.Sub(now)
		c.emit(Event{Kind: EventForcedWait, Attempt: attempt, Delay: wait})
		c.logger.Info("server asked to slow down, waiting", "delay", wait)
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if until.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) pruneLocked(now time.Time, window time.Duration) {
	i := 0
	for i < len(c.history) && now.Sub(c.history[i]) >= window {
		i++
	}
	if i > 0 {
		c.history = append(c.history[:0], c.history[i:]...)
	}
}

func (c *Client) recordRequest() {
	c.mu.Lock()
	now := c.clock.Now()
	c.history = append(c.history, now)
	c.lastRequest = now
	c.totalRequests++
	c.mu.Unlock()
}

func (c *Client) emit(e Event) {
	if c.observer != nil {
		c.observer(e)
	}
}

func traceAttrs(attempt int, sig *Signal) trace.EventOption {
	return trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.String("signal", sig.Kind.String()),
		attribute.Int("status", sig.Status),
	)
}
