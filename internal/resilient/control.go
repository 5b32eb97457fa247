package resilient

import (
	"context"
	"time"
)

// Policy returns a copy of the effective policy.
func (c *Client) Policy() Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// SetDelay sets the minimum inter-request delay. Values below
// MinRequestDelay are raised to it.
func (c *Client) SetDelay(d time.Duration) {
	if d < MinRequestDelay {
		d = MinRequestDelay
	}
	c.mu.Lock()
	c.policy.RequestDelay = d
	c.mu.Unlock()
	c.logger.Debug("request delay updated", "delay", d)
}

// EnableStealth tightens pacing: the request delay is at least one second,
// the burst cap is at most 20 requests and jitter widens to 0.5–2.0.
func (c *Client) EnableStealth() {
	c.mu.Lock()
	c.policy = c.policy.stealth()
	c.stealth = true
	p := c.policy
	c.mu.Unlock()
	c.logger.Info("stealth mode enabled",
		"request_delay", p.RequestDelay,
		"max_requests_per_window", p.MaxRequestsPerWindow)
}

// DisableStealth restores the default pacing fields. Retry settings made with
// SetRetryPolicy are kept.
func (c *Client) DisableStealth() {
	c.mu.Lock()
	c.policy = c.policy.relaxed()
	c.stealth = false
	c.mu.Unlock()
	c.logger.Info("stealth mode disabled")
}

// SetRetryPolicy replaces the retry budget, back-off base and request delay.
// Negative retry counts become zero and non-positive durations keep the
// current value.
func (c *Client) SetRetryPolicy(maxRetries int, baseDelay, requestDelay time.Duration) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	c.mu.Lock()
	c.policy.MaxRetries = maxRetries
	if baseDelay > 0 {
		c.policy.BaseDelay = baseDelay
	}
	if requestDelay > 0 {
		if requestDelay < MinRequestDelay {
			requestDelay = MinRequestDelay
		}
		c.policy.RequestDelay = requestDelay
	}
	c.mu.Unlock()
}

// DeferUntil holds the next attempt until t. Earlier deadlines than one
// already pending are ignored.
func (c *Client) DeferUntil(t time.Time) {
	c.mu.Lock()
	if t.After(c.forceWaitUntil) {
		c.forceWaitUntil = t
	}
	c.mu.Unlock()
}

// HumanPause sleeps a uniform 1–3 seconds, stretched by the request delay
// when that exceeds one second. Batch operations call it between items.
func (c *Client) HumanPause(ctx context.Context) error {
	p := c.Policy()
	scale := 1.0
	if p.RequestDelay > time.Second {
		scale = p.RequestDelay.Seconds()
	}
	d := time.Duration((1 + 2*c.rand()) * scale * float64(time.Second))
	c.emit(Event{Kind: EventHumanPause, Delay: d})
	return c.clock.Sleep(ctx, d)
}

// Status is a snapshot of the client's pacing state.
type Status struct {
	Stealth           bool
	Policy            Policy
	RequestsInWindow  int
	TotalRequests     int
	TotalRetries      int
	SessionDuration   time.Duration
	RequestsPerMinute float64
	// DeferredUntil is the pending forced wait, zero if none.
	DeferredUntil time.Time
}

// Status returns the current pacing snapshot.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	inWindow := 0
	for _, t := range c.history {
		if now.Sub(t) < c.policy.BurstWindow {
			inWindow++
		}
	}

	s := Status{
		Stealth:          c.stealth,
		Policy:           c.policy,
		RequestsInWindow: inWindow,
		TotalRequests:    c.totalRequests,
		TotalRetries:     c.totalRetries,
		SessionDuration:  now.Sub(c.started),
		DeferredUntil:    c.forceWaitUntil,
	}
	if s.SessionDuration > 0 {
		s.RequestsPerMinute = float64(c.totalRequests) / s.SessionDuration.Minutes()
	}
	return s
}

// Now reads the client's clock.
func (c *Client) Now() time.Time {
	return c.clock.Now()
}

// Sleep waits on the client's clock for d or until ctx is done.
func (c *Client) Sleep(ctx context.Context, d time.Duration) error {
	return c.clock.Sleep(ctx, d)
}
