// Package useragent rotates the browser identity sent by the public scraper.
package useragent

import (
	"math/rand/v2"
	"sync"

	browser "github.com/EDDYCJY/fake-useragent"

	"github.com/jamesprial/go-reddit-collector/pkg/validation"
)

// fallback is used when the generator yields nothing usable.
var fallback = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// Rotator hands out user-agent strings. It is safe for concurrent use.
type Rotator struct {
	mu      sync.Mutex
	pool    []string
	source  func() string
	pick    func(n int) int
	current string
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithPool rotates over a fixed list instead of generating identities.
func WithPool(agents ...string) Option {
	return func(r *Rotator) {
		r.pool = nil
		for _, a := range agents {
			if validation.ValidateUserAgent(a) == nil {
				r.pool = append(r.pool, a)
			}
		}
	}
}

// WithSource replaces the identity generator.
func WithSource(fn func() string) Option {
	return func(r *Rotator) { r.source = fn }
}

// WithPicker replaces the random index chooser, mainly for tests.
func WithPicker(fn func(n int) int) Option {
	return func(r *Rotator) { r.pick = fn }
}

// New returns a Rotator that generates browser identities with
// fake-useragent unless a pool is given.
func New(opts ...Option) *Rotator {
	r := &Rotator{
		source: browser.Random,
		pick:   rand.IntN,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Next returns a new identity, different from the previous one whenever the
// pool allows it.
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ua string
	for range 3 {
		ua = r.candidate()
		if ua != r.current {
			break
		}
	}
	r.current = ua
	return ua
}

// Current returns the identity handed out last, or a fresh one if none yet.
func (r *Rotator) Current() string {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()
	if cur == "" {
		return r.Next()
	}
	return cur
}

func (r *Rotator) candidate() string {
	if len(r.pool) > 0 {
		return r.pool[r.pick(len(r.pool))]
	}
	if r.source != nil {
		if ua := r.source(); validation.ValidateUserAgent(ua) == nil {
			return ua
		}
	}
	return fallback[r.pick(len(fallback))]
}
