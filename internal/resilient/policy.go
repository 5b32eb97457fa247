package resilient

import "time"

// Policy controls pacing and retry behaviour. A Client owns its Policy and
// only changes it through the reconfiguration methods.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the base of the rate-limit back-off.
	BaseDelay time.Duration
	// RequestDelay is the minimum spacing between two requests before jitter.
	RequestDelay time.Duration
	// JitterMin and JitterMax bound the multiplier applied to RequestDelay and
	// to rate-limit back-offs.
	JitterMin float64
	JitterMax float64
	// BurstWindow is the trailing interval in which requests are counted.
	BurstWindow time.Duration
	// MaxRequestsPerWindow caps the number of requests inside BurstWindow.
	MaxRequestsPerWindow int
	// UseRandomDelays draws jitter uniformly from [JitterMin, JitterMax]
	// when true. Otherwise jitter is 1.0.
	UseRandomDelays bool
}

const (
	DefaultMaxRetries           = 3
	DefaultBaseDelay            = time.Second
	DefaultRequestDelay         = 100 * time.Millisecond
	DefaultJitterMin            = 0.8
	DefaultJitterMax            = 1.2
	DefaultBurstWindow          = 60 * time.Second
	DefaultMaxRequestsPerWindow = 60

	// MinRequestDelay is the floor enforced by SetDelay.
	MinRequestDelay = 100 * time.Millisecond

	StealthMinRequestDelay      = time.Second
	StealthMaxRequestsPerWindow = 20
	StealthJitterMin            = 0.5
	StealthJitterMax            = 2.0

	botMultiplier  = 3.0
	rateMultiplier = 2.0
	botJitterMin   = 1.0
	botJitterMax   = 2.0
)

// DefaultPolicy returns the policy a Client starts with.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:           DefaultMaxRetries,
		BaseDelay:            DefaultBaseDelay,
		RequestDelay:         DefaultRequestDelay,
		JitterMin:            DefaultJitterMin,
		JitterMax:            DefaultJitterMax,
		BurstWindow:          DefaultBurstWindow,
		MaxRequestsPerWindow: DefaultMaxRequestsPerWindow,
		UseRandomDelays:      true,
	}
}

// withDefaults fills zero fields from DefaultPolicy. MaxRetries of zero is
// kept: a caller may want a single attempt.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.RequestDelay <= 0 {
		p.RequestDelay = d.RequestDelay
	}
	if p.JitterMin <= 0 && p.JitterMax <= 0 {
		p.JitterMin, p.JitterMax = d.JitterMin, d.JitterMax
	}
	if p.JitterMax < p.JitterMin {
		p.JitterMin, p.JitterMax = p.JitterMax, p.JitterMin
	}
	if p.BurstWindow <= 0 {
		p.BurstWindow = d.BurstWindow
	}
	if p.MaxRequestsPerWindow <= 0 {
		p.MaxRequestsPerWindow = d.MaxRequestsPerWindow
	}
	return p
}

// stealth tightens p. Values already stricter than the stealth bounds are kept.
func (p Policy) stealth() Policy {
	if p.RequestDelay < StealthMinRequestDelay {
		p.RequestDelay = StealthMinRequestDelay
	}
	if p.MaxRequestsPerWindow > StealthMaxRequestsPerWindow {
		p.MaxRequestsPerWindow = StealthMaxRequestsPerWindow
	}
	p.JitterMin = StealthJitterMin
	p.JitterMax = StealthJitterMax
	p.UseRandomDelays = true
	return p
}

// relaxed resets the pacing fields to their defaults and keeps the retry fields.
func (p Policy) relaxed() Policy {
	d := DefaultPolicy()
	p.RequestDelay = d.RequestDelay
	p.MaxRequestsPerWindow = d.MaxRequestsPerWindow
	p.JitterMin = d.JitterMin
	p.JitterMax = d.JitterMax
	p.UseRandomDelays = d.UseRandomDelays
	return p
}
