package resilient

import "time"

// EventKind names a diagnostic event emitted by the Client.
type EventKind string

const (
	EventAttempt    EventKind = "attempt"
	EventSuccess    EventKind = "success"
	EventRetry      EventKind = "retry"
	EventBurstWait  EventKind = "burst_wait"
	EventForcedWait EventKind = "forced_wait"
	EventPacing     EventKind = "pacing"
	EventAlternate  EventKind = "alternate_profile"
	EventNoResult   EventKind = "no_result"
	EventGiveUp     EventKind = "give_up"
	EventHumanPause EventKind = "human_pause"
	EventFatal      EventKind = "fatal"
)

// Event describes one decision taken by the Client. Delay is the sleep the
// decision implies, zero when none.
type Event struct {
	Kind    EventKind
	Attempt int
	Delay   time.Duration
	// Signal is set for events caused by a failed attempt.
	Signal *Signal
}

// Observer receives events synchronously on the calling goroutine.
type Observer func(Event)
