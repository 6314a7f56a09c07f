package domain

import (
	"sync"
	"time"
)

// AffordanceState is the visible state of the interactive trigger.
type AffordanceState string

const (
	AffordanceIdle   AffordanceState = "idle"
	AffordanceBusy   AffordanceState = "busy"
	AffordanceResult AffordanceState = "result"
)

// Tone colours a result message.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

// Feedback is a transient status message shown after a manual run.
type Feedback struct {
	Message   string    `json:"message"`
	Tone      Tone      `json:"tone"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Visible reports whether the feedback should still be displayed at t.
func (f Feedback) Visible(t time.Time) bool {
	return f.Message != "" && t.Before(f.ExpiresAt)
}

// Affordance holds the state of the manual trigger between renders.
// The button itself returns to idle after every run; the feedback
// message stays until it expires.
type Affordance struct {
	mu       sync.Mutex
	state    AffordanceState
	feedback Feedback
	now      func() time.Time
}

// NewAffordance returns an idle affordance.
func NewAffordance() *Affordance {
	return &Affordance{state: AffordanceIdle, now: time.Now}
}

// Busy marks a run as in flight.
func (a *Affordance) Busy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = AffordanceBusy
}

// Finish shows msg for ttl and restores the trigger to idle.
func (a *Affordance) Finish(msg string, tone Tone, ttl time.Duration) Feedback {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feedback = Feedback{Message: msg, Tone: tone, ExpiresAt: a.now().Add(ttl)}
	a.state = AffordanceIdle
	return a.feedback
}

// State returns the current trigger state. An idle trigger with unexpired
// feedback reports AffordanceResult.
func (a *Affordance) State() AffordanceState {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == AffordanceIdle && a.feedback.Visible(a.now()) {
		return AffordanceResult
	}
	return a.state
}

// Feedback returns the last feedback if it has not expired yet.
func (a *Affordance) Feedback() (Feedback, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.feedback.Visible(a.now()) {
		return Feedback{}, false
	}
	return a.feedback, true
}
