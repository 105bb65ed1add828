package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StateIdle         = "idle"
	StateVerifying    = "verifying"
	StatePendingWait  = "pending_wait"
	StateConfirmed    = "confirmed"
	StateExhausted    = "exhausted"
	StateLimitReached = "limit_reached"
	StateTimedOut     = "timed_out"
	StateError        = "error"
)

// View is the snapshot a front end renders for one payment.
type View struct {
	PaymentId     string          `json:"paymentId"`
	State         string          `json:"state"`
	Message       string          `json:"message"`
	Attempt       int             `json:"attempt"`
	MaxRetries    int             `json:"maxRetries"`
	Progress      int             `json:"progress"` // 0-100
	RetriesLeft   int             `json:"retriesLeft"`
	Remaining     time.Duration   `json:"remaining"`
	NextPollIn    time.Duration   `json:"nextPollIn"`
	CooldownLeft  time.Duration   `json:"cooldownLeft"`
	RetryEnabled  bool            `json:"retryEnabled"`
	RetryLabel    string          `json:"retryLabel"`
	VerifyEnabled bool            `json:"verifyEnabled"`
	Credited      decimal.Decimal `json:"credited"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (v View) Terminal() bool {
	switch v.State {
	case StateConfirmed, StateExhausted, StateLimitReached, StateTimedOut:
		return true
	}
	return false
}

// BalanceFrame is one step of the displayed-balance animation.
type BalanceFrame struct {
	Account string          `json:"account"`
	Value   decimal.Decimal `json:"value"`
	Final   bool            `json:"final"`
}
