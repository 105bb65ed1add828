package schema

import (
	"time"
)

const (
	FlowDeposit  = "deposit"  // POST /payment/{id}/verify
	FlowPurchase = "purchase" // POST /b3c/buy/{id}/verify, may carry a boc

	DefaultMaxRetries     = 5
	DefaultPollInterval   = 3 * time.Second
	DefaultWindow         = 15 * time.Minute
	DefaultCooldown       = 10 * time.Minute
	DefaultRequestTimeout = 10 * time.Second
)

func IsFlow(flow string) bool {
	return flow == FlowDeposit || flow == FlowPurchase
}

type VerifyReq struct {
	PaymentId string `json:"paymentId"`
	Flow      string `json:"flow"`
	Boc       string `json:"boc,omitempty"`
}

// Attempt is the per-payment verification counter.
// Count never exceeds MaxRetries.
type Attempt struct {
	PaymentId     string    `json:"paymentId"`
	Flow          string    `json:"flow"`
	Boc           string    `json:"boc,omitempty"`
	Count         int       `json:"count"`
	MaxRetries    int       `json:"maxRetries"`
	StartTime     time.Time `json:"startTime"`
	Token         string    `json:"-"` // generation token of the live session
	CooldownUntil time.Time `json:"cooldownUntil,omitempty"`
	Closed        bool      `json:"closed"` // modal closed, nothing is displayed
}

func (a Attempt) Exhausted() bool {
	return a.Count >= a.MaxRetries
}

func (a Attempt) RetriesLeft() int {
	if a.Count >= a.MaxRetries {
		return 0
	}
	return a.MaxRetries - a.Count
}

type Deadline struct {
	PaymentId string        `json:"paymentId"`
	StartTime time.Time     `json:"startTime"`
	Window    time.Duration `json:"window"`
	Armed     bool          `json:"armed"`
}

func (d Deadline) At() time.Time {
	return d.StartTime.Add(d.Window)
}

type Policy struct {
	MaxRetries     int
	PollInterval   time.Duration
	Window         time.Duration
	Cooldown       time.Duration
	RequestTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     DefaultMaxRetries,
		PollInterval:   DefaultPollInterval,
		Window:         DefaultWindow,
		Cooldown:       DefaultCooldown,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Lockout is persisted when the retry budget is spent, so the cooldown survives a restart.
type Lockout struct {
	PaymentId string    `json:"paymentId"`
	Until     time.Time `json:"until"`
}

// Pending is rewritten on every attempt so the spent budget survives a restart.
type Pending struct {
	PaymentId string    `json:"paymentId"`
	Flow      string    `json:"flow"`
	Boc       string    `json:"boc,omitempty"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"createdAt"`
}
