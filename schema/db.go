package schema

import (
	"time"
)

const (
	// verification outcome
	ResultConfirmed    = "confirmed"
	ResultExhausted    = "exhausted"
	ResultTimedOut     = "timed_out"
	ResultLimitReached = "limit_reached"
)

type Outcome struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	PaymentId string `gorm:"index:idx1" json:"paymentId"`
	Flow      string `json:"flow"`
	Result    string `gorm:"index:idx2" json:"result"` // "confirmed","exhausted","timed_out","limit_reached"
	Attempts  int    `json:"attempts"`
	Credited  string `json:"credited"` // decimal string, empty unless confirmed
}
