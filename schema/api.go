package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusNotFound  = "not_found"

	DefaultTxPageLimit = 20
)

type ReqVerify struct {
	Boc string `json:"boc,omitempty"` // base64 wallet-signed transaction proof
}

// RespVerify is the envelope returned by both verify endpoints.
// A confirmed status carries one of the credited amount fields.
type RespVerify struct {
	Success      bool             `json:"success"`
	Status       string           `json:"status"`
	B3cCredited  *decimal.Decimal `json:"b3c_credited,omitempty"`
	CreditsAdded *decimal.Decimal `json:"creditsAdded,omitempty"`
	Error        string           `json:"error,omitempty"`
}

func (r RespVerify) Confirmed() bool {
	return r.Status == StatusConfirmed
}

func (r RespVerify) Credited() decimal.Decimal {
	if r.B3cCredited != nil {
		return *r.B3cCredited
	}
	if r.CreditsAdded != nil {
		return *r.CreditsAdded
	}
	return decimal.Zero
}

type RespBalance struct {
	Success bool            `json:"success"`
	Balance decimal.Decimal `json:"balance"`
	Error   string          `json:"error,omitempty"`
}

type Transaction struct {
	Id        string          `json:"id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type RespTransactions struct {
	Success      bool          `json:"success"`
	Transactions []Transaction `json:"transactions"`
	Error        string        `json:"error,omitempty"`
}

type RespErr struct {
	Err string `json:"error"`
}

func (r RespErr) Error() string {
	return r.Err
}
