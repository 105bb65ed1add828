package schema

import (
	"errors"
)

var (
	ErrNotExist = errors.New("not_exist_record")
	ErrNotFound = errors.New("not_found")

	ErrNullPaymentId  = errors.New("null_payment_id")
	ErrUnknownFlow    = errors.New("unknown_flow")
	ErrPaymentExpired = errors.New("payment_expired")
	ErrVerifyLimit    = errors.New("verify_limit_reached")
	ErrTransport      = errors.New("transport_failed") // network error or non-2xx without success body
)
