package model

import (
	"slices"

	"consult/shared/model"
)

const (
	TableName  = "bookings"
	EntityName = "booking"

	FieldID           = "id"
	FieldUserID       = "user_id"
	FieldProviderID   = "provider_id"
	FieldStartAt      = "start_at"
	FieldEndAt        = "end_at"
	FieldMode         = "mode"
	FieldAmount       = "amount"
	FieldCurrency     = "currency"
	FieldStatus       = "status"
	FieldPayGateway   = "pay_gateway"
	FieldPayOrderID   = "pay_order_id"
	FieldPayPaymentID = "pay_payment_id"
	FieldPaySignature = "pay_signature"
	FieldPayRaw       = "pay_raw"
)

const (
	StatusPending   = "pending"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"

	ModeChat = "chat"
	ModeCall = "call"
)

// ActiveStatuses are the statuses that occupy a slot. Failed and cancelled
// bookings release their interval.
var ActiveStatuses = []string{StatusPending, StatusSuccess}

var Statuses = []string{StatusPending, StatusSuccess, StatusFailed, StatusCancelled}

// transitions is the single source of truth for the booking state machine.
// Pending is the only non-terminal state.
var transitions = map[string][]string{
	StatusPending:   {StatusSuccess, StatusFailed, StatusCancelled},
	StatusSuccess:   {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func IsValidStatus(status string) bool {
	return slices.Contains(Statuses, status)
}

func IsTerminalStatus(status string) bool {
	next, ok := transitions[status]

	return ok && len(next) == 0
}

// CanTransition reports whether the state machine permits moving a booking
// from one status to another.
func CanTransition(from, to string) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}

	return slices.Contains(next, to)
}

type Booking struct {
	ID           string `db:"id"`
	UserID       string `db:"user_id"`
	ProviderID   string `db:"provider_id"`
	Interval
	Mode         string  `db:"mode"`
	Amount       float64 `db:"amount"`
	Currency     string  `db:"currency"`
	Status       string  `db:"status"`
	PayGateway   string  `db:"pay_gateway"`
	PayOrderID   string  `db:"pay_order_id"`
	PayPaymentID string  `db:"pay_payment_id"`
	PaySignature string  `db:"pay_signature"`
	PayRaw       string  `db:"pay_raw"`
	model.Metadata
}
