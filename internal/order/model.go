package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Order is one purchase attempt. Amount is fixed at creation and is the
// authoritative value every callback is checked against. The raw gateway
// payloads are retained for dispute reconciliation.
type Order struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"request_id"`
	UserID          uuid.UUID `json:"user_id"`
	PlanCode        string    `json:"plan_code"`
	Period          string    `json:"period"`
	Amount          int64     `json:"amount"`
	Status          Status    `json:"status"`
	TransID         string    `json:"trans_id,omitempty"`
	PayURL          string    `json:"pay_url,omitempty"`
	FailReason      string    `json:"fail_reason,omitempty"`
	CreatePayload   []byte    `json:"-"`
	CreateResponse  []byte    `json:"-"`
	CallbackPayload []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
