package contracts

import "time"

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

const (
	EventTypePaymentProcessed      = "payment.processed"
	EventTypeSubscriptionActivated = "subscription.activated"
)

// PaymentProcessedEvent is emitted once per order when its payment reaches a
// terminal state. Duplicate gateway notifications never produce a second
// event: the row is written in the same transaction as the status change.
type PaymentProcessedEvent struct {
	EventID     string        `json:"event_id"`
	OrderID     string        `json:"order_id"`
	UserID      string        `json:"user_id"`
	PlanCode    string        `json:"plan_code"`
	Amount      int64         `json:"amount"`
	Status      PaymentStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	TransID     string        `json:"trans_id,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
}

// SubscriptionActivatedEvent is emitted when a paid order creates or extends
// a user's subscription window.
type SubscriptionActivatedEvent struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	PlanCode    string    `json:"plan_code"`
	ExpiresAt   time.Time `json:"expires_at"`
	ActivatedAt time.Time `json:"activated_at"`
}
