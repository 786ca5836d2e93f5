// Package checkout drives the payment order lifecycle: creating orders
// against the gateway and reconciling its result notifications into order
// and subscription state. All cross-request coordination happens through the
// stores' conditional writes; the package holds no shared mutable state.
package checkout

import (
	"context"
	"errors"
	"time"

	"vistream/billing-service/internal/gateway"
	"vistream/billing-service/internal/order"
	"vistream/billing-service/internal/plan"

	"github.com/google/uuid"
)

var (
	ErrAdminPurchase    = errors.New("admin accounts cannot purchase plans")
	ErrBadSignature     = errors.New("callback signature mismatch")
	ErrAmountMismatch   = errors.New("callback amount does not match order")
	ErrAlreadyProcessed = errors.New("order already processed")
	ErrBadPayload       = errors.New("malformed callback payload")
	ErrGatewayRejected  = errors.New("gateway rejected order creation")
)

// Identity is what the external auth layer supplies about the caller.
type Identity struct {
	UserID uuid.UUID
	Admin  bool
}

type PlanCatalog interface {
	ByCode(ctx context.Context, code string) (*plan.Plan, error)
}

type OrderStore interface {
	Create(ctx context.Context, o *order.Order) error
	Get(ctx context.Context, id string) (*order.Order, error)
	SetPayURL(ctx context.Context, id, payURL string, rawResponse []byte) error
	MarkPaid(ctx context.Context, id, transID string, rawCallback []byte) (bool, error)
	MarkFailed(ctx context.Context, id, reason string, rawCallback []byte) (bool, error)
	ForceStatus(ctx context.Context, id string, target order.Status) (bool, error)
}

type SubscriptionLedger interface {
	Activate(ctx context.Context, userID uuid.UUID, planCode string, durationDays int) (time.Time, error)
}

type Gateway interface {
	BuildCreate(orderID, requestID, orderInfo string, amount int64) gateway.CreateRequest
	Create(ctx context.Context, req gateway.CreateRequest) (*gateway.CreateResponse, error)
	Query(ctx context.Context, orderID, requestID string) (*gateway.QueryResponse, error)
}
