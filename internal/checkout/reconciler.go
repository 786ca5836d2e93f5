package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"vistream/billing-service/internal/gateway"
	"vistream/billing-service/internal/order"
)

// ReconcilerConfig holds the per-channel verification secrets and the
// return-channel fallback policy.
type ReconcilerConfig struct {
	IPNSecret    string
	ReturnSecret string

	// ReturnFallback lets the return channel confirm a still-pending order
	// via a gateway status query when IPN delivery cannot be relied on.
	ReturnFallback bool
	QueryDelay     time.Duration
}

// Reconciler normalizes the gateway's three notification channels (IPN
// webhook, browser return, on-demand query) into one idempotent state
// transition. The conditional pending->paid write is the only gate:
// whichever channel wins it performs the subscription activation, every
// loser is a no-op.
type Reconciler struct {
	cfg    ReconcilerConfig
	plans  PlanCatalog
	orders OrderStore
	ledger SubscriptionLedger
	gw     Gateway
	logger *slog.Logger
}

func NewReconciler(cfg ReconcilerConfig, plans PlanCatalog, orders OrderStore, ledger SubscriptionLedger, gw Gateway, logger *slog.Logger) *Reconciler {
	return &Reconciler{cfg: cfg, plans: plans, orders: orders, ledger: ledger, gw: gw, logger: logger}
}

// HandleIPN processes a server-to-server result notification. Returned
// sentinels map to HTTP responses: ErrBadSignature and ErrAmountMismatch to
// 400, order.ErrOrderNotFound to 404, ErrAlreadyProcessed to a 200 no-op.
func (r *Reconciler) HandleIPN(ctx context.Context, p gateway.CallbackPayload, raw []byte) error {
	if !gateway.Verify(r.cfg.IPNSecret, p.SignatureFields(), gateway.CallbackFields, p.Signature) {
		r.logger.Warn("ipn signature mismatch", "order_id", p.OrderID, "payload", string(raw))
		return ErrBadSignature
	}

	o, err := r.orders.Get(ctx, p.OrderID)
	if err != nil {
		// Unknown orders are foreign or test traffic, not a fault.
		return err
	}
	if o.Status == order.StatusPaid {
		return ErrAlreadyProcessed
	}

	if p.Amount != o.Amount {
		r.logger.Error("ipn amount mismatch", "order_id", o.ID, "expected", o.Amount, "got", p.Amount, "payload", string(raw))
		if _, err := r.orders.MarkFailed(ctx, o.ID, "amount_mismatch", raw); err != nil {
			return err
		}
		return ErrAmountMismatch
	}

	if p.ResultCode != gateway.ResultCodeSuccess {
		won, err := r.orders.MarkFailed(ctx, o.ID, fmt.Sprintf("gateway_rc_%d", p.ResultCode), raw)
		if err != nil {
			return err
		}
		if !won {
			return ErrAlreadyProcessed
		}
		r.logger.Info("order failed by ipn", "order_id", o.ID, "result_code", p.ResultCode)
		return nil
	}

	won, err := r.orders.MarkPaid(ctx, o.ID, strconv.FormatInt(p.TransID, 10), raw)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyProcessed
	}

	r.logger.Info("order paid by ipn", "order_id", o.ID, "trans_id", p.TransID)
	return r.activate(ctx, o)
}

// ReturnResult is what the return channel reports back to the browser.
type ReturnResult struct {
	OK         bool   `json:"ok"`
	ResultCode int    `json:"rc"`
	Amount     int64  `json:"amount"`
	OrderID    string `json:"orderId"`
}

// HandleReturn processes the browser redirect. This channel reports the
// outcome but never activates on its own authority; when the fallback is
// enabled and the order is still pending it defers to a gateway status
// query after a short delay.
func (r *Reconciler) HandleReturn(ctx context.Context, values url.Values) (ReturnResult, error) {
	p, err := gateway.ParseCallbackQuery(values)
	if err != nil {
		return ReturnResult{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	if !gateway.Verify(r.cfg.ReturnSecret, p.SignatureFields(), gateway.CallbackFields, p.Signature) {
		r.logger.Warn("return signature mismatch", "order_id", p.OrderID, "query", values.Encode())
		return ReturnResult{}, ErrBadSignature
	}

	o, err := r.orders.Get(ctx, p.OrderID)
	if err != nil {
		return ReturnResult{}, err
	}

	res := ReturnResult{
		OK:         p.ResultCode == gateway.ResultCodeSuccess && p.Amount == o.Amount,
		ResultCode: p.ResultCode,
		Amount:     p.Amount,
		OrderID:    o.ID,
	}

	if r.cfg.ReturnFallback && res.OK && o.Status == order.StatusPending {
		r.confirmViaQuery(ctx, o)
	}

	return res, nil
}

// confirmViaQuery waits out the delay, re-checks that no other channel has
// resolved the order in the meantime, and only then asks the gateway. Any
// network failure on the query degrades to the redirect-field verdict.
func (r *Reconciler) confirmViaQuery(ctx context.Context, o *order.Order) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.cfg.QueryDelay):
	}

	cur, err := r.orders.Get(ctx, o.ID)
	if err != nil {
		r.logger.Warn("re-read order before query fallback", "order_id", o.ID, "err", err)
		return
	}
	if cur.Status != order.StatusPending {
		return
	}

	q, err := r.gw.Query(ctx, o.ID, o.RequestID)
	if err != nil {
		r.logger.Warn("gateway query failed, keeping order pending", "order_id", o.ID, "err", err)
		return
	}
	if q.ResultCode != gateway.ResultCodeSuccess {
		r.logger.Info("query fallback: payment not confirmed", "order_id", o.ID, "result_code", q.ResultCode)
		return
	}

	won, err := r.orders.MarkPaid(ctx, o.ID, strconv.FormatInt(q.TransID, 10), q.Raw)
	if err != nil {
		r.logger.Error("mark paid from query fallback", "order_id", o.ID, "err", err)
		return
	}
	if !won {
		return
	}

	r.logger.Info("order paid by query fallback", "order_id", o.ID, "trans_id", q.TransID)
	if err := r.activate(ctx, cur); err != nil {
		r.logger.Error("activate from query fallback", "order_id", o.ID, "err", err)
	}
}

// AdminSetStatus is the operator override. Forcing paid runs the same
// guarded activation as the automatic channels; a paid order is never
// overridden.
func (r *Reconciler) AdminSetStatus(ctx context.Context, orderID string, target order.Status) error {
	if target != order.StatusPaid && target != order.StatusFailed {
		return fmt.Errorf("%w: cannot force status %q", ErrBadPayload, target)
	}

	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}

	won, err := r.orders.ForceStatus(ctx, orderID, target)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyProcessed
	}

	r.logger.Info("order status overridden", "order_id", orderID, "status", target)
	if target == order.StatusPaid {
		return r.activate(ctx, o)
	}
	return nil
}

func (r *Reconciler) activate(ctx context.Context, o *order.Order) error {
	p, err := r.plans.ByCode(ctx, o.PlanCode)
	if err != nil {
		return fmt.Errorf("resolve plan for activation: %w", err)
	}

	expiresAt, err := r.ledger.Activate(ctx, o.UserID, o.PlanCode, p.DurationDays)
	if err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}

	r.logger.Info("subscription activated", "user_id", o.UserID, "plan", o.PlanCode, "expires_at", expiresAt)
	return nil
}
