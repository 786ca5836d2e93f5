package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"vistream/billing-service/internal/order"
	"vistream/billing-service/internal/plan"

	"github.com/google/uuid"
)

// Orchestrator creates payment orders. The order row is durably pending
// before the gateway is called, so a callback racing the create response
// always finds something to resolve.
type Orchestrator struct {
	plans   PlanCatalog
	orders  OrderStore
	gateway Gateway
	logger  *slog.Logger
}

func NewOrchestrator(plans PlanCatalog, orders OrderStore, gw Gateway, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{plans: plans, orders: orders, gateway: gw, logger: logger}
}

// CreateOrder resolves the plan and amount, persists a pending order with
// the amount fixed as the authoritative value, registers the intent with the
// gateway, and returns the order carrying the payable URL.
func (c *Orchestrator) CreateOrder(ctx context.Context, ident Identity, planCode string, period plan.Period) (*order.Order, error) {
	if ident.Admin {
		return nil, ErrAdminPurchase
	}

	p, err := c.plans.ByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, plan.ErrPlanNotFound
	}

	amount, err := plan.AmountFor(p, period)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	orderInfo := fmt.Sprintf("%s plan, %s billing", p.Name, period)
	req := c.gateway.BuildCreate(orderID, orderID, orderInfo, amount)

	rawReq, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	o := &order.Order{
		ID:            orderID,
		RequestID:     orderID,
		UserID:        ident.UserID,
		PlanCode:      p.Code,
		Period:        string(period),
		Amount:        amount,
		CreatePayload: rawReq,
	}
	if err := c.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	resp, err := c.gateway.Create(ctx, req)
	if err != nil {
		c.logger.Error("gateway create failed", "order_id", orderID, "err", err)
		if _, ferr := c.orders.MarkFailed(ctx, orderID, "gateway_create_failed", nil); ferr != nil {
			c.logger.Error("mark order failed after gateway error", "order_id", orderID, "err", ferr)
		}
		return nil, err
	}
	if resp.ResultCode != 0 {
		c.logger.Warn("gateway refused order", "order_id", orderID, "result_code", resp.ResultCode, "message", resp.Message)
		if _, ferr := c.orders.MarkFailed(ctx, orderID, fmt.Sprintf("gateway_rc_%d", resp.ResultCode), resp.Raw); ferr != nil {
			c.logger.Error("mark order failed after gateway refusal", "order_id", orderID, "err", ferr)
		}
		return nil, fmt.Errorf("%w: rc=%d %s", ErrGatewayRejected, resp.ResultCode, resp.Message)
	}

	if err := c.orders.SetPayURL(ctx, orderID, resp.PayURL, resp.Raw); err != nil {
		return nil, err
	}
	o.PayURL = resp.PayURL

	c.logger.Info("order created", "order_id", orderID, "user_id", ident.UserID, "plan", p.Code, "period", period, "amount", amount)
	return o, nil
}
