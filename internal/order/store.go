package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vistream/billing-service/pkg/contracts"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	now := time.Now().UTC()
	o.Status = StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (id, request_id, user_id, plan_code, period, amount, status, create_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		o.ID, o.RequestID, o.UserID, o.PlanCode, o.Period, o.Amount, StatusPending, o.CreatePayload, now,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, request_id, user_id, plan_code, period, amount, status, trans_id, pay_url, fail_reason, created_at, updated_at
		FROM orders
		WHERE id = $1`, id,
	).Scan(&o.ID, &o.RequestID, &o.UserID, &o.PlanCode, &o.Period, &o.Amount, &o.Status, &o.TransID, &o.PayURL, &o.FailReason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, user_id, plan_code, period, amount, status, trans_id, pay_url, fail_reason, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.RequestID, &o.UserID, &o.PlanCode, &o.Period, &o.Amount, &o.Status, &o.TransID, &o.PayURL, &o.FailReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}

	return result, rows.Err()
}

// SetPayURL records the gateway's create response on the pending order.
func (s *Store) SetPayURL(ctx context.Context, id, payURL string, rawResponse []byte) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET pay_url = $2, create_response = $3, updated_at = NOW()
		WHERE id = $1`, id, payURL, rawResponse)
	if err != nil {
		return fmt.Errorf("set pay url: %w", err)
	}
	return nil
}

// MarkPaid attempts the pending->paid transition. It returns false when the
// order is no longer pending; the caller must treat that as an idempotent
// no-op. The payment.processed event is written in the same transaction, so
// the winning transition emits it exactly once.
func (s *Store) MarkPaid(ctx context.Context, id, transID string, rawCallback []byte) (bool, error) {
	return s.transition(ctx, id, StatusPaid, transID, "", `
		UPDATE orders
		SET status = 'paid', trans_id = $2, callback_payload = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING user_id, plan_code, amount`,
		[]any{id, transID, rawCallback})
}

// MarkFailed attempts the pending->failed transition with the same guard and
// no-op semantics as MarkPaid.
func (s *Store) MarkFailed(ctx context.Context, id, reason string, rawCallback []byte) (bool, error) {
	return s.transition(ctx, id, StatusFailed, "", reason, `
		UPDATE orders
		SET status = 'failed', fail_reason = $2, callback_payload = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING user_id, plan_code, amount`,
		[]any{id, reason, rawCallback})
}

// ForceStatus is the operator override. Paid is terminal on this path too:
// the update only matches rows whose current status is not paid.
func (s *Store) ForceStatus(ctx context.Context, id string, target Status) (bool, error) {
	switch target {
	case StatusPaid:
		return s.transition(ctx, id, StatusPaid, "", "", `
			UPDATE orders
			SET status = 'paid', updated_at = NOW()
			WHERE id = $1 AND status <> 'paid'
			RETURNING user_id, plan_code, amount`,
			[]any{id})
	case StatusFailed:
		return s.transition(ctx, id, StatusFailed, "", "operator_override", `
			UPDATE orders
			SET status = 'failed', fail_reason = 'operator_override', updated_at = NOW()
			WHERE id = $1 AND status <> 'paid'
			RETURNING user_id, plan_code, amount`,
			[]any{id})
	default:
		return false, fmt.Errorf("unsupported target status %q", target)
	}
}

func (s *Store) transition(ctx context.Context, id string, target Status, transID, reason, query string, args []any) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var (
		userID   uuid.UUID
		planCode string
		amount   int64
	)
	err = tx.QueryRow(ctx, query, args...).Scan(&userID, &planCode, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already resolved by another channel.
			return false, nil
		}
		return false, fmt.Errorf("update order status: %w", err)
	}

	event := contracts.PaymentProcessedEvent{
		EventID:     uuid.New().String(),
		OrderID:     id,
		UserID:      userID.String(),
		PlanCode:    planCode,
		Amount:      amount,
		Status:      contracts.PaymentSucceeded,
		TransID:     transID,
		ProcessedAt: time.Now().UTC(),
	}
	if target == StatusFailed {
		event.Status = contracts.PaymentFailed
		event.Reason = reason
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal payment event: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO billing_outbox (event_id, event_type, payload)
		VALUES ($1, $2, $3)`,
		event.EventID, contracts.EventTypePaymentProcessed, payload,
	); err != nil {
		return false, fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
