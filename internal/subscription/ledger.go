package subscription

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

var ErrNoSubscription = errors.New("no subscription")

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// Subscription is the single membership record a user can hold.
type Subscription struct {
	UserID    uuid.UUID `json:"user_id"`
	PlanCode  string    `json:"plan_code"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Activate grants durationDays of membership. An active, unexpired
// subscription keeps its start and has its expiry pushed forward; anything
// else is replaced with a fresh window starting now. The upsert is a single
// statement keyed on user_id, so concurrent activations for the same user
// serialize on the row instead of creating duplicates.
func (l *Ledger) Activate(ctx context.Context, userID uuid.UUID, planCode string, durationDays int) (time.Time, error) {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback(ctx)

	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, plan_code, status, started_at, expires_at, updated_at)
		VALUES ($1, $2, 'active', NOW(), NOW() + make_interval(days => $3), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET plan_code = EXCLUDED.plan_code,
		    status = 'active',
		    started_at = CASE
		        WHEN subscriptions.status = 'active' AND subscriptions.expires_at > NOW()
		        THEN subscriptions.started_at
		        ELSE NOW()
		    END,
		    expires_at = CASE
		        WHEN subscriptions.status = 'active' AND subscriptions.expires_at > NOW()
		        THEN subscriptions.expires_at + make_interval(days => $3)
		        ELSE NOW() + make_interval(days => $3)
		    END,
		    updated_at = NOW()
		RETURNING expires_at`,
		userID, planCode, durationDays,
	).Scan(&expiresAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("activate subscription: %w", err)
	}

	event := contracts.SubscriptionActivatedEvent{
		EventID:     uuid.New().String(),
		UserID:      userID.String(),
		PlanCode:    planCode,
		ExpiresAt:   expiresAt,
		ActivatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshal activation event: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO billing_outbox (event_id, event_type, payload)
		VALUES ($1, $2, $3)`,
		event.EventID, contracts.EventTypeSubscriptionActivated, payload,
	); err != nil {
		return time.Time{}, fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// Get reports the stored record with its status evaluated against now: the
// row is not rewritten when a window lapses, so a stale 'active' past its
// expiry reads back as expired.
func (l *Ledger) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := l.pool.QueryRow(ctx, `
		SELECT user_id, plan_code, status, started_at, expires_at
		FROM subscriptions
		WHERE user_id = $1`, userID,
	).Scan(&sub.UserID, &sub.PlanCode, &sub.Status, &sub.StartedAt, &sub.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	if sub.Status == StatusActive && !sub.ExpiresAt.After(time.Now()) {
		sub.Status = StatusExpired
	}
	return &sub, nil
}
