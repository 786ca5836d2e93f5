package plan

import (
	"errors"
	"time"
)

type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

var (
	ErrPlanNotFound       = errors.New("plan not found")
	ErrInvalidPriceConfig = errors.New("plan has no valid price for period")
	ErrUnknownPeriod      = errors.New("unknown billing period")
)

type Plan struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	PriceMonthly int64     `json:"price_monthly"`
	PriceYearly  int64     `json:"price_yearly"`
	DurationDays int       `json:"duration_days"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AmountFor resolves the payable amount for a billing period. A yearly
// purchase falls back to the monthly price when no positive yearly price is
// configured.
func AmountFor(p *Plan, period Period) (int64, error) {
	switch period {
	case PeriodMonthly:
	case PeriodYearly:
		if p.PriceYearly > 0 {
			return p.PriceYearly, nil
		}
	default:
		return 0, ErrUnknownPeriod
	}

	if p.PriceMonthly <= 0 {
		return 0, ErrInvalidPriceConfig
	}
	return p.PriceMonthly, nil
}
