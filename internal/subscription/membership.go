package subscription

import "time"

// Membership is the read contract consumed by route guards elsewhere in the
// platform.
type Membership struct {
	Active    bool       `json:"active"`
	Plan      string     `json:"plan,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// MembershipOf evaluates entitlement at a point in time. Administrators are
// always entitled and bypass the ledger entirely.
func MembershipOf(sub *Subscription, admin bool, now time.Time) Membership {
	if admin {
		return Membership{Active: true}
	}
	if sub == nil {
		return Membership{}
	}

	m := Membership{
		Plan:      sub.PlanCode,
		ExpiresAt: &sub.ExpiresAt,
	}
	m.Active = sub.Status == StatusActive && sub.ExpiresAt.After(now)
	return m
}
