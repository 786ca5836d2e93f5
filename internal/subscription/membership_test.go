package subscription

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMembershipOf_AdminAlwaysActive(t *testing.T) {
	m := MembershipOf(nil, true, time.Now())
	require.True(t, m.Active)
	require.Empty(t, m.Plan)
}

func TestMembershipOf_NoSubscription(t *testing.T) {
	m := MembershipOf(nil, false, time.Now())
	require.False(t, m.Active)
}

func TestMembershipOf_ActiveWindow(t *testing.T) {
	now := time.Now()
	sub := &Subscription{
		UserID:    uuid.New(),
		PlanCode:  "standard",
		Status:    StatusActive,
		StartedAt: now.AddDate(0, 0, -5),
		ExpiresAt: now.AddDate(0, 0, 25),
	}

	m := MembershipOf(sub, false, now)
	require.True(t, m.Active)
	require.Equal(t, "standard", m.Plan)
	require.Equal(t, sub.ExpiresAt, *m.ExpiresAt)
}

func TestMembershipOf_LapsedWindow(t *testing.T) {
	now := time.Now()
	sub := &Subscription{
		PlanCode:  "standard",
		Status:    StatusActive,
		ExpiresAt: now.Add(-time.Hour),
	}
	require.False(t, MembershipOf(sub, false, now).Active)

	sub.Status = StatusExpired
	sub.ExpiresAt = now.Add(time.Hour)
	require.False(t, MembershipOf(sub, false, now).Active)
}
