package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargetMatches(t *testing.T) {
	admin := &Identity{UserID: "u-admin", Role: RoleAdmin}
	owner := &Identity{UserID: "u-1", Role: RoleUser}
	other := &Identity{UserID: "u-2", Role: RoleUser}

	tests := []struct {
		name   string
		target Target
		id     *Identity
		want   bool
	}{
		{"admins/admin", TargetAdmins(), admin, true},
		{"admins/user", TargetAdmins(), owner, false},
		{"admins/anonymous", TargetAdmins(), nil, false},
		{"admins+user/owner", TargetAdminsAndUser("u-1"), owner, true},
		{"admins+user/other", TargetAdminsAndUser("u-1"), other, false},
		{"admins+user/admin for someone else", TargetAdminsAndUser("u-9"), admin, true},
		{"admins+user/anonymous", TargetAdminsAndUser("u-1"), nil, false},
		{"admins+empty behaves as admins", TargetAdminsAndUser(""), &Identity{Role: RoleUser}, false},
		{"everyone/anonymous", TargetEveryone(), nil, true},
		{"everyone/user", TargetEveryone(), other, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.target.Matches(tt.id))
		})
	}
}

func TestParseOutcome(t *testing.T) {
	for _, s := range []string{"valid", "invalid", "already_used"} {
		st, ok := ParseOutcome(s)
		require.True(t, ok, s)
		require.True(t, st.IsTerminal())
	}
	for _, s := range []string{"pending", "", "VALID", "approved"} {
		_, ok := ParseOutcome(s)
		require.False(t, ok, s)
	}
}

func TestEventConstructors(t *testing.T) {
	anon := VerificationRequest{ID: "r1"}
	require.Equal(t, "admins", RequestCreated(anon).Target.String())

	owned := VerificationRequest{ID: "r2", OwnerUserID: "u-1"}
	ev := RequestStatusChanged(owned)
	require.Equal(t, EventRequestStatusChanged, ev.Kind)
	require.Equal(t, "admins+u-1", ev.Target.String())

	p := PresenceCountChanged(3)
	require.Equal(t, 3, p.Payload)
	require.True(t, p.Target.Matches(nil))
}
