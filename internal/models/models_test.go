package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestContestStatus(t *testing.T) {
	start := date(2025, 1, 1)
	end := date(2025, 1, 31)

	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		now   time.Time
		want  ContestStatus
	}{
		{name: "no dates", now: *date(2025, 1, 15), want: ContestStatusUnknown},
		{name: "before start", start: start, end: end, now: *date(2024, 12, 31), want: ContestStatusUpcoming},
		{name: "at start", start: start, end: end, now: *start, want: ContestStatusCurrent},
		{name: "middle", start: start, end: end, now: *date(2025, 1, 15), want: ContestStatusCurrent},
		{name: "at end", start: start, end: end, now: *end, want: ContestStatusCurrent},
		{name: "after end", start: start, end: end, now: *date(2025, 2, 1), want: ContestStatusPast},
		{name: "only start, before", start: start, now: *date(2024, 6, 1), want: ContestStatusUpcoming},
		{name: "only start, after", start: start, now: *date(2030, 6, 1), want: ContestStatusCurrent},
		{name: "only end, before", end: end, now: *date(2020, 6, 1), want: ContestStatusCurrent},
		{name: "only end, after", end: end, now: *date(2025, 3, 1), want: ContestStatusPast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Contest{StartDate: tt.start, EndDate: tt.end}
			assert.Equal(t, tt.want, c.Status(tt.now))
		})
	}
}

func TestContestStatus_MonotonicInTime(t *testing.T) {
	c := &Contest{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)}
	order := map[ContestStatus]int{
		ContestStatusUpcoming: 0,
		ContestStatusCurrent:  1,
		ContestStatusPast:     2,
	}

	prev := -1
	for now := *date(2024, 12, 1); now.Before(*date(2025, 3, 1)); now = now.Add(7 * time.Hour) {
		status := c.Status(now)
		rank, ok := order[status]
		require.True(t, ok, "dated contest must never be unknown")
		assert.GreaterOrEqual(t, rank, prev, "status regressed at %s", now)
		prev = rank
	}
}

func TestContest_IsJury(t *testing.T) {
	c := &Contest{JuryMembers: []string{"Alice", "bob"}}

	assert.True(t, c.IsJury("alice"))
	assert.True(t, c.IsJury("BOB"))
	assert.False(t, c.IsJury("carol"))
	assert.False(t, c.IsJury(""))
}

func TestContest_MarksFor(t *testing.T) {
	c := &Contest{MarksSettingAccepted: 10, MarksSettingRejected: -2}

	assert.Equal(t, 10, c.MarksFor(SubmissionStatusAccepted))
	assert.Equal(t, -2, c.MarksFor(SubmissionStatusRejected))
	assert.Equal(t, 0, c.MarksFor(SubmissionStatusPending))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "women-in-red-2025", Slugify("  Women in Red: 2025! "))
	assert.Equal(t, "asian-month", Slugify("Asian---Month"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestNormalizeJury(t *testing.T) {
	got := NormalizeJury([]string{" Alice ", "", "alice", "Bob", "BOB", "carol"})
	assert.Equal(t, []string{"Alice", "Bob", "carol"}, got)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("moderator")
	assert.Error(t, err)
}

func TestRoleCapabilities(t *testing.T) {
	assert.Equal(t, Capabilities{}, RoleUser.Capabilities())

	admin := RoleAdmin.Capabilities()
	assert.True(t, admin.ManageContests)
	assert.True(t, admin.ReviewAny)
	assert.True(t, admin.ManageRoles)
	assert.False(t, admin.GrantSuperadmin)

	assert.True(t, RoleSuperadmin.Capabilities().GrantSuperadmin)
	assert.Equal(t, Capabilities{}, Role("bogus").Capabilities())
}

func TestParseSubmissionType(t *testing.T) {
	st, err := ParseSubmissionType("")
	require.NoError(t, err)
	assert.Equal(t, SubmissionTypeBoth, st)

	st, err = ParseSubmissionType("NEW")
	require.NoError(t, err)
	assert.Equal(t, SubmissionTypeNew, st)

	_, err = ParseSubmissionType("translation")
	assert.Error(t, err)
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("Accepted")
	require.NoError(t, err)
	assert.Equal(t, SubmissionStatusAccepted, d)

	_, err = ParseDecision("pending")
	assert.Error(t, err)
}

func TestUser_Linkage(t *testing.T) {
	oauthID := "12345"
	u := &User{OAuthID: &oauthID}
	assert.True(t, u.IsOAuthLinked())
	assert.False(t, u.HasPassword())

	u = &User{PasswordHash: "$2a$..."}
	assert.False(t, u.IsOAuthLinked())
	assert.True(t, u.HasPassword())
}

func TestUser_EmailOnlyInProfile(t *testing.T) {
	email := "carol@example.org"
	oauthID := "77"
	u := &User{ID: 3, Username: "carol", Email: &email, PasswordHash: "hash", OAuthID: &oauthID, Role: RoleUser}

	public, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(public), email)
	assert.NotContains(t, string(public), "hash")

	profile := u.Profile()
	assert.Equal(t, &email, profile.Email)
	assert.True(t, profile.HasPassword)
	assert.True(t, profile.OAuthLinked)

	owned, err := json.Marshal(profile)
	require.NoError(t, err)
	assert.Contains(t, string(owned), `"email":"carol@example.org"`)
}
