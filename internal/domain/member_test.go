package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemberStatus(t *testing.T) {
	cases := map[string]MemberStatus{
		"EMAIL SENT":     MemberStatusEmailSent,
		"email_sent":     MemberStatusEmailSent,
		" Reminder Sent": MemberStatusReminderSent,
		"APPROVED":       MemberStatusApproved,
		"new":            MemberStatusNew,
	}
	for in, want := range cases {
		got, err := ParseMemberStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMemberStatus("SELF-CANCEL")
	assert.Error(t, err)
}

func TestMemberStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, MemberStatusNew.CanTransitionTo(MemberStatusEmailSent))
	assert.True(t, MemberStatusEmailSent.CanTransitionTo(MemberStatusReminderSent))
	assert.True(t, MemberStatusEmailSent.CanTransitionTo(MemberStatusApproved))
	assert.True(t, MemberStatusReminderSent.CanTransitionTo(MemberStatusRejected))

	assert.False(t, MemberStatusReminderSent.CanTransitionTo(MemberStatusEmailSent))
	assert.False(t, MemberStatusApproved.CanTransitionTo(MemberStatusRejected))
	assert.False(t, MemberStatusRejected.CanTransitionTo(MemberStatusApproved))
	assert.False(t, MemberStatusEmailSent.CanTransitionTo(MemberStatusEmailSent))
}

func TestMember_UnknownStatus(t *testing.T) {
	assert.True(t, MemberStatusNew.IsKnown())
	assert.True(t, MemberStatusRejected.IsKnown())
	assert.False(t, MemberStatusUnknown.IsKnown())
	assert.False(t, MemberStatusUnknown.IsTerminal())

	m := Member{Email: "eve@clemson.edu", RawStatus: "SELF-CANCEL"}
	assert.Equal(t, "SELF-CANCEL", m.DisplayStatus())
	assert.Equal(t, "APPROVED", Member{Status: MemberStatusApproved}.DisplayStatus())
}

func TestApplicant_FirstName(t *testing.T) {
	assert.Equal(t, "David", Applicant{Name: "David Bootle"}.FirstName())
	assert.Equal(t, "Cher", Applicant{Name: "  Cher "}.FirstName())
	assert.Equal(t, "", Applicant{}.FirstName())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@clemson.edu", NormalizeEmail("  Alice@Clemson.EDU "))
}

func TestDaysBetween(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// Crosses the March DST change; still counts calendar days.
	to := time.Date(2026, 3, 9, 23, 30, 0, 0, loc)
	assert.Equal(t, 8, DaysBetween(from, to))

	assert.Equal(t, 7, DaysBetween(
		time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 16, 1, 0, 0, 0, time.UTC),
	))
	assert.Equal(t, 0, DaysBetween(to, to))
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("10/09/26", SheetDateLayout, ISODateLayout)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC), got)

	got, ok = ParseDate("2026-10-09", SheetDateLayout, ISODateLayout)
	require.True(t, ok)
	assert.Equal(t, 9, got.Day())

	_, ok = ParseDate("last tuesday", SheetDateLayout)
	assert.False(t, ok)
}

func TestInstitutionDomains_AliasEmail(t *testing.T) {
	d := InstitutionDomains{Primary: "clemson.edu", Alias: "g.clemson.edu"}

	alias, ok := d.AliasEmail("member@clemson.edu")
	require.True(t, ok)
	assert.Equal(t, "member@g.clemson.edu", alias)

	alias, ok = d.AliasEmail("Member@G.Clemson.edu")
	require.True(t, ok)
	assert.Equal(t, "member@clemson.edu", alias)

	_, ok = d.AliasEmail("someone@gmail.com")
	assert.False(t, ok)

	assert.Equal(t, []string{"member@g.clemson.edu", "member@clemson.edu"}, d.CandidateAddresses("member@g.clemson.edu"))
	assert.Equal(t, []string{"someone@gmail.com"}, d.CandidateAddresses("someone@gmail.com"))
}
