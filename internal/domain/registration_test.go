package domain

import (
	"errors"
	"testing"
	"time"
)

func eventWithCapacity(capacity int) *Event {
	return &Event{
		ID:       "e1",
		Name:     "Summer Retreat",
		Capacity: capacity,
		Date:     time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC),
	}
}

func at(minute int) time.Time {
	return time.Date(2026, 9, 1, 12, minute, 0, 0, time.UTC)
}

func TestDecideRegistration_MemberCapacity(t *testing.T) {
	e := eventWithCapacity(2)
	e.RegisteredMembers = []MemberRegistration{
		{MemberID: "a", Status: StatusConfirmed, RegistrationDate: at(0)},
	}

	dec, err := DecideRegistration(e, MemberRegistrant("b"), at(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.AlreadyRegistered || dec.Status != StatusConfirmed {
		t.Fatalf("expected new Confirmed registration, got %+v", dec)
	}

	e.RegisteredMembers = append(e.RegisteredMembers, *dec.Member)
	dec, err = DecideRegistration(e, MemberRegistrant("c"), at(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Status != StatusWaitlisted {
		t.Fatalf("expected Waitlisted at capacity, got %s", dec.Status)
	}
}

func TestDecideRegistration_IdempotentReRegistration(t *testing.T) {
	e := eventWithCapacity(5)
	e.RegisteredMembers = []MemberRegistration{
		{MemberID: "a", Status: StatusWaitlisted, RegistrationDate: at(0)},
	}

	for i := 0; i < 2; i++ {
		dec, err := DecideRegistration(e, MemberRegistrant("a"), at(i+1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !dec.AlreadyRegistered || dec.Status != StatusWaitlisted {
			t.Fatalf("expected idempotent AlreadyRegistered(Waitlisted), got %+v", dec)
		}
		if dec.Member != nil {
			t.Fatalf("expected no entry to upsert, got %+v", dec.Member)
		}
	}
}

func TestDecideRegistration_ReRegisterAfterCancellation(t *testing.T) {
	e := eventWithCapacity(1)
	e.RegisteredMembers = []MemberRegistration{
		{MemberID: "a", Status: StatusCancelled, RegistrationDate: at(0)},
	}

	dec, err := DecideRegistration(e, MemberRegistrant("a"), at(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.AlreadyRegistered {
		t.Fatalf("cancelled entry must not block re-registration")
	}
	if dec.Status != StatusConfirmed {
		t.Fatalf("expected Confirmed on re-register with free capacity, got %s", dec.Status)
	}
	if dec.Member == nil || !dec.Member.RegistrationDate.Equal(at(5)) {
		t.Fatalf("expected replacement entry with fresh registration date, got %+v", dec.Member)
	}
}

func TestDecideRegistration_GuestSharesMemberCapacity(t *testing.T) {
	e := eventWithCapacity(1)
	e.RegisteredMembers = []MemberRegistration{
		{MemberID: "a", Status: StatusConfirmed, RegistrationDate: at(0)},
	}

	dec, err := DecideRegistration(e, GuestRegistrant("Grace", "Grace@Example.com", ""), at(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Status != StatusWaitlisted {
		t.Fatalf("guest must share member capacity, expected Waitlisted, got %s", dec.Status)
	}
	if dec.Guest.Email != "grace@example.com" {
		t.Fatalf("expected normalized email, got %q", dec.Guest.Email)
	}
}

func TestDecideRegistration_GuestDuplicateEmailCaseInsensitive(t *testing.T) {
	e := eventWithCapacity(5)
	e.GuestRegistrations = []GuestRegistration{
		{Name: "Grace", Email: "grace@example.com", Status: StatusConfirmed, RegistrationDate: at(0)},
	}

	dec, err := DecideRegistration(e, GuestRegistrant("Grace", "GRACE@example.COM", ""), at(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.AlreadyRegistered || dec.Status != StatusConfirmed {
		t.Fatalf("expected AlreadyRegistered(Confirmed), got %+v", dec)
	}
}

func TestDecideRegistration_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		event *Event
		reg   Registrant
	}{
		{"nil event", nil, MemberRegistrant("a")},
		{"zero capacity", &Event{Capacity: 0}, MemberRegistrant("a")},
		{"empty member id", eventWithCapacity(1), MemberRegistrant("")},
		{"guest without email", eventWithCapacity(1), GuestRegistrant("Grace", "", "")},
		{"unknown kind", eventWithCapacity(1), Registrant{Kind: "robot"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecideRegistration(tt.event, tt.reg, at(0)); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDecideCancellation_PromotesEarliestWaitlisted(t *testing.T) {
	// Capacity 2, members A and B confirmed, C waitlisted. Cancelling A
	// promotes C while B stays confirmed.
	e := eventWithCapacity(2)
	e.RegisteredMembers = []MemberRegistration{
		{MemberID: "a", Status: StatusConfirmed, RegistrationDate: at(0)},
		{MemberID: "b", Status: StatusConfirmed, RegistrationDate: at(1)},
		{MemberID: "c", Status: StatusWaitlisted, RegistrationDate: at(2)},
	}

	effect, err := DecideCancellation(e, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if effect.Cancelled.MemberID != "a" || effect.Cancelled.Status != StatusCancelled {
		t.Fatalf("expected a cancelled, got %+v", effect.Cancelled)
	}
	if effect.PromotedMember == nil || effect.PromotedMember.MemberID != "c" {
		t.Fatalf("expected c promoted, got %+v", effect.PromotedMember)
	}
	if effect.PromotedMember.Status != StatusConfirmed {
		t.Fatalf("promoted entry must be Confirmed, got %s", effect.PromotedMember.Status)
	}
	if effect.PromotedGuest != nil {
		t.Fatalf("expected no guest promotion, got %+v", effect.PromotedGuest)
	}
}

func TestDecideCancellation_PromotesGuestWhenEarlier(t *testing.T) {
	e := eventWithCapacity(1)
	e.RegisteredMembers = []MemberRegistration{
		{MemberID: "a", Status: StatusConfirmed, RegistrationDate: at(0)},
		{MemberID: "b", Status: StatusWaitlisted, RegistrationDate: at(5)},
	}
	e.GuestRegistrations = []GuestRegistration{
		{Name: "Grace", Email: "grace@example.com", Status: StatusWaitlisted, RegistrationDate: at(2)},
	}

	effect, err := DecideCancellation(e, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if effect.PromotedGuest == nil || effect.PromotedGuest.Email != "grace@example.com" {
		t.Fatalf("expected earlier guest promoted, got %+v", effect)
	}
	if effect.PromotedMember != nil {
		t.Fatalf("expected no member promotion, got %+v", effect.PromotedMember)
	}
}

func TestDecideCancellation_TieBreakPrefersMember(t *testing.T) {
	e := eventWithCapacity(1)
	e.RegisteredMembers = []MemberRegistration{
		{MemberID: "a", Status: StatusConfirmed, RegistrationDate: at(0)},
		{MemberID: "b", Status: StatusWaitlisted, RegistrationDate: at(3)},
	}
	e.GuestRegistrations = []GuestRegistration{
		{Name: "Grace", Email: "grace@example.com", Status: StatusWaitlisted, RegistrationDate: at(3)},
	}

	effect, err := DecideCancellation(e, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if effect.PromotedMember == nil || effect.PromotedMember.MemberID != "b" {
		t.Fatalf("expected member to win exact-timestamp tie, got %+v", effect)
	}
}

func TestDecideCancellation_WaitlistedCancelNoPromotionAtCapacity(t *testing.T) {
	// Cancelling a waitlisted entry frees no confirmed slot, so nobody is
	// promoted while the event is at capacity.
	e := eventWithCapacity(1)
	e.RegisteredMembers = []MemberRegistration{
		{MemberID: "a", Status: StatusConfirmed, RegistrationDate: at(0)},
		{MemberID: "b", Status: StatusWaitlisted, RegistrationDate: at(1)},
		{MemberID: "c", Status: StatusWaitlisted, RegistrationDate: at(2)},
	}

	effect, err := DecideCancellation(e, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if effect.PromotedMember != nil || effect.PromotedGuest != nil {
		t.Fatalf("expected no promotion, got %+v", effect)
	}
}

func TestDecideCancellation_NotRegistered(t *testing.T) {
	e := eventWithCapacity(1)
	e.RegisteredMembers = []MemberRegistration{
		{MemberID: "a", Status: StatusCancelled, RegistrationDate: at(0)},
	}

	for _, memberID := range []string{"a", "zzz"} {
		if _, err := DecideCancellation(e, memberID); !errors.Is(err, ErrNotRegistered) {
			t.Fatalf("memberID=%q: expected ErrNotRegistered, got %v", memberID, err)
		}
	}
}

func TestCapacityInvariant_RandomSequence(t *testing.T) {
	// Drive the engine through a scripted register/cancel sequence and check
	// count(Confirmed) <= capacity after every applied mutation.
	e := eventWithCapacity(3)
	clock := 0
	tick := func() time.Time { clock++; return at(clock) }

	apply := func(dec Decision) {
		if dec.Member != nil {
			replaced := false
			for i := range e.RegisteredMembers {
				if e.RegisteredMembers[i].MemberID == dec.Member.MemberID {
					e.RegisteredMembers[i] = *dec.Member
					replaced = true
				}
			}
			if !replaced {
				e.RegisteredMembers = append(e.RegisteredMembers, *dec.Member)
			}
		}
		if dec.Guest != nil {
			e.GuestRegistrations = append(e.GuestRegistrations, *dec.Guest)
		}
	}
	applyCancel := func(effect CancellationEffect) {
		for i := range e.RegisteredMembers {
			if e.RegisteredMembers[i].MemberID == effect.Cancelled.MemberID {
				e.RegisteredMembers[i] = effect.Cancelled
			}
			if effect.PromotedMember != nil && e.RegisteredMembers[i].MemberID == effect.PromotedMember.MemberID {
				e.RegisteredMembers[i] = *effect.PromotedMember
			}
		}
		if effect.PromotedGuest != nil {
			for i := range e.GuestRegistrations {
				if e.GuestRegistrations[i].Email == effect.PromotedGuest.Email {
					e.GuestRegistrations[i] = *effect.PromotedGuest
				}
			}
		}
	}

	script := []string{"r:m1", "r:m2", "g:g1@x.com", "r:m3", "g:g2@x.com", "c:m1", "r:m4", "c:m2", "g:g3@x.com", "r:m5", "c:m3", "r:m1", "r:m6", "c:m4"}

	for _, step := range script {
		op, arg := step[:1], step[2:]
		switch op {
		case "r":
			dec, err := DecideRegistration(e, MemberRegistrant(arg), tick())
			if err != nil {
				t.Fatalf("register %s: %v", arg, err)
			}
			if !dec.AlreadyRegistered {
				apply(dec)
			}
		case "g":
			dec, err := DecideRegistration(e, GuestRegistrant("Guest", arg, ""), tick())
			if err != nil {
				t.Fatalf("guest %s: %v", arg, err)
			}
			if !dec.AlreadyRegistered {
				apply(dec)
			}
		case "c":
			effect, err := DecideCancellation(e, arg)
			if err != nil && !errors.Is(err, ErrNotRegistered) {
				t.Fatalf("cancel %s: %v", arg, err)
			}
			if err == nil {
				applyCancel(effect)
			}
		}
		if got := e.ConfirmedCount(); got > e.Capacity {
			t.Fatalf("capacity invariant broken after %q: %d confirmed > capacity %d", step, got, e.Capacity)
		}
		// No duplicate active entries per member.
		active := map[string]int{}
		for _, m := range e.RegisteredMembers {
			if m.Status.Active() {
				active[m.MemberID]++
			}
		}
		for id, n := range active {
			if n > 1 {
				t.Fatalf("member %s has %d active entries after %q", id, n, step)
			}
		}
	}
}

func TestEventEligibility(t *testing.T) {
	e := eventWithCapacity(1)
	e.Regions = []string{"East"}

	if e.EligibleFor("West", "Downtown") {
		t.Fatalf("West member must not be eligible for East-only event")
	}
	if !e.EligibleFor("East", "Anywhere") {
		t.Fatalf("East member with any campus must be eligible when campuses are unrestricted")
	}
}

func TestEventVisibleTo(t *testing.T) {
	e := eventWithCapacity(1)
	e.Regions = []string{"East"}
	e.CreatedBy = "leader-1"

	tests := []struct {
		name string
		user *User
		want bool
	}{
		{"admin sees all", &User{ID: "x", Role: RoleAdmin, Region: "West"}, true},
		{"creator leader sees own", &User{ID: "leader-1", Role: RoleLeader, Region: "West"}, true},
		{"other leader outside region", &User{ID: "leader-2", Role: RoleLeader, Region: "West"}, false},
		{"member in region", &User{ID: "m1", Role: RoleMember, Region: "East"}, true},
		{"member outside region", &User{ID: "m2", Role: RoleMember, Region: "West"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.VisibleTo(tt.user); got != tt.want {
				t.Fatalf("VisibleTo = %v, want %v", got, tt.want)
			}
		})
	}
}
