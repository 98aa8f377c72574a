package domain

import (
	"strings"
	"time"
)

// The registration engine: pure decision functions over an event snapshot.
// Callers pass the snapshot by value semantics (the functions never mutate
// it or retain references) and persist the returned entries through
// EventRepository.ApplyRegistrationChange.

// RegistrantKind discriminates member and guest registrants.
type RegistrantKind string

const (
	KindMember RegistrantKind = "member"
	KindGuest  RegistrantKind = "guest"
)

// Registrant describes who is registering.
type Registrant struct {
	Kind     RegistrantKind
	MemberID string
	Name     string
	Email    string
	Phone    string
}

// MemberRegistrant returns a member registrant descriptor.
func MemberRegistrant(memberID string) Registrant {
	return Registrant{Kind: KindMember, MemberID: memberID}
}

// GuestRegistrant returns a guest registrant descriptor. The email is
// normalized to lowercase.
func GuestRegistrant(name, email, phone string) Registrant {
	return Registrant{
		Kind:  KindGuest,
		Name:  strings.TrimSpace(name),
		Email: strings.ToLower(strings.TrimSpace(email)),
		Phone: strings.TrimSpace(phone),
	}
}

// Decision is the outcome of DecideRegistration. When AlreadyRegistered is
// true no mutation is needed and Status holds the existing entry's status.
// Otherwise exactly one of Member or Guest is the entry to upsert.
type Decision struct {
	AlreadyRegistered bool
	Status            RegistrationStatus
	Member            *MemberRegistration
	Guest             *GuestRegistration
}

// DecideRegistration computes the effect of a registration request against
// the event snapshot. Capacity counts Confirmed members and guests together;
// a full event degrades to Waitlisted, never a rejection. Re-registering an
// active entry is an idempotent no-op; a member's Cancelled entry is
// replaced in place and re-evaluated against current capacity.
//
// Eligibility (region/campus) is the caller's concern, not the engine's.
func DecideRegistration(e *Event, r Registrant, now time.Time) (Decision, error) {
	if e == nil || e.Capacity <= 0 {
		return Decision{}, ErrInvalidInput
	}
	switch r.Kind {
	case KindMember:
		return decideMemberRegistration(e, r, now)
	case KindGuest:
		return decideGuestRegistration(e, r, now)
	default:
		return Decision{}, ErrInvalidInput
	}
}

func decideMemberRegistration(e *Event, r Registrant, now time.Time) (Decision, error) {
	if r.MemberID == "" {
		return Decision{}, ErrInvalidInput
	}
	for _, m := range e.RegisteredMembers {
		if m.MemberID != r.MemberID {
			continue
		}
		if m.Status.Active() {
			return Decision{AlreadyRegistered: true, Status: m.Status}, nil
		}
		// Cancelled: re-register by replacing the entry's status and date.
		break
	}
	status := admissionStatus(e)
	return Decision{
		Status: status,
		Member: &MemberRegistration{
			MemberID:         r.MemberID,
			Status:           status,
			RegistrationDate: now,
		},
	}, nil
}

func decideGuestRegistration(e *Event, r Registrant, now time.Time) (Decision, error) {
	if r.Name == "" || r.Email == "" {
		return Decision{}, ErrInvalidInput
	}
	for _, g := range e.GuestRegistrations {
		if strings.EqualFold(g.Email, r.Email) {
			return Decision{AlreadyRegistered: true, Status: g.Status}, nil
		}
	}
	status := admissionStatus(e)
	return Decision{
		Status: status,
		Guest: &GuestRegistration{
			Name:             r.Name,
			Email:            r.Email,
			Phone:            r.Phone,
			Status:           status,
			RegistrationDate: now,
		},
	}, nil
}

// admissionStatus returns Confirmed while confirmed entries (members and
// guests combined) are below capacity, Waitlisted otherwise. A Cancelled
// entry being replaced is never Confirmed, so it needs no exclusion here.
func admissionStatus(e *Event) RegistrationStatus {
	if e.ConfirmedCount() < e.Capacity {
		return StatusConfirmed
	}
	return StatusWaitlisted
}

// CancellationEffect is the set of entries to persist for a cancellation:
// the cancelled member entry plus at most one promoted entry from either
// list.
type CancellationEffect struct {
	Cancelled      MemberRegistration
	PromotedMember *MemberRegistration
	PromotedGuest  *GuestRegistration
}

// DecideCancellation computes the effect of a member cancelling their
// registration. If the cancellation frees confirmed capacity, the
// earliest-registered Waitlisted entry across both lists is promoted.
// Registration date is the sole ordering key; on an exact tie the member
// list takes precedence. Returns ErrNotRegistered when the member has no
// active entry.
func DecideCancellation(e *Event, memberID string) (CancellationEffect, error) {
	if e == nil || memberID == "" {
		return CancellationEffect{}, ErrInvalidInput
	}

	var entry *MemberRegistration
	for i := range e.RegisteredMembers {
		if e.RegisteredMembers[i].MemberID == memberID && e.RegisteredMembers[i].Status.Active() {
			entry = &e.RegisteredMembers[i]
			break
		}
	}
	if entry == nil {
		return CancellationEffect{}, ErrNotRegistered
	}

	effect := CancellationEffect{
		Cancelled: MemberRegistration{
			MemberID:         entry.MemberID,
			Status:           StatusCancelled,
			RegistrationDate: entry.RegistrationDate,
		},
	}

	confirmedAfter := e.ConfirmedCount()
	if entry.Status == StatusConfirmed {
		confirmedAfter--
	}
	if confirmedAfter >= e.Capacity {
		return effect, nil
	}

	// Promote the earliest waitlisted entry, scanning both lists so neither
	// members nor guests starve.
	var bestMember *MemberRegistration
	for i := range e.RegisteredMembers {
		m := &e.RegisteredMembers[i]
		if m.MemberID == memberID || m.Status != StatusWaitlisted {
			continue
		}
		if bestMember == nil || m.RegistrationDate.Before(bestMember.RegistrationDate) {
			bestMember = m
		}
	}
	var bestGuest *GuestRegistration
	for i := range e.GuestRegistrations {
		g := &e.GuestRegistrations[i]
		if g.Status != StatusWaitlisted {
			continue
		}
		if bestGuest == nil || g.RegistrationDate.Before(bestGuest.RegistrationDate) {
			bestGuest = g
		}
	}

	switch {
	case bestMember != nil && (bestGuest == nil || !bestGuest.RegistrationDate.Before(bestMember.RegistrationDate)):
		promoted := *bestMember
		promoted.Status = StatusConfirmed
		effect.PromotedMember = &promoted
	case bestGuest != nil:
		promoted := *bestGuest
		promoted.Status = StatusConfirmed
		effect.PromotedGuest = &promoted
	}
	return effect, nil
}
