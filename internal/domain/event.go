package domain

import (
	"context"
	"time"
)

// RegistrationStatus is the lifecycle state of a registration entry.
// Confirmed -> Cancelled (members only), Waitlisted -> Confirmed (promotion)
// -> Cancelled. Cancelled never regresses; a fresh registration after
// cancellation re-enters at Confirmed or Waitlisted.
type RegistrationStatus string

const (
	StatusConfirmed  RegistrationStatus = "Confirmed"
	StatusWaitlisted RegistrationStatus = "Waitlisted"
	StatusCancelled  RegistrationStatus = "Cancelled"
)

// Active reports whether the entry currently occupies a registration
// (confirmed or waiting), i.e. is not cancelled.
func (s RegistrationStatus) Active() bool {
	return s == StatusConfirmed || s == StatusWaitlisted
}

// MemberRegistration is one member's registration entry on an event.
// swagger:model MemberRegistration
type MemberRegistration struct {
	MemberID         string             `json:"member_id"`
	Status           RegistrationStatus `json:"status"`
	RegistrationDate time.Time          `json:"registration_date"`
}

// GuestRegistration is an unauthenticated guest's registration entry.
// Email is stored lowercase and is unique per event. Guests have no
// cancellation flow but do participate in waitlist promotion.
// swagger:model GuestRegistration
type GuestRegistration struct {
	Name             string             `json:"name"`
	Email            string             `json:"email"`
	Phone            string             `json:"phone,omitempty"`
	Status           RegistrationStatus `json:"status"`
	RegistrationDate time.Time          `json:"registration_date"`
}

// Event is the canonical event document. Version guards the registration
// lists: every successful ApplyRegistrationChange increments it, and writes
// conditioned on a stale version fail with ErrVersionConflict.
//
// Empty Regions/Campuses means unrestricted.
// swagger:model Event
type Event struct {
	ID                 string               `json:"id"`
	Name               string               `json:"name"`
	Description        string               `json:"description"`
	Location           string               `json:"location"`
	Date               time.Time            `json:"date"`
	Capacity           int                  `json:"capacity"`
	Image              *string              `json:"image,omitempty"`
	Regions            []string             `json:"regions"`
	Campuses           []string             `json:"campuses"`
	CreatedBy          string               `json:"created_by"`
	Version            int64                `json:"-"`
	RegisteredMembers  []MemberRegistration `json:"registered_members"`
	GuestRegistrations []GuestRegistration  `json:"guest_registrations"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// NewEvent returns a new Event with the given fields. ID is assigned by the
// repository on create.
func NewEvent(name, description, location string, date time.Time, capacity int, regions, campuses []string, createdBy string, createdAt time.Time) *Event {
	return &Event{
		Name:        name,
		Description: description,
		Location:    location,
		Date:        date,
		Capacity:    capacity,
		Regions:     regions,
		Campuses:    campuses,
		CreatedBy:   createdBy,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ConfirmedCount counts Confirmed entries across members and guests.
// Both lists consume the same physical capacity.
func (e *Event) ConfirmedCount() int {
	n := 0
	for _, m := range e.RegisteredMembers {
		if m.Status == StatusConfirmed {
			n++
		}
	}
	for _, g := range e.GuestRegistrations {
		if g.Status == StatusConfirmed {
			n++
		}
	}
	return n
}

// EligibleFor reports whether a member with the given region and campus may
// view and register for this event. An empty restriction set matches all.
func (e *Event) EligibleFor(region, campus string) bool {
	return containsOrEmpty(e.Regions, region) && containsOrEmpty(e.Campuses, campus)
}

// VisibleTo implements the listing predicate: admins see everything, leaders
// see their own events plus region/campus matches, members see region/campus
// matches only.
func (e *Event) VisibleTo(u *User) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleLeader:
		return e.CreatedBy == u.ID || e.EligibleFor(u.Region, u.Campus)
	default:
		return e.EligibleFor(u.Region, u.Campus)
	}
}

func containsOrEmpty(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// EventInput carries the caller-supplied fields for create and update.
type EventInput struct {
	Name        string
	Description string
	Location    string
	Date        time.Time
	Capacity    int
	Image       *string
	Regions     []string
	Campuses    []string
}

// GuestInput carries an unauthenticated guest registration request.
type GuestInput struct {
	Name  string
	Email string
	Phone string
}

// RegistrationResult is the outcome of a registration request. Registration
// never fails on capacity: a full event yields Waitlisted. AlreadyRegistered
// marks an idempotent no-op that returned the existing status.
// swagger:model RegistrationResult
type RegistrationResult struct {
	Status            RegistrationStatus `json:"status"`
	AlreadyRegistered bool               `json:"already_registered"`
}

// EventRepository defines the interface for event storage. List and
// ListUpcomingByCreators return events without their registration lists;
// GetByID loads the full document.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context) ([]*Event, error)
	ListUpcomingByCreators(ctx context.Context, creatorIDs []string, from time.Time) ([]*Event, error)
	Update(ctx context.Context, event *Event) error
	Delete(ctx context.Context, id string) error

	// ApplyRegistrationChange atomically upserts the given registration
	// entries, keyed by member id and guest email, provided the stored
	// version still equals version. The stored version is incremented on
	// success. Returns ErrVersionConflict on a lost-update race.
	ApplyRegistrationChange(ctx context.Context, eventID string, version int64, members []MemberRegistration, guests []GuestRegistration) error
}

// EventService defines the event-facing business operations.
type EventService interface {
	CreateEvent(ctx context.Context, callerID string, input *EventInput) (*Event, error)
	GetEvent(ctx context.Context, callerID, eventID string) (*Event, error)
	ListEvents(ctx context.Context, callerID string) ([]*Event, error)
	ListPublicEvents(ctx context.Context) ([]*Event, error)
	UpdateEvent(ctx context.Context, callerID, eventID string, input *EventInput) (*Event, error)
	DeleteEvent(ctx context.Context, callerID, eventID string) error

	RegisterMember(ctx context.Context, callerID, eventID string) (*RegistrationResult, error)
	RegisterGuest(ctx context.Context, eventID string, guest GuestInput) (*RegistrationResult, error)
	CancelRegistration(ctx context.Context, callerID, eventID string) error
}
