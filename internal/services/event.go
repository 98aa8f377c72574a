package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"communityevents/internal/domain"
)

const (
	// Bounded retry for optimistic-concurrency conflicts on the event
	// version before surfacing ErrServerBusy.
	maxConflictRetries  = 3
	conflictRetryDelay  = 25 * time.Millisecond
	maxEventCapacity    = 100_000
	maxRestrictionItems = 100
)

type eventService struct {
	eventRepo      domain.EventRepository
	userRepo       domain.UserRepository
	emailService   domain.EmailService
	contextTimeout time.Duration
}

// NewEventService creates an EventService. emailService may be nil; emails
// are best-effort notifications and never fail a registration.
func NewEventService(
	eventRepo domain.EventRepository,
	userRepo domain.UserRepository,
	emailService domain.EmailService,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		userRepo:       userRepo,
		emailService:   emailService,
		contextTimeout: timeout,
	}
}

func validateEventInput(input *domain.EventInput) error {
	if input == nil {
		return domain.ErrInvalidInput
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Description) == "" || strings.TrimSpace(input.Location) == "" {
		return fmt.Errorf("%w: name, description and location are required", domain.ErrInvalidInput)
	}
	if input.Date.IsZero() {
		return fmt.Errorf("%w: date is required", domain.ErrInvalidInput)
	}
	if input.Capacity <= 0 || input.Capacity > maxEventCapacity {
		return fmt.Errorf("%w: capacity must be between 1 and %d", domain.ErrInvalidInput, maxEventCapacity)
	}
	if len(input.Regions) > maxRestrictionItems || len(input.Campuses) > maxRestrictionItems {
		return fmt.Errorf("%w: too many regions or campuses", domain.ErrInvalidInput)
	}
	return nil
}

func (s *eventService) CreateEvent(ctx context.Context, callerID string, input *domain.EventInput) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	caller, err := s.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller.Role != domain.RoleAdmin && caller.Role != domain.RoleLeader {
		return nil, domain.ErrForbidden
	}
	if err := validateEventInput(input); err != nil {
		return nil, err
	}

	regions := input.Regions
	campuses := input.Campuses

	// Default fan-out: an event created without restrictions targets a
	// snapshot of the regions/campuses known at creation time. Regions
	// added later do not retroactively gain access.
	if len(regions) == 0 {
		regions, err = s.userRepo.ListRegions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list regions: %w", err)
		}
	}
	if len(campuses) == 0 {
		campuses, err = s.userRepo.ListCampuses(ctx)
		if err != nil {
			return nil, fmt.Errorf("list campuses: %w", err)
		}
	}

	now := time.Now()
	event := domain.NewEvent(
		strings.TrimSpace(input.Name),
		input.Description,
		strings.TrimSpace(input.Location),
		input.Date,
		input.Capacity,
		regions,
		campuses,
		caller.ID,
		now,
	)
	event.Image = input.Image

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, callerID, eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	caller, err := s.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if !event.VisibleTo(caller) {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, callerID string) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	caller, err := s.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	all, err := s.eventRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	visible := make([]*domain.Event, 0, len(all))
	for _, e := range all {
		if e.VisibleTo(caller) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

func (s *eventService) ListPublicEvents(ctx context.Context) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	adminIDs, err := s.userRepo.ListIDsByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	if len(adminIDs) == 0 {
		return []*domain.Event{}, nil
	}

	today := time.Now().Truncate(24 * time.Hour)
	events, err := s.eventRepo.ListUpcomingByCreators(ctx, adminIDs, today)
	if err != nil {
		return nil, fmt.Errorf("list public events: %w", err)
	}
	// Registration lists are stripped for the public listing.
	for _, e := range events {
		e.RegisteredMembers = nil
		e.GuestRegistrations = nil
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, callerID, eventID string, input *domain.EventInput) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	caller, err := s.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := s.authorizeOwner(caller, event); err != nil {
		return nil, err
	}
	if err := validateEventInput(input); err != nil {
		return nil, err
	}

	event.Name = strings.TrimSpace(input.Name)
	event.Description = input.Description
	event.Location = strings.TrimSpace(input.Location)
	event.Date = input.Date
	event.Capacity = input.Capacity
	event.Image = input.Image
	event.Regions = input.Regions
	event.Campuses = input.Campuses
	event.UpdatedAt = time.Now()

	if err := s.eventRepo.Update(ctx, event); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, callerID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	caller, err := s.caller(ctx, callerID)
	if err != nil {
		return err
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if err := s.authorizeOwner(caller, event); err != nil {
		return err
	}
	if err := s.eventRepo.Delete(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// authorizeOwner allows admins unconditionally; leaders only for events
// they created.
func (s *eventService) authorizeOwner(caller *domain.User, event *domain.Event) error {
	if caller.Role == domain.RoleAdmin {
		return nil
	}
	if caller.Role == domain.RoleLeader && event.CreatedBy == caller.ID {
		return nil
	}
	return domain.ErrForbidden
}

func (s *eventService) RegisterMember(ctx context.Context, callerID, eventID string) (*domain.RegistrationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	caller, err := s.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller.Role != domain.RoleMember {
		return nil, domain.ErrForbidden
	}

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		event, err := s.eventRepo.GetByID(ctx, eventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrNotFound
			}
			return nil, fmt.Errorf("get event: %w", err)
		}
		if !event.EligibleFor(caller.Region, caller.Campus) {
			return nil, domain.ErrNotEligible
		}

		dec, err := domain.DecideRegistration(event, domain.MemberRegistrant(caller.ID), time.Now())
		if err != nil {
			return nil, err
		}
		if dec.AlreadyRegistered {
			return &domain.RegistrationResult{Status: dec.Status, AlreadyRegistered: true}, nil
		}

		err = s.eventRepo.ApplyRegistrationChange(ctx, event.ID, event.Version, []domain.MemberRegistration{*dec.Member}, nil)
		if errors.Is(err, domain.ErrVersionConflict) {
			if !s.backoff(ctx, attempt) {
				break
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("apply registration: %w", err)
		}
		return &domain.RegistrationResult{Status: dec.Status}, nil
	}
	return nil, domain.ErrServerBusy
}

func (s *eventService) RegisterGuest(ctx context.Context, eventID string, guest domain.GuestInput) (*domain.RegistrationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	registrant := domain.GuestRegistrant(guest.Name, guest.Email, guest.Phone)

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		event, err := s.eventRepo.GetByID(ctx, eventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrNotFound
			}
			return nil, fmt.Errorf("get event: %w", err)
		}

		dec, err := domain.DecideRegistration(event, registrant, time.Now())
		if err != nil {
			return nil, err
		}
		if dec.AlreadyRegistered {
			return &domain.RegistrationResult{Status: dec.Status, AlreadyRegistered: true}, nil
		}

		err = s.eventRepo.ApplyRegistrationChange(ctx, event.ID, event.Version, nil, []domain.GuestRegistration{*dec.Guest})
		if errors.Is(err, domain.ErrVersionConflict) {
			if !s.backoff(ctx, attempt) {
				break
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("apply guest registration: %w", err)
		}

		s.notifyRegistration(ctx, dec.Guest, event)
		return &domain.RegistrationResult{Status: dec.Status}, nil
	}
	return nil, domain.ErrServerBusy
}

func (s *eventService) CancelRegistration(ctx context.Context, callerID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	caller, err := s.caller(ctx, callerID)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		event, err := s.eventRepo.GetByID(ctx, eventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get event: %w", err)
		}

		effect, err := domain.DecideCancellation(event, caller.ID)
		if err != nil {
			return err
		}

		// The cancellation and the promotion it triggers are one atomic
		// write; a conflict or crash between them cannot leave the event
		// under-capacity.
		members := []domain.MemberRegistration{effect.Cancelled}
		if effect.PromotedMember != nil {
			members = append(members, *effect.PromotedMember)
		}
		var guests []domain.GuestRegistration
		if effect.PromotedGuest != nil {
			guests = append(guests, *effect.PromotedGuest)
		}

		err = s.eventRepo.ApplyRegistrationChange(ctx, event.ID, event.Version, members, guests)
		if errors.Is(err, domain.ErrVersionConflict) {
			if !s.backoff(ctx, attempt) {
				break
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("apply cancellation: %w", err)
		}

		s.notifyPromotion(ctx, effect, event)
		return nil
	}
	return domain.ErrServerBusy
}

// backoff sleeps before the next conflict retry. Returns false when the
// context expired, in which case the caller gives up.
func (s *eventService) backoff(ctx context.Context, attempt int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(conflictRetryDelay * time.Duration(attempt+1)):
		return true
	}
}

func (s *eventService) caller(ctx context.Context, callerID string) (*domain.User, error) {
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get caller: %w", err)
	}
	return caller, nil
}

func (s *eventService) notifyRegistration(ctx context.Context, guest *domain.GuestRegistration, event *domain.Event) {
	if s.emailService == nil || guest == nil {
		return
	}
	_ = s.emailService.SendRegistrationReceipt(ctx, &domain.RegistrationEmailData{
		Email:     guest.Email,
		Name:      guest.Name,
		EventName: event.Name,
		EventDate: event.Date,
		Status:    guest.Status,
	})
}

func (s *eventService) notifyPromotion(ctx context.Context, effect domain.CancellationEffect, event *domain.Event) {
	if s.emailService == nil {
		return
	}
	switch {
	case effect.PromotedGuest != nil:
		g := effect.PromotedGuest
		_ = s.emailService.SendWaitlistPromotion(ctx, &domain.PromotionEmailData{
			Email:     g.Email,
			Name:      g.Name,
			EventName: event.Name,
			EventDate: event.Date,
		})
	case effect.PromotedMember != nil:
		member, err := s.userRepo.GetByID(ctx, effect.PromotedMember.MemberID)
		if err != nil || member == nil {
			return
		}
		_ = s.emailService.SendWaitlistPromotion(ctx, &domain.PromotionEmailData{
			Email:     member.Email,
			Name:      member.Name,
			EventName: event.Name,
			EventDate: event.Date,
		})
	}
}
