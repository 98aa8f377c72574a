package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"communityevents/internal/domain"
)

// fakeEventRepo is an in-memory EventRepository with faithful
// compare-and-swap semantics for ApplyRegistrationChange.
type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.Event

	// failConflicts forces the first N ApplyRegistrationChange calls to
	// return ErrVersionConflict regardless of the version.
	failConflicts int
	applyCalls    int
}

func newFakeEventRepo(events ...*domain.Event) *fakeEventRepo {
	r := &fakeEventRepo{events: map[string]*domain.Event{}}
	for _, e := range events {
		r.events[e.ID] = e
	}
	return r
}

func (r *fakeEventRepo) snapshot(e *domain.Event) *domain.Event {
	cp := *e
	cp.RegisteredMembers = append([]domain.MemberRegistration(nil), e.RegisteredMembers...)
	cp.GuestRegistrations = append([]domain.GuestRegistration(nil), e.GuestRegistrations...)
	cp.Regions = append([]string(nil), e.Regions...)
	cp.Campuses = append([]string(nil), e.Campuses...)
	return &cp
}

func (r *fakeEventRepo) Create(ctx context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		event.ID = "generated-id"
	}
	r.events[event.ID] = r.snapshot(event)
	return nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.snapshot(e), nil
}

func (r *fakeEventRepo) List(ctx context.Context) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.events {
		out = append(out, r.snapshot(e))
	}
	return out, nil
}

func (r *fakeEventRepo) ListUpcomingByCreators(ctx context.Context, creatorIDs []string, from time.Time) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	creators := map[string]struct{}{}
	for _, id := range creatorIDs {
		creators[id] = struct{}{}
	}
	var out []*domain.Event
	for _, e := range r.events {
		if _, ok := creators[e.CreatedBy]; ok && !e.Date.Before(from) {
			out = append(out, r.snapshot(e))
		}
	}
	return out, nil
}

func (r *fakeEventRepo) Update(ctx context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.ID]; !ok {
		return domain.ErrNotFound
	}
	stored := r.snapshot(event)
	stored.RegisteredMembers = r.events[event.ID].RegisteredMembers
	stored.GuestRegistrations = r.events[event.ID].GuestRegistrations
	stored.Version = r.events[event.ID].Version
	r.events[event.ID] = stored
	return nil
}

func (r *fakeEventRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *fakeEventRepo) ApplyRegistrationChange(ctx context.Context, eventID string, version int64, members []domain.MemberRegistration, guests []domain.GuestRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyCalls++
	if r.failConflicts > 0 {
		r.failConflicts--
		return domain.ErrVersionConflict
	}
	e, ok := r.events[eventID]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Version != version {
		return domain.ErrVersionConflict
	}
	for _, m := range members {
		upserted := false
		for i := range e.RegisteredMembers {
			if e.RegisteredMembers[i].MemberID == m.MemberID {
				e.RegisteredMembers[i] = m
				upserted = true
			}
		}
		if !upserted {
			e.RegisteredMembers = append(e.RegisteredMembers, m)
		}
	}
	for _, g := range guests {
		upserted := false
		for i := range e.GuestRegistrations {
			if e.GuestRegistrations[i].Email == g.Email {
				e.GuestRegistrations[i] = g
				upserted = true
			}
		}
		if !upserted {
			e.GuestRegistrations = append(e.GuestRegistrations, g)
		}
	}
	e.Version++
	return nil
}

type fakeUserRepo struct {
	users    map[string]*domain.User
	regions  []string
	campuses []string
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error { return nil }

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) ListRegions(ctx context.Context) ([]string, error)  { return r.regions, nil }
func (r *fakeUserRepo) ListCampuses(ctx context.Context) ([]string, error) { return r.campuses, nil }

func (r *fakeUserRepo) ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	var ids []string
	for id, u := range r.users {
		if u.Role == role {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func member(id, region, campus string) *domain.User {
	return &domain.User{ID: id, Name: "User " + id, Email: id + "@example.com", Role: domain.RoleMember, Region: region, Campus: campus}
}

func testEvent(id string, capacity int) *domain.Event {
	return &domain.Event{
		ID:       id,
		Name:     "Retreat",
		Capacity: capacity,
		Date:     time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestEventService(eventRepo domain.EventRepository, userRepo domain.UserRepository) domain.EventService {
	return NewEventService(eventRepo, userRepo, nil, 5*time.Second)
}

func TestRegisterMember_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		event      *domain.Event
		caller     *domain.User
		eventID    string
		wantErr    error
		wantStatus domain.RegistrationStatus
	}{
		{
			name:       "confirmed with free capacity",
			event:      testEvent("e1", 2),
			caller:     member("m1", "East", "Main"),
			eventID:    "e1",
			wantStatus: domain.StatusConfirmed,
		},
		{
			name: "waitlisted at capacity",
			event: func() *domain.Event {
				e := testEvent("e1", 1)
				e.RegisteredMembers = []domain.MemberRegistration{{MemberID: "other", Status: domain.StatusConfirmed, RegistrationDate: time.Now()}}
				return e
			}(),
			caller:     member("m1", "East", "Main"),
			eventID:    "e1",
			wantStatus: domain.StatusWaitlisted,
		},
		{
			name:    "event not found",
			event:   testEvent("e1", 1),
			caller:  member("m1", "East", "Main"),
			eventID: "missing",
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "non-member role forbidden",
			event:   testEvent("e1", 1),
			caller:  &domain.User{ID: "l1", Role: domain.RoleLeader, Region: "East", Campus: "Main"},
			eventID: "e1",
			wantErr: domain.ErrForbidden,
		},
		{
			name: "region mismatch not eligible",
			event: func() *domain.Event {
				e := testEvent("e1", 5)
				e.Regions = []string{"East"}
				return e
			}(),
			caller:  member("m1", "West", "Main"),
			eventID: "e1",
			wantErr: domain.ErrNotEligible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUserRepo{users: map[string]*domain.User{tt.caller.ID: tt.caller}}
			svc := newTestEventService(newFakeEventRepo(tt.event), users)

			res, err := svc.RegisterMember(context.Background(), tt.caller.ID, tt.eventID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != tt.wantStatus || res.AlreadyRegistered {
				t.Fatalf("expected fresh %s, got %+v", tt.wantStatus, res)
			}
		})
	}
}

func TestRegisterMember_Idempotent(t *testing.T) {
	caller := member("m1", "East", "Main")
	repo := newFakeEventRepo(testEvent("e1", 2))
	users := &fakeUserRepo{users: map[string]*domain.User{"m1": caller}}
	svc := newTestEventService(repo, users)

	first, err := svc.RegisterMember(context.Background(), "m1", "e1")
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	second, err := svc.RegisterMember(context.Background(), "m1", "e1")
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	if second.Status != first.Status || !second.AlreadyRegistered {
		t.Fatalf("expected idempotent result with same status, got first=%+v second=%+v", first, second)
	}

	stored, _ := repo.GetByID(context.Background(), "e1")
	if len(stored.RegisteredMembers) != 1 {
		t.Fatalf("expected a single entry, got %d", len(stored.RegisteredMembers))
	}
}

func TestRegisterMember_RetriesConflictThenSucceeds(t *testing.T) {
	caller := member("m1", "East", "Main")
	repo := newFakeEventRepo(testEvent("e1", 2))
	repo.failConflicts = 2
	users := &fakeUserRepo{users: map[string]*domain.User{"m1": caller}}
	svc := newTestEventService(repo, users)

	res, err := svc.RegisterMember(context.Background(), "m1", "e1")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if res.Status != domain.StatusConfirmed {
		t.Fatalf("expected Confirmed, got %s", res.Status)
	}
	if repo.applyCalls != 3 {
		t.Fatalf("expected 3 apply calls, got %d", repo.applyCalls)
	}
}

func TestRegisterMember_ConflictExhaustionServerBusy(t *testing.T) {
	caller := member("m1", "East", "Main")
	repo := newFakeEventRepo(testEvent("e1", 2))
	repo.failConflicts = 10
	users := &fakeUserRepo{users: map[string]*domain.User{"m1": caller}}
	svc := newTestEventService(repo, users)

	_, err := svc.RegisterMember(context.Background(), "m1", "e1")
	if !errors.Is(err, domain.ErrServerBusy) {
		t.Fatalf("expected ErrServerBusy, got %v", err)
	}
}

func TestRegisterGuest(t *testing.T) {
	repo := newFakeEventRepo(testEvent("e1", 1))
	users := &fakeUserRepo{}
	svc := newTestEventService(repo, users)

	res, err := svc.RegisterGuest(context.Background(), "e1", domain.GuestInput{Name: "Grace", Email: "Grace@Example.com"})
	if err != nil {
		t.Fatalf("guest registration: %v", err)
	}
	if res.Status != domain.StatusConfirmed {
		t.Fatalf("expected Confirmed, got %s", res.Status)
	}

	// Same email, different case: idempotent no-op.
	res, err = svc.RegisterGuest(context.Background(), "e1", domain.GuestInput{Name: "Grace", Email: "GRACE@example.com"})
	if err != nil {
		t.Fatalf("duplicate guest registration: %v", err)
	}
	if !res.AlreadyRegistered || res.Status != domain.StatusConfirmed {
		t.Fatalf("expected AlreadyRegistered(Confirmed), got %+v", res)
	}

	// Capacity 1 is taken; the next guest shares capacity with it.
	res, err = svc.RegisterGuest(context.Background(), "e1", domain.GuestInput{Name: "Heidi", Email: "heidi@example.com"})
	if err != nil {
		t.Fatalf("second guest registration: %v", err)
	}
	if res.Status != domain.StatusWaitlisted {
		t.Fatalf("expected Waitlisted, got %s", res.Status)
	}
}

func TestCancelRegistration_PromotionPersistsAtomically(t *testing.T) {
	e := testEvent("e1", 2)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	e.RegisteredMembers = []domain.MemberRegistration{
		{MemberID: "a", Status: domain.StatusConfirmed, RegistrationDate: now},
		{MemberID: "b", Status: domain.StatusConfirmed, RegistrationDate: now.Add(time.Minute)},
		{MemberID: "c", Status: domain.StatusWaitlisted, RegistrationDate: now.Add(2 * time.Minute)},
	}
	repo := newFakeEventRepo(e)
	users := &fakeUserRepo{users: map[string]*domain.User{
		"a": member("a", "East", "Main"),
		"c": member("c", "East", "Main"),
	}}
	svc := newTestEventService(repo, users)

	if err := svc.CancelRegistration(context.Background(), "a", "e1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), "e1")
	statuses := map[string]domain.RegistrationStatus{}
	for _, m := range stored.RegisteredMembers {
		statuses[m.MemberID] = m.Status
	}
	if statuses["a"] != domain.StatusCancelled || statuses["b"] != domain.StatusConfirmed || statuses["c"] != domain.StatusConfirmed {
		t.Fatalf("unexpected statuses after cancel: %v", statuses)
	}
	if repo.applyCalls != 1 {
		t.Fatalf("cancellation and promotion must be one atomic write, got %d writes", repo.applyCalls)
	}
}

func TestCancelRegistration_NotRegistered(t *testing.T) {
	repo := newFakeEventRepo(testEvent("e1", 2))
	users := &fakeUserRepo{users: map[string]*domain.User{"m1": member("m1", "East", "Main")}}
	svc := newTestEventService(repo, users)

	err := svc.CancelRegistration(context.Background(), "m1", "e1")
	if !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), "e1")
	if stored.Version != 0 || len(stored.RegisteredMembers) != 0 {
		t.Fatalf("failed cancellation must not change state: %+v", stored)
	}
}

// TestRegisterMember_ConcurrentRace launches N concurrent registrations
// against capacity K and checks exactly K end up Confirmed.
func TestRegisterMember_ConcurrentRace(t *testing.T) {
	const (
		capacity = 10
		n        = 25
	)
	repo := newFakeEventRepo(testEvent("e1", capacity))
	users := &fakeUserRepo{users: map[string]*domain.User{}}
	for i := 0; i < n; i++ {
		u := member(memberID(i), "East", "Main")
		users.users[u.ID] = u
	}
	svc := NewEventService(repo, users, nil, 30*time.Second)

	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			// Retry ErrServerBusy: under heavy contention the bounded
			// internal retry may be exhausted; the caller-visible contract
			// is that retrying eventually lands every registrant.
			for {
				_, err := svc.RegisterMember(context.Background(), id, "e1")
				if errors.Is(err, domain.ErrServerBusy) {
					continue
				}
				errCh <- err
				return
			}
		}(memberID(i))
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stored, _ := repo.GetByID(context.Background(), "e1")
	confirmed, waitlisted := 0, 0
	for _, m := range stored.RegisteredMembers {
		switch m.Status {
		case domain.StatusConfirmed:
			confirmed++
		case domain.StatusWaitlisted:
			waitlisted++
		}
	}
	if confirmed != capacity {
		t.Fatalf("expected exactly %d confirmed, got %d", capacity, confirmed)
	}
	if waitlisted != n-capacity {
		t.Fatalf("expected %d waitlisted, got %d", n-capacity, waitlisted)
	}
}

func memberID(i int) string {
	return "m" + string(rune('a'+i/10)) + string(rune('0'+i%10))
}

func TestCreateEvent_DefaultFanOut(t *testing.T) {
	leader := &domain.User{ID: "l1", Role: domain.RoleLeader, Region: "East", Campus: "Main"}
	users := &fakeUserRepo{
		users:    map[string]*domain.User{"l1": leader},
		regions:  []string{"East", "West"},
		campuses: []string{"Main", "North"},
	}
	repo := newFakeEventRepo()
	svc := newTestEventService(repo, users)

	event, err := svc.CreateEvent(context.Background(), "l1", &domain.EventInput{
		Name:        "Open Night",
		Description: "All welcome",
		Location:    "Hall A",
		Date:        time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC),
		Capacity:    50,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if len(event.Regions) != 2 || len(event.Campuses) != 2 {
		t.Fatalf("expected fan-out snapshot of all regions/campuses, got %v / %v", event.Regions, event.Campuses)
	}
}

func TestCreateEvent_MemberForbidden(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*domain.User{"m1": member("m1", "East", "Main")}}
	svc := newTestEventService(newFakeEventRepo(), users)

	_, err := svc.CreateEvent(context.Background(), "m1", &domain.EventInput{
		Name: "x", Description: "x", Location: "x",
		Date: time.Now(), Capacity: 1,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUpdateEvent_LeaderOwnershipRequired(t *testing.T) {
	e := testEvent("e1", 10)
	e.CreatedBy = "l1"
	repo := newFakeEventRepo(e)
	users := &fakeUserRepo{users: map[string]*domain.User{
		"l2":    {ID: "l2", Role: domain.RoleLeader, Region: "East", Campus: "Main"},
		"admin": {ID: "admin", Role: domain.RoleAdmin},
	}}
	svc := newTestEventService(repo, users)

	input := &domain.EventInput{Name: "n", Description: "d", Location: "l", Date: e.Date, Capacity: 10}

	if _, err := svc.UpdateEvent(context.Background(), "l2", "e1", input); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-creator leader: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.UpdateEvent(context.Background(), "admin", "e1", input); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestListEvents_VisibilityByRole(t *testing.T) {
	east := testEvent("east", 10)
	east.Regions = []string{"East"}
	west := testEvent("west", 10)
	west.Regions = []string{"West"}
	owned := testEvent("owned", 10)
	owned.Regions = []string{"West"}
	owned.CreatedBy = "l1"

	repo := newFakeEventRepo(east, west, owned)
	users := &fakeUserRepo{users: map[string]*domain.User{
		"admin": {ID: "admin", Role: domain.RoleAdmin},
		"l1":    {ID: "l1", Role: domain.RoleLeader, Region: "East", Campus: "Main"},
		"m1":    member("m1", "East", "Main"),
	}}
	svc := newTestEventService(repo, users)

	tests := []struct {
		caller string
		want   int
	}{
		{"admin", 3},
		{"l1", 2}, // east (region match) + owned (created by them)
		{"m1", 1}, // east only
	}
	for _, tt := range tests {
		got, err := svc.ListEvents(context.Background(), tt.caller)
		if err != nil {
			t.Fatalf("%s: %v", tt.caller, err)
		}
		if len(got) != tt.want {
			t.Fatalf("%s: expected %d visible events, got %d", tt.caller, tt.want, len(got))
		}
	}
}
