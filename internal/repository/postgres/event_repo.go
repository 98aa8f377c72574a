package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"communityevents/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

// NewEventRepository returns an EventRepository backed by Postgres. The
// events table carries a version column that guards the registration lists;
// see ApplyRegistrationChange.
func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{DB: db}
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `
		INSERT INTO events (id, name, description, location, date, capacity, image, regions, campuses, created_by, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12)
	`
	_, err := r.DB.ExecContext(ctx, query,
		e.ID, e.Name, e.Description, e.Location, e.Date, e.Capacity, e.Image,
		pq.Array(e.Regions), pq.Array(e.Campuses), e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

const eventColumns = `id, name, description, location, date, capacity, image, regions, campuses, created_by, version, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	e := &domain.Event{}
	var imageNull sql.NullString
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.Location, &e.Date, &e.Capacity, &imageNull,
		pq.Array(&e.Regions), pq.Array(&e.Campuses), &e.CreatedBy, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if imageNull.Valid {
		e.Image = &imageNull.String
	}
	return e, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadRegistrations(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) loadRegistrations(ctx context.Context, e *domain.Event) error {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT member_id, status, registration_date
		FROM member_registrations
		WHERE event_id = $1
		ORDER BY registration_date, member_id
	`, e.ID)
	if err != nil {
		return fmt.Errorf("load member registrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m domain.MemberRegistration
		if err := rows.Scan(&m.MemberID, &m.Status, &m.RegistrationDate); err != nil {
			return err
		}
		e.RegisteredMembers = append(e.RegisteredMembers, m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	guestRows, err := r.DB.QueryContext(ctx, `
		SELECT name, email, phone, status, registration_date
		FROM guest_registrations
		WHERE event_id = $1
		ORDER BY registration_date, email
	`, e.ID)
	if err != nil {
		return fmt.Errorf("load guest registrations: %w", err)
	}
	defer guestRows.Close()
	for guestRows.Next() {
		var g domain.GuestRegistration
		var phoneNull sql.NullString
		if err := guestRows.Scan(&g.Name, &g.Email, &phoneNull, &g.Status, &g.RegistrationDate); err != nil {
			return err
		}
		g.Phone = phoneNull.String
		e.GuestRegistrations = append(e.GuestRegistrations, g)
	}
	return guestRows.Err()
}

func (r *eventRepository) List(ctx context.Context) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY date`
	return r.queryEvents(ctx, query)
}

func (r *eventRepository) ListUpcomingByCreators(ctx context.Context, creatorIDs []string, from time.Time) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE created_by = ANY($1) AND date >= $2 ORDER BY date`
	return r.queryEvents(ctx, query, pq.Array(creatorIDs), from)
}

func (r *eventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, nil
}

// Update writes the descriptive fields only. The version column and the
// registration lists are untouched; they belong to ApplyRegistrationChange.
func (r *eventRepository) Update(ctx context.Context, e *domain.Event) error {
	query := `
		UPDATE events
		SET name = $2, description = $3, location = $4, date = $5, capacity = $6,
		    image = $7, regions = $8, campuses = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, query,
		e.ID, e.Name, e.Description, e.Location, e.Date, e.Capacity, e.Image,
		pq.Array(e.Regions), pq.Array(e.Campuses), e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplyRegistrationChange performs the optimistic-concurrency write: inside
// one transaction it bumps the event version conditioned on the version the
// caller read, then upserts the changed entries. Two racing writers both
// holding the same snapshot cannot both succeed; the loser gets
// ErrVersionConflict and re-reads.
func (r *eventRepository) ApplyRegistrationChange(ctx context.Context, eventID string, version int64, members []domain.MemberRegistration, guests []domain.GuestRegistration) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE events SET version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $2
	`, eventID, version, time.Now())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the event vanished or someone else won the race; the
		// caller re-reads and finds out which.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}

	for _, m := range members {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO member_registrations (event_id, member_id, status, registration_date)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (event_id, member_id)
			DO UPDATE SET status = EXCLUDED.status, registration_date = EXCLUDED.registration_date
		`, eventID, m.MemberID, m.Status, m.RegistrationDate)
		if err != nil {
			return fmt.Errorf("upsert member registration: %w", err)
		}
	}
	for _, g := range guests {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO guest_registrations (event_id, email, name, phone, status, registration_date)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (event_id, email)
			DO UPDATE SET status = EXCLUDED.status, registration_date = EXCLUDED.registration_date
		`, eventID, g.Email, g.Name, g.Phone, g.Status, g.RegistrationDate)
		if err != nil {
			return fmt.Errorf("upsert guest registration: %w", err)
		}
	}

	return tx.Commit()
}
