package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// AppointmentService provides appointment CRUD plus the domain reads the
// dialogue layer depends on.
type AppointmentService interface {
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	Delete(ctx context.Context, userID, id int) error

	// FindNextForClient returns the client's next upcoming appointment
	// (starts_at >= now, earliest first). ErrAppointmentNotFound when none.
	FindNextForClient(ctx context.Context, userID, clientID int, now time.Time) (*Appointment, error)

	// ListBetween returns appointments whose start time falls in [from, to),
	// ordered by start time.
	ListBetween(ctx context.Context, userID int, from, to time.Time) ([]Appointment, error)
}

type appointmentService struct {
	pool *pgxpool.Pool
}

func NewAppointmentService(pool *pgxpool.Pool) AppointmentService {
	return &appointmentService{pool: pool}
}

const appointmentColumns = "id, user_id, client_id, client_name, service, starts_at, created_at"

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(&a.ID, &a.UserID, &a.ClientID, &a.ClientName, &a.Service, &a.StartsAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *appointmentService) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.Service == "" {
		return nil, errors.New("appointment service description is required")
	}
	if a.StartsAt.IsZero() {
		return nil, errors.New("appointment start time is required")
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO appointments (user_id, client_id, client_name, service, starts_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.UserID, a.ClientID, a.ClientName, a.Service, a.StartsAt).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return &a, nil
}

func (s *appointmentService) Delete(ctx context.Context, userID, id int) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM appointments WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (s *appointmentService) FindNextForClient(ctx context.Context, userID, clientID int, now time.Time) (*Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1 AND client_id = $2 AND starts_at >= $3
		ORDER BY starts_at ASC
		LIMIT 1`, userID, clientID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("failed to find next appointment: %w", err)
	}
	return a, nil
}

func (s *appointmentService) ListBetween(ctx context.Context, userID int, from, to time.Time) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at ASC`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, *a)
	}
	return appts, rows.Err()
}

