package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNothingToDelete means neither an appointment nor a financial record
// exists for the user. The dialogue layer reports it, it is not a failure.
var ErrNothingToDelete = errors.New("nothing to delete")

// DeletedAction describes what the delete-last-action flow removed.
type DeletedAction struct {
	Entity      string // "appointment" or "financial_record"
	Description string
}

// ActivityService implements the cross-entity "undo my last action" read:
// compare the most recent appointment and the most recent financial record by
// creation time and delete whichever is newer.
type ActivityService interface {
	DeleteMostRecent(ctx context.Context, userID int) (*DeletedAction, error)
}

type activityService struct {
	pool *pgxpool.Pool
}

func NewActivityService(pool *pgxpool.Pool) ActivityService {
	return &activityService{pool: pool}
}

func (s *activityService) DeleteMostRecent(ctx context.Context, userID int) (*DeletedAction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// One query ranks the latest row of each entity; ties go to the
	// financial record, matching the order the assistant writes them in.
	var entity, description string
	var id int
	err = tx.QueryRow(ctx, `
		SELECT entity, id, description FROM (
			SELECT 'appointment' AS entity, id, service || ' — ' || client_name AS description, created_at
			FROM appointments WHERE user_id = $1
			UNION ALL
			SELECT 'financial_record' AS entity, id, description, created_at
			FROM financial_records WHERE user_id = $1
		) latest
		ORDER BY created_at DESC, entity ASC
		LIMIT 1`, userID).Scan(&entity, &id, &description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNothingToDelete
		}
		return nil, fmt.Errorf("failed to find last action: %w", err)
	}

	table := "financial_records"
	if entity == "appointment" {
		table = "appointments"
	}
	if _, err := tx.Exec(ctx,
		"DELETE FROM "+table+" WHERE user_id = $1 AND id = $2", userID, id); err != nil {
		return nil, fmt.Errorf("failed to delete last action: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return &DeletedAction{Entity: entity, Description: description}, nil
}
