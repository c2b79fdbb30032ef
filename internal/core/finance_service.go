package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrRecordNotFound = errors.New("financial record not found")

// ClientTotal is one row of the income-by-client aggregation.
type ClientTotal struct {
	ClientName string
	Total      decimal.Decimal
}

// FinanceService persists financial records. Installment expansion happens
// upstream (TransactionPlan.Expand); this layer writes the resulting drafts
// atomically so a plan is never half-posted.
type FinanceService interface {
	// CreateRecords inserts all drafts of one plan in a single transaction.
	// idempotencyKey dedupes a retried turn: a second call with the same key
	// is rejected before any row is written.
	CreateRecords(ctx context.Context, userID int, drafts []RecordDraft, idempotencyKey string) ([]FinancialRecord, error)

	Delete(ctx context.Context, userID, id int) error

	// ListBetween filters by created_at: the paid/historical view, distinct
	// from the due-date-driven pending view.
	ListBetween(ctx context.Context, userID int, from, to time.Time) ([]FinancialRecord, error)

	// ListPendingByType returns pending records of one type ordered by due date.
	ListPendingByType(ctx context.Context, userID int, typ RecordType) ([]FinancialRecord, error)

	// ListPendingByClient returns a client's pending records ordered by due date.
	ListPendingByClient(ctx context.Context, userID int, clientName string) ([]FinancialRecord, error)

	// SumIncomeByClient aggregates income grouped by client name, ordered by
	// earliest first record so ties resolve in first-seen order.
	SumIncomeByClient(ctx context.Context, userID int) ([]ClientTotal, error)
}

type financeService struct {
	pool *pgxpool.Pool
}

func NewFinanceService(pool *pgxpool.Pool) FinanceService {
	return &financeService{pool: pool}
}

const recordColumns = "id, user_id, type, amount, description, COALESCE(payment_method, ''), client_id, status, due_date, created_at"

func scanRecord(row pgx.Row) (*FinancialRecord, error) {
	var r FinancialRecord
	if err := row.Scan(&r.ID, &r.UserID, &r.Type, &r.Amount, &r.Description,
		&r.PaymentMethod, &r.ClientID, &r.Status, &r.DueDate, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *financeService) CreateRecords(ctx context.Context, userID int, drafts []RecordDraft, idempotencyKey string) ([]FinancialRecord, error) {
	if len(drafts) == 0 {
		return nil, errors.New("no records to create")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if idempotencyKey != "" {
		var dummy int
		err := tx.QueryRow(ctx, `
			INSERT INTO financial_batches (user_id, idempotency_key)
			VALUES ($1, $2)
			ON CONFLICT (idempotency_key) DO NOTHING
			RETURNING 1`, userID, idempotencyKey).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("duplicate batch: idempotency key %s already exists", idempotencyKey)
			}
			return nil, fmt.Errorf("failed to register batch: %w", err)
		}
	}

	records := make([]FinancialRecord, 0, len(drafts))
	for _, d := range drafts {
		r := FinancialRecord{
			UserID:        userID,
			Type:          d.Type,
			Amount:        d.Amount,
			Description:   d.Description,
			PaymentMethod: d.PaymentMethod,
			ClientID:      d.ClientID,
			Status:        d.Status,
		}
		if !d.DueDate.IsZero() {
			due := d.DueDate
			r.DueDate = &due
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO financial_records (user_id, type, amount, description, payment_method, client_id, status, due_date)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
			RETURNING id, created_at`,
			r.UserID, r.Type, r.Amount, r.Description, r.PaymentMethod, r.ClientID, r.Status, r.DueDate).
			Scan(&r.ID, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert financial record: %w", err)
		}
		records = append(records, r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit records: %w", err)
	}
	return records, nil
}

func (s *financeService) Delete(ctx context.Context, userID, id int) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM financial_records WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete financial record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *financeService) queryRecords(ctx context.Context, q string, args ...any) ([]FinancialRecord, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query financial records: %w", err)
	}
	defer rows.Close()

	var records []FinancialRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan financial record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func (s *financeService) ListBetween(ctx context.Context, userID int, from, to time.Time) ([]FinancialRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM financial_records
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC`, userID, from, to)
}

func (s *financeService) ListPendingByType(ctx context.Context, userID int, typ RecordType) ([]FinancialRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM financial_records
		WHERE user_id = $1 AND type = $2 AND status = 'pending'
		ORDER BY due_date ASC NULLS LAST`, userID, typ)
}

func (s *financeService) ListPendingByClient(ctx context.Context, userID int, clientName string) ([]FinancialRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM financial_records fr
		WHERE fr.user_id = $1
		  AND fr.status = 'pending'
		  AND fr.client_id IN (SELECT id FROM clients WHERE user_id = $1 AND LOWER(name) = LOWER($2))
		ORDER BY fr.due_date ASC NULLS LAST`, userID, clientName)
}

func (s *financeService) SumIncomeByClient(ctx context.Context, userID int) ([]ClientTotal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.name, COALESCE(SUM(fr.amount), 0) AS total
		FROM financial_records fr
		JOIN clients c ON c.id = fr.client_id
		WHERE fr.user_id = $1 AND fr.type = 'income'
		GROUP BY c.id, c.name
		ORDER BY MIN(fr.created_at) ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate income by client: %w", err)
	}
	defer rows.Close()

	var totals []ClientTotal
	for rows.Next() {
		var t ClientTotal
		if err := rows.Scan(&t.ClientName, &t.Total); err != nil {
			return nil, fmt.Errorf("failed to scan client total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
