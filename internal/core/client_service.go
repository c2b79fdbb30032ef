package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrClientNotFound is a branch, not a failure: the dialogue layer redirects
// it into the client-creation confirmation flow.
var ErrClientNotFound = errors.New("client not found")

// ClientService provides client CRUD and name resolution. All methods are
// scoped to the authenticated user.
type ClientService interface {
	List(ctx context.Context, userID int) ([]Client, error)
	Create(ctx context.Context, userID int, name, phone string) (*Client, error)
	DeleteByName(ctx context.Context, userID int, name string) error

	// FindByExactName resolves a client by case-insensitive exact name match.
	// Mutating flows must use this: a one-letter query must never pick up an
	// unrelated client. Returns ErrClientNotFound when absent.
	FindByExactName(ctx context.Context, userID int, name string) (*Client, error)

	// FindBySubstring resolves a client by case-insensitive substring match.
	// Only read-only queries (schedule lookups) may use the looser match.
	FindBySubstring(ctx context.Context, userID int, fragment string) (*Client, error)
}

type clientService struct {
	pool *pgxpool.Pool
}

func NewClientService(pool *pgxpool.Pool) ClientService {
	return &clientService{pool: pool}
}

func (s *clientService) List(ctx context.Context, userID int) ([]Client, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, COALESCE(phone, ''), created_at
		FROM clients
		WHERE user_id = $1
		ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *clientService) Create(ctx context.Context, userID int, name, phone string) (*Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("client name is required")
	}

	c := Client{UserID: userID, Name: name, Phone: strings.TrimSpace(phone)}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO clients (user_id, name, phone)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, created_at`, userID, c.Name, c.Phone).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &c, nil
}

func (s *clientService) DeleteByName(ctx context.Context, userID int, name string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM clients
		WHERE user_id = $1 AND LOWER(name) = LOWER($2)`, userID, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (s *clientService) FindByExactName(ctx context.Context, userID int, name string) (*Client, error) {
	var c Client
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, COALESCE(phone, ''), created_at
		FROM clients
		WHERE user_id = $1 AND LOWER(name) = LOWER($2)
		LIMIT 1`, userID, strings.TrimSpace(name)).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to resolve client %q: %w", name, err)
	}
	return &c, nil
}

func (s *clientService) FindBySubstring(ctx context.Context, userID int, fragment string) (*Client, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, ErrClientNotFound
	}

	var c Client
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, COALESCE(phone, ''), created_at
		FROM clients
		WHERE user_id = $1 AND name ILIKE '%' || $2 || '%'
		ORDER BY name
		LIMIT 1`, userID, fragment).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to search client %q: %w", fragment, err)
	}
	return &c, nil
}
