package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

// DenyReason explains why the usage gate refused a turn.
type DenyReason string

const (
	DenyNone                 DenyReason = ""
	DenyDailyLimit           DenyReason = "daily_limit"
	DenyOverdueSubscription  DenyReason = "overdue_subscription"
	DenyCanceledSubscription DenyReason = "canceled_subscription"
)

// UsageDecision is the gate's answer for one turn.
type UsageDecision struct {
	Allowed bool
	Count   int
	Limit   int
	Reason  DenyReason
}

// defaultDailyLimit is the free-tier cap, overridable via DAILY_FREE_LIMIT.
const defaultDailyLimit = 10

// Unlimited plan tiers bypass the numeric cap entirely.
var unlimitedTiers = map[string]bool{"vip": true, "pro": true}

// UsageService is the per-interaction quota gate. A subscription hard-block
// (overdue or canceled) takes precedence over the numeric daily cap.
type UsageService interface {
	// CheckAndIncrement charges one interaction against today's counter and
	// reports whether the turn may proceed. Denied turns are not charged.
	CheckAndIncrement(ctx context.Context, userID int) (*UsageDecision, error)

	// RefundLast returns today's last charge. Called when a charged turn did
	// not end in a committed write.
	RefundLast(ctx context.Context, userID int) error
}

type usageService struct {
	pool  *pgxpool.Pool
	limit int
}

func NewUsageService(pool *pgxpool.Pool) UsageService {
	limit := defaultDailyLimit
	if v := os.Getenv("DAILY_FREE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return &usageService{pool: pool, limit: limit}
}

func (s *usageService) CheckAndIncrement(ctx context.Context, userID int) (*UsageDecision, error) {
	var tier, subscription string
	err := s.pool.QueryRow(ctx,
		"SELECT plan_tier, subscription_status FROM users WHERE id = $1", userID).
		Scan(&tier, &subscription)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user plan: %w", err)
	}

	switch subscription {
	case "overdue":
		return &UsageDecision{Allowed: false, Limit: s.limit, Reason: DenyOverdueSubscription}, nil
	case "canceled":
		return &UsageDecision{Allowed: false, Limit: s.limit, Reason: DenyCanceledSubscription}, nil
	}

	if unlimitedTiers[tier] {
		return &UsageDecision{Allowed: true, Limit: s.limit}, nil
	}

	day := time.Now().Format("2006-01-02")
	var count int
	err = s.pool.QueryRow(ctx, `
		INSERT INTO usage_counters (user_id, day, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day) DO UPDATE SET count = usage_counters.count + 1
		RETURNING count`, userID, day).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to increment usage counter: %w", err)
	}

	if count > s.limit {
		// Undo the speculative charge so tomorrow's arithmetic stays honest.
		if err := s.RefundLast(ctx, userID); err != nil {
			return nil, err
		}
		return &UsageDecision{Allowed: false, Count: count - 1, Limit: s.limit, Reason: DenyDailyLimit}, nil
	}
	return &UsageDecision{Allowed: true, Count: count, Limit: s.limit}, nil
}

func (s *usageService) RefundLast(ctx context.Context, userID int) error {
	day := time.Now().Format("2006-01-02")
	if _, err := s.pool.Exec(ctx, `
		UPDATE usage_counters
		SET count = GREATEST(count - 1, 0)
		WHERE user_id = $1 AND day = $2`, userID, day); err != nil {
		return fmt.Errorf("failed to refund usage charge: %w", err)
	}
	return nil
}
