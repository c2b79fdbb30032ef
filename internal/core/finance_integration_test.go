package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"business-assistant/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestFinanceService_CreateRecordsIdempotency(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewFinanceService(pool)
	ctx := context.Background()

	drafts := []core.RecordDraft{
		{Type: core.Income, Amount: decimal.NewFromInt(100), Description: "Corte (1/2)",
			PaymentMethod: "Pix", Status: core.StatusPaid, DueDate: time.Now()},
		{Type: core.Income, Amount: decimal.NewFromInt(100), Description: "Corte (2/2)",
			PaymentMethod: "Pix", Status: core.StatusPending, DueDate: time.Now().AddDate(0, 1, 0)},
	}

	key := uuid.NewString()
	records, err := svc.CreateRecords(ctx, 1, drafts, key)
	if err != nil {
		t.Fatalf("CreateRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// Same key again: the whole batch must be rejected, nothing duplicated.
	if _, err := svc.CreateRecords(ctx, 1, drafts, key); err == nil {
		t.Fatalf("expected duplicate batch to fail, but it succeeded")
	}

	pending, err := svc.ListPendingByType(ctx, 1, core.Income)
	if err != nil {
		t.Fatalf("ListPendingByType: %v", err)
	}
	if len(pending) != 1 || pending[0].Description != "Corte (2/2)" {
		t.Errorf("pending = %+v, want only the second installment", pending)
	}
}

func TestActivityService_DeleteMostRecent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	finance := core.NewFinanceService(pool)
	appointments := core.NewAppointmentService(pool)
	activity := core.NewActivityService(pool)

	// Nothing yet: reported, not erred.
	if _, err := activity.DeleteMostRecent(ctx, 1); !errors.Is(err, core.ErrNothingToDelete) {
		t.Fatalf("expected ErrNothingToDelete, got %v", err)
	}

	if _, err := appointments.Create(ctx, core.Appointment{
		UserID: 1, ClientName: "Maria", Service: "Corte",
		StartsAt: time.Now().Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("Create appointment: %v", err)
	}

	if _, err := finance.CreateRecords(ctx, 1, []core.RecordDraft{{
		Type: core.Income, Amount: decimal.NewFromInt(50),
		Description: "Corte (1/1)", Status: core.StatusPaid, DueDate: time.Now(),
	}}, uuid.NewString()); err != nil {
		t.Fatalf("CreateRecords: %v", err)
	}

	// The financial record was created last, so it goes first.
	deleted, err := activity.DeleteMostRecent(ctx, 1)
	if err != nil {
		t.Fatalf("DeleteMostRecent: %v", err)
	}
	if deleted.Entity != "financial_record" {
		t.Errorf("deleted entity = %s, want financial_record", deleted.Entity)
	}

	deleted, err = activity.DeleteMostRecent(ctx, 1)
	if err != nil {
		t.Fatalf("DeleteMostRecent: %v", err)
	}
	if deleted.Entity != "appointment" {
		t.Errorf("deleted entity = %s, want appointment", deleted.Entity)
	}
}

func TestUsageService_DailyCapAndBypass(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	t.Setenv("DAILY_FREE_LIMIT", "2")
	svc := core.NewUsageService(pool)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		d, err := svc.CheckAndIncrement(ctx, 1)
		if err != nil {
			t.Fatalf("CheckAndIncrement %d: %v", i, err)
		}
		if !d.Allowed || d.Count != i {
			t.Errorf("turn %d: allowed=%v count=%d", i, d.Allowed, d.Count)
		}
	}

	d, err := svc.CheckAndIncrement(ctx, 1)
	if err != nil {
		t.Fatalf("CheckAndIncrement over cap: %v", err)
	}
	if d.Allowed || d.Reason != core.DenyDailyLimit {
		t.Errorf("expected daily-limit denial, got %+v", d)
	}

	// A refund frees one slot again.
	if err := svc.RefundLast(ctx, 1); err != nil {
		t.Fatalf("RefundLast: %v", err)
	}
	if d, _ = svc.CheckAndIncrement(ctx, 1); !d.Allowed {
		t.Errorf("expected turn allowed after refund, got %+v", d)
	}

	// Pro tier bypasses the cap.
	for i := 0; i < 5; i++ {
		if d, _ = svc.CheckAndIncrement(ctx, 2); !d.Allowed {
			t.Fatalf("pro user denied on turn %d: %+v", i, d)
		}
	}

	// Subscription hard-block takes precedence over the counter.
	d, err = svc.CheckAndIncrement(ctx, 3)
	if err != nil {
		t.Fatalf("CheckAndIncrement blocked user: %v", err)
	}
	if d.Allowed || d.Reason != core.DenyOverdueSubscription {
		t.Errorf("expected overdue-subscription denial, got %+v", d)
	}
}
