package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionPlan describes a sale or expense before it is expanded into
// individually persisted financial records. It is transient: only the
// resulting drafts are stored.
type TransactionPlan struct {
	Type             RecordType
	Amount           decimal.Decimal
	Installments     int
	DownPayment      decimal.Decimal
	InstallmentValue decimal.Decimal // zero means derive from Amount
	PaymentMethod    string
	BaseDate         time.Time // first due date; today when the user gave none
	ServiceLabel     string
	Status           RecordStatus // status of the first (or only) installment
	ClientID         *int
}

// RecordDraft is one ledger entry produced by expanding a plan. The position
// suffix on Description ("(Entrada)" or "(k/N)") uniquely identifies it
// within its plan.
type RecordDraft struct {
	Type          RecordType
	Amount        decimal.Decimal
	Description   string
	PaymentMethod string
	ClientID      *int
	Status        RecordStatus
	DueDate       time.Time
}

// Normalize fills plan defaults the same way the oracle payload leaves them:
// a single installment, paid status, today as the base date.
func (p *TransactionPlan) Normalize(now time.Time) {
	if p.Installments < 1 {
		p.Installments = 1
	}
	if p.Status == "" {
		p.Status = StatusPaid
	}
	if p.BaseDate.IsZero() {
		p.BaseDate = now
	}
	p.ServiceLabel = strings.TrimSpace(p.ServiceLabel)
	p.PaymentMethod = strings.TrimSpace(p.PaymentMethod)
}

// Validate enforces the structural rules a plan must satisfy before
// expansion. A down payment occupies the first installment slot, so it
// requires at least two installments and must leave a positive balance.
func (p *TransactionPlan) Validate() error {
	if !p.Amount.IsPositive() {
		return errors.New("plan amount must be a positive number")
	}
	if p.DownPayment.IsNegative() {
		return errors.New("down payment cannot be negative")
	}
	if p.DownPayment.IsPositive() {
		if p.Installments < 2 {
			return errors.New("a down payment requires at least 2 installments")
		}
		if p.DownPayment.GreaterThanOrEqual(p.Amount) {
			return fmt.Errorf("down payment %s must be below the total %s", p.DownPayment, p.Amount)
		}
		if p.PaymentMethod == "" {
			return errors.New("the down payment needs a payment method")
		}
	}
	if p.Status != StatusPaid && p.Status != StatusPending {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	return nil
}

// Expand turns the plan into one draft per installment.
//
// Amount derivation: an explicit InstallmentValue is used verbatim. Otherwise
// the balance (total minus down payment) is split evenly and the rounding
// remainder folds into the last installment, so the drafts always sum back to
// the plan total.
//
// Status policy: the first (or only) installment keeps the plan status; later
// installments are forced pending unless the payment method is a credit card,
// whose float is treated as already guaranteed. When a down payment exists,
// every remaining installment is pending regardless of method, since only
// the entry itself was actually collected.
func (p *TransactionPlan) Expand() ([]RecordDraft, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	hasEntry := p.DownPayment.IsPositive()
	total := p.Installments
	drafts := make([]RecordDraft, 0, total)

	remaining := total
	balance := p.Amount
	if hasEntry {
		remaining = total - 1
		balance = p.Amount.Sub(p.DownPayment)

		drafts = append(drafts, RecordDraft{
			Type:          p.Type,
			Amount:        p.DownPayment,
			Description:   positionLabel(p.ServiceLabel, "(Entrada)"),
			PaymentMethod: p.PaymentMethod,
			ClientID:      p.ClientID,
			Status:        StatusPaid,
			DueDate:       p.BaseDate,
		})
	}

	per := p.InstallmentValue
	derive := per.IsZero()
	if derive {
		per = balance.DivRound(decimal.NewFromInt(int64(remaining)), 2)
	}

	for i := 0; i < remaining; i++ {
		position := i + 1
		if hasEntry {
			position = i + 2 // the entry consumed slot 1
		}

		amount := per
		if derive && i == remaining-1 {
			// Fold the rounding remainder into the last installment.
			amount = balance.Sub(per.Mul(decimal.NewFromInt(int64(remaining - 1))))
		}

		status := StatusPending
		switch {
		case hasEntry:
			// collected entry only; everything after it is future risk
		case position == 1:
			status = p.Status
		case IsCardMethod(p.PaymentMethod):
			status = p.Status
		}

		drafts = append(drafts, RecordDraft{
			Type:          p.Type,
			Amount:        amount,
			Description:   positionLabel(p.ServiceLabel, fmt.Sprintf("(%d/%d)", position, total)),
			PaymentMethod: p.PaymentMethod,
			ClientID:      p.ClientID,
			Status:        status,
			DueDate:       AddMonthsClamped(p.BaseDate, position-1),
		})
	}

	return drafts, nil
}

// IsCardMethod reports whether a payment method textually indicates a credit
// card. Substring match, case-insensitive, tolerant of missing accents.
func IsCardMethod(method string) bool {
	m := strings.ToLower(method)
	return strings.Contains(m, "cart") || strings.Contains(m, "card") ||
		strings.Contains(m, "crédito") || strings.Contains(m, "credito")
}

// AddMonthsClamped advances t by the given number of calendar months,
// clamping day-of-month overflow to the last day of the resulting month
// (Jan 31 + 1 month = Feb 28/29, never Mar 2/3).
func AddMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func positionLabel(label, suffix string) string {
	if label == "" {
		return suffix
	}
	return label + " " + suffix
}
