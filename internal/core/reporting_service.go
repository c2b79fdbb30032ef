package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReportEvaluator answers finalized REPORT intents. It reads through the
// entity services rather than owning its own SQL, so the same filtering
// primitives back both reports and the dialogue executor.
type ReportEvaluator interface {
	Evaluate(ctx context.Context, userID int, q ReportQuery, now time.Time) (string, error)
}

type reportEvaluator struct {
	appointments AppointmentService
	finance      FinanceService
}

func NewReportEvaluator(appointments AppointmentService, finance FinanceService) ReportEvaluator {
	return &reportEvaluator{appointments: appointments, finance: finance}
}

func (e *reportEvaluator) Evaluate(ctx context.Context, userID int, q ReportQuery, now time.Time) (string, error) {
	switch q.Entity {
	case ReportEntityAppointment:
		return e.appointmentReport(ctx, userID, q, now)
	case ReportEntityFinancial:
		if q.ClientName != "" {
			return e.clientDebtReport(ctx, userID, q)
		}
		if q.Status == StatusPending && q.Period == PeriodMonth && q.Type != "" {
			return e.pendingReport(ctx, userID, q, now)
		}
		return e.financialSummary(ctx, userID, q, now)
	case ReportEntityClient:
		if q.Metric == ReportMetricBest {
			return e.bestClientReport(ctx, userID)
		}
		return "", fmt.Errorf("unsupported client metric %q", q.Metric)
	default:
		return "", fmt.Errorf("unknown report entity %q", q.Entity)
	}
}

func (e *reportEvaluator) appointmentReport(ctx context.Context, userID int, q ReportQuery, now time.Time) (string, error) {
	from, to, label, err := PeriodRange(q, now)
	if err != nil {
		return "", err
	}

	appts, err := e.appointments.ListBetween(ctx, userID, from, to)
	if err != nil {
		return "", err
	}

	if q.Metric == ReportMetricCount {
		switch len(appts) {
		case 0:
			return fmt.Sprintf("Você não tem agendamentos para %s.", label), nil
		case 1:
			return fmt.Sprintf("Você tem 1 agendamento para %s.", label), nil
		default:
			return fmt.Sprintf("Você tem %d agendamentos para %s.", len(appts), label), nil
		}
	}

	if len(appts) == 0 {
		return fmt.Sprintf("Nenhum agendamento encontrado para %s.", label), nil
	}
	return fmt.Sprintf("Sua agenda para %s:\n%s", label, RenderAppointmentList(appts, now)), nil
}

// pendingReport answers "what do I still have to receive/pay this month",
// splitting the total into overdue and upcoming so an already-late amount is
// never presented as a healthy future receivable.
func (e *reportEvaluator) pendingReport(ctx context.Context, userID int, q ReportQuery, now time.Time) (string, error) {
	_, to, label, err := PeriodRange(q, now)
	if err != nil {
		return "", err
	}

	records, err := e.finance.ListPendingByType(ctx, userID, q.Type)
	if err != nil {
		return "", err
	}

	verb := "a receber"
	if q.Type == Expense {
		verb = "a pagar"
	}

	b := PartitionPending(records, now, to)
	total := b.Overdue.Add(b.Upcoming)
	switch {
	case total.IsZero():
		return fmt.Sprintf("Você não tem valores %s em %s.", verb, label), nil
	case b.Upcoming.IsZero():
		return fmt.Sprintf("Atenção: todo o valor pendente (%s) já está em atraso.", FormatBRL(b.Overdue)), nil
	case b.Overdue.IsZero():
		return fmt.Sprintf("Você tem %s %s até o fim de %s.", FormatBRL(b.Upcoming), verb, label), nil
	default:
		return fmt.Sprintf("Você tem %s em atraso e %s %s até o fim de %s.",
			FormatBRL(b.Overdue), FormatBRL(b.Upcoming), verb, label), nil
	}
}

// financialSummary is the historical view: records are filtered by creation
// date, not due date, optionally narrowed by type and status.
func (e *reportEvaluator) financialSummary(ctx context.Context, userID int, q ReportQuery, now time.Time) (string, error) {
	from, to, label, err := PeriodRange(q, now)
	if err != nil {
		return "", err
	}

	records, err := e.finance.ListBetween(ctx, userID, from, to)
	if err != nil {
		return "", err
	}

	total := decimal.Zero
	count := 0
	for _, r := range records {
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		total = total.Add(r.Amount)
		count++
	}

	noun := "lançamentos"
	switch q.Type {
	case Income:
		noun = "receitas"
	case Expense:
		noun = "despesas"
	}

	if count == 0 {
		return fmt.Sprintf("Nenhum registro de %s encontrado em %s.", noun, label), nil
	}
	return fmt.Sprintf("Total de %s em %s: %s (%d registros).", noun, label, FormatBRL(total), count), nil
}

// clientDebtReport answers "quanto a Maria está devendo": the sum of one
// client's pending records, regardless of period.
func (e *reportEvaluator) clientDebtReport(ctx context.Context, userID int, q ReportQuery) (string, error) {
	records, err := e.finance.ListPendingByClient(ctx, userID, q.ClientName)
	if err != nil {
		return "", err
	}

	if len(records) == 0 {
		return fmt.Sprintf("%s não tem valores pendentes.", q.ClientName), nil
	}

	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	if len(records) == 1 {
		return fmt.Sprintf("%s está devendo %s (1 lançamento pendente).", q.ClientName, FormatBRL(total)), nil
	}
	return fmt.Sprintf("%s está devendo %s (%d lançamentos pendentes).", q.ClientName, FormatBRL(total), len(records)), nil
}

func (e *reportEvaluator) bestClientReport(ctx context.Context, userID int) (string, error) {
	totals, err := e.finance.SumIncomeByClient(ctx, userID)
	if err != nil {
		return "", err
	}

	best := BestClient(totals)
	if best == nil {
		return "Ainda não há vendas registradas para apontar um melhor cliente.", nil
	}
	return fmt.Sprintf("Seu melhor cliente é %s, com %s em vendas.", best.ClientName, FormatBRL(best.Total)), nil
}
