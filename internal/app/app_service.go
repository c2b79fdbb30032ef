package app

import (
	"context"
	"time"

	"business-assistant/internal/core"
	"business-assistant/internal/dialogue"
)

type appService struct {
	machine      *dialogue.Machine
	clients      core.ClientService
	appointments core.AppointmentService
	finance      core.FinanceService
	reports      core.ReportEvaluator
}

// NewAppService wires the dialogue machine and the domain services behind the
// ApplicationService interface.
func NewAppService(
	machine *dialogue.Machine,
	clients core.ClientService,
	appointments core.AppointmentService,
	finance core.FinanceService,
	reports core.ReportEvaluator,
) ApplicationService {
	return &appService{
		machine:      machine,
		clients:      clients,
		appointments: appointments,
		finance:      finance,
		reports:      reports,
	}
}

func (s *appService) HandleMessage(ctx context.Context, userID int, state dialogue.ConversationState, text string, history []string) *ChatResult {
	next, replies := s.machine.HandleTurn(ctx, userID, state, text, history)
	return &ChatResult{State: next, Replies: replies}
}

func (s *appService) ListClients(ctx context.Context, userID int) ([]core.Client, error) {
	return s.clients.List(ctx, userID)
}

func (s *appService) TodayAgenda(ctx context.Context, userID int) ([]core.Appointment, error) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.appointments.ListBetween(ctx, userID, from, from.AddDate(0, 0, 1))
}

func (s *appService) PendingByType(ctx context.Context, userID int, typ core.RecordType) ([]core.FinancialRecord, error) {
	return s.finance.ListPendingByType(ctx, userID, typ)
}

func (s *appService) MonthSummary(ctx context.Context, userID int) (string, error) {
	now := time.Now()
	q := core.ReportQuery{
		Entity:      core.ReportEntityFinancial,
		Metric:      core.ReportMetricSum,
		Period:      core.PeriodMonth,
		TargetMonth: int(now.Month()),
		TargetYear:  now.Year(),
		Type:        core.Income,
	}
	return s.reports.Evaluate(ctx, userID, q, now)
}
