package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"business-assistant/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Executor runs finalized intents against the domain services. Execution can
// still suspend into a clarification state (unknown client, missing payment
// method); the caller carries the returned state into the next turn.
type Executor struct {
	clients      core.ClientService
	appointments core.AppointmentService
	finance      core.FinanceService
	activity     core.ActivityService
	reports      core.ReportEvaluator

	now    func() time.Time
	newKey func() string
}

func NewExecutor(
	clients core.ClientService,
	appointments core.AppointmentService,
	finance core.FinanceService,
	activity core.ActivityService,
	reports core.ReportEvaluator,
) *Executor {
	return &Executor{
		clients:      clients,
		appointments: appointments,
		finance:      finance,
		activity:     activity,
		reports:      reports,
		now:          time.Now,
		newKey:       uuid.NewString,
	}
}

// Execute dispatches one intent. It returns the next conversation state and
// the replies for this turn.
func (e *Executor) Execute(ctx context.Context, userID int, p PendingIntent) (ConversationState, []Reply) {
	switch p.Kind {
	case core.IntentRegisterSale, core.IntentRegisterExpense:
		return e.registerTransaction(ctx, userID, p.Kind, p.Data)
	case core.IntentScheduleService:
		return e.schedule(ctx, userID, p.Data)
	case core.IntentAddClient:
		return e.addClient(ctx, userID, p.Data)
	case core.IntentDeleteClient:
		return e.deleteClient(ctx, userID, p.Data)
	case core.IntentListClients:
		return e.listClients(ctx, userID)
	case core.IntentCancelAppointment:
		return e.cancelAppointment(ctx, userID, p.Data)
	case core.IntentCheckClientSchedule:
		return e.checkClientSchedule(ctx, userID, p.Data)
	case core.IntentDeleteLastAction:
		return e.deleteLastAction(ctx, userID)
	case core.IntentReport:
		return e.report(ctx, userID, p.Data)
	case core.IntentMultiAction:
		return e.multiAction(ctx, userID, p.Data.Actions)
	default:
		return Idle(), []Reply{errReply(msgNotUnderstood)}
	}
}

// nextMissingSlot picks the next field to ask for, in fixed precedence order:
// service, amount, installments, down payment presence, down payment value,
// due date. Fields whose zero value is a legitimate default (installments,
// due date) are only asked when the oracle flagged them missing.
func nextMissingSlot(d core.CommandData, oracleMissing string) string {
	if d.Service == "" {
		return SlotService
	}
	if d.Amount == 0 {
		return SlotAmount
	}
	if oracleMissing == SlotInstallments && d.Installments == 0 {
		return SlotInstallments
	}
	if oracleMissing == SlotHasDownPayment && !d.HasDownPayment && d.DownPaymentValue == 0 {
		return SlotHasDownPayment
	}
	if d.HasDownPayment || d.DownPaymentValue > 0 {
		if d.DownPaymentValue == 0 {
			return SlotDownPaymentValue
		}
		if d.Installments < 2 {
			// an entry occupies the first installment slot
			return SlotInstallments
		}
	}
	if oracleMissing == SlotDueDate && d.DueDate == "" {
		return SlotDueDate
	}
	return ""
}

// ── Transactions ──

func (e *Executor) registerTransaction(ctx context.Context, userID int, kind core.IntentKind, d core.CommandData) (ConversationState, []Reply) {
	if d.Amount < 0 {
		return Idle(), []Reply{errReply(msgAmountInvalid)}
	}

	pending := &PendingIntent{Kind: kind, Data: d}
	if slot := nextMissingSlot(d, d.MissingField); slot != "" {
		return ConversationState{Kind: StateFillingSlot, Pending: pending, MissingSlot: slot},
			[]Reply{question(questionForSlot(slot))}
	}

	var clientID *int
	clientName := ""
	if kind == core.IntentRegisterSale && d.ClientName != "" {
		c, err := e.clients.FindByExactName(ctx, userID, d.ClientName)
		if errors.Is(err, core.ErrClientNotFound) {
			return ConversationState{Kind: StateConfirmAddClient, ProposedName: d.ClientName, Pending: pending},
				[]Reply{question(confirmAddClientQuestion(d.ClientName))}
		}
		if err != nil {
			return Idle(), []Reply{errReply(msgReadError)}
		}
		clientID = &c.ID
		clientName = c.Name
	}

	hasEntry := d.HasDownPayment || d.DownPaymentValue > 0
	needsMethod := kind == core.IntentRegisterSale || d.Installments >= 2 || hasEntry
	if needsMethod && d.PaymentMethod == "" {
		msg := msgAskPaymentMethod
		if hasEntry {
			msg = msgAskEntryMethod
		}
		return ConversationState{Kind: StateAskPaymentMethod, Pending: pending, EntryPayment: hasEntry},
			[]Reply{question(msg)}
	}

	plan := buildPlan(kind, d, clientID, e.now())
	drafts, err := plan.Expand()
	if err != nil {
		return Idle(), []Reply{errReply(msgPlanInvalid)}
	}

	records, err := e.finance.CreateRecords(ctx, userID, drafts, e.newKey())
	if err != nil {
		return Idle(), []Reply{errReply(msgSaveError)}
	}
	return Idle(), []Reply{success(summarizeRecords(kind, records, clientName))}
}

func buildPlan(kind core.IntentKind, d core.CommandData, clientID *int, now time.Time) core.TransactionPlan {
	typ := core.Income
	if kind == core.IntentRegisterExpense {
		typ = core.Expense
	}

	var base time.Time
	if d.DueDate != "" {
		if t, err := time.ParseInLocation("2006-01-02", d.DueDate, now.Location()); err == nil {
			base = t
		}
	}

	var status core.RecordStatus
	if d.Status == string(core.StatusPending) {
		status = core.StatusPending
	}

	plan := core.TransactionPlan{
		Type:          typ,
		Amount:        decimal.NewFromFloat(d.Amount),
		Installments:  d.Installments,
		PaymentMethod: d.PaymentMethod,
		BaseDate:      base,
		ServiceLabel:  d.Service,
		Status:        status,
		ClientID:      clientID,
	}
	if d.DownPaymentValue > 0 {
		plan.DownPayment = decimal.NewFromFloat(d.DownPaymentValue)
	}
	if d.InstallmentValue > 0 {
		plan.InstallmentValue = decimal.NewFromFloat(d.InstallmentValue)
	}
	plan.Normalize(now)
	return plan
}

func summarizeRecords(kind core.IntentKind, records []core.FinancialRecord, clientName string) string {
	noun := "Venda registrada"
	if kind == core.IntentRegisterExpense {
		noun = "Despesa registrada"
	}

	if len(records) == 1 {
		r := records[0]
		s := fmt.Sprintf("%s: %s — %s", noun, r.Description, core.FormatBRL(r.Amount))
		if clientName != "" {
			s += " (" + clientName + ")"
		}
		return s + "."
	}

	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	target := ""
	if clientName != "" {
		target = " para " + clientName
	}
	return fmt.Sprintf("%s%s: %d lançamentos somando %s.", noun, target, len(records), core.FormatBRL(total))
}

// ── Scheduling ──

func (e *Executor) schedule(ctx context.Context, userID int, d core.CommandData) (ConversationState, []Reply) {
	pending := &PendingIntent{Kind: core.IntentScheduleService, Data: d}
	if d.Service == "" {
		return ConversationState{Kind: StateAskService, Pending: pending},
			[]Reply{question(msgAskService)}
	}

	startsAt, ok := resolveScheduleTime(d.DateTime, d.TimeText, e.now())
	if !ok {
		return Idle(), []Reply{errReply(msgDateInvalid)}
	}

	appt := core.Appointment{UserID: userID, Service: d.Service, StartsAt: startsAt, ClientName: d.ClientName}
	if d.ClientName != "" {
		c, err := e.clients.FindByExactName(ctx, userID, d.ClientName)
		if errors.Is(err, core.ErrClientNotFound) {
			return ConversationState{Kind: StateConfirmAddClient, ProposedName: d.ClientName, Pending: pending},
				[]Reply{question(confirmAddClientQuestion(d.ClientName))}
		}
		if err != nil {
			return Idle(), []Reply{errReply(msgReadError)}
		}
		appt.ClientID = &c.ID
		appt.ClientName = c.Name
	}

	created, err := e.appointments.Create(ctx, appt)
	if err != nil {
		return Idle(), []Reply{errReply(msgSaveError)}
	}

	target := ""
	if created.ClientName != "" {
		target = " para " + created.ClientName
	}
	return Idle(), []Reply{success(fmt.Sprintf("Agendado: %s%s em %s.",
		created.Service, target, created.StartsAt.Format("02/01 às 15:04")))}
}

func (e *Executor) cancelAppointment(ctx context.Context, userID int, d core.CommandData) (ConversationState, []Reply) {
	if d.ClientName == "" {
		return Idle(), []Reply{errReply("De qual cliente devo cancelar o agendamento?")}
	}

	c, err := e.clients.FindByExactName(ctx, userID, d.ClientName)
	if errors.Is(err, core.ErrClientNotFound) {
		return Idle(), []Reply{info(clientNotFoundMsg(d.ClientName))}
	}
	if err != nil {
		return Idle(), []Reply{errReply(msgReadError)}
	}

	appt, err := e.appointments.FindNextForClient(ctx, userID, c.ID, e.now())
	if errors.Is(err, core.ErrAppointmentNotFound) {
		return Idle(), []Reply{info(fmt.Sprintf("%s não tem agendamentos futuros para cancelar.", c.Name))}
	}
	if err != nil {
		return Idle(), []Reply{errReply(msgReadError)}
	}

	if err := e.appointments.Delete(ctx, userID, appt.ID); err != nil {
		return Idle(), []Reply{errReply(msgSaveError)}
	}
	return Idle(), []Reply{success(fmt.Sprintf("Cancelado: %s de %s em %s.",
		appt.Service, c.Name, appt.StartsAt.Format("02/01 às 15:04")))}
}

func (e *Executor) checkClientSchedule(ctx context.Context, userID int, d core.CommandData) (ConversationState, []Reply) {
	if d.ClientName == "" {
		return Idle(), []Reply{errReply("De qual cliente você quer ver a agenda?")}
	}

	// Read-only lookup, so the looser substring match is allowed here.
	c, err := e.clients.FindBySubstring(ctx, userID, d.ClientName)
	if errors.Is(err, core.ErrClientNotFound) {
		return Idle(), []Reply{info(clientNotFoundMsg(d.ClientName))}
	}
	if err != nil {
		return Idle(), []Reply{errReply(msgReadError)}
	}

	appt, err := e.appointments.FindNextForClient(ctx, userID, c.ID, e.now())
	if errors.Is(err, core.ErrAppointmentNotFound) {
		return Idle(), []Reply{success(fmt.Sprintf("%s não tem agendamentos marcados.", c.Name))}
	}
	if err != nil {
		return Idle(), []Reply{errReply(msgReadError)}
	}
	return Idle(), []Reply{success(fmt.Sprintf("Próximo agendamento de %s: %s em %s.",
		c.Name, appt.Service, appt.StartsAt.Format("02/01 às 15:04")))}
}

// ── Clients ──

func clientNotFoundMsg(name string) string {
	return fmt.Sprintf("Não encontrei nenhum cliente chamado %q.", name)
}

func (e *Executor) addClient(ctx context.Context, userID int, d core.CommandData) (ConversationState, []Reply) {
	name := strings.TrimSpace(d.ClientName)
	if name == "" {
		return Idle(), []Reply{errReply("Preciso do nome do cliente para cadastrar.")}
	}

	if _, err := e.clients.FindByExactName(ctx, userID, name); err == nil {
		return Idle(), []Reply{info(fmt.Sprintf("%s já está cadastrado.", name))}
	} else if !errors.Is(err, core.ErrClientNotFound) {
		return Idle(), []Reply{errReply(msgReadError)}
	}

	c, err := e.clients.Create(ctx, userID, name, "")
	if err != nil {
		return Idle(), []Reply{errReply(msgSaveError)}
	}
	return Idle(), []Reply{success(fmt.Sprintf("Cliente %s cadastrado!", c.Name))}
}

func (e *Executor) deleteClient(ctx context.Context, userID int, d core.CommandData) (ConversationState, []Reply) {
	name := strings.TrimSpace(d.ClientName)
	if name == "" {
		return Idle(), []Reply{errReply("Qual cliente devo remover?")}
	}

	err := e.clients.DeleteByName(ctx, userID, name)
	if errors.Is(err, core.ErrClientNotFound) {
		return Idle(), []Reply{info(clientNotFoundMsg(name))}
	}
	if err != nil {
		return Idle(), []Reply{errReply(msgSaveError)}
	}
	return Idle(), []Reply{success(fmt.Sprintf("Cliente %s removido.", name))}
}

func (e *Executor) listClients(ctx context.Context, userID int) (ConversationState, []Reply) {
	clients, err := e.clients.List(ctx, userID)
	if err != nil {
		return Idle(), []Reply{errReply(msgReadError)}
	}
	if len(clients) == 0 {
		return Idle(), []Reply{info("Você ainda não tem clientes cadastrados.")}
	}

	var sb strings.Builder
	sb.WriteString("Seus clientes:\n")
	for _, c := range clients {
		sb.WriteString("• ")
		sb.WriteString(c.Name)
		sb.WriteString("\n")
	}
	return Idle(), []Reply{success(strings.TrimRight(sb.String(), "\n"))}
}

// CreateClientAndResume handles the confirmed branch of ConfirmAddClient:
// create the proposed client, then re-run the suspended intent, whose name
// resolution now succeeds. The user is never asked again for data already
// captured.
func (e *Executor) CreateClientAndResume(ctx context.Context, userID int, state ConversationState) (ConversationState, []Reply) {
	name := state.ProposedName
	if name == "" && state.Pending != nil {
		name = state.Pending.Data.ClientName
	}
	if name == "" {
		return Idle(), []Reply{errReply(msgNotUnderstood)}
	}

	c, err := e.clients.Create(ctx, userID, name, "")
	if err != nil {
		return Idle(), []Reply{errReply(msgSaveError)}
	}
	replies := []Reply{success(fmt.Sprintf("Cliente %s cadastrado!", c.Name))}

	if state.Pending == nil {
		return Idle(), replies
	}
	next, more := e.Execute(ctx, userID, *state.Pending)
	return next, append(replies, more...)
}

// ── Misc actions ──

func (e *Executor) deleteLastAction(ctx context.Context, userID int) (ConversationState, []Reply) {
	deleted, err := e.activity.DeleteMostRecent(ctx, userID)
	if errors.Is(err, core.ErrNothingToDelete) {
		return Idle(), []Reply{info(msgNothingToUndo)}
	}
	if err != nil {
		return Idle(), []Reply{errReply(msgSaveError)}
	}

	if deleted.Entity == "appointment" {
		return Idle(), []Reply{success(fmt.Sprintf("Apagado o último agendamento: %s.", deleted.Description))}
	}
	return Idle(), []Reply{success(fmt.Sprintf("Apagado o último lançamento: %s.", deleted.Description))}
}

func (e *Executor) report(ctx context.Context, userID int, d core.CommandData) (ConversationState, []Reply) {
	if d.Entity == "" {
		return Idle(), []Reply{errReply(msgNotUnderstood)}
	}

	q := core.ReportQuery{
		Entity:       d.Entity,
		Metric:       d.Metric,
		Period:       d.Period,
		TargetMonth:  d.TargetMonth,
		TargetYear:   d.TargetYear,
		SpecificDate: d.SpecificDate,
		ClientName:   d.ClientName,
		Type:         core.RecordType(d.RecordType),
		Status:       core.RecordStatus(d.RecordStatus),
	}
	answer, err := e.reports.Evaluate(ctx, userID, q, e.now())
	if err != nil {
		return Idle(), []Reply{errReply(msgReadError)}
	}
	return Idle(), []Reply{success(answer)}
}

// Sub-intents a MULTI_ACTION batch may carry.
var multiActionKinds = map[core.IntentKind]bool{
	core.IntentAddClient:       true,
	core.IntentScheduleService: true,
	core.IntentRegisterSale:    true,
}

// multiAction runs batch steps in order, best effort: a failed or incomplete
// step is reported and skipped, the rest still run. Steps never suspend the
// conversation; a sale that would need clarification is skipped instead.
func (e *Executor) multiAction(ctx context.Context, userID int, actions []core.SubAction) (ConversationState, []Reply) {
	if len(actions) == 0 {
		return Idle(), []Reply{errReply(msgNotUnderstood)}
	}

	var replies []Reply
	for i, a := range actions {
		if !multiActionKinds[a.Intent] {
			replies = append(replies, errReply(fmt.Sprintf("Pulei a etapa %d: ação não suportada em lote.", i+1)))
			continue
		}

		sub := PendingIntent{Kind: a.Intent, Data: core.CommandData{
			ClientName:    a.ClientName,
			Service:       a.Service,
			Amount:        a.Amount,
			PaymentMethod: a.PaymentMethod,
			DateTime:      a.DateTime,
			Status:        a.Status,
		}}
		state, stepReplies := e.Execute(ctx, userID, sub)
		if state.Kind != StateIdle {
			replies = append(replies, errReply(fmt.Sprintf("Pulei a etapa %d: faltam informações para completá-la.", i+1)))
			continue
		}
		replies = append(replies, stepReplies...)
	}
	return Idle(), replies
}
