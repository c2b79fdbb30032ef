package dialogue

import (
	"context"
	"strings"
	"time"

	"business-assistant/internal/ai"
	"business-assistant/internal/core"

	"github.com/rs/zerolog"
)

// historyWindow caps how much recent conversation the oracle sees.
const historyWindow = 10

// Machine is the per-turn dialogue engine. It owns the turn pipeline: usage
// gate, state dispatch, oracle classification, execution, quota refund. It
// holds no per-session data; the caller stores the returned state between
// turns.
type Machine struct {
	oracle ai.Oracle
	gate   core.UsageService
	exec   *Executor
	log    zerolog.Logger
	now    func() time.Time
}

func NewMachine(oracle ai.Oracle, gate core.UsageService, exec *Executor, log zerolog.Logger) *Machine {
	return &Machine{oracle: oracle, gate: gate, exec: exec, log: log, now: time.Now}
}

// HandleTurn processes one user utterance. Every turn is charged up front;
// the charge is refunded when the turn ends without a success reply, so
// clarifying questions and failures stay free.
func (m *Machine) HandleTurn(ctx context.Context, userID int, state ConversationState, input string, history []string) (ConversationState, []Reply) {
	input = strings.TrimSpace(input)
	if input == "" {
		return state, []Reply{info(msgNotUnderstood)}
	}

	decision, err := m.gate.CheckAndIncrement(ctx, userID)
	if err != nil {
		m.log.Error().Err(err).Int("user_id", userID).Msg("usage gate check failed")
		return state, []Reply{errReply(msgReadError)}
	}
	if !decision.Allowed {
		// A denial also wipes any pending clarification.
		return Idle(), quotaReplies(decision)
	}

	next, replies := m.dispatch(ctx, userID, state, input, history)

	if !hasSuccess(replies) {
		if err := m.gate.RefundLast(ctx, userID); err != nil {
			m.log.Warn().Err(err).Int("user_id", userID).Msg("usage refund failed")
		}
	}
	return next, replies
}

func (m *Machine) dispatch(ctx context.Context, userID int, state ConversationState, input string, history []string) (ConversationState, []Reply) {
	switch state.Kind {
	case StateConfirmAddClient:
		if isAffirmative(input) {
			return m.exec.CreateClientAndResume(ctx, userID, state)
		}
		// Denial discards the pending intent; the same utterance is then
		// reinterpreted as a fresh command.
		return m.fresh(ctx, userID, input, history)

	case StateConfirmAction:
		if isAffirmative(input) {
			if state.Pending == nil {
				return Idle(), []Reply{errReply(msgNotUnderstood)}
			}
			return m.exec.Execute(ctx, userID, *state.Pending)
		}
		return m.fresh(ctx, userID, input, history)

	case StateAskPaymentMethod:
		return m.completePaymentMethod(ctx, userID, state, input)

	case StateAskService:
		return m.completeService(ctx, userID, state, input)

	case StateFillingSlot:
		return m.fillSlot(ctx, userID, state, input)

	default:
		return m.fresh(ctx, userID, input, history)
	}
}

// completePaymentMethod takes the utterance verbatim as the payment method
// and re-runs the suspended transaction. The stored amount is re-validated
// before any write; a bad amount resets the conversation.
func (m *Machine) completePaymentMethod(ctx context.Context, userID int, state ConversationState, input string) (ConversationState, []Reply) {
	if state.Pending == nil {
		return Idle(), []Reply{errReply(msgNotUnderstood)}
	}

	d := state.Pending.Data
	d.PaymentMethod = strings.TrimSpace(input)
	if d.Amount <= 0 {
		return Idle(), []Reply{errReply(msgAmountInvalid)}
	}
	return m.exec.Execute(ctx, userID, PendingIntent{Kind: state.Pending.Kind, Data: d})
}

func (m *Machine) completeService(ctx context.Context, userID int, state ConversationState, input string) (ConversationState, []Reply) {
	if state.Pending == nil {
		return Idle(), []Reply{errReply(msgNotUnderstood)}
	}

	d := state.Pending.Data
	d.Service = strings.TrimSpace(input)
	return m.exec.Execute(ctx, userID, PendingIntent{Kind: state.Pending.Kind, Data: d})
}

// fillSlot runs one iteration of the slot-filling loop. Two deterministic
// patterns run before the oracle because slot answers routinely carry more
// than the asked field ("entrada de R$ 100 em 3x"); the oracle result is then
// merged monotonically on top.
func (m *Machine) fillSlot(ctx context.Context, userID int, state ConversationState, input string) (ConversationState, []Reply) {
	if state.Pending == nil {
		return Idle(), []Reply{errReply(msgNotUnderstood)}
	}

	d := state.Pending.Data
	if n := parseInstallmentCount(input); n > 0 && d.Installments == 0 {
		d.Installments = n
	}
	if v, ok := parseDownPayment(input); ok {
		d.HasDownPayment = true
		if d.DownPaymentValue == 0 {
			d.DownPaymentValue = v
		}
	}

	res, err := m.oracle.ClassifySlot(ctx, input, state.MissingSlot, d, m.now())
	if err != nil {
		m.log.Error().Err(err).Str("slot", state.MissingSlot).Msg("slot classification failed")
		return state, []Reply{errReply(msgOracleDown)}
	}
	d.Merge(res.Data)

	pending := PendingIntent{Kind: state.Pending.Kind, Data: d}
	if slot := nextMissingSlot(d, res.Data.MissingField); slot != "" {
		q := res.Message
		if res.Intent != core.IntentConfirmationRequired || q == "" {
			q = questionForSlot(slot)
		}
		return ConversationState{Kind: StateFillingSlot, Pending: &pending, MissingSlot: slot},
			[]Reply{question(q)}
	}
	return m.exec.Execute(ctx, userID, pending)
}

// fresh classifies the utterance as a new command and routes the result.
func (m *Machine) fresh(ctx context.Context, userID int, input string, history []string) (ConversationState, []Reply) {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	res, err := m.oracle.Classify(ctx, input, history, m.now())
	if err != nil {
		m.log.Error().Err(err).Int("user_id", userID).Msg("intent classification failed")
		return Idle(), []Reply{errReply(msgOracleDown)}
	}

	switch res.Intent {
	case core.IntentConfirmationRequired:
		return m.clarify(res)

	case core.IntentRiskyAction:
		kind := res.Data.TargetIntent
		if kind == "" || !core.KnownIntents[kind] {
			return Idle(), []Reply{errReply(msgNotUnderstood)}
		}
		q := res.Message
		if q == "" {
			q = "Tem certeza de que deseja continuar?"
		}
		return ConversationState{Kind: StateConfirmAction, Pending: &PendingIntent{Kind: kind, Data: res.Data}},
			[]Reply{question(q)}

	case core.IntentUnknown:
		msg := res.Message
		if msg == "" {
			msg = msgNotUnderstood
		}
		return Idle(), []Reply{errReply(msg)}

	default:
		return m.exec.Execute(ctx, userID, PendingIntent{Kind: res.Intent, Data: res.Data})
	}
}

// clarify routes a CONFIRMATION_REQUIRED result. Two known-missing-field
// shapes skip the generic loop and land directly in their dedicated state;
// everything else goes through slot filling or a yes/no confirmation.
func (m *Machine) clarify(res *core.IntentResult) (ConversationState, []Reply) {
	d := res.Data
	kind := d.TargetIntent
	if kind == "" || !core.KnownIntents[kind] {
		kind = inferIntent(d)
	}
	pending := &PendingIntent{Kind: kind, Data: d}
	hasEntry := d.HasDownPayment || d.DownPaymentValue > 0

	switch {
	case d.MissingField == SlotPaymentMethod && d.Amount > 0 && d.Service != "" &&
		(kind == core.IntentRegisterExpense ||
			(kind == core.IntentRegisterSale && d.ClientName != "")):
		msg := msgAskPaymentMethod
		if hasEntry {
			msg = msgAskEntryMethod
		}
		return ConversationState{Kind: StateAskPaymentMethod, Pending: pending, EntryPayment: hasEntry},
			[]Reply{question(msg)}

	case d.MissingField == SlotService && kind == core.IntentScheduleService:
		return ConversationState{Kind: StateAskService, Pending: pending},
			[]Reply{question(msgAskService)}

	case d.MissingField != "":
		q := res.Message
		if q == "" {
			q = questionForSlot(d.MissingField)
		}
		return ConversationState{Kind: StateFillingSlot, Pending: pending, MissingSlot: d.MissingField},
			[]Reply{question(q)}

	default:
		q := res.Message
		if q == "" {
			q = "Posso confirmar essa ação?"
		}
		return ConversationState{Kind: StateConfirmAction, Pending: pending}, []Reply{question(q)}
	}
}

// inferIntent guesses the underlying intent when a clarification result did
// not name one. Transactions dominate the ambiguous cases.
func inferIntent(d core.CommandData) core.IntentKind {
	switch {
	case len(d.Actions) > 0:
		return core.IntentMultiAction
	case d.Entity != "":
		return core.IntentReport
	case d.Amount > 0 || d.HasDownPayment || d.DownPaymentValue > 0:
		return core.IntentRegisterSale
	case d.DateTime != "" || d.TimeText != "":
		return core.IntentScheduleService
	default:
		return core.IntentRegisterSale
	}
}
