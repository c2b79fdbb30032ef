package dialogue

import (
	"context"
	"strings"
	"testing"

	"business-assistant/internal/ai"
	"business-assistant/internal/core"

	"github.com/rs/zerolog"
)

func newTestMachine(env *testEnv, oracle *fakeOracle, gate *fakeGate) *Machine {
	m := NewMachine(oracle, gate, env.exec, zerolog.Nop())
	m.now = env.exec.now
	return m
}

func TestHandleTurn_QuotaDenialResetsState(t *testing.T) {
	env := newTestEnv()
	gate := &fakeGate{decision: core.UsageDecision{Allowed: false, Count: 10, Limit: 10, Reason: core.DenyDailyLimit}}
	m := newTestMachine(env, &fakeOracle{}, gate)

	pending := &PendingIntent{Kind: core.IntentRegisterSale, Data: core.CommandData{Amount: 50}}
	state, replies := m.HandleTurn(context.Background(), 1,
		ConversationState{Kind: StateConfirmAction, Pending: pending}, "sim", nil)

	if state.Kind != StateIdle {
		t.Fatalf("state = %s, want IDLE (pending clarification dropped)", state.Kind)
	}
	if len(replies) != 3 {
		t.Fatalf("expected the three-part denial, got %+v", replies)
	}
	if !strings.Contains(replies[0].Text, "limite de 10") {
		t.Errorf("first reply = %q", replies[0].Text)
	}
	if replies[1].Text != msgQuotaManual || replies[2].Text != msgQuotaUpsell {
		t.Errorf("replies = %+v", replies)
	}
	if len(env.store.records) != 0 {
		t.Error("denied turn must not write")
	}
}

func TestHandleTurn_SubscriptionBlocks(t *testing.T) {
	tests := []struct {
		reason core.DenyReason
		want   string
	}{
		{core.DenyOverdueSubscription, msgOverdue},
		{core.DenyCanceledSubscription, msgCanceled},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			env := newTestEnv()
			gate := &fakeGate{decision: core.UsageDecision{Allowed: false, Reason: tt.reason}}
			m := newTestMachine(env, &fakeOracle{}, gate)

			_, replies := m.HandleTurn(context.Background(), 1, Idle(), "vendi 50", nil)
			if len(replies) != 1 || replies[0].Text != tt.want {
				t.Errorf("replies = %+v", replies)
			}
		})
	}
}

func TestHandleTurn_RefundsWhenNoWriteHappens(t *testing.T) {
	env := newTestEnv()
	gate := allowAll()
	oracle := &fakeOracle{classify: func(string, []string) (*core.IntentResult, error) {
		return &core.IntentResult{Intent: core.IntentUnknown, Message: "não entendi"}, nil
	}}
	m := newTestMachine(env, oracle, gate)

	m.HandleTurn(context.Background(), 1, Idle(), "blablabla", nil)

	if gate.charges != 1 || gate.refunds != 1 {
		t.Errorf("charges = %d, refunds = %d, want 1/1", gate.charges, gate.refunds)
	}
}

func TestHandleTurn_SuccessKeepsCharge(t *testing.T) {
	env := newTestEnv()
	env.seedClient(1, "Maria")
	gate := allowAll()
	oracle := &fakeOracle{classify: func(string, []string) (*core.IntentResult, error) {
		return &core.IntentResult{
			Intent: core.IntentRegisterSale,
			Data:   core.CommandData{ClientName: "Maria", Service: "Corte", Amount: 50, PaymentMethod: "Pix"},
		}, nil
	}}
	m := newTestMachine(env, oracle, gate)

	_, replies := m.HandleTurn(context.Background(), 1, Idle(), "vendi um corte de 50 pra Maria no pix", nil)

	if !hasSuccess(replies) {
		t.Fatalf("replies = %+v", replies)
	}
	if gate.charges != 1 || gate.refunds != 0 {
		t.Errorf("charges = %d, refunds = %d, want 1/0", gate.charges, gate.refunds)
	}
}

func TestHandleTurn_DenialReprocessesSameUtterance(t *testing.T) {
	env := newTestEnv()
	var classified string
	oracle := &fakeOracle{classify: func(utterance string, _ []string) (*core.IntentResult, error) {
		classified = utterance
		return &core.IntentResult{Intent: core.IntentListClients}, nil
	}}
	m := newTestMachine(env, oracle, allowAll())

	pending := &PendingIntent{
		Kind: core.IntentRegisterSale,
		Data: core.CommandData{ClientName: "Joana", Service: "Corte", Amount: 80, PaymentMethod: "Pix"},
	}
	state := ConversationState{Kind: StateConfirmAddClient, ProposedName: "Joana", Pending: pending}

	next, replies := m.HandleTurn(context.Background(), 1, state, "não, lista meus clientes", nil)

	if classified != "não, lista meus clientes" {
		t.Errorf("oracle saw %q, want the denial utterance itself", classified)
	}
	if next.Kind != StateIdle {
		t.Errorf("state = %s, want IDLE", next.Kind)
	}
	if len(env.store.clients) != 0 {
		t.Error("denied client creation must not happen")
	}
	if len(replies) == 0 {
		t.Fatal("expected the list-clients answer")
	}
}

func TestHandleTurn_ConfirmAddClientAffirmativeResumes(t *testing.T) {
	env := newTestEnv()
	m := newTestMachine(env, &fakeOracle{}, allowAll())

	pending := &PendingIntent{
		Kind: core.IntentRegisterSale,
		Data: core.CommandData{ClientName: "Joana", Service: "Corte", Amount: 80, PaymentMethod: "Pix"},
	}
	state := ConversationState{Kind: StateConfirmAddClient, ProposedName: "Joana", Pending: pending}

	next, replies := m.HandleTurn(context.Background(), 1, state, "sim, pode cadastrar", nil)

	if next.Kind != StateIdle {
		t.Fatalf("state = %s, want IDLE", next.Kind)
	}
	if len(env.store.clients) != 1 || len(env.store.records) != 1 {
		t.Errorf("clients = %d, records = %d, want 1/1", len(env.store.clients), len(env.store.records))
	}
	if !hasSuccess(replies) {
		t.Errorf("replies = %+v", replies)
	}
}

func TestHandleTurn_AskPaymentMethodCompletes(t *testing.T) {
	env := newTestEnv()
	env.seedClient(1, "Maria")
	m := newTestMachine(env, &fakeOracle{}, allowAll())

	pending := &PendingIntent{
		Kind: core.IntentRegisterSale,
		Data: core.CommandData{ClientName: "Maria", Service: "Escova", Amount: 60},
	}
	state := ConversationState{Kind: StateAskPaymentMethod, Pending: pending}

	next, replies := m.HandleTurn(context.Background(), 1, state, "dinheiro", nil)

	if next.Kind != StateIdle || !hasSuccess(replies) {
		t.Fatalf("state = %s, replies = %+v", next.Kind, replies)
	}
	if env.store.records[0].PaymentMethod != "dinheiro" {
		t.Errorf("payment method = %q", env.store.records[0].PaymentMethod)
	}
}

func TestHandleTurn_AskPaymentMethodInvalidAmountResets(t *testing.T) {
	env := newTestEnv()
	gate := allowAll()
	m := newTestMachine(env, &fakeOracle{}, gate)

	pending := &PendingIntent{
		Kind: core.IntentRegisterSale,
		Data: core.CommandData{ClientName: "Maria", Service: "Escova"}, // amount never captured
	}
	state := ConversationState{Kind: StateAskPaymentMethod, Pending: pending}

	next, replies := m.HandleTurn(context.Background(), 1, state, "pix", nil)

	if next.Kind != StateIdle {
		t.Fatalf("state = %s, want IDLE", next.Kind)
	}
	if len(replies) != 1 || replies[0].Text != msgAmountInvalid {
		t.Errorf("replies = %+v", replies)
	}
	if gate.refunds != 1 {
		t.Errorf("refunds = %d, want 1", gate.refunds)
	}
	if len(env.store.records) != 0 {
		t.Error("nothing may be written")
	}
}

func TestHandleTurn_AskServiceCompletes(t *testing.T) {
	env := newTestEnv()
	env.seedClient(1, "Maria")
	m := newTestMachine(env, &fakeOracle{}, allowAll())

	pending := &PendingIntent{
		Kind: core.IntentScheduleService,
		Data: core.CommandData{ClientName: "Maria", DateTime: "2026-08-28T14:00:00"},
	}
	state := ConversationState{Kind: StateAskService, Pending: pending}

	next, replies := m.HandleTurn(context.Background(), 1, state, "corte e escova", nil)

	if next.Kind != StateIdle || !hasSuccess(replies) {
		t.Fatalf("state = %s, replies = %+v", next.Kind, replies)
	}
	if env.store.appts[0].Service != "corte e escova" {
		t.Errorf("service = %q", env.store.appts[0].Service)
	}
}

func TestHandleTurn_SlotFillingAuxiliaryPatterns(t *testing.T) {
	env := newTestEnv()
	env.seedClient(1, "Maria")

	var gotSlot string
	var gotKnown core.CommandData
	oracle := &fakeOracle{classifySlot: func(_, slot string, known core.CommandData) (*core.IntentResult, error) {
		gotSlot = slot
		gotKnown = known
		// The oracle adds nothing; the deterministic patterns already did.
		return &core.IntentResult{Intent: core.IntentRegisterSale}, nil
	}}
	m := newTestMachine(env, oracle, allowAll())

	pending := &PendingIntent{
		Kind: core.IntentRegisterSale,
		Data: core.CommandData{ClientName: "Maria", Service: "Pacote", Amount: 300, PaymentMethod: "Pix", HasDownPayment: true},
	}
	state := ConversationState{Kind: StateFillingSlot, Pending: pending, MissingSlot: SlotDownPaymentValue}

	next, replies := m.HandleTurn(context.Background(), 1, state, "entrada de R$ 100 em 3x", nil)

	if gotSlot != SlotDownPaymentValue {
		t.Errorf("oracle asked for slot %q", gotSlot)
	}
	// The pattern results must reach the oracle as already-known fields.
	if gotKnown.DownPaymentValue != 100 || gotKnown.Installments != 3 {
		t.Errorf("known = %+v", gotKnown)
	}
	if next.Kind != StateIdle || !hasSuccess(replies) {
		t.Fatalf("state = %s, replies = %+v", next.Kind, replies)
	}
	if len(env.store.records) != 3 {
		t.Fatalf("records = %d, want entry + 2 installments", len(env.store.records))
	}
}

func TestHandleTurn_SlotFillingLoopsUntilComplete(t *testing.T) {
	env := newTestEnv()
	oracle := &fakeOracle{classifySlot: func(utterance, slot string, _ core.CommandData) (*core.IntentResult, error) {
		if slot == SlotService {
			return &core.IntentResult{Intent: core.IntentRegisterSale,
				Data: core.CommandData{Service: utterance}}, nil
		}
		return &core.IntentResult{Intent: core.IntentRegisterSale,
			Data: core.CommandData{Amount: 90, PaymentMethod: "Pix"}}, nil
	}}
	m := newTestMachine(env, oracle, allowAll())

	pending := &PendingIntent{Kind: core.IntentRegisterSale}
	state := ConversationState{Kind: StateFillingSlot, Pending: pending, MissingSlot: SlotService}

	state, replies := m.HandleTurn(context.Background(), 1, state, "Sobrancelha", nil)
	if state.Kind != StateFillingSlot || state.MissingSlot != SlotAmount {
		t.Fatalf("state = %s/%s, want FILLING_SLOT/amount", state.Kind, state.MissingSlot)
	}
	if len(replies) != 1 || replies[0].Type != ReplyQuestion {
		t.Fatalf("replies = %+v", replies)
	}

	state, replies = m.HandleTurn(context.Background(), 1, state, "90 no pix", nil)
	if state.Kind != StateIdle || !hasSuccess(replies) {
		t.Fatalf("state = %s, replies = %+v", state.Kind, replies)
	}
	if env.store.records[0].Description != "Sobrancelha (1/1)" {
		t.Errorf("description = %q", env.store.records[0].Description)
	}
}

func TestHandleTurn_OracleDownLeavesStateUntouched(t *testing.T) {
	env := newTestEnv()
	oracle := &fakeOracle{} // every call fails
	gate := allowAll()
	m := newTestMachine(env, oracle, gate)

	pending := &PendingIntent{Kind: core.IntentRegisterSale, Data: core.CommandData{Service: "Corte"}}
	state := ConversationState{Kind: StateFillingSlot, Pending: pending, MissingSlot: SlotAmount}

	next, replies := m.HandleTurn(context.Background(), 1, state, "50", nil)

	if next.Kind != StateFillingSlot || next.MissingSlot != SlotAmount {
		t.Fatalf("state = %s/%s, want unchanged FILLING_SLOT/amount", next.Kind, next.MissingSlot)
	}
	if len(replies) != 1 || replies[0].Text != msgOracleDown {
		t.Errorf("replies = %+v", replies)
	}
	if gate.refunds != 1 {
		t.Errorf("refunds = %d, failed turn must be free", gate.refunds)
	}
}

func TestHandleTurn_ConfirmationRequiredFastPaths(t *testing.T) {
	t.Run("missing payment method goes straight to ask state", func(t *testing.T) {
		env := newTestEnv()
		oracle := &fakeOracle{classify: func(string, []string) (*core.IntentResult, error) {
			return &core.IntentResult{
				Intent: core.IntentConfirmationRequired,
				Data: core.CommandData{
					ClientName: "Maria", Service: "Corte", Amount: 50,
					MissingField: SlotPaymentMethod, TargetIntent: core.IntentRegisterSale,
				},
			}, nil
		}}
		m := newTestMachine(env, oracle, allowAll())

		state, replies := m.HandleTurn(context.Background(), 1, Idle(), "vendi um corte de 50 pra Maria", nil)
		if state.Kind != StateAskPaymentMethod {
			t.Fatalf("state = %s, want ASK_PAYMENT_METHOD", state.Kind)
		}
		if len(replies) != 1 || replies[0].Text != msgAskPaymentMethod {
			t.Errorf("replies = %+v", replies)
		}
	})

	t.Run("sale without a client skips the payment fast path", func(t *testing.T) {
		env := newTestEnv()
		oracle := &fakeOracle{classify: func(string, []string) (*core.IntentResult, error) {
			return &core.IntentResult{
				Intent: core.IntentConfirmationRequired,
				Data: core.CommandData{
					Service: "Corte", Amount: 50,
					MissingField: SlotPaymentMethod, TargetIntent: core.IntentRegisterSale,
				},
			}, nil
		}}
		m := newTestMachine(env, oracle, allowAll())

		state, _ := m.HandleTurn(context.Background(), 1, Idle(), "vendi um corte de 50", nil)
		if state.Kind == StateAskPaymentMethod {
			t.Fatalf("clientless sale must not shortcut to ASK_PAYMENT_METHOD")
		}
		if state.Kind != StateFillingSlot || state.MissingSlot != SlotPaymentMethod {
			t.Fatalf("state = %s/%s, want FILLING_SLOT/payment_method", state.Kind, state.MissingSlot)
		}
	})

	t.Run("missing service on scheduling goes to ask state", func(t *testing.T) {
		env := newTestEnv()
		oracle := &fakeOracle{classify: func(string, []string) (*core.IntentResult, error) {
			return &core.IntentResult{
				Intent: core.IntentConfirmationRequired,
				Data: core.CommandData{
					ClientName: "Maria", DateTime: "2026-08-28T14:00:00",
					MissingField: SlotService, TargetIntent: core.IntentScheduleService,
				},
			}, nil
		}}
		m := newTestMachine(env, oracle, allowAll())

		state, _ := m.HandleTurn(context.Background(), 1, Idle(), "agenda a Maria amanhã às 14", nil)
		if state.Kind != StateAskService {
			t.Fatalf("state = %s, want ASK_SERVICE", state.Kind)
		}
	})

	t.Run("other missing fields enter slot filling", func(t *testing.T) {
		env := newTestEnv()
		oracle := &fakeOracle{classify: func(string, []string) (*core.IntentResult, error) {
			return &core.IntentResult{
				Intent:  core.IntentConfirmationRequired,
				Message: "Qual é o valor?",
				Data: core.CommandData{
					Service: "Corte", MissingField: SlotAmount, TargetIntent: core.IntentRegisterSale,
				},
			}, nil
		}}
		m := newTestMachine(env, oracle, allowAll())

		state, replies := m.HandleTurn(context.Background(), 1, Idle(), "vendi um corte pra Maria", nil)
		if state.Kind != StateFillingSlot || state.MissingSlot != SlotAmount {
			t.Fatalf("state = %s/%s", state.Kind, state.MissingSlot)
		}
		if replies[0].Text != "Qual é o valor?" {
			t.Errorf("reply = %q", replies[0].Text)
		}
	})
}

func TestHandleTurn_RiskyActionConfirmThenExecute(t *testing.T) {
	env := newTestEnv()
	env.exec.Execute(context.Background(), 1, PendingIntent{
		Kind: core.IntentRegisterExpense,
		Data: core.CommandData{Service: "Toalhas", Amount: 30},
	})

	oracle := &fakeOracle{classify: func(string, []string) (*core.IntentResult, error) {
		return &core.IntentResult{
			Intent:  core.IntentRiskyAction,
			Message: "Apagar sua última ação. Confirma?",
			Data:    core.CommandData{TargetIntent: core.IntentDeleteLastAction},
		}, nil
	}}
	m := newTestMachine(env, oracle, allowAll())

	state, replies := m.HandleTurn(context.Background(), 1, Idle(), "apaga a última coisa que eu fiz", nil)
	if state.Kind != StateConfirmAction {
		t.Fatalf("state = %s, want CONFIRM_ACTION", state.Kind)
	}
	if replies[0].Type != ReplyQuestion {
		t.Errorf("replies = %+v", replies)
	}
	if len(env.store.records) != 1 {
		t.Fatal("nothing may be deleted before confirmation")
	}

	state, replies = m.HandleTurn(context.Background(), 1, state, "sim", nil)
	if state.Kind != StateIdle || !hasSuccess(replies) {
		t.Fatalf("state = %s, replies = %+v", state.Kind, replies)
	}
	if len(env.store.records) != 0 {
		t.Error("confirmed deletion did not happen")
	}
}

func TestHandleTurn_HistoryWindowIsCapped(t *testing.T) {
	env := newTestEnv()
	var gotHistory []string
	oracle := &fakeOracle{classify: func(_ string, history []string) (*core.IntentResult, error) {
		gotHistory = history
		return &core.IntentResult{Intent: core.IntentListClients}, nil
	}}
	m := newTestMachine(env, oracle, allowAll())

	history := make([]string, 25)
	for i := range history {
		history[i] = "linha"
	}
	m.HandleTurn(context.Background(), 1, Idle(), "lista clientes", history)

	if len(gotHistory) != historyWindow {
		t.Errorf("history length = %d, want %d", len(gotHistory), historyWindow)
	}
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"sim", true},
		{"Sim!", true},
		{"sim, pode", true},
		{"s", true},
		{"pode", true},
		{"pode sim", true},
		{"claro que sim", true},
		{"ok", true},
		{"confirmo", true},
		{"não", false},
		{"nao pode", false},
		{"simplesmente não", false},
		{"sei lá", false},
		{"lista meus clientes", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isAffirmative(tt.input); got != tt.want {
				t.Errorf("isAffirmative(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHandleTurn_UnknownIntentKeepsOracleMessage(t *testing.T) {
	env := newTestEnv()
	oracle := &fakeOracle{classify: func(string, []string) (*core.IntentResult, error) {
		return &core.IntentResult{Intent: core.IntentUnknown, Message: "Não entendi, pode reformular?"}, nil
	}}
	m := newTestMachine(env, oracle, allowAll())

	state, replies := m.HandleTurn(context.Background(), 1, Idle(), "xyz", nil)
	if state.Kind != StateIdle {
		t.Fatalf("state = %s", state.Kind)
	}
	if len(replies) != 1 || replies[0].Type != ReplyError || replies[0].Text != "Não entendi, pode reformular?" {
		t.Errorf("replies = %+v", replies)
	}
}

func TestHandleTurn_ClassifyFailureFromIdle(t *testing.T) {
	env := newTestEnv()
	m := newTestMachine(env, &fakeOracle{}, allowAll())

	state, replies := m.HandleTurn(context.Background(), 1, Idle(), "vendi 50", nil)
	if state.Kind != StateIdle {
		t.Fatalf("state = %s", state.Kind)
	}
	if len(replies) != 1 || replies[0].Text != msgOracleDown {
		t.Errorf("replies = %+v", replies)
	}
}

// Guard against fake drift: the fakes must keep satisfying the real service
// interfaces the executor is wired with.
var (
	_ core.ClientService      = (*fakeClients)(nil)
	_ core.AppointmentService = (*fakeAppointments)(nil)
	_ core.FinanceService     = (*fakeFinance)(nil)
	_ core.ActivityService    = (*fakeActivity)(nil)
	_ core.ReportEvaluator    = (*fakeReports)(nil)
	_ ai.Oracle               = (*fakeOracle)(nil)
	_ core.UsageService       = (*fakeGate)(nil)
)
