package dialogue

import "business-assistant/internal/core"

// StateKind tags the conversation state union.
type StateKind string

const (
	// StateIdle means no clarification is pending; the next utterance is a
	// fresh command.
	StateIdle StateKind = "IDLE"

	// StateConfirmAddClient waits for a yes/no on creating ProposedName
	// before the pending intent can run.
	StateConfirmAddClient StateKind = "CONFIRM_ADD_CLIENT"

	// StateAskPaymentMethod holds a transaction complete except for its
	// payment method; the next utterance is taken as the method verbatim.
	StateAskPaymentMethod StateKind = "ASK_PAYMENT_METHOD"

	// StateAskService holds an appointment complete except for its service
	// description.
	StateAskService StateKind = "ASK_SERVICE"

	// StateConfirmAction waits for a yes/no before a mutating action runs.
	StateConfirmAction StateKind = "CONFIRM_ACTION"

	// StateFillingSlot is the generic slot-filling loop: the oracle is
	// re-invoked scoped to MissingSlot until the intent is complete.
	StateFillingSlot StateKind = "FILLING_SLOT"
)

// Slot names, matching the oracle's missing_field vocabulary. The fixed
// precedence order lives in nextMissingSlot.
const (
	SlotService          = "service"
	SlotAmount           = "amount"
	SlotInstallments     = "installments"
	SlotHasDownPayment   = "has_down_payment"
	SlotDownPaymentValue = "down_payment_value"
	SlotDueDate          = "due_date"
	SlotPaymentMethod    = "payment_method"
)

// PendingIntent is an intent awaiting confirmation or more data. Data only
// ever grows across turns (core.CommandData.Merge).
type PendingIntent struct {
	Kind core.IntentKind
	Data core.CommandData
}

// ConversationState is the single piece of cross-turn memory. It is replaced
// on every transition, never mutated in place, and there is at most one live
// value per session.
type ConversationState struct {
	Kind         StateKind
	ProposedName string         // ConfirmAddClient: the client to create
	Pending      *PendingIntent // the intent to resume once unblocked
	MissingSlot  string         // FillingSlot: the one field being asked for
	EntryPayment bool           // AskPaymentMethod: the method is for a down payment
}

// Idle returns the resting state.
func Idle() ConversationState {
	return ConversationState{Kind: StateIdle}
}

// ReplyType drives presentation and, for success, the quota refund decision:
// a turn without a success reply did not commit a write and is refunded.
type ReplyType string

const (
	ReplyInfo     ReplyType = "info"
	ReplySuccess  ReplyType = "success"
	ReplyError    ReplyType = "error"
	ReplyQuestion ReplyType = "question"
)

// Reply is one outgoing chat message.
type Reply struct {
	Type ReplyType `json:"type"`
	Text string    `json:"text"`
}

func info(text string) Reply     { return Reply{Type: ReplyInfo, Text: text} }
func success(text string) Reply  { return Reply{Type: ReplySuccess, Text: text} }
func errReply(text string) Reply { return Reply{Type: ReplyError, Text: text} }
func question(text string) Reply { return Reply{Type: ReplyQuestion, Text: text} }

func hasSuccess(replies []Reply) bool {
	for _, r := range replies {
		if r.Type == ReplySuccess {
			return true
		}
	}
	return false
}
