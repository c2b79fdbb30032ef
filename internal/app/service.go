package app

import (
	"context"

	"business-assistant/internal/core"
	"business-assistant/internal/dialogue"
)

// ChatResult is one processed chat turn: the replies to show and the
// conversation state the caller must carry into the next turn.
type ChatResult struct {
	State   dialogue.ConversationState
	Replies []dialogue.Reply
}

// ApplicationService is the single interface all UI adapters (REPL, Web)
// call. It decouples presentation from business logic. Implementations must
// contain no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// HandleMessage runs one assistant turn: usage gate, intent
	// classification, dialogue state transition, execution. Denials and
	// failures come back as replies, never as an error.
	HandleMessage(ctx context.Context, userID int, state dialogue.ConversationState, text string, history []string) *ChatResult

	// ListClients returns the user's clients ordered by name.
	ListClients(ctx context.Context, userID int) ([]core.Client, error)

	// TodayAgenda returns today's appointments ordered by start time.
	TodayAgenda(ctx context.Context, userID int) ([]core.Appointment, error)

	// PendingByType returns pending records of one type ordered by due date.
	PendingByType(ctx context.Context, userID int, typ core.RecordType) ([]core.FinancialRecord, error)

	// MonthSummary renders the income summary for the current month.
	MonthSummary(ctx context.Context, userID int) (string, error)
}
