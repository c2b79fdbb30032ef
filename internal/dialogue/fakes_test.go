package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"business-assistant/internal/ai"
	"business-assistant/internal/core"
)

var fixedNow = time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

// memStore backs the in-memory service fakes. A shared tick clock keeps
// creation-order logic (most recent, first seen) deterministic.
type memStore struct {
	lastID  int
	clock   time.Time
	clients []core.Client
	appts   []core.Appointment
	records []core.FinancialRecord
	batches map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		clock:   time.Date(2026, 8, 27, 8, 0, 0, 0, time.UTC),
		batches: map[string]bool{},
	}
}

func (s *memStore) id() int { s.lastID++; return s.lastID }

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// ── ClientService fake ──

type fakeClients struct{ store *memStore }

func (f *fakeClients) List(_ context.Context, userID int) ([]core.Client, error) {
	var out []core.Client
	for _, c := range f.store.clients {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClients) Create(_ context.Context, userID int, name, phone string) (*core.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("client name is required")
	}
	c := core.Client{ID: f.store.id(), UserID: userID, Name: name, Phone: phone, CreatedAt: f.store.tick()}
	f.store.clients = append(f.store.clients, c)
	return &c, nil
}

func (f *fakeClients) DeleteByName(_ context.Context, userID int, name string) error {
	for i, c := range f.store.clients {
		if c.UserID == userID && strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			f.store.clients = append(f.store.clients[:i], f.store.clients[i+1:]...)
			return nil
		}
	}
	return core.ErrClientNotFound
}

func (f *fakeClients) FindByExactName(_ context.Context, userID int, name string) (*core.Client, error) {
	for _, c := range f.store.clients {
		if c.UserID == userID && strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			c := c
			return &c, nil
		}
	}
	return nil, core.ErrClientNotFound
}

func (f *fakeClients) FindBySubstring(_ context.Context, userID int, fragment string) (*core.Client, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return nil, core.ErrClientNotFound
	}
	for _, c := range f.store.clients {
		if c.UserID == userID && strings.Contains(strings.ToLower(c.Name), fragment) {
			c := c
			return &c, nil
		}
	}
	return nil, core.ErrClientNotFound
}

// ── AppointmentService fake ──

type fakeAppointments struct{ store *memStore }

func (f *fakeAppointments) Create(_ context.Context, a core.Appointment) (*core.Appointment, error) {
	if a.Service == "" || a.StartsAt.IsZero() {
		return nil, errors.New("incomplete appointment")
	}
	a.ID = f.store.id()
	a.CreatedAt = f.store.tick()
	f.store.appts = append(f.store.appts, a)
	return &a, nil
}

func (f *fakeAppointments) Delete(_ context.Context, userID, id int) error {
	for i, a := range f.store.appts {
		if a.UserID == userID && a.ID == id {
			f.store.appts = append(f.store.appts[:i], f.store.appts[i+1:]...)
			return nil
		}
	}
	return core.ErrAppointmentNotFound
}

func (f *fakeAppointments) FindNextForClient(_ context.Context, userID, clientID int, now time.Time) (*core.Appointment, error) {
	var next *core.Appointment
	for i, a := range f.store.appts {
		if a.UserID != userID || a.ClientID == nil || *a.ClientID != clientID || a.StartsAt.Before(now) {
			continue
		}
		if next == nil || a.StartsAt.Before(next.StartsAt) {
			next = &f.store.appts[i]
		}
	}
	if next == nil {
		return nil, core.ErrAppointmentNotFound
	}
	a := *next
	return &a, nil
}

func (f *fakeAppointments) ListBetween(_ context.Context, userID int, from, to time.Time) ([]core.Appointment, error) {
	var out []core.Appointment
	for _, a := range f.store.appts {
		if a.UserID == userID && !a.StartsAt.Before(from) && a.StartsAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) MostRecent(_ context.Context, userID int) (*core.Appointment, error) {
	var latest *core.Appointment
	for i, a := range f.store.appts {
		if a.UserID != userID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = &f.store.appts[i]
		}
	}
	if latest == nil {
		return nil, core.ErrAppointmentNotFound
	}
	a := *latest
	return &a, nil
}

// ── FinanceService fake ──

type fakeFinance struct{ store *memStore }

func (f *fakeFinance) CreateRecords(_ context.Context, userID int, drafts []core.RecordDraft, idempotencyKey string) ([]core.FinancialRecord, error) {
	if len(drafts) == 0 {
		return nil, errors.New("no records to create")
	}
	if idempotencyKey != "" {
		if f.store.batches[idempotencyKey] {
			return nil, fmt.Errorf("duplicate batch: idempotency key %s already exists", idempotencyKey)
		}
		f.store.batches[idempotencyKey] = true
	}

	records := make([]core.FinancialRecord, 0, len(drafts))
	for _, d := range drafts {
		r := core.FinancialRecord{
			ID:            f.store.id(),
			UserID:        userID,
			Type:          d.Type,
			Amount:        d.Amount,
			Description:   d.Description,
			PaymentMethod: d.PaymentMethod,
			ClientID:      d.ClientID,
			Status:        d.Status,
			CreatedAt:     f.store.tick(),
		}
		if !d.DueDate.IsZero() {
			due := d.DueDate
			r.DueDate = &due
		}
		f.store.records = append(f.store.records, r)
		records = append(records, r)
	}
	return records, nil
}

func (f *fakeFinance) Delete(_ context.Context, userID, id int) error {
	for i, r := range f.store.records {
		if r.UserID == userID && r.ID == id {
			f.store.records = append(f.store.records[:i], f.store.records[i+1:]...)
			return nil
		}
	}
	return core.ErrRecordNotFound
}

func (f *fakeFinance) ListBetween(_ context.Context, userID int, from, to time.Time) ([]core.FinancialRecord, error) {
	var out []core.FinancialRecord
	for _, r := range f.store.records {
		if r.UserID == userID && !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFinance) ListPendingByType(_ context.Context, userID int, typ core.RecordType) ([]core.FinancialRecord, error) {
	var out []core.FinancialRecord
	for _, r := range f.store.records {
		if r.UserID == userID && r.Type == typ && r.Status == core.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFinance) ListPendingByClient(_ context.Context, userID int, clientName string) ([]core.FinancialRecord, error) {
	var clientID int
	found := false
	for _, c := range f.store.clients {
		if c.UserID == userID && strings.EqualFold(c.Name, clientName) {
			clientID = c.ID
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}

	var out []core.FinancialRecord
	for _, r := range f.store.records {
		if r.UserID == userID && r.Status == core.StatusPending && r.ClientID != nil && *r.ClientID == clientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFinance) MostRecent(_ context.Context, userID int) (*core.FinancialRecord, error) {
	var latest *core.FinancialRecord
	for i, r := range f.store.records {
		if r.UserID != userID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = &f.store.records[i]
		}
	}
	if latest == nil {
		return nil, core.ErrRecordNotFound
	}
	r := *latest
	return &r, nil
}

func (f *fakeFinance) SumIncomeByClient(_ context.Context, userID int) ([]core.ClientTotal, error) {
	index := map[int]int{} // client id -> slot in totals
	var totals []core.ClientTotal
	for _, r := range f.store.records {
		if r.UserID != userID || r.Type != core.Income || r.ClientID == nil {
			continue
		}
		slot, ok := index[*r.ClientID]
		if !ok {
			name := ""
			for _, c := range f.store.clients {
				if c.ID == *r.ClientID {
					name = c.Name
					break
				}
			}
			slot = len(totals)
			index[*r.ClientID] = slot
			totals = append(totals, core.ClientTotal{ClientName: name})
		}
		totals[slot].Total = totals[slot].Total.Add(r.Amount)
	}
	return totals, nil
}

// ── ActivityService fake ──

type fakeActivity struct{ store *memStore }

func (f *fakeActivity) DeleteMostRecent(ctx context.Context, userID int) (*core.DeletedAction, error) {
	appts := &fakeAppointments{f.store}
	finance := &fakeFinance{f.store}

	a, aErr := appts.MostRecent(ctx, userID)
	r, rErr := finance.MostRecent(ctx, userID)
	switch {
	case aErr != nil && rErr != nil:
		return nil, core.ErrNothingToDelete
	case rErr == nil && (aErr != nil || !r.CreatedAt.Before(a.CreatedAt)):
		_ = finance.Delete(ctx, userID, r.ID)
		return &core.DeletedAction{Entity: "financial_record", Description: r.Description}, nil
	default:
		_ = appts.Delete(ctx, userID, a.ID)
		return &core.DeletedAction{Entity: "appointment", Description: a.Service + " — " + a.ClientName}, nil
	}
}

// ── ReportEvaluator fake ──

type fakeReports struct {
	answer string
	err    error
	got    core.ReportQuery
}

func (f *fakeReports) Evaluate(_ context.Context, _ int, q core.ReportQuery, _ time.Time) (string, error) {
	f.got = q
	return f.answer, f.err
}

// ── Oracle and usage gate fakes ──

type fakeOracle struct {
	classify     func(utterance string, history []string) (*core.IntentResult, error)
	classifySlot func(utterance, slot string, known core.CommandData) (*core.IntentResult, error)
}

var _ ai.Oracle = (*fakeOracle)(nil)

func (f *fakeOracle) Classify(_ context.Context, utterance string, history []string, _ time.Time) (*core.IntentResult, error) {
	if f.classify == nil {
		return nil, ai.ErrOracleUnavailable
	}
	return f.classify(utterance, history)
}

func (f *fakeOracle) ClassifySlot(_ context.Context, utterance, slot string, known core.CommandData, _ time.Time) (*core.IntentResult, error) {
	if f.classifySlot == nil {
		return nil, ai.ErrOracleUnavailable
	}
	return f.classifySlot(utterance, slot, known)
}

type fakeGate struct {
	decision core.UsageDecision
	charges  int
	refunds  int
}

func (g *fakeGate) CheckAndIncrement(context.Context, int) (*core.UsageDecision, error) {
	g.charges++
	d := g.decision
	return &d, nil
}

func (g *fakeGate) RefundLast(context.Context, int) error {
	g.refunds++
	return nil
}

func allowAll() *fakeGate {
	return &fakeGate{decision: core.UsageDecision{Allowed: true, Limit: 10}}
}

// ── Wiring helper ──

type testEnv struct {
	store   *memStore
	reports *fakeReports
	exec    *Executor
}

func newTestEnv() *testEnv {
	store := newMemStore()
	reports := &fakeReports{answer: "relatório pronto"}
	exec := NewExecutor(
		&fakeClients{store},
		&fakeAppointments{store},
		&fakeFinance{store},
		&fakeActivity{store},
		reports,
	)
	exec.now = func() time.Time { return fixedNow }

	key := 0
	exec.newKey = func() string {
		key++
		return fmt.Sprintf("key-%d", key)
	}
	return &testEnv{store: store, reports: reports, exec: exec}
}

func (env *testEnv) seedClient(userID int, name string) core.Client {
	c, err := (&fakeClients{env.store}).Create(context.Background(), userID, name, "")
	if err != nil {
		panic(err)
	}
	return *c
}
