package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type RecordType string

const (
	Income  RecordType = "income"
	Expense RecordType = "expense"
)

type RecordStatus string

const (
	StatusPaid    RecordStatus = "paid"
	StatusPending RecordStatus = "pending"
)

type Client struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Appointment struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	ClientID   *int      `json:"client_id,omitempty"`
	ClientName string    `json:"client_name"`
	Service    string    `json:"service"`
	StartsAt   time.Time `json:"starts_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type FinancialRecord struct {
	ID            int             `json:"id"`
	UserID        int             `json:"user_id"`
	Type          RecordType      `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	ClientID      *int            `json:"client_id,omitempty"`
	Status        RecordStatus    `json:"status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IntentKind is the closed set of commands the oracle may classify an
// utterance into. Anything outside this set fails closed at the parse
// boundary.
type IntentKind string

const (
	IntentAddClient            IntentKind = "ADD_CLIENT"
	IntentDeleteClient         IntentKind = "DELETE_CLIENT"
	IntentListClients          IntentKind = "LIST_CLIENTS"
	IntentScheduleService      IntentKind = "SCHEDULE_SERVICE"
	IntentCancelAppointment    IntentKind = "CANCEL_APPOINTMENT"
	IntentRegisterSale         IntentKind = "REGISTER_SALE"
	IntentRegisterExpense      IntentKind = "REGISTER_EXPENSE"
	IntentDeleteLastAction     IntentKind = "DELETE_LAST_ACTION"
	IntentMultiAction          IntentKind = "MULTI_ACTION"
	IntentCheckClientSchedule  IntentKind = "CHECK_CLIENT_SCHEDULE"
	IntentReport               IntentKind = "REPORT"
	IntentRiskyAction          IntentKind = "RISKY_ACTION"
	IntentConfirmationRequired IntentKind = "CONFIRMATION_REQUIRED"
	IntentUnknown              IntentKind = "UNKNOWN"
)

// KnownIntents lets the parse boundary reject intents outside the closed set.
var KnownIntents = map[IntentKind]bool{
	IntentAddClient:            true,
	IntentDeleteClient:         true,
	IntentListClients:          true,
	IntentScheduleService:      true,
	IntentCancelAppointment:    true,
	IntentRegisterSale:         true,
	IntentRegisterExpense:      true,
	IntentDeleteLastAction:     true,
	IntentMultiAction:          true,
	IntentCheckClientSchedule:  true,
	IntentReport:               true,
	IntentRiskyAction:          true,
	IntentConfirmationRequired: true,
	IntentUnknown:              true,
}

// SubAction is one step of a MULTI_ACTION batch. It is intentionally flat:
// the oracle only batches client creation, scheduling and sales.
type SubAction struct {
	Intent        IntentKind `json:"intent" jsonschema_description:"One of ADD_CLIENT, SCHEDULE_SERVICE, REGISTER_SALE"`
	ClientName    string     `json:"client_name,omitempty" jsonschema_description:"Client name for this step"`
	Service       string     `json:"service,omitempty" jsonschema_description:"Service description for this step"`
	Amount        float64    `json:"amount,omitempty" jsonschema_description:"Monetary amount for this step"`
	PaymentMethod string     `json:"payment_method,omitempty" jsonschema_description:"Payment method for this step"`
	DateTime      string     `json:"date_time,omitempty" jsonschema_description:"ISO-8601 timestamp for this step"`
	Status        string     `json:"status,omitempty" jsonschema_description:"paid or pending"`
}

// CommandData is the structured payload the oracle extracts from an
// utterance. Fields accumulate monotonically across clarification turns:
// Merge never lets a zero value overwrite a field already resolved.
type CommandData struct {
	ClientName       string     `json:"client_name,omitempty" jsonschema_description:"Exact client name mentioned by the user"`
	Service          string     `json:"service,omitempty" jsonschema_description:"Service or expense description"`
	Amount           float64    `json:"amount,omitempty" jsonschema_description:"Total monetary amount in BRL"`
	Installments     int        `json:"installments,omitempty" jsonschema_description:"Number of installments, 1 when paid at once"`
	HasDownPayment   bool       `json:"has_down_payment,omitempty" jsonschema_description:"True when the user mentioned an upfront down payment (entrada)"`
	DownPaymentValue float64    `json:"down_payment_value,omitempty" jsonschema_description:"Down payment amount in BRL"`
	InstallmentValue float64    `json:"installment_value,omitempty" jsonschema_description:"Explicit per-installment amount, when the user stated it"`
	PaymentMethod    string     `json:"payment_method,omitempty" jsonschema_description:"Payment method as the user said it (Pix, Dinheiro, Cartão de Crédito...)"`
	DueDate          string     `json:"due_date,omitempty" jsonschema_description:"First due date in YYYY-MM-DD when the user gave one"`
	DateTime         string     `json:"date_time,omitempty" jsonschema_description:"Resolved ISO-8601 timestamp for scheduling, using the supplied current date"`
	TimeText         string     `json:"time_text,omitempty" jsonschema_description:"Raw time expression when it could not be resolved to a timestamp"`
	Status           string     `json:"status,omitempty" jsonschema_description:"paid when money already changed hands, pending otherwise"`
	MissingField     string     `json:"missing_field,omitempty" jsonschema_description:"Name of the single required field still missing, when asking for clarification"`
	TargetIntent     IntentKind `json:"target_intent,omitempty" jsonschema_description:"For RISKY_ACTION: the intent to run once the user confirms"`

	// Report query fields.
	Entity       string `json:"entity,omitempty" jsonschema_description:"Report entity: APPOINTMENT, FINANCIAL or CLIENT"`
	Metric       string `json:"metric,omitempty" jsonschema_description:"Report metric: COUNT, SUM, LIST or BEST"`
	Period       string `json:"period,omitempty" jsonschema_description:"Report period: TODAY, TOMORROW, NEXT_MONTH, MONTH or SPECIFIC_DATE"`
	TargetMonth  int    `json:"target_month,omitempty" jsonschema_description:"Month 1-12 when period is MONTH"`
	TargetYear   int    `json:"target_year,omitempty" jsonschema_description:"Four-digit year when period is MONTH"`
	SpecificDate string `json:"specific_date,omitempty" jsonschema_description:"YYYY-MM-DD when period is SPECIFIC_DATE"`
	RecordType   string `json:"record_type,omitempty" jsonschema_description:"Financial filter: income or expense"`
	RecordStatus string `json:"record_status,omitempty" jsonschema_description:"Financial filter: paid or pending"`

	Actions []SubAction `json:"actions,omitempty" jsonschema_description:"Ordered steps for MULTI_ACTION"`
}

// Merge folds other into d, keeping every field d already has. Slot filling
// relies on this: a narrowed oracle call must never erase earlier answers.
func (d *CommandData) Merge(other CommandData) {
	if d.ClientName == "" {
		d.ClientName = other.ClientName
	}
	if d.Service == "" {
		d.Service = other.Service
	}
	if d.Amount == 0 {
		d.Amount = other.Amount
	}
	if d.Installments == 0 {
		d.Installments = other.Installments
	}
	if !d.HasDownPayment {
		d.HasDownPayment = other.HasDownPayment
	}
	if d.DownPaymentValue == 0 {
		d.DownPaymentValue = other.DownPaymentValue
	}
	if d.InstallmentValue == 0 {
		d.InstallmentValue = other.InstallmentValue
	}
	if d.PaymentMethod == "" {
		d.PaymentMethod = other.PaymentMethod
	}
	if d.DueDate == "" {
		d.DueDate = other.DueDate
	}
	if d.DateTime == "" {
		d.DateTime = other.DateTime
	}
	if d.TimeText == "" {
		d.TimeText = other.TimeText
	}
	if d.Status == "" {
		d.Status = other.Status
	}
	// MissingField reflects the latest oracle turn, never accumulated data.
	d.MissingField = other.MissingField
	if d.TargetIntent == "" {
		d.TargetIntent = other.TargetIntent
	}
	if d.Entity == "" {
		d.Entity = other.Entity
	}
	if d.Metric == "" {
		d.Metric = other.Metric
	}
	if d.Period == "" {
		d.Period = other.Period
	}
	if d.TargetMonth == 0 {
		d.TargetMonth = other.TargetMonth
	}
	if d.TargetYear == 0 {
		d.TargetYear = other.TargetYear
	}
	if d.SpecificDate == "" {
		d.SpecificDate = other.SpecificDate
	}
	if d.RecordType == "" {
		d.RecordType = other.RecordType
	}
	if d.RecordStatus == "" {
		d.RecordStatus = other.RecordStatus
	}
	if len(d.Actions) == 0 {
		d.Actions = other.Actions
	}
}

// IntentResult is the oracle's full answer for one utterance.
type IntentResult struct {
	Intent  IntentKind  `json:"intent" jsonschema_description:"The classified intent, one of the closed IntentKind set"`
	Data    CommandData `json:"data" jsonschema_description:"Structured fields extracted from the utterance"`
	Message string      `json:"message" jsonschema_description:"Short reply or clarifying question for the user, in Brazilian Portuguese"`
	// Confidence is a placeholder the upstream model fills with a constant;
	// it is not derived from a real signal and must not gate any decision.
	Confidence float64 `json:"confidence,omitempty" jsonschema_description:"Confidence score between 0.0 and 1.0"`
}
