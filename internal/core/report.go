package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Report entity, metric and period vocabularies, as the oracle emits them.
const (
	ReportEntityAppointment = "APPOINTMENT"
	ReportEntityFinancial   = "FINANCIAL"
	ReportEntityClient      = "CLIENT"

	ReportMetricCount = "COUNT"
	ReportMetricSum   = "SUM"
	ReportMetricList  = "LIST"
	ReportMetricBest  = "BEST"

	PeriodToday        = "TODAY"
	PeriodTomorrow     = "TOMORROW"
	PeriodNextMonth    = "NEXT_MONTH"
	PeriodMonth        = "MONTH"
	PeriodSpecificDate = "SPECIFIC_DATE"
)

// ReportQuery is a finalized REPORT intent ready for evaluation.
type ReportQuery struct {
	Entity       string
	Metric       string
	Period       string
	TargetMonth  int
	TargetYear   int
	SpecificDate string
	ClientName   string       // optional: narrows financial queries to one client's debt
	Type         RecordType   // optional financial filter
	Status       RecordStatus // optional financial filter
}

var monthNames = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}

// PeriodRange resolves a report period into a half-open [from, to) interval
// plus a human label. Periods default to today when absent.
func PeriodRange(q ReportQuery, now time.Time) (from, to time.Time, label string, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch q.Period {
	case PeriodToday, "":
		return today, today.AddDate(0, 0, 1), "hoje", nil
	case PeriodTomorrow:
		return today.AddDate(0, 0, 1), today.AddDate(0, 0, 2), "amanhã", nil
	case PeriodNextMonth:
		first := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
		return first, first.AddDate(0, 1, 0), monthNames[first.Month()-1], nil
	case PeriodMonth:
		month := q.TargetMonth
		if month < 1 || month > 12 {
			return from, to, "", fmt.Errorf("invalid target month %d", q.TargetMonth)
		}
		year := q.TargetYear
		if year == 0 {
			year = now.Year()
		}
		first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
		return first, first.AddDate(0, 1, 0), monthNames[month-1], nil
	case PeriodSpecificDate:
		day, perr := time.ParseInLocation("2006-01-02", q.SpecificDate, now.Location())
		if perr != nil {
			return from, to, "", fmt.Errorf("invalid specific date %q: %w", q.SpecificDate, perr)
		}
		return day, day.AddDate(0, 0, 1), day.Format("02/01"), nil
	default:
		return from, to, "", fmt.Errorf("unknown period %q", q.Period)
	}
}

// PendingBreakdown partitions pending amounts relative to today and a target
// period ceiling.
type PendingBreakdown struct {
	Overdue  decimal.Decimal // due strictly before today
	Upcoming decimal.Decimal // due between today and the end of the period
}

// PartitionPending splits pending records into overdue and upcoming sums.
// periodEnd is exclusive, matching PeriodRange's half-open interval, so a
// record due any time on the period's last day still counts as upcoming
// (due dates carry a time of day when the plan base date did). Records due
// on or after periodEnd are out of scope for the question being asked and
// are excluded entirely. Records without a due date count as overdue: they
// were collectible the moment they were posted.
func PartitionPending(records []FinancialRecord, now, periodEnd time.Time) PendingBreakdown {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var b PendingBreakdown
	for _, r := range records {
		switch {
		case r.DueDate == nil || r.DueDate.Before(today):
			b.Overdue = b.Overdue.Add(r.Amount)
		case r.DueDate.Before(periodEnd):
			b.Upcoming = b.Upcoming.Add(r.Amount)
		}
	}
	return b
}

// BestClient returns the client with the highest total. Ties resolve to the
// first entry, which for SumIncomeByClient means first-seen order. An
// incidental policy, kept deliberately explicit here.
func BestClient(totals []ClientTotal) *ClientTotal {
	var best *ClientTotal
	for i := range totals {
		if best == nil || totals[i].Total.GreaterThan(best.Total) {
			best = &totals[i]
		}
	}
	return best
}

// RenderAppointmentList renders a bulleted agenda sorted by start time.
// Same-day appointments show only the time; anything else shows date + time.
func RenderAppointmentList(appts []Appointment, now time.Time) string {
	var sb strings.Builder
	for _, a := range appts {
		sb.WriteString("• ")
		if sameDay(a.StartsAt, now) {
			sb.WriteString(a.StartsAt.Format("15:04"))
		} else {
			sb.WriteString(a.StartsAt.Format("02/01 15:04"))
		}
		sb.WriteString(" — ")
		sb.WriteString(a.Service)
		if a.ClientName != "" {
			sb.WriteString(" (")
			sb.WriteString(a.ClientName)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FormatBRL renders a decimal as Brazilian currency ("R$ 1234,56").
func FormatBRL(d decimal.Decimal) string {
	return "R$ " + strings.ReplaceAll(d.StringFixed(2), ".", ",")
}
