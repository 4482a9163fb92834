package core

import (
	"fmt"
	"time"
)

// DayAmount is the net amount (income positive, expense negative) booked
// on one day of a month.
type DayAmount struct {
	Day int
	Net float64
}

// MonthNet aggregates transactions of the given year and month into a
// per-day net map keyed by day of month. Ledger dates are matched by their
// YYYY-MM prefix, mirroring how the calendar view buckets entries.
func MonthNet(transactions []Transaction, year, month int) map[int]float64 {
	prefix := fmt.Sprintf("%04d-%02d", year, month)
	out := map[int]float64{}
	for _, t := range transactions {
		if len(t.Date) != 10 || t.Date[:7] != prefix {
			continue
		}
		var day int
		if _, err := fmt.Sscanf(t.Date[8:], "%d", &day); err != nil || day < 1 || day > 31 {
			continue
		}
		if t.Type == Income {
			out[day] += t.Amount
		} else {
			out[day] -= t.Amount
		}
	}
	return out
}

// DayTransactions returns the entries whose ledger date equals the given
// calendar day.
func DayTransactions(transactions []Transaction, year, month, day int) []Transaction {
	date := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	var out []Transaction
	for _, t := range transactions {
		if t.Date == date {
			out = append(out, t)
		}
	}
	return out
}

// RecordedOn filters transactions by their recording timestamp falling on
// the given calendar day, newest first, capped at limit (limit <= 0 means
// no cap). Entries arrive in recording order, so the walk runs from the
// tail and the cap keeps the most recent matches. Used by the
// today-activity view.
func RecordedOn(transactions []Transaction, day time.Time, limit int) []Transaction {
	y, m, d := day.Date()
	var out []Transaction
	for i := len(transactions) - 1; i >= 0; i-- {
		t := transactions[i]
		ts, err := time.Parse(time.RFC3339, t.CreatedAt)
		if err != nil {
			continue
		}
		ty, tm, td := ts.In(day.Location()).Date()
		if ty != y || tm != m || td != d {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// SavingsProgress is the derived view of the 365-day challenge.
type SavingsProgress struct {
	CompletedCount int
	Saved          int
	Target         int
	Percent        float64
}

// Progress computes the challenge dashboard numbers.
func (s SavingsState) Progress() SavingsProgress {
	saved := s.Total()
	return SavingsProgress{
		CompletedCount: len(s.CompletedDays),
		Saved:          saved,
		Target:         SavingsTarget,
		Percent:        float64(saved) / float64(SavingsTarget) * 100,
	}
}
