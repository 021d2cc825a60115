package revenue

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision of every stored amount.
const MoneyPlaces = 2

// Entry is one month of a distribution.
type Entry struct {
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	SalesAmount  decimal.Decimal `json:"sales_amount"`
	MarginAmount decimal.Decimal `json:"gross_margin_amount"`
	Forecast     bool            `json:"is_forecast"`
}

// FirstOfMonth truncates t to 00:00 UTC on the first day of its month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthSpan counts calendar months from start to end inclusive, ignoring the
// day of month. It is zero or negative when end falls in an earlier month.
func MonthSpan(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
}

// DurationMonths counts whole months elapsed between the two dates plus one.
// Unlike MonthSpan it looks at the day of month: Jan 15 to Mar 20 is 3,
// Jan 15 to Mar 10 is 2. A one-month span whose later date is the last day
// of its month is complete, so Jan 31 to Feb 28 is 2.
func DurationMonths(start, end time.Time) int {
	return wholeMonths(end, start) + 1
}

// wholeMonths is the signed number of full months from earlier to later.
func wholeMonths(later, earlier time.Time) int {
	later = time.Date(later.Year(), later.Month(), later.Day(), 0, 0, 0, 0, time.UTC)
	earlier = time.Date(earlier.Year(), earlier.Month(), earlier.Day(), 0, 0, 0, 0, time.UTC)

	sign := later.Compare(earlier)
	diff := (later.Year()-earlier.Year())*12 + int(later.Month()) - int(earlier.Month())
	if diff < 0 {
		diff = -diff
	}
	if diff < 1 {
		return 0
	}

	y, m, day := later.Date()
	if m == time.February && day > 27 {
		day = 30
	}
	// time.Date normalizes overflow: Feb 30 becomes early March.
	y, m, day = time.Date(y, m, day, 0, 0, 0, 0, time.UTC).Date()
	back := time.Date(y, m-time.Month(sign*diff), day, 0, 0, 0, 0, time.UTC)

	short := back.Compare(earlier) == -sign
	if diff == 1 && sign > 0 && lastDayOfMonth(later) {
		short = false
	}
	if short {
		diff--
	}
	return sign * diff
}

func lastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}

// Distribute spreads weighted evenly over every month from start to end. Each
// entry is rounded on its own, so the entries may not add back up to weighted
// exactly.
func Distribute(weighted, marginPct decimal.Decimal, start, end time.Time) []Entry {
	first := FirstOfMonth(start)
	n := MonthSpan(first, FirstOfMonth(end))
	if n <= 0 {
		return []Entry{}
	}

	monthly := weighted.Div(decimal.NewFromInt(int64(n)))
	sales := monthly.Round(MoneyPlaces)
	margin := monthly.Mul(marginPct).Round(MoneyPlaces)

	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		m := first.AddDate(0, i, 0)
		out = append(out, Entry{
			Year:         m.Year(),
			Month:        int(m.Month()),
			SalesAmount:  sales,
			MarginAmount: margin,
			Forecast:     true,
		})
	}
	return out
}
