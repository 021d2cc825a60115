package revenue

import (
	"sort"

	"github.com/shopspring/decimal"
)

type MonthTotal struct {
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	SalesAmount  decimal.Decimal `json:"sales_amount"`
	MarginAmount decimal.Decimal `json:"gross_margin_amount"`
}

type YearTotal struct {
	Year         int             `json:"year"`
	SalesAmount  decimal.Decimal `json:"sales_amount"`
	MarginAmount decimal.Decimal `json:"gross_margin_amount"`
	Months       int             `json:"months"`
}

type Rollup struct {
	ByMonth []MonthTotal `json:"by_month"`
	ByYear  []YearTotal  `json:"by_year"`
}

// YearRange bounds an aggregation. Nil ends are open.
type YearRange struct {
	From *int
	To   *int
}

func (r YearRange) contains(year int) bool {
	if r.From != nil && year < *r.From {
		return false
	}
	if r.To != nil && year > *r.To {
		return false
	}
	return true
}

// Aggregate sums entries per month, then derives the yearly totals from the
// monthly rows so the two views always agree.
func Aggregate(entries []Entry, years YearRange) Rollup {
	type key struct{ year, month int }
	sums := map[key]*MonthTotal{}
	for _, e := range entries {
		if !years.contains(e.Year) {
			continue
		}
		k := key{e.Year, e.Month}
		mt, ok := sums[k]
		if !ok {
			mt = &MonthTotal{Year: e.Year, Month: e.Month, SalesAmount: decimal.Zero, MarginAmount: decimal.Zero}
			sums[k] = mt
		}
		mt.SalesAmount = mt.SalesAmount.Add(e.SalesAmount)
		mt.MarginAmount = mt.MarginAmount.Add(e.MarginAmount)
	}

	byMonth := make([]MonthTotal, 0, len(sums))
	for _, mt := range sums {
		mt.SalesAmount = mt.SalesAmount.Round(MoneyPlaces)
		mt.MarginAmount = mt.MarginAmount.Round(MoneyPlaces)
		byMonth = append(byMonth, *mt)
	}
	sort.Slice(byMonth, func(i, j int) bool {
		if byMonth[i].Year != byMonth[j].Year {
			return byMonth[i].Year < byMonth[j].Year
		}
		return byMonth[i].Month < byMonth[j].Month
	})

	return Rollup{ByMonth: byMonth, ByYear: yearsOf(byMonth)}
}

// Summarize is the yearly view of a single opportunity's entries.
func Summarize(entries []Entry) []YearTotal {
	return Aggregate(entries, YearRange{}).ByYear
}

func yearsOf(byMonth []MonthTotal) []YearTotal {
	out := []YearTotal{}
	for _, mt := range byMonth {
		if n := len(out); n > 0 && out[n-1].Year == mt.Year {
			out[n-1].SalesAmount = out[n-1].SalesAmount.Add(mt.SalesAmount)
			out[n-1].MarginAmount = out[n-1].MarginAmount.Add(mt.MarginAmount)
			out[n-1].Months++
			continue
		}
		out = append(out, YearTotal{
			Year:         mt.Year,
			SalesAmount:  mt.SalesAmount,
			MarginAmount: mt.MarginAmount,
			Months:       1,
		})
	}
	return out
}
