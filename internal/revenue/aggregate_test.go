package revenue

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int {
	return &v
}

func TestAggregateYearsFromMonths(t *testing.T) {
	var entries []Entry
	entries = append(entries, Distribute(d("1000"), d("0.13"), day(2024, time.November, 1), day(2025, time.January, 31))...)
	entries = append(entries, Distribute(d("600"), d("0.2"), day(2025, time.January, 1), day(2025, time.February, 1))...)

	r := Aggregate(entries, YearRange{})
	if len(r.ByMonth) != 4 {
		t.Fatalf("by month=%d want=4", len(r.ByMonth))
	}
	jan := r.ByMonth[2]
	if jan.Year != 2025 || jan.Month != 1 || !jan.SalesAmount.Equal(d("633.33")) {
		t.Fatalf("jan=%+v", jan)
	}
	for i := 1; i < len(r.ByMonth); i++ {
		prev, cur := r.ByMonth[i-1], r.ByMonth[i]
		if prev.Year > cur.Year || (prev.Year == cur.Year && prev.Month >= cur.Month) {
			t.Fatalf("by month not ascending at %d", i)
		}
	}

	for _, yt := range r.ByYear {
		sales, margin := decimal.Zero, decimal.Zero
		months := 0
		for _, mt := range r.ByMonth {
			if mt.Year == yt.Year {
				sales = sales.Add(mt.SalesAmount)
				margin = margin.Add(mt.MarginAmount)
				months++
			}
		}
		if !sales.Equal(yt.SalesAmount) || !margin.Equal(yt.MarginAmount) || months != yt.Months {
			t.Fatalf("year %d=%+v months sum sales=%s margin=%s n=%d", yt.Year, yt, sales, margin, months)
		}
	}
	if len(r.ByYear) != 2 || r.ByYear[0].Year != 2024 || r.ByYear[1].Year != 2025 {
		t.Fatalf("by year=%+v", r.ByYear)
	}
}

func TestAggregateYearRange(t *testing.T) {
	entries := Distribute(d("2400"), d("0.1"), day(2024, time.July, 1), day(2026, time.June, 1))
	r := Aggregate(entries, YearRange{From: intPtr(2025), To: intPtr(2025)})
	if len(r.ByMonth) != 12 || len(r.ByYear) != 1 {
		t.Fatalf("by month=%d by year=%d", len(r.ByMonth), len(r.ByYear))
	}
	if !r.ByYear[0].SalesAmount.Equal(d("1200")) {
		t.Fatalf("2025 sales=%s want=1200", r.ByYear[0].SalesAmount)
	}
}

func TestAggregateEmpty(t *testing.T) {
	r := Aggregate(nil, YearRange{})
	if len(r.ByMonth) != 0 || len(r.ByYear) != 0 {
		t.Fatalf("rollup=%+v", r)
	}
	if r.ByYear == nil || r.ByMonth == nil {
		t.Fatalf("empty rollup should encode as empty arrays")
	}
}

func TestSummarize(t *testing.T) {
	entries := Distribute(d("12000"), d("0.13"), day(2025, time.November, 1), day(2026, time.February, 1))
	got := Summarize(entries)
	if len(got) != 2 {
		t.Fatalf("years=%d want=2", len(got))
	}
	if got[0].Year != 2025 || got[0].Months != 2 || !got[0].SalesAmount.Equal(d("6000")) {
		t.Fatalf("2025=%+v", got[0])
	}
	if !got[1].MarginAmount.Equal(d("780")) {
		t.Fatalf("2026 margin=%s want=780", got[1].MarginAmount)
	}
}
