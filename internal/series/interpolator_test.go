package series

import (
	"errors"
	"testing"
	"time"

	"github.com/hydroglacier/glacierfrac/internal/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func record(year int, fractions ...float64) types.AnnualRecord {
	ids := make([]int, len(fractions))
	for i := range ids {
		ids[i] = i + 1
	}
	return types.AnnualRecord{Year: year, UnitIDs: ids, Fractions: fractions}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		year      int
		days      int
		flatDays  int
		rampSteps int
	}{
		{year: 2002, days: 365, flatDays: 151, rampSteps: 214},
		{year: 2004, days: 366, flatDays: 152, rampSteps: 214},
		{year: 2000, days: 366, flatDays: 152, rampSteps: 214},
		{year: 2100, days: 365, flatDays: 151, rampSteps: 214},
	}
	for _, tt := range tests {
		start, ramp, end := Window(tt.year)
		if got := daysBetween(start, end); got != tt.days {
			t.Errorf("%d: window has %d days, expected %d", tt.year, got, tt.days)
		}
		if got := daysBetween(start, ramp) - 1; got != tt.flatDays {
			t.Errorf("%d: %d flat days, expected %d", tt.year, got, tt.flatDays)
		}
		if got := daysBetween(ramp, end); got != tt.rampSteps {
			t.Errorf("%d: %d ramp steps, expected %d", tt.year, got, tt.rampSteps)
		}
	}
}

func TestWorkedExample(t *testing.T) {
	tbl, err := Build([]int{1, 2}, []types.AnnualRecord{
		record(2001, 0.5, 0.0),
		record(2002, 0.75, 0.25),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	first, last := tbl.Span()
	if !first.Equal(date(2001, time.October, 1)) || !last.Equal(date(2002, time.September, 30)) {
		t.Fatalf("span = %s..%s", first, last)
	}
	if tbl.Len() != 365 {
		t.Fatalf("Len() = %d, expected 365", tbl.Len())
	}

	feb28 := tbl.IndexOf(date(2002, time.February, 28))
	mar1 := tbl.IndexOf(date(2002, time.March, 1))
	sep30 := tbl.IndexOf(date(2002, time.September, 30))
	if feb28 != 150 || mar1 != 151 || sep30 != 364 {
		t.Fatalf("indices feb28=%d mar1=%d sep30=%d", feb28, mar1, sep30)
	}

	for d := 0; d <= feb28; d++ {
		row := tbl.Row(d)
		if row[0] != 0.5 || row[1] != 0.0 {
			t.Fatalf("%s = %v, expected flat [0.5 0]", tbl.Dates[d].Format("2006-01-02"), row)
		}
	}
	if row := tbl.Row(mar1); row[0] != 0.5 || row[1] != 0.0 {
		t.Errorf("1 March = %v, expected ramp start [0.5 0]", row)
	}
	if row := tbl.Row(sep30); row[0] != 0.75 || row[1] != 0.25 {
		t.Errorf("30 September = %v, expected [0.75 0.25]", row)
	}

	step := 0.25 / 213
	if got := tbl.Values[0][mar1+1] - 0.5; got < step*0.999 || got > step*1.001 {
		t.Errorf("first ramp increment = %v, expected %v", got, step)
	}
}

func TestDailyInvariants(t *testing.T) {
	records := []types.AnnualRecord{
		record(2000, 0.9, 0.2, 0.4),
		record(2001, 0.8, 0.2, 0.6),
		record(2002, 0.8, 0.1, 0.7),
		record(2003, 0.6, 0.3, 0.7),
		record(2004, 0.55, 0.3, 0.1),
	}
	tbl, err := Build([]int{1, 2, 3}, records)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	start, _, _ := Window(2001)
	_, _, end := Window(2004)
	if tbl.Len() != daysBetween(start, end) {
		t.Fatalf("Len() = %d, expected %d", tbl.Len(), daysBetween(start, end))
	}
	for d := 1; d < tbl.Len(); d++ {
		if !tbl.Dates[d].Equal(tbl.Dates[d-1].AddDate(0, 0, 1)) {
			t.Fatalf("gap between %s and %s", tbl.Dates[d-1], tbl.Dates[d])
		}
	}

	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		start, ramp, end := Window(cur.Year)
		startIdx, rampIdx, endIdx := tbl.IndexOf(start), tbl.IndexOf(ramp), tbl.IndexOf(end)
		for u := range tbl.UnitIDs {
			col := tbl.Values[u]
			for d := startIdx; d < rampIdx; d++ {
				if col[d] != prev.Fractions[u] {
					t.Fatalf("unit %d on %s = %v, expected flat %v", u+1, tbl.Dates[d].Format("2006-01-02"), col[d], prev.Fractions[u])
				}
			}
			if col[endIdx] != cur.Fractions[u] {
				t.Errorf("unit %d on %s = %v, expected %v", u+1, end.Format("2006-01-02"), col[endIdx], cur.Fractions[u])
			}
			for d := rampIdx + 1; d <= endIdx; d++ {
				delta := col[d] - col[d-1]
				switch {
				case prev.Fractions[u] < cur.Fractions[u] && delta < 0:
					t.Fatalf("unit %d decreases on %s during a rising ramp", u+1, tbl.Dates[d])
				case prev.Fractions[u] > cur.Fractions[u] && delta > 0:
					t.Fatalf("unit %d increases on %s during a falling ramp", u+1, tbl.Dates[d])
				case prev.Fractions[u] == cur.Fractions[u] && delta != 0:
					t.Fatalf("unit %d changes on %s during a constant ramp", u+1, tbl.Dates[d])
				}
			}
		}
	}
}

func TestBuildRejectsOutOfOrderYears(t *testing.T) {
	tests := []struct {
		name    string
		records []types.AnnualRecord
	}{
		{
			name:    "descending",
			records: []types.AnnualRecord{record(2003, 0.1), record(2001, 0.2), record(2002, 0.3)},
		},
		{
			name:    "duplicate",
			records: []types.AnnualRecord{record(2001, 0.1), record(2002, 0.2), record(2002, 0.3)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Build([]int{1}, tt.records)
			var oe *types.OrderingError
			if !errors.As(err, &oe) {
				t.Fatalf("expected OrderingError, got %v", err)
			}
			if tbl != nil {
				t.Error("no table may be produced on ordering errors")
			}
		})
	}
}

func TestPushRejectsOutOfOrderYear(t *testing.T) {
	ip := NewInterpolator([]int{1})
	if err := ip.Push(record(2003, 0.5)); err != nil {
		t.Fatal(err)
	}
	if err := ip.Push(record(2001, 0.4)); !errors.Is(err, types.ErrOrdering) {
		t.Fatalf("expected ErrOrdering, got %v", err)
	}
}

func TestSeedYearEmitsNothing(t *testing.T) {
	tbl, err := Build([]int{1, 2}, []types.AnnualRecord{record(2001, 0.5, 0.1)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !tbl.Empty() {
		t.Errorf("single-year table has %d days, expected none", tbl.Len())
	}
	if len(tbl.Annual) != 1 {
		t.Errorf("annual matrix has %d rows, expected 1", len(tbl.Annual))
	}
}

func TestMissingYearHoldsPreviousFraction(t *testing.T) {
	// 2002 was skipped: its window holds 2001's value, and 2003 ramps from it.
	tbl, err := Build([]int{1}, []types.AnnualRecord{record(2001, 0.4), record(2003, 0.2)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	start, _, _ := Window(2002)
	_, ramp2003, end2003 := Window(2003)
	if tbl.Len() != daysBetween(start, end2003) {
		t.Fatalf("Len() = %d, expected %d", tbl.Len(), daysBetween(start, end2003))
	}

	col := tbl.Column(1)
	rampIdx := tbl.IndexOf(ramp2003)
	for d := 0; d <= rampIdx; d++ {
		if col[d] != 0.4 {
			t.Fatalf("%s = %v, expected 0.4", tbl.Dates[d].Format("2006-01-02"), col[d])
		}
	}
	if col[len(col)-1] != 0.2 {
		t.Errorf("last value = %v, expected 0.2", col[len(col)-1])
	}
	if got := tbl.AnnualYears(); len(got) != 2 || got[0] != 2001 || got[1] != 2003 {
		t.Errorf("AnnualYears() = %v", got)
	}
}

func TestPushValidatesUnits(t *testing.T) {
	ip := NewInterpolator([]int{1, 2})
	bad := types.AnnualRecord{Year: 2001, UnitIDs: []int{2, 1}, Fractions: []float64{0, 0}}
	if err := ip.Push(bad); err == nil {
		t.Error("expected error for mismatched unit order")
	}
	if err := ip.Push(record(2001, 0.1)); err == nil {
		t.Error("expected error for missing unit")
	}
}

func TestPushAfterTable(t *testing.T) {
	ip := NewInterpolator([]int{1})
	if err := ip.Push(record(2001, 0.1)); err != nil {
		t.Fatal(err)
	}
	if _, err := ip.Table(); err != nil {
		t.Fatal(err)
	}
	if err := ip.Push(record(2002, 0.2)); !errors.Is(err, ErrFinalized) {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
}

func TestTableDetectsLengthMismatch(t *testing.T) {
	ip := NewInterpolator([]int{1, 2})
	if err := ip.Push(record(2001, 0.1, 0.2)); err != nil {
		t.Fatal(err)
	}
	if err := ip.Push(record(2002, 0.3, 0.4)); err != nil {
		t.Fatal(err)
	}
	ip.values[1] = ip.values[1][:10]

	_, err := ip.Table()
	var ae *types.AssemblyError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AssemblyError, got %v", err)
	}
	if ae.UnitID != 2 || ae.Got != 10 || ae.Want != 365 {
		t.Errorf("AssemblyError = %+v", ae)
	}
}
