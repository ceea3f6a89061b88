package core

import (
	"testing"
	"time"
)

func visit(date, timeOfDay, location string, companions ...VisitCompanion) Visit {
	return Visit{
		ID:         "v-" + date + "-" + timeOfDay,
		Date:       date,
		Time:       timeOfDay,
		Location:   Location{ID: "l-" + location, Name: location},
		Companions: companions,
	}
}

func comp(name string, costCents int64) VisitCompanion {
	return VisitCompanion{Name: name, Cost: Money{Cents: costCents}}
}

func TestWeekBoundsContainToday(t *testing.T) {
	// Sweep a couple of weeks so every weekday is exercised.
	for day := 1; day <= 14; day++ {
		today := time.Date(2025, 9, day, 12, 30, 0, 0, time.Local)
		start, end := WeekBounds(today, 0)
		if start.Weekday() != time.Monday {
			t.Fatalf("day %d: window starts on %v", day, start.Weekday())
		}
		if end.Weekday() != time.Sunday {
			t.Fatalf("day %d: window ends on %v", day, end.Weekday())
		}
		if today.Before(start) || today.After(end) {
			t.Fatalf("day %d: today %v outside [%v, %v]", day, today, start, end)
		}
	}
}

func TestWeekBoundsContiguous(t *testing.T) {
	today := time.Date(2025, 9, 10, 8, 0, 0, 0, time.Local)
	for offset := -3; offset < 3; offset++ {
		_, end := WeekBounds(today, offset)
		nextStart, _ := WeekBounds(today, offset+1)
		gap := nextStart.Sub(end)
		if gap != time.Second {
			t.Fatalf("offset %d: windows not contiguous, gap %v", offset, gap)
		}
	}
}

func TestFilterWeekInclusiveEdges(t *testing.T) {
	today := time.Date(2025, 9, 10, 0, 0, 0, 0, time.Local) // Wednesday
	start, end := WeekBounds(today, 0)
	visits := []Visit{
		visit(start.Format("2006-01-02"), "10:00", "A"), // Monday
		visit(end.Format("2006-01-02"), "10:00", "B"),   // Sunday
		visit("2025-09-01", "10:00", "C"),               // previous week
		{ID: "nodate", Location: Location{Name: "D"}},
	}
	got := FilterWeek(visits, start, end)
	if len(got) != 2 {
		t.Fatalf("expected 2 visits in week, got %d", len(got))
	}
}

func TestCountByCompanionSumsToPairs(t *testing.T) {
	visits := []Visit{
		visit("2025-09-01", "15:30", "VILA SERENA", comp("Ana", 0), comp("Bruno", 0)),
		visit("2025-09-02", "15:30", "VILA SERENA", comp("Ana", 0)),
		visit("2025-09-03", "16:00", "CLÍNICA", comp("Carlão", 0)),
	}
	rows := CountByCompanion(visits)
	var sum, pairs int
	for _, r := range rows {
		sum += r.Count
	}
	for _, v := range visits {
		pairs += len(v.Companions)
	}
	if sum != pairs {
		t.Fatalf("count sum %d != companion pairs %d", sum, pairs)
	}
	if rows[0].Name != "Ana" || rows[0].Count != 2 {
		t.Fatalf("expected Ana first with 2, got %+v", rows[0])
	}
}

func TestCountByLocationSumsToVisits(t *testing.T) {
	visits := []Visit{
		visit("2025-09-01", "15:30", "VILA SERENA"),
		visit("2025-09-02", "15:30", "VILA SERENA"),
		visit("2025-09-03", "16:00", "CLÍNICA"),
	}
	rows := CountByLocation(visits)
	var sum int
	for _, r := range rows {
		sum += r.Count
	}
	if sum != len(visits) {
		t.Fatalf("location count sum %d != %d visits", sum, len(visits))
	}
}

func TestCountTieBreakByName(t *testing.T) {
	visits := []Visit{
		visit("2025-09-01", "15:30", "X", comp("Édson", 0), comp("Bruno", 0), comp("ana", 0)),
	}
	rows := CountByCompanion(visits)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// All counts tie at 1; pt-BR collation puts "ana" before "Bruno" before "Édson".
	if rows[0].Name != "ana" || rows[1].Name != "Bruno" || rows[2].Name != "Édson" {
		t.Fatalf("tie break order wrong: %+v", rows)
	}
}

func TestCostByCompanionMonthScenario(t *testing.T) {
	visits := []Visit{
		visit("2025-09-01", "15:30", "VILA SERENA", comp("Ana", 1500)),
		visit("2025-09-15", "15:30", "VILA SERENA", comp("Ana", 2000)),
		visit("2025-10-01", "15:30", "VILA SERENA", comp("Ana", 9900)),
	}
	scope := FilterMonth(visits, 2025, 9)
	rows := CostByCompanion(scope)
	if len(rows) != 1 || rows[0].Name != "Ana" || rows[0].Total.Cents != 3500 {
		t.Fatalf("expected (Ana, 35.00), got %+v", rows)
	}
}

func TestCostDefaultsToZero(t *testing.T) {
	visits := []Visit{
		visit("2025-09-01", "15:30", "VILA SERENA", VisitCompanion{Name: "Ana"}, VisitCompanion{Name: "Bruno"}),
	}
	for _, row := range CostByCompanion(visits) {
		if row.Total.Cents != 0 {
			t.Fatalf("cost without cost field must be 0, got %+v", row)
		}
	}
	for _, row := range CostByLocation(visits) {
		if row.Total.Cents != 0 {
			t.Fatalf("location cost must be 0, got %+v", row)
		}
	}
}

func TestReferenceMonthFallback(t *testing.T) {
	today := time.Date(2025, 11, 3, 10, 0, 0, 0, time.Local)

	// A visit in the current month wins.
	y, m := ReferenceMonth([]Visit{visit("2025-11-10", "10:00", "A"), visit("2025-08-01", "10:00", "B")}, today)
	if y != 2025 || m != 11 {
		t.Fatalf("expected current month, got %d-%d", y, m)
	}

	// Nothing this month: fall back to the most recent visit overall.
	y, m = ReferenceMonth([]Visit{visit("2025-08-01", "10:00", "A"), visit("2025-09-22", "10:00", "B")}, today)
	if y != 2025 || m != 9 {
		t.Fatalf("expected fallback to 2025-09, got %d-%d", y, m)
	}

	// Empty collection: current month, no panic.
	y, m = ReferenceMonth(nil, today)
	if y != 2025 || m != 11 {
		t.Fatalf("expected current month for empty set, got %d-%d", y, m)
	}
}

func TestCompanionsPerVisitZeroSafe(t *testing.T) {
	if got := CompanionsPerVisit(nil); got != 0 {
		t.Fatalf("empty scope average = %v, want 0", got)
	}
	visits := []Visit{
		visit("2025-09-01", "15:30", "A", comp("Ana", 0), comp("Bruno", 0)),
		visit("2025-09-02", "15:30", "B", comp("Ana", 0)),
	}
	if got := CompanionsPerVisit(visits); got != 1.5 {
		t.Fatalf("average = %v, want 1.5", got)
	}
}

func TestLastFinalizedByLocation(t *testing.T) {
	finalized := visit("2025-09-08", "16:00", "HOSPITAL SÃO FRANCISCO")
	finalized.IsFinalized = true
	finalized.EndTime = "17:10"

	endOnly := visit("2025-09-22", "16:00", "HOSPITAL SÃO FRANCISCO")
	endOnly.EndTime = "16:45"

	open := visit("2025-09-29", "16:00", "HOSPITAL SÃO FRANCISCO")

	last := LastFinalizedByLocation([]Visit{finalized, endOnly, open}, time.Local)
	got, ok := last["HOSPITAL SÃO FRANCISCO"]
	if !ok {
		t.Fatalf("expected an entry for the location")
	}
	want := time.Date(2025, 9, 22, 16, 45, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("last finalized = %v, want %v", got, want)
	}
}

func TestSummarizeMonth(t *testing.T) {
	today := time.Date(2025, 9, 20, 9, 0, 0, 0, time.Local)
	visits := []Visit{
		visit("2025-09-01", "15:30", "VILA SERENA", comp("Ana", 1500)),
		visit("2025-09-15", "17:00", "CLÍNICA", comp("Ana", 2000), comp("Bruno", 0)),
		visit("2025-08-11", "16:00", "VILA SERENA", comp("Carlão", 500)),
	}
	s := SummarizeMonth(visits, today)
	if s.Year != 2025 || s.Month != 9 {
		t.Fatalf("reference month = %d-%d", s.Year, s.Month)
	}
	if s.Visits != 2 {
		t.Fatalf("visits in month = %d, want 2", s.Visits)
	}
	if s.CostByCompanion[0].Name != "Ana" || s.CostByCompanion[0].Total.Cents != 3500 {
		t.Fatalf("month cost by companion = %+v", s.CostByCompanion)
	}
	if s.CompanionsPerVisit != 1.5 {
		t.Fatalf("companions per visit = %v", s.CompanionsPerVisit)
	}
}
