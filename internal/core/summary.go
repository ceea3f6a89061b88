package core

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type (
	// NameCount is one row of a grouped count (per companion or location).
	NameCount struct {
		Name  string
		Count int
	}

	// NameAmount is one row of a grouped cost sum.
	NameAmount struct {
		Name  string
		Total Money
	}

	// WeekSummary aggregates the visits of one Monday-to-Sunday window.
	WeekSummary struct {
		Start           time.Time
		End             time.Time
		Visits          int
		ByCompanion     []NameCount
		CostByCompanion []NameAmount
		CostByLocation  []NameAmount
	}

	// MonthSummary aggregates the visits of the reference month.
	MonthSummary struct {
		Year               int
		Month              int // 1-12
		Visits             int
		ByCompanion        []NameCount
		ByLocation         []NameCount
		LastFinalized      map[string]time.Time
		CostByCompanion    []NameAmount
		CostByLocation     []NameAmount
		CompanionsPerVisit float64
	}
)

// WeekBounds computes the Monday-to-Sunday window, in today's location, that
// contains today shifted by offset whole weeks. Start is Monday 00:00:00,
// end is Sunday 23:59:59, both inclusive.
func WeekBounds(today time.Time, offset int) (time.Time, time.Time) {
	base := today.AddDate(0, 0, offset*7)
	deltaToMonday := (int(base.Weekday()) + 6) % 7
	monday := base.AddDate(0, 0, -deltaToMonday)
	start := time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, today.Location())
	end := start.AddDate(0, 0, 6).Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	return start, end
}

// parseLocalDate interprets a canonical YYYY-MM-DD string as a local calendar
// date in loc, midnight. Reports false for empty or malformed dates.
func parseLocalDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FilterWeek keeps the visits whose date falls within [start, end].
// Time-of-day on the visit is ignored.
func FilterWeek(visits []Visit, start, end time.Time) []Visit {
	var out []Visit
	for _, v := range visits {
		d, ok := parseLocalDate(v.Date, start.Location())
		if !ok {
			continue
		}
		if !d.Before(start) && !d.After(end) {
			out = append(out, v)
		}
	}
	return out
}

// ReferenceMonth picks the month a dashboard should show: the current
// calendar month if any visit falls in it, otherwise the month of the most
// recent visit across the whole collection. An empty collection falls back
// to the current month.
func ReferenceMonth(visits []Visit, today time.Time) (year int, month int) {
	year, month = today.Year(), int(today.Month())
	var latest time.Time
	for _, v := range visits {
		d, ok := parseLocalDate(v.Date, today.Location())
		if !ok {
			continue
		}
		if d.Year() == year && int(d.Month()) == month {
			return year, month
		}
		if d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return year, month
	}
	return latest.Year(), int(latest.Month())
}

// FilterMonth keeps the visits dated in the given calendar month.
func FilterMonth(visits []Visit, year, month int) []Visit {
	var out []Visit
	for _, v := range visits {
		d, ok := parseLocalDate(v.Date, time.UTC)
		if !ok {
			continue
		}
		if d.Year() == year && int(d.Month()) == month {
			out = append(out, v)
		}
	}
	return out
}

// CountByCompanion counts how many visits in scope each distinct companion
// name took part in. Rows come back sorted by count descending, ties by name
// in pt-BR collation order.
func CountByCompanion(visits []Visit) []NameCount {
	counts := map[string]int{}
	for _, v := range visits {
		for _, c := range v.Companions {
			if c.Name == "" {
				continue
			}
			counts[c.Name]++
		}
	}
	return sortedCounts(counts)
}

// CountByLocation counts visits per location name.
func CountByLocation(visits []Visit) []NameCount {
	counts := map[string]int{}
	for _, v := range visits {
		name := v.Location.Name
		if name == "" {
			continue
		}
		counts[name]++
	}
	return sortedCounts(counts)
}

// LastFinalizedByLocation returns, per location name, the most recent
// finalized moment among visits that are finalized or carry an actual end
// time. The moment combines the visit date with the actual end time, falling
// back to the scheduled time.
func LastFinalizedByLocation(visits []Visit, loc *time.Location) map[string]time.Time {
	out := map[string]time.Time{}
	for _, v := range visits {
		name := v.Location.Name
		if name == "" || v.Date == "" {
			continue
		}
		if !v.IsFinalized && v.EndTime == "" {
			continue
		}
		clock := v.EndTime
		if clock == "" {
			clock = v.Time
		}
		if clock == "" {
			clock = "00:00"
		}
		t, err := time.ParseInLocation("2006-01-02 15:04", v.Date+" "+clock, loc)
		if err != nil {
			continue
		}
		if prev, ok := out[name]; !ok || t.After(prev) {
			out[name] = t
		}
	}
	return out
}

// CostByCompanion sums each companion's cost across the visits in scope.
// Missing costs count as zero. Sorted by total descending, ties by name.
func CostByCompanion(visits []Visit) []NameAmount {
	totals := map[string]int64{}
	for _, v := range visits {
		for _, c := range v.Companions {
			if c.Name == "" {
				continue
			}
			totals[c.Name] += c.Cost.Cents
		}
	}
	return sortedAmounts(totals)
}

// CostByLocation sums all companion costs attached to visits at each location.
func CostByLocation(visits []Visit) []NameAmount {
	totals := map[string]int64{}
	for _, v := range visits {
		name := v.Location.Name
		if name == "" {
			continue
		}
		var total int64
		for _, c := range v.Companions {
			total += c.Cost.Cents
		}
		totals[name] += total
	}
	return sortedAmounts(totals)
}

// CompanionsPerVisit is the average companion count, 0 for an empty scope.
func CompanionsPerVisit(visits []Visit) float64 {
	if len(visits) == 0 {
		return 0
	}
	var pairs int
	for _, v := range visits {
		pairs += len(v.Companions)
	}
	return float64(pairs) / float64(len(visits))
}

// SummarizeWeek builds the weekly dashboard block for the window at the
// given offset from today's week.
func SummarizeWeek(visits []Visit, today time.Time, offset int) WeekSummary {
	start, end := WeekBounds(today, offset)
	scope := FilterWeek(visits, start, end)
	return WeekSummary{
		Start:           start,
		End:             end,
		Visits:          len(scope),
		ByCompanion:     CountByCompanion(scope),
		CostByCompanion: CostByCompanion(scope),
		CostByLocation:  CostByLocation(scope),
	}
}

// SummarizeMonth builds the monthly dashboard block for the reference month.
func SummarizeMonth(visits []Visit, today time.Time) MonthSummary {
	year, month := ReferenceMonth(visits, today)
	scope := FilterMonth(visits, year, month)
	return MonthSummary{
		Year:               year,
		Month:              month,
		Visits:             len(scope),
		ByCompanion:        CountByCompanion(scope),
		ByLocation:         CountByLocation(scope),
		LastFinalized:      LastFinalizedByLocation(scope, today.Location()),
		CostByCompanion:    CostByCompanion(scope),
		CostByLocation:     CostByLocation(scope),
		CompanionsPerVisit: CompanionsPerVisit(scope),
	}
}

func sortedCounts(counts map[string]int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NameCount{Name: name, Count: count})
	}
	coll := collate.New(language.BrazilianPortuguese)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return coll.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}

func sortedAmounts(totals map[string]int64) []NameAmount {
	out := make([]NameAmount, 0, len(totals))
	for name, cents := range totals {
		out = append(out, NameAmount{Name: name, Total: Money{Cents: cents}})
	}
	coll := collate.New(language.BrazilianPortuguese)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return coll.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}
