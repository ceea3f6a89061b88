package core

import (
	"fmt"
	"strconv"
	"strings"
)

// RawRecord is a visit row as fetched from the remote service. Different
// schema generations of the same table used different key spellings and
// nesting, so the shape is deliberately loose. Only NormalizeVisit consumes
// it; the rest of the system sees canonical Visit values exclusively.
type RawRecord map[string]any

// Candidate key lists, highest priority first. Snake case wins over camel
// case because that is what the persisted rows use; camel case shapes only
// ever existed in seed data.
var (
	dateKeys        = []string{"date", "visit_date", "scheduled_date"}
	timeKeys        = []string{"time", "scheduled_time"}
	startKeys       = []string{"start_time", "actual_start", "startTime"}
	endKeys         = []string{"end_time", "actual_end", "endTime"}
	finalizedKeys   = []string{"is_finalized", "isfinalized", "finalized", "isFinalized"}
	observationKeys = []string{"observation", "notes", "obs"}
	companionKeys   = []string{"companions", "visit_companions", "companion_names"}
)

// NormalizeVisit converts one raw record of unknown shape into a canonical
// Visit. It never fails: missing or malformed fields degrade to defined
// defaults so a single bad row cannot take down a whole fetch. The function
// is pure and deterministic; positional indexes are used only to synthesize
// companion ids, never for ordering.
func NormalizeVisit(raw RawRecord) Visit {
	id := firstString(raw, "id")
	return Visit{
		ID:          id,
		Date:        normalizeDate(firstString(raw, dateKeys...)),
		Time:        normalizeClock(firstString(raw, timeKeys...)),
		StartTime:   normalizeClock(firstString(raw, startKeys...)),
		EndTime:     normalizeClock(firstString(raw, endKeys...)),
		IsFinalized: firstBool(raw, finalizedKeys...),
		Location:    extractLocation(raw),
		Companions:  extractCompanions(raw, id),
		Observation: firstString(raw, observationKeys...),
	}
}

// Record renders the visit back into the flat snake_case shape the remote
// service persists. NormalizeVisit(v.Record()) returns v unchanged, which is
// the round-trip stability the store relies on.
func (v Visit) Record() RawRecord {
	rec := RawRecord{
		"id":               v.ID,
		"date":             v.Date,
		"time":             v.Time,
		"start_time":       v.StartTime,
		"end_time":         v.EndTime,
		"is_finalized":     v.IsFinalized,
		"observation":      v.Observation,
		"location_id":      v.Location.ID,
		"location_name":    v.Location.Name,
		"location_address": v.Location.Address,
		"location_icon":    v.Location.Icon,
	}
	if len(v.Companions) > 0 {
		list := make([]any, len(v.Companions))
		for i, c := range v.Companions {
			list[i] = RawRecord{
				"id":   c.ID,
				"name": c.Name,
				"cost": c.Cost.Reais(),
			}
		}
		rec["companions"] = list
	}
	return rec
}

// normalizeDate reduces a date-ish string to YYYY-MM-DD. Any time-of-day
// suffix is stripped, components must parse as positive integers in calendar
// range, and month/day are zero padded. Anything else degrades to "".
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return ""
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	d, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return ""
	}
	if y < 1 || m < 1 || m > 12 || d < 1 || d > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// normalizeClock reduces a clock-ish string to HH:MM by taking the first five
// characters ("15:30:00" -> "15:30"), padding a missing leading zero.
func normalizeClock(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) >= 5 && s[1] == ':' {
		// H:MM[:SS] shape, pad before cutting.
		s = "0" + s
	}
	if len(s) > 5 {
		s = s[:5]
	}
	if len(s) == 4 && s[1] == ':' {
		s = "0" + s
	}
	if !ValidClock(s) {
		return ""
	}
	return s
}

func extractLocation(raw RawRecord) Location {
	var loc Location
	if nested := nestedMap(raw["location"]); nested != nil {
		loc = locationFromMap(nested)
	} else if nested := nestedMap(raw["locations"]); nested != nil {
		// Supabase join alias: visits.select("..., locations(name)").
		loc = locationFromMap(nested)
	} else {
		loc = Location{
			ID:      firstString(raw, "location_id", "locationId"),
			Name:    firstString(raw, "location_name", "locationName"),
			Address: firstString(raw, "location_address", "locationAddress"),
			Icon:    firstString(raw, "location_icon"),
		}
	}
	loc.Name = strings.TrimSpace(loc.Name)
	if loc.Name == "" {
		loc.Name = DefaultLocationName
	}
	return loc
}

func locationFromMap(m RawRecord) Location {
	return Location{
		ID:      firstString(m, "id"),
		Name:    firstString(m, "name"),
		Address: firstString(m, "address"),
		Icon:    firstString(m, "icon"),
	}
}

// extractCompanions maps the first present candidate list to canonical
// entries. Entries may be plain name strings or {id, name, cost} objects.
// Whitespace-only names are dropped and duplicate names (case-insensitive)
// keep only their first occurrence.
func extractCompanions(raw RawRecord, visitID string) []VisitCompanion {
	var list []any
	for _, key := range companionKeys {
		switch v := raw[key].(type) {
		case []any:
			list = v
		case []string:
			list = make([]any, len(v))
			for i, s := range v {
				list[i] = s
			}
		case []RawRecord:
			list = make([]any, len(v))
			for i, m := range v {
				list[i] = m
			}
		case []map[string]any:
			list = make([]any, len(v))
			for i, m := range v {
				list[i] = m
			}
		}
		if list != nil {
			break
		}
	}
	if len(list) == 0 {
		return nil
	}

	out := make([]VisitCompanion, 0, len(list))
	seen := make(map[string]bool, len(list))
	for i, entry := range list {
		var c VisitCompanion
		switch e := entry.(type) {
		case string:
			c.Name = e
		default:
			m := nestedMap(entry)
			if m == nil {
				continue
			}
			c.ID = firstString(m, "id", "companion_id", "companionId")
			c.Name = firstString(m, "name", "companion_name")
			c.Cost = Money{Cents: CostCents(m["cost"])}
		}
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s-c%d", visitID, i)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nestedMap(v any) RawRecord {
	switch m := v.(type) {
	case RawRecord:
		return m
	case map[string]any:
		return RawRecord(m)
	default:
		return nil
	}
}

// firstString returns the first candidate key whose value renders to a
// non-empty trimmed string.
func firstString(raw RawRecord, keys ...string) string {
	for _, key := range keys {
		if s := rawString(raw[key]); s != "" {
			return s
		}
	}
	return ""
}

func firstBool(raw RawRecord, keys ...string) bool {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			return rawBool(v)
		}
	}
	return false
}

func rawString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

func rawBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}
