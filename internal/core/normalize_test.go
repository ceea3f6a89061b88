package core

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeVisitDefaults(t *testing.T) {
	cases := []struct {
		name string
		raw  RawRecord
	}{
		{"empty record", RawRecord{}},
		{"nil values", RawRecord{"date": nil, "time": nil, "companions": nil, "location": nil}},
		{"garbage types", RawRecord{"date": 3.5, "time": true, "companions": "nope", "is_finalized": []any{}}},
	}
	for _, tc := range cases {
		v := NormalizeVisit(tc.raw)
		if v.Date != "" && normalizeDate(v.Date) != v.Date {
			t.Fatalf("%s: date %q not canonical", tc.name, v.Date)
		}
		if v.Location.Name == "" {
			t.Fatalf("%s: location name must default, got empty", tc.name)
		}
		if v.Location.Name != DefaultLocationName {
			t.Fatalf("%s: expected placeholder location, got %q", tc.name, v.Location.Name)
		}
		if v.Location.Address != "" {
			t.Fatalf("%s: address must default to empty", tc.name)
		}
		if v.IsFinalized {
			t.Fatalf("%s: finalized must default to false", tc.name)
		}
	}
}

func TestNormalizeVisitScenario(t *testing.T) {
	v := NormalizeVisit(RawRecord{
		"id":         "v1",
		"date":       "2025-09-01T00:00:00Z",
		"time":       "15:30:00",
		"companions": []any{"Ana", " Bruno "},
	})
	if v.Date != "2025-09-01" {
		t.Fatalf("date = %q, want 2025-09-01", v.Date)
	}
	if v.Time != "15:30" {
		t.Fatalf("time = %q, want 15:30", v.Time)
	}
	if len(v.Companions) != 2 {
		t.Fatalf("companions = %d, want 2", len(v.Companions))
	}
	if v.Companions[0].Name != "Ana" || v.Companions[1].Name != "Bruno" {
		t.Fatalf("companion names = %q, %q", v.Companions[0].Name, v.Companions[1].Name)
	}
}

func TestNormalizeVisitRoundTrip(t *testing.T) {
	canonical := Visit{
		ID:          "v42",
		Date:        "2025-10-07",
		Time:        "15:30",
		StartTime:   "15:35",
		EndTime:     "16:40",
		IsFinalized: true,
		Location:    Location{ID: "loc1", Name: "VILA SERENA", Address: "Rua Pedro Guedes, 63"},
		Companions: []VisitCompanion{
			{ID: "c1", Name: "Arypepe", Cost: Money{Cents: 1500}},
			{ID: "c2", Name: "Sara"},
		},
		Observation: "levar literatura",
	}
	got := NormalizeVisit(canonical.Record())
	if !reflect.DeepEqual(got, canonical) {
		t.Fatalf("round trip drifted:\n got  %+v\n want %+v", got, canonical)
	}
	// And again: normalization of canonical output is a fixed point.
	again := NormalizeVisit(got.Record())
	if !reflect.DeepEqual(again, got) {
		t.Fatalf("second pass drifted: %+v vs %+v", again, got)
	}
}

func TestNormalizeCompanionDedupe(t *testing.T) {
	v := NormalizeVisit(RawRecord{
		"id":         "v1",
		"companions": []any{"João Bosco", "  ", "joão bosco", "JOÃO BOSCO", "Sara", "", "sara "},
	})
	if len(v.Companions) != 2 {
		t.Fatalf("expected 2 companions after dedupe, got %d: %+v", len(v.Companions), v.Companions)
	}
	seen := map[string]bool{}
	for _, c := range v.Companions {
		if c.Name == "" || c.Name != strings.TrimSpace(c.Name) {
			t.Fatalf("name not trimmed: %q", c.Name)
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			t.Fatalf("duplicate name after case folding: %q", c.Name)
		}
		seen[key] = true
	}
}

func TestNormalizeCompanionObjects(t *testing.T) {
	v := NormalizeVisit(RawRecord{
		"id": "v9",
		"companions": []any{
			map[string]any{"id": "c-1", "name": "Roberto", "cost": "R$ 20,00"},
			map[string]any{"name": " Sidney "},
			map[string]any{"name": ""},
		},
	})
	if len(v.Companions) != 2 {
		t.Fatalf("expected 2 companions, got %d", len(v.Companions))
	}
	if v.Companions[0].ID != "c-1" || v.Companions[0].Cost.Cents != 2000 {
		t.Fatalf("object entry mishandled: %+v", v.Companions[0])
	}
	// No supplied id: synthesized from visit id and source position.
	if v.Companions[1].ID != "v9-c1" {
		t.Fatalf("synthesized id = %q, want v9-c1", v.Companions[1].ID)
	}
	if v.Companions[1].Name != "Sidney" {
		t.Fatalf("name not trimmed: %q", v.Companions[1].Name)
	}
}

func TestNormalizeFieldPriority(t *testing.T) {
	v := NormalizeVisit(RawRecord{
		"id":            "v1",
		"date":          "2025-09-01",
		"visit_date":    "2024-01-01",
		"time":          "15:30",
		"location":      map[string]any{"id": "n1", "name": "Nested", "address": "Rua A"},
		"location_id":   "f1",
		"location_name": "Flat",
	})
	if v.Date != "2025-09-01" {
		t.Fatalf("date priority broken: %q", v.Date)
	}
	if v.Location.ID != "n1" || v.Location.Name != "Nested" {
		t.Fatalf("nested location must win over flat fields: %+v", v.Location)
	}
}

func TestNormalizeFlatLocation(t *testing.T) {
	v := NormalizeVisit(RawRecord{
		"location_id":      "loc1",
		"location_name":    "  CLÍNICA EVOLUÇÃO ",
		"location_address": "Rua Mariz e Barros, 430",
	})
	if v.Location.Name != "CLÍNICA EVOLUÇÃO" {
		t.Fatalf("flat location name = %q", v.Location.Name)
	}
	if v.Location.Address != "Rua Mariz e Barros, 430" {
		t.Fatalf("flat location address = %q", v.Location.Address)
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-09-01", "2025-09-01"},
		{"2025-9-1", "2025-09-01"},
		{"2025-09-01T00:00:00Z", "2025-09-01"},
		{"2025-09-01 15:30:00", "2025-09-01"},
		{"", ""},
		{"01/09/2025", ""},
		{"2025-13-01", ""},
		{"2025-00-10", ""},
		{"2025-02-40", ""},
		{"abcd-ef-gh", ""},
		{"2025-09", ""},
	}
	for _, tc := range cases {
		if got := normalizeDate(tc.in); got != tc.want {
			t.Fatalf("normalizeDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeClock(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"15:30", "15:30"},
		{"15:30:00", "15:30"},
		{"9:30", "09:30"},
		{"9:30:00", "09:30"},
		{"", ""},
		{"later", ""},
		{"25:00", ""},
		{"12:61", ""},
	}
	for _, tc := range cases {
		if got := normalizeClock(tc.in); got != tc.want {
			t.Fatalf("normalizeClock(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFinalizedFlagSpellings(t *testing.T) {
	cases := []struct {
		raw  RawRecord
		want bool
	}{
		{RawRecord{"is_finalized": true}, true},
		{RawRecord{"isfinalized": true}, true},
		{RawRecord{"finalized": "true"}, true},
		{RawRecord{"is_finalized": false, "isfinalized": true}, false}, // priority order
		{RawRecord{}, false},
	}
	for i, tc := range cases {
		if got := NormalizeVisit(tc.raw).IsFinalized; got != tc.want {
			t.Fatalf("case %d: finalized = %v, want %v", i, got, tc.want)
		}
	}
}
