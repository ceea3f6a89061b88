package core

import (
	"strings"
	"testing"
)

func TestMonthlyReport(t *testing.T) {
	visits := []Visit{
		visit("2025-09-08", "16:00", "HOSPITAL SÃO FRANCISCO", comp("Roberto", 0)),
		visit("2025-09-01", "15:30", "VILA SERENA", comp("Ana", 1500)),
		visit("2025-10-01", "15:30", "VILA SERENA"),
	}
	report := MonthlyReport(visits, 2025, 9)
	if !strings.Contains(report, "Total: 2 visitas registradas.") {
		t.Fatalf("report total wrong:\n%s", report)
	}
	if !strings.Contains(report, "R$ 15,00") {
		t.Fatalf("report missing cost line:\n%s", report)
	}
	// Visits listed in date order regardless of input order.
	first := strings.Index(report, "2025-09-01")
	second := strings.Index(report, "2025-09-08")
	if first == -1 || second == -1 || first > second {
		t.Fatalf("report not sorted by date:\n%s", report)
	}
	if strings.Contains(report, "2025-10-01") {
		t.Fatalf("report leaked out-of-month visit:\n%s", report)
	}
}

func TestMonthlyReportEmpty(t *testing.T) {
	report := MonthlyReport(nil, 2025, 2)
	if !strings.Contains(report, "Sem visitas") {
		t.Fatalf("empty report = %q", report)
	}
}
