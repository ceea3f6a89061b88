package core

import (
	"fmt"
	"sort"
	"strings"
)

// MonthlyReport renders the plain-text month recap that the worker pushes to
// the group admin. Formatting lives here on purpose: the aggregator returns
// raw numbers and this is the presentation boundary for the worker channel.
func MonthlyReport(visits []Visit, year, month int) string {
	scope := FilterMonth(visits, year, month)
	if len(scope) == 0 {
		return fmt.Sprintf("Sem visitas registradas em %02d/%d.", month, year)
	}

	sort.Slice(scope, func(i, j int) bool {
		if scope[i].Date != scope[j].Date {
			return scope[i].Date < scope[j].Date
		}
		return scope[i].Time < scope[j].Time
	})

	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Resumo Mensal de Visitas* — %02d/%d\n\n", month, year)
	for _, v := range scope {
		fmt.Fprintf(&b, "📅 %s às %s – %s\n", v.Date, orDash(v.Time), v.Location.Name)
	}
	fmt.Fprintf(&b, "\nTotal: %d visitas registradas.", len(scope))

	if costs := CostByCompanion(scope); len(costs) > 0 {
		var total int64
		for _, row := range costs {
			total += row.Total.Cents
		}
		if total > 0 {
			fmt.Fprintf(&b, "\nAjuda de custo no mês: %s.", FormatBRL(Money{Cents: total}))
		}
	}
	return b.String()
}

// FormatBRL renders a money value as Brazilian currency ("R$ 1.234,56").
func FormatBRL(m Money) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	intPart := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", intPart)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), frac)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
