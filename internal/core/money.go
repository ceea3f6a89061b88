// Package core holds the canonical visit model, the raw-record normalizer
// and the aggregation logic shared by the server and the worker.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseCurrencyToCents converts a monetary string to cents with half-up
// rounding on the third decimal place. It accepts plain decimals with dot or
// comma separators as well as Brazilian currency notation:
//
//	ParseCurrencyToCents("15.00")       -> 1500, nil
//	ParseCurrencyToCents("15,00")       -> 1500, nil
//	ParseCurrencyToCents("R$ 1.234,56") -> 123456, nil
//	ParseCurrencyToCents("")            -> 0, nil
//
// Zero is valid (a companion may participate at no cost). Negative values and
// garbage return ErrInvalidAmount.
func ParseCurrencyToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(s, "R$"), "r$"))
	s = strings.ReplaceAll(s, " ", "")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	// With a comma present, dots are thousands separators (1.234,56).
	// Otherwise a dot is the decimal separator (15.00).
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// CostCents extracts a cost from a raw value of unknown type. Absent,
// malformed or negative values degrade to 0 so that a single bad row never
// poisons an aggregation run.
func CostCents(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		if n < 0 {
			return 0
		}
		return int64(n) * 100
	case int64:
		if n < 0 {
			return 0
		}
		return n * 100
	case float64:
		if n < 0 {
			return 0
		}
		return int64(n*100 + 0.5)
	case string:
		cents, err := ParseCurrencyToCents(n)
		if err != nil {
			return 0
		}
		return cents
	default:
		return 0
	}
}

// Reais returns the value in reais as a float64, for display only.
// Calculations stay in cents to avoid floating-point drift.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}
