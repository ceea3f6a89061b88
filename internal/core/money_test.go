package core

import "testing"

func TestParseCurrencyToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"15.00", 1500, true},
		{"15,00", 1500, true},
		{"R$ 15,00", 1500, true},
		{"r$15", 1500, true},
		{"R$ 1.234,56", 123456, true},
		{"0", 0, true},
		{"", 0, true},
		{"  ", 0, true},
		{"12.344", 1234, true}, // rounds down
		{"12.345", 1235, true}, // half rounds up
		{"12.346", 1235, true}, // rounds up
		{"-5", 0, false},
		{"+5", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseCurrencyToCents(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseCurrencyToCents(%q) unexpected error %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseCurrencyToCents(%q) expected error", tc.in)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("ParseCurrencyToCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCostCents(t *testing.T) {
	cases := []struct {
		in   any
		want int64
	}{
		{nil, 0},
		{15.0, 1500},
		{12.34, 1234},
		{-3.0, 0},
		{20, 2000},
		{int64(7), 700},
		{"R$ 15,00", 1500},
		{"garbage", 0},
		{"", 0},
		{[]string{"not", "a", "cost"}, 0},
	}
	for _, tc := range cases {
		if got := CostCents(tc.in); got != tc.want {
			t.Fatalf("CostCents(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "R$ 0,00"},
		{1500, "R$ 15,00"},
		{123456, "R$ 1.234,56"},
		{100000000, "R$ 1.000.000,00"},
		{-250, "-R$ 2,50"},
	}
	for _, tc := range cases {
		if got := FormatBRL(Money{Cents: tc.cents}); got != tc.want {
			t.Fatalf("FormatBRL(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
