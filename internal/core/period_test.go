package core

import (
	"testing"
	"time"
)

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		p    Period
		want int
	}{
		{Period{2024, 2}, 29},
		{Period{2023, 2}, 28},
		{Period{1900, 2}, 28},
		{Period{2000, 2}, 29},
		{Period{2024, 4}, 30},
		{Period{2024, 12}, 31},
	}
	for _, tc := range cases {
		if got := tc.p.DaysInMonth(); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.p, got, tc.want)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-03")
	if err != nil || p != (Period{2024, 3}) {
		t.Fatalf("got %v, %v", p, err)
	}
	if p.Start().ISO() != "2024-03-01" || p.End().ISO() != "2024-03-31" {
		t.Fatalf("bad bounds %s..%s", p.Start().ISO(), p.End().ISO())
	}
	for _, bad := range []string{"2024-3-1", "2024", "03-2024", "2024-13"} {
		if _, err := ParsePeriod(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestParseReportPeriod(t *testing.T) {
	rp, err := ParseReportPeriod("2024-q4")
	if err != nil {
		t.Fatal(err)
	}
	if rp.Key != "2024-Q4" || len(rp.Months) != 3 {
		t.Fatalf("got %+v", rp)
	}
	if rp.From().ISO() != "2024-10-01" || rp.To().ISO() != "2024-12-31" {
		t.Fatalf("bad range %s..%s", rp.From().ISO(), rp.To().ISO())
	}
	if !rp.Contains(NewDate(2024, 11, 5)) || rp.Contains(NewDate(2025, 1, 1)) {
		t.Fatal("bad containment")
	}
	if !rp.Closed(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("expected closed in January")
	}
	if rp.Closed(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("expected open during December")
	}

	for _, bad := range []string{"2024-Q5", "24-Q1", "2024-Q"} {
		if _, err := ParseReportPeriod(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}
