package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar month, the key for budgets and monthly reports.
type Period struct {
	Year  int
	Month int // 1-12
}

// ParsePeriod parses a YYYY-MM string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Period{Year: t.Year(), Month: int(t.Month())}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start is the first day of the month.
func (p Period) Start() Date {
	return NewDate(p.Year, p.Month, 1)
}

// End is the last day of the month.
func (p Period) End() Date {
	return NewDate(p.Year, p.Month, p.DaysInMonth())
}

// DaysInMonth is the calendar day count, 28 to 31.
func (p Period) DaysInMonth() int {
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (p Period) Contains(d Date) bool {
	return d.Year() == p.Year && int(d.Month()) == p.Month
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// ReportPeriod is the key of a report: a single month or a quarter (YYYY-Qn).
type ReportPeriod struct {
	Key    string
	Months []Period
}

// ParseReportPeriod accepts YYYY-MM or YYYY-Qn.
func ParseReportPeriod(s string) (ReportPeriod, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if year, q, ok := strings.Cut(s, "-Q"); ok {
		y, err := strconv.Atoi(year)
		if err != nil || len(year) != 4 {
			return ReportPeriod{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 4 {
			return ReportPeriod{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		first := Period{Year: y, Month: (n-1)*3 + 1}
		return ReportPeriod{
			Key:    fmt.Sprintf("%04d-Q%d", y, n),
			Months: []Period{first, first.Next(), first.Next().Next()},
		}, nil
	}
	p, err := ParsePeriod(s)
	if err != nil {
		return ReportPeriod{}, err
	}
	return ReportPeriod{Key: p.String(), Months: []Period{p}}, nil
}

func (rp ReportPeriod) From() Date { return rp.Months[0].Start() }
func (rp ReportPeriod) To() Date   { return rp.Months[len(rp.Months)-1].End() }

// Closed reports whether the whole period ended before the month of today.
func (rp ReportPeriod) Closed(today time.Time) bool {
	return rp.Months[len(rp.Months)-1].Before(PeriodOf(today))
}

func (rp ReportPeriod) Contains(d Date) bool {
	for _, m := range rp.Months {
		if m.Contains(d) {
			return true
		}
	}
	return false
}
