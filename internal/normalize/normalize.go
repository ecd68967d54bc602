package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"retail-analytics/internal/ingest"
	"retail-analytics/internal/models"
	"retail-analytics/internal/schema"
)

// MissingID replaces blank or NA identifiers so that every row still lands in
// exactly one customer and product group.
const MissingID = "unknown"

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"02.01.2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"20060102",
}

// Normalize coerces the mapped columns of a raw table. Rows are never dropped:
// unparsable numbers become 0 and unparsable dates become the zero time.
func Normalize(t ingest.Table, m schema.Mapping) models.Dataset {
	ds := models.Dataset{
		Records:  make([]models.Record, 0, len(t.Rows)),
		Temporal: m.Has(schema.RoleDate),
		Grouped:  m.Has(schema.RoleInvoice),
	}

	cell := func(row []string, role schema.Role) string {
		i, ok := m.Index(role)
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	for i, row := range t.Rows {
		rec := models.Record{
			Row:        i,
			Invoice:    identifier(cell(row, schema.RoleInvoice), ""),
			CustomerID: identifier(cell(row, schema.RoleCustomer), MissingID),
			ProductID:  identifier(cell(row, schema.RoleProduct), MissingID),
		}

		qty, qtyOK := ParseNumber(cell(row, schema.RoleQuantity))
		if qty < 0 {
			qty = 0
		}
		rec.Quantity = qty

		amount, amountOK := ParseNumber(cell(row, schema.RoleRevenue))
		if m.UnitPriced() {
			rec.UnitPrice = amount
			rec.TotalValue = qty * amount
		} else {
			rec.TotalValue = amount
			if qty > 0 {
				rec.UnitPrice = amount / qty
			}
		}
		if !qtyOK && !amountOK {
			ds.ZeroValueRows++
		}

		if ds.Temporal {
			if ts, ok := ParseTime(cell(row, schema.RoleDate)); ok {
				rec.Time = ts
				applyCalendar(&rec)
			} else {
				ds.UnparsedDates++
			}
		}

		ds.Records = append(ds.Records, rec)
	}

	return ds
}

// ParseNumber parses a numeric cell, tolerating currency symbols, thousands
// separators and surrounding whitespace. It returns 0, false on failure or on
// non-finite values.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '$', '€', '£', '₹':
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(s, "Rs")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// ParseTime tries each known layout in order.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Season maps a month onto its northern-hemisphere season.
func Season(month time.Month) string {
	switch month {
	case time.December, time.January, time.February:
		return "Winter"
	case time.March, time.April, time.May:
		return "Spring"
	case time.June, time.July, time.August:
		return "Summer"
	default:
		return "Autumn"
	}
}

func applyCalendar(rec *models.Record) {
	ts := rec.Time
	rec.Hour = ts.Hour()
	rec.Weekday = (int(ts.Weekday()) + 6) % 7
	rec.Month = int(ts.Month())
	rec.Quarter = (rec.Month-1)/3 + 1
	rec.Year = ts.Year()
	rec.Season = Season(ts.Month())
}

func identifier(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") || s == "<nil>" {
		return fallback
	}
	// 10001.0 style ids exported by spreadsheets
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.Atoi(strings.TrimSuffix(s, ".0")); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}
