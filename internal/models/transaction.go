package models

import (
	"fmt"
	"strings"
	"time"
)

// Record is one normalized transaction line.
type Record struct {
	Row        int
	Time       time.Time
	Invoice    string
	CustomerID string
	ProductID  string
	Quantity   float64
	UnitPrice  float64
	TotalValue float64

	Hour    int
	Weekday int // Monday = 0
	Month   int
	Quarter int
	Year    int
	Season  string
}

// HasTime reports whether the row carried a parsable date.
func (r Record) HasTime() bool {
	return !r.Time.IsZero()
}

// Dataset is the normalized table handed to every analysis block.
type Dataset struct {
	Records []Record

	// Temporal is false when no date column could be mapped at all.
	Temporal bool
	// Grouped is true when an invoice column defines transaction groups.
	Grouped bool

	UnparsedDates int
	ZeroValueRows int
}

// TransactionKey identifies the transaction group a record belongs to.
func (d Dataset) TransactionKey(r Record) string {
	if d.Grouped && r.Invoice != "" {
		return r.Invoice
	}
	return fmt.Sprintf("#%d", r.Row)
}

type EntityRollup struct {
	ID               string  `json:"id"`
	TotalRevenue     float64 `json:"totalRevenue"`
	TotalQuantity    float64 `json:"totalQuantity"`
	TransactionCount int     `json:"transactionCount"`
}

type RFMRecord struct {
	CustomerID string  `json:"customerId"`
	Recency    int     `json:"recency"`
	Frequency  int     `json:"frequency"`
	Monetary   float64 `json:"monetary"`
	Churned    bool    `json:"churned"`
	Cluster    int     `json:"cluster"`
}

type Periodicity string

const (
	Monthly Periodicity = "monthly"
	Yearly  Periodicity = "yearly"
)

func ParsePeriodicity(s string) (Periodicity, error) {
	switch Periodicity(strings.ToLower(strings.TrimSpace(s))) {
	case "", Monthly:
		return Monthly, nil
	case Yearly:
		return Yearly, nil
	default:
		return "", fmt.Errorf("unknown periodicity %q, must be monthly or yearly", s)
	}
}

// Horizon is the label shown next to forecasts.
func (p Periodicity) Horizon() string {
	if p == Yearly {
		return "Next 3 years"
	}
	return "Next 6 months"
}
