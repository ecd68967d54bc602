package templates

import (
	"context"
	"strings"
	"testing"

	"retail-analytics/internal/models"
)

func TestDashboard(t *testing.T) {
	html, err := Render(context.Background(), Dashboard())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{"<!DOCTYPE html>", `@post('/sse/predict'`, `name="file"`, `name="periodicity"`, `id="status"`, `id="summary"`} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestStatus_Escapes(t *testing.T) {
	html, err := Render(context.Background(), Status("error", `<script>alert("x")</script>`))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("status not escaped: %s", html)
	}
	if !strings.Contains(html, `class="status-error"`) {
		t.Errorf("status class missing: %s", html)
	}
}

func TestSummary(t *testing.T) {
	r := &models.Report{
		RunID:   "run-1",
		Horizon: "Next 6 months",
		KPIs:    models.KPIs{TotalRevenue: 1234.5, UniqueCustomers: 3},
		DetailedInsights: models.DetailedInsights{
			Top5Customers: []models.RankedCustomer{{Rank: 1, CustomerID: "C<1>", Revenue: 900, Visits: 4}},
		},
		AssociationRules: &models.RuleBlock{Rules: []models.AssociationRule{
			{Antecedents: []string{"tea"}, Consequents: []string{"biscuits"}, Confidence: 0.6, Lift: 1.2},
		}},
	}

	html, err := Render(context.Background(), Summary(r))
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{`id="summary"`, "1234.50", "C&lt;1&gt;", "tea", "biscuits", "run-1"} {
		if !strings.Contains(html, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}
