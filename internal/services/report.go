package services

import (
	"fmt"

	"retail-analytics/internal/ingest"
	"retail-analytics/internal/models"
	"retail-analytics/internal/schema"
	"retail-analytics/internal/stats"
)

func capabilities(t ingest.Table, m schema.Mapping, ds models.Dataset) models.Capabilities {
	c := models.Capabilities{
		Temporal:   ds.Temporal,
		Invoices:   ds.Grouped,
		UnitPriced: m.UnitPriced(),
		Columns:    t.Columns,
	}
	if !ds.Temporal {
		c.Notes = append(c.Notes, "no date column found: temporal rollups, recency, churn and forecast are skipped")
	} else if ds.UnparsedDates > 0 {
		c.Notes = append(c.Notes, fmt.Sprintf("%d rows have unparsable dates and are left out of time-based analyses", ds.UnparsedDates))
	}
	if !ds.Grouped {
		c.Notes = append(c.Notes, "no invoice column found: each row is treated as its own transaction")
	}
	if m.UnitPriced() {
		col, _ := m.Column(schema.RoleRevenue)
		c.Notes = append(c.Notes, fmt.Sprintf("revenue computed as quantity x %s", col))
	}
	return c
}

func churnSummary(m models.ChurnModel, churnDays int) string {
	total := m.ChurnedCustomers + m.ActiveCustomers
	if total == 0 {
		if m.Reason != "" {
			return "Churn analysis unavailable: " + m.Reason
		}
		return "No customers to assess for churn."
	}
	share := 100 * float64(m.ChurnedCustomers) / float64(total)
	s := fmt.Sprintf("%d of %d customers (%.1f%%) have not purchased in over %d days.",
		m.ChurnedCustomers, total, share, churnDays)
	if !m.ModelUsed {
		return s + " Churn model not trained: " + m.Reason
	}
	if len(m.TopAtRiskCustomers) > 0 {
		top := m.TopAtRiskCustomers[0]
		s += fmt.Sprintf(" Highest churn risk: customer %s (%.0f%%).", top.CustomerID, 100*top.ChurnProbability)
	}
	return s
}

func forecastSummary(f models.ForecastBlock, horizon string) string {
	if f.Reason != "" {
		return "Forecast unavailable: " + f.Reason
	}
	return fmt.Sprintf("%s revenue outlook from a %s model over %d %s periods (RMSE %.2f, MAE %.2f, R2 %.3f on %d held-out periods).",
		horizon, f.Model, f.TrainPoints, f.Bucket, f.RMSE, f.MAE, f.R2, f.TestPoints)
}

// sanitize rounds monetary values to cents and ratios to four places. Every
// float in the report is finite afterwards.
func sanitize(r *models.Report) {
	k := &r.KPIs
	k.TotalRevenue = stats.Money(k.TotalRevenue)
	k.TotalQuantity = stats.Round(k.TotalQuantity, 4)
	k.AvgTransactionValue = stats.Money(k.AvgTransactionValue)
	k.MedianTransactionValue = stats.Money(k.MedianTransactionValue)

	if t := r.TopInsights.TopProductByRevenue; t != nil {
		t.Revenue = stats.Money(t.Revenue)
	}
	if t := r.TopInsights.TopProductByQuantity; t != nil {
		t.Quantity = stats.Round(t.Quantity, 4)
	}
	if t := r.TopInsights.HighestEarningCustomer; t != nil {
		t.Revenue = stats.Money(t.Revenue)
	}

	d := &r.DetailedInsights
	for i := range d.Top5Customers {
		c := &d.Top5Customers[i]
		c.Revenue = stats.Money(c.Revenue)
		c.AvgSpendPerVisit = stats.Money(c.AvgSpendPerVisit)
	}
	for _, ranked := range [][]models.RankedProduct{d.Top5Products, d.Top5ProductsByQuantity} {
		for i := range ranked {
			p := &ranked[i]
			p.Revenue = stats.Money(p.Revenue)
			p.Quantity = stats.Round(p.Quantity, 4)
			p.AvgPrice = stats.Money(p.AvgPrice)
		}
	}
	d.CustomerSegmentation.HighSpenderThreshold = stats.Money(d.CustomerSegmentation.HighSpenderThreshold)
	d.CustomerSegmentation.MediumSpenderThreshold = stats.Money(d.CustomerSegmentation.MediumSpenderThreshold)
	d.PurchaseFrequency.AvgVisitsPerCustomer = stats.Round(d.PurchaseFrequency.AvgVisitsPerCustomer, 2)
	d.PurchaseFrequency.MedianVisitsPerCustomer = stats.Round(d.PurchaseFrequency.MedianVisitsPerCustomer, 2)

	if t := r.Temporal; t != nil {
		for _, group := range [][]models.PeriodStats{t.Hourly, t.Daily, t.Monthly} {
			for i := range group {
				g := &group[i]
				g.TotalQuantity = stats.Round(g.TotalQuantity, 4)
				g.AvgQuantity = stats.Round(g.AvgQuantity, 2)
				g.TotalValue = stats.Money(g.TotalValue)
				g.AvgValue = stats.Money(g.AvgValue)
			}
		}
	}

	if s := r.Segments; s != nil {
		for i := range s.Clusters {
			c := &s.Clusters[i]
			c.AvgRecency = stats.Round(c.AvgRecency, 2)
			c.AvgFrequency = stats.Round(c.AvgFrequency, 2)
			c.AvgMonetary = stats.Money(c.AvgMonetary)
		}
	}

	m := &r.RandomForestModel
	if m.Accuracy != nil {
		v := stats.Round(*m.Accuracy, 4)
		m.Accuracy = &v
	}
	if m.RocAuc != nil {
		v := stats.Round(*m.RocAuc, 4)
		m.RocAuc = &v
	}
	for name, v := range m.FeatureImportances {
		m.FeatureImportances[name] = stats.Round(v, 4)
	}
	for i := range m.TopAtRiskCustomers {
		c := &m.TopAtRiskCustomers[i]
		c.TotalSpent = stats.Money(c.TotalSpent)
		c.ChurnProbability = stats.Round(c.ChurnProbability, 4)
	}

	if b := r.AssociationRules; b != nil {
		for i := range b.Rules {
			rule := &b.Rules[i]
			rule.Support = stats.Round(rule.Support, 4)
			rule.AntecedentSupport = stats.Round(rule.AntecedentSupport, 4)
			rule.ConsequentSupport = stats.Round(rule.ConsequentSupport, 4)
			rule.Confidence = stats.Round(rule.Confidence, 4)
			rule.Lift = stats.Round(rule.Lift, 4)
		}
	}

	if f := r.Forecast; f != nil {
		for i := range f.Predictions {
			p := &f.Predictions[i]
			p.Actual = stats.Money(p.Actual)
			p.Predicted = stats.Money(p.Predicted)
		}
		f.RMSE = stats.Money(f.RMSE)
		f.MAE = stats.Money(f.MAE)
		f.R2 = stats.Round(f.R2, 4)
	}
}
