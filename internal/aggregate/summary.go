// Package aggregate computes KPIs, entity rankings and spend segmentation
// over a normalized dataset.
package aggregate

import (
	"retail-analytics/internal/models"
	"retail-analytics/internal/stats"
)

const (
	HighSpenderPercentile   = 0.80
	MediumSpenderPercentile = 0.50
)

// Summary is the aggregation part of a report.
type Summary struct {
	KPIs     models.KPIs
	Top      models.TopInsights
	Detailed models.DetailedInsights

	Customers []models.EntityRollup
	Products  []models.EntityRollup
}

// Summarize computes every aggregate block. An empty dataset yields zero
// values and empty rankings.
func Summarize(ds models.Dataset, topN int) Summary {
	customers := CustomerRollups(ds)
	products := ProductRollups(ds)

	s := Summary{
		KPIs:      KPIs(ds, customers, products),
		Customers: customers,
		Products:  products,
	}

	topProductsRevenue := TopN(products, topN, ByRevenue)
	topProductsQuantity := TopN(products, topN, ByQuantity)
	topCustomers := TopN(customers, topN, ByRevenue)
	frequent := TopN(customers, 1, ByCount)

	if len(topProductsRevenue) > 0 {
		p := topProductsRevenue[0]
		s.Top.TopProductByRevenue = &models.ProductRevenue{ProductID: p.ID, Revenue: p.TotalRevenue}
	}
	if len(topProductsQuantity) > 0 {
		p := topProductsQuantity[0]
		s.Top.TopProductByQuantity = &models.ProductQuantity{ProductID: p.ID, Quantity: p.TotalQuantity}
	}
	if len(topCustomers) > 0 {
		c := topCustomers[0]
		s.Top.HighestEarningCustomer = &models.CustomerRevenue{CustomerID: c.ID, Revenue: c.TotalRevenue}
	}
	if len(frequent) > 0 {
		c := frequent[0]
		s.Top.MostFrequentCustomer = &models.CustomerVisits{CustomerID: c.ID, Visits: c.TransactionCount}
	}

	s.Detailed = models.DetailedInsights{
		Top5Customers:          rankCustomers(topCustomers),
		Top5Products:           rankProducts(topProductsRevenue),
		Top5ProductsByQuantity: rankProducts(topProductsQuantity),
		CustomerSegmentation:   Segment(customers),
		PurchaseFrequency:      Frequency(customers),
		DataQuality: models.DataQuality{
			Rows:          len(ds.Records),
			UnparsedDates: ds.UnparsedDates,
			ZeroValueRows: ds.ZeroValueRows,
		},
	}

	return s
}

func KPIs(ds models.Dataset, customers, products []models.EntityRollup) models.KPIs {
	values := make([]float64, 0, len(ds.Records))
	var quantity float64
	groups := make(map[string]struct{})
	for _, r := range ds.Records {
		values = append(values, r.TotalValue)
		quantity += r.Quantity
		groups[ds.TransactionKey(r)] = struct{}{}
	}

	return models.KPIs{
		TotalRevenue:           stats.Sum(values),
		TotalQuantity:          quantity,
		UniqueCustomers:        len(customers),
		UniqueProducts:         len(products),
		Transactions:           len(groups),
		AvgTransactionValue:    stats.Mean(values),
		MedianTransactionValue: stats.Median(values),
	}
}

// Segment splits customers into high, medium and low spenders at the 80th and
// 50th percentile of per-customer revenue.
func Segment(customers []models.EntityRollup) models.Segmentation {
	if len(customers) == 0 {
		return models.Segmentation{}
	}

	revenue := make([]float64, len(customers))
	for i, c := range customers {
		revenue[i] = c.TotalRevenue
	}

	seg := models.Segmentation{
		HighSpenderThreshold:   stats.Percentile(revenue, HighSpenderPercentile),
		MediumSpenderThreshold: stats.Percentile(revenue, MediumSpenderPercentile),
	}
	for _, v := range revenue {
		switch {
		case v >= seg.HighSpenderThreshold:
			seg.HighSpenders++
		case v >= seg.MediumSpenderThreshold:
			seg.MediumSpenders++
		default:
			seg.LowSpenders++
		}
	}
	return seg
}

func Frequency(customers []models.EntityRollup) models.PurchaseFrequency {
	visits := make([]float64, len(customers))
	for i, c := range customers {
		visits[i] = float64(c.TransactionCount)
	}
	return models.PurchaseFrequency{
		AvgVisitsPerCustomer:    stats.Mean(visits),
		MedianVisitsPerCustomer: stats.Median(visits),
	}
}

func rankCustomers(rollups []models.EntityRollup) []models.RankedCustomer {
	out := make([]models.RankedCustomer, 0, len(rollups))
	for i, r := range rollups {
		avg := 0.0
		if r.TransactionCount > 0 {
			avg = r.TotalRevenue / float64(r.TransactionCount)
		}
		out = append(out, models.RankedCustomer{
			Rank:             i + 1,
			CustomerID:       r.ID,
			Revenue:          r.TotalRevenue,
			Visits:           r.TransactionCount,
			AvgSpendPerVisit: avg,
		})
	}
	return out
}

func rankProducts(rollups []models.EntityRollup) []models.RankedProduct {
	out := make([]models.RankedProduct, 0, len(rollups))
	for i, r := range rollups {
		avg := 0.0
		if r.TotalQuantity > 0 {
			avg = r.TotalRevenue / r.TotalQuantity
		}
		out = append(out, models.RankedProduct{
			Rank:      i + 1,
			ProductID: r.ID,
			Revenue:   r.TotalRevenue,
			Quantity:  r.TotalQuantity,
			AvgPrice:  avg,
		})
	}
	return out
}
