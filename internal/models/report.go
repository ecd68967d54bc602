package models

// Report is the merged result of one upload.
type Report struct {
	RunID             string            `json:"runId,omitempty"`
	Periodicity       Periodicity       `json:"periodicity"`
	Horizon           string            `json:"horizon"`
	ForecastSummary   string            `json:"forecastSummary"`
	ChurnSummary      string            `json:"churnSummary"`
	Capabilities      Capabilities      `json:"capabilities"`
	KPIs              KPIs              `json:"kpis"`
	TopInsights       TopInsights       `json:"topInsights"`
	DetailedInsights  DetailedInsights  `json:"detailedInsights"`
	Temporal          *TemporalInsights `json:"temporal,omitempty"`
	Segments          *SegmentBlock     `json:"segments,omitempty"`
	RandomForestModel ChurnModel        `json:"randomForestModel"`
	AssociationRules  *RuleBlock        `json:"associationRules,omitempty"`
	Forecast          *ForecastBlock    `json:"forecast,omitempty"`
}

type Capabilities struct {
	Temporal   bool     `json:"temporal"`
	Invoices   bool     `json:"invoices"`
	UnitPriced bool     `json:"unitPriced"`
	Columns    []string `json:"columns"`
	Notes      []string `json:"notes,omitempty"`
}

type KPIs struct {
	TotalRevenue           float64 `json:"totalRevenue"`
	TotalQuantity          float64 `json:"totalQuantity"`
	UniqueCustomers        int     `json:"uniqueCustomers"`
	UniqueProducts         int     `json:"uniqueProducts"`
	Transactions           int     `json:"transactions"`
	AvgTransactionValue    float64 `json:"avgTransactionValue"`
	MedianTransactionValue float64 `json:"medianTransactionValue"`
}

type ProductRevenue struct {
	ProductID string  `json:"productId"`
	Revenue   float64 `json:"revenue"`
}

type ProductQuantity struct {
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

type CustomerRevenue struct {
	CustomerID string  `json:"customerId"`
	Revenue    float64 `json:"revenue"`
}

type CustomerVisits struct {
	CustomerID string `json:"customerId"`
	Visits     int    `json:"visits"`
}

type TopInsights struct {
	TopProductByRevenue    *ProductRevenue  `json:"topProductByRevenue,omitempty"`
	TopProductByQuantity   *ProductQuantity `json:"topProductByQuantity,omitempty"`
	HighestEarningCustomer *CustomerRevenue `json:"highestEarningCustomer,omitempty"`
	MostFrequentCustomer   *CustomerVisits  `json:"mostFrequentCustomer,omitempty"`
}

type RankedCustomer struct {
	Rank             int     `json:"rank"`
	CustomerID       string  `json:"customerId"`
	Revenue          float64 `json:"revenue"`
	Visits           int     `json:"visits"`
	AvgSpendPerVisit float64 `json:"avgSpendPerVisit"`
}

type RankedProduct struct {
	Rank      int     `json:"rank"`
	ProductID string  `json:"productId"`
	Revenue   float64 `json:"revenue"`
	Quantity  float64 `json:"quantity"`
	AvgPrice  float64 `json:"avgPrice"`
}

type Segmentation struct {
	HighSpenders           int     `json:"highSpenders"`
	MediumSpenders         int     `json:"mediumSpenders"`
	LowSpenders            int     `json:"lowSpenders"`
	HighSpenderThreshold   float64 `json:"highSpenderThreshold"`
	MediumSpenderThreshold float64 `json:"mediumSpenderThreshold"`
}

type PurchaseFrequency struct {
	AvgVisitsPerCustomer    float64 `json:"avgVisitsPerCustomer"`
	MedianVisitsPerCustomer float64 `json:"medianVisitsPerCustomer"`
}

type DataQuality struct {
	Rows          int `json:"rows"`
	UnparsedDates int `json:"unparsedDates"`
	ZeroValueRows int `json:"zeroValueRows"`
}

type DetailedInsights struct {
	Top5Customers          []RankedCustomer  `json:"top5Customers"`
	Top5Products           []RankedProduct   `json:"top5Products"`
	Top5ProductsByQuantity []RankedProduct   `json:"top5ProductsByQuantity"`
	CustomerSegmentation   Segmentation      `json:"customerSegmentation"`
	PurchaseFrequency      PurchaseFrequency `json:"purchaseFrequency"`
	DataQuality            DataQuality       `json:"dataQuality"`
}

// PeriodStats is one bucket of an hourly, weekday or monthly rollup.
type PeriodStats struct {
	Key            int     `json:"key"`
	Label          string  `json:"label"`
	TotalQuantity  float64 `json:"totalQuantity"`
	AvgQuantity    float64 `json:"avgQuantity"`
	Transactions   int     `json:"transactions"`
	TotalValue     float64 `json:"totalValue"`
	AvgValue       float64 `json:"avgValue"`
	UniqueInvoices int     `json:"uniqueInvoices"`
}

type TemporalInsights struct {
	Hourly  []PeriodStats `json:"hourly"`
	Daily   []PeriodStats `json:"daily"`
	Monthly []PeriodStats `json:"monthly"`
}

type ClusterSummary struct {
	Cluster      int     `json:"cluster"`
	Customers    int     `json:"customers"`
	AvgRecency   float64 `json:"avgRecency"`
	AvgFrequency float64 `json:"avgFrequency"`
	AvgMonetary  float64 `json:"avgMonetary"`
}

type SegmentBlock struct {
	Clusters   []ClusterSummary `json:"clusters,omitempty"`
	Iterations int              `json:"iterations,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

type AtRiskCustomer struct {
	CustomerID       string  `json:"customerId"`
	RecencyDays      int     `json:"recencyDays"`
	Frequency        int     `json:"frequency"`
	TotalSpent       float64 `json:"totalSpent"`
	ChurnProbability float64 `json:"churnProbability"`
}

// ChurnModel describes the per-upload churn classifier. RocAuc is null when
// the held-out split holds a single class.
type ChurnModel struct {
	ModelUsed          bool               `json:"modelUsed"`
	Description        string             `json:"description"`
	Accuracy           *float64           `json:"accuracy,omitempty"`
	RocAuc             *float64           `json:"rocAuc"`
	FeatureImportances map[string]float64 `json:"featureImportances,omitempty"`
	TopAtRiskCustomers []AtRiskCustomer   `json:"topAtRiskCustomers,omitempty"`
	ChurnedCustomers   int                `json:"churnedCustomers"`
	ActiveCustomers    int                `json:"activeCustomers"`
	Reason             string             `json:"reason,omitempty"`
}

type AssociationRule struct {
	Antecedents       []string `json:"antecedents"`
	Consequents       []string `json:"consequents"`
	Support           float64  `json:"support"`
	AntecedentSupport float64  `json:"antecedentSupport"`
	ConsequentSupport float64  `json:"consequentSupport"`
	Confidence        float64  `json:"confidence"`
	Lift              float64  `json:"lift"`
}

type RuleBlock struct {
	Rules            []AssociationRule `json:"rules"`
	Baskets          int               `json:"baskets"`
	FrequentItemsets int               `json:"frequentItemsets"`
	Reason           string            `json:"reason,omitempty"`
}

type ForecastPoint struct {
	Period    string  `json:"period"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

type ForecastBlock struct {
	Model       string          `json:"model"`
	Bucket      string          `json:"bucket"`
	TrainPoints int             `json:"trainPoints"`
	TestPoints  int             `json:"testPoints"`
	Predictions []ForecastPoint `json:"predictions,omitempty"`
	RMSE        float64         `json:"rmse"`
	MAE         float64         `json:"mae"`
	R2          float64         `json:"r2"`
	Reason      string          `json:"reason,omitempty"`
}
