// Package finance aggregates sales, purchasing, billing and expense data
// into cached management reports.
package finance

// AgingBuckets groups unpaid invoice balances by age in days since the
// invoice was issued.
type AgingBuckets struct {
	Current float64 `json:"current"`
	Days30  float64 `json:"30days"`
	Days60  float64 `json:"60days"`
	Days90  float64 `json:"90days"`
	Above90 float64 `json:"above90"`
}

// TrendPoint is one month in the trailing trend series.
type TrendPoint struct {
	Month    string  `json:"month"`
	Sales    float64 `json:"sales"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

// MonthlySummary is the month-end management report.
type MonthlySummary struct {
	Month            string       `json:"month"`
	Sales            float64      `json:"sales"`
	PaymentsReceived float64      `json:"paymentsReceived"`
	Purchases        float64      `json:"purchases"`
	DirectExpenses   float64      `json:"directExpenses"`
	IndirectExpenses float64      `json:"indirectExpenses"`
	TotalExpenses    float64      `json:"totalExpenses"`
	NetGain          float64      `json:"netGain"`
	Aging            AgingBuckets `json:"aging"`
	Trend            []TrendPoint `json:"trend"`
}

// ProfitLoss is the profit and loss statement over a date range.
type ProfitLoss struct {
	From             string  `json:"from"`
	To               string  `json:"to"`
	Revenue          float64 `json:"revenue"`
	DirectCosts      float64 `json:"directCosts"`
	GrossProfit      float64 `json:"grossProfit"`
	GrossMarginPct   float64 `json:"grossMarginPct"`
	IndirectExpenses float64 `json:"indirectExpenses"`
	NetProfit        float64 `json:"netProfit"`
	NetMarginPct     float64 `json:"netMarginPct"`
}

// OpenInvoice is the slice of an unpaid invoice the aging calculation needs.
type OpenInvoice struct {
	Total   float64
	Paid    float64
	AgeDays int
}
