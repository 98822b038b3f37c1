package models

import "gorm.io/gorm"

// PerformanceSnapshot records the portfolio valuation taken during one cycle.
// Daily yield is computed against the most recent snapshot older than 24h.
type PerformanceSnapshot struct {
	gorm.Model
	Timestamp      int64   `json:"timestamp"`
	PortfolioValue float64 `json:"portfolio_value"`
	DailyYield     float64 `json:"daily_yield"`
	TotalYield     float64 `json:"total_yield"`
}
