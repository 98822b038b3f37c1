package models

import "gorm.io/gorm"

// PricePoint is one observed price for an asset. Append-only; strategy windows
// depend on the timestamp ordering.
type PricePoint struct {
	gorm.Model
	Asset     string  `gorm:"index:idx_asset_time" json:"asset"`
	Price     float64 `json:"price"`
	Timestamp int64   `gorm:"index:idx_asset_time" json:"timestamp"`
}
