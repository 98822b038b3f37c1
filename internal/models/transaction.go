package models

import "gorm.io/gorm"

// Transaction status values.
const (
	TxStatusSuccess = "SUCCESS"
	TxStatusFailed  = "FAILED"
)

// Transaction is an append-only audit record of one harvest attempt outcome.
// TxHash is empty for failed attempts.
type Transaction struct {
	gorm.Model
	TxHash    string  `gorm:"index" json:"tx_hash"`
	Asset     string  `json:"asset"`
	Action    string  `json:"action"` // "HARVEST"
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
	Status    string  `json:"status"` // "SUCCESS" or "FAILED"
}
