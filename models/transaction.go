// File: trustpay/models/transaction.go
package models

import "time"

// Transaction is a payment submission under risk evaluation.
// Immutable once created; the ID is unique per submission.
type Transaction struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Recipient string    `json:"recipient"`
	Timestamp time.Time `json:"timestamp"`
}
