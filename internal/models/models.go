// Package models holds the pricing configuration and calculation result types.
package models

import "github.com/shopspring/decimal"

func init() {
	// Monetary values cross the API boundary as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// State is a tax jurisdiction at state granularity.
type State struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
