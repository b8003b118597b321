package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SalesReport is the downloadable export document
type SalesReport struct {
	Period            string          `json:"period"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalTransactions int             `json:"totalTransactions"`
	GeneratedAt       time.Time       `json:"generatedAt"`
}

// MarshalJSON writes totalRevenue as a JSON number
func (r SalesReport) MarshalJSON() ([]byte, error) {
	type plain SalesReport
	return json.Marshal(struct {
		plain
		TotalRevenue json.Number `json:"totalRevenue"`
	}{plain(r), json.Number(r.TotalRevenue.String())})
}
