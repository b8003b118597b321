package request

import "github.com/shopspring/decimal"

// AddItemRequest adds a priced line to the session's draft bill
type AddItemRequest struct {
	Name      string          `json:"name" binding:"required,max=255"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// GenerateBillRequest finalizes the draft for a customer
type GenerateBillRequest struct {
	CustomerName  string `json:"customer_name" binding:"required,max=255"`
	CustomerPhone string `json:"customer_phone" binding:"omitempty,max=32"`
}

// BillHistoryQuery holds the bill history filters
type BillHistoryQuery struct {
	Search     string `form:"search"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	MinAmount  string `form:"min_amount"`
	MaxAmount  string `form:"max_amount"`
	SyncStatus string `form:"sync_status" binding:"omitempty,oneof=all synced pending"`
	Page       int    `form:"page"`
	PerPage    int    `form:"per_page"`
}

// ConnectivityRequest overrides the connectivity probe. A null Online
// returns to probing.
type ConnectivityRequest struct {
	Online *bool `json:"online"`
}
