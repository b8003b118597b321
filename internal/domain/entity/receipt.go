package entity

// ReceiptHeader holds the store header printed at the top of a receipt.
type ReceiptHeader struct {
	StoreName string `json:"store_name"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
	GSTIN     string `json:"gstin,omitempty"`
}

// ReceiptItem represents a single line item on a receipt. Amounts are preformatted.
type ReceiptItem struct {
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

// Receipt is a printable view of a finalized bill, composed at print time.
type Receipt struct {
	Header        ReceiptHeader `json:"header"`
	BillNo        string        `json:"bill_no"`
	Date          string        `json:"date"`
	Cashier       string        `json:"cashier,omitempty"`
	Customer      string        `json:"customer"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	Items         []ReceiptItem `json:"items"`
	SubTotal      string        `json:"sub_total"`
	TaxLabel      string        `json:"tax_label"`
	Tax           string        `json:"tax"`
	Total         string        `json:"total"`
	Synced        bool          `json:"synced"`
}
