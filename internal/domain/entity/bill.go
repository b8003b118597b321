package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultTaxRate is the GST rate applied to every bill unless configured otherwise
var DefaultTaxRate = decimal.RequireFromString("0.18")

var validate = validator.New(validator.WithRequiredStructEnabled())

// LineItem is one priced row of a bill. LineTotal is always Quantity x UnitPrice.
type LineItem struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"name" validate:"required,max=255"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// NewLineItem validates the inputs and derives the line total
func NewLineItem(name string, quantity, unitPrice decimal.Decimal) (LineItem, error) {
	name = strings.TrimSpace(name)

	var fieldErrors []apperror.FieldError
	if name == "" {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "name", Message: "item name is required"})
	}
	if !quantity.IsPositive() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "quantity", Message: "quantity must be greater than zero"})
	}
	if !unitPrice.IsPositive() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "unit_price", Message: "unit price must be greater than zero"})
	}
	if len(fieldErrors) > 0 {
		return LineItem{}, apperror.NewValidationError(fieldErrors)
	}

	return LineItem{
		ID:        uuid.NewString(),
		Name:      name,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: quantity.Mul(unitPrice),
	}, nil
}

// Bill is a finalized sales transaction. Only Synced and RemoteID change after finalization.
type Bill struct {
	RemoteID      string                        `gorm:"size:128;primaryKey" json:"remote_id,omitempty"`
	LocalID       int64                         `gorm:"not null;uniqueIndex:idx_bills_device_local" json:"local_id"`
	DeviceID      string                        `gorm:"size:64;not null;uniqueIndex:idx_bills_device_local" json:"device_id" validate:"required"`
	CustomerName  string                        `gorm:"size:255;not null" json:"customer_name" validate:"required"`
	CustomerPhone string                        `gorm:"size:32" json:"customer_phone,omitempty"`
	Items         datatypes.JSONSlice[LineItem] `gorm:"not null" json:"items" validate:"required,min=1,dive"`
	Subtotal      decimal.Decimal               `gorm:"type:numeric;not null" json:"subtotal"`
	Tax           decimal.Decimal               `gorm:"type:numeric;not null" json:"tax"`
	TotalAmount   decimal.Decimal               `gorm:"type:numeric;not null;index" json:"total_amount"`
	Timestamp     time.Time                     `gorm:"not null;index" json:"timestamp"`
	CreatedBy     string                        `gorm:"size:100;not null;index" json:"created_by" validate:"required"`
	Synced        bool                          `gorm:"not null;default:false" json:"synced"`
	CreatedAt     time.Time                     `gorm:"autoCreateTime" json:"-"`
}

// TableName returns the table name for Bill
func (Bill) TableName() string {
	return "bills"
}

// BeforeCreate assigns the store identity when the row is first inserted
func (b *Bill) BeforeCreate(tx *gorm.DB) error {
	if b.RemoteID == "" {
		b.RemoteID = uuid.NewString()
	}
	return nil
}

// Number is the human-facing bill reference printed on receipts and searched in history
func (b *Bill) Number() string {
	return "BILL-" + strconv.FormatInt(b.LocalID, 10)
}

// ItemCount sums item quantities
func (b *Bill) ItemCount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		total = total.Add(it.Quantity)
	}
	return total
}

// Totals holds the derived money fields of a bill
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// ComputeTotals derives subtotal, tax and total from the item list.
// Tax is rounded to paise.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal)
	}
	tax := subtotal.Mul(taxRate).Round(2)
	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		TotalAmount: subtotal.Add(tax),
	}
}

// Validate checks the schema and the arithmetic invariants of a bill.
// Used both before persistence and on records read back from the remote store.
func (b *Bill) Validate() error {
	var fieldErrors []apperror.FieldError

	if err := validate.Struct(b); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fieldErrors = append(fieldErrors, apperror.FieldError{
					Field:   fe.Namespace(),
					Message: fmt.Sprintf("failed on %q", fe.Tag()),
				})
			}
		} else {
			return err
		}
	}
	if b.LocalID <= 0 {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "local_id", Message: "local id must be positive"})
	}
	if b.Timestamp.IsZero() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "timestamp", Message: "timestamp is required"})
	}

	subtotal := decimal.Zero
	for i, it := range b.Items {
		if !it.Quantity.IsPositive() || !it.UnitPrice.IsPositive() {
			fieldErrors = append(fieldErrors, apperror.FieldError{Field: fmt.Sprintf("items[%d]", i), Message: "quantity and unit price must be positive"})
		}
		if !it.LineTotal.Equal(it.Quantity.Mul(it.UnitPrice)) {
			fieldErrors = append(fieldErrors, apperror.FieldError{Field: fmt.Sprintf("items[%d].line_total", i), Message: "line total does not match quantity x unit price"})
		}
		subtotal = subtotal.Add(it.LineTotal)
	}
	if !b.Subtotal.Equal(subtotal) {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "subtotal", Message: "subtotal does not match line totals"})
	}
	if b.Tax.IsNegative() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "tax", Message: "tax cannot be negative"})
	}
	if !b.TotalAmount.Equal(b.Subtotal.Add(b.Tax)) {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "total_amount", Message: "total does not equal subtotal plus tax"})
	}

	if len(fieldErrors) > 0 {
		return apperror.NewValidationError(fieldErrors)
	}
	return nil
}
