package remote

import (
	"testing"
	"time"

	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillRecord_RoundTripKeepsArithmetic(t *testing.T) {
	item, err := entity.NewLineItem("Saffron", decimal.RequireFromString("0.125"), decimal.RequireFromString("99.99"))
	require.NoError(t, err)
	items := []entity.LineItem{item}
	totals := entity.ComputeTotals(items, entity.DefaultTaxRate)
	bill := &entity.Bill{
		LocalID:      1741773600000,
		DeviceID:     "till-1",
		CustomerName: "Alice",
		Items:        items,
		Subtotal:     totals.Subtotal,
		Tax:          totals.Tax,
		TotalAmount:  totals.TotalAmount,
		Timestamp:    time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
		CreatedBy:    "ravi",
		Synced:       true,
	}

	rec := toRecord(bill)
	back := rec.toBill(documentID(bill))

	assert.NoError(t, back.Validate())
	assert.Equal(t, "12.49875", back.Items[0].LineTotal.String())
	assert.True(t, back.TotalAmount.Equal(bill.TotalAmount))
	assert.Equal(t, "till-1_1741773600000", back.RemoteID)
}
