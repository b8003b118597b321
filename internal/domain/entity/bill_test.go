package entity_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func mustItem(t *testing.T, name string, qty, price string) entity.LineItem {
	t.Helper()
	it, err := entity.NewLineItem(name, decimal.RequireFromString(qty), decimal.RequireFromString(price))
	require.NoError(t, err)
	return it
}

func validBill(t *testing.T) *entity.Bill {
	items := []entity.LineItem{mustItem(t, "Pen", "2", "10.00")}
	totals := entity.ComputeTotals(items, entity.DefaultTaxRate)
	return &entity.Bill{
		LocalID:      1700000000000,
		DeviceID:     "counter-1",
		CustomerName: "Alice",
		Items:        items,
		Subtotal:     totals.Subtotal,
		Tax:          totals.Tax,
		TotalAmount:  totals.TotalAmount,
		Timestamp:    time.Now(),
		CreatedBy:    "staff",
	}
}

func TestNewLineItem_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name, qty, price, field string
	}{
		{"", "1", "1", "name"},
		{"  ", "1", "1", "name"},
		{"Pen", "0", "1", "quantity"},
		{"Pen", "-2", "1", "quantity"},
		{"Pen", "1", "0", "unit_price"},
	}
	for _, tc := range cases {
		_, err := entity.NewLineItem(tc.name, decimal.RequireFromString(tc.qty), decimal.RequireFromString(tc.price))
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
		assert.Equal(t, tc.field, apperror.GetAppError(err).Errors[0].Field)
	}
}

func TestComputeTotals_SinglePen(t *testing.T) {
	totals := entity.ComputeTotals([]entity.LineItem{mustItem(t, "Pen", "2", "10")}, entity.DefaultTaxRate)

	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(20)))
	assert.True(t, totals.Tax.Equal(decimal.RequireFromString("3.6")))
	assert.True(t, totals.TotalAmount.Equal(decimal.RequireFromString("23.6")))
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := entity.ComputeTotals(nil, entity.DefaultTaxRate)
	assert.True(t, totals.TotalAmount.IsZero())
}

func TestBillValidate_Valid(t *testing.T) {
	assert.NoError(t, validBill(t).Validate())
}

func TestBillValidate_DetectsTampering(t *testing.T) {
	b := validBill(t)
	b.TotalAmount = b.TotalAmount.Add(decimal.NewFromInt(1))
	require.Error(t, b.Validate())

	b = validBill(t)
	b.Items[0].LineTotal = decimal.NewFromInt(99)
	require.Error(t, b.Validate())

	b = validBill(t)
	b.CustomerName = ""
	require.Error(t, b.Validate())

	b = validBill(t)
	b.Items = nil
	require.Error(t, b.Validate())

	b = validBill(t)
	b.Timestamp = time.Time{}
	require.Error(t, b.Validate())
}

func TestBillValidate_FractionalQuantitiesSurviveStorage(t *testing.T) {
	items := []entity.LineItem{mustItem(t, "Saffron", "0.125", "99.99")}
	totals := entity.ComputeTotals(items, entity.DefaultTaxRate)
	b := validBill(t)
	b.Items = items
	b.Subtotal, b.Tax, b.TotalAmount = totals.Subtotal, totals.Tax, totals.TotalAmount

	assert.Equal(t, "12.49875", b.Items[0].LineTotal.String())
	require.NoError(t, b.Validate())

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	var back entity.Bill
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.NoError(t, back.Validate())
	assert.True(t, back.Subtotal.Equal(b.Items[0].LineTotal))
}

func TestBillSchema_MoneyColumnsKeepFullScale(t *testing.T) {
	s, err := schema.Parse(&entity.Bill{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	for _, name := range []string{"Subtotal", "Tax", "TotalAmount"} {
		field := s.LookUpField(name)
		require.NotNil(t, field, name)
		assert.Equal(t, schema.DataType("numeric"), field.DataType, name)
	}
}

func TestBillNumber(t *testing.T) {
	b := entity.Bill{LocalID: 42}
	assert.Equal(t, "BILL-42", b.Number())
}

func TestPricingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	tolerance := decimal.RequireFromString("0.005")
	rate := decimal.RequireFromString("1.18")

	properties.Property("totals follow line items and the 18% rate", prop.ForAll(
		func(qtys []int, pricesPaise []int) bool {
			var items []entity.LineItem
			for i := 0; i < len(qtys) && i < len(pricesPaise); i++ {
				it, err := entity.NewLineItem("item", decimal.NewFromInt(int64(qtys[i])), decimal.New(int64(pricesPaise[i]), -2))
				if err != nil {
					return false
				}
				if !it.LineTotal.Equal(it.Quantity.Mul(it.UnitPrice)) {
					return false
				}
				items = append(items, it)
			}

			totals := entity.ComputeTotals(items, entity.DefaultTaxRate)
			sum := decimal.Zero
			for _, it := range items {
				sum = sum.Add(it.LineTotal)
			}
			if !totals.Subtotal.Equal(sum) {
				return false
			}
			if !totals.TotalAmount.Equal(totals.Subtotal.Add(totals.Tax)) {
				return false
			}
			return totals.TotalAmount.Sub(totals.Subtotal.Mul(rate)).Abs().LessThanOrEqual(tolerance)
		},
		gen.SliceOf(gen.IntRange(1, 500)),
		gen.SliceOf(gen.IntRange(1, 10000000)),
	))

	properties.TestingRun(t)
}
