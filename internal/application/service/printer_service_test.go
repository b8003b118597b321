package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/sangkips/smartbill/pkg/printer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPrinter struct {
	jobs [][]byte
}

func (p *recordingPrinter) Print(_ context.Context, data []byte) error {
	p.jobs = append(p.jobs, append([]byte{}, data...))
	return nil
}
func (p *recordingPrinter) Connected(context.Context) bool { return true }
func (p *recordingPrinter) Kind() printer.Kind             { return printer.KindNetwork }
func (p *recordingPrinter) Close() error                   { return nil }

func TestPrinterService_PrintBill(t *testing.T) {
	p := &recordingPrinter{}
	cfg := billingConfig()
	cfg.StoreName = "Sharma Stores"
	cfg.GSTIN = "27ABCDE1234F1Z5"
	s := NewPrinterService(p, cfg, 32, ist, testLogger())

	bill := makeBill(t, 42, "Alice")
	bill.Items[0].Quantity = decimal.NewFromInt(2)
	receipt, err := s.PrintBill(context.Background(), &bill)
	require.NoError(t, err)

	assert.Equal(t, "BILL-42", receipt.BillNo)
	assert.Equal(t, "GST 18%", receipt.TaxLabel)
	assert.Equal(t, "20.00", receipt.SubTotal)
	assert.Equal(t, "3.60", receipt.Tax)
	assert.Equal(t, "23.60", receipt.Total)
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, "2", receipt.Items[0].Quantity)

	require.Len(t, p.jobs, 1)
	job := p.jobs[0]
	assert.True(t, bytes.Contains(job, []byte("Sharma Stores")))
	assert.True(t, bytes.Contains(job, []byte("GSTIN: 27ABCDE1234F1Z5")))
	assert.True(t, bytes.Contains(job, []byte("Saved offline - pending sync")))
	assert.True(t, bytes.HasSuffix(job, []byte{printer.GS, 'V', 0x01}))
}

func TestPrinterService_NoPrinterStillReturnsReceipt(t *testing.T) {
	s := NewPrinterService(printer.NewNullPrinter(), billingConfig(), 32, ist, testLogger())
	bill := makeBill(t, 1, "Alice")

	receipt, err := s.PrintBill(context.Background(), &bill)
	assert.ErrorIs(t, err, printer.ErrNotConfigured)
	require.NotNil(t, receipt)
	assert.Equal(t, "Alice", receipt.Customer)

	status := s.GetStatus(context.Background())
	assert.False(t, status.Configured)
	assert.Equal(t, "none", status.Type)
}
