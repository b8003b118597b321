package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sangkips/smartbill/internal/config"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/pkg/currency"
	"github.com/sangkips/smartbill/pkg/printer"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PrinterService renders finalized bills as receipts and sends them to the
// thermal printer.
type PrinterService struct {
	printer printer.Printer
	header  entity.ReceiptHeader
	taxRate decimal.Decimal
	width   int
	loc     *time.Location
	log     logrus.FieldLogger
}

// NewPrinterService creates a new printer service.
func NewPrinterService(p printer.Printer, billing config.BillingConfig, width int, loc *time.Location, log logrus.FieldLogger) *PrinterService {
	taxRate := billing.TaxRate
	if taxRate.IsZero() {
		taxRate = entity.DefaultTaxRate
	}
	if loc == nil {
		loc = time.Local
	}
	return &PrinterService{
		printer: p,
		header: entity.ReceiptHeader{
			StoreName: billing.StoreName,
			Address:   billing.StoreAddr,
			Phone:     billing.StorePhone,
			GSTIN:     billing.GSTIN,
		},
		taxRate: taxRate,
		width:   width,
		loc:     loc,
		log:     log,
	}
}

// PrinterStatus returns the current printer status information.
type PrinterStatus struct {
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
	Type       string `json:"type"`
}

// GetStatus returns printer connection status.
func (s *PrinterService) GetStatus(ctx context.Context) *PrinterStatus {
	return &PrinterStatus{
		Configured: s.printer.Kind() != printer.KindNone,
		Connected:  s.printer.Connected(ctx),
		Type:       string(s.printer.Kind()),
	}
}

// BuildReceipt composes the printable view of a bill
func (s *PrinterService) BuildReceipt(bill *entity.Bill) *entity.Receipt {
	r := &entity.Receipt{
		Header:        s.header,
		BillNo:        bill.Number(),
		Date:          bill.Timestamp.In(s.loc).Format("02 Jan 2006 15:04"),
		Cashier:       bill.CreatedBy,
		Customer:      bill.CustomerName,
		CustomerPhone: bill.CustomerPhone,
		SubTotal:      currency.Plain(bill.Subtotal),
		TaxLabel:      "GST " + s.taxRate.Shift(2).String() + "%",
		Tax:           currency.Plain(bill.Tax),
		Total:         currency.Plain(bill.TotalAmount),
		Synced:        bill.Synced,
	}
	for _, it := range bill.Items {
		r.Items = append(r.Items, entity.ReceiptItem{
			Name:      it.Name,
			Quantity:  it.Quantity.String(),
			UnitPrice: currency.Plain(it.UnitPrice),
			Total:     currency.Plain(it.LineTotal),
		})
	}
	return r
}

// PrintBill prints the receipt of a finalized bill. The receipt is returned
// even when printing fails so the caller can show or download it.
func (s *PrinterService) PrintBill(ctx context.Context, bill *entity.Bill) (*entity.Receipt, error) {
	receipt := s.BuildReceipt(bill)
	if err := s.printer.Print(ctx, FormatReceipt(receipt, s.width)); err != nil {
		if !errors.Is(err, printer.ErrNotConfigured) {
			s.log.WithFields(logrus.Fields{"module": "printer", "bill": receipt.BillNo}).Error("print failed: " + err.Error())
		}
		return receipt, fmt.Errorf("failed to print receipt: %w", err)
	}
	return receipt, nil
}

// TestPrint sends a sample receipt to the printer.
func (s *PrinterService) TestPrint(ctx context.Context) (*entity.Receipt, error) {
	item, _ := entity.NewLineItem("Test Item", decimal.NewFromInt(2), decimal.NewFromInt(5))
	totals := entity.ComputeTotals([]entity.LineItem{item}, s.taxRate)
	sample := &entity.Bill{
		LocalID:      1,
		CustomerName: "Printer Test",
		Items:        []entity.LineItem{item},
		Subtotal:     totals.Subtotal,
		Tax:          totals.Tax,
		TotalAmount:  totals.TotalAmount,
		Timestamp:    time.Now(),
		CreatedBy:    "system",
	}

	receipt := s.BuildReceipt(sample)
	receipt.BillNo = "TEST-001"
	if err := s.printer.Print(ctx, FormatReceipt(receipt, s.width)); err != nil {
		return receipt, fmt.Errorf("test print failed: %w", err)
	}
	return receipt, nil
}

// FormatReceipt converts a Receipt into ESC/POS bytes.
func FormatReceipt(r *entity.Receipt, width int) []byte {
	doc := printer.NewDocument(width)

	doc.SetAlign(printer.AlignCenter).
		SetBold(true).
		SetFontSize(printer.FontDouble).
		Text(r.Header.StoreName).
		SetFontSize(printer.FontNormal).
		SetBold(false)

	if r.Header.Address != "" {
		doc.Text(r.Header.Address)
	}
	if r.Header.Phone != "" {
		doc.Text(r.Header.Phone)
	}
	if r.Header.GSTIN != "" {
		doc.TextF("GSTIN: %s", r.Header.GSTIN)
	}

	doc.SetAlign(printer.AlignLeft).
		Separator('-')

	doc.KeyValue("Bill:", r.BillNo).
		KeyValue("Date:", r.Date)
	if r.Cashier != "" {
		doc.KeyValue("Cashier:", r.Cashier)
	}
	doc.KeyValue("Customer:", r.Customer)
	if r.CustomerPhone != "" {
		doc.KeyValue("Phone:", r.CustomerPhone)
	}

	doc.Separator('-')

	for _, item := range r.Items {
		doc.ItemLine(item.Quantity, item.Name, item.Total)
		if item.Quantity != "1" {
			doc.TextF("  @ %s each", item.UnitPrice)
		}
	}

	doc.Separator('-')

	doc.KeyValue("Subtotal:", r.SubTotal).
		KeyValue(r.TaxLabel+":", r.Tax).
		SetBold(true).
		KeyValue("TOTAL (Rs):", r.Total).
		SetBold(false)

	doc.Separator('-')

	doc.SetAlign(printer.AlignCenter)
	if !r.Synced {
		doc.Text("Saved offline - pending sync")
	}
	doc.LineFeed().
		Text("Thank you for shopping with us!").
		LineFeed().
		SetAlign(printer.AlignLeft)

	doc.FeedLines(3).
		PartialCut()

	return doc.Bytes()
}
