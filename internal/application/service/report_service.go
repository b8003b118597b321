package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sangkips/smartbill/internal/domain/analytics"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	billsSheet   = "Bills"
)

// ReportService answers the owner analytics views and builds exports
type ReportService struct {
	bills BillSource
	loc   *time.Location
	now   func() time.Time
}

func NewReportService(bills BillSource, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{bills: bills, loc: loc, now: time.Now}
}

// ReportQuery selects the bills a report covers
type ReportQuery struct {
	Range enum.DateRange
	Staff string
}

func (s *ReportService) load(ctx context.Context, q ReportQuery) ([]entity.Bill, time.Time, error) {
	all, err := s.bills.Bills(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	now := s.now().In(s.loc)
	return analytics.FilterByStaff(analytics.FilterByDateRange(all, q.Range, now), q.Staff), now, nil
}

// Revenue returns revenue buckets for the chart, oldest first
func (s *ReportService) Revenue(ctx context.Context, q ReportQuery, g enum.Granularity) ([]analytics.PeriodBucket, error) {
	bills, _, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}
	return analytics.RevenueByPeriod(bills, g, s.loc), nil
}

// TopCustomers returns the n biggest spenders in the range
func (s *ReportService) TopCustomers(ctx context.Context, q ReportQuery, n int) ([]analytics.CustomerRollup, error) {
	bills, _, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = analytics.DefaultTopCustomers
	}
	return analytics.TopCustomers(bills, n), nil
}

// PeakHours is the hourly histogram with its busiest hour
type PeakHours struct {
	Hours []analytics.HourBucket `json:"hours"`
	Peak  *analytics.HourBucket  `json:"peak,omitempty"`
}

func (s *ReportService) PeakHours(ctx context.Context, q ReportQuery) (*PeakHours, error) {
	bills, _, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}
	hours := analytics.GroupByHour(bills, s.loc)
	out := &PeakHours{Hours: hours.Chart()}
	if peak, ok := hours.Peak(); ok {
		out.Peak = &peak
	}
	return out, nil
}

func (s *ReportService) Summary(ctx context.Context, q ReportQuery) (analytics.Summary, error) {
	bills, _, err := s.load(ctx, q)
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(bills), nil
}

// Export builds the downloadable sales report document
func (s *ReportService) Export(ctx context.Context, q ReportQuery) (*entity.SalesReport, error) {
	bills, now, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}
	totals := analytics.AggregateTotals(bills)
	return &entity.SalesReport{
		Period:            q.Range.String(),
		TotalRevenue:      totals.TotalSales,
		TotalTransactions: totals.Count,
		GeneratedAt:       now,
	}, nil
}

// ExportXLSX renders the report as a workbook with a Summary sheet and one
// row per bill on a Bills sheet
func (s *ReportService) ExportXLSX(ctx context.Context, q ReportQuery) ([]byte, error) {
	bills, now, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}
	summary := analytics.Summarize(bills)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	rows := [][]any{
		{"Period", q.Range.String()},
		{"Generated At", now.Format(time.RFC3339)},
		{"Total Revenue", summary.TotalRevenue.InexactFloat64()},
		{"Total Transactions", summary.TotalTransactions},
		{"Average Order Value", summary.AverageOrderValue.InexactFloat64()},
		{"Total Items", summary.TotalItems.InexactFloat64()},
		{"Unique Customers", summary.UniqueCustomers},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(billsSheet); err != nil {
		return nil, err
	}
	headers := []any{"Bill No", "Date", "Customer", "Phone", "Items", "Subtotal", "Tax", "Total", "Created By", "Synced"}
	if err := f.SetSheetRow(billsSheet, "A1", &headers); err != nil {
		return nil, err
	}
	for i, b := range analytics.SortNewestFirst(bills) {
		row := []any{
			b.Number(),
			b.Timestamp.In(s.loc).Format("2006-01-02 15:04"),
			b.CustomerName,
			b.CustomerPhone,
			b.ItemCount().InexactFloat64(),
			b.Subtotal.InexactFloat64(),
			b.Tax.InexactFloat64(),
			b.TotalAmount.InexactFloat64(),
			b.CreatedBy,
			b.Synced,
		}
		if err := f.SetSheetRow(billsSheet, "A"+fmt.Sprint(i+2), &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
