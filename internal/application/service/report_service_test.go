package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sangkips/smartbill/internal/domain/analytics"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type staticBills []entity.Bill

func (s staticBills) Bills(context.Context) ([]entity.Bill, error) { return s, nil }

var ist = time.FixedZone("IST", 5*3600+1800)

func reportFixture(t *testing.T) (staticBills, time.Time) {
	now := time.Date(2025, 3, 12, 15, 30, 0, 0, ist)
	at := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, ist) }

	b1 := makeBill(t, 1, "Bob")
	b1.Timestamp = at(12, 9)
	b1.Synced = true
	b2 := makeBill(t, 2, "Carol")
	b2.Timestamp = at(12, 11)
	b2.CreatedBy = "ravi"
	b3 := makeBill(t, 3, "Bob")
	b3.Timestamp = at(11, 9)
	b3.Synced = true
	return staticBills{b1, b2, b3}, now
}

func TestDashboardService_Today(t *testing.T) {
	bills, now := reportFixture(t)
	s := NewDashboardService(bills, ist)
	s.now = func() time.Time { return now }

	stats, err := s.GetDashboardStats(context.Background(), enum.DateRangeToday, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Metrics.TotalTransactions)
	assert.Equal(t, "47.2", stats.Metrics.TotalSales.String())
	assert.Equal(t, "47.2", stats.Metrics.TodaySales.String())
	assert.Equal(t, 1, stats.Metrics.PendingSync)
	assert.Equal(t, []string{"ravi", "staff"}, stats.StaffList)
	assert.Equal(t, []int64{2, 1}, localIDs(stats.RecentBills))
	assert.Len(t, stats.PeakHours, 2)

	stats, err = s.GetDashboardStats(context.Background(), enum.DateRangeLast7Days, "ravi")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Metrics.TotalTransactions)
	assert.Equal(t, "ravi", stats.Staff)
}

func TestReportService_Views(t *testing.T) {
	ctx := context.Background()
	bills, now := reportFixture(t)
	s := NewReportService(bills, ist)
	s.now = func() time.Time { return now }
	week := ReportQuery{Range: enum.DateRangeLast7Days, Staff: analytics.StaffAll}

	revenue, err := s.Revenue(ctx, week, enum.GranularityDaily)
	require.NoError(t, err)
	require.Len(t, revenue, 2)
	assert.Equal(t, "Mar 11", revenue[0].Label)
	assert.Equal(t, 2, revenue[1].Transactions)

	top, err := s.TopCustomers(ctx, week, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Bob", top[0].Name)
	assert.Equal(t, 2, top[0].Visits)

	peak, err := s.PeakHours(ctx, week)
	require.NoError(t, err)
	require.NotNil(t, peak.Peak)
	assert.Equal(t, 9, peak.Peak.Hour)

	summary, err := s.Summary(ctx, week)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalTransactions)
	assert.Equal(t, 2, summary.UniqueCustomers)
	assert.Equal(t, "23.6", summary.AverageOrderValue.String())
}

func TestReportService_Export(t *testing.T) {
	bills, now := reportFixture(t)
	s := NewReportService(bills, ist)
	s.now = func() time.Time { return now }

	report, err := s.Export(context.Background(), ReportQuery{Range: enum.DateRangeYesterday})
	require.NoError(t, err)
	assert.Equal(t, "yesterday", report.Period)
	assert.Equal(t, 1, report.TotalTransactions)
	assert.Equal(t, "23.6", report.TotalRevenue.String())
	assert.True(t, report.GeneratedAt.Equal(now))

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"yesterday","totalRevenue":23.6,"totalTransactions":1,"generatedAt":"`+report.GeneratedAt.Format(time.RFC3339Nano)+`"}`, string(raw))
}

func TestReportService_ExportXLSX(t *testing.T) {
	bills, now := reportFixture(t)
	s := NewReportService(bills, ist)
	s.now = func() time.Time { return now }

	data, err := s.ExportXLSX(context.Background(), ReportQuery{Range: enum.DateRangeLast7Days})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, billsSheet}, f.GetSheetList())

	period, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "last7days", period)

	rows, err := f.GetRows(billsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Bill No", rows[0][0])
	assert.Equal(t, "BILL-2", rows[1][0])
	assert.Equal(t, "Carol", rows[1][2])
}
