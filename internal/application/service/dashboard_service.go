package service

import (
	"context"
	"time"

	"github.com/sangkips/smartbill/internal/domain/analytics"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
)

// BillSource provides the full known bill set
type BillSource interface {
	Bills(ctx context.Context) ([]entity.Bill, error)
}

// DashboardService provides dashboard statistics
type DashboardService struct {
	bills BillSource
	loc   *time.Location
	now   func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(bills BillSource, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{bills: bills, loc: loc, now: time.Now}
}

// DashboardStats represents dashboard statistics
type DashboardStats struct {
	Range       enum.DateRange             `json:"range"`
	Staff       string                     `json:"staff"`
	Metrics     analytics.DashboardMetrics `json:"metrics"`
	PeakHours   []analytics.HourBucket     `json:"peak_hours"`
	DailySales  []analytics.PeriodBucket   `json:"daily_sales"`
	StaffList   []string                   `json:"staff_list"`
	RecentBills []entity.Bill              `json:"recent_bills"`
}

const recentBillCount = 5

// GetDashboardStats returns the metrics for bills in the range, narrowed to
// one staff member unless staff is analytics.StaffAll
func (s *DashboardService) GetDashboardStats(ctx context.Context, r enum.DateRange, staff string) (*DashboardStats, error) {
	all, err := s.bills.Bills(ctx)
	if err != nil {
		return nil, err
	}
	if staff == "" {
		staff = analytics.StaffAll
	}

	now := s.now().In(s.loc)
	bills := analytics.FilterByStaff(analytics.FilterByDateRange(all, r, now), staff)

	recent := analytics.SortNewestFirst(bills)
	if len(recent) > recentBillCount {
		recent = recent[:recentBillCount]
	}

	return &DashboardStats{
		Range:       r,
		Staff:       staff,
		Metrics:     analytics.Dashboard(bills, now),
		PeakHours:   analytics.GroupByHour(bills, s.loc).Chart(),
		DailySales:  analytics.RevenueByPeriod(bills, enum.GranularityDaily, s.loc),
		StaffList:   analytics.StaffMembers(all),
		RecentBills: recent,
	}, nil
}
