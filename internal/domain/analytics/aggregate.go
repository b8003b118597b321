package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// DefaultTopCustomers is the number of customers shown on the analytics page
const DefaultTopCustomers = 5

// Totals is the sales sum and transaction count of a bill set
type Totals struct {
	TotalSales decimal.Decimal `json:"total_sales"`
	Count      int             `json:"count"`
}

// AggregateTotals sums totalAmount over the bills
func AggregateTotals(bills []entity.Bill) Totals {
	t := Totals{TotalSales: decimal.Zero}
	for i := range bills {
		t.TotalSales = t.TotalSales.Add(bills[i].TotalAmount)
	}
	t.Count = len(bills)
	return t
}

// HourBucket counts transactions in one local hour of the day
type HourBucket struct {
	Hour         int             `json:"hour"`
	Label        string          `json:"label"`
	Transactions int             `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// Hours is a full 24-bucket histogram indexed by hour
type Hours [24]HourBucket

// GroupByHour buckets bills by the hour of their timestamp in loc
func GroupByHour(bills []entity.Bill, loc *time.Location) Hours {
	var h Hours
	for i := range h {
		h[i] = HourBucket{Hour: i, Label: fmt.Sprintf("%02d:00", i), Revenue: decimal.Zero}
	}
	for i := range bills {
		hour := bills[i].Timestamp.In(loc).Hour()
		h[hour].Transactions++
		h[hour].Revenue = h[hour].Revenue.Add(bills[i].TotalAmount)
	}
	return h
}

// Chart returns the non-empty buckets in hour order
func (h Hours) Chart() []HourBucket {
	out := []HourBucket{}
	for _, b := range h {
		if b.Transactions > 0 {
			out = append(out, b)
		}
	}
	return out
}

// Peak returns the earliest hour with the most transactions. ok is false when
// every bucket is empty.
func (h Hours) Peak() (HourBucket, bool) {
	best := -1
	for i, b := range h {
		if b.Transactions == 0 {
			continue
		}
		if best < 0 || b.Transactions > h[best].Transactions {
			best = i
		}
	}
	if best < 0 {
		return HourBucket{}, false
	}
	return h[best], true
}

// CustomerRollup is one customer's spend across the bill set
type CustomerRollup struct {
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Visits     int             `json:"visits"`
}

// TopCustomers groups bills by customer name and returns the n biggest
// spenders. Equal spend is ordered by name ascending.
func TopCustomers(bills []entity.Bill, n int) []CustomerRollup {
	byName := make(map[string]*CustomerRollup)
	for i := range bills {
		b := &bills[i]
		name := b.CustomerName
		if name == "" {
			name = "Unknown"
		}
		r, ok := byName[name]
		if !ok {
			phone := b.CustomerPhone
			if phone == "" {
				phone = "N/A"
			}
			r = &CustomerRollup{Name: name, Phone: phone, TotalSpent: decimal.Zero}
			byName[name] = r
		}
		r.TotalSpent = r.TotalSpent.Add(b.TotalAmount)
		r.Visits++
	}

	out := make([]CustomerRollup, 0, len(byName))
	for _, r := range byName {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalSpent.Cmp(out[j].TotalSpent); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})

	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// PeriodBucket is revenue for one day, week or month
type PeriodBucket struct {
	Start        time.Time       `json:"start"`
	Label        string          `json:"label"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
}

// BucketStart returns the start of the day, Sunday-based week or month containing t
func BucketStart(t time.Time, g enum.Granularity) time.Time {
	day := Midnight(t)
	switch g {
	case enum.GranularityWeekly:
		return day.AddDate(0, 0, -int(day.Weekday()))
	case enum.GranularityMonthly:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	default:
		return day
	}
}

func bucketLabel(start time.Time, g enum.Granularity) string {
	if g == enum.GranularityMonthly {
		return start.Format("Jan 2006")
	}
	return start.Format("Jan 02")
}

// RevenueByPeriod buckets bills by granularity in loc, oldest bucket first
func RevenueByPeriod(bills []entity.Bill, g enum.Granularity, loc *time.Location) []PeriodBucket {
	byStart := make(map[int64]*PeriodBucket)
	for i := range bills {
		start := BucketStart(bills[i].Timestamp.In(loc), g)
		key := start.Unix()
		pb, ok := byStart[key]
		if !ok {
			pb = &PeriodBucket{Start: start, Label: bucketLabel(start, g), Revenue: decimal.Zero}
			byStart[key] = pb
		}
		pb.Revenue = pb.Revenue.Add(bills[i].TotalAmount)
		pb.Transactions++
	}

	out := make([]PeriodBucket, 0, len(byStart))
	for _, pb := range byStart {
		out = append(out, *pb)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Summary is the headline block of the analytics report
type Summary struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalTransactions int             `json:"total_transactions"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	TotalItems        decimal.Decimal `json:"total_items"`
	UniqueCustomers   int             `json:"unique_customers"`
}

// Summarize computes the report summary. The average is rounded to paise.
func Summarize(bills []entity.Bill) Summary {
	totals := AggregateTotals(bills)
	s := Summary{
		TotalRevenue:      totals.TotalSales,
		TotalTransactions: totals.Count,
		AverageOrderValue: decimal.Zero,
		TotalItems:        decimal.Zero,
	}

	customers := make(map[string]struct{})
	for i := range bills {
		s.TotalItems = s.TotalItems.Add(bills[i].ItemCount())
		customers[bills[i].CustomerName] = struct{}{}
	}
	s.UniqueCustomers = len(customers)

	if totals.Count > 0 {
		s.AverageOrderValue = totals.TotalSales.Div(decimal.NewFromInt(int64(totals.Count))).Round(2)
	}
	return s
}

// DashboardMetrics is the owner dashboard headline for a filtered bill set
type DashboardMetrics struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalTransactions int             `json:"total_transactions"`
	TodaySales        decimal.Decimal `json:"today_sales"`
	PendingSync       int             `json:"pending_sync"`
}

// Dashboard computes the owner dashboard headline
func Dashboard(bills []entity.Bill, now time.Time) DashboardMetrics {
	totals := AggregateTotals(bills)
	today := AggregateTotals(FilterByDateRange(bills, enum.DateRangeToday, now))
	return DashboardMetrics{
		TotalSales:        totals.TotalSales,
		TotalTransactions: totals.Count,
		TodaySales:        today.TotalSales,
		PendingSync:       PendingCount(bills),
	}
}
