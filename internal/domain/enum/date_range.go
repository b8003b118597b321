package enum

import "fmt"

// DateRange names a window of bills relative to the caller's current local date
type DateRange string

const (
	DateRangeToday      DateRange = "today"
	DateRangeYesterday  DateRange = "yesterday"
	DateRangeLast7Days  DateRange = "last7days"
	DateRangeLast30Days DateRange = "last30days"
	DateRangeThisMonth  DateRange = "thisMonth"
	DateRangeLastMonth  DateRange = "lastMonth"
)

// DateRanges lists every supported range in display order
var DateRanges = []DateRange{
	DateRangeToday,
	DateRangeYesterday,
	DateRangeLast7Days,
	DateRangeLast30Days,
	DateRangeThisMonth,
	DateRangeLastMonth,
}

// ParseDateRange validates a range name coming from a request or flag
func ParseDateRange(s string) (DateRange, error) {
	for _, r := range DateRanges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown date range %q", s)
}

func (r DateRange) String() string {
	return string(r)
}
