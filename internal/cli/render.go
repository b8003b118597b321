package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sangkips/smartbill/internal/application/service"
	"github.com/sangkips/smartbill/internal/domain/analytics"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/pkg/currency"
)

var (
	accent  = lipgloss.Color("#2563EB")
	fg      = lipgloss.Color("#E5E7EB")
	dim     = lipgloss.Color("#6B7280")
	faint   = lipgloss.Color("#374151")
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	okStyle       = lipgloss.NewStyle().Foreground(success)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	separatorLine = faintStyle.Render(strings.Repeat("─", 56))
)

// FormatLastSync renders how long ago t was, for status lines
func FormatLastSync(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "Never"
	}
	diff := now.Sub(*t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	default:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	}
}

func renderSyncStatus(st service.SyncStatus, now time.Time) string {
	var b strings.Builder

	conn := okStyle.Render("● online")
	if !st.Online {
		conn = warnStyle.Render("● offline")
	}
	b.WriteString(headerStyle.Render("smartbill sync") + "  " + conn + "\n")
	b.WriteString(separatorLine + "\n")
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("state:      "), st.State.String())
	fmt.Fprintf(&b, "%s %d\n", dimStyle.Render("pending:    "), st.Pending)
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("last sync:  "), FormatLastSync(st.LastSyncedAt, now))
	if st.LastError != "" {
		fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("last error: "), failStyle.Render(st.LastError))
	}
	return b.String()
}

func renderDrain(report service.DrainReport, err error) string {
	var b strings.Builder
	switch {
	case report.Coalesced:
		b.WriteString(warnStyle.Render("another sync is already running") + "\n")
	case report.Total == 0:
		b.WriteString(okStyle.Render("✓ nothing to sync") + "\n")
	default:
		b.WriteString(progressBar(report.Completed, report.Total, 30))
		fmt.Fprintf(&b, " %d/%d bills\n", report.Completed, report.Total)
	}
	if err != nil {
		b.WriteString(failStyle.Render("✗ "+err.Error()) + "\n")
	}
	return b.String()
}

func progressBar(done, total, width int) string {
	filled := width
	if total > 0 {
		filled = done * width / total
	}
	return okStyle.Render(strings.Repeat("█", filled)) + faintStyle.Render(strings.Repeat("░", width-filled))
}

func renderQueue(bills []entity.Bill, loc *time.Location) string {
	if len(bills) == 0 {
		return okStyle.Render("✓ offline queue is empty") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d bill(s) waiting to sync", len(bills))) + "\n")
	b.WriteString(separatorLine + "\n")
	for i := range bills {
		bill := &bills[i]
		fmt.Fprintf(&b, "%-18s %-16s %14s  %s  %s\n",
			bill.Number(),
			truncate(bill.CustomerName, 16),
			currency.Format(bill.TotalAmount),
			dimStyle.Render(bill.Timestamp.In(loc).Format("02 Jan 15:04")),
			dimStyle.Render(bill.CreatedBy),
		)
	}
	return b.String()
}

type reportView struct {
	Period    string
	Summary   analytics.Summary
	Revenue   []analytics.PeriodBucket
	Customers []analytics.CustomerRollup
	Peak      *analytics.HourBucket
}

func renderReport(v reportView) string {
	var b strings.Builder

	head := titleStyle.Render("Sales report") + "  " + dimStyle.Render(v.Period) + "\n\n" +
		fmt.Sprintf("Revenue       %s\n", currency.Format(v.Summary.TotalRevenue)) +
		fmt.Sprintf("Transactions  %d\n", v.Summary.TotalTransactions) +
		fmt.Sprintf("Avg. order    %s\n", currency.Format(v.Summary.AverageOrderValue)) +
		fmt.Sprintf("Items sold    %s\n", v.Summary.TotalItems.String()) +
		fmt.Sprintf("Customers     %d", v.Summary.UniqueCustomers)
	b.WriteString(boxStyle.Render(head))
	b.WriteString("\n\n")

	if len(v.Revenue) > 0 {
		b.WriteString(headerStyle.Render("Revenue") + "\n")
		for _, bucket := range v.Revenue {
			fmt.Fprintf(&b, "  %-10s %14s  %s\n", bucket.Label, currency.FormatCompact(bucket.Revenue),
				dimStyle.Render(fmt.Sprintf("%d bills", bucket.Transactions)))
		}
		b.WriteString("\n")
	}

	if len(v.Customers) > 0 {
		b.WriteString(headerStyle.Render("Top customers") + "\n")
		for i, c := range v.Customers {
			fmt.Fprintf(&b, "  %d. %-18s %14s  %s\n", i+1, truncate(c.Name, 18), currency.Format(c.TotalSpent),
				dimStyle.Render(fmt.Sprintf("%d visits", c.Visits)))
		}
		b.WriteString("\n")
	}

	if v.Peak != nil {
		fmt.Fprintf(&b, "%s %s (%d bills)\n", headerStyle.Render("Peak hour"), v.Peak.Label, v.Peak.Transactions)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
