// Package currency formats rupee amounts for receipts, reports and the CLI.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Symbol is the rupee sign prefixed to every formatted amount.
const Symbol = "₹"

var (
	crore    = decimal.NewFromInt(10000000)
	lakh     = decimal.NewFromInt(100000)
	thousand = decimal.NewFromInt(1000)
)

// Format renders an amount with two decimals and Indian digit grouping,
// e.g. 123456.789 -> ₹1,23,456.79.
func Format(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-" + Symbol + Plain(amount.Neg())
	}
	return Symbol + Plain(amount)
}

// Plain is Format without the rupee sign, for thermal printers whose code
// pages have no glyph for it.
func Plain(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + groupIndian(intPart) + "." + frac
}

// FormatCompact abbreviates large amounts as crore, lakh or thousand.
func FormatCompact(amount decimal.Decimal) string {
	switch {
	case amount.GreaterThanOrEqual(crore):
		return Symbol + amount.Div(crore).StringFixed(2) + "Cr"
	case amount.GreaterThanOrEqual(lakh):
		return Symbol + amount.Div(lakh).StringFixed(2) + "L"
	case amount.GreaterThanOrEqual(thousand):
		return Symbol + amount.Div(thousand).StringFixed(2) + "K"
	}
	return Format(amount)
}

// groupIndian inserts separators after the last three digits and then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}
