// Package format renders alerts for delivery as Telegram HTML.
package format

import (
	"html"
	"math"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// Price renders a USD price with four significant digits below $1 and cents above.
func Price(v float64) string {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	d := decimal.NewFromFloat(v)
	if v >= 1 {
		return "$" + d.StringFixed(2)
	}
	places := 3 - int32(math.Floor(math.Log10(v)))
	return "$" + d.Round(places).String()
}

// Compact renders a USD amount with a K/M/B suffix.
func Compact(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	d := decimal.NewFromFloat(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	switch {
	case d.GreaterThanOrEqual(billion):
		return sign + "$" + d.Div(billion).StringFixed(2) + "B"
	case d.GreaterThanOrEqual(million):
		return sign + "$" + d.Div(million).StringFixed(2) + "M"
	case d.GreaterThanOrEqual(thousand):
		return sign + "$" + d.Div(thousand).StringFixed(1) + "K"
	default:
		return sign + "$" + d.StringFixed(2)
	}
}

// Percent renders a signed percentage with one decimal.
func Percent(v float64) string {
	d := decimal.NewFromFloat(v).Round(1)
	if d.IsPositive() {
		return "+" + d.String() + "%"
	}
	return d.String() + "%"
}

// Score renders an entry score with at most two decimals and an explicit sign.
func Score(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

// Change returns the percentage change from base to v, or false when base is unusable.
func Change(base, v float64) (float64, bool) {
	if base <= 0 || v <= 0 {
		return 0, false
	}
	return (v - base) / base * 100, true
}

// Escape escapes text for Telegram HTML parse mode.
func Escape(s string) string {
	return html.EscapeString(s)
}

func decimalString(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
