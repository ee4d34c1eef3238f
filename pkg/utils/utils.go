package utils

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// ShortAddress renders an address as its first and last four characters.
func ShortAddress(addr string) string {
	if len(addr) <= 11 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

// RoundHalfUp rounds to the nearest integer, halves toward +Inf.
func RoundHalfUp(f float64) float64 {
	return math.Floor(f + 0.5)
}

// FormatFloat renders f with decimals fraction digits and the locale's
// grouping separators.
func FormatFloat(f float64, decimals int, tag language.Tag) string {
	p := message.NewPrinter(tag)
	return p.Sprintf(fmt.Sprintf("%%.%df", decimals), f)
}

// FormatBalance rounds to a whole unit and always shows two decimals,
// e.g. 1234.6 -> "1,235.00" in English.
func FormatBalance(f float64, tag language.Tag) string {
	r := RoundHalfUp(f)
	if r == 0 {
		r = 0 // drop negative zero
	}
	return FormatFloat(r, 2, tag)
}
