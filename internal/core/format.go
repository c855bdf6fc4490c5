package core

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatTotal renders a whale total for the total label, e.g. "1,234 whales".
// Fractional totals keep every digit so the label equals the stored total.
func FormatTotal(total float64) string {
	if math.IsNaN(total) || math.IsInf(total, 0) || math.Abs(total) >= 1<<53 {
		return strconv.FormatFloat(total, 'f', -1, 64) + " whales"
	}
	digits := strconv.FormatFloat(total, 'f', -1, 64)
	label := printer.Sprintf("%d", int64(math.Trunc(total)))
	if dot := strings.IndexByte(digits, '.'); dot >= 0 {
		label += digits[dot:]
	}
	return label + " whales"
}
