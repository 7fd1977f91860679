package ghl

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Price and deposit state travel in the appointment notes. These patterns are
// the parsing contract for notes written by earlier syncs; keep them stable.
var pricePattern = regexp.MustCompile(`Price:\s*\$?(\d+)`)

const depositPaidMarker = "deposit: paid"

// ParseNotes extracts the price and deposit flag. Missing tokens yield zero and false.
func ParseNotes(notes string) (price decimal.Decimal, depositPaid bool) {
	price = decimal.Zero
	if m := pricePattern.FindStringSubmatch(notes); m != nil {
		if p, err := decimal.NewFromString(m[1]); err == nil {
			price = p
		}
	}
	depositPaid = strings.Contains(strings.ToLower(notes), depositPaidMarker)
	return price, depositPaid
}

// BuildNotes renders the notes block written on appointment creation. The
// price is rounded to whole dollars so ParseNotes reads back what was written.
func BuildNotes(service string, price decimal.Decimal, depositPaid bool, extra string) string {
	deposit := "Pending"
	if depositPaid {
		deposit = "Paid"
	}

	var b strings.Builder
	b.WriteString("Service: " + service + "\n")
	b.WriteString("Price: $" + price.Round(0).StringFixed(0) + "\n")
	b.WriteString("Deposit: " + deposit)
	if extra = strings.TrimSpace(extra); extra != "" {
		b.WriteString("\n" + extra)
	}
	return b.String()
}
