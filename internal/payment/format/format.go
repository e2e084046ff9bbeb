// Package format renders canonical payment fields for ledger rows and
// notification messages. All functions are pure.
package format

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	GatewayTimeLayout  = "20060102150405"
	DisplayTimeLayout  = "02 Jan 2006, 03:04 PM"
	CurrencyCode       = "KES"
	maskedPhoneLength  = 20
	maskedPhonePrefix  = 8
	countryCallingCode = "254"
)

// Name joins the non-empty name parts with single spaces in title case.
func Name(parts ...string) string {
	words := make([]string, 0, len(parts))
	for _, part := range parts {
		words = append(words, strings.Fields(part)...)
	}
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

// Timestamp renders a gateway YYYYMMDDHHMMSS value. Unparseable input is
// returned unchanged.
func Timestamp(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := time.Parse(GatewayTimeLayout, trimmed)
	if err != nil {
		return raw
	}
	return parsed.Format(DisplayTimeLayout)
}

// Phone renders the payer phone. The gateway hashes MSISDNs for some
// products; those values are shortened instead of normalized.
func Phone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if runes := []rune(raw); len(runes) > maskedPhoneLength {
		return "Masked (" + string(runes[:maskedPhonePrefix]) + "...)"
	}
	return NormalizePhone(raw)
}

// NormalizePhone returns the number in international form without a plus,
// e.g. 0712345678 and +254712345678 both become 254712345678.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	phone := strings.TrimPrefix(b.String(), "+")
	switch {
	case phone == "":
		return ""
	case strings.HasPrefix(phone, "0"):
		return countryCallingCode + phone[1:]
	case strings.HasPrefix(phone, countryCallingCode):
		return phone
	default:
		return countryCallingCode + phone
	}
}

// Amount renders a currency amount with thousands grouping, e.g. KES 1,234.50.
func Amount(amount decimal.Decimal) string {
	return CurrencyCode + " " + GroupedAmount(amount)
}

// GroupedAmount renders the amount with two decimals and thousands grouping.
func GroupedAmount(amount decimal.Decimal) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.2f", amount.Round(2).InexactFloat64())
}

// PlainAmount renders the amount with exactly two decimals and no grouping.
func PlainAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
