package notification

import (
	"strings"

	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/payment/format"
)

// BuildMessage renders the confirmation sent to account contacts.
func BuildMessage(rec paymentdomain.PaymentRecord) string {
	lines := []string{
		"Payment Received",
		"Txn: " + rec.TransactionID,
		"Date: " + format.Timestamp(rec.Timestamp),
		"Amount: " + format.Amount(rec.Amount),
		"From: " + format.Name(rec.PayerName) + " (" + format.Phone(rec.PayerPhone) + ")",
		"Account: " + rec.AccountNumber,
	}
	return strings.Join(lines, "\n")
}
