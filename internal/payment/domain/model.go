package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Schema identifies which gateway field-naming variant a payload used.
type Schema string

const (
	SchemaOfficial   Schema = "official"
	SchemaSimulation Schema = "simulation"
)

// Gateway payload field names.
const (
	FieldTransactionType   = "TransactionType"
	FieldTransID           = "TransID"
	FieldTransTime         = "TransTime"
	FieldTransAmount       = "TransAmount"
	FieldBusinessShortCode = "BusinessShortCode"
	FieldBillRefNumber     = "BillRefNumber"
	FieldInvoiceNumber     = "InvoiceNumber"
	FieldOrgAccountBalance = "OrgAccountBalance"
	FieldMSISDN            = "MSISDN"
	FieldFirstName         = "FirstName"
	FieldMiddleName        = "MiddleName"
	FieldLastName          = "LastName"

	FieldShortCode = "ShortCode"
	FieldMsisdn    = "Msisdn"
	FieldAmount    = "Amount"
	FieldCommandID = "CommandID"
)

// SimulationAliases maps each simulation field onto the official field it
// stands in for. The alias is read only when the official field is absent.
var SimulationAliases = map[string]string{
	FieldShortCode: FieldBusinessShortCode,
	FieldMsisdn:    FieldMSISDN,
	FieldAmount:    FieldTransAmount,
}

var ErrInvalidJSON = errors.New("invalid_json")

// PaymentRecord is the canonical form of one gateway callback.
type PaymentRecord struct {
	TransactionID     string              `json:"transId"`
	Timestamp         string              `json:"time"`
	Amount            decimal.Decimal     `json:"amount"`
	PayerName         string              `json:"name"`
	PayerPhone        string              `json:"phone"`
	AccountNumber     string              `json:"accountNumber"`
	TransactionType   string              `json:"transactionType,omitempty"`
	ShortCode         string              `json:"shortCode,omitempty"`
	InvoiceNumber     string              `json:"invoiceNumber,omitempty"`
	CommandID         string              `json:"commandId,omitempty"`
	OrgAccountBalance decimal.NullDecimal `json:"orgAccountBalance"`
	Schema            Schema              `json:"schema,omitempty"`
}

// FieldError is a single validation violation.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// FieldErrors keeps violations in field declaration order.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

// Fields returns the names of the violated fields in order.
func (e FieldErrors) Fields() []string {
	out := make([]string, 0, len(e))
	for _, fe := range e {
		out = append(out, fe.Field)
	}
	return out
}

// Validation reasons reported back to the gateway.
const (
	ReasonRequired       = "This field is required."
	ReasonBlank          = "This field may not be blank."
	ReasonNull           = "This field may not be null."
	ReasonInvalidString  = "Not a valid string."
	ReasonInvalidNumber  = "A valid number is required."
	ReasonAmountPositive = "TransAmount must be a positive number."
	ReasonDecimalPlaces  = "Ensure that there are no more than %d decimal places."
	ReasonMaxDigits      = "Ensure that there are no more than %d digits in total."
	ReasonMaxWholeDigits = "Ensure that there are no more than %d digits before the decimal point."
)
