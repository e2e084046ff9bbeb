// Package normalizer turns a decoded gateway payload into a PaymentRecord.
package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/payment/format"
)

const (
	amountMaxDigits   = 10
	balanceMaxDigits  = 15
	currencyPrecision = 2
)

// Decode parses a callback body. Numbers are kept as json.Number so amounts
// never pass through float64.
func Decode(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidJSON, err)
	}
	if payload == nil {
		return nil, domain.ErrInvalidJSON
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", domain.ErrInvalidJSON)
	}
	return payload, nil
}

// ResolveSchema reports which field-naming variant the payload uses. A
// payload carrying any official-only key is official.
func ResolveSchema(payload map[string]any) domain.Schema {
	if hasKey(payload, domain.FieldBusinessShortCode) || hasKey(payload, domain.FieldMSISDN) {
		return domain.SchemaOfficial
	}
	for alias := range domain.SimulationAliases {
		if hasKey(payload, alias) {
			return domain.SchemaSimulation
		}
	}
	if hasKey(payload, domain.FieldCommandID) {
		return domain.SchemaSimulation
	}
	return domain.SchemaOfficial
}

// Normalize validates payload and builds the canonical record. Violations
// are reported in field declaration order.
func Normalize(payload map[string]any) (domain.PaymentRecord, domain.FieldErrors) {
	in := newInput(payload)
	var errs domain.FieldErrors

	transID, reason := in.requiredString(domain.FieldTransID)
	if reason != "" {
		errs = append(errs, domain.FieldError{Field: domain.FieldTransID, Reason: reason})
	}

	amount, reason := in.amount()
	if reason != "" {
		errs = append(errs, domain.FieldError{Field: domain.FieldTransAmount, Reason: reason})
	}

	billRef, reason := in.requiredString(domain.FieldBillRefNumber)
	if reason != "" {
		errs = append(errs, domain.FieldError{Field: domain.FieldBillRefNumber, Reason: reason})
	}

	balance, reason := in.balance()
	if reason != "" {
		errs = append(errs, domain.FieldError{Field: domain.FieldOrgAccountBalance, Reason: reason})
	}

	if len(errs) > 0 {
		return domain.PaymentRecord{}, errs
	}

	return domain.PaymentRecord{
		TransactionID: transID,
		Timestamp:     in.optionalString(domain.FieldTransTime),
		Amount:        amount,
		PayerName: format.Name(
			in.optionalString(domain.FieldFirstName),
			in.optionalString(domain.FieldMiddleName),
			in.optionalString(domain.FieldLastName),
		),
		PayerPhone:        in.optionalString(domain.FieldMSISDN),
		AccountNumber:     billRef,
		TransactionType:   in.optionalString(domain.FieldTransactionType),
		ShortCode:         in.optionalString(domain.FieldBusinessShortCode),
		InvoiceNumber:     in.optionalString(domain.FieldInvoiceNumber),
		CommandID:         in.optionalString(domain.FieldCommandID),
		OrgAccountBalance: balance,
		Schema:            in.schema,
	}, nil
}

// BillRef extracts only the billing reference, as the pre-validation
// probe does not carry a full payment.
func BillRef(payload map[string]any) (string, domain.FieldErrors) {
	billRef, reason := newInput(payload).requiredString(domain.FieldBillRefNumber)
	if reason != "" {
		return "", domain.FieldErrors{{Field: domain.FieldBillRefNumber, Reason: reason}}
	}
	return billRef, nil
}

type input struct {
	values map[string]any
	schema domain.Schema
}

// newInput folds simulation aliases onto their official names. An alias
// never overrides an official field that is present.
func newInput(payload map[string]any) input {
	values := make(map[string]any, len(payload))
	for key, value := range payload {
		values[key] = value
	}
	for alias, official := range domain.SimulationAliases {
		if _, ok := values[official]; ok {
			continue
		}
		if value, ok := values[alias]; ok {
			values[official] = value
		}
	}
	return input{values: values, schema: ResolveSchema(payload)}
}

func (in input) requiredString(field string) (string, string) {
	raw, ok := in.values[field]
	if !ok {
		return "", domain.ReasonRequired
	}
	if raw == nil {
		return "", domain.ReasonNull
	}
	s, ok := scalarString(raw)
	if !ok {
		return "", domain.ReasonInvalidString
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", domain.ReasonBlank
	}
	return s, ""
}

func (in input) optionalString(field string) string {
	s, _ := scalarString(in.values[field])
	return strings.TrimSpace(s)
}

func (in input) amount() (decimal.Decimal, string) {
	raw, ok := in.values[domain.FieldTransAmount]
	if !ok {
		return decimal.Decimal{}, domain.ReasonRequired
	}
	if raw == nil {
		return decimal.Decimal{}, domain.ReasonNull
	}
	amount, reason := parseDecimal(raw, amountMaxDigits)
	if reason != "" {
		return decimal.Decimal{}, reason
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, domain.ReasonAmountPositive
	}
	return amount, ""
}

func (in input) balance() (decimal.NullDecimal, string) {
	raw, ok := in.values[domain.FieldOrgAccountBalance]
	if !ok || raw == nil {
		return decimal.NullDecimal{}, ""
	}
	if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, ""
	}
	value, reason := parseDecimal(raw, balanceMaxDigits)
	if reason != "" {
		return decimal.NullDecimal{}, reason
	}
	return decimal.NewNullDecimal(value), ""
}

func parseDecimal(raw any, maxDigits int) (decimal.Decimal, string) {
	var (
		value decimal.Decimal
		err   error
	)
	switch v := raw.(type) {
	case string:
		value, err = decimal.NewFromString(strings.TrimSpace(v))
	case json.Number:
		value, err = decimal.NewFromString(v.String())
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, domain.ReasonInvalidNumber
		}
		value = decimal.NewFromFloat(v)
	case int:
		value = decimal.NewFromInt(int64(v))
	case int64:
		value = decimal.NewFromInt(v)
	default:
		return decimal.Decimal{}, domain.ReasonInvalidNumber
	}
	if err != nil {
		return decimal.Decimal{}, domain.ReasonInvalidNumber
	}

	digits, decimals := digitCounts(value)
	switch {
	case digits > maxDigits:
		return decimal.Decimal{}, fmt.Sprintf(domain.ReasonMaxDigits, maxDigits)
	case decimals > currencyPrecision:
		return decimal.Decimal{}, fmt.Sprintf(domain.ReasonDecimalPlaces, currencyPrecision)
	case digits-decimals > maxDigits-currencyPrecision:
		return decimal.Decimal{}, fmt.Sprintf(domain.ReasonMaxWholeDigits, maxDigits-currencyPrecision)
	}
	return value, ""
}

// digitCounts returns the total significant digits and the digits after the
// decimal point, counting trailing zeros as written.
func digitCounts(value decimal.Decimal) (int, int) {
	coefficient := strings.TrimPrefix(value.Coefficient().String(), "-")
	exponent := int(value.Exponent())
	if exponent >= 0 {
		return len(coefficient) + exponent, 0
	}
	decimals := -exponent
	if decimals > len(coefficient) {
		return decimals, decimals
	}
	return len(coefficient), decimals
}

func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

func hasKey(payload map[string]any, key string) bool {
	_, ok := payload[key]
	return ok
}
