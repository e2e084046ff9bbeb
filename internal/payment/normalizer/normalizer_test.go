package normalizer

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	payload, err := Decode([]byte(body))
	require.NoError(t, err)
	return payload
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	for _, body := range []string{"", "{", "null", "[1,2]", `{"a":1} {"b":2}`} {
		_, err := Decode([]byte(body))
		if !errors.Is(err, domain.ErrInvalidJSON) {
			t.Fatalf("expected invalid json for %q, got %v", body, err)
		}
	}
}

func TestNormalizeOfficialPayload(t *testing.T) {
	payload := decode(t, `{
		"TransactionType": "Pay Bill",
		"TransID": "RKTQDM7W6S",
		"TransTime": "20241015143005",
		"TransAmount": "1234.50",
		"BusinessShortCode": "600000",
		"BillRefNumber": "600000",
		"InvoiceNumber": "",
		"OrgAccountBalance": "49197.00",
		"MSISDN": "254712345678",
		"FirstName": "JOHN",
		"MiddleName": "",
		"LastName": "doe"
	}`)

	rec, errs := Normalize(payload)
	require.Empty(t, errs)
	assert.Equal(t, "RKTQDM7W6S", rec.TransactionID)
	assert.Equal(t, "20241015143005", rec.Timestamp)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("1234.50")))
	assert.Equal(t, "John Doe", rec.PayerName)
	assert.Equal(t, "254712345678", rec.PayerPhone)
	assert.Equal(t, "600000", rec.AccountNumber)
	assert.Equal(t, "Pay Bill", rec.TransactionType)
	assert.Equal(t, "600000", rec.ShortCode)
	assert.True(t, rec.OrgAccountBalance.Valid)
	assert.Equal(t, domain.SchemaOfficial, rec.Schema)
}

func TestNormalizeSimulationAliases(t *testing.T) {
	payload := decode(t, `{
		"ShortCode": "600001",
		"CommandID": "CustomerPayBillOnline",
		"Amount": 10,
		"Msisdn": "254708374149",
		"BillRefNumber": "TEST001",
		"TransID": "SIM0001"
	}`)

	rec, errs := Normalize(payload)
	require.Empty(t, errs)
	assert.Equal(t, domain.SchemaSimulation, rec.Schema)
	assert.Equal(t, "600001", rec.ShortCode)
	assert.Equal(t, "254708374149", rec.PayerPhone)
	assert.Equal(t, "CustomerPayBillOnline", rec.CommandID)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(10)))
	assert.False(t, rec.OrgAccountBalance.Valid)
}

func TestNormalizeOfficialFieldWinsOverAlias(t *testing.T) {
	payload := decode(t, `{
		"TransID": "X1",
		"TransAmount": "5.00",
		"Amount": "900.00",
		"MSISDN": "254700000001",
		"Msisdn": "254799999999",
		"BillRefNumber": "600000"
	}`)

	rec, errs := Normalize(payload)
	require.Empty(t, errs)
	assert.Equal(t, "254700000001", rec.PayerPhone)
	assert.Equal(t, "5", rec.Amount.String())
	assert.Equal(t, domain.SchemaOfficial, rec.Schema)
}

func TestNormalizeAmountIsExact(t *testing.T) {
	for _, raw := range []string{`"0.01"`, `"10.00"`, `"99999999.99"`, `0.1`, `"1234.56"`, `12345678`} {
		payload := decode(t, `{"TransID":"X","BillRefNumber":"600000","TransAmount":`+raw+`}`)
		rec, errs := Normalize(payload)
		require.Empty(t, errs, raw)

		want := decimal.RequireFromString(trimQuotes(raw))
		assert.True(t, rec.Amount.Equal(want), "amount %s drifted to %s", raw, rec.Amount)
	}
}

func TestNormalizeRejectsNonPositiveAmount(t *testing.T) {
	for _, raw := range []string{`"0"`, `"0.00"`, `"-1"`, `-10.5`} {
		payload := decode(t, `{"TransID":"X","BillRefNumber":"600000","TransAmount":`+raw+`}`)
		_, errs := Normalize(payload)
		require.Len(t, errs, 1, raw)
		assert.Equal(t, domain.FieldTransAmount, errs[0].Field)
		assert.Equal(t, domain.ReasonAmountPositive, errs[0].Reason)
	}
}

func TestNormalizeAmountFormatViolations(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{raw: `"abc"`, want: domain.ReasonInvalidNumber},
		{raw: `true`, want: domain.ReasonInvalidNumber},
		{raw: `"10.001"`, want: "Ensure that there are no more than 2 decimal places."},
		{raw: `"12345678901"`, want: "Ensure that there are no more than 10 digits in total."},
		{raw: `"123456789.5"`, want: "Ensure that there are no more than 8 digits before the decimal point."},
	}
	for _, tc := range cases {
		payload := decode(t, `{"TransID":"X","BillRefNumber":"600000","TransAmount":`+tc.raw+`}`)
		_, errs := Normalize(payload)
		require.Len(t, errs, 1, tc.raw)
		assert.Equal(t, tc.want, errs[0].Reason, tc.raw)
	}
}

func TestNormalizeReportsViolationsInOrder(t *testing.T) {
	payload := decode(t, `{"TransID":"  ","OrgAccountBalance":"x"}`)
	_, errs := Normalize(payload)

	require.Len(t, errs, 4)
	assert.Equal(t, []string{
		domain.FieldTransID,
		domain.FieldTransAmount,
		domain.FieldBillRefNumber,
		domain.FieldOrgAccountBalance,
	}, errs.Fields())
	assert.Equal(t,
		"TransID: This field may not be blank.; TransAmount: This field is required.; BillRefNumber: This field is required.; OrgAccountBalance: A valid number is required.",
		errs.Error(),
	)
}

func TestNormalizeNullAndNonScalar(t *testing.T) {
	payload := decode(t, `{"TransID":null,"TransAmount":"1","BillRefNumber":{"a":1}}`)
	_, errs := Normalize(payload)
	require.Len(t, errs, 2)
	assert.Equal(t, domain.ReasonNull, errs[0].Reason)
	assert.Equal(t, domain.ReasonInvalidString, errs[1].Reason)
}

func TestNormalizeNumericIdentifiers(t *testing.T) {
	payload := decode(t, `{"TransID":12345,"TransAmount":"1","BillRefNumber":600000}`)
	rec, errs := Normalize(payload)
	require.Empty(t, errs)
	assert.Equal(t, "12345", rec.TransactionID)
	assert.Equal(t, "600000", rec.AccountNumber)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	payload := decode(t, `{"TransID":"X1","TransAmount":"10.00","BillRefNumber":"600000","MSISDN":"254712345678","FirstName":"a"}`)
	first, errs := Normalize(payload)
	require.Empty(t, errs)
	second, errs := Normalize(payload)
	require.Empty(t, errs)
	assert.Equal(t, first, second)
}

func TestBillRef(t *testing.T) {
	ref, errs := BillRef(decode(t, `{"BillRefNumber":" 600000 "}`))
	require.Empty(t, errs)
	assert.Equal(t, "600000", ref)

	_, errs = BillRef(decode(t, `{}`))
	require.Len(t, errs, 1)
	assert.Equal(t, "BillRefNumber: This field is required.", errs.Error())
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
