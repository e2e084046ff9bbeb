package domain

import (
	"context"

	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
)

// Result is the fixed-shape body the gateway expects on every callback.
type Result struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

const (
	CodeAccepted = 0
	CodeRejected = 1
)

const (
	DescAccepted         = "Accepted"
	ReasonInvalidJSON    = "Invalid JSON"
	ReasonDuplicate      = "Duplicate transaction"
	ReasonInvalidAccount = "Invalid account"
)

func Accepted() Result {
	return Result{ResultCode: CodeAccepted, ResultDesc: DescAccepted}
}

func Rejected(reason string) Result {
	return Result{ResultCode: CodeRejected, ResultDesc: "Rejected: " + reason}
}

func (r Result) IsAccepted() bool {
	return r.ResultCode == CodeAccepted
}

type Service interface {
	HandleCallback(ctx context.Context, body []byte) Result
	Validate(ctx context.Context, body []byte) Result
	// ForceWrite appends rec without validation or duplicate checks.
	ForceWrite(ctx context.Context, rec paymentdomain.PaymentRecord) (bool, paymentdomain.PaymentRecord)
}
