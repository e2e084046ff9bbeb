package context

import "context"

type requestIDKey struct{}
type transactionIDKey struct{}

// WithRequestID stores the inbound request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithTransactionID tags the context with the gateway transaction being handled.
func WithTransactionID(ctx context.Context, transactionID string) context.Context {
	if transactionID == "" {
		return ctx
	}
	return context.WithValue(ctx, transactionIDKey{}, transactionID)
}

func TransactionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(transactionIDKey{}).(string)
	return value
}
