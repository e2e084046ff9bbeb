package sms

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured = errors.New("sms_not_configured")
	ErrInvalidPhone  = errors.New("sms_invalid_phone")
	ErrEmptyMessage  = errors.New("sms_empty_message")
)

//go:generate mockgen -source=provider.go -destination=mocks/mock_provider.go -package=mocks
type Provider interface {
	Name() string
	Send(ctx context.Context, phone string, message string) error
}

// NoOpProvider accepts every message without sending it.
type NoOpProvider struct{}

func (p *NoOpProvider) Name() string { return "noop" }

func (p *NoOpProvider) Send(ctx context.Context, phone string, message string) error {
	return nil
}
