// Package notification tells account contacts about recorded payments.
package notification

import (
	"context"
	"errors"
	"fmt"

	directorydomain "github.com/smallbiznis/payrelay/internal/directory/domain"
	obslogger "github.com/smallbiznis/payrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/payment/format"
	"github.com/smallbiznis/payrelay/internal/providers/sms"
	"go.uber.org/zap"
)

var (
	ErrUnknownAccount = errors.New("notification_unknown_account")
	ErrNoContacts     = errors.New("notification_no_contacts")
)

type Dispatcher struct {
	directory directorydomain.Service
	sender    sms.Provider
	log       *zap.Logger
	metrics   *obsmetrics.Metrics
}

func NewDispatcher(directory directorydomain.Service, sender sms.Provider, log *zap.Logger, metrics *obsmetrics.Metrics) *Dispatcher {
	return &Dispatcher{
		directory: directory,
		sender:    sender,
		log:       log.Named("notification.dispatcher"),
		metrics:   metrics,
	}
}

// Notify reports whether every contact of the paid account was messaged.
func (d *Dispatcher) Notify(ctx context.Context, rec paymentdomain.PaymentRecord) bool {
	return d.Deliver(ctx, rec) == nil
}

// Deliver sends one message per contact. Sends are independent; the
// returned error joins every failed send.
func (d *Dispatcher) Deliver(ctx context.Context, rec paymentdomain.PaymentRecord) error {
	log := d.log.With(
		zap.String("trans_id", rec.TransactionID),
		zap.String("account_number", rec.AccountNumber),
	)

	account, ok := d.directory.Resolve(ctx, rec.AccountNumber)
	if !ok {
		log.Warn("notification skipped, account not in directory")
		return ErrUnknownAccount
	}
	if len(account.ContactPhones) == 0 {
		log.Warn("notification skipped, account has no contacts", zap.String("team", account.TeamName))
		return ErrNoContacts
	}

	message := BuildMessage(rec)
	var errs []error
	sent := 0
	for _, phone := range account.ContactPhones {
		err := d.sender.Send(ctx, phone, message)
		d.metrics.RecordSMSSend(ctx, d.sender.Name(), err == nil)
		if err != nil {
			log.Error("sms send failed",
				obslogger.Recipient(phone),
				zap.String("provider", d.sender.Name()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("send to %s: %w", format.Phone(phone), err))
			continue
		}
		sent++
	}

	log.Info("notification delivered",
		zap.String("team", account.TeamName),
		zap.Int("sent", sent),
		zap.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}
