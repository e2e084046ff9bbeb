package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/payrelay/internal/cache"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/directory/domain"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	"go.uber.org/zap"
)

// Options wires the directory service. Remote may be nil.
type Options struct {
	Remote  domain.Source
	Local   domain.Source
	Config  config.DirectoryConfig
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics
}

type Service struct {
	remote     domain.Source
	local      domain.Source
	remoteData *cache.Value[[]domain.Account]
	timeout    time.Duration
	log        *zap.Logger
	metrics    *obsmetrics.Metrics
}

func New(opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		remote:  opts.Remote,
		local:   opts.Local,
		timeout: opts.Config.Timeout,
		log:     log.Named("directory.service"),
		metrics: opts.Metrics,
	}
	if s.remote != nil {
		s.remoteData = cache.NewValue(opts.Config.CacheTTL, opts.Clock, s.fetchRemote)
	}
	return s
}

// ListAccounts returns the merged directory. The remote table is primary;
// declared local-only accounts are appended. An unreachable remote falls
// back to the local source alone.
func (s *Service) ListAccounts(ctx context.Context) []domain.Account {
	local := s.localAccounts(ctx)
	if s.remoteData == nil {
		return local
	}

	remote, err := s.remoteData.Get(ctx)
	if err != nil {
		s.log.Warn("remote directory unavailable, using local accounts",
			zap.String("source", s.remote.Name()),
			zap.Int("local_accounts", len(local)),
			zap.Error(err),
		)
		return local
	}
	return Merge(remote, declaredOnly(local))
}

func (s *Service) IsValid(ctx context.Context, accountNumber string) bool {
	_, ok := s.Resolve(ctx, accountNumber)
	return ok
}

func (s *Service) Resolve(ctx context.Context, accountNumber string) (domain.Account, bool) {
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return domain.Account{}, false
	}
	for _, acc := range s.ListAccounts(ctx) {
		if acc.AccountNumber == accountNumber {
			return acc, true
		}
	}
	return domain.Account{}, false
}

// Refresh drops the cached remote table so the next lookup refetches it.
func (s *Service) Refresh() {
	if s.remoteData != nil {
		s.remoteData.Invalidate()
	}
}

func (s *Service) fetchRemote(ctx context.Context) ([]domain.Account, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	accounts, err := s.remote.Accounts(ctx)
	s.metrics.RecordAccountLoad(ctx, s.remote.Name(), err == nil)
	if err != nil {
		return nil, err
	}
	s.log.Debug("remote directory fetched",
		zap.String("source", s.remote.Name()),
		zap.Int("accounts", len(accounts)),
	)
	return accounts, nil
}

func (s *Service) localAccounts(ctx context.Context) []domain.Account {
	if s.local == nil {
		return nil
	}
	accounts, err := s.local.Accounts(ctx)
	if err != nil {
		s.log.Warn("local directory unavailable", zap.Error(err))
		return nil
	}
	return accounts
}

// declaredOnly drops the built-in sandbox accounts, which stand in only
// when no remote table is reachable.
func declaredOnly(accounts []domain.Account) []domain.Account {
	out := make([]domain.Account, 0, len(accounts))
	for _, acc := range accounts {
		if acc.Source == domain.SourceBuiltin {
			continue
		}
		out = append(out, acc)
	}
	return out
}

// Merge keeps every primary account and appends fallback accounts whose
// number the primary does not list.
func Merge(primary, fallback []domain.Account) []domain.Account {
	merged := make([]domain.Account, 0, len(primary)+len(fallback))
	seen := make(map[string]struct{}, len(primary)+len(fallback))
	for _, list := range [][]domain.Account{primary, fallback} {
		for _, acc := range list {
			if _, ok := seen[acc.AccountNumber]; ok {
				continue
			}
			seen[acc.AccountNumber] = struct{}{}
			merged = append(merged, acc)
		}
	}
	return merged
}

var _ domain.Service = (*Service)(nil)
