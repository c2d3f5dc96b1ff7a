package trialbalance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/medledger-hq/medledger/internal/accounting/fiscalyears"
	"github.com/medledger-hq/medledger/internal/accounting/shared"
	"github.com/medledger-hq/medledger/internal/observability"
)

const cacheTTL = 5 * time.Minute

// YearSource resolves financial years for report scoping.
type YearSource interface {
	Get(ctx context.Context, id int64) (fiscalyears.FinancialYear, error)
}

// Service generates trial balances. Results are cached in Redis and
// concurrent requests for the same report collapse into one build.
type Service struct {
	logger *slog.Logger
	repo   Repository
	years  YearSource
	cache  *redis.Client
	group  singleflight.Group
	now    func() time.Time
}

func NewService(logger *slog.Logger, repo Repository, years YearSource, cache *redis.Client) *Service {
	return &Service{logger: logger, repo: repo, years: years, cache: cache, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Generate builds the trial balance for a financial year as of the
// given date. A zero AsOf means the year's end date. An out-of-balance
// report is returned as-is with IsBalanced false; the imbalance is an
// integrity incident, not a user error.
func (s *Service) Generate(ctx context.Context, q Query) (TrialBalance, error) {
	year, err := s.years.Get(ctx, q.FinancialYearID)
	if err != nil {
		return TrialBalance{}, err
	}
	if q.AsOf.IsZero() {
		q.AsOf = year.EndDate
	}
	if !year.Contains(q.AsOf) {
		return TrialBalance{}, fmt.Errorf("%w: as-of %s outside %s..%s", shared.ErrDateOutOfPeriod,
			q.AsOf.Format("2006-01-02"), year.StartDate.Format("2006-01-02"), year.EndDate.Format("2006-01-02"))
	}

	key := fmt.Sprintf("medledger:tb:%d:%s:%t:%t",
		q.FinancialYearID, q.AsOf.Format("2006-01-02"), q.ExcludeZero, q.GroupByType)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		return s.build(ctx, year, q, key)
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return result.(TrialBalance), nil
}

func (s *Service) build(ctx context.Context, year fiscalyears.FinancialYear, q Query, key string) (TrialBalance, error) {
	activities, err := s.repo.Activities(ctx, year.StartDate, q.AsOf)
	if err != nil {
		return TrialBalance{}, err
	}

	tb := Build(activities, q)
	tb.FinancialYearID = year.ID
	tb.AsOf = q.AsOf
	tb.GeneratedAt = s.now().UTC()

	switch {
	case !tb.IsBalanced:
		observability.IntegrityFailures.Inc()
		s.logger.Error("trial balance out of balance",
			slog.Int64("financial_year_id", year.ID),
			slog.String("as_of", q.AsOf.Format("2006-01-02")),
			slog.String("total_debit", tb.TotalDebit.String()),
			slog.String("total_credit", tb.TotalCredit.String()),
			slog.String("difference", tb.Difference.String()))
	case !tb.Difference.IsZero():
		// Within tolerance but not exact: rounding noise from imported
		// data, worth a trace but not an incident.
		s.logger.Warn("trial balance rounding drift",
			slog.Int64("financial_year_id", year.ID),
			slog.String("difference", tb.Difference.String()))
	}

	s.toCache(ctx, key, tb)
	return tb, nil
}

func (s *Service) fromCache(ctx context.Context, key string) (TrialBalance, bool) {
	if s.cache == nil {
		return TrialBalance{}, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return TrialBalance{}, false
	}
	var tb TrialBalance
	if err := json.Unmarshal(raw, &tb); err != nil {
		s.logger.Warn("discard corrupt trial balance cache entry", slog.String("key", key), slog.Any("error", err))
		s.cache.Del(ctx, key)
		return TrialBalance{}, false
	}
	return tb, true
}

func (s *Service) toCache(ctx context.Context, key string, tb TrialBalance) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(tb)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		s.logger.Warn("cache trial balance", slog.String("key", key), slog.Any("error", err))
	}
}
