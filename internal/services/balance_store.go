package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"khoroch/internal/core"
	"khoroch/internal/log"
	"khoroch/internal/storage"
)

// DefaultTrendMonths is the length of the analysis series.
const DefaultTrendMonths = 12

// trendConcurrency caps parallel month aggregations in GetTrend.
const trendConcurrency = 4

// BalanceStore computes income/expense/balance totals from transaction rows.
// It keeps the last monthly summary it computed.
type BalanceStore struct {
	repo  *storage.Repository
	group singleflight.Group

	mu      sync.Mutex
	seq     uint64
	summary core.MonthlySummary

	// trendStarted runs at the start of a shared trend computation; tests
	// use it to hold the computation open.
	trendStarted func()
}

func NewBalanceStore(repo *storage.Repository) *BalanceStore {
	return &BalanceStore{repo: repo}
}

// GetSummary aggregates month from scratch and stores the result. When
// calls overlap, only the most recently issued one updates Summary.
func (s *BalanceStore) GetSummary(ctx context.Context, month core.Month) (core.MonthlySummary, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	summary, err := s.monthSummary(ctx, s.repo.Queries(), month)
	if err != nil {
		return core.MonthlySummary{}, err
	}

	s.mu.Lock()
	if seq == s.seq {
		s.summary = summary
	} else {
		log.For(ctx, log.ComponentBalance).DebugContext(ctx, "Discarding superseded summary",
			log.FieldMonth, month.String(),
			log.FieldSequence, seq)
	}
	s.mu.Unlock()

	return summary, nil
}

func (s *BalanceStore) monthSummary(ctx context.Context, q *storage.Queries, month core.Month) (core.MonthlySummary, error) {
	start, end := month.Bounds()
	income, expense, err := q.SumByTypeBetween(ctx, start, end)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("summarize %s: %w", month, err)
	}
	return core.MonthlySummary{Month: month, Totals: core.NewTotals(income, expense)}, nil
}

// Summary returns the last summary computed by GetSummary.
func (s *BalanceStore) Summary() core.MonthlySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// GetTrend returns one summary per month for the months ending at through,
// oldest first. Identical concurrent requests share a single computation,
// which keeps running when the caller that started it goes away.
func (s *BalanceStore) GetTrend(ctx context.Context, through core.Month, months int) ([]core.MonthlySummary, error) {
	if months <= 0 {
		months = DefaultTrendMonths
	}
	loc := "UTC"
	if through.Loc != nil {
		loc = through.Loc.String()
	}
	key := fmt.Sprintf("%s/%d/%s", through, months, loc)

	// The shared computation must not die with whichever caller started it;
	// each caller still stops waiting when its own ctx is done.
	ch := s.group.DoChan(key, func() (any, error) {
		return s.trend(context.WithoutCancel(ctx), through, months)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	shared := res.Val.([]core.MonthlySummary)
	out := make([]core.MonthlySummary, len(shared))
	copy(out, shared)
	return out, nil
}

func (s *BalanceStore) trend(ctx context.Context, through core.Month, months int) ([]core.MonthlySummary, error) {
	if s.trendStarted != nil {
		s.trendStarted()
	}
	out := make([]core.MonthlySummary, months)
	q := s.repo.Queries()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(trendConcurrency)
	for i := 0; i < months; i++ {
		i := i
		month := through.AddMonths(i - months + 1)
		g.Go(func() error {
			summary, err := s.monthSummary(gctx, q, month)
			if err != nil {
				return err
			}
			out[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute trend: %w", err)
	}
	return out, nil
}

// GetWalletSummary totals all income and expense booked on walletID.
// Transfers are not counted.
func (s *BalanceStore) GetWalletSummary(ctx context.Context, walletID int64) (core.Totals, error) {
	income, expense, err := s.repo.Queries().SumByTypeForWallet(ctx, walletID)
	if err != nil {
		return core.Totals{}, err
	}
	return core.NewTotals(income, expense), nil
}

// GetOverallSummary totals all income and expense across wallets.
func (s *BalanceStore) GetOverallSummary(ctx context.Context) (core.Totals, error) {
	income, expense, err := s.repo.Queries().SumByType(ctx)
	if err != nil {
		return core.Totals{}, err
	}
	return core.NewTotals(income, expense), nil
}
