package cache

import (
	"context"
	"time"

	"glowbooks/backend/internal/domain"
)

// CashSummaryCache holds the recomputed cash balance between reads. Every
// write that touches revenue, income, or withdrawals must invalidate it;
// correctness is always defined by full recomputation, the cache only skips
// redundant history scans.
type CashSummaryCache interface {
	Get(ctx context.Context, key string) (*domain.CashSummary, bool, error)
	Set(ctx context.Context, key string, value *domain.CashSummary, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopCashSummaryCache struct{}

func (NoopCashSummaryCache) Get(_ context.Context, _ string) (*domain.CashSummary, bool, error) {
	return nil, false, nil
}

func (NoopCashSummaryCache) Set(_ context.Context, _ string, _ *domain.CashSummary, _ time.Duration) error {
	return nil
}

func (NoopCashSummaryCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
