package cache

import (
	"context"
	"time"

	"xiaomupos/backend/internal/domain"
)

// CommodityCache fronts the catalog lookup path. Barcode scans are the
// hottest query in the system, so resolved records are cached with a
// short TTL.
type CommodityCache interface {
	Get(ctx context.Context, barcode string) (*domain.CommodityRecord, bool, error)
	Set(ctx context.Context, barcode string, value *domain.CommodityRecord, ttl time.Duration) error
	Invalidate(ctx context.Context, barcode string) error
}

type NoopCommodityCache struct{}

func (NoopCommodityCache) Get(_ context.Context, _ string) (*domain.CommodityRecord, bool, error) {
	return nil, false, nil
}

func (NoopCommodityCache) Set(_ context.Context, _ string, _ *domain.CommodityRecord, _ time.Duration) error {
	return nil
}

func (NoopCommodityCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
