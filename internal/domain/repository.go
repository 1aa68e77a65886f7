package domain

import "context"

// FxRateCache stores the last accepted rate per directional pair key.
// Implementations must be safe for concurrent use.
type FxRateCache interface {
	Get(ctx context.Context, key string) (FxRate, bool)
	Save(ctx context.Context, key string, rate FxRate) error
	Clear(ctx context.Context) error
	Len() int
}
