package clobengine

import (
	"sync"

	"go.uber.org/zap"
)

// MaxTrustedSpread is the widest bid/ask spread for which the midpoint is
// still treated as a usable execution proxy. Beyond it the quoted market is
// too thin and the last trade price takes over.
const MaxTrustedSpread = 0.10

// PriceResolver computes the display/execution price for an outcome from
// best bid, best ask, and last trade price.
type PriceResolver struct {
	logger *zap.Logger
	warned sync.Map // context key -> struct{}
}

// NewPriceResolver creates a PriceResolver. A nil logger disables diagnostics.
func NewPriceResolver(logger *zap.Logger) *PriceResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceResolver{logger: logger}
}

// Resolve returns the price for an outcome, or nil when no price can be
// determined. contextKey identifies the market/outcome pair and scopes the
// at-most-once wide-spread diagnostic.
//
// When both quotes are valid and the spread is at most MaxTrustedSpread the
// midpoint wins. A wider spread falls back to the last trade price; missing
// or invalid quotes do the same.
func (r *PriceResolver) Resolve(contextKey string, bestBid, bestAsk, lastTrade *float64) *float64 {
	if bestBid != nil && bestAsk != nil && *bestBid > 0 && *bestAsk > 0 && *bestBid <= *bestAsk {
		spread := *bestAsk - *bestBid
		if spread <= MaxTrustedSpread {
			mid := (*bestBid + *bestAsk) / 2
			return &mid
		}
		if lastTrade != nil {
			v := *lastTrade
			return &v
		}
		r.warnOnce(contextKey, spread)
		return nil
	}

	if lastTrade != nil {
		v := *lastTrade
		return &v
	}
	return nil
}

// warnOnce logs the unresolvable-price condition at most once per context so
// reactive re-resolution does not flood the log.
func (r *PriceResolver) warnOnce(contextKey string, spread float64) {
	if _, seen := r.warned.LoadOrStore(contextKey, struct{}{}); seen {
		return
	}
	r.logger.Warn("no resolvable price: spread too wide and no last trade",
		zap.String("context", contextKey),
		zap.Float64("spread", spread),
	)
}
