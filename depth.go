package clobengine

import (
	"context"

	"github.com/shopspring/decimal"
)

// BookService reads current order-book depth for a token
type BookService interface {
	GetOrderBook(ctx context.Context, tokenID string) (*OrderBook, error)
}

// DepthEstimator previews how a market order would fill against the live
// book. Estimates are advisory only.
type DepthEstimator struct {
	books BookService
}

// NewDepthEstimator creates a DepthEstimator backed by the given book reader.
func NewDepthEstimator(books BookService) *DepthEstimator {
	return &DepthEstimator{books: books}
}

// Estimate walks the opposing side of the book in price-priority order,
// consuming levels until requestedSize is covered or liquidity runs out.
// Buys consume asks, sells consume bids.
func (e *DepthEstimator) Estimate(ctx context.Context, tokenID string, side Side, requestedSize float64) (DepthEstimate, error) {
	if tokenID == "" {
		return DepthEstimate{}, &InvalidParamError{Message: "token_id is required"}
	}
	if requestedSize <= 0 {
		return DepthEstimate{}, &InvalidParamError{Message: "requested size must be positive"}
	}

	book, err := e.books.GetOrderBook(ctx, tokenID)
	if err != nil {
		return DepthEstimate{}, err
	}

	levels := book.Asks
	if side == SideSell {
		levels = book.Bids
	}

	return EstimateAgainstLevels(levels, requestedSize), nil
}

// EstimateAgainstLevels computes the fill preview against already-sorted
// levels (best price first). Exposed for callers holding a book from the
// market stream.
func EstimateAgainstLevels(levels []BookLevel, requestedSize float64) DepthEstimate {
	remaining := decimal.NewFromFloat(requestedSize)
	filled := decimal.Zero
	value := decimal.Zero

	for _, lvl := range levels {
		if remaining.IsZero() {
			break
		}
		take := decimal.NewFromFloat(lvl.Size)
		if take.GreaterThan(remaining) {
			take = remaining
		}
		filled = filled.Add(take)
		value = value.Add(take.Mul(decimal.NewFromFloat(lvl.Price)))
		remaining = remaining.Sub(take)
	}

	est := DepthEstimate{
		RequestedSize: requestedSize,
		FillableSize:  filled.InexactFloat64(),
	}
	if filled.IsPositive() {
		est.EstimatedAveragePrice = value.Div(filled).InexactFloat64()
		est.EstimatedTotalValue = value.InexactFloat64()
	}
	est.InsufficientLiquidity = filled.LessThan(decimal.NewFromFloat(requestedSize))
	return est
}
