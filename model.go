package clobengine

import (
	"fmt"
	"time"
)

// Side represents the side of an order
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "SELL"
	}
	return "BUY"
}

// ExecutionType represents how an order executes
type ExecutionType int

const (
	ExecutionLimit ExecutionType = iota
	ExecutionMarket
)

// AmountMode represents how the user expressed order size
type AmountMode int

const (
	AmountShares AmountMode = iota
	AmountDollars
)

// OrderLifetime represents how long an order rests on the book
type OrderLifetime int

const (
	LifetimeGTC OrderLifetime = iota // good-till-cancelled
	LifetimeGTD                      // good-till-date
	LifetimeFOK                      // fill-or-kill
	LifetimeFAK                      // fill-and-kill
)

// APIValue returns the wire representation of the lifetime. The switch is
// exhaustive over the closed set so a new lifetime is a compile-visible change.
func (l OrderLifetime) APIValue() (string, error) {
	switch l {
	case LifetimeGTC:
		return "GTC", nil
	case LifetimeGTD:
		return "GTD", nil
	case LifetimeFOK:
		return "FOK", nil
	case LifetimeFAK:
		return "FAK", nil
	default:
		return "", fmt.Errorf("unknown order lifetime: %d", int(l))
	}
}

// Immediate reports whether the lifetime is immediate-or-cancel rather than resting.
func (l OrderLifetime) Immediate() bool {
	switch l {
	case LifetimeFOK, LifetimeFAK:
		return true
	default:
		return false
	}
}

func (l OrderLifetime) String() string {
	s, err := l.APIValue()
	if err != nil {
		return "UNKNOWN"
	}
	return s
}

// OutcomeOption is one tradable outcome of a binary market, derived fresh
// from the market snapshot. Quote fields are nil when the book has no
// resting orders on that side.
type OutcomeOption struct {
	Label          string
	TokenID        string
	LastTradePrice *float64
	BestBid        *float64
	BestAsk        *float64
}

// OrderIntent is the user-entered trade intent for one in-progress form.
// Expiration is only meaningful for GTD orders; the zero value means no
// expiration was chosen.
type OrderIntent struct {
	Side          Side
	ExecutionType ExecutionType
	AmountMode    AmountMode
	Price         float64
	Shares        float64
	DollarAmount  float64
	Lifetime      OrderLifetime
	Expiration    time.Time
}

// MarketRules holds the per-market order constraints
type MarketRules struct {
	TickSize         float64
	MinSize          float64
	ExpirationBuffer time.Duration
}

// DefaultMarketRules returns the rules applied when the market does not
// override them.
func DefaultMarketRules() MarketRules {
	return MarketRules{
		TickSize:         0.01,
		MinSize:          1,
		ExpirationBuffer: 90 * time.Second,
	}
}

// OrderSpec is a canonical, validated order ready for signing and submission
type OrderSpec struct {
	TokenID    string
	Side       Side
	Lifetime   OrderLifetime
	Price      float64
	Size       float64
	Expiration int64 // unix seconds, 0 for non-GTD orders
}

// Cost returns the collateral cost of the order (price x size).
func (s OrderSpec) Cost() float64 {
	return s.Price * s.Size
}

// Validation is the outcome of checking an order against market rules.
// Failures block submission but never raise errors; the UI renders Reasons.
type Validation struct {
	CanSubmit bool
	Reasons   []string
}

// DepthEstimate is the advisory fill preview for a market order, recomputed
// whenever outcome, side, or size changes. Actual fills may differ at
// submission time.
type DepthEstimate struct {
	RequestedSize         float64
	FillableSize          float64
	EstimatedAveragePrice float64
	EstimatedTotalValue   float64
	InsufficientLiquidity bool
}

// ApiCredentials are the L2 API credentials derived for a wallet address
type ApiCredentials struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Complete reports whether all three credential fields are present.
func (c *ApiCredentials) Complete() bool {
	return c != nil && c.Key != "" && c.Secret != "" && c.Passphrase != ""
}

// BatchEntryState tracks a queued order through submission
type BatchEntryState int

const (
	BatchStateQueued BatchEntryState = iota
	BatchStateSubmitting
	BatchStateFilled
	BatchStateFailed
)

// PreparedBatchOrder is a validated order held in the batch queue until
// submission or removal.
type PreparedBatchOrder struct {
	ID      string
	Spec    OrderSpec
	Summary string
	State   BatchEntryState
}

// SubmitResult is the CLOB's acknowledgement of a submitted order
type SubmitResult struct {
	OrderID     string   `json:"orderId"`
	Status      string   `json:"status"`
	OrderHashes []string `json:"orderHashes"`
}

// BatchEntryResult reports the outcome for one entry of a batch submission
type BatchEntryResult struct {
	ID      string
	Success bool
	Result  *SubmitResult
	Err     error
}

// BatchResult aggregates a batch submission
type BatchResult struct {
	Succeeded int
	Failed    int
	Results   []BatchEntryResult
}

// CancelResult reports the outcome of cancelling one order within a batch
// or cancel-all operation.
type CancelResult struct {
	OrderID string
	Success bool
	Err     error
}

// BookLevel is a single price level of the order book
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook holds both sides of a token's book. Asks are sorted ascending
// and bids descending, best price first.
type OrderBook struct {
	TokenID   string
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp time.Time
}

// ExecutedOrder is the summary sent to the audit backend after a successful
// submission.
type ExecutedOrder struct {
	OrderID   string  `json:"order_id"`
	TokenID   string  `json:"token_id"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Lifetime  string  `json:"lifetime"`
	Timestamp int64   `json:"timestamp"`
}
