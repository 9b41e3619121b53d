package clobengine

import (
	"fmt"
	"math"
	"time"
)

// tickTolerance absorbs binary floating-point noise when checking tick
// alignment, expressed as a fraction of one tick.
const tickTolerance = 1e-6

// OrderBuilder converts UI-level trade intent into a canonical, validated
// order specification.
type OrderBuilder struct {
	rules MarketRules
}

// NewOrderBuilder creates a builder bound to one market's rules.
func NewOrderBuilder(rules MarketRules) *OrderBuilder {
	def := DefaultMarketRules()
	if rules.TickSize <= 0 {
		rules.TickSize = def.TickSize
	}
	if rules.MinSize <= 0 {
		rules.MinSize = def.MinSize
	}
	if rules.ExpirationBuffer <= 0 {
		rules.ExpirationBuffer = def.ExpirationBuffer
	}
	return &OrderBuilder{rules: rules}
}

// BuildInput carries everything the builder needs beyond the intent itself.
type BuildInput struct {
	Intent  OrderIntent
	TokenID string

	// ReferencePrice is the resolved or depth-estimated price, used as the
	// execution price of market orders and the conversion price of
	// dollar-mode market sizing. Nil when no price could be resolved.
	ReferencePrice *float64

	// Balance gates BUY orders; nil skips the gate (SELL is never gated
	// client-side).
	Balance *float64

	Now time.Time
}

// Build produces the canonical order spec plus its validation state. The
// validation never errors out: failed checks land in Validation.Reasons and
// flip CanSubmit, leaving the spec displayable.
func (b *OrderBuilder) Build(in BuildInput) (OrderSpec, Validation) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	spec := OrderSpec{
		TokenID: in.TokenID,
		Side:    in.Intent.Side,
	}

	var v Validation
	v.CanSubmit = true
	fail := func(reason string) {
		v.CanSubmit = false
		v.Reasons = append(v.Reasons, reason)
	}

	// Execution price: limit orders trade at the entered price, market
	// orders float with the reference price.
	switch in.Intent.ExecutionType {
	case ExecutionLimit:
		spec.Price = in.Intent.Price
	case ExecutionMarket:
		if in.ReferencePrice != nil {
			spec.Price = *in.ReferencePrice
		} else {
			fail("no reference price available for market order")
		}
	}

	// Size resolution.
	switch in.Intent.AmountMode {
	case AmountShares:
		spec.Size = in.Intent.Shares
	case AmountDollars:
		if spec.Price > 0 {
			spec.Size = in.Intent.DollarAmount / spec.Price
		} else {
			fail("cannot size a dollar order without a conversion price")
		}
	}

	// Execution type decides the lifetime: market execution is always
	// fill-and-kill regardless of the UI toggle.
	switch in.Intent.ExecutionType {
	case ExecutionMarket:
		spec.Lifetime = LifetimeFAK
	case ExecutionLimit:
		if in.Intent.Lifetime == LifetimeGTD && !in.Intent.Expiration.IsZero() {
			spec.Lifetime = LifetimeGTD
			spec.Expiration = in.Intent.Expiration.Unix()
		} else {
			spec.Lifetime = LifetimeGTC
		}
	}

	// Independent validation checks; all of them run so the UI can show
	// every problem at once.
	if !(spec.Price > 0 && spec.Price < 1) {
		fail(fmt.Sprintf("price %v must be between 0 and 1 exclusive", spec.Price))
	}

	if in.Intent.ExecutionType == ExecutionLimit && spec.Price > 0 && !onTick(spec.Price, b.rules.TickSize) {
		fail(fmt.Sprintf("price %v is not a multiple of tick size %v", spec.Price, b.rules.TickSize))
	}

	if spec.Size < b.rules.MinSize {
		fail(fmt.Sprintf("size %v is below the minimum of %v", spec.Size, b.rules.MinSize))
	}

	if spec.Lifetime == LifetimeGTD {
		earliest := in.Now.Add(b.rules.ExpirationBuffer)
		if in.Intent.Expiration.Before(earliest) {
			fail(fmt.Sprintf("expiration must be at least %s from now", b.rules.ExpirationBuffer))
		}
	}

	if in.Intent.Side == SideBuy && in.Balance != nil && spec.Cost() > *in.Balance {
		fail(fmt.Sprintf("cost %.2f exceeds available balance %.2f", spec.Cost(), *in.Balance))
	}

	return spec, v
}

// onTick reports whether price is an integer multiple of tick within
// floating-point tolerance.
func onTick(price, tick float64) bool {
	if tick <= 0 {
		return true
	}
	ratio := price / tick
	return math.Abs(ratio-math.Round(ratio)) < tickTolerance
}
