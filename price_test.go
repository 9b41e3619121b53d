package clobengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func fptr(v float64) *float64 { return &v }

func TestResolveMidpointWithinSpread(t *testing.T) {
	r := NewPriceResolver(nil)

	cases := []struct {
		bid, ask float64
		want     float64
	}{
		{0.45, 0.55, 0.50},
		{0.40, 0.50, 0.45},
		{0.50, 0.50, 0.50},
		{0.01, 0.11, 0.06},
	}

	for _, tc := range cases {
		got := r.Resolve("mkt-1/yes", fptr(tc.bid), fptr(tc.ask), fptr(0.99))
		require.NotNil(t, got, "bid=%v ask=%v", tc.bid, tc.ask)
		assert.InDelta(t, tc.want, *got, 1e-12)
	}
}

func TestResolveWideSpreadPrefersLastTrade(t *testing.T) {
	r := NewPriceResolver(nil)

	got := r.Resolve("mkt-1/yes", fptr(0.20), fptr(0.80), fptr(0.61))
	require.NotNil(t, got)
	assert.Equal(t, 0.61, *got)
	// Never the midpoint once the spread exceeds the threshold.
	assert.NotEqual(t, 0.50, *got)
}

func TestResolveWideSpreadNoLastTradeLogsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewPriceResolver(zap.New(core))

	got := r.Resolve("mkt-9/no", fptr(0.10), fptr(0.90), nil)
	assert.Nil(t, got)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "mkt-9/no", logs.All()[0].ContextMap()["context"])

	// Second resolution of the same context must not re-log.
	got = r.Resolve("mkt-9/no", fptr(0.10), fptr(0.90), nil)
	assert.Nil(t, got)
	assert.Equal(t, 1, logs.Len())

	// A different context logs again.
	r.Resolve("mkt-9/yes", fptr(0.10), fptr(0.90), nil)
	assert.Equal(t, 2, logs.Len())
}

func TestResolveInvalidQuotesFallBack(t *testing.T) {
	r := NewPriceResolver(nil)

	// Missing quotes.
	got := r.Resolve("k", nil, nil, fptr(0.42))
	require.NotNil(t, got)
	assert.Equal(t, 0.42, *got)

	// Crossed book is invalid.
	got = r.Resolve("k", fptr(0.60), fptr(0.40), fptr(0.42))
	require.NotNil(t, got)
	assert.Equal(t, 0.42, *got)

	// Non-positive quote is invalid.
	got = r.Resolve("k", fptr(0), fptr(0.40), nil)
	assert.Nil(t, got)

	// One-sided quote falls back too.
	got = r.Resolve("k", fptr(0.40), nil, nil)
	assert.Nil(t, got)
}
