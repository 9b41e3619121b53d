package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) (*OrderBuilder, *PrivateKeySigner) {
	t.Helper()
	signer, err := NewPrivateKeySigner(testKey, big.NewInt(137))
	require.NoError(t, err)
	b := NewOrderBuilder(common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"), big.NewInt(137), signer)
	return b, signer
}

func TestBuildBuyAmounts(t *testing.T) {
	b, signer := newTestBuilder(t)

	order, err := b.Build(OrderParams{
		TokenID: "777",
		Side:    SideBuy,
		Price:   0.47,
		Size:    10,
	})
	require.NoError(t, err)

	// BUY: maker pays collateral cost, taker delivers shares.
	assert.Equal(t, "4700000", order.MakerAmount.String())
	assert.Equal(t, "10000000", order.TakerAmount.String())
	assert.Equal(t, signer.Address(), order.Maker)
	assert.Equal(t, signer.Address(), order.Signer)
	assert.Equal(t, common.Address{}, order.Taker)
}

func TestBuildSellAmountsSwapped(t *testing.T) {
	b, _ := newTestBuilder(t)

	order, err := b.Build(OrderParams{
		TokenID: "777",
		Side:    SideSell,
		Price:   0.47,
		Size:    10,
	})
	require.NoError(t, err)

	assert.Equal(t, "10000000", order.MakerAmount.String())
	assert.Equal(t, "4700000", order.TakerAmount.String())
}

func TestBuildMakerOverride(t *testing.T) {
	b, signer := newTestBuilder(t)
	funder := common.HexToAddress("0x3333333333333333333333333333333333333333")

	order, err := b.Build(OrderParams{
		TokenID:       "777",
		Side:          SideBuy,
		Price:         0.5,
		Size:          2,
		Maker:         funder,
		SignatureType: SignatureTypeProxy,
	})
	require.NoError(t, err)
	assert.Equal(t, funder, order.Maker)
	assert.Equal(t, signer.Address(), order.Signer)
}

func TestBuildRejectsBadParams(t *testing.T) {
	b, _ := newTestBuilder(t)

	_, err := b.Build(OrderParams{TokenID: "not-a-number", Side: SideBuy, Price: 0.5, Size: 1})
	assert.Error(t, err)

	_, err = b.Build(OrderParams{TokenID: "777", Side: SideBuy, Price: 0, Size: 1})
	assert.Error(t, err)

	_, err = b.Build(OrderParams{TokenID: "777", Side: SideBuy, Price: 1, Size: 1})
	assert.Error(t, err)

	_, err = b.Build(OrderParams{TokenID: "777", Side: SideBuy, Price: 0.5, Size: 0})
	assert.Error(t, err)
}

func TestBuildSignedProducesUniqueSalts(t *testing.T) {
	b, _ := newTestBuilder(t)

	p := OrderParams{TokenID: "777", Side: SideBuy, Price: 0.47, Size: 10}
	first, err := b.BuildSigned(context.Background(), p)
	require.NoError(t, err)
	second, err := b.BuildSigned(context.Background(), p)
	require.NoError(t, err)

	assert.NotEqual(t, first.Order.Salt.String(), second.Order.Salt.String())
	assert.Len(t, first.Signature, 65)
}

func TestOrderJSONRoundTrip(t *testing.T) {
	b, _ := newTestBuilder(t)

	signed, err := b.BuildSigned(context.Background(), OrderParams{
		TokenID: "777",
		Side:    SideSell,
		Price:   0.47,
		Size:    10,
	})
	require.NoError(t, err)

	j := signed.JSON()
	assert.Equal(t, "SELL", j.Side)
	assert.Equal(t, "777", j.TokenID)
	assert.Equal(t, "10000000", j.MakerAmount)
	assert.Equal(t, "4700000", j.TakerAmount)
	assert.Equal(t, 0, j.SignatureType)
	assert.Contains(t, j.Signature, "0x")
}
