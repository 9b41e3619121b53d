package chain

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// collateralDecimals is the fixed-point scale of both the collateral token
// and the outcome tokens.
const collateralDecimals = 6

// OrderBuilder assembles and signs protocol orders for one exchange contract.
type OrderBuilder struct {
	domain *Domain
	signer WalletSigner
}

// NewOrderBuilder binds a builder to an exchange contract, chain, and wallet.
func NewOrderBuilder(exchangeAddr common.Address, chainID *big.Int, signer WalletSigner) *OrderBuilder {
	return &OrderBuilder{
		domain: NewDomain(chainID, exchangeAddr),
		signer: signer,
	}
}

// OrderParams is the validated order content handed down by the engine.
// Price is in (0,1) collateral per share; Size is in shares.
type OrderParams struct {
	TokenID    string
	Side       Side
	Price      float64
	Size       float64
	Expiration int64
	Nonce      int64
	FeeRateBps int64
	// Maker overrides the funding address when trading through a proxy
	// wallet; zero value means the signer funds its own orders.
	Maker         common.Address
	SignatureType SignatureType
}

// Build converts validated parameters into a protocol order. For a BUY the
// maker amount is the collateral cost and the taker amount the share count;
// a SELL swaps them.
func (b *OrderBuilder) Build(p OrderParams) (*Order, error) {
	tokenID, ok := new(big.Int).SetString(p.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid token id %q", p.TokenID)
	}
	if p.Price <= 0 || p.Price >= 1 {
		return nil, fmt.Errorf("price %v out of range (0,1)", p.Price)
	}
	if p.Size <= 0 {
		return nil, fmt.Errorf("size %v must be positive", p.Size)
	}

	shares := toUnits(decimal.NewFromFloat(p.Size))
	cost := toUnits(decimal.NewFromFloat(p.Size).Mul(decimal.NewFromFloat(p.Price)))

	makerAmount, takerAmount := cost, shares
	if p.Side == SideSell {
		makerAmount, takerAmount = shares, cost
	}

	maker := p.Maker
	if maker == (common.Address{}) {
		maker = b.signer.Address()
	}

	return &Order{
		Salt:          generateSalt(),
		Maker:         maker,
		Signer:        b.signer.Address(),
		Taker:         common.Address{}, // open order, anyone may fill
		TokenID:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    big.NewInt(p.Expiration),
		Nonce:         big.NewInt(p.Nonce),
		FeeRateBps:    big.NewInt(p.FeeRateBps),
		Side:          p.Side,
		SignatureType: p.SignatureType,
	}, nil
}

// BuildSigned builds the order and obtains the wallet signature over its
// EIP-712 digest. The call suspends while the wallet prompt is open.
func (b *OrderBuilder) BuildSigned(ctx context.Context, p OrderParams) (*SignedOrder, error) {
	order, err := b.Build(p)
	if err != nil {
		return nil, err
	}

	sig, err := b.signer.SignDigest(ctx, SigningDigest(b.domain, order))
	if err != nil {
		return nil, err
	}

	return &SignedOrder{Order: order, Signature: sig}, nil
}

// toUnits scales a human amount to integer token units, truncating any
// precision beyond the token's decimals.
func toUnits(v decimal.Decimal) *big.Int {
	return v.Shift(collateralDecimals).Truncate(0).BigInt()
}

func generateSalt() *big.Int {
	salt := new(big.Int).Mul(big.NewInt(time.Now().UnixMilli()), big.NewInt(1_000_000))
	return salt.Add(salt, big.NewInt(rand.Int63n(1_000_000)))
}
