package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Side is the protocol-level order side
type Side uint8

const (
	SideBuy  Side = 0
	SideSell Side = 1
)

// SignatureType tells the exchange how to verify the order signature
type SignatureType uint8

const (
	SignatureTypeEOA        SignatureType = 0
	SignatureTypeProxy      SignatureType = 1
	SignatureTypeGnosisSafe SignatureType = 2
)

// Order is the protocol order structure hashed and signed under EIP-712.
// Amounts are raw integer token units.
type Order struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          Side
	SignatureType SignatureType
}

// SignedOrder pairs an order with its EIP-712 signature
type SignedOrder struct {
	Order     *Order
	Signature []byte
}

// OrderJSON is the wire form submitted to the CLOB. Integer fields travel
// as decimal strings.
type OrderJSON struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// JSON converts a signed order to its wire form.
func (s *SignedOrder) JSON() OrderJSON {
	o := s.Order
	side := "BUY"
	if o.Side == SideSell {
		side = "SELL"
	}
	return OrderJSON{
		Salt:          o.Salt.String(),
		Maker:         o.Maker.Hex(),
		Signer:        o.Signer.Hex(),
		Taker:         o.Taker.Hex(),
		TokenID:       o.TokenID.String(),
		MakerAmount:   o.MakerAmount.String(),
		TakerAmount:   o.TakerAmount.String(),
		Expiration:    o.Expiration.String(),
		Nonce:         o.Nonce.String(),
		FeeRateBps:    o.FeeRateBps.String(),
		Side:          side,
		SignatureType: int(o.SignatureType),
		Signature:     "0x" + common.Bytes2Hex(s.Signature),
	}
}
