package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-712 domain constants for the CTF exchange
const (
	DomainName    = "CTF Exchange"
	DomainVersion = "1"
)

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	domainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	// Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)
	orderTypeHash = crypto.Keccak256Hash([]byte(
		"Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)",
	))

	bytes32Type, _ = abi.NewType("bytes32", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	addressType, _ = abi.NewType("address", "", nil)
	uint8Type, _   = abi.NewType("uint8", "", nil)
)

// Domain binds signatures to one exchange contract on one chain
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewDomain creates the EIP-712 domain for the given chain and exchange contract.
func NewDomain(chainID *big.Int, verifyingContract common.Address) *Domain {
	return &Domain{ChainID: chainID, VerifyingContract: verifyingContract}
}

// Separator computes the EIP-712 domain separator hash.
func (d *Domain) Separator() common.Hash {
	args := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: addressType}, // verifyingContract
	}

	encoded, err := args.Pack(
		domainTypeHash,
		crypto.Keccak256Hash([]byte(DomainName)),
		crypto.Keccak256Hash([]byte(DomainVersion)),
		d.ChainID,
		d.VerifyingContract,
	)
	if err != nil {
		panic("encode domain separator: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// StructHash computes the EIP-712 struct hash of the order.
func (o *Order) StructHash() common.Hash {
	args := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: uint256Type}, // salt
		{Type: addressType}, // maker
		{Type: addressType}, // signer
		{Type: addressType}, // taker
		{Type: uint256Type}, // tokenId
		{Type: uint256Type}, // makerAmount
		{Type: uint256Type}, // takerAmount
		{Type: uint256Type}, // expiration
		{Type: uint256Type}, // nonce
		{Type: uint256Type}, // feeRateBps
		{Type: uint8Type},   // side
		{Type: uint8Type},   // signatureType
	}

	encoded, err := args.Pack(
		orderTypeHash,
		o.Salt,
		o.Maker,
		o.Signer,
		o.Taker,
		o.TokenID,
		o.MakerAmount,
		o.TakerAmount,
		o.Expiration,
		o.Nonce,
		o.FeeRateBps,
		uint8(o.Side),
		uint8(o.SignatureType),
	)
	if err != nil {
		panic("encode order struct: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// SigningDigest computes the final digest the wallet signs:
// keccak256("\x19\x01" || domainSeparator || structHash).
func SigningDigest(domain *Domain, order *Order) common.Hash {
	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domain.Separator().Bytes()...)
	data = append(data, order.StructHash().Bytes()...)
	return crypto.Keccak256Hash(data)
}
