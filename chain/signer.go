package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSwitchUnsupported is returned by signers that cannot change networks
var ErrSwitchUnsupported = errors.New("chain switch not supported by this signer")

// WalletSigner abstracts the connected wallet. Implementations may suspend
// inside Sign* calls while the wallet owner approves or rejects the prompt;
// ctx cancellation abandons the wait.
type WalletSigner interface {
	// Address returns the wallet's account address.
	Address() common.Address

	// ChainID reports the network the wallet is currently on.
	ChainID(ctx context.Context) (*big.Int, error)

	// SwitchChain asks the wallet to move to the given network. The switch
	// is asynchronous on real wallets: callers must re-verify with ChainID
	// rather than assume success.
	SwitchChain(ctx context.Context, chainID *big.Int) error

	// SignDigest signs a 32-byte EIP-712 digest, returning a 65-byte
	// [R || S || V] signature with V in {27, 28}.
	SignDigest(ctx context.Context, digest common.Hash) ([]byte, error)

	// SignMessage signs an arbitrary message under EIP-191 personal-sign
	// rules. Used for the L1 credential-derivation handshake.
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// PrivateKeySigner is an in-process EOA wallet backed by a raw private key.
// It is pinned to a single chain and never prompts.
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address

	mu      sync.Mutex
	chainID *big.Int
}

// NewPrivateKeySigner parses a hex private key (with or without 0x prefix).
func NewPrivateKeySigner(hexKey string, chainID *big.Int) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
	}, nil
}

func (s *PrivateKeySigner) Address() common.Address {
	return s.address
}

func (s *PrivateKeySigner) ChainID(_ context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.chainID), nil
}

// SwitchChain moves the in-process signer immediately. Real wallet
// integrations return ErrSwitchUnsupported or prompt the user.
func (s *PrivateKeySigner) SwitchChain(_ context.Context, chainID *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainID = new(big.Int).Set(chainID)
	return nil
}

func (s *PrivateKeySigner) SignDigest(_ context.Context, digest common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	// Normalize recovery id to the Ethereum convention.
	sig[64] += 27
	return sig, nil
}

func (s *PrivateKeySigner) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(prefixed)), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
