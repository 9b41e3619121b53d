package clobengine

import "time"

// ChainID represents a blockchain chain ID
type ChainID int64

const (
	ChainIDPolygon ChainID = 137 // Polygon mainnet
	ChainIDAmoy    ChainID = 80002
)

// SupportedChainIDs lists all supported chain IDs
var SupportedChainIDs = []ChainID{ChainIDPolygon, ChainIDAmoy}

// ContractAddresses holds the exchange contract addresses for a chain
type ContractAddresses struct {
	Exchange   string
	Collateral string
}

// DefaultContractAddresses maps chain IDs to their contract addresses
var DefaultContractAddresses = map[ChainID]ContractAddresses{
	ChainIDPolygon: {
		Exchange:   "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
		Collateral: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
	},
	ChainIDAmoy: {
		Exchange:   "0xdFE02Eb6733538f8Ea35D585af8DE5958AD99E40",
		Collateral: "0x9c4e1703476e875070ee25b56a58b008cfb8fa78",
	},
}

// Config holds the engine configuration. Zero-valued fields fall back to
// defaults in NewEngine.
type Config struct {
	Host          string
	AuditEndpoint string
	ChainID       ChainID
	ExchangeAddr  string
	FeeRateBps    int64

	Rules MarketRules

	CredentialTTL time.Duration
	BookCacheTTL  time.Duration
	HTTPTimeout   time.Duration
	BatchCapacity int
}

func (c *Config) applyDefaults() {
	if c.ChainID == 0 {
		c.ChainID = ChainIDPolygon
	}
	if c.ExchangeAddr == "" {
		c.ExchangeAddr = DefaultContractAddresses[c.ChainID].Exchange
	}
	if c.Rules.TickSize == 0 {
		c.Rules.TickSize = DefaultMarketRules().TickSize
	}
	if c.Rules.MinSize == 0 {
		c.Rules.MinSize = DefaultMarketRules().MinSize
	}
	if c.Rules.ExpirationBuffer == 0 {
		c.Rules.ExpirationBuffer = DefaultMarketRules().ExpirationBuffer
	}
	if c.CredentialTTL == 0 {
		c.CredentialTTL = 24 * time.Hour
	}
	if c.BookCacheTTL == 0 {
		c.BookCacheTTL = time.Second
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.BatchCapacity == 0 {
		c.BatchCapacity = 15
	}
}
