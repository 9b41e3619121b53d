package clobengine

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/polyterm/clob-engine-go/chain"
)

// Engine is the trade-intent-to-signed-order pipeline exposed to the rest of
// the application: build+validate an order with live price and depth
// feedback, submit it, or accumulate orders in the batch queue.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	api       *APIClient
	resolver  *PriceResolver
	depth     *DepthEstimator
	builder   *OrderBuilder
	creds     *CredentialManager
	pipeline  *Pipeline
	batch     *BatchQueue
	readiness *Readiness
	signer    chain.WalletSigner

	mu         sync.Mutex
	openOrders []OpenOrder
	ordersOK   bool

	// orderPlaced lets the UI clear its input form after a confirmed
	// submission.
	orderPlaced func(OrderSpec, *SubmitResult)
}

// NewEngine wires the engine for one wallet session. The optional store
// persists credentials across reloads.
func NewEngine(cfg Config, signer chain.WalletSigner, store CredentialStore, logger *zap.Logger) (*Engine, error) {
	cfg.applyDefaults()
	if signer == nil {
		return nil, &InvalidParamError{Message: "wallet signer is required"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	supported := false
	for _, id := range SupportedChainIDs {
		if cfg.ChainID == id {
			supported = true
			break
		}
	}
	if !supported {
		return nil, &InvalidParamError{Message: fmt.Sprintf("chain_id must be one of %v", SupportedChainIDs)}
	}

	api := NewAPIClient(cfg.Host, signer, cfg.HTTPTimeout, cfg.BookCacheTTL, logger)
	if store == nil {
		store = NewMemoryCredentialStore(cfg.CredentialTTL)
	}
	creds := NewCredentialManager(api, store, logger)

	orderBuilder := chain.NewOrderBuilder(
		common.HexToAddress(cfg.ExchangeAddr),
		big.NewInt(int64(cfg.ChainID)),
		signer,
	)

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		api:       api,
		resolver:  NewPriceResolver(logger),
		depth:     NewDepthEstimator(api),
		builder:   NewOrderBuilder(cfg.Rules),
		creds:     creds,
		readiness: NewReadiness(),
		signer:    signer,
	}

	e.pipeline = NewPipeline(PipelineConfig{
		API:        api,
		Signer:     signer,
		Creds:      creds,
		Builder:    orderBuilder,
		Audit:      NewAuditClient(cfg.AuditEndpoint, cfg.HTTPTimeout, logger),
		Readiness:  e.readiness,
		Logger:     logger,
		ChainID:    cfg.ChainID,
		FeeRateBps: cfg.FeeRateBps,
		OnSuccess:  e.handleOrderPlaced,
	})
	e.batch = NewBatchQueue(cfg.BatchCapacity, e.pipeline.Submit, logger)

	return e, nil
}

// SetOrderPlacedHook registers a callback invoked after every confirmed
// submission, on the submitting goroutine.
func (e *Engine) SetOrderPlacedHook(fn func(OrderSpec, *SubmitResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orderPlaced = fn
}

// ConnectWallet starts a session for the signer's address: credentials are
// scoped to it and warmed up in the background. Callers of Submit* await
// readiness implicitly.
func (e *Engine) ConnectWallet(ctx context.Context) {
	e.readiness.Reset()
	e.creds.SetAddress(e.signer.Address().Hex())
	e.creds.WarmUp(ctx)
	e.invalidateOpenOrders()
	e.readiness.Ready()
}

// DisconnectWallet ends the session and drops its credentials.
func (e *Engine) DisconnectWallet() {
	e.readiness.Reset()
	e.creds.Disconnect()
	e.invalidateOpenOrders()
}

// Preview is the reactive view backing the order form: resolved price,
// depth estimate for market orders, the canonical spec, and its validation
// state.
type Preview struct {
	Spec          OrderSpec
	Validation    Validation
	ResolvedPrice *float64
	Depth         *DepthEstimate
}

// CanSubmit reports whether the previewed order may be submitted.
func (p Preview) CanSubmit() bool { return p.Validation.CanSubmit }

// BuildOrder turns intent for one outcome into a previewed, validated order.
// Market orders consult live depth for the reference price; limit orders use
// the entered price. Validation failures land in the preview, not in err —
// err is reserved for transport problems reading the book.
func (e *Engine) BuildOrder(ctx context.Context, outcome OutcomeOption, intent OrderIntent, balance *float64) (Preview, error) {
	var preview Preview

	contextKey := outcome.TokenID + "/" + outcome.Label
	preview.ResolvedPrice = e.resolver.Resolve(contextKey, outcome.BestBid, outcome.BestAsk, outcome.LastTradePrice)

	reference := preview.ResolvedPrice
	if intent.ExecutionType == ExecutionMarket {
		size := intent.Shares
		if intent.AmountMode == AmountDollars && preview.ResolvedPrice != nil && *preview.ResolvedPrice > 0 {
			size = intent.DollarAmount / *preview.ResolvedPrice
		}
		if size > 0 {
			est, err := e.depth.Estimate(ctx, outcome.TokenID, intent.Side, size)
			if err != nil {
				return preview, err
			}
			preview.Depth = &est
			if est.EstimatedAveragePrice > 0 {
				reference = &est.EstimatedAveragePrice
			}
		}
	}

	preview.Spec, preview.Validation = e.builder.Build(BuildInput{
		Intent:         intent,
		TokenID:        outcome.TokenID,
		ReferencePrice: reference,
		Balance:        balance,
	})
	return preview, nil
}

// SubmitOrder signs and submits a single validated order.
func (e *Engine) SubmitOrder(ctx context.Context, preview Preview) (*SubmitResult, error) {
	if !preview.Validation.CanSubmit {
		return nil, &ValidationError{Reasons: preview.Validation.Reasons}
	}
	return e.pipeline.Submit(ctx, preview.Spec)
}

// QueueOrder adds a validated order to the batch queue.
func (e *Engine) QueueOrder(preview Preview) (*PreparedBatchOrder, error) {
	return e.batch.Add(preview.Spec, preview.Validation)
}

// RemoveQueued drops a queued order by id.
func (e *Engine) RemoveQueued(id string) bool { return e.batch.Remove(id) }

// SubmitQueued submits every queued order concurrently.
func (e *Engine) SubmitQueued(ctx context.Context) (BatchResult, error) {
	return e.batch.SubmitAll(ctx)
}

// ClearQueue discards all queued orders without submitting.
func (e *Engine) ClearQueue() { e.batch.Clear() }

// QueuedOrders returns a snapshot of the batch queue.
func (e *Engine) QueuedOrders() []PreparedBatchOrder { return e.batch.Entries() }

// Stream creates a market-data stream sharing the engine's logger. The
// caller owns its lifecycle; book and trade updates feed BuildOrder's
// outcome quotes.
func (e *Engine) Stream(cfg StreamConfig) *MarketStream {
	if cfg.Logger == nil {
		cfg.Logger = e.logger
	}
	return NewMarketStream(cfg)
}

// DepthFor previews the market-order fill for a size without building a
// full order.
func (e *Engine) DepthFor(ctx context.Context, tokenID string, side Side, size float64) (DepthEstimate, error) {
	return e.depth.Estimate(ctx, tokenID, side, size)
}

// OpenOrders lists the wallet's resting orders, cached until a submission
// invalidates it.
func (e *Engine) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	e.mu.Lock()
	if e.ordersOK {
		cached := e.openOrders
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	creds, err := e.creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := e.api.GetOpenOrders(ctx, creds, "")
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.openOrders = orders
	e.ordersOK = true
	e.mu.Unlock()
	return orders, nil
}

// Balance fetches the wallet's available collateral, used by the UI for the
// BUY-side balance gate.
func (e *Engine) Balance(ctx context.Context) (float64, error) {
	creds, err := e.creds.Credentials(ctx)
	if err != nil {
		return 0, err
	}
	return e.api.GetBalance(ctx, creds)
}

// CancelOrder cancels a resting order and invalidates the open-order cache.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	creds, err := e.creds.Credentials(ctx)
	if err != nil {
		return err
	}
	if err := e.api.CancelOrder(ctx, creds, orderID); err != nil {
		return err
	}
	e.invalidateOpenOrders()
	return nil
}

// CancelOrders cancels a set of resting orders, one result per id. Each
// cancel is attempted regardless of earlier failures.
func (e *Engine) CancelOrders(ctx context.Context, orderIDs []string) ([]CancelResult, error) {
	if len(orderIDs) == 0 {
		return nil, &InvalidParamError{Message: "order id list cannot be empty"}
	}
	creds, err := e.creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]CancelResult, 0, len(orderIDs))
	for _, id := range orderIDs {
		if err := e.api.CancelOrder(ctx, creds, id); err != nil {
			results = append(results, CancelResult{OrderID: id, Err: err})
		} else {
			results = append(results, CancelResult{OrderID: id, Success: true})
		}
	}
	e.invalidateOpenOrders()
	return results, nil
}

// CancelAllOrders pages through the wallet's resting orders and cancels
// each, optionally filtered to one token. Pagination happens inside the
// open-orders read.
func (e *Engine) CancelAllOrders(ctx context.Context, tokenID string) ([]CancelResult, error) {
	creds, err := e.creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := e.api.GetOpenOrders(ctx, creds, tokenID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.OrderID)
	}
	return e.CancelOrders(ctx, ids)
}

func (e *Engine) handleOrderPlaced(spec OrderSpec, result *SubmitResult) {
	e.invalidateOpenOrders()

	e.mu.Lock()
	hook := e.orderPlaced
	e.mu.Unlock()
	if hook != nil {
		hook(spec, result)
	}
}

func (e *Engine) invalidateOpenOrders() {
	e.mu.Lock()
	e.openOrders = nil
	e.ordersOK = false
	e.mu.Unlock()
}
