package clobengine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/polyterm/clob-engine-go/chain"
)

// orderPoster is the slice of the API client the pipeline needs for writes
type orderPoster interface {
	PostOrder(ctx context.Context, creds *ApiCredentials, signed *chain.SignedOrder, lifetime OrderLifetime, spec OrderSpec) (*SubmitResult, error)
}

// Pipeline turns a validated order spec into a signed, submitted order:
// network check, credential readiness, typed-data build, wallet signature,
// submission, post-success cleanup. Steps are strictly sequential within one
// order.
type Pipeline struct {
	api       orderPoster
	signer    chain.WalletSigner
	creds     *CredentialManager
	builder   *chain.OrderBuilder
	audit     *AuditClient
	readiness *Readiness
	logger    *zap.Logger

	chainID    *big.Int
	feeRateBps int64

	// onSuccess runs after a confirmed submission: the engine clears the
	// input form and invalidates its open-order cache here.
	onSuccess func(spec OrderSpec, result *SubmitResult)
}

// PipelineConfig wires a Pipeline
type PipelineConfig struct {
	API        orderPoster
	Signer     chain.WalletSigner
	Creds      *CredentialManager
	Builder    *chain.OrderBuilder
	Audit      *AuditClient
	Readiness  *Readiness
	Logger     *zap.Logger
	ChainID    ChainID
	FeeRateBps int64
	OnSuccess  func(spec OrderSpec, result *SubmitResult)
}

// NewPipeline creates the submission pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	readiness := cfg.Readiness
	if readiness == nil {
		readiness = NewReadiness()
		readiness.Ready()
	}
	return &Pipeline{
		api:        cfg.API,
		signer:     cfg.Signer,
		creds:      cfg.Creds,
		builder:    cfg.Builder,
		audit:      cfg.Audit,
		readiness:  readiness,
		logger:     logger,
		chainID:    big.NewInt(int64(cfg.ChainID)),
		feeRateBps: cfg.FeeRateBps,
		onSuccess:  cfg.OnSuccess,
	}
}

// Submit executes the full pipeline for one order. Any failure aborts with
// no partial state left in flight; the caller may retry from scratch.
func (p *Pipeline) Submit(ctx context.Context, spec OrderSpec) (*SubmitResult, error) {
	if err := p.ensureChain(ctx); err != nil {
		return nil, err
	}

	// Wait out any in-progress client reinitialization, then make sure
	// credentials exist before asking the wallet for a signature.
	if err := p.readiness.Await(ctx); err != nil {
		return nil, err
	}
	creds, err := p.creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	signed, err := p.sign(ctx, spec)
	if err != nil {
		return nil, err
	}

	result, err := p.api.PostOrder(ctx, creds, signed, spec.Lifetime, spec)
	if err != nil {
		return nil, err
	}

	p.logger.Info("order submitted",
		zap.String("order_id", result.OrderID),
		zap.String("status", result.Status),
		zap.String("token_id", spec.TokenID),
		zap.String("side", spec.Side.String()),
		zap.String("lifetime", spec.Lifetime.String()),
	)

	if p.onSuccess != nil {
		p.onSuccess(spec, result)
	}
	p.notifyAudit(spec, result)

	return result, nil
}

// ensureChain verifies the wallet network, requesting a switch when it is
// wrong. The switch is asynchronous: the result is re-verified, and a still
// mismatched chain aborts the attempt with no side effects.
func (p *Pipeline) ensureChain(ctx context.Context) error {
	current, err := p.signer.ChainID(ctx)
	if err != nil {
		return &SubmissionError{Op: "read wallet chain", Err: err}
	}
	if current.Cmp(p.chainID) == 0 {
		return nil
	}

	if err := p.signer.SwitchChain(ctx, p.chainID); err != nil {
		return fmt.Errorf("%w: switch to chain %s failed: %v", ErrWrongChain, p.chainID, err)
	}

	current, err = p.signer.ChainID(ctx)
	if err != nil {
		return &SubmissionError{Op: "re-read wallet chain", Err: err}
	}
	if current.Cmp(p.chainID) != 0 {
		return fmt.Errorf("%w: wallet still on chain %s after switch", ErrWrongChain, current)
	}
	return nil
}

// sign builds the typed order and obtains the wallet signature. This is the
// only step that suspends on user interaction.
func (p *Pipeline) sign(ctx context.Context, spec OrderSpec) (*chain.SignedOrder, error) {
	side := chain.SideBuy
	if spec.Side == SideSell {
		side = chain.SideSell
	}

	signed, err := p.builder.BuildSigned(ctx, chain.OrderParams{
		TokenID:    spec.TokenID,
		Side:       side,
		Price:      spec.Price,
		Size:       spec.Size,
		Expiration: spec.Expiration,
		FeeRateBps: p.feeRateBps,
	})
	if err != nil {
		return nil, err
	}
	return signed, nil
}

// notifyAudit posts the executed order to the audit backend asynchronously.
// Audit failure never affects the trade's success state.
func (p *Pipeline) notifyAudit(spec OrderSpec, result *SubmitResult) {
	if p.audit == nil {
		return
	}
	summary := ExecutedOrder{
		OrderID:   result.OrderID,
		TokenID:   spec.TokenID,
		Side:      spec.Side.String(),
		Price:     spec.Price,
		Size:      spec.Size,
		Lifetime:  spec.Lifetime.String(),
		Timestamp: time.Now().Unix(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		p.audit.Notify(ctx, []ExecutedOrder{summary})
	}()
}
