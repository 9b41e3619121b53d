// Example usage of the CLOB order engine
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/joho/godotenv"

	clobengine "github.com/polyterm/clob-engine-go"
	"github.com/polyterm/clob-engine-go/chain"
)

func main() {
	// Optional .env with CLOB_HOST / PRIVATE_KEY / AUDIT_ENDPOINT
	_ = godotenv.Load()

	logger := clobengine.NewLogger("logs", os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	signer, err := chain.NewPrivateKeySigner(
		os.Getenv("PRIVATE_KEY"), // Replace with actual private key
		big.NewInt(int64(clobengine.ChainIDPolygon)),
	)
	if err != nil {
		log.Fatalf("Failed to create signer: %v", err)
	}

	store, err := clobengine.NewSQLiteCredentialStore("credentials.db", 24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to open credential store: %v", err)
	}

	engine, err := clobengine.NewEngine(clobengine.Config{
		Host:          os.Getenv("CLOB_HOST"), // Replace with actual API host
		AuditEndpoint: os.Getenv("AUDIT_ENDPOINT"),
		ChainID:       clobengine.ChainIDPolygon,
	}, signer, store, logger)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	ctx := context.Background()
	engine.ConnectWallet(ctx)
	defer engine.DisconnectWallet()

	outcome := clobengine.OutcomeOption{
		Label:   "YES",
		TokenID: "1234567890", // Replace with actual token ID
		BestBid: fptr(0.46),
		BestAsk: fptr(0.48),
	}

	// Example: preview and submit a single limit order
	fmt.Println("Building limit order...")
	preview, err := engine.BuildOrder(ctx, outcome, clobengine.OrderIntent{
		Side:          clobengine.SideBuy,
		ExecutionType: clobengine.ExecutionLimit,
		AmountMode:    clobengine.AmountShares,
		Price:         0.47,
		Shares:        10,
		Lifetime:      clobengine.LifetimeGTC,
	}, nil)
	if err != nil {
		log.Fatalf("Failed to build order: %v", err)
	}
	if !preview.CanSubmit() {
		log.Fatalf("Order not submittable: %v", preview.Validation.Reasons)
	}

	result, err := engine.SubmitOrder(ctx, preview)
	if err != nil {
		log.Printf("Failed to submit order: %v", err)
	} else {
		fmt.Printf("Order placed: %s (status %s)\n", result.OrderID, result.Status)
	}

	// Example: market-order depth preview
	fmt.Println("\nEstimating market depth...")
	depth, err := engine.DepthFor(ctx, outcome.TokenID, clobengine.SideBuy, 100)
	if err != nil {
		log.Printf("Failed to estimate depth: %v", err)
	} else {
		fmt.Printf("Fillable %.2f of 100 at avg %.4f\n", depth.FillableSize, depth.EstimatedAveragePrice)
	}

	// Example: queue a couple of orders and submit the batch
	fmt.Println("\nQueueing batch...")
	for _, price := range []float64{0.45, 0.46} {
		p, err := engine.BuildOrder(ctx, outcome, clobengine.OrderIntent{
			Side:          clobengine.SideBuy,
			ExecutionType: clobengine.ExecutionLimit,
			AmountMode:    clobengine.AmountShares,
			Price:         price,
			Shares:        5,
			Lifetime:      clobengine.LifetimeGTC,
		}, nil)
		if err != nil {
			log.Fatalf("Failed to build order: %v", err)
		}
		if _, err := engine.QueueOrder(p); err != nil {
			log.Printf("Failed to queue order: %v", err)
		}
	}

	batch, err := engine.SubmitQueued(ctx)
	if err != nil {
		log.Printf("Batch finished with failures: %v", err)
	}
	fmt.Printf("Batch: %d succeeded, %d failed\n", batch.Succeeded, batch.Failed)

	// Example: list resting orders
	orders, err := engine.OpenOrders(ctx)
	if err != nil {
		log.Printf("Failed to list open orders: %v", err)
	} else {
		for _, o := range orders {
			fmt.Printf("Open: %s %s %s @ %s\n", o.OrderID, o.Side, o.OriginalSize, o.Price)
		}
	}
}

func fptr(v float64) *float64 { return &v }
