package clobengine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyterm/clob-engine-go/chain"
)

func l2Creds() *ApiCredentials {
	return &ApiCredentials{
		Key:        "key-1",
		Secret:     base64.URLEncoding.EncodeToString([]byte("hmac-secret")),
		Passphrase: "pass-1",
	}
}

func signedTestOrder(t *testing.T, signer chain.WalletSigner, price, size float64) *chain.SignedOrder {
	t.Helper()
	b := chain.NewOrderBuilder(common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"), big.NewInt(137), signer)
	signed, err := b.BuildSigned(context.Background(), chain.OrderParams{
		TokenID: "123456",
		Side:    chain.SideBuy,
		Price:   price,
		Size:    size,
	})
	require.NoError(t, err)
	return signed
}

func TestGetOrderBookSortsAndCaches(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		assert.Equal(t, "123", r.URL.Query().Get("token_id"))
		// Deliberately unsorted.
		json.NewEncoder(w).Encode(orderBookJSON{
			AssetID: "123",
			Asks:    []bookLevelJSON{{Price: "0.52", Size: "40"}, {Price: "0.50", Size: "40"}, {Price: "0.51", Size: "40"}},
			Bids:    []bookLevelJSON{{Price: "0.47", Size: "10"}, {Price: "0.49", Size: "10"}},
		})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, nil, 5*time.Second, time.Minute, nil)

	book, err := c.GetOrderBook(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, book.Asks, 3)
	assert.Equal(t, 0.50, book.Asks[0].Price)
	assert.Equal(t, 0.52, book.Asks[2].Price)
	assert.Equal(t, 0.49, book.Bids[0].Price)

	// Within the cache TTL the server is not consulted again.
	_, err = c.GetOrderBook(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestGetLastTradePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/last-trade-price", r.URL.Path)
		assert.Equal(t, "123", r.URL.Query().Get("token_id"))
		json.NewEncoder(w).Encode(map[string]string{"price": "0.47"})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, nil, 5*time.Second, 0, nil)
	price, err := c.GetLastTradePrice(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, 0.47, price)
}

func TestDeriveCredentialsSendsWalletAuthHeaders(t *testing.T) {
	signer := &fakeWalletSigner{addr: common.HexToAddress("0xAb"), chainID: big.NewInt(137)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/derive-api-key", r.URL.Path)
		assert.Equal(t, signer.addr.Hex(), r.Header.Get("POLY_ADDRESS"))
		assert.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		json.NewEncoder(w).Encode(ApiCredentials{Key: "k", Secret: "s", Passphrase: "p"})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, signer, 5*time.Second, 0, nil)
	creds, err := c.DeriveCredentials(context.Background())
	require.NoError(t, err)
	assert.True(t, creds.Complete())
}

func TestPostOrderSendsHMACHeadersAndOmitsAmountForResting(t *testing.T) {
	signer := &fakeWalletSigner{addr: common.HexToAddress("0xAb"), chainID: big.NewInt(137)}

	var got orderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("POLY_API_KEY"))
		assert.Equal(t, "pass-1", r.Header.Get("POLY_PASSPHRASE"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		assert.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(orderResponseJSON{Success: true, OrderID: "ord-1", Status: "live"})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, signer, 5*time.Second, 0, nil)
	spec := OrderSpec{TokenID: "123456", Side: SideBuy, Lifetime: LifetimeGTC, Price: 0.47, Size: 10}

	result, err := c.PostOrder(context.Background(), l2Creds(), signedTestOrder(t, signer, 0.47, 10), LifetimeGTC, spec)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", result.OrderID)
	assert.Equal(t, "GTC", got.OrderType)
	assert.Empty(t, got.Amount)
	assert.Equal(t, "key-1", got.Owner)
}

func TestPostOrderImmediateAmounts(t *testing.T) {
	signer := &fakeWalletSigner{addr: common.HexToAddress("0xAb"), chainID: big.NewInt(137)}

	var got orderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(orderResponseJSON{Success: true, OrderID: "ord-2", Status: "matched"})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, signer, 5*time.Second, 0, nil)

	// Marketable BUY carries the dollar cost.
	buy := OrderSpec{TokenID: "123456", Side: SideBuy, Lifetime: LifetimeFAK, Price: 0.47, Size: 10}
	_, err := c.PostOrder(context.Background(), l2Creds(), signedTestOrder(t, signer, 0.47, 10), LifetimeFAK, buy)
	require.NoError(t, err)
	assert.Equal(t, "FAK", got.OrderType)
	assert.Equal(t, "4.70", got.Amount)

	// Marketable SELL carries the share size.
	sell := OrderSpec{TokenID: "123456", Side: SideSell, Lifetime: LifetimeFAK, Price: 0.47, Size: 10}
	_, err = c.PostOrder(context.Background(), l2Creds(), signedTestOrder(t, signer, 0.47, 10), LifetimeFAK, sell)
	require.NoError(t, err)
	assert.Equal(t, "10.0000", got.Amount)
}

func TestPostOrderRejection(t *testing.T) {
	signer := &fakeWalletSigner{addr: common.HexToAddress("0xAb"), chainID: big.NewInt(137)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderResponseJSON{Success: false, ErrorMsg: "not enough balance"})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, signer, 5*time.Second, 0, nil)
	spec := OrderSpec{TokenID: "123456", Side: SideBuy, Lifetime: LifetimeGTC, Price: 0.47, Size: 10}

	_, err := c.PostOrder(context.Background(), l2Creds(), signedTestOrder(t, signer, 0.47, 10), LifetimeGTC, spec)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Contains(t, subErr.Error(), "not enough balance")
}

func TestPostOrderIncompleteCredentials(t *testing.T) {
	c := NewAPIClient("http://unused", nil, time.Second, 0, nil)
	spec := OrderSpec{TokenID: "123456", Side: SideBuy, Lifetime: LifetimeGTC, Price: 0.47, Size: 10}

	_, err := c.PostOrder(context.Background(), &ApiCredentials{Key: "k"}, nil, LifetimeGTC, spec)
	require.ErrorIs(t, err, ErrCredentialsUnavailable)
}

func TestGetBalance(t *testing.T) {
	signer := &fakeWalletSigner{addr: common.HexToAddress("0xAb"), chainID: big.NewInt(137)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balance", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"balance": "125.50"})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, signer, 5*time.Second, 0, nil)
	balance, err := c.GetBalance(context.Background(), l2Creds())
	require.NoError(t, err)
	assert.Equal(t, 125.50, balance)
}

func TestGetOpenOrdersPaginates(t *testing.T) {
	signer := &fakeWalletSigner{addr: common.HexToAddress("0xAb"), chainID: big.NewInt(137)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		page := r.URL.Query().Get("page")

		// Page 1 is full, page 2 is short, so the client stops after two.
		n := 20
		if page == "2" {
			n = 5
		}
		orders := make([]OpenOrder, n)
		for i := range orders {
			orders[i] = OpenOrder{OrderID: "ord-" + page}
		}
		json.NewEncoder(w).Encode(orders)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, signer, 5*time.Second, 0, nil)
	orders, err := c.GetOpenOrders(context.Background(), l2Creds(), "")
	require.NoError(t, err)
	assert.Len(t, orders, 25)
	assert.Equal(t, "ord-1", orders[0].OrderID)
	assert.Equal(t, "ord-2", orders[24].OrderID)
}

func TestGetOpenOrders(t *testing.T) {
	signer := &fakeWalletSigner{addr: common.HexToAddress("0xAb"), chainID: big.NewInt(137)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "123", r.URL.Query().Get("asset_id"))
		json.NewEncoder(w).Encode([]OpenOrder{
			{OrderID: "ord-1", TokenID: "123", Side: "BUY", Price: "0.47", OriginalSize: "10"},
		})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, signer, 5*time.Second, 0, nil)
	orders, err := c.GetOpenOrders(context.Background(), l2Creds(), "123")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ord-1", orders[0].OrderID)
}
