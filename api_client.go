package clobengine

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/polyterm/clob-engine-go/chain"
)

// APIClient is the HTTP client for the CLOB's read and write surface.
// Reads (book, prices) are unauthenticated; credential endpoints use L1
// wallet-signature headers and order writes use L2 HMAC headers.
type APIClient struct {
	host   string
	client *http.Client
	signer chain.WalletSigner
	logger *zap.Logger

	bookCacheTTL time.Duration
	bookCache    map[string]cachedBook
	bookMu       sync.RWMutex
}

type cachedBook struct {
	book *OrderBook
	at   time.Time
}

// NewAPIClient creates a CLOB API client. The signer provides L1
// authentication for credential derivation; it may be nil for read-only use.
func NewAPIClient(host string, signer chain.WalletSigner, timeout, bookCacheTTL time.Duration, logger *zap.Logger) *APIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIClient{
		host:         host,
		signer:       signer,
		logger:       logger,
		client:       &http.Client{Timeout: timeout},
		bookCacheTTL: bookCacheTTL,
		bookCache:    make(map[string]cachedBook),
	}
}

// bookLevelJSON is a book level as the CLOB serves it, prices as strings
type bookLevelJSON struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type orderBookJSON struct {
	AssetID string          `json:"asset_id"`
	Bids    []bookLevelJSON `json:"bids"`
	Asks    []bookLevelJSON `json:"asks"`
}

// GetOrderBook fetches the current book for a token, asks sorted ascending
// and bids descending. Responses are cached briefly so reactive depth
// re-estimation does not hammer the endpoint.
func (c *APIClient) GetOrderBook(ctx context.Context, tokenID string) (*OrderBook, error) {
	if tokenID == "" {
		return nil, &InvalidParamError{Message: "token_id is required"}
	}

	c.bookMu.RLock()
	if entry, ok := c.bookCache[tokenID]; ok && time.Since(entry.at) < c.bookCacheTTL {
		c.bookMu.RUnlock()
		return entry.book, nil
	}
	c.bookMu.RUnlock()

	q := url.Values{}
	q.Set("token_id", tokenID)

	var raw orderBookJSON
	if err := c.getJSON(ctx, "/book?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	book := &OrderBook{
		TokenID:   tokenID,
		Bids:      parseLevels(raw.Bids),
		Asks:      parseLevels(raw.Asks),
		Timestamp: time.Now(),
	}
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })

	if c.bookCacheTTL > 0 {
		c.bookMu.Lock()
		c.bookCache[tokenID] = cachedBook{book: book, at: time.Now()}
		c.bookMu.Unlock()
	}
	return book, nil
}

func parseLevels(raw []bookLevelJSON) []BookLevel {
	levels := make([]BookLevel, 0, len(raw))
	for _, l := range raw {
		price, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(l.Size, 64)
		if err != nil {
			continue
		}
		levels = append(levels, BookLevel{Price: price, Size: size})
	}
	return levels
}

// GetLastTradePrice fetches the most recent trade price for a token.
func (c *APIClient) GetLastTradePrice(ctx context.Context, tokenID string) (float64, error) {
	if tokenID == "" {
		return 0, &InvalidParamError{Message: "token_id is required"}
	}
	q := url.Values{}
	q.Set("token_id", tokenID)

	var out struct {
		Price string `json:"price"`
	}
	if err := c.getJSON(ctx, "/last-trade-price?"+q.Encode(), &out); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(out.Price, 64)
}

// DeriveCredentials re-derives existing API credentials from the wallet's
// signature via the key-derivation endpoint.
func (c *APIClient) DeriveCredentials(ctx context.Context) (*ApiCredentials, error) {
	return c.credentialRequest(ctx, http.MethodGet, "/auth/derive-api-key", nil)
}

// CreateCredentials registers fresh API credentials for the wallet.
func (c *APIClient) CreateCredentials(ctx context.Context) (*ApiCredentials, error) {
	body := map[string]int64{"nonce": time.Now().UnixNano()}
	return c.credentialRequest(ctx, http.MethodPost, "/auth/api-key", body)
}

func (c *APIClient) credentialRequest(ctx context.Context, method, path string, body interface{}) (*ApiCredentials, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if err := c.setL1Headers(ctx, req); err != nil {
		return nil, err
	}

	var creds ApiCredentials
	if err := c.do(req, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// setL1Headers attaches the wallet-signature authentication used by the
// credential endpoints.
func (c *APIClient) setL1Headers(ctx context.Context, req *http.Request) error {
	if c.signer == nil {
		return fmt.Errorf("no wallet signer configured")
	}
	address := c.signer.Address().Hex()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	message := fmt.Sprintf("%s:%s:%s %s", address, timestamp, req.Method, req.URL.Path)
	sig, err := c.signer.SignMessage(ctx, []byte(message))
	if err != nil {
		return fmt.Errorf("sign auth message: %w", err)
	}

	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_SIGNATURE", "0x"+common.Bytes2Hex(sig))
	return nil
}

// orderRequest is the submission payload wrapping a signed order
type orderRequest struct {
	Order     chain.OrderJSON `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"`
	Amount    string          `json:"amount,omitempty"`
}

type orderResponseJSON struct {
	Success     bool     `json:"success"`
	ErrorMsg    string   `json:"errorMsg"`
	OrderID     string   `json:"orderId"`
	OrderHashes []string `json:"orderHashes"`
	Status      string   `json:"status"`
}

// PostOrder submits a signed order under the given lifetime. Resting
// lifetimes (GTC/GTD) go up as-is; immediate lifetimes (FOK/FAK) carry the
// marketable amount: dollars for a BUY, shares for a SELL.
func (c *APIClient) PostOrder(ctx context.Context, creds *ApiCredentials, signed *chain.SignedOrder, lifetime OrderLifetime, spec OrderSpec) (*SubmitResult, error) {
	if !creds.Complete() {
		return nil, ErrCredentialsUnavailable
	}

	apiValue, err := lifetime.APIValue()
	if err != nil {
		return nil, &InvalidParamError{Message: err.Error()}
	}

	payload := orderRequest{
		Order:     signed.JSON(),
		Owner:     creds.Key,
		OrderType: apiValue,
	}
	if lifetime.Immediate() {
		if spec.Side == SideBuy {
			payload.Amount = strconv.FormatFloat(spec.Cost(), 'f', 2, 64)
		} else {
			payload.Amount = strconv.FormatFloat(spec.Size, 'f', 4, 64)
		}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/order", payload)
	if err != nil {
		return nil, err
	}
	if err := c.setL2Headers(req, creds, payload); err != nil {
		return nil, err
	}

	var out orderResponseJSON
	if err := c.do(req, &out); err != nil {
		return nil, &SubmissionError{Op: "submit order", Err: err}
	}
	if !out.Success {
		return nil, &SubmissionError{Op: "submit order", Err: fmt.Errorf("clob rejected order: %s", out.ErrorMsg)}
	}

	return &SubmitResult{OrderID: out.OrderID, Status: out.Status, OrderHashes: out.OrderHashes}, nil
}

// CancelOrder cancels a resting order by id.
func (c *APIClient) CancelOrder(ctx context.Context, creds *ApiCredentials, orderID string) error {
	if orderID == "" {
		return &InvalidParamError{Message: "order_id is required"}
	}
	body := map[string]string{"orderID": orderID}

	req, err := c.newRequest(ctx, http.MethodDelete, "/order", body)
	if err != nil {
		return err
	}
	if err := c.setL2Headers(req, creds, body); err != nil {
		return err
	}
	return c.do(req, nil)
}

// OpenOrder is one resting order as returned by the CLOB
type OpenOrder struct {
	OrderID      string `json:"id"`
	TokenID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
}

const (
	openOrdersPageLimit = 20
	openOrdersMaxPages  = 100 // safety bound against a runaway endpoint
)

// GetOpenOrders lists the wallet's resting orders, optionally filtered by
// token, paging through the endpoint until a short page.
func (c *APIClient) GetOpenOrders(ctx context.Context, creds *ApiCredentials, tokenID string) ([]OpenOrder, error) {
	var all []OpenOrder
	for page := 1; page <= openOrdersMaxPages; page++ {
		batch, err := c.getOpenOrdersPage(ctx, creds, tokenID, openOrdersPageLimit, page)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < openOrdersPageLimit {
			break
		}
	}
	return all, nil
}

func (c *APIClient) getOpenOrdersPage(ctx context.Context, creds *ApiCredentials, tokenID string, limit, page int) ([]OpenOrder, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	if tokenID != "" {
		q.Set("asset_id", tokenID)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/orders?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if err := c.setL2Headers(req, creds, nil); err != nil {
		return nil, err
	}

	var out []OpenOrder
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBalance fetches the wallet's available collateral balance.
func (c *APIClient) GetBalance(ctx context.Context, creds *ApiCredentials) (float64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/balance", nil)
	if err != nil {
		return 0, err
	}
	if err := c.setL2Headers(req, creds, nil); err != nil {
		return 0, err
	}

	var out struct {
		Balance string `json:"balance"`
	}
	if err := c.do(req, &out); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(out.Balance, 64)
}

// setL2Headers attaches the HMAC authentication used by trading endpoints:
// an URL-safe base64 HMAC-SHA256 over timestamp+method+path+body keyed by
// the credential secret.
func (c *APIClient) setL2Headers(req *http.Request, creds *ApiCredentials, body interface{}) error {
	if !creds.Complete() {
		return ErrCredentialsUnavailable
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	payload := timestamp + req.Method + req.URL.Path
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal signature payload: %w", err)
		}
		payload += string(raw)
	}

	secret, err := base64.URLEncoding.DecodeString(creds.Secret)
	if err != nil {
		return fmt.Errorf("decode credential secret: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	var address string
	if c.signer != nil {
		address = c.signer.Address().Hex()
	}
	req.Header.Set("POLY_API_KEY", creds.Key)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", creds.Passphrase)
	req.Header.Set("POLY_ADDRESS", address)
	return nil
}

// getJSON issues an unauthenticated GET and decodes the JSON response.
func (c *APIClient) getJSON(ctx context.Context, path string, result interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, result)
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do executes the request, checks the status, and decodes JSON into result
// when result is non-nil.
func (c *APIClient) do(req *http.Request, result interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := string(raw)
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		snippet := string(raw)
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return fmt.Errorf("decode response: %w (body: %s)", err, snippet)
	}
	return nil
}
