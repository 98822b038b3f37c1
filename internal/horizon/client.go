package horizon

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stellar-harvest-bot-go/internal/config"
)

// Issuer of the USDC stablecoin used as the quote asset for USD pricing.
const usdcIssuer = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"

// ClientInterface defines the interface for the Horizon REST API client.
type ClientInterface interface {
	GetRoot() (*RootResponse, error)
	GetAccount(accountID string) (*Account, error)
	GetOrderbook(base, quote string) (*Orderbook, error)
	SubmitTransaction(envelope, signature string) (*SubmitResponse, error)
	FundAccount(accountID string) error
}

// Client is a client for the Horizon REST API.
// It implements the ClientInterface.
type Client struct {
	client       *resty.Client
	friendbotURL string
	logger       *zap.Logger
	limiter      *rate.Limiter
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new Horizon REST API client.
func NewClient(cfg *config.Horizon, logger *zap.Logger) *Client {
	if cfg.Network == "testnet" {
		logger.Warn("Using Horizon Testnet")
	} else {
		logger.Info("Using Horizon Public network")
	}

	client := resty.New().SetBaseURL(cfg.URL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:       client,
		friendbotURL: cfg.FriendbotURL,
		logger:       logger,
		limiter:      limiter,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.RawResponse != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			// Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// RootResponse is the Horizon root document, used as a connectivity check.
type RootResponse struct {
	HorizonVersion    string `json:"horizon_version"`
	CoreLatestLedger  int64  `json:"core_latest_ledger"`
	NetworkPassphrase string `json:"network_passphrase"`
}

// GetRoot fetches the Horizon root document.
// This is a good endpoint to test connectivity.
func (c *Client) GetRoot() (*RootResponse, error) {
	req := c.client.R().SetResult(&RootResponse{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/", req)
	if err != nil {
		c.logger.Error("Failed to get Horizon root", zap.Error(err))
		return nil, fmt.Errorf("failed to get horizon root: %w", err)
	}

	return resp.Result().(*RootResponse), nil
}

// Balance is one entry of an account's balance list.
type Balance struct {
	AssetType string `json:"asset_type"` // "native" or "credit_alphanum4"/"credit_alphanum12"
	AssetCode string `json:"asset_code,omitempty"`
	Balance   string `json:"balance"`
}

// Account represents a Horizon account record.
type Account struct {
	AccountID string    `json:"account_id"`
	Sequence  string    `json:"sequence"`
	Balances  []Balance `json:"balances"`
}

// GetAccount fetches an account record including its balances.
func (c *Client) GetAccount(accountID string) (*Account, error) {
	req := c.client.R().
		SetResult(&Account{}).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/accounts/"+accountID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}

	return resp.Result().(*Account), nil
}

// NativeBalance returns the account's native balance as a float.
func (a *Account) NativeBalance() float64 {
	for _, b := range a.Balances {
		if b.AssetType == "native" {
			v, err := strconv.ParseFloat(b.Balance, 64)
			if err != nil {
				return 0
			}
			return v
		}
	}
	return 0
}

// PriceLevel is one level of an orderbook side.
type PriceLevel struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// Orderbook represents the response from the /order_book endpoint.
type Orderbook struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// TopBid returns the best bid price, or 0 when the book is empty.
func (o *Orderbook) TopBid() float64 {
	if len(o.Bids) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(o.Bids[0].Price, 64)
	if err != nil {
		return 0
	}
	return v
}

// assetParams fills the selling/buying query parameters for one side of a pair.
// Assets are either "XLM" (native) or "CODE" / "CODE:ISSUER" credit assets.
// USD is quoted through the USDC stablecoin.
func assetParams(params url.Values, side, asset string) {
	switch {
	case asset == "XLM":
		params.Set(side+"_asset_type", "native")
	case asset == "USD":
		params.Set(side+"_asset_type", "credit_alphanum4")
		params.Set(side+"_asset_code", "USDC")
		params.Set(side+"_asset_issuer", usdcIssuer)
	default:
		code := asset
		issuer := ""
		if idx := strings.Index(asset, ":"); idx >= 0 {
			code = asset[:idx]
			issuer = asset[idx+1:]
		}
		assetType := "credit_alphanum4"
		if len(code) > 4 {
			assetType = "credit_alphanum12"
		}
		params.Set(side+"_asset_type", assetType)
		params.Set(side+"_asset_code", code)
		if issuer != "" {
			params.Set(side+"_asset_issuer", issuer)
		}
	}
}

// GetOrderbook fetches the order book for a base/quote asset pair.
func (c *Client) GetOrderbook(base, quote string) (*Orderbook, error) {
	params := url.Values{}
	assetParams(params, "selling", base)
	assetParams(params, "buying", quote)

	req := c.client.R().
		SetResult(&Orderbook{}).
		SetQueryParamsFromValues(params).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/order_book", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get order book for %s/%s: %w", base, quote, err)
	}

	return resp.Result().(*Orderbook), nil
}

// SubmitResponse represents the response from submitting a transaction.
type SubmitResponse struct {
	Hash       string `json:"hash"`
	Ledger     int64  `json:"ledger"`
	Successful bool   `json:"successful"`
	ResultCode string `json:"result_code,omitempty"`
}

// SubmitTransaction submits a signed transaction envelope.
func (c *Client) SubmitTransaction(envelope, signature string) (*SubmitResponse, error) {
	form := url.Values{}
	form.Set("tx", envelope)
	form.Set("signature", signature)

	req := c.client.R().
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(form.Encode()).
		SetResult(&SubmitResponse{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "POST", "/transactions", req)
	if err != nil {
		c.logger.Error("Failed to submit transaction after multiple attempts", zap.Error(err))
		return nil, fmt.Errorf("failed to submit transaction: %w", err)
	}

	result := resp.Result().(*SubmitResponse)
	if !result.Successful {
		return nil, fmt.Errorf("transaction rejected: %s", result.ResultCode)
	}

	c.logger.Info("Successfully submitted transaction", zap.String("hash", result.Hash))
	return result, nil
}

// FundAccount funds a freshly created testnet account via the faucet.
func (c *Client) FundAccount(accountID string) error {
	if c.friendbotURL == "" {
		return fmt.Errorf("no friendbot URL configured")
	}

	resp, err := resty.New().R().
		SetQueryParam("addr", accountID).
		Get(c.friendbotURL)
	if err != nil {
		return fmt.Errorf("failed to fund account: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to fund account: %s", resp.String())
	}

	c.logger.Info("Account funded successfully", zap.String("account", accountID))
	return nil
}
