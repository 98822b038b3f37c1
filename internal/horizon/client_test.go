package horizon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stellar-harvest-bot-go/internal/config"
)

// setupTestServer creates a test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	c := &Client{
		client:       resty.New().SetBaseURL(server.URL),
		friendbotURL: server.URL + "/friendbot",
		logger:       zap.NewNop(),
		limiter:      rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}
	return c, server
}

func TestGetRoot(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"horizon_version": "2.28.0", "core_latest_ledger": 1500}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		root, err := c.GetRoot()

		assert.NoError(t, err)
		assert.Equal(t, "2.28.0", root.HorizonVersion)
		assert.Equal(t, int64(1500), root.CoreLatestLedger)
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"title": "Resource Missing"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		root, err := c.GetRoot()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get horizon root")
		assert.Nil(t, root)
	})
}

func TestGetAccount(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/GTEST", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"account_id": "GTEST",
			"sequence": "1234",
			"balances": [
				{"asset_type": "credit_alphanum4", "asset_code": "KALE", "balance": "42.5"},
				{"asset_type": "native", "balance": "100.75"}
			]
		}`))
	})

	c, server := setupTestServer(handler)
	defer server.Close()

	account, err := c.GetAccount("GTEST")

	assert.NoError(t, err)
	assert.Len(t, account.Balances, 2)
	assert.Equal(t, 100.75, account.NativeBalance())
}

func TestGetOrderbook(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order_book", r.URL.Path)
		assert.Equal(t, "native", r.URL.Query().Get("selling_asset_type"))
		assert.Equal(t, "USDC", r.URL.Query().Get("buying_asset_code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"bids": [{"price": "0.1187", "amount": "500"}, {"price": "0.1180", "amount": "900"}],
			"asks": [{"price": "0.1190", "amount": "100"}]
		}`))
	})

	c, server := setupTestServer(handler)
	defer server.Close()

	book, err := c.GetOrderbook("XLM", "USD")

	assert.NoError(t, err)
	assert.Equal(t, 0.1187, book.TopBid())
}

func TestOrderbookTopBidEmpty(t *testing.T) {
	book := &Orderbook{}
	assert.Equal(t, 0.0, book.TopBid())
}

func TestSubmitTransaction(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transactions", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"hash": "abc123", "ledger": 99, "successful": true}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		resp, err := c.SubmitTransaction("ZW52ZWxvcGU=", "deadbeef")

		assert.NoError(t, err)
		assert.Equal(t, "abc123", resp.Hash)
	})

	t.Run("Rejected", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"successful": false, "result_code": "tx_bad_seq"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		resp, err := c.SubmitTransaction("ZW52ZWxvcGU=", "deadbeef")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "tx_bad_seq")
		assert.Nil(t, resp)
	})
}

func TestFundAccount(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/friendbot", r.URL.Path)
			assert.Equal(t, "GTEST", r.URL.Query().Get("addr"))
			w.WriteHeader(http.StatusOK)
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		assert.NoError(t, c.FundAccount("GTEST"))
	})

	t.Run("NoFaucetConfigured", func(t *testing.T) {
		c := &Client{logger: zap.NewNop(), limiter: rate.NewLimiter(rate.Inf, 1)}
		assert.Error(t, c.FundAccount("GTEST"))
	})
}

func TestNewClient(t *testing.T) {
	cfg := &config.Horizon{
		Network:        "testnet",
		URL:            "https://horizon-testnet.stellar.org",
		FriendbotURL:   "https://friendbot.stellar.org",
		RateLimit:      20,
		RateLimitBurst: 5,
	}
	c := NewClient(cfg, zap.NewNop())
	assert.NotNil(t, c)
	assert.Equal(t, cfg.FriendbotURL, c.friendbotURL)
}
