package portfolio

import (
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"stellar-harvest-bot-go/internal/horizon"
)

// PriceSource prices one asset in a quote currency. Satisfied by the oracle.
type PriceSource interface {
	GetPrice(asset, quote string) float64
}

// Holding is one asset position with its cached valuation.
type Holding struct {
	Balance float64 `json:"balance"`
	Value   float64 `json:"value"`
	Price   float64 `json:"price"`
}

// Manager tracks the controlled account's balances. The chain account is
// authoritative; the in-memory map is replaced wholesale on each refresh.
type Manager struct {
	client    horizon.ClientInterface
	accountID string
	logger    *zap.Logger

	mu       sync.RWMutex
	holdings map[string]*Holding
}

// NewManager creates a portfolio manager for the given account.
func NewManager(client horizon.ClientInterface, accountID string, logger *zap.Logger) *Manager {
	return &Manager{
		client:    client,
		accountID: accountID,
		logger:    logger,
		holdings:  make(map[string]*Holding),
	}
}

// Update fetches all balances and replaces the portfolio map wholesale.
// On any fetch error the prior state is left untouched.
func (m *Manager) Update() error {
	if m.accountID == "" {
		return fmt.Errorf("no account configured")
	}

	account, err := m.client.GetAccount(m.accountID)
	if err != nil {
		m.logger.Error("Error updating portfolio", zap.Error(err))
		return fmt.Errorf("failed to fetch account balances: %w", err)
	}

	fresh := make(map[string]*Holding, len(account.Balances))
	for _, b := range account.Balances {
		amount, err := strconv.ParseFloat(b.Balance, 64)
		if err != nil {
			m.logger.Warn("Skipping unparsable balance",
				zap.String("asset", b.AssetCode), zap.String("raw", b.Balance))
			continue
		}
		code := b.AssetCode
		if b.AssetType == "native" {
			code = "XLM"
		}
		fresh[code] = &Holding{Balance: amount, Value: amount}
	}

	m.mu.Lock()
	m.holdings = fresh
	m.mu.Unlock()
	return nil
}

// Value prices every held asset through the oracle and returns the total.
// Each holding's cached value and price are refreshed as a side effect.
// Pricing may block on HTTP, so it happens outside the lock; readers are only
// held up for the cache update itself.
func (m *Manager) Value(prices PriceSource) float64 {
	m.mu.RLock()
	assets := make([]string, 0, len(m.holdings))
	for asset := range m.holdings {
		assets = append(assets, asset)
	}
	m.mu.RUnlock()

	fetched := make(map[string]float64, len(assets))
	for _, asset := range assets {
		if price := prices.GetPrice(asset, "USD"); price > 0 {
			fetched[asset] = price
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0.0
	for asset, h := range m.holdings {
		price, ok := fetched[asset]
		if !ok {
			continue
		}
		h.Value = h.Balance * price
		h.Price = price
		total += h.Value
	}
	return total
}

// Metrics is the summary exposed to the dashboard.
type Metrics struct {
	TotalValue float64            `json:"total_value"`
	Allocation map[string]float64 `json:"asset_allocation"`
}

// GetMetrics returns the total cached value and the per-asset allocation.
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := Metrics{Allocation: make(map[string]float64, len(m.holdings))}
	for asset, h := range m.holdings {
		metrics.TotalValue += h.Value
		metrics.Allocation[asset] = h.Value
	}
	return metrics
}

// Holdings returns a copy of the current holdings map.
func (m *Manager) Holdings() map[string]Holding {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Holding, len(m.holdings))
	for asset, h := range m.holdings {
		out[asset] = *h
	}
	return out
}
