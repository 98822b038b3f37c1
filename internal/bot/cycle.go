package bot

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stellar-harvest-bot-go/internal/config"
	"stellar-harvest-bot-go/internal/models"
	"stellar-harvest-bot-go/internal/strategy"
)

// RunCycle executes one evaluation cycle: refresh portfolio, enforce the
// balance floor, evaluate every configured asset, harvest on BUY. A trigger
// arriving while a cycle is in flight is skipped, not queued.
func (b *Bot) RunCycle() {
	if !b.cycleMu.TryLock() {
		b.logger.Info("Previous cycle still running, skipping trigger")
		return
	}
	defer b.cycleMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Cycle aborted: %v", r)
			b.logger.Error(msg)
			b.notifier.Notify(msg, "ERROR")
		}
	}()

	cfg := b.Config()

	if err := b.portfolio.Update(); err != nil {
		b.logger.Error("Portfolio refresh failed", zap.Error(err))
	}
	value := b.portfolio.Value(b.oracle)
	b.setPortfolioValue(value)
	b.recordPerformance(value)

	balance := b.accountBalance()
	if balance < cfg.Harvest.MinBalance {
		msg := fmt.Sprintf("Insufficient balance: %.4f XLM, minimum required: %.4f XLM",
			balance, cfg.Harvest.MinBalance)
		b.logger.Warn(msg)
		b.notifier.Notify(msg, "WARNING")
		return
	}

	for _, asset := range cfg.Harvest.Assets {
		b.evaluateAsset(asset, cfg.Harvest.MaxRetries)
	}
}

// evaluateAsset runs the price → history → signal → harvest path for one asset.
// The second return is false only when a BUY signal's harvest attempts all
// failed; signals that require no action count as ok.
func (b *Bot) evaluateAsset(asset config.Asset, maxRetries int) (strategy.Signal, bool) {
	price := b.oracle.GetPrice(asset.Name, "USD")
	b.setCurrentPrice(asset.Name, price)

	history := b.oracle.GetPriceHistory(asset.Name, 24)
	signal := b.engine().Evaluate(asset, history)

	b.logger.Info("Asset evaluated",
		zap.String("asset", asset.Name),
		zap.Float64("price", price),
		zap.String("signal", string(signal)))

	if signal == strategy.SignalBuy {
		b.logger.Info("Buy signal, executing harvest", zap.String("asset", asset.Name))
		return signal, b.harvestWithRetries(asset, maxRetries)
	}

	b.logger.Info("No action for asset",
		zap.String("asset", asset.Name),
		zap.String("signal", string(signal)))
	return signal, true
}

// harvestWithRetries invokes the contract up to maxRetries times, strictly
// sequentially with a fixed delay, stopping at the first success. Exhausting
// the retries is logged but never fatal to the cycle.
func (b *Bot) harvestWithRetries(asset config.Asset, maxRetries int) bool {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		hash, err := b.invokeHarvest(asset)
		if err == nil {
			b.setLastHarvest(b.now())
			b.logger.Info("Harvest executed successfully",
				zap.String("asset", asset.Name),
				zap.String("tx_hash", hash))
			return true
		}
		b.logger.Error("Harvest attempt failed",
			zap.String("asset", asset.Name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < maxRetries {
			time.Sleep(b.retryDelay)
		}
	}
	b.logger.Error("All harvest attempts failed", zap.String("asset", asset.Name))
	return false
}

// harvestEnvelope is the payload signed and submitted for one contract
// invocation.
type harvestEnvelope struct {
	Source     string `json:"source"`
	ContractID string `json:"contract_id"`
	Function   string `json:"function"`
	Timestamp  int64  `json:"timestamp"`
	TimeoutSec int    `json:"timeout"`
}

// invokeHarvest submits one harvest invocation. Every outcome, success or
// failure, is persisted as exactly one transaction record and notified.
func (b *Bot) invokeHarvest(asset config.Asset) (string, error) {
	price := b.oracle.GetPrice(asset.Name, "USD")

	if b.identity == nil {
		err := fmt.Errorf("no signing identity loaded")
		b.recordTransaction("", asset.Name, price, models.TxStatusFailed)
		b.notifier.Notify(fmt.Sprintf("Harvest failed for %s: %v", asset.Name, err), "ERROR")
		return "", err
	}

	envelope := harvestEnvelope{
		Source:     b.identity.Address(),
		ContractID: asset.ContractID,
		Function:   "harvest",
		Timestamp:  b.now().Unix(),
		TimeoutSec: 30,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to build envelope: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	signature := b.identity.Sign(payload)

	resp, err := b.client.SubmitTransaction(encoded, signature)
	if err != nil {
		b.logger.Error("Error invoking harvest contract",
			zap.String("asset", asset.Name), zap.Error(err))
		b.recordTransaction("", asset.Name, price, models.TxStatusFailed)
		b.notifier.Notify(fmt.Sprintf("Harvest failed for %s: %v", asset.Name, err), "ERROR")
		return "", err
	}

	b.recordTransaction(resp.Hash, asset.Name, price, models.TxStatusSuccess)
	b.notifier.Notify(fmt.Sprintf("Harvest executed for %s. TX: %s", asset.Name, resp.Hash), "INFO")
	return resp.Hash, nil
}

// recordTransaction persists one attempt outcome. A storage error is logged
// only; it must not interrupt the cycle.
func (b *Bot) recordTransaction(txHash, asset string, price float64, status string) {
	tx := models.Transaction{
		TxHash:    txHash,
		Asset:     asset,
		Action:    "HARVEST",
		Amount:    0, // harvest yield is not reported by the contract
		Price:     price,
		Timestamp: b.now().Unix(),
		Status:    status,
	}
	if err := b.db.Create(&tx).Error; err != nil {
		b.logger.Error("Error storing transaction", zap.Error(err))
	}
}

// recordPerformance persists a snapshot of the cycle's valuation. Daily yield
// is computed against the most recent snapshot older than 24 hours.
func (b *Bot) recordPerformance(value float64) {
	cutoff := b.now().Add(-24 * time.Hour).Unix()

	var previous models.PerformanceSnapshot
	dailyYield := 0.0
	err := b.db.
		Where("timestamp <= ?", cutoff).
		Order("timestamp desc").
		First(&previous).Error
	if err == nil && previous.PortfolioValue > 0 {
		dailyYield = (value - previous.PortfolioValue) / previous.PortfolioValue * 100
	}

	snapshot := models.PerformanceSnapshot{
		Timestamp:      b.now().Unix(),
		PortfolioValue: value,
		DailyYield:     dailyYield,
		TotalYield:     dailyYield,
	}
	if err := b.db.Create(&snapshot).Error; err != nil {
		b.logger.Error("Error storing performance metrics", zap.Error(err))
	}
}

// RefreshPortfolio is the independent portfolio-refresh timer target.
func (b *Bot) RefreshPortfolio() {
	if err := b.portfolio.Update(); err != nil {
		b.logger.Error("Scheduled portfolio refresh failed", zap.Error(err))
	}
}

// Heartbeat is the health-check timer target.
func (b *Bot) Heartbeat() {
	b.logger.Info("Bot health check: OK",
		zap.Duration("uptime", time.Since(b.startTime)))
}
