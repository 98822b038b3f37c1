package bot

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stellar-harvest-bot-go/internal/config"
	"stellar-harvest-bot-go/internal/models"
	"stellar-harvest-bot-go/internal/strategy"
)

// Result is the structured outcome of a control-surface call. These calls
// never propagate errors to the caller.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Status is the snapshot returned by the status endpoint.
type Status struct {
	ID             string             `json:"id"`
	Status         string             `json:"status"` // "running" or "stopped"
	Balance        float64            `json:"balance"`
	CurrentPrices  map[string]float64 `json:"current_prices"`
	PortfolioValue float64            `json:"portfolio_value"`
	LastHarvest    *time.Time         `json:"last_harvest,omitempty"`
	ConfigComplete bool               `json:"config_complete"`
	PublicKey      string             `json:"public_key,omitempty"`
	Uptime         string             `json:"uptime"`
}

// Start begins the scheduled cycles. Idempotent: starting a running bot
// reports failure without side effects, as does starting with an incomplete
// configuration.
func (b *Bot) Start() Result {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return Result{Success: false, Message: "bot is already running"}
	}
	if !b.cfg.IsComplete() {
		b.mu.Unlock()
		return Result{Success: false, Message: "configuration is not complete"}
	}

	c := cron.New(cron.WithSeconds())
	schedules := []struct {
		every int
		job   func()
	}{
		{b.cfg.Harvest.ScheduleInterval, b.RunCycle},
		{b.cfg.Harvest.PortfolioInterval, b.RefreshPortfolio},
		{b.cfg.Harvest.HealthCheckInterval, b.Heartbeat},
	}
	for _, s := range schedules {
		if s.every <= 0 {
			continue
		}
		if _, err := c.AddFunc(fmt.Sprintf("@every %ds", s.every), s.job); err != nil {
			b.mu.Unlock()
			b.logger.Error("Failed to schedule job", zap.Error(err))
			return Result{Success: false, Message: fmt.Sprintf("failed to schedule job: %v", err)}
		}
	}
	c.Start()
	b.cron = c
	b.running = true
	b.mu.Unlock()

	b.logger.Info("Bot started")
	b.notifier.Notify("Bot started successfully", "INFO")
	return Result{Success: true, Message: "Bot started successfully"}
}

// Stop halts the scheduled cycles, waiting for an in-flight cycle to finish.
// Idempotent: stopping a stopped bot reports failure without side effects.
func (b *Bot) Stop() Result {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return Result{Success: false, Message: "bot is already stopped"}
	}
	c := b.cron
	b.cron = nil
	b.running = false
	b.mu.Unlock()

	if c != nil {
		// Stop returns a context that completes when running jobs finish.
		<-c.Stop().Done()
	}

	b.logger.Info("Bot stopped")
	b.notifier.Notify("Bot stopped", "INFO")
	return Result{Success: true, Message: "Bot stopped successfully"}
}

// IsRunning reports whether the schedule is active.
func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// GetStatus assembles the dashboard status snapshot.
func (b *Bot) GetStatus() Status {
	b.mu.RLock()
	running := b.running
	value := b.portfolioValue
	prices := make(map[string]float64, len(b.currentPrices))
	for k, v := range b.currentPrices {
		prices[k] = v
	}
	last := b.lastHarvest
	complete := b.cfg.IsComplete()
	b.mu.RUnlock()

	status := Status{
		ID:             b.id,
		Status:         "stopped",
		Balance:        b.accountBalance(),
		CurrentPrices:  prices,
		PortfolioValue: value,
		ConfigComplete: complete,
		Uptime:         time.Since(b.startTime).String(),
	}
	if running {
		status.Status = "running"
	}
	if !last.IsZero() {
		status.LastHarvest = &last
	}
	if b.identity != nil {
		status.PublicKey = b.identity.Address()
	}
	return status
}

// SetConfig replaces the whole configuration document, persists it and
// re-resolves the per-asset strategies. A running schedule keeps its current
// intervals until the next start.
func (b *Bot) SetConfig(newCfg config.Config) Result {
	newCfg = normalizeAssets(newCfg)

	if err := config.SaveConfig(newCfg, b.cfgPath); err != nil {
		b.logger.Error("Error updating configuration", zap.Error(err))
		return Result{Success: false, Message: err.Error()}
	}

	b.mu.Lock()
	b.cfg = newCfg
	b.strategies = strategy.NewEngine(b.logger.Named("strategy"), newCfg.Harvest.Assets)
	b.mu.Unlock()

	b.logger.Info("Configuration updated")
	b.notifier.Notify("Configuration updated", "INFO")
	return Result{Success: true, Message: "Configuration updated"}
}

// ManualHarvest runs the evaluate→invoke path for one asset outside the
// schedule, with the same persistence and notification side effects. It
// serializes against scheduled cycles.
func (b *Bot) ManualHarvest(assetName string) Result {
	cfg := b.Config()
	asset, ok := cfg.AssetByName(assetName)
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("asset %s not found in config", assetName)}
	}

	b.cycleMu.Lock()
	defer b.cycleMu.Unlock()

	signal, ok := b.evaluateAsset(asset, cfg.Harvest.MaxRetries)
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("Harvest failed for %s", assetName)}
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Manual harvest evaluated for %s: signal %s", assetName, signal),
	}
}

// GetTransactionHistory returns the most recent transaction records, newest
// first.
func (b *Bot) GetTransactionHistory(limit int) []models.Transaction {
	if limit <= 0 {
		limit = 10
	}
	var txs []models.Transaction
	if err := b.db.Order("timestamp desc").Limit(limit).Find(&txs).Error; err != nil {
		b.logger.Error("Error getting transaction history", zap.Error(err))
		return nil
	}
	return txs
}

// GetPerformanceHistory returns all performance snapshots newer than now-days,
// ascending by time.
func (b *Bot) GetPerformanceHistory(days int) []models.PerformanceSnapshot {
	if days <= 0 {
		days = 7
	}
	since := b.now().AddDate(0, 0, -days).Unix()
	var snapshots []models.PerformanceSnapshot
	err := b.db.
		Where("timestamp > ?", since).
		Order("timestamp asc").
		Find(&snapshots).Error
	if err != nil {
		b.logger.Error("Error getting performance history", zap.Error(err))
		return nil
	}
	return snapshots
}
