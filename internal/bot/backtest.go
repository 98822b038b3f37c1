package bot

import (
	"fmt"

	"stellar-harvest-bot-go/internal/strategy"
)

// Starting balance for backtest simulations, in quote units.
const backtestStartBalance = 1000.0

// BacktestResult summarizes a strategy replay over stored price history.
type BacktestResult struct {
	FinalValue  float64           `json:"final_value"`
	TotalReturn float64           `json:"total_return"`
	Signals     []strategy.Signal `json:"signals"`
	EquityCurve []float64         `json:"equity_curve"`
}

// Backtest replays the asset's strategy over the recorded price history,
// simulating a single-position buy/sell portfolio. The evaluators are pure,
// so two runs over the same history produce identical results.
func (b *Bot) Backtest(assetName string, days int) (*BacktestResult, error) {
	cfg := b.Config()
	asset, ok := cfg.AssetByName(assetName)
	if !ok {
		return nil, fmt.Errorf("asset %s not found in config", assetName)
	}

	history := b.oracle.GetPriceHistory(assetName, 24*days)
	if len(history) < 10 {
		return nil, fmt.Errorf("not enough historical data: have %d observations, need at least 10", len(history))
	}

	balance := backtestStartBalance
	position := 0.0
	result := &BacktestResult{
		Signals:     make([]strategy.Signal, 0, len(history)-10),
		EquityCurve: make([]float64, 0, len(history)-10),
	}

	engine := b.engine()
	for i := 10; i < len(history); i++ {
		signal := engine.Evaluate(asset, history[:i])
		result.Signals = append(result.Signals, signal)

		price := history[i].Price
		switch {
		case signal == strategy.SignalBuy && position == 0:
			position = balance / price
			balance = 0
		case signal == strategy.SignalSell && position > 0:
			balance = position * price
			position = 0
		}

		result.EquityCurve = append(result.EquityCurve, balance+position*price)
	}

	finalPrice := history[len(history)-1].Price
	result.FinalValue = balance + position*finalPrice
	result.TotalReturn = (result.FinalValue - backtestStartBalance) / backtestStartBalance * 100
	return result, nil
}
