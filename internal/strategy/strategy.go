package strategy

import (
	"math"

	"go.uber.org/zap"

	"stellar-harvest-bot-go/internal/config"
	"stellar-harvest-bot-go/internal/oracle"
)

// Signal is the sole output of a strategy evaluation.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Evaluator is a pure function of (asset configuration, price-history window).
// Determinism here is what makes backtests reproducible.
type Evaluator func(asset config.Asset, history []oracle.Observation) Signal

// Names of the built-in strategies.
const (
	NameSimpleThreshold = "simple_threshold"
	NameMovingAverage   = "moving_average"
	NameRSI             = "rsi"
	NameVolatility      = "volatility"
)

// registry maps strategy names to evaluators. Closed set; unknown names fall
// back to simple_threshold.
var registry = map[string]Evaluator{
	NameSimpleThreshold: SimpleThreshold,
	NameMovingAverage:   MovingAverage,
	NameRSI:             RSI,
	NameVolatility:      Volatility,
}

// Engine resolves each configured asset's strategy name to an evaluator once,
// at construction, rather than re-dispatching by string on every call.
type Engine struct {
	logger   *zap.Logger
	resolved map[string]Evaluator // keyed by asset name
}

// NewEngine builds an engine for the given asset list.
func NewEngine(logger *zap.Logger, assets []config.Asset) *Engine {
	resolved := make(map[string]Evaluator, len(assets))
	for _, a := range assets {
		ev, ok := registry[a.Strategy]
		if !ok {
			logger.Warn("Unknown strategy, falling back to simple_threshold",
				zap.String("asset", a.Name),
				zap.String("strategy", a.Strategy))
			ev = SimpleThreshold
		}
		resolved[a.Name] = ev
		logger.Info("Strategy configured",
			zap.String("asset", a.Name),
			zap.String("strategy", a.Strategy))
	}
	return &Engine{logger: logger, resolved: resolved}
}

// Evaluate runs the asset's resolved evaluator over the history window.
func (e *Engine) Evaluate(asset config.Asset, history []oracle.Observation) Signal {
	ev, ok := e.resolved[asset.Name]
	if !ok {
		ev = SimpleThreshold
	}
	return ev(asset, history)
}

// SimpleThreshold signals BUY when the most recent price is at or above the
// configured threshold. With no history the current price counts as 0.
func SimpleThreshold(asset config.Asset, history []oracle.Observation) Signal {
	current := 0.0
	if len(history) > 0 {
		current = history[len(history)-1].Price
	}
	if current >= asset.ThresholdPrice {
		return SignalBuy
	}
	return SignalHold
}

// MovingAverage signals BUY when the 10-period mean crosses above the
// 20-period mean. Needs at least 20 observations.
func MovingAverage(asset config.Asset, history []oracle.Observation) Signal {
	if len(history) < 20 {
		return SignalHold
	}
	shortMA := mean(lastPrices(history, 10))
	longMA := mean(lastPrices(history, 20))
	if shortMA > longMA {
		return SignalBuy
	}
	return SignalHold
}

// RSI is a 14-period relative strength index strategy: BUY below 30 (oversold),
// SELL above 70 (overbought). A series with no losses yields RSI 100, which is
// maximally overbought and therefore a SELL. Needs at least 15 observations.
func RSI(asset config.Asset, history []oracle.Observation) Signal {
	if len(history) < 15 {
		return SignalHold
	}

	prices := lastPrices(history, len(history))
	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain := sum(gains[len(gains)-14:]) / 14
	avgLoss := sum(losses[len(losses)-14:]) / 14

	var rsi float64
	if avgLoss == 0 {
		rsi = 100
	} else {
		rs := avgGain / avgLoss
		rsi = 100 - (100 / (1 + rs))
	}

	if rsi < 30 {
		return SignalBuy
	}
	if rsi > 70 {
		return SignalSell
	}
	return SignalHold
}

// Volatility signals BUY while the annualized volatility of simple returns
// stays below the configured maximum. Needs at least 10 observations.
func Volatility(asset config.Asset, history []oracle.Observation) Signal {
	if len(history) < 10 {
		return SignalHold
	}

	prices := lastPrices(history, len(history))
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}

	maxVolatility := asset.MaxVolatilityOrDefault()
	volatility := stddev(returns) * math.Sqrt(365)
	if volatility < maxVolatility {
		return SignalBuy
	}
	return SignalHold
}

func lastPrices(history []oracle.Observation, n int) []float64 {
	if n > len(history) {
		n = len(history)
	}
	prices := make([]float64, 0, n)
	for _, obs := range history[len(history)-n:] {
		prices = append(prices, obs.Price)
	}
	return prices
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
