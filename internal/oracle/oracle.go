package oracle

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stellar-harvest-bot-go/internal/horizon"
	"stellar-harvest-bot-go/internal/models"
)

// DefaultPrice is returned when every price source fails. Callers must treat
// it as a degraded signal, not a market price.
const DefaultPrice = 1.0

const (
	stellarxBaseURL  = "https://api.stellarx.com"
	lumenswapBaseURL = "https://api.lumenswap.com"
)

// Observation is one (price, timestamp) point of an asset's history.
type Observation struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

type priceSource struct {
	name  string
	fetch func(asset, quote string) (float64, error)
}

// Oracle obtains prices for asset pairs, trying multiple sources in order and
// persisting every successful observation.
type Oracle struct {
	db      *gorm.DB
	client  horizon.ClientInterface
	http    *resty.Client
	logger  *zap.Logger
	sources []priceSource
	now     func() time.Time

	stellarxURL  string
	lumenswapURL string
}

// NewOracle creates a price oracle backed by the chain orderbook and two
// external price APIs, in that order.
func NewOracle(db *gorm.DB, client horizon.ClientInterface, logger *zap.Logger) *Oracle {
	o := &Oracle{
		db:           db,
		client:       client,
		http:         resty.New().SetTimeout(5 * time.Second),
		logger:       logger,
		now:          time.Now,
		stellarxURL:  stellarxBaseURL,
		lumenswapURL: lumenswapBaseURL,
	}
	o.sources = []priceSource{
		{name: "horizon", fetch: o.priceFromOrderbook},
		{name: "stellarx", fetch: o.priceFromStellarX},
		{name: "lumenswap", fetch: o.priceFromLumenswap},
	}
	return o
}

// GetPrice returns the first positive price offered by the configured sources
// and records it in the price history. When every source fails it returns
// DefaultPrice without recording anything.
func (o *Oracle) GetPrice(asset, quote string) float64 {
	for _, src := range o.sources {
		price, err := src.fetch(asset, quote)
		if err != nil {
			o.logger.Warn("Price source failed",
				zap.String("source", src.name),
				zap.String("asset", asset),
				zap.Error(err))
			continue
		}
		if price > 0 {
			o.storePrice(asset, price)
			return price
		}
	}

	o.logger.Warn("All price sources failed, using default price",
		zap.String("asset", asset),
		zap.Float64("default", DefaultPrice))
	return DefaultPrice
}

// GetPriceHistory returns all observations for asset newer than now-hours,
// ascending by time.
func (o *Oracle) GetPriceHistory(asset string, hours int) []Observation {
	since := o.now().Add(-time.Duration(hours) * time.Hour).Unix()

	var points []models.PricePoint
	err := o.db.
		Where("asset = ? AND timestamp > ?", asset, since).
		Order("timestamp asc").
		Find(&points).Error
	if err != nil {
		o.logger.Error("Failed to load price history", zap.String("asset", asset), zap.Error(err))
		return nil
	}

	history := make([]Observation, 0, len(points))
	for _, p := range points {
		history = append(history, Observation{Price: p.Price, Timestamp: time.Unix(p.Timestamp, 0)})
	}
	return history
}

func (o *Oracle) storePrice(asset string, price float64) {
	point := models.PricePoint{
		Asset:     asset,
		Price:     price,
		Timestamp: o.now().Unix(),
	}
	if err := o.db.Create(&point).Error; err != nil {
		o.logger.Error("Failed to store price history", zap.String("asset", asset), zap.Error(err))
	}
}

// priceFromOrderbook takes the top bid of the on-chain orderbook.
func (o *Oracle) priceFromOrderbook(asset, quote string) (float64, error) {
	book, err := o.client.GetOrderbook(asset, quote)
	if err != nil {
		return 0, err
	}
	bid := book.TopBid()
	if bid <= 0 {
		return 0, fmt.Errorf("empty orderbook for %s/%s", asset, quote)
	}
	return bid, nil
}

type priceResponse struct {
	Price float64 `json:"price"`
}

func (o *Oracle) fetchJSONPrice(baseURL, asset, quote string) (float64, error) {
	var result priceResponse
	resp, err := o.http.R().
		SetResult(&result).
		Get(fmt.Sprintf("%s/price/%s/%s", baseURL, asset, quote))
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("price request failed with status %s", resp.Status())
	}
	return result.Price, nil
}

func (o *Oracle) priceFromStellarX(asset, quote string) (float64, error) {
	return o.fetchJSONPrice(o.stellarxURL, asset, quote)
}

func (o *Oracle) priceFromLumenswap(asset, quote string) (float64, error) {
	return o.fetchJSONPrice(o.lumenswapURL, asset, quote)
}
