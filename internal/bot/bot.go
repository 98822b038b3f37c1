package bot

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stellar-harvest-bot-go/internal/config"
	"stellar-harvest-bot-go/internal/horizon"
	"stellar-harvest-bot-go/internal/notify"
	"stellar-harvest-bot-go/internal/oracle"
	"stellar-harvest-bot-go/internal/portfolio"
	"stellar-harvest-bot-go/internal/secrets"
	"stellar-harvest-bot-go/internal/strategy"
)

const defaultRetryDelay = 2 * time.Second

// Bot is the harvest orchestrator. It owns all mutable bot state and is the
// single entry point for the scheduled timers and the dashboard API.
type Bot struct {
	logger     *zap.Logger
	cfgPath    string
	db         *gorm.DB
	client     horizon.ClientInterface
	oracle     *oracle.Oracle
	portfolio  *portfolio.Manager
	notifier   *notify.Manager
	keybox     *secrets.Keybox
	identity   *secrets.Identity // nil when key material is missing or invalid
	id         string
	startTime  time.Time
	retryDelay time.Duration
	now        func() time.Time

	// cycleMu serializes evaluation cycles. Scheduled triggers use TryLock
	// and skip when a cycle is already in flight.
	cycleMu sync.Mutex

	// mu guards the fields below.
	mu             sync.RWMutex
	cfg            config.Config
	strategies     *strategy.Engine
	running        bool
	cron           *cron.Cron
	currentPrices  map[string]float64
	portfolioValue float64
	lastHarvest    time.Time
}

// New wires up the orchestrator and bootstraps the signing identity.
func New(cfg config.Config, cfgPath string, db *gorm.DB, client horizon.ClientInterface,
	keybox *secrets.Keybox, logger *zap.Logger) *Bot {

	cfg = normalizeAssets(cfg)

	b := &Bot{
		logger:        logger,
		cfg:           cfg,
		cfgPath:       cfgPath,
		db:            db,
		client:        client,
		keybox:        keybox,
		id:            uuid.NewString(),
		startTime:     time.Now(),
		retryDelay:    defaultRetryDelay,
		now:           time.Now,
		currentPrices: make(map[string]float64),
	}

	b.oracle = oracle.NewOracle(db, client, logger.Named("oracle"))
	b.notifier = notify.NewManager(cfg.Notifications, logger)
	b.strategies = strategy.NewEngine(logger.Named("strategy"), cfg.Harvest.Assets)

	b.loadIdentity()

	accountID := ""
	if b.identity != nil {
		accountID = b.identity.Address()
	}
	b.portfolio = portfolio.NewManager(client, accountID, logger.Named("portfolio"))

	return b
}

// normalizeAssets copies the global max_volatility knob onto assets that do
// not set their own.
func normalizeAssets(cfg config.Config) config.Config {
	for i, a := range cfg.Harvest.Assets {
		if a.MaxVolatility == 0 {
			cfg.Harvest.Assets[i].MaxVolatility = cfg.Harvest.MaxVolatility
		}
	}
	return cfg
}

// loadIdentity decrypts the configured private key, or generates and stores a
// new one when none is configured. Invalid key material leaves the bot with a
// nil identity: status keeps working, harvesting refuses.
func (b *Bot) loadIdentity() {
	if b.cfg.Harvest.EncryptedPrivateKey != "" {
		seed, err := b.keybox.Decrypt(b.cfg.Harvest.EncryptedPrivateKey)
		if err != nil {
			b.logger.Error("Failed to decrypt private key, running without signing identity", zap.Error(err))
			return
		}
		identity, err := secrets.IdentityFromSeed(seed)
		if err != nil {
			b.logger.Error("Decrypted key material is invalid", zap.Error(err))
			return
		}
		b.identity = identity
		return
	}

	identity, err := secrets.GenerateIdentity()
	if err != nil {
		b.logger.Error("Failed to generate identity", zap.Error(err))
		return
	}
	encrypted, err := b.keybox.Encrypt(identity.Seed())
	if err != nil {
		b.logger.Error("Failed to encrypt generated key", zap.Error(err))
		return
	}

	b.cfg.Harvest.EncryptedPrivateKey = encrypted
	if err := config.SaveConfig(b.cfg, b.cfgPath); err != nil {
		b.logger.Error("Failed to persist generated key", zap.Error(err))
	}
	b.identity = identity
	b.logger.Info("Generated new signing identity", zap.String("address", identity.Address()))

	if b.cfg.Horizon.Network == "testnet" {
		if err := b.client.FundAccount(identity.Address()); err != nil {
			b.logger.Error("Failed to fund account", zap.Error(err))
		} else {
			b.notifier.Notify("Account "+identity.Address()+" funded successfully", "INFO")
		}
	}
}

// accountBalance fetches the live native balance, 0 on error or when no
// identity is loaded.
func (b *Bot) accountBalance() float64 {
	if b.identity == nil {
		return 0
	}
	account, err := b.client.GetAccount(b.identity.Address())
	if err != nil {
		b.logger.Error("Error getting account balance", zap.Error(err))
		return 0
	}
	return account.NativeBalance()
}

func (b *Bot) setCurrentPrice(asset string, price float64) {
	b.mu.Lock()
	b.currentPrices[asset] = price
	b.mu.Unlock()
}

func (b *Bot) setPortfolioValue(value float64) {
	b.mu.Lock()
	b.portfolioValue = value
	b.mu.Unlock()
}

func (b *Bot) setLastHarvest(t time.Time) {
	b.mu.Lock()
	b.lastHarvest = t
	b.mu.Unlock()
}

// LastHarvest returns the time of the last successful harvest, zero if none.
func (b *Bot) LastHarvest() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastHarvest
}

// Config returns a snapshot of the active configuration.
func (b *Bot) Config() config.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// engine returns the current strategy engine. SetConfig swaps the field, so
// cycles and backtests must go through here instead of reading it directly.
func (b *Bot) engine() *strategy.Engine {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.strategies
}
