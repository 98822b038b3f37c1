package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsNotComplete(t *testing.T) {
	cfg := Default()

	// The shipped defaults carry a contract but no key material, so the bot
	// must refuse to start until a key is generated or configured.
	assert.NotEmpty(t, cfg.Harvest.Assets[0].ContractID)
	assert.Empty(t, cfg.Harvest.EncryptedPrivateKey)
	assert.False(t, cfg.IsComplete())
}

func TestIsComplete(t *testing.T) {
	cfg := Default()
	cfg.Harvest.EncryptedPrivateKey = "ciphertext"
	assert.True(t, cfg.IsComplete())

	t.Run("NoContractID", func(t *testing.T) {
		c := cfg
		c.Harvest.Assets = []Asset{{Name: "KALE"}}
		assert.False(t, c.IsComplete())
	})

	t.Run("NoAssets", func(t *testing.T) {
		c := cfg
		c.Harvest.Assets = nil
		assert.False(t, c.IsComplete())
	})

	t.Run("NoKey", func(t *testing.T) {
		c := cfg
		c.Harvest.EncryptedPrivateKey = ""
		assert.False(t, c.IsComplete())
	})
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Harvest.MinBalance = 5.5
	cfg.Harvest.EncryptedPrivateKey = "ciphertext"
	cfg.Harvest.Assets[0].Strategy = "rsi"
	cfg.Server.Port = 8080

	assert.NoError(t, SaveConfig(cfg, dir))

	loaded, err := LoadConfig(dir)
	assert.NoError(t, err)
	assert.Equal(t, 5.5, loaded.Harvest.MinBalance)
	assert.Equal(t, "ciphertext", loaded.Harvest.EncryptedPrivateKey)
	assert.Equal(t, "rsi", loaded.Harvest.Assets[0].Strategy)
	assert.Equal(t, 8080, loaded.Server.Port)
}

func TestLoadRegeneratesMissingConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	// The defaults were written back to disk.
	_, err = os.Stat(filepath.Join(dir, "config.yml"))
	assert.NoError(t, err)
}

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	partial := []byte("harvest:\n  min_balance: 9.0\n")
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), partial, 0o644))

	cfg, err := LoadConfig(dir)
	assert.NoError(t, err)
	assert.Equal(t, 9.0, cfg.Harvest.MinBalance)
	assert.Equal(t, Default().Horizon.URL, cfg.Horizon.URL)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestAssetByName(t *testing.T) {
	cfg := Default()

	asset, ok := cfg.AssetByName("KALE")
	assert.True(t, ok)
	assert.Equal(t, "KALE", asset.Name)

	_, ok = cfg.AssetByName("DOGE")
	assert.False(t, ok)
}

func TestMaxVolatilityOrDefault(t *testing.T) {
	assert.Equal(t, 0.5, Asset{}.MaxVolatilityOrDefault())
	assert.Equal(t, 0.3, Asset{MaxVolatility: 0.3}.MaxVolatilityOrDefault())
}
