package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "UAH", cfg.Currency)
	require.Equal(t, 10*time.Minute, cfg.ReplayWindow)
	require.Equal(t, 720*time.Hour, cfg.WebhookRetention)
	require.False(t, cfg.IsProduction())
	require.False(t, cfg.ChainEnabled())
}

func TestChainEnabledNeedsURLAndTreasury(t *testing.T) {
	t.Setenv("CHAIN_RPC_URL", "http://127.0.0.1:8545")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.False(t, cfg.ChainEnabled())

	t.Setenv("CHAIN_TREASURY_ADDRESS", "0x52908400098527886E0F7030069857D2E4169EE7")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.ChainEnabled())
}
