package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_UsesCheckoutServiceInternalAPIKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "INTERNAL_API_KEY")
	setEnvWithCleanup(t, "CHECKOUT_SERVICE_INTERNAL_API_KEY", "alias-only-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "alias-only-key" {
		t.Fatalf("expected InternalAPIKey from alias env var, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "REMARKETING_DRAIN_BATCH_SIZE")
	unsetEnvWithCleanup(t, "LOCAL_TIMEZONE")
	unsetEnvWithCleanup(t, "GATEWAY_TIMEOUT_SECONDS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RemarketingDrainBatchSize != 50 {
		t.Fatalf("expected default drain batch size 50, got %d", cfg.RemarketingDrainBatchSize)
	}
	if cfg.LocalTimezone != "Africa/Maputo" {
		t.Fatalf("expected default timezone Africa/Maputo, got %q", cfg.LocalTimezone)
	}
	if cfg.GatewayTimeoutSeconds != 30 {
		t.Fatalf("expected default gateway timeout 30s, got %d", cfg.GatewayTimeoutSeconds)
	}
	if cfg.SaleEventQueue == "" {
		t.Fatal("expected a default sale event queue name")
	}
}

func TestLoadConfig_CapsRemarketingBatchSize(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "REMARKETING_DRAIN_BATCH_SIZE", "10000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RemarketingDrainBatchSize != 500 {
		t.Fatalf("expected batch size capped at 500, got %d", cfg.RemarketingDrainBatchSize)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
