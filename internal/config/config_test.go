package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("PAY_GATEWAY_KEY", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.PayGatewayKey != "" {
		t.Fatalf("expected empty PAY_GATEWAY_KEY when unset, got %q", cfg.PayGatewayKey)
	}
}

func TestLoadTerminalPrefs(t *testing.T) {
	t.Setenv("AUTO_PRINT", "false")
	t.Setenv("AUTO_OPEN_DRAWER", "")
	t.Setenv("LARGE_CHANGE_THRESHOLD", "250")

	cfg := Load()
	if cfg.AutoPrint {
		t.Fatalf("expected AUTO_PRINT=false to be honored")
	}
	if !cfg.AutoOpenDrawer {
		t.Fatalf("expected drawer preference to default on")
	}
	if cfg.LargeChangeThreshold != 250 {
		t.Fatalf("expected threshold 250, got %v", cfg.LargeChangeThreshold)
	}
}

func TestLoadFallsBackOnBadNumbers(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "not-a-number")
	t.Setenv("LARGE_CHANGE_THRESHOLD", "-5")

	cfg := Load()
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.LargeChangeThreshold != 100 {
		t.Fatalf("expected default threshold 100, got %v", cfg.LargeChangeThreshold)
	}
}
