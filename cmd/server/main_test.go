package main

import (
	"testing"

	"xiaomupos/backend/internal/config"
)

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigRequiresGatewayKey(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		PayGatewayURL: "http://127.0.0.1:9000",
	})
	if err == nil {
		t.Fatalf("expected missing gateway key to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
