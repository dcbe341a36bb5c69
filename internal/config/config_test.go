// ABOUTME: Tests for environment configuration loading
// ABOUTME: Covers defaults, overrides and the lenient duration parser
package config

import (
	"testing"
	"time"
)

var allKeys = []string{
	"VL_GATEWAY_URL", "VL_GATEWAY_ADDR", "VL_GATEWAY_PREFIX", "VL_UPSTREAM_URL",
	"VL_GATEWAY_WRAP_ERRORS", "VL_MDNS", "SC_CLIENT_ID", "VITE_SC_CLIENT_ID",
	"VL_CREDENTIAL_FILE", "VL_REDIS_ADDR", "VL_REDIS_PASSWORD", "VL_REDIS_DB",
	"VL_STAGE_TIMEOUT", "VL_FRAME_RATE", "VL_CYCLE_INTERVAL", "VL_SHOWCASE_PRESET",
	"VL_REMOTE_ADDR", "VL_SAMPLE_RATE", "VL_VOLUME", "VL_LOG_LEVEL", "VL_LOG_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.UpstreamURL != DefaultUpstreamURL {
		t.Errorf("UpstreamURL = %q, want default", cfg.UpstreamURL)
	}
	if cfg.GatewayPrefix != "/sc-api" {
		t.Errorf("GatewayPrefix = %q, want /sc-api", cfg.GatewayPrefix)
	}
	if cfg.GatewayAddr != ":8927" {
		t.Errorf("GatewayAddr = %q, want :8927", cfg.GatewayAddr)
	}
	if cfg.StageTimeout != 10*time.Second {
		t.Errorf("StageTimeout = %v, want 10s", cfg.StageTimeout)
	}
	if cfg.CycleInterval != 15*time.Second {
		t.Errorf("CycleInterval = %v, want 15s", cfg.CycleInterval)
	}
	if cfg.ShowcasePreset != DefaultShowcasePreset {
		t.Errorf("ShowcasePreset = %q, want showcase", cfg.ShowcasePreset)
	}
	if cfg.DefaultClientID != "" {
		t.Errorf("DefaultClientID = %q, want empty", cfg.DefaultClientID)
	}
	if cfg.Volume != 0.5 {
		t.Errorf("Volume = %v, want 0.5", cfg.Volume)
	}
	if !cfg.Advertise {
		t.Error("Advertise should default to true")
	}
	if cfg.CredentialFile == "" {
		t.Error("CredentialFile should have a default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VL_GATEWAY_URL", "http://localhost:9000/sc-api/")
	t.Setenv("VL_GATEWAY_PREFIX", "proxy/")
	t.Setenv("VITE_SC_CLIENT_ID", "from-vite")
	t.Setenv("VL_STAGE_TIMEOUT", "3")
	t.Setenv("VL_CYCLE_INTERVAL", "500ms")
	t.Setenv("VL_FRAME_RATE", "30")
	t.Setenv("VL_GATEWAY_WRAP_ERRORS", "true")

	cfg := Load()

	if cfg.GatewayURL != "http://localhost:9000/sc-api" {
		t.Errorf("GatewayURL = %q, trailing slash should be trimmed", cfg.GatewayURL)
	}
	if cfg.GatewayPrefix != "/proxy" {
		t.Errorf("GatewayPrefix = %q, want /proxy", cfg.GatewayPrefix)
	}
	if cfg.DefaultClientID != "from-vite" {
		t.Errorf("DefaultClientID = %q, want from-vite", cfg.DefaultClientID)
	}
	if cfg.StageTimeout != 3*time.Second {
		t.Errorf("StageTimeout = %v, want 3s", cfg.StageTimeout)
	}
	if cfg.CycleInterval != 500*time.Millisecond {
		t.Errorf("CycleInterval = %v, want 500ms", cfg.CycleInterval)
	}
	if cfg.FrameInterval() != time.Second/30 {
		t.Errorf("FrameInterval = %v, want 1/30s", cfg.FrameInterval())
	}
	if !cfg.WrapErrors {
		t.Error("WrapErrors should be true")
	}
}

func TestClientIDPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("SC_CLIENT_ID", "primary")
	t.Setenv("VITE_SC_CLIENT_ID", "secondary")

	if got := Load().DefaultClientID; got != "primary" {
		t.Errorf("DefaultClientID = %q, want primary", got)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("VL_FRAME_RATE", "fast")
	t.Setenv("VL_STAGE_TIMEOUT", "soon")

	cfg := Load()
	if cfg.FrameRate != DefaultFrameRate {
		t.Errorf("FrameRate = %d, want default", cfg.FrameRate)
	}
	if cfg.StageTimeout != DefaultStageTimeout {
		t.Errorf("StageTimeout = %v, want default", cfg.StageTimeout)
	}
}
