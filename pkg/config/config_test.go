package config

import (
	"testing"
	"time"
)

func TestEnvReaderAndGetters(t *testing.T) {
	t.Setenv("INSTALLER_TEST_VALUE", " 42 ")
	t.Setenv("INSTALLER_TEST_BOOL", "true")
	t.Setenv("INSTALLER_TEST_BAD", "nope")

	if v, ok := (EnvReader{}).Lookup("INSTALLER_TEST_VALUE"); !ok || v != " 42 " {
		t.Fatalf("unexpected env lookup %q %v", v, ok)
	}
	if got := GetInt("INSTALLER_TEST_VALUE", 1); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := GetInt("INSTALLER_TEST_BAD", 7); got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}
	if !GetBool("INSTALLER_TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	if got := GetSeconds("INSTALLER_TEST_VALUE", time.Second); got != 42*time.Second {
		t.Fatalf("expected 42s, got %s", got)
	}
	if got := GetSeconds("INSTALLER_TEST_BAD", 3*time.Second); got != 3*time.Second {
		t.Fatalf("expected fallback duration, got %s", got)
	}
}

func TestLoadInstallerConfigDefaults(t *testing.T) {
	t.Setenv("INSTALLER_ADDR", ":9090")
	cfg := LoadInstallerConfig()
	if cfg.Addr != ":9090" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.LicenseTimeout != 15*time.Second || cfg.ProbeTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts %s %s", cfg.LicenseTimeout, cfg.ProbeTimeout)
	}
}
