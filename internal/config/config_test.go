package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv(EnvPrefix+"BRAND", "yesss")
	t.Setenv(EnvPrefix+"USERNAME", "06641234567")
	t.Setenv(EnvPrefix+"PASSWORD", "secret")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Name != "kontomanager-mcp" {
		t.Errorf("server name = %q", cfg.Server.Name)
	}
	if cfg.Server.LogFile == "" {
		t.Error("stdio deployments need a default log file")
	}
	if cfg.Portal.HTTPTimeout != "30s" {
		t.Errorf("http timeout = %q", cfg.Portal.HTTPTimeout)
	}
	if cfg.MCP.SSEPort != 0 {
		t.Errorf("sse port = %d, want stdio default 0", cfg.MCP.SSEPort)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	setCredentials(t)
	t.Setenv(EnvPrefix+"BRAND", " YESSS ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Portal.Brand != "yesss" {
		t.Errorf("brand = %q, want trimmed lowercase", cfg.Portal.Brand)
	}
	if cfg.Portal.Username != "06641234567" || cfg.Portal.Password != "secret" {
		t.Errorf("credentials = %q / %q", cfg.Portal.Username, cfg.Portal.Password)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing brand", "BRAND"},
		{"missing username", "USERNAME"},
		{"missing password", "PASSWORD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setCredentials(t)
			t.Setenv(EnvPrefix+tt.unset, "")

			_, err := Load("")
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if !strings.Contains(cfgErr.Error(), tt.unset) {
				t.Errorf("error %q should name the missing variable %s", cfgErr, tt.unset)
			}
		})
	}
}

func TestLoadUnknownBrand(t *testing.T) {
	setCredentials(t)
	t.Setenv(EnvPrefix+"BRAND", "telering")

	_, err := Load("")
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !strings.Contains(cfgErr.Error(), "telering") {
		t.Errorf("error should name the unknown brand: %v", cfgErr)
	}
	for _, brand := range SupportedBrands() {
		if !strings.Contains(cfgErr.Error(), brand) {
			t.Errorf("error should list supported brand %s: %v", brand, cfgErr)
		}
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	setCredentials(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	overlay := `
server:
  name: custom-name
  log_file: /tmp/custom.log
portal:
  http_timeout: 10s
  extra_sim_settings:
    - fancy-new-toggle
mcp:
  sse_port: 8931
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("writing overlay: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Name != "custom-name" {
		t.Errorf("server name = %q", cfg.Server.Name)
	}
	if cfg.Server.Version != "0.1.0" {
		t.Errorf("version = %q, default should survive a partial overlay", cfg.Server.Version)
	}
	if cfg.Portal.HTTPTimeout != "10s" {
		t.Errorf("http timeout = %q", cfg.Portal.HTTPTimeout)
	}
	if len(cfg.Portal.ExtraSimSettings) != 1 || cfg.Portal.ExtraSimSettings[0] != "fancy-new-toggle" {
		t.Errorf("extra sim settings = %v", cfg.Portal.ExtraSimSettings)
	}
	if cfg.MCP.SSEPort != 8931 {
		t.Errorf("sse port = %d", cfg.MCP.SSEPort)
	}
}

func TestLoadYAMLCannotSetCredentials(t *testing.T) {
	setCredentials(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	overlay := `
portal:
  brand: georg
  username: attacker
  password: hunter2
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("writing overlay: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Portal.Brand != "yesss" || cfg.Portal.Username != "06641234567" || cfg.Portal.Password != "secret" {
		t.Errorf("credentials leaked from YAML: %+v", cfg.Portal)
	}
}

func TestLoadMissingFile(t *testing.T) {
	setCredentials(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		brand string
		want  string
	}{
		{"yesss", "https://www.yesss.at/kontomanager.at/app/"},
		{"georg", "https://kundencenter.georg.at/app/"},
		{"xoxo", "https://xoxo.kontomanager.at/app/"},
	}
	for _, tt := range tests {
		p := PortalConfig{Brand: tt.brand}
		if got := p.BaseURL(); got != tt.want {
			t.Errorf("BaseURL(%s) = %q, want %q", tt.brand, got, tt.want)
		}
	}
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout string
		want    time.Duration
	}{
		{"empty falls back", "", 30 * time.Second},
		{"parsed", "10s", 10 * time.Second},
		{"garbage falls back", "soon", 30 * time.Second},
		{"non-positive falls back", "-5s", 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PortalConfig{HTTPTimeout: tt.timeout}
			if got := p.Timeout(); got != tt.want {
				t.Errorf("Timeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSupportedBrands(t *testing.T) {
	brands := SupportedBrands()
	want := []string{"georg", "xoxo", "yesss"}
	if len(brands) != len(want) {
		t.Fatalf("brands = %v", brands)
	}
	for i, brand := range want {
		if brands[i] != brand {
			t.Errorf("brands[%d] = %q, want %q (sorted)", i, brands[i], brand)
		}
	}
}

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a", "*"},
		{"ab", "**"},
		{"secret", "s****t"},
	}
	for _, tt := range tests {
		if got := MaskPassword(tt.in); got != tt.want {
			t.Errorf("MaskPassword(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
