package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all credential environment variables.
const EnvPrefix = "KONTOMANAGER_"

// ConfigurationError reports missing or invalid startup configuration. It is
// fatal: the server refuses to start without valid credentials and brand.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// brandURLs maps the three supported brands to their portal base URLs.
var brandURLs = map[string]string{
	"yesss": "https://www.yesss.at/kontomanager.at/app/",
	"georg": "https://kundencenter.georg.at/app/",
	"xoxo":  "https://xoxo.kontomanager.at/app/",
}

// Config captures all tunable settings for the Kontomanager MCP server.
// Credentials come from the environment (or a .env file); the YAML file only
// overlays server and portal tuning.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Portal PortalConfig `yaml:"portal"`
	MCP    MCPConfig    `yaml:"mcp"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
}

// PortalConfig configures the portal session client. Brand, Username and
// Password are environment-only and never read from YAML.
type PortalConfig struct {
	Brand    string `yaml:"-"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
	// HTTP timeout per portal request (e.g. "30s"). The portal can hang;
	// a timeout is mandatory.
	HTTPTimeout string `yaml:"http_timeout"`
	// ExtraSimSettings extends the recognized SIM toggle names. The portal
	// enumerates the set; this covers toggles added after this release.
	ExtraSimSettings []string `yaml:"extra_sim_settings"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
}

// DefaultConfig provides the defaults for a stdio deployment.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "kontomanager-mcp",
			Version: "0.1.0",
			LogFile: "kontomanager-mcp.log",
		},
		Portal: PortalConfig{
			HTTPTimeout: "30s",
		},
		MCP: MCPConfig{
			SSEPort: 0,
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML overlay,
// then credentials from the environment (with .env support). Missing
// credentials or an unknown brand fail with ConfigurationError.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg.Portal.Brand = strings.ToLower(strings.TrimSpace(os.Getenv(EnvPrefix + "BRAND")))
	cfg.Portal.Username = strings.TrimSpace(os.Getenv(EnvPrefix + "USERNAME"))
	cfg.Portal.Password = os.Getenv(EnvPrefix + "PASSWORD")

	return cfg, cfg.Validate()
}

// Validate ensures the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return &ConfigurationError{Reason: "server.name is required"}
	}
	if c.Portal.Brand == "" {
		return &ConfigurationError{Reason: EnvPrefix + "BRAND is required"}
	}
	if _, ok := brandURLs[c.Portal.Brand]; !ok {
		return &ConfigurationError{Reason: fmt.Sprintf("unknown brand %q, supported brands are %s",
			c.Portal.Brand, strings.Join(SupportedBrands(), ", "))}
	}
	if c.Portal.Username == "" {
		return &ConfigurationError{Reason: EnvPrefix + "USERNAME is required"}
	}
	if c.Portal.Password == "" {
		return &ConfigurationError{Reason: EnvPrefix + "PASSWORD is required"}
	}
	return nil
}

// SupportedBrands lists the known brand identifiers, sorted.
func SupportedBrands() []string {
	brands := make([]string, 0, len(brandURLs))
	for brand := range brandURLs {
		brands = append(brands, brand)
	}
	sort.Strings(brands)
	return brands
}

// BaseURL returns the portal base URL for the configured brand.
func (p PortalConfig) BaseURL() string {
	return brandURLs[p.Brand]
}

// Timeout returns the parsed per-request timeout with a sane default.
func (p PortalConfig) Timeout() time.Duration {
	if p.HTTPTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(p.HTTPTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// MaskPassword renders a password safe for log output.
func MaskPassword(password string) string {
	if len(password) == 0 {
		return ""
	}
	if len(password) <= 2 {
		return strings.Repeat("*", len(password))
	}
	return string(password[0]) + strings.Repeat("*", len(password)-2) + string(password[len(password)-1])
}
