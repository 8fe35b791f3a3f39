// Package config loads the service configuration using viper, with
// environment variable overrides under the SCRAPER_ prefix and flags
// bound through cobra in cmd/server. No package-level mutable state:
// Load returns a Config value that callers pass explicitly into
// constructors (DESIGN NOTES: inject configuration at startup).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "SCRAPER"

	defaultHost                  = "0.0.0.0"
	defaultPort                  = 8080
	defaultTokenHeaderName       = "X-API-Token"
	defaultRequestTimeoutSeconds = 150
	defaultContextTTLMinutes     = 30
	defaultMaxPagesPerContext    = 50
	defaultCacheTTLSeconds       = 21600 // 6h
	defaultCacheCapacity         = 2000
	defaultMaxConcurrentRequests = 2
	defaultRateLimitSeconds      = 1.5
	defaultViewportWidth         = 1366
	defaultViewportHeight        = 768
)

// IsolationMode selects how the browser context pool partitions contexts
// between search and detail navigation. See internal/browser.
type IsolationMode string

const (
	IsolationShared            IsolationMode = "shared"
	IsolationSplitSearchDetail IsolationMode = "split_search_detail"
)

// ProviderConfig holds the per-provider admission and pacing settings
// named in spec §6: MaxConcurrentRequests and RateLimitSeconds.
type ProviderConfig struct {
	MaxConcurrentRequests int     `mapstructure:"maxConcurrentRequests"`
	RateLimitSeconds      float64 `mapstructure:"rateLimitSeconds"`
}

// BrowserConfig configures the C2 Browser Context Pool.
type BrowserConfig struct {
	ContextTTL                time.Duration `mapstructure:"-"`
	ContextTtlMinutes         int           `mapstructure:"contextTtlMinutes"`
	MaxPagesPerContext        int           `mapstructure:"maxPagesPerContext"`
	RotateOnChallengeDetected bool          `mapstructure:"rotateOnChallengeDetected"`
	IsolationMode             IsolationMode `mapstructure:"isolationMode"`
	UserAgent                 string        `mapstructure:"userAgent"`
	Locale                    string        `mapstructure:"locale"`
	TimezoneID                string        `mapstructure:"timezoneId"`
	AcceptLanguage            string        `mapstructure:"acceptLanguage"`
	ViewportWidth             int           `mapstructure:"viewportWidth"`
	ViewportHeight            int           `mapstructure:"viewportHeight"`
	ChallengeURLHints         []string      `mapstructure:"challengeUrlHints"`
	ChallengeDomHints         []string      `mapstructure:"challengeDomHints"`
	ChromeBinaryPath          string        `mapstructure:"chromeBinaryPath"`
}

// CacheConfig configures the C6 Metadata Cache.
type CacheConfig struct {
	TTL      time.Duration `mapstructure:"-"`
	TTLSeconds int         `mapstructure:"ttlSeconds"`
	Capacity int           `mapstructure:"capacity"`
}

// Config is the fully-resolved service configuration.
type Config struct {
	Port                  int                        `mapstructure:"port"`
	Host                  string                      `mapstructure:"host"`
	AuthToken             string                      `mapstructure:"authToken"`
	TokenHeaderName       string                      `mapstructure:"tokenHeaderName"`
	RequestTimeoutSeconds int                          `mapstructure:"requestTimeoutSeconds"`
	Providers             map[string]ProviderConfig    `mapstructure:"providers"`
	Browser               BrowserConfig                `mapstructure:"browser"`
	Cache                 CacheConfig                  `mapstructure:"cache"`
}

// RequestTimeout is the configured hard deadline applied in the service shell.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// AuthEnabled reports whether a bearer token check is configured.
func (c Config) AuthEnabled() bool {
	return strings.TrimSpace(c.AuthToken) != ""
}

// ProviderSettings returns the resolved settings for a provider, falling
// back to package defaults when the provider has no explicit entry.
func (c Config) ProviderSettings(provider string) ProviderConfig {
	if settings, ok := c.Providers[provider]; ok {
		return settings
	}
	return ProviderConfig{
		MaxConcurrentRequests: defaultMaxConcurrentRequests,
		RateLimitSeconds:      defaultRateLimitSeconds,
	}
}

// Load builds a Config from viper's merged view of defaults, optional
// config file, environment variables (SCRAPER_*), and bound flags.
// Configure must already have been called on v for the environment layer.
func Load(v *viper.Viper) (Config, error) {
	applyDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.Browser.ContextTTL = time.Duration(cfg.Browser.ContextTtlMinutes) * time.Minute
	cfg.Cache.TTL = time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if cfg.Browser.IsolationMode == "" {
		cfg.Browser.IsolationMode = IsolationShared
	}
	return cfg, nil
}

// Configure wires up the environment-variable layer: SCRAPER_PORT,
// SCRAPER_AUTH_TOKEN, etc., with nested keys joined by underscores.
//
// AutomaticEnv alone only rewrites the replacer's "."/"-" separators; a
// camelCase key like authToken would resolve to SCRAPER_AUTHTOKEN, not
// the underscore-separated SCRAPER_AUTH_TOKEN the env-var layer promises.
// Bind that one explicitly rather than relying on the replacer to split
// camelCase.
func Configure(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("authToken", "SCRAPER_AUTH_TOKEN") // only errors when called with no key args
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("host", defaultHost)
	v.SetDefault("tokenHeaderName", defaultTokenHeaderName)
	v.SetDefault("requestTimeoutSeconds", defaultRequestTimeoutSeconds)
	v.SetDefault("browser.contextTtlMinutes", defaultContextTTLMinutes)
	v.SetDefault("browser.maxPagesPerContext", defaultMaxPagesPerContext)
	v.SetDefault("browser.rotateOnChallengeDetected", true)
	v.SetDefault("browser.isolationMode", string(IsolationShared))
	v.SetDefault("browser.viewportWidth", defaultViewportWidth)
	v.SetDefault("browser.viewportHeight", defaultViewportHeight)
	v.SetDefault("browser.acceptLanguage", "en-US,en;q=0.9")
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezoneId", "America/New_York")
	v.SetDefault("browser.challengeUrlHints", []string{"/cdn-cgi/challenge-platform/", "__cf_chl"})
	v.SetDefault("browser.challengeDomHints", []string{"#challenge-form", "#cf-challenge-running"})
	v.SetDefault("cache.ttlSeconds", defaultCacheTTLSeconds)
	v.SetDefault("cache.capacity", defaultCacheCapacity)
}
