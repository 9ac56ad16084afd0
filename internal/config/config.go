// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Site        SiteConfig        `mapstructure:"site" yaml:"site"`
	Partner     PartnerConfig     `mapstructure:"partner" yaml:"partner"`
	Run         RunConfig         `mapstructure:"run" yaml:"run"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// CredentialsConfig points at the external account sources.
type CredentialsConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	GroupsFile string `mapstructure:"groups_file" yaml:"groups_file"`
}

// BrowserConfig holds settings for the Chrome instances the drivers launch.
// Windows are headful by default: the whole point of the tool is to hand a
// logged-in window over to the operator.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	Args         []string `mapstructure:"args" yaml:"args"`
	ArtifactsDir string   `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`

	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	SecondFactorWait  time.Duration `mapstructure:"second_factor_wait" yaml:"second_factor_wait"`
	VerifyTimeout     time.Duration `mapstructure:"verify_timeout" yaml:"verify_timeout"`

	// Pacing between keystrokes/clicks. The target site throttles logins that
	// arrive faster than a human could type.
	ShortDelay          time.Duration `mapstructure:"short_delay" yaml:"short_delay"`
	InterKeyDelay       time.Duration `mapstructure:"inter_key_delay" yaml:"inter_key_delay"`
	PostLoginClickDelay time.Duration `mapstructure:"post_login_click_delay" yaml:"post_login_click_delay"`
	PostFactorKeyDelay  time.Duration `mapstructure:"post_factor_key_delay" yaml:"post_factor_key_delay"`
	PostSubmitDelay     time.Duration `mapstructure:"post_submit_delay" yaml:"post_submit_delay"`
}

// SiteConfig describes the primary login target: URL, element locators, and the
// post-login indicator used for verification. Locators are external facts about
// the site's DOM; they live in config so a markup change does not require a
// rebuild.
type SiteConfig struct {
	LoginURL           string `mapstructure:"login_url" yaml:"login_url"`
	UserSelector       string `mapstructure:"user_selector" yaml:"user_selector"`
	PasswordSelector   string `mapstructure:"password_selector" yaml:"password_selector"`
	SubmitSelector     string `mapstructure:"submit_selector" yaml:"submit_selector"`
	FactorSelector     string `mapstructure:"factor_selector" yaml:"factor_selector"`
	DashboardURLPrefix string `mapstructure:"dashboard_url_prefix" yaml:"dashboard_url_prefix"`
	DashboardSelector  string `mapstructure:"dashboard_selector" yaml:"dashboard_selector"`
}

// PartnerConfig describes the optional secondary partner-site login performed in
// a new tab after the primary login verifies. After the credential submit the
// driver walks PostLoginSteps (the broker-setup navigation) and finally clicks
// the account's entry from AccountButtons, when one is configured.
type PartnerConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	URL              string `mapstructure:"url" yaml:"url"`
	Phone            string `mapstructure:"phone" yaml:"phone"`
	Password         string `mapstructure:"password" yaml:"-"`
	OpenFormSelector string `mapstructure:"open_form_selector" yaml:"open_form_selector"`
	PhoneSelector    string `mapstructure:"phone_selector" yaml:"phone_selector"`
	PasswordSelector string `mapstructure:"password_selector" yaml:"password_selector"`
	SubmitSelector   string `mapstructure:"submit_selector" yaml:"submit_selector"`

	PostLoginSteps []PartnerStep          `mapstructure:"post_login_steps" yaml:"post_login_steps"`
	AccountButtons map[string]PartnerStep `mapstructure:"account_buttons" yaml:"account_buttons"`
}

// PartnerStep is one click in the partner site's post-login navigation. The
// fallback locator is tried when the primary one does not resolve; the
// partner site's markup shifts often enough that most steps carry one.
type PartnerStep struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Selector string `mapstructure:"selector" yaml:"selector"`
	Fallback string `mapstructure:"fallback" yaml:"fallback"`
}

// RunConfig bounds the fan-out of concurrent login attempts.
type RunConfig struct {
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`
	LaunchStagger time.Duration `mapstructure:"launch_stagger" yaml:"launch_stagger"`
}

// SetDefaults initializes default values for all configuration parameters.
// The timing defaults mirror the pacing the target site is known to tolerate.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "kitelaunch")
	v.SetDefault("logger.log_file", "kitelaunch.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Credentials --
	v.SetDefault("credentials.file", "config/credentials.csv")
	v.SetDefault("credentials.groups_file", "config/groups.json")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.artifacts_dir", "artifacts")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.element_timeout", "30s")
	v.SetDefault("browser.second_factor_wait", "6s")
	v.SetDefault("browser.verify_timeout", "20s")
	v.SetDefault("browser.short_delay", "750ms")
	v.SetDefault("browser.inter_key_delay", "375ms")
	v.SetDefault("browser.post_login_click_delay", "4s")
	v.SetDefault("browser.post_factor_key_delay", "1s")
	v.SetDefault("browser.post_submit_delay", "750ms")

	// -- Site --
	v.SetDefault("site.login_url", "https://kite.zerodha.com/")
	v.SetDefault("site.user_selector", "#userid")
	v.SetDefault("site.password_selector", "#password")
	v.SetDefault("site.submit_selector", `button[type="submit"]`)
	v.SetDefault("site.factor_selector", "#userid")
	v.SetDefault("site.dashboard_url_prefix", "https://kite.zerodha.com/dashboard")
	v.SetDefault("site.dashboard_selector", ".app")

	// -- Partner --
	v.SetDefault("partner.enabled", false)
	v.SetDefault("partner.url", "https://algotest.in/live")
	v.SetDefault("partner.post_login_steps", []map[string]interface{}{
		{
			"name":     "broker setup",
			"selector": "/html/body/div[1]/div/div/nav/div[2]/div[1]/a[2]",
			"fallback": "/html/body/div[1]/div/div/div[2]/div/div[2]/div[3]/div/a/button",
		},
		{
			"name":     "unlisted broker",
			"selector": `//p[contains(text(), "Unlisted Broker")]`,
			"fallback": "/html/body/div[1]/div/div/div/div/div/div[3]/div/div/div/div[1]/div[1]/div[1]/p",
		},
	})

	// -- Run --
	v.SetDefault("run.concurrency", 4)
	v.SetDefault("run.launch_stagger", "2s")
}

// NewFromViper builds and validates a Config from a viper instance.
func NewFromViper(v *viper.Viper) (*Config, error) {
	// Partner-site password only ever comes from the environment.
	v.BindEnv("partner.password", "KITELAUNCH_PARTNER_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a Config populated with defaults only. Used by tests
// and as a fallback when no config file is present.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Credentials.File == "" {
		return fmt.Errorf("credentials.file is a required configuration field")
	}
	if c.Run.Concurrency <= 0 {
		return fmt.Errorf("run.concurrency must be a positive integer")
	}
	if c.Site.LoginURL == "" {
		return fmt.Errorf("site.login_url is a required configuration field")
	}
	if c.Browser.NavigationTimeout <= 0 || c.Browser.ElementTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be positive durations")
	}
	if err := c.Partner.Validate(); err != nil {
		return fmt.Errorf("partner configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the partner-site configuration.
func (p *PartnerConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.URL == "" {
		return fmt.Errorf("url is required when the partner flow is enabled")
	}
	if p.Phone == "" || p.Password == "" {
		return fmt.Errorf("phone and password are required when the partner flow is enabled (set KITELAUNCH_PARTNER_PASSWORD)")
	}
	for _, step := range p.PostLoginSteps {
		if step.Selector == "" {
			return fmt.Errorf("post-login step %q has no selector", step.Name)
		}
	}
	return nil
}
