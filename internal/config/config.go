// Package config loads the regpool settings file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Duration decodes TOML strings such as "5s" or "2m"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds all regpool configuration
type Config struct {
	BitBrowser BitBrowserConfig `toml:"bitbrowser"`
	SMS        SMSConfig        `toml:"sms"`
	Proxy      ProxyConfig      `toml:"proxy"`
	Docker     DockerConfig     `toml:"docker"`
	Site       SiteConfig       `toml:"site"`
	Paths      PathsConfig      `toml:"paths"`
	Run        RunConfig        `toml:"run"`
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
}

// BitBrowserConfig points at the local BitBrowser API
type BitBrowserConfig struct {
	APIBase string   `toml:"api_base"`
	Timeout Duration `toml:"timeout"`
}

// SMSConfig configures the verification code provider
type SMSConfig struct {
	BaseURL      string   `toml:"base_url"`
	Token        string   `toml:"token"`
	ItemID       int      `toml:"item_id"`
	PollInterval Duration `toml:"poll_interval"`
	PollTimeout  Duration `toml:"poll_timeout"`
}

// ProxyConfig configures the dynamic egress proxy source
type ProxyConfig struct {
	SourceURL string `toml:"source_url"`
}

// DockerConfig switches the browser backend to self-hosted containers
type DockerConfig struct {
	Enabled bool   `toml:"enabled"`
	Image   string `toml:"image"`
}

// SiteConfig holds the registration site entry points
type SiteConfig struct {
	TopURL         string `toml:"top_url"`
	EntryURL       string `toml:"entry_url"`
	CertificateURL string `toml:"certificate_url"`
}

// PathsConfig holds reference data and output locations
type PathsConfig struct {
	Names       string `toml:"names"`
	Avatars     string `toml:"avatars"`
	Images      string `toml:"images"`
	Logs        string `toml:"logs"`
	DB          string `toml:"db"`
	Reports     string `toml:"reports"`
	TempUploads string `toml:"temp_uploads"`
}

// RunConfig holds task run defaults
type RunConfig struct {
	Count       int      `toml:"count"`
	Concurrency int      `toml:"concurrency"`
	Stagger     Duration `toml:"stagger"`
	UseProxy    bool     `toml:"use_proxy"`
	AutoClose   bool     `toml:"auto_close"`
}

// ServerConfig controls the control API
type ServerConfig struct {
	Addr        string `toml:"addr"`
	RatePerHour int    `toml:"rate_per_hour"`
	Burst       int    `toml:"burst"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a configuration that works against a local BitBrowser
func DefaultConfig() Config {
	return Config{
		BitBrowser: BitBrowserConfig{
			APIBase: "http://127.0.0.1:54345",
			Timeout: Duration{60 * time.Second},
		},
		SMS: SMSConfig{
			BaseURL:      "http://www.firefox.fun/yhapi.ashx",
			ItemID:       2612,
			PollInterval: Duration{5 * time.Second},
			PollTimeout:  Duration{120 * time.Second},
		},
		Docker: DockerConfig{
			Image: "browserless/chrome:latest",
		},
		Site: SiteConfig{
			TopURL:         "https://www.194964.com/top.php",
			EntryURL:       "https://www.194964.com/entry.php",
			CertificateURL: "https://sp.194964.com/nochild/certificate/show_certificate_picture.html",
		},
		Paths: PathsConfig{
			Names:       "resources/names.txt",
			Avatars:     "assets/avatars",
			Images:      "images",
			Logs:        "data/logs",
			DB:          "data/tasks.db",
			Reports:     "data/records",
			TempUploads: "temp_uploads",
		},
		Run: RunConfig{
			Count:       1,
			Concurrency: 1,
			Stagger:     Duration{3 * time.Second},
			AutoClose:   true,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			RatePerHour: 100,
			Burst:       10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path over the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("REGPOOL_SMS_TOKEN"); v != "" {
		c.SMS.Token = v
	}
	if v := os.Getenv("REGPOOL_SMS_ITEM"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REGPOOL_SMS_ITEM %q: %w", v, err)
		}
		c.SMS.ItemID = id
	}
	if v := os.Getenv("REGPOOL_BITBROWSER_API"); v != "" {
		c.BitBrowser.APIBase = v
	}
	if v := os.Getenv("REGPOOL_PROXY_URL"); v != "" {
		c.Proxy.SourceURL = v
	}
	if v := os.Getenv("REGPOOL_DB"); v != "" {
		c.Paths.DB = v
	}
	if v := os.Getenv("REGPOOL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the settings a run depends on
func (c Config) Validate() error {
	var errs []error
	if c.SMS.Token == "" {
		errs = append(errs, errors.New("sms token is required (sms.token or REGPOOL_SMS_TOKEN)"))
	}
	if c.Run.Count < 1 {
		errs = append(errs, fmt.Errorf("run count must be at least 1, got %d", c.Run.Count))
	}
	if c.Run.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("run concurrency must be at least 1, got %d", c.Run.Concurrency))
	}
	if c.SMS.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("sms poll_interval must be positive"))
	}
	if c.SMS.PollTimeout.Duration < c.SMS.PollInterval.Duration {
		errs = append(errs, errors.New("sms poll_timeout must not be shorter than poll_interval"))
	}
	if c.Run.UseProxy && c.Proxy.SourceURL == "" {
		errs = append(errs, errors.New("proxy source_url is required when use_proxy is set"))
	}
	if c.Run.UseProxy && c.Docker.Enabled {
		errs = append(errs, errors.New("use_proxy needs the bitbrowser backend: docker windows cannot authenticate to a proxy"))
	}
	return errors.Join(errs...)
}
