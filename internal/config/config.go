package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all crobot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Twitter account and posting surface
	Twitter TwitterConfig `yaml:"twitter"`

	// Verification mailbox (IMAP)
	Mailbox MailboxConfig `yaml:"mailbox"`

	// Text generation
	Generator GeneratorConfig `yaml:"generator"`

	// Headless browser
	Browser BrowserConfig `yaml:"browser"`

	// Posting schedule
	Schedule ScheduleConfig `yaml:"schedule"`

	// Health endpoint
	Health HealthConfig `yaml:"health"`

	// Post history storage
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// TwitterConfig configures the account and posting behavior.
type TwitterConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Accounts whose latest tweets are candidates for replies.
	MonitoredAccounts []string `yaml:"monitored_accounts"`

	// Character budget for a single tweet. 260 leaves a safety margin
	// under the platform's 280 limit (URLs, emoji width).
	TweetLimit int `yaml:"tweet_limit"`
}

// MailboxConfig configures the IMAP mailbox that receives verification codes.
type MailboxConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Sender address the verification email is expected from.
	VerificationSender string `yaml:"verification_sender"`

	PollInterval string `yaml:"poll_interval"`
	WaitTimeout  string `yaml:"wait_timeout"`
}

// GeneratorConfig configures the text generation provider.
type GeneratorConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// Topic pool for generated posts.
	Topics []string `yaml:"topics"`
}

// BrowserConfig configures the headless Chromium instance.
type BrowserConfig struct {
	Bin            string `yaml:"bin"`
	Headless       bool   `yaml:"headless"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	NavTimeout     string `yaml:"nav_timeout"`

	// Path of the JSON file holding cookies/storage between runs.
	SessionFile string `yaml:"session_file"`

	// Directory for diagnostic screenshots. Empty disables capture.
	ScreenshotDir string `yaml:"screenshot_dir"`
}

// ScheduleConfig configures the randomized action loop.
type ScheduleConfig struct {
	MinInterval string `yaml:"min_interval"`
	MaxInterval string `yaml:"max_interval"`

	MaxPostsPerDay    int `yaml:"max_posts_per_day"`
	MaxCommentsPerDay int `yaml:"max_comments_per_day"`

	// Probability [0,1] that a cycle replies to a monitored account
	// instead of posting fresh content.
	CommentProbability float64 `yaml:"comment_probability"`
}

// HealthConfig configures the HTTP health surface.
type HealthConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig configures post history persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // debug, info, warn, error
	Dir     string `yaml:"dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "crobot",
		Version: "1.0.0",

		Twitter: TwitterConfig{
			TweetLimit: 260,
		},

		Mailbox: MailboxConfig{
			Host:               "imap.gmail.com",
			Port:               993,
			VerificationSender: "info@x.com",
			PollInterval:       "10s",
			WaitTimeout:        "3m",
		},

		Generator: GeneratorConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
			Topics: []string{
				"layer 2 scaling",
				"zero knowledge proofs",
				"restaking protocols",
				"onchain social",
				"modular blockchains",
			},
		},

		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			NavTimeout:     "60s",
			SessionFile:    "data/twitter_session.json",
			ScreenshotDir:  "data/screenshots",
		},

		Schedule: ScheduleConfig{
			MinInterval:        "45m",
			MaxInterval:        "2h",
			MaxPostsPerDay:     8,
			MaxCommentsPerDay:  12,
			CommentProbability: 0.4,
		},

		Health: HealthConfig{
			Addr: ":8080",
		},

		Storage: StorageConfig{
			DatabasePath: "data/crobot.db",
		},

		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "data/logs",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist, then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Secrets are
// expected to arrive this way in the deployed worker; the YAML file
// carries the non-secret tuning knobs.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TWITTER_USERNAME"); v != "" {
		c.Twitter.Username = v
	}
	if v := os.Getenv("TWITTER_PASSWORD"); v != "" {
		c.Twitter.Password = v
	}
	if v := os.Getenv("EMAIL_USERNAME"); v != "" {
		c.Mailbox.Username = v
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		c.Mailbox.Password = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Generator.APIKey = v
		if c.Generator.Provider == "" {
			c.Generator.Provider = "gemini"
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Generator.Provider == "openai" {
		c.Generator.APIKey = v
	}
	if v := os.Getenv("CHROME_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("CROBOT_DB"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("HEALTH_ADDR"); v != "" {
		c.Health.Addr = v
	}
}

// Validate validates the configuration. All five account/API secrets
// must be present before the worker starts.
func (c *Config) Validate() error {
	if c.Twitter.Username == "" {
		return fmt.Errorf("twitter username not configured (set TWITTER_USERNAME)")
	}
	if c.Twitter.Password == "" {
		return fmt.Errorf("twitter password not configured (set TWITTER_PASSWORD)")
	}
	if c.Mailbox.Username == "" {
		return fmt.Errorf("mailbox username not configured (set EMAIL_USERNAME)")
	}
	if c.Mailbox.Password == "" {
		return fmt.Errorf("mailbox password not configured (set EMAIL_PASSWORD)")
	}
	if c.Generator.APIKey == "" {
		return fmt.Errorf("generator API key not configured (set GEMINI_API_KEY)")
	}

	switch c.Generator.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("invalid generator provider: %s (valid: gemini, openai)", c.Generator.Provider)
	}

	if c.Schedule.MaxInterval != "" && c.GetMaxInterval() < c.GetMinInterval() {
		return fmt.Errorf("schedule max_interval %s is below min_interval %s",
			c.Schedule.MaxInterval, c.Schedule.MinInterval)
	}
	if p := c.Schedule.CommentProbability; p < 0 || p > 1 {
		return fmt.Errorf("comment_probability must be in [0,1], got %v", p)
	}
	return nil
}

// Redacted returns a copy safe for printing: secrets are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Twitter.Password = mask(c.Twitter.Password)
	out.Mailbox.Password = mask(c.Mailbox.Password)
	out.Generator.APIKey = mask(c.Generator.APIKey)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// GetNavTimeout returns the browser navigation timeout as a duration.
func (c *Config) GetNavTimeout() time.Duration {
	return parseDuration(c.Browser.NavTimeout, 60*time.Second)
}

// GetGeneratorTimeout returns the generation API timeout as a duration.
func (c *Config) GetGeneratorTimeout() time.Duration {
	return parseDuration(c.Generator.Timeout, 120*time.Second)
}

// GetPollInterval returns the mailbox poll interval as a duration.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Mailbox.PollInterval, 10*time.Second)
}

// GetWaitTimeout returns the verification wait timeout as a duration.
func (c *Config) GetWaitTimeout() time.Duration {
	return parseDuration(c.Mailbox.WaitTimeout, 3*time.Minute)
}

// GetMinInterval returns the minimum delay between actions.
func (c *Config) GetMinInterval() time.Duration {
	return parseDuration(c.Schedule.MinInterval, 45*time.Minute)
}

// GetMaxInterval returns the maximum delay between actions.
func (c *Config) GetMaxInterval() time.Duration {
	return parseDuration(c.Schedule.MaxInterval, 2*time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
