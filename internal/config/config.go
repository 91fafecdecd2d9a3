// Load envs from .env
// Load YAML config
// Override with env vars
// Provide default values and validate

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"hirefire-scraper/internal/models"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "configs/config.yaml"
	// KeyringService groups account passwords in the OS keychain.
	KeyringService = "hirefire-scraper"
)

// Link collection strategies.
const (
	LinksSingle    = "single"
	LinksPaginated = "paginated"
)

// Session backends.
const (
	BackendHTTP    = "http"
	BackendBrowser = "browser"
)

type Config struct {
	BaseURL  string           `yaml:"base_url"`
	Accounts []models.Account `yaml:"accounts"`

	TelegramToken string               `yaml:"telegram_token"`
	TelegramAPI   string               `yaml:"telegram_api_endpoint"`
	Destinations  []models.Destination `yaml:"-"`
	// Warnings are non-fatal problems found while loading, logged by the caller.
	Warnings      []string             `yaml:"-"`
	LogLevel      string               `yaml:"log_level"`
	SeenFile      string               `yaml:"seen_file"`
	LogDir        string               `yaml:"log_dir"`
	DatabaseURL   string               `yaml:"database_url"`
	RunToken      string               `yaml:"run_token"`
	Port          string               `yaml:"port"`

	//Working window
	Timezone      string `yaml:"timezone"`
	WorkStartHour int    `yaml:"work_start_hour"`
	WorkEndHour   int    `yaml:"work_end_hour"`

	//Scraping
	LinkStrategy   string        `yaml:"link_strategy"`
	PhoneStrategy  string        `yaml:"phone_strategy"`
	SessionBackend string        `yaml:"session_backend"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	FetchWorkers   int           `yaml:"fetch_workers"`

	//Notifications
	SendDelay   time.Duration `yaml:"send_delay"`
	SendRate    float64       `yaml:"send_rate"`
	SendWorkers int           `yaml:"send_workers"`
}

// default account labels, matched to EMAIL_1/PASSWORD_1, EMAIL_2/PASSWORD_2
var defaultLabels = []string{`ББС "Сапсан"`, "14 ОМБр"}

// Load reads .env, CONFIG_PATH (or configs/config.yaml) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFrom(path)
}

// LoadFrom is Load without the .env step. A missing YAML file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.resolveAccounts()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.BaseURL, "BASE_URL")
	setString(&c.TelegramToken, "TELEGRAM_TOKEN")
	setString(&c.TelegramAPI, "TELEGRAM_API_ENDPOINT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.SeenFile, "SEEN_FILE")
	setString(&c.LogDir, "LOG_DIR")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RunToken, "RUN_TOKEN")
	setString(&c.Port, "PORT")
	setString(&c.Timezone, "TIMEZONE")
	setString(&c.LinkStrategy, "LINK_STRATEGY")
	setString(&c.PhoneStrategy, "PHONE_STRATEGY")
	setString(&c.SessionBackend, "SESSION_BACKEND")

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(setInt(&c.WorkStartHour, "WORK_START_HOUR"))
	collect(setInt(&c.WorkEndHour, "WORK_END_HOUR"))
	collect(setInt(&c.FetchWorkers, "FETCH_WORKERS"))
	collect(setInt(&c.SendWorkers, "SEND_WORKERS"))
	collect(setDuration(&c.RequestTimeout, "REQUEST_TIMEOUT"))
	collect(setDuration(&c.SendDelay, "SEND_DELAY"))
	if v := os.Getenv("SEND_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			collect(fmt.Errorf("invalid SEND_RATE: %w", err))
		} else {
			c.SendRate = f
		}
	}

	if raw := os.Getenv("TELEGRAM_CHAT_IDS"); raw != "" {
		dests, err := ParseDestinations(raw)
		if err != nil {
			collect(err)
		} else {
			c.Destinations = dests
		}
	}
	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://hirefire.thelobbyx.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.SeenFile == "" {
		c.SeenFile = "seen_candidates.json"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Kyiv"
	}
	if c.WorkStartHour == 0 && c.WorkEndHour == 0 {
		c.WorkStartHour, c.WorkEndHour = 8, 20
	}
	if c.LinkStrategy == "" {
		c.LinkStrategy = LinksPaginated
	}
	if c.PhoneStrategy == "" {
		c.PhoneStrategy = "digits"
	}
	if c.SessionBackend == "" {
		c.SessionBackend = BackendHTTP
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = 1
	}
	if c.SendDelay == 0 {
		c.SendDelay = 150 * time.Millisecond
	}
	if c.SendRate <= 0 {
		c.SendRate = 25
	}
	if c.SendWorkers <= 0 {
		c.SendWorkers = 4
	}
}

// resolveAccounts fills credentials from EMAIL_n / PASSWORD_n (1-based).
// Accounts beyond the configured list are picked up while EMAIL_n is set.
func (c *Config) resolveAccounts() {
	for i, label := range defaultLabels {
		if i >= len(c.Accounts) {
			c.Accounts = append(c.Accounts, models.Account{Label: label})
		}
	}
	for n := len(c.Accounts) + 1; os.Getenv(fmt.Sprintf("EMAIL_%d", n)) != ""; n++ {
		c.Accounts = append(c.Accounts, models.Account{Label: fmt.Sprintf("Account %d", n)})
	}

	for i := range c.Accounts {
		acc := &c.Accounts[i]
		n := i + 1
		setString(&acc.Email, fmt.Sprintf("EMAIL_%d", n))
		setString(&acc.Label, fmt.Sprintf("ACCOUNT_LABEL_%d", n))
		if pw := os.Getenv(fmt.Sprintf("PASSWORD_%d", n)); pw != "" {
			acc.Password = pw
		}
		if acc.Label == "" {
			acc.Label = fmt.Sprintf("Account %d", n)
		}
		if acc.Email != "" && acc.Password == "" {
			pw, err := keyring.Get(KeyringService, acc.Email)
			if err != nil {
				c.Warnings = append(c.Warnings, fmt.Sprintf("no password for account %q: %v", acc.Label, err))
				continue
			}
			acc.Password = pw
		}
	}
}

// Validate checks required values. Every problem is reported, not only the first.
func (c *Config) Validate() error {
	var errs []string

	if c.TelegramToken == "" {
		errs = append(errs, "TELEGRAM_TOKEN is required")
	}
	if len(c.Destinations) == 0 {
		errs = append(errs, "TELEGRAM_CHAT_IDS is required")
	}
	switch c.LinkStrategy {
	case LinksSingle, LinksPaginated:
	default:
		errs = append(errs, fmt.Sprintf("link_strategy must be %q or %q, got %q", LinksSingle, LinksPaginated, c.LinkStrategy))
	}
	switch c.PhoneStrategy {
	case "position", "digits":
	default:
		errs = append(errs, fmt.Sprintf("phone_strategy must be \"position\" or \"digits\", got %q", c.PhoneStrategy))
	}
	switch c.SessionBackend {
	case BackendHTTP, BackendBrowser:
	default:
		errs = append(errs, fmt.Sprintf("session_backend must be %q or %q, got %q", BackendHTTP, BackendBrowser, c.SessionBackend))
	}
	if c.WorkStartHour < 0 || c.WorkEndHour > 24 || c.WorkStartHour >= c.WorkEndHour {
		errs = append(errs, fmt.Sprintf("working hours %d-%d are invalid", c.WorkStartHour, c.WorkEndHour))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

// LogWarnings writes the load warnings to logger.
func (c *Config) LogWarnings(logger *slog.Logger) {
	for _, w := range c.Warnings {
		logger.Warn("⚠️ " + w)
	}
}

// EnabledAccounts returns accounts that have an email set.
func (c *Config) EnabledAccounts() []models.Account {
	var out []models.Account
	for _, a := range c.Accounts {
		if a.Enabled() {
			out = append(out, a)
		}
	}
	return out
}

// ParseDestinations decodes a JSON array of chat ids. Elements may be numbers,
// numeric strings or "@channel" usernames.
func ParseDestinations(raw string) ([]models.Destination, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_IDS: %w", err)
	}

	out := make([]models.Destination, 0, len(items))
	for i, it := range items {
		switch v := it.(type) {
		case json.Number:
			id, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("invalid TELEGRAM_CHAT_IDS[%d]: %w", i, err)
			}
			out = append(out, models.Destination{ChatID: id})
		case string:
			v = strings.TrimSpace(v)
			if strings.HasPrefix(v, "@") {
				out = append(out, models.Destination{Channel: v})
				continue
			}
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid TELEGRAM_CHAT_IDS[%d] %q: %w", i, v, err)
			}
			out = append(out, models.Destination{ChatID: id})
		default:
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_IDS[%d]: unsupported value %v", i, it)
		}
	}
	return out, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
