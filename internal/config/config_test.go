package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"hirefire-scraper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// clearEnv blanks every variable the loader reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"BASE_URL", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_IDS", "LOG_LEVEL", "SEEN_FILE", "LOG_DIR",
		"DATABASE_URL", "RUN_TOKEN", "PORT", "TIMEZONE", "LINK_STRATEGY", "PHONE_STRATEGY",
		"SESSION_BACKEND", "WORK_START_HOUR", "WORK_END_HOUR", "FETCH_WORKERS", "SEND_WORKERS",
		"REQUEST_TIMEOUT", "SEND_DELAY", "SEND_RATE", "TELEGRAM_API_ENDPOINT",
	}
	for n := 1; n <= 4; n++ {
		keys = append(keys, "EMAIL_"+strconv.Itoa(n), "PASSWORD_"+strconv.Itoa(n), "ACCOUNT_LABEL_"+strconv.Itoa(n))
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
	keyring.MockInit()
}

func missingPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.yaml")
}

func TestLoadFrom_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_IDS", `[111, "-1002", "@alerts"]`)
	t.Setenv("EMAIL_1", "one@example.com")
	t.Setenv("PASSWORD_1", "secret")

	cfg, err := LoadFrom(missingPath(t))
	require.NoError(t, err)

	assert.Equal(t, "https://hirefire.thelobbyx.com", cfg.BaseURL)
	assert.Equal(t, "seen_candidates.json", cfg.SeenFile)
	assert.Equal(t, "Europe/Kyiv", cfg.Timezone)
	assert.Equal(t, 8, cfg.WorkStartHour)
	assert.Equal(t, 20, cfg.WorkEndHour)
	assert.Equal(t, LinksPaginated, cfg.LinkStrategy)
	assert.Equal(t, "digits", cfg.PhoneStrategy)
	assert.Equal(t, BackendHTTP, cfg.SessionBackend)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 150*time.Millisecond, cfg.SendDelay)

	assert.Equal(t, []models.Destination{{ChatID: 111}, {ChatID: -1002}, {Channel: "@alerts"}}, cfg.Destinations)

	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, models.Account{Email: "one@example.com", Password: "secret", Label: `ББС "Сапсан"`}, cfg.Accounts[0])
	assert.False(t, cfg.Accounts[1].Enabled(), "second account has no email and stays disabled")
	assert.Len(t, cfg.EnabledAccounts(), 1)
}

func TestLoadFrom_YAMLThenEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
base_url: https://portal.test/
link_strategy: single
request_timeout: 5s
accounts:
  - label: First
  - label: Second
  - label: Third
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("TELEGRAM_TOKEN", "t")
	t.Setenv("TELEGRAM_CHAT_IDS", `[1]`)
	t.Setenv("LINK_STRATEGY", "paginated")
	t.Setenv("EMAIL_3", "third@example.com")
	t.Setenv("PASSWORD_3", "pw3")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.test", cfg.BaseURL)
	assert.Equal(t, LinksPaginated, cfg.LinkStrategy, "env wins over yaml")
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Len(t, cfg.Accounts, 3)
	assert.Equal(t, "Third", cfg.Accounts[2].Label)
	assert.Equal(t, "third@example.com", cfg.Accounts[2].Email)
}

func TestLoadFrom_ExtraAccountsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "t")
	t.Setenv("TELEGRAM_CHAT_IDS", `[1]`)
	t.Setenv("EMAIL_3", "c@example.com")
	t.Setenv("PASSWORD_3", "x")
	t.Setenv("ACCOUNT_LABEL_3", "Третій")

	cfg, err := LoadFrom(missingPath(t))
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 3)
	assert.Equal(t, "Третій", cfg.Accounts[2].Label)
}

func TestLoadFrom_PasswordFromKeyring(t *testing.T) {
	clearEnv(t)
	require.NoError(t, keyring.Set(KeyringService, "kr@example.com", "from-keychain"))
	t.Setenv("TELEGRAM_TOKEN", "t")
	t.Setenv("TELEGRAM_CHAT_IDS", `[1]`)
	t.Setenv("EMAIL_1", "kr@example.com")

	cfg, err := LoadFrom(missingPath(t))
	require.NoError(t, err)
	assert.Equal(t, "from-keychain", cfg.Accounts[0].Password)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFrom_MissingPasswordIsAWarning(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "t")
	t.Setenv("TELEGRAM_CHAT_IDS", `[1]`)
	t.Setenv("EMAIL_1", "nopw@example.com")

	cfg, err := LoadFrom(missingPath(t))
	require.NoError(t, err)
	assert.Empty(t, cfg.Accounts[0].Password)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], `ББС "Сапсан"`)

	var buf bytes.Buffer
	cfg.LogWarnings(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})))
	assert.Empty(t, buf.String(), "warnings follow the caller's level")

	cfg.LogWarnings(slog.New(slog.NewTextHandler(&buf, nil)))
	assert.Contains(t, buf.String(), "no password for account")
}

func TestLoadFrom_MissingRequired(t *testing.T) {
	clearEnv(t)

	_, err := LoadFrom(missingPath(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN is required")
	assert.Contains(t, err.Error(), "TELEGRAM_CHAT_IDS is required")
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "t")
	t.Setenv("TELEGRAM_CHAT_IDS", `[1]`)
	t.Setenv("PHONE_STRATEGY", "guess")

	_, err := LoadFrom(missingPath(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone_strategy")

	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "t")
	t.Setenv("TELEGRAM_CHAT_IDS", `not json`)
	_, err = LoadFrom(missingPath(t))
	assert.ErrorContains(t, err, "invalid TELEGRAM_CHAT_IDS")

	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "t")
	t.Setenv("TELEGRAM_CHAT_IDS", `[1]`)
	t.Setenv("SEND_DELAY", "soon")
	_, err = LoadFrom(missingPath(t))
	assert.ErrorContains(t, err, "invalid SEND_DELAY")
}

func TestParseDestinations(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []models.Destination
		wantErr bool
	}{
		{name: "numbers", raw: `[1, -100200]`, want: []models.Destination{{ChatID: 1}, {ChatID: -100200}}},
		{name: "numeric strings", raw: `["42"]`, want: []models.Destination{{ChatID: 42}}},
		{name: "channel", raw: `["@news"]`, want: []models.Destination{{Channel: "@news"}}},
		{name: "empty", raw: `[]`, want: []models.Destination{}},
		{name: "float", raw: `[1.5]`, wantErr: true},
		{name: "bad string", raw: `["abc"]`, wantErr: true},
		{name: "object", raw: `[{"id":1}]`, wantErr: true},
		{name: "not array", raw: `"1"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDestinations(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
