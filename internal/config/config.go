package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	Sheets    SheetsConfig
	Ledger    LedgerConfig
	Directory DirectoryConfig
	Notify    NotifyConfig
	SMS       SMSConfig
	Redis     RedisConfig
	Dedup     DedupConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// SheetsConfig identifies the spreadsheet and the service account used to reach it.
// Credentials come either from a key file or from the split GOOGLE_* variables.
type SheetsConfig struct {
	SpreadsheetID      string
	ServiceAccountFile string
	ProjectID          string
	ClientID           string
	ClientEmail        string
	PrivateKeyID       string
	PrivateKey         string
	AccountsRange      string
}

type LedgerConfig struct {
	Backend      string
	WorkbookPath string
	Timeout      time.Duration
}

type DirectoryConfig struct {
	CacheTTL               time.Duration
	Timeout                time.Duration
	PredeterminedAccounts  []string
	AccountsConfigPaths    []string
	DisableBuiltinFallback bool
}

type NotifyConfig struct {
	Enabled   bool
	Workers   int
	QueueSize int
}

type SMSConfig struct {
	URL       string
	APIKey    string
	PartnerID string
	AppKey    string
	AppToken  string
	ShortCode string
	Timeout   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DedupConfig struct {
	HintTTL      time.Duration
	ClaimEnabled bool
	ClaimTTL     time.Duration
}

const (
	LedgerBackendSheets   = "sheets"
	LedgerBackendWorkbook = "xlsx"
	LedgerBackendSQL      = "sql"
	LedgerBackendMemory   = "memory"
)

const (
	defaultAccountsRange = "Accounts!A:C"
	defaultSMSURL        = "https://sms.fastmessage.co.ke/api/services/sendsms"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	sheetID := strings.TrimSpace(getenv("GOOGLE_SHEET_ID", ""))
	backend := strings.ToLower(strings.TrimSpace(getenv("LEDGER_BACKEND", "")))
	if backend == "" {
		backend = LedgerBackendMemory
		if sheetID != "" {
			backend = LedgerBackendSheets
		}
	}

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "payrelay"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Sheets: SheetsConfig{
			SpreadsheetID:      sheetID,
			ServiceAccountFile: strings.TrimSpace(getenv("GOOGLE_SERVICE_ACCOUNT_FILE", "daraja-sheet.json")),
			ProjectID:          strings.TrimSpace(getenv("GOOGLE_PROJECT_ID", "")),
			ClientID:           strings.TrimSpace(getenv("GOOGLE_CLIENT_ID", "")),
			ClientEmail:        strings.TrimSpace(getenv("GOOGLE_CLIENT_EMAIL", "")),
			PrivateKeyID:       strings.TrimSpace(getenv("GOOGLE_PRIVATE_KEY_ID", "")),
			PrivateKey:         strings.ReplaceAll(getenv("GOOGLE_PRIVATE_KEY", ""), `\n`, "\n"),
			AccountsRange:      getenv("ACCOUNTS_SHEET_RANGE", defaultAccountsRange),
		},
		Ledger: LedgerConfig{
			Backend:      backend,
			WorkbookPath: getenv("LEDGER_WORKBOOK_PATH", "ledger.xlsx"),
			Timeout:      getenvDuration("LEDGER_TIMEOUT", 10*time.Second),
		},
		Directory: DirectoryConfig{
			CacheTTL:               getenvDuration("ACCOUNTS_CACHE_TTL", 120*time.Second),
			Timeout:                getenvDuration("DIRECTORY_TIMEOUT", 5*time.Second),
			PredeterminedAccounts:  parseList(getenv("PREDETERMINED_ACCOUNTS", "")),
			AccountsConfigPaths:    parseList(getenv("ACCOUNTS_CONFIG_PATHS", "")),
			DisableBuiltinFallback: getenvBool("DISABLE_BUILTIN_ACCOUNTS", false),
		},
		Notify: NotifyConfig{
			Enabled:   getenvBool("NOTIFY_ENABLED", true),
			Workers:   getenvInt("NOTIFY_WORKERS", 4),
			QueueSize: getenvInt("NOTIFY_QUEUE_SIZE", 256),
		},
		SMS: SMSConfig{
			URL:       getenv("FASTMESSAGE_SMS_URL", defaultSMSURL),
			APIKey:    strings.TrimSpace(getenv("FASTMESSAGE_API_KEY", "")),
			PartnerID: strings.TrimSpace(getenv("FASTMESSAGE_PARTNER_ID", "")),
			AppKey:    strings.TrimSpace(getenv("FASTMESSAGE_APP_KEY", "")),
			AppToken:  strings.TrimSpace(getenv("FASTMESSAGE_APP_TOKEN", "")),
			ShortCode: getenv("FASTMESSAGE_SHORTCODE", "Daraja"),
			Timeout:   getenvDuration("SMS_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Dedup: DedupConfig{
			HintTTL:      getenvDuration("DEDUP_HINT_TTL", 24*time.Hour),
			ClaimEnabled: getenvBool("DEDUP_CLAIM_ENABLED", false),
			ClaimTTL:     getenvDuration("DEDUP_CLAIM_TTL", 30*time.Second),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "payrelay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// HasSplitCredentials reports whether every GOOGLE_* credential variable is set.
func (c SheetsConfig) HasSplitCredentials() bool {
	return c.ProjectID != "" &&
		c.ClientID != "" &&
		c.ClientEmail != "" &&
		c.PrivateKeyID != "" &&
		c.PrivateKey != ""
}

// HasAPIKeyAuth reports whether the API key + partner id credentials are set.
func (c SMSConfig) HasAPIKeyAuth() bool {
	return c.APIKey != "" && c.PartnerID != ""
}

// HasAppAuth reports whether the app key + app token credentials are set.
func (c SMSConfig) HasAppAuth() bool {
	return c.AppKey != "" && c.AppToken != ""
}

var (
	ErrInvalidLedgerBackend = errors.New("invalid_ledger_backend")
	ErrSheetIDRequired      = errors.New("sheet_id_required")
	ErrInvalidTimeout       = errors.New("invalid_timeout")
	ErrInvalidNotifyPool    = errors.New("invalid_notify_pool")
	ErrRedisRequired        = errors.New("redis_required")
)

// Validate checks the settings that would otherwise fail on the first callback.
func (c Config) Validate() error {
	switch c.Ledger.Backend {
	case LedgerBackendSheets:
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("ledger backend %q: %w", c.Ledger.Backend, ErrSheetIDRequired)
		}
	case LedgerBackendWorkbook, LedgerBackendSQL, LedgerBackendMemory:
	default:
		return fmt.Errorf("%q: %w", c.Ledger.Backend, ErrInvalidLedgerBackend)
	}

	for name, d := range map[string]time.Duration{
		"LEDGER_TIMEOUT":    c.Ledger.Timeout,
		"DIRECTORY_TIMEOUT": c.Directory.Timeout,
		"SMS_TIMEOUT":       c.SMS.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidTimeout)
		}
	}
	if c.Directory.CacheTTL < 0 {
		return fmt.Errorf("ACCOUNTS_CACHE_TTL: %w", ErrInvalidTimeout)
	}

	if c.Notify.Enabled && (c.Notify.Workers <= 0 || c.Notify.QueueSize <= 0) {
		return ErrInvalidNotifyPool
	}
	if c.Dedup.ClaimEnabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("DEDUP_CLAIM_ENABLED: %w", ErrRedisRequired)
		}
		if c.Dedup.ClaimTTL <= 0 {
			return fmt.Errorf("DEDUP_CLAIM_TTL: %w", ErrInvalidTimeout)
		}
	}
	return nil
}

// Summary returns the configuration with secrets redacted, suitable for logs.
func (c Config) Summary() map[string]any {
	return map[string]any{
		"app":                  c.AppName,
		"version":              c.AppVersion,
		"environment":          c.Environment,
		"google_sheet_id":      redact(c.Sheets.SpreadsheetID),
		"service_account_file": c.Sheets.ServiceAccountFile,
		"google_env_creds":     c.Sheets.HasSplitCredentials(),
		"accounts_range":       c.Sheets.AccountsRange,
		"accounts_cache_ttl":   c.Directory.CacheTTL.String(),
		"directory_timeout":    c.Directory.Timeout.String(),
		"ledger_backend":       c.Ledger.Backend,
		"ledger_timeout":       c.Ledger.Timeout.String(),
		"notify_enabled":       c.Notify.Enabled,
		"notify_workers":       c.Notify.Workers,
		"sms_api_key":          redact(c.SMS.APIKey),
		"sms_app_key":          redact(c.SMS.AppKey),
		"sms_timeout":          c.SMS.Timeout.String(),
		"redis_addr":           redact(c.Redis.Addr),
		"dedup_claim_enabled":  c.Dedup.ClaimEnabled,
	}
}

func redact(value string) string {
	if strings.TrimSpace(value) == "" {
		return "NOT SET"
	}
	return "***"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("3s") or plain seconds ("3.0").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return time.Duration(seconds * float64(time.Second))
}

func parseList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
