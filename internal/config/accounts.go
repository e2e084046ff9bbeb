package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AccountEntry is one locally declared billing account.
type AccountEntry struct {
	AccountNumber string   `mapstructure:"account_number"`
	TeamName      string   `mapstructure:"team_name"`
	ContactPhones []string `mapstructure:"contact_phones"`
}

// AccountsHolder keeps the latest accounts.yml snapshot. The file is optional.
type AccountsHolder struct {
	current atomic.Value // holds []AccountEntry
	source  string
}

// NewAccountsHolder reads accounts.yml from the configured search paths and
// watches it for changes.
func NewAccountsHolder(cfg Config, log *zap.Logger) (*AccountsHolder, error) {
	v := viper.New()

	v.SetConfigName("accounts")
	v.SetConfigType("yml")
	for _, p := range cfg.Directory.AccountsConfigPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("/var/lib/payrelay/config") // Volume-mounted config
	v.AddConfigPath("/etc/payrelay")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("PAYRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return loadAccounts(v, log, true)
}

func loadAccounts(v *viper.Viper, log *zap.Logger, watch bool) (*AccountsHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.accounts")

	holder := &AccountsHolder{}
	holder.current.Store([]AccountEntry{})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return holder, nil
		}
		return nil, fmt.Errorf("read accounts config: %w", err)
	}

	entries, err := decodeAccounts(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(entries)
	holder.source = v.ConfigFileUsed()
	log.Info("accounts config loaded",
		zap.String("file", holder.source),
		zap.Int("accounts", len(entries)),
	)

	if watch {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeAccounts(v)
			if err != nil {
				log.Warn("accounts config reload failed", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("accounts config reloaded",
				zap.String("file", e.Name),
				zap.Int("accounts", len(updated)),
			)
		})
		v.WatchConfig()
	}

	return holder, nil
}

func decodeAccounts(v *viper.Viper) ([]AccountEntry, error) {
	var entries []AccountEntry
	if err := v.UnmarshalKey("accounts", &entries); err != nil {
		return nil, fmt.Errorf("decode accounts config: %w", err)
	}

	out := make([]AccountEntry, 0, len(entries))
	for _, entry := range entries {
		entry.AccountNumber = strings.TrimSpace(entry.AccountNumber)
		if entry.AccountNumber == "" {
			continue
		}
		entry.TeamName = strings.TrimSpace(entry.TeamName)
		phones := make([]string, 0, len(entry.ContactPhones))
		for _, phone := range entry.ContactPhones {
			if phone = strings.TrimSpace(phone); phone != "" {
				phones = append(phones, phone)
			}
		}
		entry.ContactPhones = phones
		out = append(out, entry)
	}
	return out, nil
}

// Get returns the current snapshot. A nil holder has no entries.
func (h *AccountsHolder) Get() []AccountEntry {
	if h == nil {
		return nil
	}
	entries, _ := h.current.Load().([]AccountEntry)
	return entries
}

// Source returns the file the snapshot was read from, if any.
func (h *AccountsHolder) Source() string {
	if h == nil {
		return ""
	}
	return h.source
}

// NewStaticAccountsHolder returns a holder fixed to entries. Used by the
// CLI when printing a file given on the command line, and by tests.
func NewStaticAccountsHolder(source string, entries []AccountEntry) *AccountsHolder {
	holder := &AccountsHolder{source: source}
	if entries == nil {
		entries = []AccountEntry{}
	}
	holder.current.Store(entries)
	return holder
}
