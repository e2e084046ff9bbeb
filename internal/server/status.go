package server

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	directorydomain "github.com/smallbiznis/payrelay/internal/directory/domain"
	obslogger "github.com/smallbiznis/payrelay/internal/observability/logger"
)

type serviceAccountStatus struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// accountStatus is an Account with contact phones masked.
type accountStatus struct {
	AccountNumber string   `json:"account_number"`
	TeamName      string   `json:"team_name"`
	Source        string   `json:"source"`
	Contacts      []string `json:"contacts"`
	ContactCount  int      `json:"contact_count"`
}

type diagnostics struct {
	ServiceAccountFile       serviceAccountStatus `json:"service_account_file"`
	EnvCredentials           bool                 `json:"env_credentials"`
	CredentialsPresent       bool                 `json:"credentials_present"`
	GoogleSheetIDConfigured  bool                 `json:"google_sheet_id_configured"`
	PredeterminedAccounts    []accountStatus      `json:"predetermined_accounts"`
	PredeterminedAccountsLen int                  `json:"predetermined_accounts_count"`
}

type configStatusResponse struct {
	Configuration map[string]any `json:"configuration"`
	Diagnostics   diagnostics    `json:"diagnostics"`
	Timestamp     string         `json:"timestamp"`
}

// ConfigStatus reports redacted configuration and the effective account list.
func (s *Server) ConfigStatus(c *gin.Context) {
	path := s.cfg.Sheets.ServiceAccountFile
	exists := fileExists(path)
	envCreds := s.cfg.Sheets.HasSplitCredentials()

	accounts := maskAccounts(s.directory.ListAccounts(c.Request.Context()))

	c.JSON(http.StatusOK, configStatusResponse{
		Configuration: s.cfg.Summary(),
		Diagnostics: diagnostics{
			ServiceAccountFile:       serviceAccountStatus{Path: path, Exists: exists},
			EnvCredentials:           envCreds,
			CredentialsPresent:       exists || envCreds,
			GoogleSheetIDConfigured:  strings.TrimSpace(s.cfg.Sheets.SpreadsheetID) != "",
			PredeterminedAccounts:    accounts,
			PredeterminedAccountsLen: len(accounts),
		},
		Timestamp: s.clock.Now().UTC().Format(time.RFC3339),
	})
}

func maskAccounts(accounts []directorydomain.Account) []accountStatus {
	out := make([]accountStatus, 0, len(accounts))
	for _, acc := range accounts {
		contacts := make([]string, 0, len(acc.ContactPhones))
		for _, phone := range acc.ContactPhones {
			contacts = append(contacts, obslogger.MaskPhone(phone))
		}
		out = append(out, accountStatus{
			AccountNumber: acc.AccountNumber,
			TeamName:      acc.TeamName,
			Source:        acc.Source,
			Contacts:      contacts,
			ContactCount:  len(contacts),
		})
	}
	return out
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
