package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/smallbiznis/payrelay/internal/config"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

var (
	ErrNotConfigured = errors.New("sheets_not_configured")
	ErrSheetExists   = errors.New("sheet_already_exists")
)

const (
	valueInputRaw    = "RAW"
	insertRows       = "INSERT_ROWS"
	sheetTitleFields = "sheets.properties.title"
	userEnteredValue = "userEnteredValue"
	googleTokenURI   = "https://oauth2.googleapis.com/token"
)

// Client is a narrow wrapper around the Sheets API bound to one spreadsheet.
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// NewClient authenticates with the service account described by cfg. Extra
// options are appended last so callers can point the client elsewhere.
func NewClient(ctx context.Context, cfg config.SheetsConfig, extra ...option.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, ErrNotConfigured
	}

	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	switch {
	case cfg.HasSplitCredentials():
		creds, err := credentialsJSON(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountFile))
	}
	opts = append(opts, extra...)

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (c *Client) SpreadsheetID() string {
	if c == nil {
		return ""
	}
	return c.spreadsheetID
}

// ReadRange returns the cell values of an A1 range as strings. Sheets
// omits trailing empty cells, so rows may be ragged.
func (c *Client) ReadRange(ctx context.Context, a1Range string) ([][]string, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1Range).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a1Range, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, strings.TrimSpace(fmt.Sprint(cell)))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// SheetTitles lists the tab titles of the spreadsheet in display order.
func (c *Client) SheetTitles(ctx context.Context) ([]string, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields(sheetTitleFields).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, sheet := range resp.Sheets {
		if sheet == nil || sheet.Properties == nil {
			continue
		}
		titles = append(titles, sheet.Properties.Title)
	}
	return titles, nil
}

// AddSheet creates a new tab and, when header is given, writes it as row 1
// in the same batch so the tab never exists without it. ErrSheetExists is
// returned when a tab with the same title is already present.
func (c *Client) AddSheet(ctx context.Context, title string, header ...string) error {
	if c == nil {
		return ErrNotConfigured
	}
	sheetID := sheetIDFor(title)
	requests := []*gsheets.Request{{
		AddSheet: &gsheets.AddSheetRequest{
			Properties: &gsheets.SheetProperties{SheetId: sheetID, Title: title},
		},
	}}
	if len(header) > 0 {
		requests = append(requests, &gsheets.Request{
			UpdateCells: &gsheets.UpdateCellsRequest{
				Start:  &gsheets.GridCoordinate{SheetId: sheetID},
				Rows:   []*gsheets.RowData{textRow(header)},
				Fields: userEnteredValue,
			},
		})
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		if isAlreadyExists(err, title) {
			return ErrSheetExists
		}
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	return nil
}

// sheetIDFor derives a stable positive tab id from the title. The id has to
// be chosen up front for the header write to target the new tab.
func sheetIDFor(title string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	id := int64(h.Sum32() & 0x7fffffff)
	if id == 0 {
		id = 1
	}
	return id
}

func textRow(values []string) *gsheets.RowData {
	cells := make([]*gsheets.CellData, 0, len(values))
	for _, v := range values {
		cells = append(cells, &gsheets.CellData{
			UserEnteredValue: &gsheets.ExtendedValue{StringValue: &v},
		})
	}
	return &gsheets.RowData{Values: cells}
}

// AppendRows appends rows after the last row of the table found in a1Range.
func (c *Client) AppendRows(ctx context.Context, a1Range string, rows [][]any) error {
	if c == nil {
		return ErrNotConfigured
	}
	body := &gsheets.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1Range, body).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", a1Range, err)
	}
	return nil
}

// QuoteRange builds an A1 range for a sheet title, quoting it so titles with
// spaces or digits-only names resolve to the tab instead of a cell.
func QuoteRange(title, cells string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + cells
}

// isAlreadyExists matches the title collision error only. A tab id collision
// names the id, not the title, and stays a plain failure.
func isAlreadyExists(err error, title string) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "already exists") &&
		strings.Contains(apiErr.Message, title)
}

func credentialsJSON(cfg config.SheetsConfig) ([]byte, error) {
	creds := map[string]string{
		"type":           "service_account",
		"project_id":     cfg.ProjectID,
		"private_key_id": cfg.PrivateKeyID,
		"private_key":    strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n"),
		"client_email":   cfg.ClientEmail,
		"client_id":      cfg.ClientID,
		"token_uri":      googleTokenURI,
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	return raw, nil
}
