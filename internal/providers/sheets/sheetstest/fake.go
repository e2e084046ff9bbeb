// Package sheetstest serves an in-memory subset of the Sheets v4 REST API
// for tests.
package sheetstest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/providers/sheets"
	"google.golang.org/api/option"
)

const SpreadsheetID = "test-spreadsheet"

// Server is a fake spreadsheet. Tabs keep insertion order.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	order    []string
	tabs     map[string][][]any
	ids      map[int64]string
	failures map[string]int
	requests map[string]int
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		tabs:     map[string][][]any{},
		ids:      map[int64]string{},
		failures: map[string]int{},
		requests: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Client returns a sheets.Client talking to this server.
func (s *Server) Client(t testing.TB) *sheets.Client {
	t.Helper()
	client, err := sheets.NewClient(context.Background(),
		config.SheetsConfig{SpreadsheetID: SpreadsheetID},
		option.WithEndpoint(s.URL+"/"),
		option.WithHTTPClient(s.Server.Client()),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("sheets client: %v", err)
	}
	return client
}

// SetRows replaces the content of a tab, creating it if needed.
func (s *Server) SetRows(title string, rows ...[]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[title]; !ok {
		s.order = append(s.order, title)
	}
	s.tabs[title] = rows
}

// Rows returns a copy of a tab's rows.
func (s *Server) Rows(title string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[title]
	if !ok {
		return nil, false
	}
	out := make([][]any, len(rows))
	copy(out, rows)
	return out, true
}

func (s *Server) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// FailNext makes the next n calls of op return 500. op is one of
// "get", "values.get", "batchUpdate", "values.append".
func (s *Server) FailNext(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = n
}

// Requests reports how many calls of op were received.
func (s *Server) Requests(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[op]
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	prefix := "/v4/spreadsheets/" + SpreadsheetID
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		writeError(w, http.StatusNotFound, "spreadsheet not found")
		return
	}
	rest := strings.TrimPrefix(path, prefix)

	switch {
	case rest == "" && r.Method == http.MethodGet:
		s.handle(w, "get", s.getSpreadsheet)
	case rest == ":batchUpdate" && r.Method == http.MethodPost:
		s.handle(w, "batchUpdate", func(w http.ResponseWriter) { s.batchUpdate(w, r) })
	case strings.HasPrefix(rest, "/values/") && strings.HasSuffix(rest, ":append") && r.Method == http.MethodPost:
		a1 := strings.TrimSuffix(strings.TrimPrefix(rest, "/values/"), ":append")
		s.handle(w, "values.append", func(w http.ResponseWriter) { s.appendValues(w, r, a1) })
	case strings.HasPrefix(rest, "/values/") && r.Method == http.MethodGet:
		a1 := strings.TrimPrefix(rest, "/values/")
		s.handle(w, "values.get", func(w http.ResponseWriter) { s.getValues(w, a1) })
	default:
		writeError(w, http.StatusNotFound, "unsupported call "+r.Method+" "+path)
	}
}

func (s *Server) handle(w http.ResponseWriter, op string, fn func(http.ResponseWriter)) {
	s.mu.Lock()
	s.requests[op]++
	if s.failures[op] > 0 {
		s.failures[op]--
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "injected failure")
		return
	}
	s.mu.Unlock()
	fn(w)
}

func (s *Server) getSpreadsheet(w http.ResponseWriter) {
	s.mu.Lock()
	sheetsList := make([]map[string]any, 0, len(s.order))
	for _, title := range s.order {
		sheetsList = append(sheetsList, map[string]any{
			"properties": map[string]any{"title": title},
		})
	}
	s.mu.Unlock()
	writeJSON(w, map[string]any{"sheets": sheetsList})
}

type cellValue struct {
	UserEnteredValue *struct {
		StringValue *string `json:"stringValue"`
	} `json:"userEnteredValue"`
}

type batchRequest struct {
	AddSheet *struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"addSheet"`
	UpdateCells *struct {
		Start struct {
			SheetID  int64 `json:"sheetId"`
			RowIndex int   `json:"rowIndex"`
		} `json:"start"`
		Rows []struct {
			Values []cellValue `json:"values"`
		} `json:"rows"`
	} `json:"updateCells"`
}

// batchUpdate applies addSheet and updateCells requests all or nothing.
func (s *Server) batchUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []batchRequest `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := map[string][][]any{}
	updated := map[string][][]any{}
	var addedOrder []string
	addedIDs := map[int64]string{}
	titleFor := func(id int64) (string, bool) {
		if title, ok := addedIDs[id]; ok {
			return title, true
		}
		title, ok := s.ids[id]
		return title, ok
	}

	for i, item := range req.Requests {
		switch {
		case item.AddSheet != nil:
			title := item.AddSheet.Properties.Title
			if _, exists := s.tabs[title]; exists {
				writeError(w, http.StatusBadRequest, fmt.Sprintf(
					"Invalid requests[%d].addSheet: A sheet with the name %q already exists. Please enter another name.", i, title))
				return
			}
			id := item.AddSheet.Properties.SheetID
			if _, taken := titleFor(id); taken {
				writeError(w, http.StatusBadRequest, fmt.Sprintf(
					"Invalid requests[%d].addSheet: Sheet with id %d already exists.", i, id))
				return
			}
			addedIDs[id] = title
			added[title] = nil
			addedOrder = append(addedOrder, title)
		case item.UpdateCells != nil:
			title, ok := titleFor(item.UpdateCells.Start.SheetID)
			if !ok {
				writeError(w, http.StatusBadRequest, fmt.Sprintf(
					"Invalid requests[%d].updateCells: No grid with id: %d", i, item.UpdateCells.Start.SheetID))
				return
			}
			rows, isNew := added[title]
			if !isNew {
				var staged bool
				if rows, staged = updated[title]; !staged {
					rows = append([][]any(nil), s.tabs[title]...)
				}
			}
			for j, row := range item.UpdateCells.Rows {
				idx := item.UpdateCells.Start.RowIndex + j
				for len(rows) <= idx {
					rows = append(rows, []any{})
				}
				cells := make([]any, 0, len(row.Values))
				for _, cell := range row.Values {
					var v string
					if cell.UserEnteredValue != nil && cell.UserEnteredValue.StringValue != nil {
						v = *cell.UserEnteredValue.StringValue
					}
					cells = append(cells, v)
				}
				rows[idx] = cells
			}
			if isNew {
				added[title] = rows
			} else {
				updated[title] = rows
			}
		}
	}

	for title, rows := range updated {
		s.tabs[title] = rows
	}
	for _, title := range addedOrder {
		s.tabs[title] = added[title]
		s.order = append(s.order, title)
	}
	for id, title := range addedIDs {
		s.ids[id] = title
	}
	writeJSON(w, map[string]any{"spreadsheetId": SpreadsheetID})
}

func (s *Server) getValues(w http.ResponseWriter, a1 string) {
	title, first, last := parseRange(a1)

	s.mu.Lock()
	rows, ok := s.tabs[title]
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, sliceColumns(row, first, last))
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusBadRequest, "Unable to parse range: "+a1)
		return
	}
	writeJSON(w, map[string]any{"range": a1, "majorDimension": "ROWS", "values": out})
}

func (s *Server) appendValues(w http.ResponseWriter, r *http.Request, a1 string) {
	var body struct {
		Values [][]any `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	title, _, _ := parseRange(a1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[title]; !ok {
		writeError(w, http.StatusBadRequest, "Unable to parse range: "+a1)
		return
	}
	s.tabs[title] = append(s.tabs[title], body.Values...)
	writeJSON(w, map[string]any{"spreadsheetId": SpreadsheetID, "tableRange": a1})
}

// parseRange splits 'Title'!A:C into the title and a zero-based column span.
// last is -1 when the range is open-ended.
func parseRange(a1 string) (string, int, int) {
	idx := strings.LastIndex(a1, "!")
	if idx < 0 {
		return unquote(a1), 0, -1
	}
	title := unquote(a1[:idx])
	cells := strings.Split(a1[idx+1:], ":")
	first := columnIndex(cells[0])
	last := -1
	if len(cells) == 2 {
		last = columnIndex(cells[1])
	}
	return title, first, last
}

func unquote(title string) string {
	if len(title) >= 2 && strings.HasPrefix(title, "'") && strings.HasSuffix(title, "'") {
		title = title[1 : len(title)-1]
		title = strings.ReplaceAll(title, "''", "'")
	}
	return title
}

func columnIndex(cell string) int {
	idx := 0
	for _, r := range strings.ToUpper(cell) {
		if r < 'A' || r > 'Z' {
			break
		}
		idx = idx*26 + int(r-'A'+1)
	}
	if idx == 0 {
		return 0
	}
	return idx - 1
}

func sliceColumns(row []any, first, last int) []any {
	if first >= len(row) {
		return []any{}
	}
	end := len(row)
	if last >= 0 && last+1 < end {
		end = last + 1
	}
	return append([]any(nil), row[first:end]...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"status":  http.StatusText(code),
		},
	})
}
