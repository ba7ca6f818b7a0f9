// Package sheets wraps the Google Sheets v4 values API, exposing a
// spreadsheet as ranges of string cells. Rows are addressed by position
// only; every structural mutation shifts the rows below it.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrBackendUnavailable is returned for any transport, auth, or API
// failure. Callers decide whether to degrade or propagate.
var ErrBackendUnavailable = errors.New("sheets backend unavailable")

// Client calls the Sheets REST API for a single spreadsheet.
type Client struct {
	BaseURL       string
	SpreadsheetID string
	Token         string
	HTTP          *http.Client

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// New creates a client for one spreadsheet. baseURL is overridable for tests.
func New(baseURL, spreadsheetID, token string) *Client {
	return &Client{
		BaseURL:       baseURL,
		SpreadsheetID: spreadsheetID,
		Token:         token,
		HTTP:          &http.Client{Timeout: 15 * time.Second},
		sheetIDs:      make(map[string]int64),
	}
}

type valueRange struct {
	Range  string     `json:"range,omitempty"`
	Values [][]string `json:"values,omitempty"`
}

// ReadRange fetches all rows in rangeSpec (e.g. "Requests!A2:H").
// An empty range yields an empty slice, not an error.
func (c *Client) ReadRange(ctx context.Context, rangeSpec string) ([][]string, error) {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s", c.BaseURL, c.SpreadsheetID, url.PathEscape(rangeSpec))
	var resp valueRange
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

type appendResponse struct {
	Updates struct {
		UpdatedRange string `json:"updatedRange"`
	} `json:"updates"`
}

// AppendRow appends one row after the last data row of rangeSpec and
// returns the absolute 1-based row number it landed on. Not idempotent:
// a retried append writes a duplicate row.
func (c *Client) AppendRow(ctx context.Context, rangeSpec string, row []string) (int, error) {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		c.BaseURL, c.SpreadsheetID, url.PathEscape(rangeSpec))
	body := valueRange{Values: [][]string{row}}
	var resp appendResponse
	if err := c.do(ctx, http.MethodPost, u, body, &resp); err != nil {
		return 0, err
	}
	n, err := parseRowNumber(resp.Updates.UpdatedRange)
	if err != nil {
		return 0, fmt.Errorf("append succeeded but response range %q unparseable: %w", resp.Updates.UpdatedRange, ErrBackendUnavailable)
	}
	return n, nil
}

// UpdateCellRange overwrites exactly the cells in rangeSpec. Idempotent.
func (c *Client) UpdateCellRange(ctx context.Context, rangeSpec string, values [][]string) error {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?valueInputOption=USER_ENTERED",
		c.BaseURL, c.SpreadsheetID, url.PathEscape(rangeSpec))
	return c.do(ctx, http.MethodPut, u, valueRange{Values: values}, nil)
}

type batchUpdateRequest struct {
	Requests []map[string]any `json:"requests"`
}

// DeleteRow removes the row at absRow (0-based, header included) from
// the sheet with the given structural id. Every row below it shifts up;
// a second call with the same index targets a different row.
func (c *Client) DeleteRow(ctx context.Context, sheetID int64, absRow int) error {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s:batchUpdate", c.BaseURL, c.SpreadsheetID)
	body := batchUpdateRequest{Requests: []map[string]any{{
		"deleteDimension": map[string]any{
			"range": map[string]any{
				"sheetId":    sheetID,
				"dimension":  "ROWS",
				"startIndex": absRow,
				"endIndex":   absRow + 1,
			},
		},
	}}}
	return c.do(ctx, http.MethodPost, u, body, nil)
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

// ResolveSheetID maps a sheet title to the structural id required for
// row deletion. Cached for the process lifetime; sheet structure is
// assumed stable.
func (c *Client) ResolveSheetID(ctx context.Context, sheetName string) (int64, error) {
	c.mu.Lock()
	if id, ok := c.sheetIDs[sheetName]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	u := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=sheets.properties", c.BaseURL, c.SpreadsheetID)
	var meta spreadsheetMeta
	if err := c.do(ctx, http.MethodGet, u, nil, &meta); err != nil {
		return 0, err
	}
	for _, s := range meta.Sheets {
		if s.Properties.Title == sheetName {
			c.mu.Lock()
			c.sheetIDs[sheetName] = s.Properties.SheetID
			c.mu.Unlock()
			return s.Properties.SheetID, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found: %w", sheetName, ErrBackendUnavailable)
}

// do performs one API call, translating every failure to ErrBackendUnavailable.
func (c *Client) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %v: %w", err, ErrBackendUnavailable)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %v: %w", err, ErrBackendUnavailable)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, rawURL, err, ErrBackendUnavailable)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %d: %s: %w", rawURL, resp.StatusCode, truncate(data, 256), ErrBackendUnavailable)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %v: %w", err, ErrBackendUnavailable)
		}
	}
	return nil
}

// parseRowNumber extracts the row number from an A1 range like
// "Requests!A5:H5" or "Requests!A5". The sheet title is skipped so
// digits in it do not confuse the scan.
func parseRowNumber(a1 string) (int, error) {
	if i := strings.LastIndexByte(a1, '!'); i >= 0 {
		a1 = a1[i+1:]
	}
	start := -1
	for i := 0; i < len(a1); i++ {
		ch := a1[i]
		if ch >= '0' && ch <= '9' {
			start = i
			break
		}
		if ch == ':' {
			break
		}
	}
	if start < 0 {
		return 0, fmt.Errorf("no row number in %q", a1)
	}
	end := start
	for end < len(a1) && a1[end] >= '0' && a1[end] <= '9' {
		end++
	}
	return strconv.Atoi(a1[start:end])
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
