package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"contabilidad/internal/core"
	"contabilidad/internal/log"
	ports "contabilidad/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheTTL = 5 * time.Minute

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetBase       string // sheets are named "<year> <SheetBase>"
	CredentialsJSON string
	CredentialsFile string
}

// rowIndex maps "user|date" keys to 1-based sheet rows.
type rowIndex struct {
	rows      map[string]int
	rowCount  int
	expiresAt time.Time
}

// Client mirrors day rows into one sheet per year. Columns:
// user_id, date, income, expense, balance, incomes, expenses, updated_at.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	mu                 sync.Mutex
	indexes            map[string]*rowIndex
	cacheValidDuration time.Duration
}

var _ ports.DaySheet = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(cfg.SheetBase)
	if base == "" {
		base = "Ledger"
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	log.FromContext(ctx).WithComponent(log.ComponentSheets).InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(creds), "scope", gsheet.SpreadsheetsScope)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		sheetBase:          base,
		indexes:            make(map[string]*rowIndex),
		cacheValidDuration: defaultCacheTTL,
	}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

// newHTTPClientWithPooling keeps connections to the Sheets API alive between
// worker messages.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) UpsertDay(ctx context.Context, row ports.DayRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(c.sheetBase, row.Date.Year())
	idx, err := c.index(ctx, sheet)
	if err != nil {
		return err
	}

	k := rowKey(row.UserID, row.Date.String())
	c.mu.Lock()
	n, found := idx.rows[k]
	if !found {
		n = idx.rowCount + 1
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A%d:H%d", sheet, n, n)
	vr := &gsheet.ValueRange{Values: [][]any{formatRow(row, time.Now().UTC())}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		c.invalidateRowCache(sheet)
		return fmt.Errorf("write %s: %w", rng, err)
	}

	c.mu.Lock()
	idx.rows[k] = n
	if n > idx.rowCount {
		idx.rowCount = n
	}
	c.mu.Unlock()
	return nil
}

// RemoveDay blanks the day's row. Rows are not shifted so cached positions
// stay valid.
func (c *Client) RemoveDay(ctx context.Context, userID int64, date core.Date) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(c.sheetBase, date.Year())
	idx, err := c.index(ctx, sheet)
	if err != nil {
		return err
	}
	k := rowKey(userID, date.String())
	c.mu.Lock()
	n, found := idx.rows[k]
	c.mu.Unlock()
	if !found {
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:H%d", sheet, n, n)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		c.invalidateRowCache(sheet)
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.mu.Lock()
	delete(idx.rows, k)
	c.mu.Unlock()
	return nil
}

func (c *Client) ListDays(ctx context.Context, userID int64, year, month int) ([]ports.DayRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month: %d", month)
	}
	rng := fmt.Sprintf("%s!A:H", yearPrefixedName(c.sheetBase, year))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseDayRows(resp.Values, userID, year, month), nil
}

// index returns the cached row positions of sheet, reloading them when stale.
func (c *Client) index(ctx context.Context, sheet string) (*rowIndex, error) {
	c.mu.Lock()
	idx, ok := c.indexes[sheet]
	if ok && time.Now().Before(idx.expiresAt) {
		c.mu.Unlock()
		return idx, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:B", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	idx = buildRowIndex(resp.Values)
	idx.expiresAt = time.Now().Add(c.cacheValidDuration)

	c.mu.Lock()
	c.indexes[sheet] = idx
	c.mu.Unlock()
	log.FromContext(ctx).WithComponent(log.ComponentSheets).DebugContext(ctx, "Row index loaded",
		"sheet", sheet, "rows", idx.rowCount)
	return idx, nil
}

func (c *Client) invalidateRowCache(sheet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.indexes, sheet)
}

func buildRowIndex(values [][]any) *rowIndex {
	idx := &rowIndex{rows: make(map[string]int), rowCount: len(values)}
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) < 2 {
			continue
		}
		uid, err := strconv.ParseInt(cols[0], 10, 64)
		if err != nil {
			continue
		}
		idx.rows[rowKey(uid, cols[1])] = i + 1
	}
	return idx
}

func rowKey(userID int64, date string) string {
	return strconv.FormatInt(userID, 10) + "|" + date
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
