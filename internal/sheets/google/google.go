// Package google implements the remote snapshot store on a Google
// spreadsheet through the Sheets v4 API. Each entity lives in one named
// sheet; writes replace the whole table body below the header.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"moneywise/internal/core"
	ports "moneywise/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	// Sheet title -> numeric sheet id, filled in by ensureTables.
	sheetIDs map[string]int64

	now func() time.Time
}

var _ ports.Store = (*Client)(nil)

// New wraps an existing Sheets service. Mostly useful for tests and for
// callers that manage credentials themselves.
func New(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetIDs:      map[string]int64{},
		now:           time.Now,
	}
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID), nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Read pulls all four slices from the spreadsheet. Missing sheets are
// created first so a fresh spreadsheet reads back as empty state.
func (c *Client) Read(ctx context.Context) (core.Snapshot, error) {
	if c.svc == nil {
		return core.Snapshot{}, errors.New("sheets service not initialized")
	}
	if err := c.ensureTables(ctx); err != nil {
		return core.Snapshot{}, fmt.Errorf("ensure tables: %w", err)
	}

	var snap core.Snapshot

	catRows, err := c.readBody(ctx, ports.CategoriesSheet, "A2:B")
	if err != nil {
		return core.Snapshot{}, err
	}
	for _, row := range catRows {
		typ, name, ok := ports.ParseCategoryRow(row)
		if !ok {
			continue
		}
		if typ == core.Expense {
			snap.ExpenseCategories = append(snap.ExpenseCategories, name)
		} else {
			snap.IncomeCategories = append(snap.IncomeCategories, name)
		}
	}

	txRows, err := c.readBody(ctx, ports.TransactionsSheet, "A2:G")
	if err != nil {
		return core.Snapshot{}, err
	}
	for _, row := range txRows {
		if len(row) == 0 {
			continue
		}
		snap.Transactions = append(snap.Transactions, ports.ParseTransactionRow(row))
	}

	savRows, err := c.readBody(ctx, ports.SavingsSheet, "A2:B")
	if err != nil {
		return core.Snapshot{}, err
	}
	for _, row := range savRows {
		if day, ok := ports.ParseSavingsRow(row); ok {
			snap.Savings.CompletedDays = append(snap.Savings.CompletedDays, day)
		}
	}

	return snap, nil
}

// Write replaces all three table bodies with the snapshot. Each table is
// cleared below its header first; empty collections leave the header row
// alone. The write is not transactional across tables: a failure partway
// leaves earlier tables updated, which the caller treats as a failed sync
// to be repaired by the next full push.
func (c *Client) Write(ctx context.Context, snap core.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := c.ensureTables(ctx); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}

	if err := c.overwriteBody(ctx, ports.CategoriesSheet, "A2:B",
		ports.CategoryCells(snap.ExpenseCategories, snap.IncomeCategories)); err != nil {
		return err
	}

	var txRows [][]any
	for _, t := range ports.SortedForWrite(snap.Transactions) {
		txRows = append(txRows, ports.TransactionCells(t))
	}
	if err := c.overwriteBody(ctx, ports.TransactionsSheet, "A2:G", txRows); err != nil {
		return err
	}
	if len(txRows) > 0 {
		if err := c.forceTextColumns(ctx, len(txRows)); err != nil {
			return err
		}
	}

	return c.overwriteBody(ctx, ports.SavingsSheet, "A2:B",
		ports.SavingsCells(snap.Savings, c.now()))
}

func (c *Client) readBody(ctx context.Context, sheet, cols string) ([][]string, error) {
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	// FORMATTED_VALUE keeps cells in their display form so text like
	// "7-11" survives and dates arrive in the sheet's locale format.
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		out = append(out, toStrings(row))
	}
	return out, nil
}

func (c *Client) overwriteBody(ctx context.Context, sheet, cols string, rows [][]any) error {
	clearRng := fmt.Sprintf("%s!%s", sheet, cols)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRng, err)
	}
	if len(rows) == 0 {
		return nil
	}
	writeRng := fmt.Sprintf("%s!A2", sheet)
	vr := &gsheet.ValueRange{Values: rows}
	// RAW stops the backend from coercing numeric-looking strings into
	// dates or numbers on input.
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", writeRng, err)
	}
	return nil
}

// forceTextColumns pins a TEXT number format on the id, category and note
// columns of the transactions table so values like "7-11" keep displaying
// as text even when the sheet is edited by hand later.
func (c *Client) forceTextColumns(ctx context.Context, rowCount int) error {
	sheetID, ok := c.sheetIDs[ports.TransactionsSheet]
	if !ok {
		return fmt.Errorf("unknown sheet id for %s", ports.TransactionsSheet)
	}
	var reqs []*gsheet.Request
	for _, col := range []int64{0, 4, 6} { // ID, 類別, 備註
		reqs = append(reqs, &gsheet.Request{
			RepeatCell: &gsheet.RepeatCellRequest{
				Range: &gsheet.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    1,
					EndRowIndex:      int64(1 + rowCount),
					StartColumnIndex: col,
					EndColumnIndex:   col + 1,
				},
				Cell: &gsheet.CellData{
					UserEnteredFormat: &gsheet.CellFormat{
						NumberFormat: &gsheet.NumberFormat{Type: "TEXT"},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("format text columns: %w", err)
	}
	return nil
}

// ensureTables provisions missing sheets with their canonical headers and
// widens an existing transactions sheet that predates the id column. The
// header is rewritten only when the current first cell is not "ID";
// anything else is treated as already-current so a half-migrated table is
// not clobbered.
func (c *Client) ensureTables(ctx context.Context) error {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title,gridProperties.columnCount)").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	cols := map[string]int64{}
	for _, sh := range meta.Sheets {
		if sh.Properties == nil {
			continue
		}
		c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		if sh.Properties.GridProperties != nil {
			cols[sh.Properties.Title] = sh.Properties.GridProperties.ColumnCount
		}
	}

	required := []struct {
		title  string
		header []string
	}{
		{ports.CategoriesSheet, ports.CategoriesHeader()},
		{ports.TransactionsSheet, ports.TransactionsHeader()},
		{ports.SavingsSheet, ports.SavingsHeader()},
	}

	for _, req := range required {
		if _, ok := c.sheetIDs[req.title]; ok {
			continue
		}
		if err := c.addSheet(ctx, req.title); err != nil {
			return err
		}
		if err := c.writeHeader(ctx, req.title, req.header); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Created remote table", "sheet", req.title)
	}

	// Widen a legacy-era transactions sheet to the current schema.
	if n, ok := cols[ports.TransactionsSheet]; ok && n < ports.TransactionColumns {
		if err := c.appendColumns(ctx, ports.TransactionsSheet, ports.TransactionColumns-n); err != nil {
			return err
		}
		first, err := c.readCell(ctx, ports.TransactionsSheet, "A1")
		if err != nil {
			return err
		}
		if first != "ID" {
			if err := c.writeHeader(ctx, ports.TransactionsSheet, ports.TransactionsHeader()); err != nil {
				return err
			}
			slog.InfoContext(ctx, "Rewrote legacy transactions header")
		}
	}

	return nil
}

func (c *Client) addSheet(ctx context.Context, title string) error {
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	for _, r := range resp.Replies {
		if r.AddSheet != nil && r.AddSheet.Properties != nil {
			c.sheetIDs[title] = r.AddSheet.Properties.SheetId
		}
	}
	return nil
}

func (c *Client) appendColumns(ctx context.Context, title string, n int64) error {
	sheetID, ok := c.sheetIDs[title]
	if !ok {
		return fmt.Errorf("unknown sheet id for %s", title)
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AppendDimension: &gsheet.AppendDimensionRequest{
				SheetId:   sheetID,
				Dimension: "COLUMNS",
				Length:    n,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %d columns to %s: %w", n, title, err)
	}
	return nil
}

func (c *Client) writeHeader(ctx context.Context, title string, header []string) error {
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	rng := fmt.Sprintf("%s!A1", title)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng,
		&gsheet.ValueRange{Values: [][]any{cells}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	return nil
}

func (c *Client) readCell(ctx context.Context, title, cell string) (string, error) {
	rng := fmt.Sprintf("%s!%s", title, cell)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return strings.TrimSpace(fmt.Sprint(resp.Values[0][0])), nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
