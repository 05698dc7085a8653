package sheets

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// GoogleClient talks to one spreadsheet through the Sheets v4 API.
type GoogleClient struct {
	svc           *sheetsapi.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewGoogleClient builds a client from a service-account credentials file.
func NewGoogleClient(ctx context.Context, cfg Config) (*GoogleClient, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &GoogleClient{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetIDs:      make(map[string]int64),
	}, nil
}

func (c *GoogleClient) Sheet(title string) Worksheet {
	return &googleSheet{client: c, title: title}
}

// EnsureSheets adds any worksheet missing from the spreadsheet and writes
// header rows, and refreshes the title to sheet-id map that row deletion
// needs.
func (c *GoogleClient) EnsureSheets(ctx context.Context, headers map[string][]string) error {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("spreadsheet metadata: %w", err)
	}
	existing := make(map[string]bool)
	c.mu.Lock()
	for _, s := range meta.Sheets {
		existing[s.Properties.Title] = true
		c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
	}
	c.mu.Unlock()

	var reqs []*sheetsapi.Request
	for title := range headers {
		if !existing[title] {
			reqs = append(reqs, &sheetsapi.Request{
				AddSheet: &sheetsapi.AddSheetRequest{
					Properties: &sheetsapi.SheetProperties{Title: title},
				},
			})
		}
	}
	if len(reqs) > 0 {
		resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID,
			&sheetsapi.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("add sheets: %w", err)
		}
		c.mu.Lock()
		for _, r := range resp.Replies {
			if r.AddSheet != nil {
				c.sheetIDs[r.AddSheet.Properties.Title] = r.AddSheet.Properties.SheetId
			}
		}
		c.mu.Unlock()
	}

	for title, header := range headers {
		if existing[title] {
			continue
		}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID,
			fmt.Sprintf("%s!A1", title),
			&sheetsapi.ValueRange{Values: [][]any{toCells(header)}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header %s: %w", title, err)
		}
	}
	return nil
}

func (c *GoogleClient) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range meta.Sheets {
		c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
	}
	id, ok = c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("worksheet %q not found", title)
	}
	return id, nil
}

type googleSheet struct {
	client *GoogleClient
	title  string
}

func (s *googleSheet) Rows(ctx context.Context) ([][]string, error) {
	resp, err := s.client.svc.Spreadsheets.Values.Get(s.client.spreadsheetID,
		fmt.Sprintf("%s!A2:Z", s.title)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.title, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		rows = append(rows, fromCells(raw))
	}
	return rows, nil
}

func (s *googleSheet) FindRow(ctx context.Context, key string) (int, error) {
	resp, err := s.client.svc.Spreadsheets.Values.Get(s.client.spreadsheetID,
		fmt.Sprintf("%s!A:A", s.title)).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", s.title, err)
	}
	for i, raw := range resp.Values {
		cells := fromCells(raw)
		if len(cells) > 0 && cells[0] == key && i > 0 {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *googleSheet) UpdateRow(ctx context.Context, row int, values []string) error {
	_, err := s.client.svc.Spreadsheets.Values.Update(s.client.spreadsheetID,
		fmt.Sprintf("%s!A%d", s.title, row),
		&sheetsapi.ValueRange{Values: [][]any{toCells(values)}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", s.title, row, err)
	}
	return nil
}

func (s *googleSheet) AppendRow(ctx context.Context, values []string) error {
	_, err := s.client.svc.Spreadsheets.Values.Append(s.client.spreadsheetID,
		fmt.Sprintf("%s!A1", s.title),
		&sheetsapi.ValueRange{Values: [][]any{toCells(values)}}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", s.title, err)
	}
	return nil
}

func (s *googleSheet) DeleteRow(ctx context.Context, row int) error {
	sheetID, err := s.client.sheetID(ctx, s.title)
	if err != nil {
		return err
	}
	_, err = s.client.svc.Spreadsheets.BatchUpdate(s.client.spreadsheetID,
		&sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: []*sheetsapi.Request{{
				DeleteDimension: &sheetsapi.DeleteDimensionRequest{
					Range: &sheetsapi.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "ROWS",
						StartIndex: int64(row - 1),
						EndIndex:   int64(row),
					},
				},
			}},
		}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete %s row %d: %w", s.title, row, err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func fromCells(raw []any) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = fmt.Sprint(v)
	}
	return out
}
