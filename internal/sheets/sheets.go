// Package sheets wraps the Google Sheets API behind a small row-oriented
// interface: one Worksheet per table, keyed by the value in column 1.
package sheets

import "context"

// Worksheet is one tab of the spreadsheet. Row indexes are absolute 1-based
// sheet rows; row 1 is the header, data starts at row 2.
type Worksheet interface {
	// Rows returns every data row, header excluded.
	Rows(ctx context.Context) ([][]string, error)
	// FindRow locates the row whose column 1 equals key. Returns 0 when
	// no row matches.
	FindRow(ctx context.Context, key string) (int, error)
	UpdateRow(ctx context.Context, row int, values []string) error
	AppendRow(ctx context.Context, values []string) error
	DeleteRow(ctx context.Context, row int) error
}

// Client is the spreadsheet as a set of named worksheets.
type Client interface {
	Sheet(title string) Worksheet
	// EnsureSheets creates any missing worksheet and writes its header row.
	EnsureSheets(ctx context.Context, headers map[string][]string) error
}
