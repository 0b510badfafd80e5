package sheets

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/SaurabhDhamne/AirStore/internal/pipeline"
)

// XLSXMimeType is the export format for full-spreadsheet downloads.
const XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Client talks to one spreadsheet through the Sheets and Drive APIs.
type Client struct {
	sheets        *sheetsapi.Service
	drive         *drive.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewClient builds a client for the given spreadsheet. credentialsFile
// may be empty, in which case application default credentials apply.
func NewClient(ctx context.Context, spreadsheetID, credentialsFile string, log zerolog.Logger) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	sheetsSvc, err := sheetsapi.NewService(ctx, append(opts, option.WithScopes(sheetsapi.SpreadsheetsScope))...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	driveSvc, err := drive.NewService(ctx, append(opts, option.WithScopes(drive.DriveReadonlyScope))...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Client{
		sheets:        sheetsSvc,
		drive:         driveSvc,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

// CreateTab adds a new tab to the spreadsheet and fills it with the
// header row followed by the data rows. A duplicate tab name is
// reported by the API and surfaced as-is; commits are never retried or
// deduplicated.
func (c *Client) CreateTab(ctx context.Context, tabName string, header []string, rows [][]string) (*pipeline.SheetRef, error) {
	addReq := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{
			{
				AddSheet: &sheetsapi.AddSheetRequest{
					Properties: &sheetsapi.SheetProperties{Title: tabName},
				},
			},
		},
	}

	resp, err := c.sheets.Spreadsheets.BatchUpdate(c.spreadsheetID, addReq).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("add sheet %q: %w", tabName, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return nil, fmt.Errorf("add sheet %q: missing reply properties", tabName)
	}
	sheetID := resp.Replies[0].AddSheet.Properties.SheetId

	values := make([][]interface{}, 0, len(rows)+1)
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	values = append(values, headerRow)
	for _, row := range rows {
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		values = append(values, cells)
	}

	vr := &sheetsapi.ValueRange{Values: values}
	_, err = c.sheets.Spreadsheets.Values.
		Update(c.spreadsheetID, fmt.Sprintf("'%s'!A1", tabName), vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("write values to %q: %w", tabName, err)
	}

	c.log.Info().
		Str("tab", tabName).
		Int64("sheet_id", sheetID).
		Int("rows", len(rows)).
		Msg("Sheet tab created")

	return &pipeline.SheetRef{
		SpreadsheetID: c.spreadsheetID,
		TabName:       tabName,
		SheetID:       sheetID,
	}, nil
}

// ExportXLSX downloads the entire spreadsheet as an XLSX workbook and
// writes it to path.
func (c *Client) ExportXLSX(ctx context.Context, path string) error {
	resp, err := c.drive.Files.Export(c.spreadsheetID, XLSXMimeType).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("export spreadsheet: %w", err)
	}
	defer resp.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}

	return nil
}
