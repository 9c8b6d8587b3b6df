package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsLedger stores rows in a Google Sheets workbook.
type SheetsLedger struct {
	service *sheets.Service
	sheetID string
}

// Ensure SheetsLedger implements Ledger
var _ Ledger = (*SheetsLedger)(nil)

// NewSheetsLedger creates a ledger client authenticated as a service account.
func NewSheetsLedger(ctx context.Context, sheetID, serviceAccountEmail, privateKey string) (*SheetsLedger, error) {
	if sheetID == "" {
		return nil, fmt.Errorf("sheet id is required")
	}

	conf := &jwt.Config{
		Email:      serviceAccountEmail,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}

	service, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsLedger{
		service: service,
		sheetID: sheetID,
	}, nil
}

// EnsureStructure creates missing tabs and writes header rows where absent.
func (l *SheetsLedger) EnsureStructure(ctx context.Context) error {
	spreadsheet, err := l.service.Spreadsheets.Get(l.sheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read workbook: %w", err)
	}

	existing := make(map[string]bool)
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil {
			existing[sheet.Properties.Title] = true
		}
	}

	var requests []*sheets.Request
	for _, name := range TabNames {
		if !existing[name] {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) > 0 {
		_, err = l.service.Spreadsheets.BatchUpdate(l.sheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: requests,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to create missing tabs: %w", err)
		}
		logrus.Infof("Created %d missing ledger tabs", len(requests))
	}

	for _, name := range TabNames {
		current, err := l.ReadRange(ctx, fmt.Sprintf("%s!1:1", name))
		if err != nil {
			return fmt.Errorf("failed to read header row of %s: %w", name, err)
		}
		if len(current) == 0 || len(current[0]) == 0 {
			if err := l.writeHeader(ctx, name, TabHeaders[name]); err != nil {
				return err
			}
		}
	}

	return nil
}

func (l *SheetsLedger) writeHeader(ctx context.Context, tab string, headers []string) error {
	row := make([]interface{}, len(headers))
	for i, header := range headers {
		row[i] = header
	}

	_, err := l.service.Spreadsheets.Values.Update(l.sheetID, fmt.Sprintf("%s!1:1", tab), &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write header row of %s: %w", tab, err)
	}

	logrus.Infof("Wrote header row for ledger tab %s", tab)
	return nil
}

// ReadRange reads a rectangular range, returning rows of strings.
func (l *SheetsLedger) ReadRange(ctx context.Context, readRange string) ([][]string, error) {
	resp, err := l.service.Spreadsheets.Values.Get(l.sheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", readRange, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// AppendRows appends data rows to a tab. No-op on empty input.
func (l *SheetsLedger) AppendRows(ctx context.Context, tab string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	_, err := l.service.Spreadsheets.Values.Append(l.sheetID, fmt.Sprintf("%s!A:Z", tab), &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append %d rows to %s: %w", len(rows), tab, err)
	}

	return nil
}
