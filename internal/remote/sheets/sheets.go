// Package sheets backs the remote ports with a Google spreadsheet. Four
// tabs mirror the hosted resources: visits, locations, companions and the
// visit/companion links. Rows are keyed by the id in column A; deleting
// clears the row so positions stay stable between reads.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"visitas/internal/core"
	"visitas/internal/remote"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	visitsTab     string
	locationsTab  string
	companionsTab string
	linksTab      string
}

var _ remote.Backend = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables and a
// service account.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional tab names: GOOGLE_VISITS_TAB (default "Visitas"),
// GOOGLE_LOCATIONS_TAB (default "Locais"), GOOGLE_COMPANIONS_TAB (default
// "Acompanhantes"), GOOGLE_LINKS_TAB (default "VisitaAcompanhantes").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		visitsTab:     envOr("GOOGLE_VISITS_TAB", "Visitas"),
		locationsTab:  envOr("GOOGLE_LOCATIONS_TAB", "Locais"),
		companionsTab: envOr("GOOGLE_COMPANIONS_TAB", "Acompanhantes"),
		linksTab:      envOr("GOOGLE_LINKS_TAB", "VisitaAcompanhantes"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials.
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

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) readRange(ctx context.Context, tab, cols string) ([][]any, error) {
	rng := fmt.Sprintf("%s!%s", tab, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// findRowByID returns the 1-based sheet row whose column A equals id, or 0.
// Row 1 is the header.
func (c *Client) findRowByID(ctx context.Context, tab, id string) (int, error) {
	values, err := c.readRange(ctx, tab, "A:A")
	if err != nil {
		return 0, err
	}
	for i, row := range values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (c *Client) appendRow(ctx context.Context, tab string, row []any) error {
	rng := fmt.Sprintf("%s!A:A", tab)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", tab, err)
	}
	return nil
}

func (c *Client) clearRow(ctx context.Context, tab string, row, lastCol int) error {
	rng := fmt.Sprintf("%s!A%d:%s%d", tab, row, colLetter(lastCol), row)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) ListVisits(ctx context.Context) ([]core.RawRecord, error) {
	visitRows, err := c.readRange(ctx, c.visitsTab, visitRange)
	if err != nil {
		return nil, err
	}
	locations, err := c.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	companions, err := c.ListCompanions(ctx)
	if err != nil {
		return nil, err
	}
	linkRows, err := c.readRange(ctx, c.linksTab, linkRange)
	if err != nil {
		return nil, err
	}

	links := parseLinkRows(linkRows)
	out := make([]core.RawRecord, 0, len(visitRows))
	for i, row := range visitRows {
		if i == 0 {
			continue // header
		}
		rec, ok := visitRecordFromRow(row)
		if !ok {
			continue
		}
		joinLocation(rec, locations)
		joinCompanions(rec, links, companions)
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) InsertVisit(ctx context.Context, fields core.RawRecord) error {
	row := visitRowFromRecord(fields)
	if row[0] == "" {
		return errors.New("insert visit: missing id")
	}
	return c.appendRow(ctx, c.visitsTab, row)
}

func (c *Client) UpdateVisit(ctx context.Context, id string, fields core.RawRecord) error {
	rowNum, err := c.findRowByID(ctx, c.visitsTab, id)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		return fmt.Errorf("update visit: no row with id %s", id)
	}

	var data []*gsheet.ValueRange
	for key, val := range fields {
		col, ok := visitColumns[key]
		if !ok {
			continue
		}
		data = append(data, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", c.visitsTab, colLetter(col), rowNum),
			Values: [][]any{{cellValue(val)}},
		})
	}
	if len(data) == 0 {
		return nil
	}
	req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED", Data: data}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update visit %s: %w", id, err)
	}
	return nil
}

func (c *Client) DeleteVisit(ctx context.Context, id string) error {
	rowNum, err := c.findRowByID(ctx, c.visitsTab, id)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		return nil
	}
	return c.clearRow(ctx, c.visitsTab, rowNum, len(visitColumns))
}

func (c *Client) ListLocations(ctx context.Context) ([]core.Location, error) {
	rows, err := c.readRange(ctx, c.locationsTab, locationRange)
	if err != nil {
		return nil, err
	}
	return parseLocationRows(rows), nil
}

func (c *Client) FindLocationByName(ctx context.Context, name string) (core.Location, bool, error) {
	locations, err := c.ListLocations(ctx)
	if err != nil {
		return core.Location{}, false, err
	}
	for _, l := range locations {
		if strings.EqualFold(strings.TrimSpace(l.Name), strings.TrimSpace(name)) {
			return l, true, nil
		}
	}
	return core.Location{}, false, nil
}

func (c *Client) InsertLocation(ctx context.Context, loc core.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	return c.appendRow(ctx, c.locationsTab, []any{loc.ID, loc.Name, loc.Address, loc.Icon})
}

func (c *Client) ListCompanions(ctx context.Context) ([]core.Companion, error) {
	rows, err := c.readRange(ctx, c.companionsTab, companionRange)
	if err != nil {
		return nil, err
	}
	return parseCompanionRows(rows), nil
}

func (c *Client) FindCompanionByName(ctx context.Context, name string) (core.Companion, bool, error) {
	companions, err := c.ListCompanions(ctx)
	if err != nil {
		return core.Companion{}, false, err
	}
	for _, cn := range companions {
		if strings.EqualFold(strings.TrimSpace(cn.Name), strings.TrimSpace(name)) {
			return cn, true, nil
		}
	}
	return core.Companion{}, false, nil
}

func (c *Client) InsertCompanion(ctx context.Context, cn core.Companion) error {
	if err := cn.Validate(); err != nil {
		return err
	}
	return c.appendRow(ctx, c.companionsTab, []any{cn.ID, cn.Name, cn.Active})
}

// ReplaceLinks clears every link row of the visit and appends the new set.
// The two halves are one logical unit; callers must not retry either half
// on its own.
func (c *Client) ReplaceLinks(ctx context.Context, visitID string, links []remote.Link) error {
	rows, err := c.readRange(ctx, c.linksTab, linkRange)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == visitID {
			if err := c.clearRow(ctx, c.linksTab, i+1, 3); err != nil {
				return err
			}
		}
	}
	for _, l := range links {
		if err := c.appendRow(ctx, c.linksTab, []any{visitID, l.CompanionID, l.Cost.Reais()}); err != nil {
			return err
		}
	}
	return nil
}
