// Package google mirrors the event list into a Google Sheets tab.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"eventboard/internal/core"
	"eventboard/internal/log"
	ports "eventboard/internal/sheets"
)

const defaultSheetName = "Events"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var (
	_ ports.EventExporter = (*Client)(nil)
	_ ports.EventReader   = (*Client)(nil)
)

// NewFromEnv creates a client authenticated as a user when an OAuth client is
// configured (see cmd/sheets-auth), otherwise with service account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, spreadsheetID, sheetName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	oauthCfg, ok, err := OAuthConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if ok {
		opt, err := userClientOption(ctx, oauthCfg)
		if err != nil {
			return nil, err
		}
		logger.DebugContext(ctx, "Using OAuth user credentials", "token_file", TokenFile())
		return New(ctx, spreadsheetID, sheetName, logger, opt)
	}

	creds, err := serviceAccountJSON(ctx, logger)
	if err != nil {
		return nil, err
	}
	return New(ctx, spreadsheetID, sheetName, logger,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()),
	)
}

// New creates a client from explicit API options.
func New(ctx context.Context, spreadsheetID, sheetName string, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	if logger == nil {
		logger = log.Default()
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

func serviceAccountJSON(ctx context.Context, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case path != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:C", c.sheetName)
}

// Export clears the tab and writes a header row plus one row per record.
func (c *Client) Export(ctx context.Context, posts []core.Record) error {
	start := time.Now()
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.dataRange(), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", c.dataRange(), err)
	}

	vr := &gsheet.ValueRange{Values: toRows(posts)}
	target := fmt.Sprintf("%s!A1", c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	c.logger.InfoContext(ctx, "Exported events to sheet",
		"sheet", c.sheetName,
		log.FieldCount, len(posts),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// ReadEvents reads the tab back as records.
func (c *Client) ReadEvents(ctx context.Context) ([]core.Record, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.dataRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.dataRange(), err)
	}
	return parseRows(resp.Values)
}
