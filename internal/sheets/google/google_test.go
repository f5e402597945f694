package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"

	"eventboard/internal/core"
	"eventboard/internal/log"
)

// fakeSheets keeps one tab's values in memory and answers the three
// Values endpoints the client uses.
type fakeSheets struct {
	mu     sync.Mutex
	values [][]interface{}
	calls  []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	if !strings.Contains(path, "/v4/spreadsheets/sheet-1/values/") {
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		f.values = nil
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update:"+r.URL.Query().Get("valueInputOption"))
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.values = body.Values
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	case r.Method == http.MethodGet:
		f.calls = append(f.calls, "get")
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Events!A:C", "values": f.values})
	default:
		http.Error(w, "unexpected", http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "sheet-1", "", log.Discard(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fake
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), " ", "Events", nil, goption.WithoutAuthentication()); err == nil {
		t.Fatal("expected error for empty spreadsheet id")
	}
}

func TestExportReplacesTab(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if c.sheetName != defaultSheetName {
		t.Fatalf("sheetName = %q, want %q", c.sheetName, defaultSheetName)
	}

	first := []core.Record{{ID: 0, Name: "A"}, {ID: 1, Name: "B", Ancestry: "x"}}
	if err := c.Export(ctx, first); err != nil {
		t.Fatalf("Export: %v", err)
	}
	second := []core.Record{{ID: 1, Name: "B", Ancestry: "x"}}
	if err := c.Export(ctx, second); err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, err := c.ReadEvents(ctx)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(got) != 1 || got[0] != second[0] {
		t.Fatalf("ReadEvents = %+v, want %+v", got, second)
	}

	want := []string{"clear", "update:RAW", "clear", "update:RAW", "get"}
	if strings.Join(fake.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
}

func TestExportSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), "sheet-1", "Events", log.Discard(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Export(context.Background(), nil); err == nil {
		t.Fatal("expected error from forbidden response")
	}
}
