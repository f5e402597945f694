package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"eventboard/internal/core"
)

func TestParseDraft(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        core.Draft
	}{
		{"form", "application/x-www-form-urlencoded", "name=Fair&ancestry=Norse", core.Draft{Name: "Fair", Ancestry: "Norse"}},
		{"json", "application/json", `{"name":" Fair ","ancestry":"x"}`, core.Draft{Name: "Fair", Ancestry: "x"}},
		{"missing fields", "application/x-www-form-urlencoded", "other=1", core.Draft{}},
		{"control characters stripped", "application/x-www-form-urlencoded", "name=a%00b%07c&ancestry=line%0Abreak", core.Draft{Name: "abc", Ancestry: "line\nbreak"}},
		{"empty body", "", "", core.Draft{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			got, err := ParseDraft(req)
			if err != nil {
				t.Fatalf("ParseDraft() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDraft() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseDraftMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"name":`))
	if _, err := ParseDraft(req); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestRouteID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"3", 3, false},
		{"0", 0, false},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/events/x", nil), map[string]string{"id": tt.raw})
			got, err := RouteID(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RouteID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, core.ErrInvalidID) {
				t.Errorf("RouteID() error = %v, want ErrInvalidID", err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("RouteID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSearchTerm(t *testing.T) {
	if got := SearchTerm(url.Values{"q": {"  fair\x01 "}}); got != "fair" {
		t.Errorf("SearchTerm() = %q, want %q", got, "fair")
	}
}

func TestReadFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "json scalars",
			body: `{"id": "123", "name": "test", "amount": 42.5, "ok": true, "tags": ["a"]}`,
			want: map[string]string{"id": "123", "name": "test", "amount": "42.5", "ok": "true", "tags": ""},
		},
		{
			name: "form",
			body: "id=456&name=form+test&name=second",
			want: map[string]string{"id": "456", "name": "form test"},
		},
		{
			name: "empty",
			body: "   ",
			want: map[string]string{"missing": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			f, err := readFields(req)
			if err != nil {
				t.Fatalf("readFields() error = %v", err)
			}
			for k, want := range tt.want {
				if got := f.get(k); got != want {
					t.Errorf("get(%q) = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestReadFieldsRejectsLargeBodies(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"at limit", maxBodyBytes, false},
		{"over limit", maxBodyBytes + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "name=" + strings.Repeat("a", tt.size-len("name="))
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
			f, err := readFields(req)
			if tt.wantErr {
				if !errors.Is(err, ErrBodyTooLarge) {
					t.Fatalf("readFields() error = %v, want ErrBodyTooLarge", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("readFields() error = %v", err)
			}
			if got := len(f.get("name")); got != tt.size-len("name=") {
				t.Errorf("len(name) = %d, want %d", got, tt.size-len("name="))
			}
		})
	}
}

func TestReadFieldsMalformedForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("name=%zz"))
	if _, err := readFields(req); err == nil {
		t.Fatal("expected error for malformed form encoding")
	}
}
