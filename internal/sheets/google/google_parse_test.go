package google

import (
	"reflect"
	"testing"

	"eventboard/internal/core"
)

func TestToRowsAndParseRows(t *testing.T) {
	posts := []core.Record{{ID: 0, Name: "A", Ancestry: "x"}, {ID: 4, Name: "B"}}

	rows := toRows(posts)
	if len(rows) != 3 || rows[0][0] != "ID" {
		t.Fatalf("toRows = %v", rows)
	}

	// The API returns every cell as a string.
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = make([]interface{}, len(r))
		for j, v := range r {
			values[i][j] = toStrings([]interface{}{v})[0]
		}
	}
	got, err := parseRows(values)
	if err != nil {
		t.Fatalf("parseRows: %v", err)
	}
	if !reflect.DeepEqual(got, posts) {
		t.Fatalf("parseRows = %+v, want %+v", got, posts)
	}
}

func TestParseRows(t *testing.T) {
	tests := []struct {
		name    string
		values  [][]interface{}
		want    []core.Record
		wantErr bool
	}{
		{"empty sheet", nil, []core.Record{}, false},
		{"header only", [][]interface{}{{"ID", "Name", "Ancestry"}}, []core.Record{}, false},
		{"reordered columns", [][]interface{}{{"name", "ancestry", "id"}, {"A", "x", "2"}}, []core.Record{{ID: 2, Name: "A", Ancestry: "x"}}, false},
		{"short row", [][]interface{}{{"ID", "Name", "Ancestry"}, {"1", "A"}}, []core.Record{{ID: 1, Name: "A"}}, false},
		{"blank row skipped", [][]interface{}{{"ID", "Name", "Ancestry"}, {""}, {"3", "C", ""}}, []core.Record{{ID: 3, Name: "C"}}, false},
		{"bad header", [][]interface{}{{"Foo"}}, nil, true},
		{"bad id", [][]interface{}{{"ID", "Name", "Ancestry"}, {"x", "A", ""}}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRows(tt.values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRows() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseRows() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
