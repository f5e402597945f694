package google

import (
	"fmt"
	"strconv"
	"strings"

	"eventboard/internal/core"
)

var header = []interface{}{"ID", "Name", "Ancestry"}

// toRows renders posts as a header row followed by one row per record.
func toRows(posts []core.Record) [][]interface{} {
	rows := make([][]interface{}, 0, len(posts)+1)
	rows = append(rows, header)
	for _, p := range posts {
		rows = append(rows, []interface{}{p.ID, p.Name, p.Ancestry})
	}
	return rows
}

// parseRows converts a values matrix back into records. The first row must
// be the header; blank rows are skipped.
func parseRows(values [][]interface{}) ([]core.Record, error) {
	if len(values) == 0 {
		return []core.Record{}, nil
	}
	headers := toStrings(values[0])
	colID, colName, colAncestry := indexOf(headers, "ID"), indexOf(headers, "Name"), indexOf(headers, "Ancestry")
	if colID == -1 || colName == -1 || colAncestry == -1 {
		return nil, fmt.Errorf("unexpected header: got %v, want %v", headers, header)
	}

	out := make([]core.Record, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		idStr := strings.TrimSpace(safeGet(row, colID))
		if idStr == "" {
			continue
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w: %q", i+1, core.ErrInvalidID, idStr)
		}
		out = append(out, core.Record{
			ID:       id,
			Name:     safeGet(row, colName),
			Ancestry: safeGet(row, colAncestry),
		})
	}
	return out, nil
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func indexOf(list []string, want string) int {
	for i, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), want) {
			return i
		}
	}
	return -1
}

func safeGet(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
