package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type (
	// Record is a single event in the list.
	Record struct {
		ID       int    `json:"id"`
		Name     string `json:"name"`
		Ancestry string `json:"ancestry"`
	}

	// Draft carries the editable fields of a record, without its id.
	Draft struct {
		Name     string `json:"name"`
		Ancestry string `json:"ancestry"`
	}
)

var (
	ErrInvalidID = errors.New("invalid id")
)

// Draft returns the editable fields of r.
func (r Record) Draft() Draft {
	return Draft{Name: r.Name, Ancestry: r.Ancestry}
}

// WithID builds a record from d.
func (d Draft) WithID(id int) Record {
	return Record{ID: id, Name: d.Name, Ancestry: d.Ancestry}
}

// ParseID converts a route or form id into the canonical integer form.
func ParseID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidID
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// recordWire is the decoding shape; it also accepts the older title/body
// field names and ids stored as strings.
type recordWire struct {
	ID       json.RawMessage `json:"id"`
	Name     *string         `json:"name"`
	Ancestry *string         `json:"ancestry"`
	Title    *string         `json:"title"`
	Body     *string         `json:"body"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := decodeID(w.ID)
	if err != nil {
		return err
	}

	*r = Record{ID: id}
	switch {
	case w.Name != nil:
		r.Name = *w.Name
	case w.Title != nil:
		r.Name = *w.Title
	}
	switch {
	case w.Ancestry != nil:
		r.Ancestry = *w.Ancestry
	case w.Body != nil:
		r.Ancestry = *w.Body
	}
	return nil
}

func decodeID(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return ParseID(s)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidID, raw)
	}
	return n, nil
}
