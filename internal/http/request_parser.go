package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"eventboard/internal/core"
)

const maxBodyBytes = 64 << 10

var ErrBodyTooLarge = errors.New("request body too large")

// ParseDraft reads the event fields from a form or JSON body. Missing fields
// become empty strings; content is never rejected.
func ParseDraft(r *http.Request) (core.Draft, error) {
	f, err := readFields(r)
	if err != nil {
		return core.Draft{}, err
	}
	return core.Draft{
		Name:     f.get("name"),
		Ancestry: f.get("ancestry"),
	}, nil
}

// RouteID converts the {id} route variable to the canonical integer id.
func RouteID(r *http.Request) (int, error) {
	return core.ParseID(mux.Vars(r)["id"])
}

// SearchTerm returns the sanitised ?q= value.
func SearchTerm(query url.Values) string {
	return sanitizeInput(query.Get("q"))
}

// formError maps a ParseDraft failure to the fragment shown to the user.
func formError(err error) *HTMXResponseBuilder {
	if errors.Is(err, ErrBodyTooLarge) {
		return BadRequestError("The form is too large")
	}
	return BadRequestError("Could not read the form")
}

// fields is a flat view of a request body. htmx posts forms; API clients
// may post a JSON object instead.
type fields map[string]string

func (f fields) get(key string) string {
	return sanitizeInput(f[key])
}

// readFields decodes the body as JSON when it starts like an object,
// as a urlencoded form otherwise. Bodies over maxBodyBytes are rejected.
func readFields(r *http.Request) (fields, error) {
	if r.Body == nil {
		return fields{}, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fields{}, nil
	}

	if body[0] == '{' {
		var raw map[string]any
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
		out := make(fields, len(raw))
		for k, v := range raw {
			out[k] = scalarString(v)
		}
		return out, nil
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode form body: %w", err)
	}
	out := make(fields, len(form))
	for k := range form {
		out[k] = form.Get(k)
	}
	return out, nil
}

// scalarString renders JSON scalars; objects and arrays become "".
func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
