// Package http serves the event board: server-rendered pages, htmx
// partials and the JSON collection the detail view reads from.
//
// This file holds the builder for htmx responses: HX-Trigger events plus a
// consistent shape for error fragments.
package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Event names carried in HX-Trigger.
const (
	TriggerAdded        = "event:added"
	TriggerUpdated      = "event:updated"
	TriggerRemoved      = "event:removed"
	TriggerShowNotifier = "show-notification"
)

// HTMXResponseBuilder collects status, headers, HX-Trigger events and a
// body, and writes them in one go.
type HTMXResponseBuilder struct {
	status   int
	header   http.Header
	triggers map[string]any
	body     []byte
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status:   http.StatusOK,
		header:   http.Header{},
		triggers: map[string]any{},
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// Trigger queues a client-side event; data becomes its detail.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

func (b *HTMXResponseBuilder) TriggerEventAdded(id int) *HTMXResponseBuilder {
	return b.Trigger(TriggerAdded, map[string]int{"id": id})
}

func (b *HTMXResponseBuilder) TriggerEventUpdated(id int) *HTMXResponseBuilder {
	return b.Trigger(TriggerUpdated, map[string]int{"id": id})
}

func (b *HTMXResponseBuilder) TriggerEventRemoved(id int) *HTMXResponseBuilder {
	return b.Trigger(TriggerRemoved, map[string]int{"id": id})
}

// NotificationType selects the style of the toast app.js shows.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(TriggerShowNotifier, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

// Redirect points htmx at target with HX-Redirect, and plain browsers with
// a 303.
func (b *HTMXResponseBuilder) Redirect(r *http.Request, target string) *HTMXResponseBuilder {
	if isHTMX(r) {
		return b.Header("HX-Redirect", target)
	}
	return b.Header("Location", target).Status(http.StatusSeeOther)
}

func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	return b.Body([]byte(html))
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.triggers) > 0 {
		// map values are plain data; Marshal cannot fail here
		encoded, _ := json.Marshal(b.triggers)
		h.Set("HX-Trigger", string(encoded))
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message, escaped, as an error fragment.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}
