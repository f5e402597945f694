package http

import (
	"context"
	"fmt"
	"net/http"

	"eventboard/internal/core"
	"eventboard/internal/log"
	"eventboard/internal/remote"
)

type listPage struct {
	Title  string
	Query  string
	Events []core.Record
}

type formPage struct {
	Title   string
	Editing bool
	ID      int
	Event   core.Draft
}

type detailPage struct {
	Title string
	ID    int
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := SearchTerm(r.URL.Query())
	s.render(w, r, http.StatusOK, "list.html", listPage{
		Title:  "Events",
		Query:  q,
		Events: core.FilterByName(s.events.List(), q),
	})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	q := SearchTerm(r.URL.Query())
	s.render(w, r, http.StatusOK, "rows", core.FilterByName(s.events.List(), q))
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "form.html", formPage{Title: "New event"})
}

// handleEditForm prefills the form. An id with no record renders a blank
// form that still submits to that id.
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := RouteID(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	rec, _ := s.events.Find(id)
	s.render(w, r, http.StatusOK, "form.html", formPage{
		Title:   "Edit event",
		Editing: true,
		ID:      id,
		Event:   rec.Draft(),
	})
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := RouteID(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	s.render(w, r, http.StatusOK, "detail.html", detailPage{Title: "Event", ID: id})
}

// handleDetailPartial fetches the record from the remote collection. Any
// failure leaves the loading indicator in place; there is no retry.
func (s *Server) handleDetailPartial(w http.ResponseWriter, r *http.Request) {
	id, err := RouteID(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	if s.remote == nil {
		s.render(w, r, http.StatusOK, "loading", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.remoteTimeout)
	defer cancel()

	post, err := s.remote.GetPost(ctx, id)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Detail fetch failed",
			log.FieldOperation, log.OpFetch,
			log.FieldEventID, id,
			log.FieldError, err)
		s.render(w, r, http.StatusOK, "loading", nil)
		return
	}
	s.render(w, r, http.StatusOK, "detail_body", post)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	draft, err := ParseDraft(r)
	if err != nil {
		formError(err).Write(w)
		return
	}
	posts := s.events.Dispatch(r.Context(), core.Added{Post: draft})
	id := -1
	if len(posts) > 0 {
		id = posts[len(posts)-1].ID
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Event created",
		log.FieldOperation, log.OpCreate, log.FieldEventID, id)
	NewHTMXResponse().
		TriggerEventAdded(id).
		TriggerSuccessNotification(fmt.Sprintf("Added %q", draft.Name)).
		Redirect(r, "/events").
		Write(w)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := RouteID(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	draft, err := ParseDraft(r)
	if err != nil {
		formError(err).Write(w)
		return
	}
	s.events.Dispatch(r.Context(), core.Updated{ID: id, Post: draft})
	log.FromContext(r.Context()).DebugContext(r.Context(), "Event updated",
		log.FieldOperation, log.OpUpdate, log.FieldEventID, id)
	NewHTMXResponse().
		TriggerEventUpdated(id).
		TriggerSuccessNotification(fmt.Sprintf("Saved %q", draft.Name)).
		Redirect(r, "/events").
		Write(w)
}

// handleDelete serves both the htmx DELETE, which swaps the row out with an
// empty body, and the form POST fallback, which redirects.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := RouteID(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	s.events.Dispatch(r.Context(), core.Removed{ID: id})
	log.FromContext(r.Context()).DebugContext(r.Context(), "Event removed",
		log.FieldOperation, log.OpDelete, log.FieldEventID, id)

	resp := NewHTMXResponse().
		TriggerEventRemoved(id).
		TriggerSuccessNotification("Event deleted")
	if r.Method == http.MethodPost {
		resp.Redirect(r, "/events")
	}
	resp.Write(w)
}

func postsFromRecords(list []core.Record) []remote.Post {
	out := make([]remote.Post, len(list))
	for i, rec := range list {
		out[i] = remote.FromRecord(rec)
	}
	return out
}
