package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/notely/pkg/core"
)

// noteRequest is the body of POST and PUT. The service validates title and
// category semantics; the tags only reject malformed input.
type noteRequest struct {
	Title    string `json:"title" validate:"max=255"`
	Content  string `json:"content"`
	Category int64  `json:"category" validate:"gte=0"`
}

func (req noteRequest) input() core.NoteInput {
	return core.NoteInput{Title: req.Title, Content: req.Content, CategoryID: req.Category}
}

type patchRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=255"`
	Content  *string `json:"content"`
	Category *int64  `json:"category" validate:"omitempty,gt=0"`
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	var categoryID int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			writeError(w, r, s.logger, core.NewValidationError("category_id", "A valid integer is required."))
			return
		}
		categoryID = id
	}

	notes, err := s.svc.ListNotes(r.Context(), currentUser(r).ID, categoryID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	page, ok := paginate(r, notes, s.pageSize)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Invalid page.")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	n, err := s.svc.CreateNote(r.Context(), currentUser(r).ID, req.input())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	n, err := s.svc.GetNote(r.Context(), currentUser(r).ID, id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handlePatchNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	var req patchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	patch := core.NotePatch{Title: req.Title, Content: req.Content, CategoryID: req.Category}
	n, err := s.svc.UpdateNote(r.Context(), currentUser(r).ID, id, patch)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handlePutNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	var req noteRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	n, err := s.svc.UpdateNote(r.Context(), currentUser(r).ID, id, core.FullPatch(req.input()))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	if err := s.svc.DeleteNote(r.Context(), currentUser(r).ID, id); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.ListCategories(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	page, ok := paginate(r, cats, s.pageSize)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Invalid page.")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	c, err := s.svc.GetCategory(r.Context(), currentUser(r).ID, id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
