package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/platewise/menuboard/internal/menu"
)

// decodeJSON decodes the request body into v, reporting a validation error
// on malformed payloads so the client gets a 400, not a 500.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &menu.ValidationError{Message: "malformed JSON body: " + err.Error()}
	}
	return nil
}

// draftResponse is the draft document plus, on request, the add-on draft
// bundle so the editor loads in one round trip.
type draftResponse struct {
	*menu.DraftRecord
	AddonGroups []menu.AddonGroup `json:"addonGroups,omitempty"`
	AddonLinks  []menu.AddonLink  `json:"addonLinks,omitempty"`
	Seeded      *menu.SeedStats   `json:"seeded,omitempty"`
}

// handleGetDraft returns the restaurant's draft document. With ?addons=true
// the add-on drafts are included, seeding them from published rows on first
// read.
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")

	rec, err := s.service.GetDraft(r.Context(), restaurantID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := draftResponse{DraftRecord: rec}
	if r.URL.Query().Get("addons") == "true" {
		bundle, err := s.service.AddonDrafts(r.Context(), restaurantID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		resp.AddonGroups = bundle.Groups
		resp.AddonLinks = bundle.Links
		resp.Seeded = bundle.Seeded
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSaveDraft replaces the restaurant's draft document.
func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")

	var doc menu.DraftDocument
	if err := decodeJSON(r, &doc); err != nil {
		s.respondError(w, r, err)
		return
	}

	rec, err := s.service.SaveDraft(r.Context(), restaurantID, doc)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handlePublish runs the full publish sequence and returns the receipt.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")

	receipt, err := s.service.Publish(r.Context(), restaurantID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// bulkRequest is the JSON form of a bulk submission.
type bulkRequest struct {
	Mode    menu.BulkMode  `json:"mode"`
	Rows    []menu.BulkRow `json:"rows"`
	Confirm bool           `json:"confirm"`
}

// handleBulk accepts either a JSON body or a multipart CSV upload and runs
// the requested reconciliation mode. Bulk mode without confirm returns the
// preview and writes nothing.
func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")

	if err := s.bulk.acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.bulk.release()

	req, err := s.readBulkRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(req.Rows) == 0 {
		s.respondError(w, r, &menu.ValidationError{Message: "no rows submitted"})
		return
	}
	if len(req.Rows) > s.cfg.Bulk.MaxRows {
		s.respondError(w, r, &menu.ValidationError{
			Message: fmt.Sprintf("too many rows: %d (limit %d)", len(req.Rows), s.cfg.Bulk.MaxRows),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Bulk.Timeout)
	defer cancel()

	switch req.Mode {
	case menu.ModeImport:
		result, err := s.service.ImportItems(ctx, restaurantID, req.Rows)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case menu.ModeBulk:
		preview, result, err := s.service.BulkUpdate(ctx, restaurantID, req.Rows, req.Confirm)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if preview != nil {
			writeJSON(w, http.StatusOK, preview)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		s.respondError(w, r, &menu.ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("unknown mode %q (want %q or %q)", req.Mode, menu.ModeImport, menu.ModeBulk),
		})
	}
}

// readBulkRequest extracts mode, rows and confirm from either encoding.
func (s *Server) readBulkRequest(r *http.Request) (*bulkRequest, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return s.readBulkCSV(r)
	}

	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if req.Mode == "" {
		req.Mode = menu.ModeImport
	}
	return &req, nil
}

// readBulkCSV parses a multipart upload: the CSV under "file", plus mode
// and confirm form fields.
func (s *Server) readBulkCSV(r *http.Request) (*bulkRequest, error) {
	if err := r.ParseMultipartForm(s.cfg.Bulk.MaxFileSize); err != nil {
		return nil, &menu.ValidationError{Message: "malformed multipart body: " + err.Error()}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &menu.ValidationError{Field: "file", Message: "missing CSV file upload"}
	}
	defer file.Close()

	data, err := readUpload(file, header, s.cfg.Bulk.MaxFileSize)
	if err != nil {
		return nil, err
	}

	rows, err := menu.ParseBulkCSV(data)
	if err != nil {
		return nil, &menu.ValidationError{Field: "file", Message: err.Error()}
	}

	req := &bulkRequest{
		Mode:    menu.BulkMode(r.FormValue("mode")),
		Rows:    rows,
		Confirm: r.FormValue("confirm") == "true",
	}
	if req.Mode == "" {
		req.Mode = menu.ModeImport
	}
	return req, nil
}

// readUpload reads the file, rejecting anything over the size limit.
func readUpload(file multipart.File, header *multipart.FileHeader, limit int64) ([]byte, error) {
	if header.Size > limit {
		return nil, &menu.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file too large: %d bytes (limit %d)", header.Size, limit),
		}
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, &menu.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file too large (limit %d bytes)", limit),
		}
	}
	return data, nil
}

// handleSaveAddonGroup creates or updates a draft add-on group, options
// included.
func (s *Server) handleSaveAddonGroup(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")

	var g menu.AddonGroup
	if err := decodeJSON(r, &g); err != nil {
		s.respondError(w, r, err)
		return
	}
	g.ID = chi.URLParam(r, "groupID")

	saved, err := s.service.SaveAddonGroup(r.Context(), restaurantID, g)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleArchiveAddonGroup soft-deletes a draft add-on group.
func (s *Server) handleArchiveAddonGroup(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	groupID := chi.URLParam(r, "groupID")

	if err := s.service.ArchiveAddonGroup(r.Context(), restaurantID, groupID); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// assignRequest names the items one group should be attached to.
type assignRequest struct {
	ItemIDs []string `json:"itemIds"`
}

// handleAssignGroup replaces one group's draft item links. The response
// maps each requested id to the item's external key, minting keys where
// missing, so the editor can update its state without a reload.
func (s *Server) handleAssignGroup(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	groupID := chi.URLParam(r, "groupID")

	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	keys, err := s.service.AssignGroup(r.Context(), restaurantID, groupID, req.ItemIDs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": keys})
}

// handleMenu returns the live menu: active categories and items only.
func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")

	m, err := s.service.Menu(r.Context(), restaurantID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handlePublishedGroups returns the live add-on schema with nested options.
func (s *Server) handlePublishedGroups(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")

	groups, err := s.service.PublishedAddonGroups(r.Context(), restaurantID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"addonGroups": groups})
}

// validateRequest is an order-time selection to check.
type validateRequest struct {
	Selections menu.Selection `json:"selections"`
}

// validateResponse reports every violated constraint; an empty list means
// the selection is orderable.
type validateResponse struct {
	Valid  bool                  `json:"valid"`
	Errors []menu.SelectionError `json:"errors,omitempty"`
}

// handleValidateSelections checks a selection map against the published
// add-on schema.
func (s *Server) handleValidateSelections(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")

	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	groups, err := s.service.PublishedAddonGroups(r.Context(), restaurantID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	errs := menu.ValidateSelections(groups, req.Selections)
	writeJSON(w, http.StatusOK, validateResponse{Valid: len(errs) == 0, Errors: errs})
}
