package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/query"
	"inboxd/pkg/utils"
)

// writeErr maps domain sentinels onto envelope codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, utils.CodeNotFound, "resource not found")
	case errors.Is(err, models.ErrValidation):
		utils.JSONError(w, http.StatusBadRequest, utils.CodeValidation, err.Error())
	case errors.Is(err, models.ErrArchived):
		utils.JSONError(w, http.StatusConflict, utils.CodeValidation, err.Error())
	case errors.Is(err, models.ErrConflict):
		utils.JSONError(w, http.StatusConflict, utils.CodeConflict, err.Error())
	default:
		logger.Error("request_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, utils.CodeInternal, "internal error")
	}
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := query.Params{
		Platform: q.Get("platform"),
		Search:   q.Get("search"),
		Cursor:   q.Get("cursor"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, utils.CodeValidation, "limit must be a non-negative integer")
			return
		}
		p.Limit = n
	}
	if v := q.Get("flagged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, utils.CodeValidation, "flagged must be a boolean")
			return
		}
		p.Flagged = &b
	}
	if v := q.Get("archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, utils.CodeValidation, "archived must be a boolean")
			return
		}
		p.Archived = &b
	}

	page, err := s.eng.List(businessFrom(r), p)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONSuccess(w, http.StatusOK, page, "")
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	t, err := s.st.GetScoped(businessFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONSuccess(w, http.StatusOK, t, "")
}

type replyRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, utils.CodeValidation, "invalid JSON body")
		return
	}
	m, err := s.disp.SendReply(r.Context(), businessFrom(r), mux.Vars(r)["id"], req.Content)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONSuccess(w, http.StatusAccepted, m, "reply queued for delivery")
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	res, err := s.sugg.GetSuggestions(r.Context(), businessFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONSuccess(w, http.StatusOK, res, "")
}

func (s *Server) handleUpdateFlags(w http.ResponseWriter, r *http.Request) {
	var patch models.FlagPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.JSONError(w, http.StatusBadRequest, utils.CodeValidation, "invalid JSON body")
		return
	}
	if patch.IsFlagged == nil && patch.IsArchived == nil {
		utils.JSONError(w, http.StatusBadRequest, utils.CodeValidation, "at least one of is_flagged, is_archived is required")
		return
	}
	business := businessFrom(r)
	id := mux.Vars(r)["id"]
	if _, err := s.st.GetScoped(business, id); err != nil {
		writeErr(w, err)
		return
	}
	t, err := s.st.UpdateFlags(id, patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONSuccess(w, http.StatusOK, t.Summarize(), "")
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	business := businessFrom(r)
	id := mux.Vars(r)["id"]
	if _, err := s.st.GetScoped(business, id); err != nil {
		writeErr(w, err)
		return
	}
	t, err := s.st.MarkRead(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONSuccess(w, http.StatusOK, t.Summarize(), "")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	utils.JSONSuccess(w, http.StatusOK, s.agg.Snapshot(businessFrom(r)), "")
}
