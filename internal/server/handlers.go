package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/usecase"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := domain.HealthStatus{
		Status:    "ok",
		PID:       s.deps.Host.PID,
		Version:   s.deps.Host.Version,
		StartedAt: s.deps.Host.StartedAt,
		Tabs:      len(s.deps.Tabs.All()),
	}
	if alarms, err := s.deps.Alarms.All(r.Context()); err == nil {
		status.Alarms = len(alarms)
	}
	RespondJSON(w, http.StatusOK, status)
}

// --- popup ---

func (s *Server) handlePopupState(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.Popup.Load(r.Context())
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, state)
}

func (s *Server) handlePopupStart(w http.ResponseWriter, r *http.Request) {
	var opts usecase.StartOptions
	if err := decodeJSON(w, r, &opts); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(opts); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := s.deps.Popup.StartFocus(r.Context(), opts)
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, state)
}

func (s *Server) handlePopupStop(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.Popup.StopFocus(r.Context())
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, state)
}

func (s *Server) handlePopupTheme(w http.ResponseWriter, r *http.Request) {
	var req domain.ThemeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Popup.ChangeTheme(r.Context(), req.Theme); err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// --- storage ---

func (s *Server) handleStorageGet(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]

	var (
		items map[string]json.RawMessage
		err   error
	)
	if len(keys) == 0 {
		items, err = s.deps.Storage.GetAll(r.Context())
	} else {
		items, err = s.deps.Storage.Get(r.Context(), keys...)
	}
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, items)
}

func (s *Server) handleStorageSet(w http.ResponseWriter, r *http.Request) {
	var items map[string]json.RawMessage
	if err := decodeJSON(w, r, &items); err != nil || len(items) == 0 {
		RespondError(w, http.StatusBadRequest, "body must be a non-empty JSON object")
		return
	}
	for key := range items {
		if key == "" {
			RespondError(w, http.StatusBadRequest, "keys must not be empty")
			return
		}
	}

	if err := s.deps.Storage.Set(r.Context(), items); err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleStorageRemove(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		RespondError(w, http.StatusBadRequest, "at least one key query parameter is required")
		return
	}

	if err := s.deps.Storage.Remove(r.Context(), keys...); err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// --- alarms ---

func (s *Server) handleAlarmsList(w http.ResponseWriter, r *http.Request) {
	alarms, err := s.deps.Alarms.All(r.Context())
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, alarms)
}

func (s *Server) handleAlarmCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.AlarmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Alarms.Create(r.Context(), req.Name, time.Duration(req.DelayMs)*time.Millisecond); err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleAlarmClear(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	cleared, err := s.deps.Alarms.Clear(r.Context(), name)
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, domain.ClearResult{Cleared: cleared})
}
