package http

import (
	"net/http"
	"strconv"

	applog "visitas/internal/log"

	"visitas/internal/core"
	"visitas/internal/visits"
)

func (s *Server) handleListVisits(w http.ResponseWriter, r *http.Request) {
	all := s.store.Visits()

	// Optional ?year=&month= narrows the list to one calendar month.
	q := r.URL.Query()
	if q.Get("year") != "" || q.Get("month") != "" {
		year, err1 := strconv.Atoi(q.Get("year"))
		month, err2 := strconv.Atoi(q.Get("month"))
		if err1 != nil || err2 != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "year and month must be given together as numbers")
			return
		}
		all = core.FilterMonth(all, year, month)
	}

	writeJSON(w, http.StatusOK, map[string]any{"visits": toVisitDTOs(all)})
}

func (s *Server) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	v, ok := s.store.Visit(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "visit not found")
		return
	}
	writeJSON(w, http.StatusOK, toVisitDTO(v))
}

type createVisitRequest struct {
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	LocationID      string   `json:"location_id"`
	LocationName    string   `json:"location_name"`
	LocationAddress string   `json:"location_address"`
	Observation     string   `json:"observation"`
	Companions      []string `json:"companions"`
}

func (s *Server) handleCreateVisit(w http.ResponseWriter, r *http.Request) {
	var req createVisitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	names := make([]string, 0, len(req.Companions))
	for _, n := range req.Companions {
		names = append(names, sanitize(n))
	}
	v, err := s.store.Create(r.Context(), visits.NewVisit{
		Date:            sanitize(req.Date),
		Time:            sanitize(req.Time),
		LocationID:      sanitize(req.LocationID),
		LocationName:    sanitize(req.LocationName),
		LocationAddress: sanitize(req.LocationAddress),
		Observation:     sanitize(req.Observation),
		CompanionNames:  names,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateSummaries()
	s.logger.InfoContext(r.Context(), "Visit created via API",
		applog.FieldVisitID, v.ID, applog.FieldVisitDate, v.Date, applog.FieldLocation, v.Location.Name)
	writeJSON(w, http.StatusCreated, toVisitDTO(v))
}

type updateVisitRequest struct {
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Observation *string `json:"observation"`
}

func (s *Server) handleUpdateVisit(w http.ResponseWriter, r *http.Request) {
	var req updateVisitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	v, err := s.store.Update(r.Context(), r.PathValue("id"), visits.Patch{
		Date:        req.Date,
		Time:        req.Time,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Observation: req.Observation,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, toVisitDTO(v))
}

type finalizeVisitRequest struct {
	StartTime  string   `json:"start_time"`
	EndTime    string   `json:"end_time"`
	Companions []string `json:"companions"`
}

func (s *Server) handleFinalizeVisit(w http.ResponseWriter, r *http.Request) {
	var req finalizeVisitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	names := make([]string, 0, len(req.Companions))
	for _, n := range req.Companions {
		names = append(names, sanitize(n))
	}
	v, err := s.store.Finalize(r.Context(), r.PathValue("id"),
		sanitize(req.StartTime), sanitize(req.EndTime), names)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateSummaries()
	s.logger.InfoContext(r.Context(), "Visit finalized via API",
		applog.FieldVisitID, v.ID, applog.FieldCompanions, len(v.Companions))
	writeJSON(w, http.StatusOK, toVisitDTO(v))
}

type notesRequest struct {
	Observation string `json:"observation"`
	Companions  []struct {
		Name      string `json:"name"`
		CostCents int64  `json:"cost_cents"`
	} `json:"companions"`
}

func (s *Server) handleSaveNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entries := make([]visits.CompanionEntry, 0, len(req.Companions))
	for _, c := range req.Companions {
		entries = append(entries, visits.CompanionEntry{
			Name: sanitize(c.Name),
			Cost: core.Money{Cents: c.CostCents},
		})
	}
	v, err := s.store.SaveObservationAndCompanions(r.Context(), r.PathValue("id"),
		sanitize(req.Observation), entries)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, toVisitDTO(v))
}

func (s *Server) handleListLocations(w http.ResponseWriter, _ *http.Request) {
	locations := s.store.Locations()
	out := make([]locationDTO, 0, len(locations))
	for _, l := range locations {
		out = append(out, locationDTO{ID: l.ID, Name: l.Name, Address: l.Address, Icon: l.Icon})
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": out})
}

func (s *Server) handleListCompanions(w http.ResponseWriter, _ *http.Request) {
	companions := s.store.Companions()
	out := make([]companionDTO, 0, len(companions))
	for _, c := range companions {
		out = append(out, companionDTO{ID: c.ID, Name: c.Name, Active: c.Active})
	}
	writeJSON(w, http.StatusOK, map[string]any{"companions": out})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Refresh(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, map[string]any{"visits": len(s.store.Visits())})
}
