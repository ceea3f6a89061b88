package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"visitas/internal/core"
	"visitas/internal/visits"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store errors onto HTTP statuses. Validation problems
// are the caller's fault, missing ids are 404, remote failures are 502 so
// clients know a retry may succeed.
func writeStoreError(w http.ResponseWriter, err error) {
	var verr *visits.ValidationError
	var perr *visits.PersistenceError
	switch {
	case errors.Is(err, visits.ErrNotFound):
		writeError(w, http.StatusNotFound, "visit not found")
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Reason)
	case errors.As(err, &perr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// sanitize trims whitespace and strips control characters from user input.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// API shapes

type locationDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Icon    string `json:"icon,omitempty"`
}

type companionDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type visitCompanionDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CostCents int64  `json:"cost_cents"`
}

type visitDTO struct {
	ID          string              `json:"id"`
	Date        string              `json:"date"`
	Time        string              `json:"time,omitempty"`
	StartTime   string              `json:"start_time,omitempty"`
	EndTime     string              `json:"end_time,omitempty"`
	IsFinalized bool                `json:"is_finalized"`
	Location    locationDTO         `json:"location"`
	Companions  []visitCompanionDTO `json:"companions"`
	Observation string              `json:"observation,omitempty"`
}

func toVisitDTO(v core.Visit) visitDTO {
	dto := visitDTO{
		ID:          v.ID,
		Date:        v.Date,
		Time:        v.Time,
		StartTime:   v.StartTime,
		EndTime:     v.EndTime,
		IsFinalized: v.IsFinalized,
		Location: locationDTO{
			ID: v.Location.ID, Name: v.Location.Name,
			Address: v.Location.Address, Icon: v.Location.Icon,
		},
		Companions:  make([]visitCompanionDTO, 0, len(v.Companions)),
		Observation: v.Observation,
	}
	for _, c := range v.Companions {
		dto.Companions = append(dto.Companions, visitCompanionDTO{
			ID: c.ID, Name: c.Name, CostCents: c.Cost.Cents,
		})
	}
	return dto
}

func toVisitDTOs(vs []core.Visit) []visitDTO {
	out := make([]visitDTO, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVisitDTO(v))
	}
	return out
}

type nameCountDTO struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type nameAmountDTO struct {
	Name      string `json:"name"`
	CostCents int64  `json:"cost_cents"`
}

type weekSummaryDTO struct {
	Start           string          `json:"start"`
	End             string          `json:"end"`
	Visits          int             `json:"visits"`
	ByCompanion     []nameCountDTO  `json:"by_companion"`
	CostByCompanion []nameAmountDTO `json:"cost_by_companion"`
	CostByLocation  []nameAmountDTO `json:"cost_by_location"`
}

type monthSummaryDTO struct {
	Year               int               `json:"year"`
	Month              int               `json:"month"`
	Visits             int               `json:"visits"`
	ByCompanion        []nameCountDTO    `json:"by_companion"`
	ByLocation         []nameCountDTO    `json:"by_location"`
	LastFinalized      map[string]string `json:"last_finalized_by_location"`
	CostByCompanion    []nameAmountDTO   `json:"cost_by_companion"`
	CostByLocation     []nameAmountDTO   `json:"cost_by_location"`
	CompanionsPerVisit float64           `json:"companions_per_visit"`
}

func toNameCounts(in []core.NameCount) []nameCountDTO {
	out := make([]nameCountDTO, 0, len(in))
	for _, nc := range in {
		out = append(out, nameCountDTO{Name: nc.Name, Count: nc.Count})
	}
	return out
}

func toNameAmounts(in []core.NameAmount) []nameAmountDTO {
	out := make([]nameAmountDTO, 0, len(in))
	for _, na := range in {
		out = append(out, nameAmountDTO{Name: na.Name, CostCents: na.Total.Cents})
	}
	return out
}

func toWeekSummaryDTO(s core.WeekSummary) weekSummaryDTO {
	return weekSummaryDTO{
		Start:           s.Start.Format("2006-01-02"),
		End:             s.End.Format("2006-01-02"),
		Visits:          s.Visits,
		ByCompanion:     toNameCounts(s.ByCompanion),
		CostByCompanion: toNameAmounts(s.CostByCompanion),
		CostByLocation:  toNameAmounts(s.CostByLocation),
	}
}

func toMonthSummaryDTO(s core.MonthSummary) monthSummaryDTO {
	last := make(map[string]string, len(s.LastFinalized))
	for name, t := range s.LastFinalized {
		last[name] = t.Format(time.RFC3339)
	}
	return monthSummaryDTO{
		Year:               s.Year,
		Month:              s.Month,
		Visits:             s.Visits,
		ByCompanion:        toNameCounts(s.ByCompanion),
		ByLocation:         toNameCounts(s.ByLocation),
		LastFinalized:      last,
		CostByCompanion:    toNameAmounts(s.CostByCompanion),
		CostByLocation:     toNameAmounts(s.CostByLocation),
		CompanionsPerVisit: s.CompanionsPerVisit,
	}
}
