// Package memory is an in-memory remote backend used in development and
// tests. It mirrors the hosted service's four resources with maps guarded by
// a single mutex.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"visitas/internal/core"
	"visitas/internal/remote"
)

type Store struct {
	mu         sync.Mutex
	visits     map[string]core.RawRecord
	order      []string // insertion order of visit ids
	locations  []core.Location
	companions []core.Companion
	links      map[string][]remote.Link
}

var _ remote.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		visits: make(map[string]core.RawRecord),
		links:  make(map[string][]remote.Link),
	}
}

// Seed loads initial directory data, for dev fixtures.
func (s *Store) Seed(locations []core.Location, companions []core.Companion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations = append(s.locations, locations...)
	s.companions = append(s.companions, companions...)
}

func (s *Store) ListVisits(_ context.Context) ([]core.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RawRecord, 0, len(s.order))
	for _, id := range s.order {
		row, ok := s.visits[id]
		if !ok {
			continue
		}
		rec := make(core.RawRecord, len(row)+1)
		for k, v := range row {
			rec[k] = v
		}
		if joined := s.joinCompanions(id); joined != nil {
			rec["companions"] = joined
		}
		out = append(out, rec)
	}
	return out, nil
}

// joinCompanions resolves a visit's links against the companion directory.
// Callers hold s.mu.
func (s *Store) joinCompanions(visitID string) []any {
	links := s.links[visitID]
	if len(links) == 0 {
		return nil
	}
	out := make([]any, 0, len(links))
	for _, l := range links {
		entry := core.RawRecord{"id": l.CompanionID, "cost": l.Cost.Reais()}
		for _, c := range s.companions {
			if c.ID == l.CompanionID {
				entry["name"] = c.Name
				break
			}
		}
		out = append(out, entry)
	}
	return out
}

func (s *Store) InsertVisit(_ context.Context, fields core.RawRecord) error {
	id := rawID(fields)
	if id == "" {
		return fmt.Errorf("insert visit: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.visits[id]; exists {
		return fmt.Errorf("insert visit: duplicate id %s", id)
	}
	rec := make(core.RawRecord, len(fields))
	for k, v := range fields {
		rec[k] = v
	}
	s.visits[id] = rec
	s.order = append(s.order, id)
	return nil
}

func (s *Store) UpdateVisit(_ context.Context, id string, fields core.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.visits[id]
	if !ok {
		return fmt.Errorf("update visit: no row with id %s", id)
	}
	for k, v := range fields {
		row[k] = v
	}
	return nil
}

func (s *Store) DeleteVisit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.visits, id)
	delete(s.links, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ListLocations(_ context.Context) ([]core.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Location(nil), s.locations...), nil
}

func (s *Store) FindLocationByName(_ context.Context, name string) (core.Location, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locations {
		if strings.EqualFold(strings.TrimSpace(l.Name), strings.TrimSpace(name)) {
			return l, true, nil
		}
	}
	return core.Location{}, false, nil
}

func (s *Store) InsertLocation(_ context.Context, loc core.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations = append(s.locations, loc)
	return nil
}

func (s *Store) ListCompanions(_ context.Context) ([]core.Companion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Companion(nil), s.companions...), nil
}

func (s *Store) FindCompanionByName(_ context.Context, name string) (core.Companion, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companions {
		if strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name)) {
			return c, true, nil
		}
	}
	return core.Companion{}, false, nil
}

func (s *Store) InsertCompanion(_ context.Context, c core.Companion) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companions = append(s.companions, c)
	return nil
}

func (s *Store) ReplaceLinks(_ context.Context, visitID string, links []remote.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visits[visitID]; !ok {
		return fmt.Errorf("replace links: no visit with id %s", visitID)
	}
	s.links[visitID] = append([]remote.Link(nil), links...)
	return nil
}

func rawID(fields core.RawRecord) string {
	if s, ok := fields["id"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
