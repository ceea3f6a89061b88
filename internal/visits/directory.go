package visits

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"visitas/internal/core"
)

// resolveLocation turns a create command's location fields into a directory
// entry, inserting a new one when the name is unknown. Lookup by id hits the
// cache; lookup by name asks the remote directory so two writers cannot
// disagree about an entry created moments ago.
func (s *Store) resolveLocation(ctx context.Context, id, name, address string) (core.Location, error) {
	if id != "" {
		s.mu.RLock()
		for _, l := range s.locations {
			if l.ID == id {
				s.mu.RUnlock()
				return l, nil
			}
		}
		s.mu.RUnlock()
		return core.Location{}, validationf("unknown location id %q", id)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = core.DefaultLocationName
	}
	found, ok, err := s.backend.FindLocationByName(ctx, name)
	if err != nil {
		return core.Location{}, persistence("find location", err)
	}
	if ok {
		return found, nil
	}

	loc := core.Location{ID: uuid.NewString(), Name: name, Address: strings.TrimSpace(address)}
	if err := s.backend.InsertLocation(ctx, loc); err != nil {
		return core.Location{}, persistence("insert location", err)
	}
	s.mu.Lock()
	s.locations = append(s.locations, loc)
	s.mu.Unlock()
	return loc, nil
}

// ensureCompanions resolves names against the companion directory, creating
// the missing ones. Names are trimmed, empties dropped and duplicates within
// the call collapsed case-insensitively, first spelling wins. Created
// companions are never rolled back: the directory only grows.
func (s *Store) ensureCompanions(ctx context.Context, names []string) ([]core.Companion, error) {
	seen := make(map[string]bool, len(names))
	out := make([]core.Companion, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		found, ok, err := s.backend.FindCompanionByName(ctx, name)
		if err != nil {
			return nil, persistence("find companion", err)
		}
		if ok {
			out = append(out, found)
			continue
		}
		c := core.Companion{ID: uuid.NewString(), Name: name, Active: true}
		if err := s.backend.InsertCompanion(ctx, c); err != nil {
			return nil, persistence("insert companion", err)
		}
		s.mu.Lock()
		s.companions = append(s.companions, c)
		s.mu.Unlock()
		out = append(out, c)
	}
	return out, nil
}
