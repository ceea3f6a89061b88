// Package visits holds the canonical in-memory view of the visit collection
// and the mutation operations that keep it convergent with the remote
// service. The store owns the canonical list; the remote service owns the
// durable rows. Every mutation writes remotely first and touches the cache
// only once the remote accepted the change.
package visits

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"visitas/internal/core"
	"visitas/internal/remote"
)

// Event kinds published after successful mutations.
const (
	EventCreated   = "visit.created"
	EventFinalized = "visit.finalized"
)

// EventPublisher receives change notifications after successful mutations.
// Publishing failures are logged, never surfaced: the mutation already
// succeeded.
type EventPublisher interface {
	PublishVisitEvent(ctx context.Context, kind, visitID string) error
}

type Store struct {
	backend remote.Backend
	events  EventPublisher
	loc     *time.Location

	mu         sync.RWMutex
	visits     []core.Visit
	locations  []core.Location
	companions []core.Companion

	// Per-visit mutexes serialize mutations for the same id. The
	// delete-then-reinsert link replacement is not safe under reordering,
	// so a later call for an id waits for the earlier one instead of
	// racing it. Different ids proceed independently.
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

type Option func(*Store)

// WithEvents attaches an event publisher for create/finalize notifications.
func WithEvents(p EventPublisher) Option {
	return func(s *Store) { s.events = p }
}

// WithLocation sets the wall-clock location used when defaulting actual
// times during finalize. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

func NewStore(backend remote.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		loc:     time.Local,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh reloads the canonical lists from the remote service. Reads are
// idempotent, so they get a bounded retry with exponential backoff; writes
// never do.
func (s *Store) Refresh(ctx context.Context) error {
	var (
		rawVisits  []core.RawRecord
		locations  []core.Location
		companions []core.Companion
	)
	op := func() error {
		var err error
		if rawVisits, err = s.backend.ListVisits(ctx); err != nil {
			return err
		}
		if locations, err = s.backend.ListLocations(ctx); err != nil {
			return err
		}
		companions, err = s.backend.ListCompanions(ctx)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return persistence("refresh", err)
	}

	visits := make([]core.Visit, 0, len(rawVisits))
	for _, raw := range rawVisits {
		visits = append(visits, core.NormalizeVisit(raw))
	}
	sortVisits(visits)

	s.mu.Lock()
	s.visits = visits
	s.locations = locations
	s.companions = companions
	s.mu.Unlock()

	slog.InfoContext(ctx, "Visit cache refreshed",
		"visits", len(visits),
		"locations", len(locations),
		"companions", len(companions))
	return nil
}

// Visits returns a copy of the canonical list, sorted by date and time.
func (s *Store) Visits() []core.Visit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Visit(nil), s.visits...)
}

func (s *Store) Locations() []core.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Location(nil), s.locations...)
}

func (s *Store) Companions() []core.Companion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Companion(nil), s.companions...)
}

// Visit looks up one canonical visit by id.
func (s *Store) Visit(id string) (core.Visit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.visits {
		if v.ID == id {
			return v, true
		}
	}
	return core.Visit{}, false
}

// NewVisit carries the fields of a create command. Either LocationID or
// LocationName must identify the location; an unknown name is created on
// the fly with the given address.
type NewVisit struct {
	Date            string
	Time            string
	LocationID      string
	LocationName    string
	LocationAddress string
	Observation     string
	CompanionNames  []string
}

// Create inserts a new visit remotely and, on success, into the cache.
func (s *Store) Create(ctx context.Context, in NewVisit) (core.Visit, error) {
	v := core.Visit{
		ID:          uuid.NewString(),
		Date:        in.Date,
		Time:        in.Time,
		Observation: strings.TrimSpace(in.Observation),
	}
	if err := v.Validate(); err != nil {
		return core.Visit{}, validationf("new visit: %v", err)
	}

	loc, err := s.resolveLocation(ctx, in.LocationID, in.LocationName, in.LocationAddress)
	if err != nil {
		return core.Visit{}, err
	}
	v.Location = loc

	resolved, err := s.ensureCompanions(ctx, in.CompanionNames)
	if err != nil {
		return core.Visit{}, err
	}
	v.Companions = asVisitCompanions(resolved, nil)

	fields := v.Record()
	delete(fields, "companions") // associations live in their own resource
	if err := s.backend.InsertVisit(ctx, fields); err != nil {
		return core.Visit{}, persistence("insert visit", err)
	}
	if err := s.backend.ReplaceLinks(ctx, v.ID, asLinks(v.Companions)); err != nil {
		// Compensate the half-written visit so no remote change survives a
		// failed create. Companions created along the way stay: ensure-exists
		// is idempotent and companions are never deleted by this logic.
		if delErr := s.backend.DeleteVisit(ctx, v.ID); delErr != nil {
			slog.ErrorContext(ctx, "Failed to compensate visit insert", "id", v.ID, "error", delErr)
		}
		return core.Visit{}, persistence("link companions", err)
	}

	s.mu.Lock()
	s.visits = append(s.visits, v)
	sortVisits(s.visits)
	s.mu.Unlock()

	s.publish(ctx, EventCreated, v.ID)
	slog.InfoContext(ctx, "Visit created", "id", v.ID, "date", v.Date, "location", v.Location.Name)
	return v, nil
}

// Patch carries the fields of an update command. Nil fields keep their
// prior values.
type Patch struct {
	Date        *string
	Time        *string
	StartTime   *string
	EndTime     *string
	Observation *string
}

// Update applies the patch to an existing visit.
func (s *Store) Update(ctx context.Context, id string, p Patch) (core.Visit, error) {
	unlock := s.lockVisit(id)
	defer unlock()

	prev, ok := s.Visit(id)
	if !ok {
		return core.Visit{}, ErrNotFound
	}

	next := prev
	fields := core.RawRecord{}
	setString := func(key string, dst *string, val *string) {
		if val != nil {
			*dst = strings.TrimSpace(*val)
			fields[key] = *dst
		}
	}
	setString("date", &next.Date, p.Date)
	setString("time", &next.Time, p.Time)
	setString("start_time", &next.StartTime, p.StartTime)
	setString("end_time", &next.EndTime, p.EndTime)
	setString("observation", &next.Observation, p.Observation)

	if len(fields) == 0 {
		return prev, nil
	}
	if err := next.Validate(); err != nil {
		return core.Visit{}, validationf("update: %v", err)
	}

	if err := s.backend.UpdateVisit(ctx, id, fields); err != nil {
		return core.Visit{}, persistence("update visit", err)
	}

	s.replaceCached(next)
	slog.InfoContext(ctx, "Visit updated", "id", id)
	return next, nil
}

// Finalize records the actual execution window of a visit, replaces its
// companion list with the people who really went, and locks the finalized
// flag. Finalizing an already-finalized visit just overwrites the actuals.
// Empty actual times default to the current wall clock.
func (s *Store) Finalize(ctx context.Context, id, actualStart, actualEnd string, realCompanionNames []string) (core.Visit, error) {
	now := time.Now().In(s.loc).Format("15:04")
	if actualStart == "" {
		actualStart = now
	}
	if actualEnd == "" {
		actualEnd = now
	}
	if !core.ValidClock(actualStart) {
		return core.Visit{}, validationf("finalize: start time %q is not HH:MM", actualStart)
	}
	if !core.ValidClock(actualEnd) {
		return core.Visit{}, validationf("finalize: end time %q is not HH:MM", actualEnd)
	}
	if core.ClockBefore(actualEnd, actualStart) {
		return core.Visit{}, validationf("finalize: end %s precedes start %s", actualEnd, actualStart)
	}

	unlock := s.lockVisit(id)
	defer unlock()

	prev, ok := s.Visit(id)
	if !ok {
		return core.Visit{}, ErrNotFound
	}

	resolved, err := s.ensureCompanions(ctx, realCompanionNames)
	if err != nil {
		return core.Visit{}, err
	}

	next := prev
	next.StartTime = actualStart
	next.EndTime = actualEnd
	next.IsFinalized = true
	next.Companions = asVisitCompanions(resolved, prev.Companions)

	fields := core.RawRecord{
		"start_time":   next.StartTime,
		"end_time":     next.EndTime,
		"is_finalized": true,
	}
	if err := s.writeVisitAndLinks(ctx, prev, next, fields); err != nil {
		return core.Visit{}, err
	}

	s.replaceCached(next)
	s.publish(ctx, EventFinalized, id)
	slog.InfoContext(ctx, "Visit finalized",
		"id", id,
		"start", next.StartTime,
		"end", next.EndTime,
		"companions", len(next.Companions))
	return next, nil
}

// CompanionEntry names a companion and the cost of their participation.
type CompanionEntry struct {
	Name string
	Cost core.Money
}

// SaveObservationAndCompanions upserts each named companion, replaces the
// visit's companion-cost associations wholesale and updates the
// observation.
func (s *Store) SaveObservationAndCompanions(ctx context.Context, id, observation string, entries []CompanionEntry) (core.Visit, error) {
	for _, e := range entries {
		if err := e.Cost.Validate(); err != nil {
			return core.Visit{}, validationf("companion %q: %v", e.Name, err)
		}
	}

	unlock := s.lockVisit(id)
	defer unlock()

	prev, ok := s.Visit(id)
	if !ok {
		return core.Visit{}, ErrNotFound
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	resolved, err := s.ensureCompanions(ctx, names)
	if err != nil {
		return core.Visit{}, err
	}

	next := prev
	next.Observation = strings.TrimSpace(observation)
	next.Companions = withCosts(resolved, entries)

	fields := core.RawRecord{"observation": next.Observation}
	if err := s.writeVisitAndLinks(ctx, prev, next, fields); err != nil {
		return core.Visit{}, err
	}

	s.replaceCached(next)
	slog.InfoContext(ctx, "Visit observation and companions saved",
		"id", id, "companions", len(next.Companions))
	return next, nil
}

// writeVisitAndLinks updates the visit row and rewrites its companion links
// as one guarded unit. The caller holds the per-id lock. On link failure the
// visit row is rolled back best-effort so a retry starts from the previous
// state.
func (s *Store) writeVisitAndLinks(ctx context.Context, prev, next core.Visit, fields core.RawRecord) error {
	if err := s.backend.UpdateVisit(ctx, next.ID, fields); err != nil {
		return persistence("update visit", err)
	}
	if err := s.backend.ReplaceLinks(ctx, next.ID, asLinks(next.Companions)); err != nil {
		prevFields := prev.Record()
		rollback := core.RawRecord{}
		for k := range fields {
			rollback[k] = prevFields[k]
		}
		if rbErr := s.backend.UpdateVisit(ctx, next.ID, rollback); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back visit row", "id", next.ID, "error", rbErr)
		}
		return persistence("replace companion links", err)
	}
	return nil
}

func (s *Store) replaceCached(v core.Visit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.visits {
		if s.visits[i].ID == v.ID {
			s.visits[i] = v
			break
		}
	}
	sortVisits(s.visits)
}

// lockVisit serializes mutations per visit id.
func (s *Store) lockVisit(id string) func() {
	s.lockMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.lockMu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Store) publish(ctx context.Context, kind, visitID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishVisitEvent(ctx, kind, visitID); err != nil {
		// The mutation already succeeded; a lost notification is not an error
		// the caller can act on.
		slog.ErrorContext(ctx, "Failed to publish visit event",
			"kind", kind, "id", visitID, "error", err)
	}
}

func sortVisits(visits []core.Visit) {
	sort.SliceStable(visits, func(i, j int) bool {
		if visits[i].Date != visits[j].Date {
			return visits[i].Date < visits[j].Date
		}
		return visits[i].Time < visits[j].Time
	})
}

func asLinks(companions []core.VisitCompanion) []remote.Link {
	out := make([]remote.Link, len(companions))
	for i, c := range companions {
		out[i] = remote.Link{CompanionID: c.ID, Cost: c.Cost}
	}
	return out
}

// asVisitCompanions converts resolved directory entries, carrying over any
// cost already recorded for the same companion on this visit.
func asVisitCompanions(resolved []core.Companion, prior []core.VisitCompanion) []core.VisitCompanion {
	out := make([]core.VisitCompanion, len(resolved))
	for i, c := range resolved {
		vc := core.VisitCompanion{ID: c.ID, Name: c.Name}
		for _, p := range prior {
			if p.ID == c.ID {
				vc.Cost = p.Cost
				break
			}
		}
		out[i] = vc
	}
	return out
}

func withCosts(resolved []core.Companion, entries []CompanionEntry) []core.VisitCompanion {
	out := make([]core.VisitCompanion, len(resolved))
	for i, c := range resolved {
		vc := core.VisitCompanion{ID: c.ID, Name: c.Name}
		for _, e := range entries {
			if strings.EqualFold(strings.TrimSpace(e.Name), c.Name) {
				vc.Cost = e.Cost
				break
			}
		}
		out[i] = vc
	}
	return out
}
