// Package storage backs the remote ports with a local sqlite database. It is
// the offline-first backend: the same four resources the hosted service
// exposes, persisted in one file.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"visitas/internal/core"
	"visitas/internal/remote"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ remote.Backend = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) ListVisits(ctx context.Context) ([]core.RawRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT v.id, v.date, v.time, v.start_time, v.end_time, v.is_finalized,
		       v.observation,
		       COALESCE(l.id, ''), COALESCE(l.name, ''), COALESCE(l.address, ''), COALESCE(l.icon, '')
		FROM visits v
		LEFT JOIN locations l ON l.id = v.location_id
		ORDER BY v.date, v.time, v.id`)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var out []core.RawRecord
	for rows.Next() {
		var (
			id, date, timeOfDay, start, end, observation string
			finalized                                    bool
			locID, locName, locAddress, locIcon          string
		)
		if err := rows.Scan(&id, &date, &timeOfDay, &start, &end, &finalized,
			&observation, &locID, &locName, &locAddress, &locIcon); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		rec := core.RawRecord{
			"id":           id,
			"date":         date,
			"time":         timeOfDay,
			"start_time":   start,
			"end_time":     end,
			"is_finalized": finalized,
			"observation":  observation,
		}
		if locID != "" {
			rec["location"] = core.RawRecord{
				"id": locID, "name": locName, "address": locAddress, "icon": locIcon,
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}

	if err := r.attachCompanions(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachCompanions joins the link table against the companion directory and
// hangs the result off each record.
func (r *SQLiteRepository) attachCompanions(ctx context.Context, records []core.RawRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT vc.visit_id, vc.companion_id, COALESCE(c.name, ''), vc.cost_cents
		FROM visit_companions vc
		LEFT JOIN companions c ON c.id = vc.companion_id
		ORDER BY vc.visit_id, vc.position`)
	if err != nil {
		return fmt.Errorf("list visit companions: %w", err)
	}
	defer rows.Close()

	byVisit := make(map[string][]any)
	for rows.Next() {
		var visitID, companionID, name string
		var cents int64
		if err := rows.Scan(&visitID, &companionID, &name, &cents); err != nil {
			return fmt.Errorf("scan visit companion: %w", err)
		}
		byVisit[visitID] = append(byVisit[visitID], core.RawRecord{
			"id":   companionID,
			"name": name,
			"cost": float64(cents) / 100.0,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list visit companions: %w", err)
	}

	for _, rec := range records {
		id, _ := rec["id"].(string)
		if list := byVisit[id]; len(list) > 0 {
			rec["companions"] = list
		}
	}
	return nil
}

// visitColumns limits dynamic updates to real columns.
var visitColumns = map[string]bool{
	"date": true, "time": true, "start_time": true, "end_time": true,
	"is_finalized": true, "location_id": true, "observation": true,
}

func (r *SQLiteRepository) InsertVisit(ctx context.Context, fields core.RawRecord) error {
	id, _ := fields["id"].(string)
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("insert visit: missing id")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO visits (id, date, time, start_time, end_time, is_finalized, location_id, observation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		fieldString(fields, "date"),
		fieldString(fields, "time"),
		fieldString(fields, "start_time"),
		fieldString(fields, "end_time"),
		fieldBool(fields, "is_finalized"),
		nullable(fieldString(fields, "location_id")),
		fieldString(fields, "observation"))
	if err != nil {
		return fmt.Errorf("insert visit %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Visit saved to SQLite", "id", id, "date", fieldString(fields, "date"))
	return nil
}

func (r *SQLiteRepository) UpdateVisit(ctx context.Context, id string, fields core.RawRecord) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if visitColumns[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = k + " = ?"
		if k == "is_finalized" {
			args = append(args, fieldBool(fields, k))
		} else {
			args = append(args, fieldString(fields, k))
		}
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		"UPDATE visits SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update visit %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update visit: no row with id %s", id)
	}
	return nil
}

func (r *SQLiteRepository) DeleteVisit(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM visits WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete visit %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ListLocations(ctx context.Context) ([]core.Location, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, address, icon FROM locations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []core.Location
	for rows.Next() {
		var l core.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Address, &l.Icon); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindLocationByName(ctx context.Context, name string) (core.Location, bool, error) {
	var l core.Location
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, address, icon FROM locations WHERE name = ? COLLATE NOCASE",
		strings.TrimSpace(name)).Scan(&l.ID, &l.Name, &l.Address, &l.Icon)
	if err == sql.ErrNoRows {
		return core.Location{}, false, nil
	}
	if err != nil {
		return core.Location{}, false, fmt.Errorf("find location %q: %w", name, err)
	}
	return l, true, nil
}

func (r *SQLiteRepository) InsertLocation(ctx context.Context, loc core.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO locations (id, name, address, icon) VALUES (?, ?, ?, ?)",
		loc.ID, loc.Name, loc.Address, loc.Icon)
	if err != nil {
		return fmt.Errorf("insert location %s: %w", loc.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListCompanions(ctx context.Context) ([]core.Companion, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, active FROM companions ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list companions: %w", err)
	}
	defer rows.Close()

	var out []core.Companion
	for rows.Next() {
		var c core.Companion
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, fmt.Errorf("scan companion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindCompanionByName(ctx context.Context, name string) (core.Companion, bool, error) {
	var c core.Companion
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, active FROM companions WHERE name = ? COLLATE NOCASE",
		strings.TrimSpace(name)).Scan(&c.ID, &c.Name, &c.Active)
	if err == sql.ErrNoRows {
		return core.Companion{}, false, nil
	}
	if err != nil {
		return core.Companion{}, false, fmt.Errorf("find companion %q: %w", name, err)
	}
	return c, true, nil
}

func (r *SQLiteRepository) InsertCompanion(ctx context.Context, c core.Companion) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO companions (id, name, active) VALUES (?, ?, ?)",
		c.ID, c.Name, c.Active)
	if err != nil {
		return fmt.Errorf("insert companion %s: %w", c.ID, err)
	}
	return nil
}

// ReplaceLinks rewrites a visit's companion rows in one transaction, so the
// delete and the reinsert land together or not at all.
func (r *SQLiteRepository) ReplaceLinks(ctx context.Context, visitID string, links []remote.Link) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace links %s: %w", visitID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM visit_companions WHERE visit_id = ?", visitID); err != nil {
		return fmt.Errorf("replace links %s: delete: %w", visitID, err)
	}
	for i, l := range links {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO visit_companions (visit_id, companion_id, cost_cents, position) VALUES (?, ?, ?, ?)",
			visitID, l.CompanionID, l.Cost.Cents, i); err != nil {
			return fmt.Errorf("replace links %s: insert: %w", visitID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace links %s: commit: %w", visitID, err)
	}
	return nil
}

func fieldString(fields core.RawRecord, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

func fieldBool(fields core.RawRecord, key string) bool {
	if b, ok := fields[key].(bool); ok {
		return b
	}
	return false
}

// nullable keeps the foreign key satisfied when no location is linked.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
