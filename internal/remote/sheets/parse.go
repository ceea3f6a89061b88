package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"visitas/internal/core"
)

// Tab layouts. Column A is always the row key; row 1 is the header.
//
//	Visitas:             id | date | time | start_time | end_time | is_finalized | location_id | observation
//	Locais:              id | name | address | icon
//	Acompanhantes:       id | name | active
//	VisitaAcompanhantes: visit_id | companion_id | cost
const (
	visitRange     = "A:H"
	locationRange  = "A:D"
	companionRange = "A:C"
	linkRange      = "A:C"
)

// visitColumns maps record keys to 1-based sheet columns.
var visitColumns = map[string]int{
	"id":           1,
	"date":         2,
	"time":         3,
	"start_time":   4,
	"end_time":     5,
	"is_finalized": 6,
	"location_id":  7,
	"observation":  8,
}

var visitColumnOrder = []string{
	"id", "date", "time", "start_time", "end_time", "is_finalized", "location_id", "observation",
}

func colLetter(n int) string {
	return string(rune('A' + n - 1))
}

func cellString(row []any, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func cellBool(row []any, idx int) bool {
	s := strings.ToLower(cellString(row, idx))
	return s == "true" || s == "1" || s == "verdadeiro"
}

// cellValue renders a record field the way the sheet stores it.
func cellValue(v any) any {
	switch b := v.(type) {
	case bool:
		if b {
			return "TRUE"
		}
		return "FALSE"
	case nil:
		return ""
	default:
		return v
	}
}

// visitRecordFromRow converts one sheet row into a raw record. Rows whose id
// cell is empty (cleared rows, padding) are skipped.
func visitRecordFromRow(row []any) (core.RawRecord, bool) {
	id := cellString(row, 0)
	if id == "" {
		return nil, false
	}
	return core.RawRecord{
		"id":           id,
		"date":         cellString(row, 1),
		"time":         cellString(row, 2),
		"start_time":   cellString(row, 3),
		"end_time":     cellString(row, 4),
		"is_finalized": cellBool(row, 5),
		"location_id":  cellString(row, 6),
		"observation":  cellString(row, 7),
	}, true
}

func visitRowFromRecord(fields core.RawRecord) []any {
	row := make([]any, len(visitColumnOrder))
	for i, key := range visitColumnOrder {
		row[i] = cellValue(fields[key])
		if s, ok := row[i].(string); ok {
			row[i] = strings.TrimSpace(s)
		}
	}
	return row
}

func parseLocationRows(rows [][]any) []core.Location {
	out := make([]core.Location, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		id := cellString(row, 0)
		if id == "" {
			continue
		}
		out = append(out, core.Location{
			ID:      id,
			Name:    cellString(row, 1),
			Address: cellString(row, 2),
			Icon:    cellString(row, 3),
		})
	}
	return out
}

func parseCompanionRows(rows [][]any) []core.Companion {
	out := make([]core.Companion, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		id := cellString(row, 0)
		if id == "" {
			continue
		}
		out = append(out, core.Companion{
			ID:     id,
			Name:   cellString(row, 1),
			Active: cellBool(row, 2),
		})
	}
	return out
}

type linkRow struct {
	companionID string
	costCents   int64
}

// parseLinkRows groups link rows by visit id, keeping sheet order.
func parseLinkRows(rows [][]any) map[string][]linkRow {
	out := make(map[string][]linkRow)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		visitID := cellString(row, 0)
		companionID := cellString(row, 1)
		if visitID == "" || companionID == "" {
			continue
		}
		out[visitID] = append(out[visitID], linkRow{
			companionID: companionID,
			costCents:   parseCostCell(cellString(row, 2)),
		})
	}
	return out
}

// parseCostCell reads a cost cell as reais, tolerating a decimal comma.
func parseCostCell(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64((f * 100.0) + 0.5)
}

func joinLocation(rec core.RawRecord, locations []core.Location) {
	id, _ := rec["location_id"].(string)
	if id == "" {
		return
	}
	for _, l := range locations {
		if l.ID == id {
			rec["location"] = core.RawRecord{
				"id":      l.ID,
				"name":    l.Name,
				"address": l.Address,
				"icon":    l.Icon,
			}
			return
		}
	}
}

func joinCompanions(rec core.RawRecord, links map[string][]linkRow, companions []core.Companion) {
	id, _ := rec["id"].(string)
	rows := links[id]
	if len(rows) == 0 {
		return
	}
	list := make([]any, 0, len(rows))
	for _, lr := range rows {
		entry := core.RawRecord{
			"id":   lr.companionID,
			"cost": float64(lr.costCents) / 100.0,
		}
		for _, c := range companions {
			if c.ID == lr.companionID {
				entry["name"] = c.Name
				break
			}
		}
		list = append(list, entry)
	}
	rec["companions"] = list
}
