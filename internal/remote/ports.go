// Package remote defines the ports to the hosted data service that owns the
// durable copy of visits, locations, companions and visit_companions.
package remote

import (
	"context"

	"visitas/internal/core"
)

// Link associates one companion with one visit, optionally with a cost
// allowance for that visit. Rows live in the visit_companions resource.
type Link struct {
	CompanionID string
	Cost        core.Money
}

// Ports for outbound adapters.
type (
	// VisitSource lists visit rows in raw form, with companion and location
	// data joined in whatever shape the backend produces. Only the
	// normalizer interprets the shape.
	VisitSource interface {
		ListVisits(ctx context.Context) ([]core.RawRecord, error)
	}

	VisitSink interface {
		InsertVisit(ctx context.Context, fields core.RawRecord) error
		// UpdateVisit applies only the fields present in the map.
		UpdateVisit(ctx context.Context, id string, fields core.RawRecord) error
		DeleteVisit(ctx context.Context, id string) error
	}

	LocationDirectory interface {
		ListLocations(ctx context.Context) ([]core.Location, error)
		// FindLocationByName matches case-insensitively on the trimmed name.
		FindLocationByName(ctx context.Context, name string) (core.Location, bool, error)
		InsertLocation(ctx context.Context, loc core.Location) error
	}

	CompanionDirectory interface {
		ListCompanions(ctx context.Context) ([]core.Companion, error)
		// FindCompanionByName matches case-insensitively on the trimmed name.
		FindCompanionByName(ctx context.Context, name string) (core.Companion, bool, error)
		InsertCompanion(ctx context.Context, c core.Companion) error
	}

	// CompanionLinks rewrites a visit's companion associations wholesale.
	// Replace carries delete-then-reinsert semantics and must be treated as
	// a single unit by callers; it is never safe to retry one half.
	CompanionLinks interface {
		ReplaceLinks(ctx context.Context, visitID string, links []Link) error
	}

	// Backend is the full remote collaborator surface the store needs.
	Backend interface {
		VisitSource
		VisitSink
		LocationDirectory
		CompanionDirectory
		CompanionLinks
	}
)
