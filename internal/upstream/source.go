// Package upstream queries the relational databases the pipeline syncs from.
package upstream

//go:generate mockgen -package mocks -destination mocks/mock_source.go github.com/ethpandaops/smart-pricing/internal/upstream Source

import (
	"context"
	"errors"
	"time"

	"github.com/ethpandaops/smart-pricing/internal/records"
)

// ErrTableNotAllowed is returned for tables outside the configured allow-list.
var ErrTableNotAllowed = errors.New("table not allowed")

// FetchRequest describes one table query.
type FetchRequest struct {
	Table     string
	EntityIDs []int64
	// Since bounds each entity to rows updated after its watermark. Entities
	// without a watermark are fetched in full. Ignored on full reload.
	Since      map[int64]time.Time
	FullReload bool
}

// Source provides the upstream data the pipeline needs.
type Source interface {
	// FetchRates returns the rows of a rate table matching the request.
	FetchRates(ctx context.Context, req FetchRequest) ([]records.FetchedRate, error)
	// PropertyMappings returns every hotel to property assignment.
	PropertyMappings(ctx context.Context) ([]records.PropertyMapping, error)
	// RoomTypeMappings returns the IMS room types of the given properties.
	RoomTypeMappings(ctx context.Context, propertyIDs []int64) ([]records.RoomTypeMapping, error)
	// Occupancy returns IMS occupancy for stay dates in [from, to].
	Occupancy(ctx context.Context, propertyID int64, from, to time.Time) ([]records.Occupancy, error)
	Close() error
}
