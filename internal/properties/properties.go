// Package properties builds and persists the property metadata every
// pipeline stage iterates over.
package properties

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/records"
	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/upstream"
)

var (
	// ErrMissing is returned when no properties file exists.
	ErrMissing = errors.New("properties file missing")
	// ErrInvalid is returned when the properties file cannot be decoded or fails validation.
	ErrInvalid = errors.New("properties file invalid")
)

// Build assembles properties from the upstream hotel and room type mappings.
// Properties failing validation are logged and left out.
func Build(ctx context.Context, log logrus.FieldLogger, source upstream.Source) ([]records.Property, error) {
	log = log.WithField("component", "properties")

	mappings, err := source.PropertyMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch property mappings: %w", err)
	}

	byID := make(map[int64]*records.Property)

	for _, m := range mappings {
		p, ok := byID[m.PropertyID]
		if !ok {
			p = &records.Property{PropertyID: m.PropertyID}
			byID[m.PropertyID] = p
		}

		switch m.Role {
		case records.RoleClient:
			p.ClientIDs = appendUnique(p.ClientIDs, m.HotelID)
		case records.RoleComp:
			p.CompIDs = appendUnique(p.CompIDs, m.HotelID)
		default:
			log.WithFields(logrus.Fields{
				"property_id": m.PropertyID,
				"hotel_id":    m.HotelID,
				"role":        m.Role,
			}).Warn("Ignoring mapping with unknown role")

			continue
		}

		p.IsUsingIMS = p.IsUsingIMS || m.IsUsingIMS
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	roomTypes, err := source.RoomTypeMappings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch room type mappings: %w", err)
	}

	for _, rt := range roomTypes {
		if p, ok := byID[rt.PropertyID]; ok {
			p.RoomTypes = append(p.RoomTypes, rt)
		}
	}

	out := make([]records.Property, 0, len(ids))

	for _, id := range ids {
		p := byID[id]

		sortIDs(p.ClientIDs)
		sortIDs(p.CompIDs)

		if p.CompIDs == nil {
			p.CompIDs = []int64{}
		}

		if err := p.Validate(); err != nil {
			log.WithError(err).WithField("property_id", id).Warn("Skipping invalid property")

			continue
		}

		out = append(out, *p)
	}

	log.WithField("properties", len(out)).Info("Built property metadata")

	return out, nil
}

// Save writes props to path atomically.
func Save(path string, props []records.Property) error {
	data, err := json.MarshalIndent(props, "", "  ")
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}

	if err := store.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write properties: %w", err)
	}

	return nil
}

// Load reads and validates the properties at path.
func Load(path string) ([]records.Property, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}

		return nil, fmt.Errorf("read properties: %w", err)
	}

	var props []records.Property
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	for i := range props {
		if err := props[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	return props, nil
}

// EntityIDs returns the sorted union of client and competitor hotel ids.
func EntityIDs(props []records.Property) []int64 {
	seen := make(map[int64]bool)

	var out []int64

	for i := range props {
		for _, id := range props[i].HotelIDs() {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}

	sortIDs(out)

	return out
}

// Find returns the property with id.
func Find(props []records.Property, id int64) (records.Property, bool) {
	for _, p := range props {
		if p.PropertyID == id {
			return p, true
		}
	}

	return records.Property{}, false
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}

	return append(ids, id)
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
