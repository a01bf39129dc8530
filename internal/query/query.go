// Package query serves the pipeline outputs to the read API. It only reads
// files; nothing on this path writes or triggers pipeline work.
package query

//go:generate mockgen -package mocks -destination mocks/mock_service.go github.com/ethpandaops/smart-pricing/internal/query Service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/ledger"
	"github.com/ethpandaops/smart-pricing/internal/properties"
	"github.com/ethpandaops/smart-pricing/internal/records"
	"github.com/ethpandaops/smart-pricing/internal/store"
)

// EventsHorizonDays bounds the served events to [today, today+EventsHorizonDays].
const EventsHorizonDays = 180

var (
	// ErrNotFound is returned when no matching output exists.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is returned for malformed parameters.
	ErrInvalidRequest = errors.New("invalid request")
)

// Service answers the read API queries.
type Service interface {
	CompPrices(ctx context.Context, propertyID int64, date time.Time, mode granularity.Mode) (*CompPricesResponse, error)
	AIPrices(ctx context.Context, propertyID int64, date time.Time, model string, mode granularity.Mode) (*AIPricesResponse, error)
	MarketStats(ctx context.Context, propertyID int64, date time.Time) (*MarketStatsResponse, error)
	Events(ctx context.Context, propertyID int64, date time.Time) (*EventsResponse, error)
	Properties(ctx context.Context) (*PropertiesResponse, error)
	LatestUpdates(ctx context.Context, mode granularity.Mode) (*UpdatesResponse, error)
	Location() *time.Location
}

// Compile-time interface compliance check.
var _ Service = (*FileService)(nil)

// FileService reads outputs from the data layout.
type FileService struct {
	log    logrus.FieldLogger
	store  *store.Store
	layout store.Layout
	ledger *ledger.Ledger
}

// NewFileService creates a file-backed query service.
func NewFileService(log logrus.FieldLogger, st *store.Store, layout store.Layout, led *ledger.Ledger) *FileService {
	return &FileService{
		log:    log.WithField("component", "query"),
		store:  st,
		layout: layout,
		ledger: led,
	}
}

// Location returns the reference timezone.
func (s *FileService) Location() *time.Location {
	return s.store.Location()
}

// ParseDate parses an RFC 3339 or naive timestamp in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}

	t, err := ledger.ParseTimestamp(value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return t, nil
}

// CompPrices returns the competitor prices per channel of the snapshot best
// matching date.
func (s *FileService) CompPrices(
	_ context.Context,
	propertyID int64,
	date time.Time,
	mode granularity.Mode,
) (*CompPricesResponse, error) {
	target := mode.Floor(date, s.Location())

	byChannel, err := readChannels[records.CompPrice](s, s.layout.CompPricesDir(propertyID, mode), target, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: comp prices for property %d at %s", err, propertyID, target.Format(time.DateTime))
	}

	resp := &CompPricesResponse{CompPrices: make([]ChannelCompPrices, 0, len(byChannel))}

	for _, ch := range byChannel {
		values := make(map[string][]float64)

		for _, row := range ch.rows {
			day := row.CheckIn.In(s.Location()).Format(time.DateOnly)
			values[day] = append(values[day], row.PriceDisplay)
		}

		days := make([]string, 0, len(values))
		for day := range values {
			days = append(days, day)
		}

		sort.Strings(days)

		dates := make([]DateValues, 0, len(days))
		for _, day := range days {
			dates = append(dates, DateValues{CheckIn: day, Values: values[day]})
		}

		resp.CompPrices = append(resp.CompPrices, ChannelCompPrices{Channel: ch.name, Dates: dates})
	}

	return resp, nil
}

// AIPrices returns the predictions of model grouped by room type and channel.
func (s *FileService) AIPrices(
	_ context.Context,
	propertyID int64,
	date time.Time,
	model string,
	mode granularity.Mode,
) (*AIPricesResponse, error) {
	if model != store.ModelBaseline && model != store.ModelOptimizedBaseline {
		return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidRequest, model)
	}

	target := mode.Floor(date, s.Location())
	bucket := s.layout.AIPricesBucket(model, propertyID, mode)

	path, ok := s.store.FindBestMatch(bucket, target, mode)
	if !ok {
		if model == store.ModelOptimizedBaseline {
			s.log.WithField("property_id", propertyID).
				Debug("No optimized baseline, property may not be using IMS")
		}

		return nil, fmt.Errorf("%w: %s prices for property %d at %s",
			ErrNotFound, model, propertyID, target.Format(time.DateTime))
	}

	rows, err := store.ReadFile[records.PricePrediction](path)
	if err != nil {
		return nil, err
	}

	type key struct{ name, channel string }

	groups := make(map[key][]records.PricePrediction)
	keys := make([]key, 0)

	for _, row := range rows {
		k := key{row.Name, row.Channel}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}

		groups[k] = append(groups[k], row)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}

		return keys[i].channel < keys[j].channel
	})

	resp := &AIPricesResponse{AIPrices: make([]AIPrices, 0, len(keys))}

	for _, k := range keys {
		group := groups[k]
		sort.Slice(group, func(i, j int) bool { return group[i].CheckIn.Before(group[j].CheckIn) })

		prices := make([]PriceEntry, len(group))
		for i, row := range group {
			prices[i] = PriceEntry{CheckIn: row.CheckIn.In(s.Location()).Format(time.DateOnly), Price: row.PredictedPrice}
		}

		resp.AIPrices = append(resp.AIPrices, AIPrices{Name: k.name, Channel: k.channel, Prices: prices})
	}

	return resp, nil
}

// MarketStats returns the daily market statistics per channel.
func (s *FileService) MarketStats(_ context.Context, propertyID int64, date time.Time) (*MarketStatsResponse, error) {
	target := granularity.Daily.Floor(date, s.Location())

	byChannel, err := readChannels[records.MarketStat](s, s.layout.MarketStatsDir(propertyID), target, granularity.Daily)
	if err != nil {
		return nil, fmt.Errorf("%w: market stats for property %d at %s", err, propertyID, target.Format(time.DateOnly))
	}

	resp := &MarketStatsResponse{MarketStats: make([]ChannelMarketStats, 0, len(byChannel))}

	for _, ch := range byChannel {
		sort.Slice(ch.rows, func(i, j int) bool { return ch.rows[i].CheckIn.Before(ch.rows[j].CheckIn) })

		dates := make([]DateStats, len(ch.rows))
		for i, row := range ch.rows {
			dates[i] = newDateStats(row, s.Location())
		}

		resp.MarketStats = append(resp.MarketStats, ChannelMarketStats{Channel: ch.name, Dates: dates})
	}

	return resp, nil
}

// Events returns the event importance for check-ins from today up to
// EventsHorizonDays ahead.
func (s *FileService) Events(_ context.Context, propertyID int64, date time.Time) (*EventsResponse, error) {
	loc := s.Location()
	target := granularity.Daily.Floor(date, loc)

	path, ok := s.store.FindBestMatch(s.layout.EventsBucket(propertyID), target, granularity.Daily)
	if !ok {
		return nil, fmt.Errorf("%w: events for property %d at %s", ErrNotFound, propertyID, target.Format(time.DateOnly))
	}

	rows, err := store.ReadFile[records.EventImportance](path)
	if err != nil {
		return nil, err
	}

	today := granularity.Daily.Floor(s.store.Now(), loc)
	cutoff := today.AddDate(0, 0, EventsHorizonDays)

	resp := &EventsResponse{Events: make([]EventEntry, 0, len(rows))}

	sort.Slice(rows, func(i, j int) bool { return rows[i].CheckIn.Before(rows[j].CheckIn) })

	for _, row := range rows {
		if row.CheckIn.Before(today) || row.CheckIn.After(cutoff) {
			continue
		}

		entry := EventEntry{CheckIn: row.CheckIn.In(loc).Format(time.DateOnly), EventImportance: int(row.Importance)}
		if row.Name != "" {
			name := row.Name
			entry.EventName = &name
		}

		resp.Events = append(resp.Events, entry)
	}

	return resp, nil
}

// Properties returns every property without its room type mapping.
func (s *FileService) Properties(_ context.Context) (*PropertiesResponse, error) {
	props, err := properties.Load(s.layout.PropertiesPath())
	if err != nil {
		if errors.Is(err, properties.ErrMissing) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}

		return nil, err
	}

	resp := &PropertiesResponse{
		Properties: make([]HotelProperty, len(props)),
		AllIDs:     make([]int64, len(props)),
	}

	for i, p := range props {
		resp.Properties[i] = HotelProperty{
			PropertyID: p.PropertyID,
			ClientIDs:  p.ClientIDs,
			CompIDs:    p.CompIDs,
			IsUsingIMS: p.IsUsingIMS,
		}
		resp.AllIDs[i] = p.PropertyID
	}

	return resp, nil
}

// LatestUpdates returns the raw and processed watermarks of mode.
func (s *FileService) LatestUpdates(_ context.Context, mode granularity.Mode) (*UpdatesResponse, error) {
	raw, err := s.ledger.LoadRaw(mode)
	if err != nil {
		return nil, fmt.Errorf("load raw ledger: %w", err)
	}

	processed, err := s.ledger.LoadProcessed(mode)
	if err != nil {
		return nil, fmt.Errorf("load processed ledger: %w", err)
	}

	resp := &UpdatesResponse{
		ScrapType: mode.String(),
		Raw:       make(map[string]map[string]string, len(raw)),
		Processed: formatEntities(processed, s.Location()),
	}

	for table, entities := range raw {
		resp.Raw[table] = formatEntities(entities, s.Location())
	}

	return resp, nil
}

type channelRows[T any] struct {
	name string
	rows []T
}

// readChannels resolves the best snapshot in every channel bucket below dir.
// Channels without a match are logged and left out.
func readChannels[T any](s *FileService, dir string, target time.Time, mode granularity.Mode) ([]channelRows[T], error) {
	channels, err := store.Subdirs(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	out := make([]channelRows[T], 0, len(channels))

	for _, channel := range channels {
		path, ok := s.store.FindBestMatch(filepath.Join(dir, channel), target, mode)
		if !ok {
			continue
		}

		rows, err := store.ReadFile[T](path)
		if err != nil {
			s.log.WithError(err).WithField("path", path).Error("Failed to read snapshot")

			continue
		}

		out = append(out, channelRows[T]{name: channel, rows: rows})
	}

	if len(out) == 0 {
		return nil, ErrNotFound
	}

	return out, nil
}

func formatEntities(entities ledger.Entities, loc *time.Location) map[string]string {
	out := make(map[string]string, len(entities))
	for id, ts := range entities {
		out[id] = ts.In(loc).Format(time.RFC3339)
	}

	return out
}

// ParsePropertyID parses a positive property id path value.
func ParsePropertyID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid property_id %q", ErrInvalidRequest, value)
	}

	return id, nil
}
