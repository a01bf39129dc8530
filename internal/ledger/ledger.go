// Package ledger persists the last synchronized timestamp per source table
// and entity. Raw watermarks drive incremental fetches, processed watermarks
// record which properties have cleaned data.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/store"
)

// Entities maps an entity id to its watermark.
type Entities map[string]time.Time

// Tables maps a source table to its entity watermarks.
type Tables map[string]Entities

// DefaultStaleAfter is how old a watermark may get before it is reported.
const DefaultStaleAfter = 24 * time.Hour

var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		time.DateOnly,
	}
)

// Ledger reads and writes watermark files below a data layout.
type Ledger struct {
	log        logrus.FieldLogger
	layout     store.Layout
	loc        *time.Location
	now        func() time.Time
	staleAfter time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger that normalizes all timestamps to loc.
func New(log logrus.FieldLogger, layout store.Layout, loc *time.Location, opts ...Option) *Ledger {
	l := &Ledger{
		log:        log.WithField("component", "ledger"),
		layout:     layout,
		loc:        loc,
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoadRaw returns the raw data watermarks for mode. A missing file yields an empty ledger.
func (l *Ledger) LoadRaw(mode granularity.Mode) (Tables, error) {
	var doc map[string]map[string]string

	path := l.layout.LedgerPath(store.LedgerRaw, mode)

	found, err := readJSON(path, &doc)
	if err != nil || !found {
		return Tables{}, err
	}

	out := make(Tables, len(doc))

	for table, entities := range doc {
		out[table] = l.parseEntities(entities, logrus.Fields{"table": table, "scrap_type": mode})
	}

	return out, nil
}

// SaveRaw replaces the raw data watermarks for mode.
func (l *Ledger) SaveRaw(mode granularity.Mode, tables Tables) error {
	doc := make(map[string]map[string]string, len(tables))
	for table, entities := range tables {
		doc[table] = l.formatEntities(entities)
	}

	return writeJSON(l.layout.LedgerPath(store.LedgerRaw, mode), doc)
}

// LoadProcessed returns the processed data watermarks for mode.
func (l *Ledger) LoadProcessed(mode granularity.Mode) (Entities, error) {
	var doc map[string]string

	path := l.layout.LedgerPath(store.LedgerProcessed, mode)

	found, err := readJSON(path, &doc)
	if err != nil || !found {
		return Entities{}, err
	}

	return l.parseEntities(doc, logrus.Fields{"kind": store.LedgerProcessed, "scrap_type": mode}), nil
}

// SaveProcessed merges entities into the processed watermarks for mode.
// Entities not in the write set keep their previous value.
func (l *Ledger) SaveProcessed(mode granularity.Mode, entities Entities) error {
	merged, err := l.LoadProcessed(mode)
	if err != nil {
		return fmt.Errorf("load existing processed ledger: %w", err)
	}

	for id, ts := range entities {
		merged[id] = ts
	}

	return writeJSON(l.layout.LedgerPath(store.LedgerProcessed, mode), l.formatEntities(merged))
}

// ParseTimestamp parses an ISO-8601 timestamp. Zoned values are converted to
// loc, naive values are interpreted in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)

	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.In(loc), nil
		}
	}

	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

func (l *Ledger) parseEntities(raw map[string]string, fields logrus.Fields) Entities {
	out := make(Entities, len(raw))
	cutoff := l.now().Add(-l.staleAfter)

	for id, value := range raw {
		ts, err := ParseTimestamp(value, l.loc)
		if err != nil {
			l.log.WithError(err).WithFields(fields).WithField("entity", id).
				Warn("Skipping unparseable watermark")

			continue
		}

		if ts.Before(cutoff) {
			l.log.WithFields(fields).WithFields(logrus.Fields{
				"entity":    id,
				"watermark": ts.Format(time.RFC3339),
			}).Warn("Watermark is stale")
		}

		out[id] = ts
	}

	return out
}

func (l *Ledger) formatEntities(entities Entities) map[string]string {
	out := make(map[string]string, len(entities))
	for id, ts := range entities {
		out[id] = ts.In(l.loc).Format(time.RFC3339Nano)
	}

	return out
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("read ledger %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse ledger %s: %w", path, err)
	}

	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	if err := store.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write ledger %s: %w", path, err)
	}

	return nil
}
