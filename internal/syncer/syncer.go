// Package syncer pulls new rate rows from the upstream source into the raw
// datasets and advances the raw watermark ledger.
package syncer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/ledger"
	"github.com/ethpandaops/smart-pricing/internal/records"
	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/upstream"
)

// DefaultWorkers bounds concurrent table fetches when none is configured.
const DefaultWorkers = 4

// TableResult describes the outcome for one table.
type TableResult struct {
	Table      string
	Rows       int
	Entities   int
	FullReload bool
	Err        error
}

// Result summarises a sync run. Tables are in request order.
type Result struct {
	Mode   granularity.Mode
	Tables []TableResult
}

// Rows returns the total number of rows fetched.
func (r *Result) Rows() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Rows
	}

	return n
}

// Failed returns the tables whose fetch or persist failed.
func (r *Result) Failed() []string {
	var out []string

	for _, t := range r.Tables {
		if t.Err != nil {
			out = append(out, t.Table)
		}
	}

	return out
}

// Engine runs incremental syncs.
type Engine struct {
	log     logrus.FieldLogger
	source  upstream.Source
	store   *store.Store
	layout  store.Layout
	ledger  *ledger.Ledger
	workers int
}

// New creates a sync engine.
func New(
	log logrus.FieldLogger,
	source upstream.Source,
	st *store.Store,
	layout store.Layout,
	led *ledger.Ledger,
	workers int,
) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Engine{
		log:     log.WithField("component", "syncer"),
		source:  source,
		store:   st,
		layout:  layout,
		ledger:  led,
		workers: workers,
	}
}

type fetchResult struct {
	table string
	rows  []records.FetchedRate
	err   error
}

// Sync fetches new rows of tables for entityIDs and appends them to the raw
// datasets of mode. Per-table failures are isolated and reported in the
// result; only ledger failures are returned as errors.
func (e *Engine) Sync(ctx context.Context, tables []string, entityIDs []int64, mode granularity.Mode) (*Result, error) {
	started := time.Now()
	log := e.log.WithField("scrap_type", mode)

	watermarks, err := e.ledger.LoadRaw(mode)
	if err != nil {
		return nil, fmt.Errorf("load raw ledger: %w", err)
	}

	rawDir := e.layout.RawDir(mode)
	fullReload := make(map[string]bool, len(tables))

	for _, table := range tables {
		fullReload[table] = e.reconcile(log, rawDir, table, watermarks)
	}

	fetched := e.fetchAll(ctx, tables, entityIDs, watermarks, fullReload, mode)

	result := &Result{Mode: mode, Tables: make([]TableResult, 0, len(tables))}

	for _, table := range tables {
		res := fetched[table]
		tr := TableResult{Table: table, Rows: len(res.rows), FullReload: fullReload[table], Err: res.err}

		if res.err != nil || len(res.rows) == 0 {
			result.Tables = append(result.Tables, tr)

			continue
		}

		if err := store.AppendOrReplace(e.store, rawDir, table, records.StripUpdated(res.rows), fullReload[table]); err != nil {
			log.WithError(err).WithField("table", table).Error("Failed to persist table, watermarks not advanced")
			syncFailures.WithLabelValues(table, mode.String(), "persist").Inc()

			tr.Err = fmt.Errorf("persist %s: %w", table, err)
			result.Tables = append(result.Tables, tr)

			continue
		}

		advanced := maxUpdated(res.rows)
		tr.Entities = len(advanced)

		entities := watermarks[table]
		if entities == nil {
			entities = ledger.Entities{}
		}

		for id, ts := range advanced {
			entities[id] = ts
		}

		watermarks[table] = entities
		result.Tables = append(result.Tables, tr)
	}

	if err := e.ledger.SaveRaw(mode, watermarks); err != nil {
		return result, fmt.Errorf("save raw ledger: %w", err)
	}

	syncDuration.WithLabelValues(mode.String()).Observe(time.Since(started).Seconds())

	log.WithFields(logrus.Fields{
		"tables":   len(tables),
		"entities": len(entityIDs),
		"rows":     result.Rows(),
		"failed":   len(result.Failed()),
		"duration": time.Since(started).String(),
	}).Info("Raw sync completed")

	return result, nil
}

// reconcile aligns the ledger with the raw file of table and reports whether
// the table must be fully reloaded. watermarks is updated in place.
func (e *Engine) reconcile(log logrus.FieldLogger, rawDir, table string, watermarks ledger.Tables) bool {
	hasFile := store.Exists(rawDir, table)
	hasEntries := len(watermarks[table]) > 0

	switch {
	case hasEntries && !hasFile:
		log.WithField("table", table).Warn("Ledger has entries but raw file is missing, forcing full reload")
		delete(watermarks, table)

		return true
	case hasFile && !hasEntries:
		log.WithField("table", table).Warn("Raw file has no ledger entries, deleting and forcing full reload")

		if err := store.Remove(rawDir, table); err != nil {
			log.WithError(err).WithField("table", table).Error("Failed to delete orphan raw file")
		}

		delete(watermarks, table)

		return true
	default:
		return false
	}
}

func (e *Engine) fetchAll(
	ctx context.Context,
	tables []string,
	entityIDs []int64,
	watermarks ledger.Tables,
	fullReload map[string]bool,
	mode granularity.Mode,
) map[string]fetchResult {
	resultsChan := make(chan fetchResult, len(tables))
	sem := make(chan struct{}, e.workers)

	var wg sync.WaitGroup

	for _, table := range tables {
		req := upstream.FetchRequest{
			Table:      table,
			EntityIDs:  entityIDs,
			FullReload: fullReload[table],
		}

		if !req.FullReload {
			req.Since = e.since(table, watermarks[table])
		}

		wg.Add(1)

		go func(req upstream.FetchRequest) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- fetchResult{table: req.Table, err: ctx.Err()}

				return
			}

			rows, err := e.source.FetchRates(ctx, req)
			resultsChan <- fetchResult{table: req.Table, rows: rows, err: err}
		}(req)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	out := make(map[string]fetchResult, len(tables))

	for res := range resultsChan {
		if res.err != nil {
			e.log.WithError(res.err).WithFields(logrus.Fields{
				"table":      res.table,
				"scrap_type": mode,
			}).Error("Failed to fetch table")
			syncFailures.WithLabelValues(res.table, mode.String(), "fetch").Inc()

			res.rows = nil
		} else {
			syncRowsFetched.WithLabelValues(res.table, mode.String()).Add(float64(len(res.rows)))
		}

		out[res.table] = res
	}

	return out
}

func (e *Engine) since(table string, entities ledger.Entities) map[int64]time.Time {
	out := make(map[int64]time.Time, len(entities))

	for key, ts := range entities {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"table":  table,
				"entity": key,
			}).Warn("Ignoring non-numeric ledger entity")

			continue
		}

		out[id] = ts
	}

	return out
}

func maxUpdated(rows []records.FetchedRate) ledger.Entities {
	out := make(ledger.Entities)

	for _, row := range rows {
		key := strconv.FormatInt(row.HotelID, 10)
		if cur, ok := out[key]; !ok || row.Updated.After(cur) {
			out[key] = row.Updated
		}
	}

	return out
}
