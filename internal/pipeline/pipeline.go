// Package pipeline runs the ordered pricing stages for a granularity: raw
// sync, cleaning, chart derivation, baseline training and the optimized
// baseline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/analytics"
	"github.com/ethpandaops/smart-pricing/internal/baseline"
	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/ledger"
	"github.com/ethpandaops/smart-pricing/internal/properties"
	"github.com/ethpandaops/smart-pricing/internal/records"
	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/syncer"
	"github.com/ethpandaops/smart-pricing/internal/tracking"
	"github.com/ethpandaops/smart-pricing/internal/upstream"
)

// Stage names one pipeline step.
type Stage string

// Pipeline stages in execution order.
const (
	StageRawSync   Stage = "raw-sync"
	StageClean     Stage = "clean"
	StageCharts    Stage = "charts"
	StageBaseline  Stage = "baseline"
	StageOptimized Stage = "optimized-baseline"
)

// Stages lists every stage in the order a run executes them.
var Stages = []Stage{StageRawSync, StageClean, StageCharts, StageBaseline, StageOptimized}

var (
	// ErrNoRawData is returned when no raw rows exist to clean.
	ErrNoRawData = errors.New("no raw data")
	// ErrNoProcessedData is returned when no property has processed data.
	ErrNoProcessedData = errors.New("no processed data")
	// ErrUnknownStage is returned for stage names outside Stages.
	ErrUnknownStage = errors.New("unknown stage")
)

// ParseStage validates a stage name.
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages {
		if string(s) == name {
			return s, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// Pipeline executes individual stages against the data store.
type Pipeline struct {
	log     logrus.FieldLogger
	cfg     *config.Config
	source  upstream.Source
	store   *store.Store
	layout  store.Layout
	ledger  *ledger.Ledger
	syncer  *syncer.Engine
	tracker *tracking.Sink
}

// New creates a pipeline.
func New(
	log logrus.FieldLogger,
	cfg *config.Config,
	source upstream.Source,
	st *store.Store,
	led *ledger.Ledger,
	tracker *tracking.Sink,
) *Pipeline {
	layout := store.NewLayout(cfg.Storage.DataPath)

	return &Pipeline{
		log:     log.WithField("component", "pipeline"),
		cfg:     cfg,
		source:  source,
		store:   st,
		layout:  layout,
		ledger:  led,
		syncer:  syncer.New(log, source, st, layout, led, cfg.Upstream.Workers),
		tracker: tracker,
	}
}

// RunStage executes one stage for mode.
func (p *Pipeline) RunStage(ctx context.Context, stage Stage, mode granularity.Mode) error {
	started := time.Now()
	log := p.log.WithFields(logrus.Fields{"stage": stage, "scrap_type": mode})

	log.Info("Stage started")

	var err error

	switch stage {
	case StageRawSync:
		_, err = p.RawSync(ctx, mode)
	case StageClean:
		err = p.Clean(ctx, mode)
	case StageCharts:
		err = p.Charts(ctx, mode)
	case StageBaseline:
		err = p.Baseline(ctx, mode)
	case StageOptimized:
		err = p.OptimizedBaseline(ctx, mode)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}

	stageDuration.WithLabelValues(string(stage), mode.String()).Observe(time.Since(started).Seconds())

	if err != nil {
		stageFailures.WithLabelValues(string(stage), mode.String()).Inc()

		return fmt.Errorf("stage %s: %w", stage, err)
	}

	log.WithField("duration", time.Since(started).String()).Info("Stage completed")

	return nil
}

// Repair re-syncs raw data and re-cleans it. It is the explicit recovery for
// ErrNoRawData and ErrNoProcessedData.
func (p *Pipeline) Repair(ctx context.Context, mode granularity.Mode) error {
	p.log.WithField("scrap_type", mode).Warn("Repairing data: re-syncing raw data and re-cleaning")
	repairsTotal.WithLabelValues(mode.String()).Inc()

	if err := p.RunStage(ctx, StageRawSync, mode); err != nil {
		return fmt.Errorf("repair: %w", err)
	}

	if err := p.RunStage(ctx, StageClean, mode); err != nil {
		return fmt.Errorf("repair: %w", err)
	}

	return nil
}

// RawSync rebuilds the property metadata and syncs every configured table
// for the union of client and competitor hotels.
func (p *Pipeline) RawSync(ctx context.Context, mode granularity.Mode) (*syncer.Result, error) {
	props, err := properties.Build(ctx, p.log, p.source)
	if err != nil {
		return nil, err
	}

	if err := properties.Save(p.layout.PropertiesPath(), props); err != nil {
		return nil, err
	}

	return p.syncer.Sync(ctx, p.cfg.Upstream.Tables, properties.EntityIDs(props), mode)
}

// Clean filters and splits the raw tables into per-property processed data
// and records which properties were processed.
func (p *Pipeline) Clean(_ context.Context, mode granularity.Mode) error {
	props, err := properties.Load(p.layout.PropertiesPath())
	if err != nil {
		return err
	}

	raw, err := store.ReadTables[records.Rate](p.store, p.layout.RawDir(mode))
	if err != nil {
		return fmt.Errorf("read raw tables: %w", err)
	}

	if raw.Rows() == 0 {
		return fmt.Errorf("%w: scrap_type %s", ErrNoRawData, mode)
	}

	opts := analytics.CleanOptions{Lower: p.cfg.Pipeline.OutlierLower, Upper: p.cfg.Pipeline.OutlierUpper}
	processed := analytics.Clean(p.log, raw, props, opts, p.store.Location())

	now := p.store.Now()
	done := make(ledger.Entities, len(processed))

	for _, pr := range processed {
		written := store.WriteTables(p.store, p.layout.ProcessedDir(pr.PropertyID, mode, store.ClientData), pr.Client)
		written += store.WriteTables(p.store, p.layout.ProcessedDir(pr.PropertyID, mode, store.CompData), pr.Comp)

		if written < pr.Client.Len()+pr.Comp.Len() {
			p.log.WithFields(logrus.Fields{
				"property_id": pr.PropertyID,
				"scrap_type":  mode,
			}).Warn("Some processed files failed to write")
		}

		done[strconv.FormatInt(pr.PropertyID, 10)] = now
	}

	if err := p.ledger.SaveProcessed(mode, done); err != nil {
		return fmt.Errorf("save processed ledger: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"scrap_type": mode,
		"properties": len(processed),
		"raw_rows":   raw.Rows(),
	}).Info("Cleaned raw data")

	return nil
}

// Charts derives competitor prices for every processed property and, for
// the daily granularity, market statistics and event importance.
func (p *Pipeline) Charts(_ context.Context, mode granularity.Mode) error {
	ids, err := p.processedProperties(mode)
	if err != nil {
		return err
	}

	window := analytics.ChartWindow(p.store.Now(), p.store.Location())

	for _, id := range ids {
		log := p.log.WithFields(logrus.Fields{"property_id": id, "scrap_type": mode})

		comp, err := store.ReadTables[records.Rate](p.store, p.layout.ProcessedDir(id, mode, store.CompData))
		if err != nil {
			log.WithError(err).Error("Failed to read competitor data")

			continue
		}

		store.WriteChannels(p.store, p.layout.CompPricesDir(id, mode), analytics.CompPrices(comp, window))

		if mode != granularity.Daily {
			continue
		}

		store.WriteChannels(p.store, p.layout.MarketStatsDir(id), analytics.MarketStats(comp, window))

		if events := analytics.Events(comp, window); len(events) > 0 {
			if _, err := store.WriteSnapshot(p.store, p.layout.EventsBucket(id), events); err != nil {
				log.WithError(err).Error("Failed to write events")
			}
		}
	}

	return nil
}

// Baseline trains a baseline per processed property, logs its scores and
// writes its price forecast.
func (p *Pipeline) Baseline(_ context.Context, mode granularity.Mode) error {
	props, err := properties.Load(p.layout.PropertiesPath())
	if err != nil {
		return err
	}

	ids, err := p.processedProperties(mode)
	if err != nil {
		return err
	}

	processed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		processed[id] = true
	}

	loc := p.store.Location()
	now := p.store.Now()
	tomorrow := granularity.Daily.Floor(now, loc).AddDate(0, 0, 1)
	horizon := p.horizon(mode)

	for i := range props {
		prop := &props[i]
		if !processed[prop.PropertyID] {
			continue
		}

		log := p.log.WithFields(logrus.Fields{"property_id": prop.PropertyID, "scrap_type": mode})

		client, err := store.ReadTables[records.Rate](p.store, p.layout.ProcessedDir(prop.PropertyID, mode, store.ClientData))
		if err != nil {
			log.WithError(err).Error("Failed to read client data")

			continue
		}

		comp, err := store.ReadTables[records.Rate](p.store, p.layout.ProcessedDir(prop.PropertyID, mode, store.CompData))
		if err != nil {
			log.WithError(err).Error("Failed to read competitor data")

			continue
		}

		market := baseline.NewMarketIndex(comp, loc)
		series := baseline.BuildSeries(client, loc)

		if len(series) == 0 {
			log.Warn("No client series to train on")

			continue
		}

		models := make([]baseline.Model, 0, len(series))
		all := make([]baseline.Scores, 0, len(series))

		for _, s := range series {
			model, scores := baseline.Evaluate(s, market)
			models = append(models, model)
			all = append(all, scores)
		}

		p.logScores(log, prop.PropertyID, mode, len(series), all)

		preds := baseline.Forecast(models, market, tomorrow, horizon)

		bucket := p.layout.AIPricesBucket(store.ModelBaseline, prop.PropertyID, mode)
		if _, err := store.WriteSnapshot(p.store, bucket, preds); err != nil {
			log.WithError(err).Error("Failed to write baseline prices")

			continue
		}

		log.WithField("predictions", len(preds)).Info("Wrote baseline prices")
	}

	return nil
}

// OptimizedBaseline adjusts the latest baseline of every IMS property by its
// current occupancy.
func (p *Pipeline) OptimizedBaseline(ctx context.Context, mode granularity.Mode) error {
	props, err := properties.Load(p.layout.PropertiesPath())
	if err != nil {
		return err
	}

	loc := p.store.Location()
	target := mode.Floor(p.store.Now(), loc)
	adjuster := baseline.Adjuster{
		K:           p.cfg.Optimized.K,
		V:           p.cfg.Optimized.V,
		L:           p.cfg.Optimized.L,
		AddDiscount: p.cfg.Optimized.AddDiscount,
	}

	for i := range props {
		prop := &props[i]
		if !prop.IsUsingIMS {
			continue
		}

		log := p.log.WithFields(logrus.Fields{"property_id": prop.PropertyID, "scrap_type": mode})

		path, ok := p.store.FindBestMatch(p.layout.AIPricesBucket(store.ModelBaseline, prop.PropertyID, mode), target, mode)
		if !ok {
			log.Warn("No recent baseline to optimize")

			continue
		}

		preds, err := store.ReadFile[records.PricePrediction](path)
		if err != nil {
			log.WithError(err).Error("Failed to read baseline prices")

			continue
		}

		if len(preds) == 0 {
			continue
		}

		from, to := checkInRange(preds)

		occ, err := p.source.Occupancy(ctx, prop.PropertyID, from, to)
		if err != nil {
			log.WithError(err).Error("Failed to fetch occupancy")

			continue
		}

		adjusted := adjuster.Apply(preds, occ, loc)

		bucket := p.layout.AIPricesBucket(store.ModelOptimizedBaseline, prop.PropertyID, mode)
		if _, err := store.WriteSnapshot(p.store, bucket, adjusted); err != nil {
			log.WithError(err).Error("Failed to write optimized baseline prices")

			continue
		}

		log.WithFields(logrus.Fields{
			"baseline":  path,
			"occupancy": len(occ),
		}).Info("Wrote optimized baseline prices")
	}

	return nil
}

// processedProperties returns the ids in the processed ledger, sorted.
func (p *Pipeline) processedProperties(mode granularity.Mode) ([]int64, error) {
	entities, err := p.ledger.LoadProcessed(mode)
	if err != nil {
		return nil, fmt.Errorf("load processed ledger: %w", err)
	}

	ids := make([]int64, 0, len(entities))

	for key := range entities {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			p.log.WithField("entity", key).Warn("Ignoring non-numeric processed entity")

			continue
		}

		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: scrap_type %s", ErrNoProcessedData, mode)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

func (p *Pipeline) horizon(mode granularity.Mode) int {
	if mode == granularity.Daily {
		return p.cfg.Pipeline.DailyHorizonDays
	}

	return p.cfg.Pipeline.HourlyHorizonDays
}

// logScores records the mean of each split metric across a property's series.
func (p *Pipeline) logScores(
	log logrus.FieldLogger,
	propertyID int64,
	mode granularity.Mode,
	series int,
	all []baseline.Scores,
) {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, scores := range all {
		for split, metrics := range scores {
			for metric, v := range metrics {
				key := split + "_" + metric
				sums[key] += v
				counts[key]++
			}
		}
	}

	metrics := make(map[string]float64, len(sums))
	for key, sum := range sums {
		metrics[key] = sum / float64(counts[key])
	}

	run, err := p.tracker.Log(tracking.Run{
		Name: fmt.Sprintf("property_%d_type_%s", propertyID, mode),
		Params: map[string]string{
			"property_id": strconv.FormatInt(propertyID, 10),
			"series":      strconv.Itoa(series),
		},
		Tags: map[string]string{
			"type":      mode.String(),
			"timestamp": p.store.Now().Format(time.RFC3339),
		},
		Metrics: metrics,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to log training run")

		return
	}

	log.WithFields(logrus.Fields{"run_id": run.ID, "metrics": metrics}).Debug("Logged training run")
}

func checkInRange(preds []records.PricePrediction) (from, to time.Time) {
	from, to = preds[0].CheckIn, preds[0].CheckIn

	for _, pr := range preds[1:] {
		if pr.CheckIn.Before(from) {
			from = pr.CheckIn
		}

		if pr.CheckIn.After(to) {
			to = pr.CheckIn
		}
	}

	return from, to
}
