package store

import (
	"fmt"
	"path/filepath"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
)

// Processed data splits.
const (
	ClientData = "client_data"
	CompData   = "comp_data"
)

// Prediction models with their own output trees.
const (
	ModelBaseline          = "baseline"
	ModelOptimizedBaseline = "optimized_baseline"
)

// Ledger kinds.
const (
	LedgerRaw       = "raw_data"
	LedgerProcessed = "processed_data"
)

// Layout resolves every artifact path below a single data root.
type Layout struct {
	Root string
}

// NewLayout creates a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

// RawDir holds one dataset per upstream table.
func (l Layout) RawDir(mode granularity.Mode) string {
	return filepath.Join(l.Root, "raw", mode.String())
}

// ProcessedDir holds one file per channel for a property split.
func (l Layout) ProcessedDir(propertyID int64, mode granularity.Mode, split string) string {
	return filepath.Join(l.Root, "processed", entityDir(propertyID), mode.String(), split)
}

// CompPricesDir contains one snapshot bucket per channel.
func (l Layout) CompPricesDir(propertyID int64, mode granularity.Mode) string {
	return filepath.Join(l.outputs(), "comp_prices", entityDir(propertyID), mode.String())
}

// MarketStatsDir contains one snapshot bucket per channel. Market stats are daily only.
func (l Layout) MarketStatsDir(propertyID int64) string {
	return filepath.Join(l.outputs(), "market_stats", entityDir(propertyID))
}

// EventsBucket is the snapshot bucket for event importance. Events are daily only.
func (l Layout) EventsBucket(propertyID int64) string {
	return filepath.Join(l.outputs(), "events", entityDir(propertyID))
}

// AIPricesBucket is the snapshot bucket for a model's predictions.
func (l Layout) AIPricesBucket(model string, propertyID int64, mode granularity.Mode) string {
	return filepath.Join(l.outputs(), "ai_prices", model, entityDir(propertyID), mode.String())
}

// LedgerPath is the watermark file for a ledger kind and mode.
func (l Layout) LedgerPath(kind string, mode granularity.Mode) string {
	return filepath.Join(l.LedgerDir(), kind, mode.String(), "latest_updates.json")
}

// LedgerDir is the root of all watermark files.
func (l Layout) LedgerDir() string {
	return filepath.Join(l.Root, "last_updates")
}

// PropertiesDir holds the property metadata store.
func (l Layout) PropertiesDir() string {
	return filepath.Join(l.Root, "properties")
}

// PropertiesPath is the property metadata file.
func (l Layout) PropertiesPath() string {
	return filepath.Join(l.PropertiesDir(), "properties.json")
}

// TrackingDir holds experiment run logs.
func (l Layout) TrackingDir() string {
	return filepath.Join(l.Root, "mlruns")
}

// OutputsDir is the root of all derived artifacts.
func (l Layout) OutputsDir() string {
	return l.outputs()
}

func (l Layout) outputs() string {
	return filepath.Join(l.Root, "outputs")
}

func entityDir(propertyID int64) string {
	return fmt.Sprintf("property_id_%d", propertyID)
}
