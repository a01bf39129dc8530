package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/ledger"
	"github.com/ethpandaops/smart-pricing/internal/properties"
	"github.com/ethpandaops/smart-pricing/internal/records"
	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/testutil"
)

type fixture struct {
	svc    *FileService
	layout store.Layout
	ledger *ledger.Ledger
	loc    *time.Location
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	loc := testutil.Seoul(t)
	log := testutil.NewTestLogger()
	now := time.Date(2025, 1, 1, 10, 15, 0, 0, loc)
	clock := func() time.Time { return now }

	layout := store.NewLayout(t.TempDir())
	st := store.New(log, loc, store.WithClock(clock))
	led := ledger.New(log, layout, loc, ledger.WithClock(clock))

	return &fixture{
		svc:    NewFileService(log, st, layout, led),
		layout: layout,
		ledger: led,
		loc:    loc,
		now:    now,
	}
}

// writeAt writes rows into bucket as a snapshot captured at capturedAt.
func writeAt[T any](t *testing.T, f *fixture, bucket string, capturedAt time.Time, rows []T) {
	t.Helper()

	st := store.New(testutil.NewTestLogger(), f.loc, store.WithClock(func() time.Time { return capturedAt }))
	_, err := store.WriteSnapshot(st, bucket, rows)
	require.NoError(t, err)
}

func (f *fixture) day(offset int) time.Time {
	return time.Date(2025, 1, 1+offset, 0, 0, 0, 0, f.loc)
}

func TestParseDate(t *testing.T) {
	loc := testutil.Seoul(t)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "zoned converts", input: "2025-08-26T03:53:27Z", want: "2025-08-26 12:53:27"},
		{name: "zoned local", input: "2025-08-26T12:53:27+09:00", want: "2025-08-26 12:53:27"},
		{name: "naive is local", input: "2025-08-26T12:53:27", want: "2025-08-26 12:53:27"},
		{name: "date only", input: "2025-08-26", want: "2025-08-26 00:00:00"},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input, loc)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRequest)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.In(loc).Format(time.DateTime))
		})
	}
}

func TestParsePropertyID(t *testing.T) {
	id, err := ParsePropertyID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := ParsePropertyID(bad)
		require.ErrorIs(t, err, ErrInvalidRequest, bad)
	}
}

func TestFileService_CompPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.layout.CompPricesDir(7, granularity.Hourly)

	writeAt(t, f, dir+"/agoda", time.Date(2025, 1, 1, 9, 30, 0, 0, f.loc), []records.CompPrice{
		{HotelID: 2, CheckIn: f.day(2), PriceDisplay: 120},
		{HotelID: 3, CheckIn: f.day(1), PriceDisplay: 90},
		{HotelID: 2, CheckIn: f.day(1), PriceDisplay: 100},
	})
	// Older than the hourly window for a 10:15 target.
	writeAt(t, f, dir+"/expedia", time.Date(2025, 1, 1, 8, 10, 0, 0, f.loc), []records.CompPrice{
		{HotelID: 2, CheckIn: f.day(1), PriceDisplay: 95},
	})

	resp, err := f.svc.CompPrices(ctx, 7, f.now, granularity.Hourly)
	require.NoError(t, err)
	require.Len(t, resp.CompPrices, 1)

	agoda := resp.CompPrices[0]
	assert.Equal(t, "agoda", agoda.Channel)
	require.Len(t, agoda.Dates, 2)
	assert.Equal(t, DateValues{CheckIn: "2025-01-02", Values: []float64{90, 100}}, agoda.Dates[0])
	assert.Equal(t, DateValues{CheckIn: "2025-01-03", Values: []float64{120}}, agoda.Dates[1])

	_, err = f.svc.CompPrices(ctx, 8, f.now, granularity.Hourly)
	require.ErrorIs(t, err, ErrNotFound)

	// Nothing matches a target two days later.
	_, err = f.svc.CompPrices(ctx, 7, f.now.AddDate(0, 0, 2), granularity.Hourly)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileService_AIPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bucket := f.layout.AIPricesBucket(store.ModelBaseline, 7, granularity.Daily)

	writeAt(t, f, bucket, time.Date(2024, 12, 31, 23, 0, 0, 0, f.loc), []records.PricePrediction{
		{Name: "STD", Channel: "agoda", CheckIn: f.day(2), PredictedPrice: 80},
		{Name: "DLX", Channel: "agoda", CheckIn: f.day(2), PredictedPrice: 110},
		{Name: "DLX", Channel: "agoda", CheckIn: f.day(1), PredictedPrice: 100},
	})

	resp, err := f.svc.AIPrices(ctx, 7, f.now, store.ModelBaseline, granularity.Daily)
	require.NoError(t, err)
	require.Len(t, resp.AIPrices, 2)

	assert.Equal(t, AIPrices{
		Name:    "DLX",
		Channel: "agoda",
		Prices:  []PriceEntry{{CheckIn: "2025-01-02", Price: 100}, {CheckIn: "2025-01-03", Price: 110}},
	}, resp.AIPrices[0])
	assert.Equal(t, "STD", resp.AIPrices[1].Name)

	_, err = f.svc.AIPrices(ctx, 7, f.now, store.ModelOptimizedBaseline, granularity.Daily)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.AIPrices(ctx, 7, f.now, "lstm", granularity.Daily)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFileService_MarketStats(t *testing.T) {
	f := newFixture(t)
	dir := f.layout.MarketStatsDir(7)

	writeAt(t, f, dir+"/agoda", f.now, []records.MarketStat{
		{CheckIn: f.day(2), Min: 80, Max: 150, Median: 110, P5: 82, P95: 148},
		{CheckIn: f.day(1), Min: 70, Max: 140, Median: 100, P5: 72, P95: 138},
	})

	resp, err := f.svc.MarketStats(context.Background(), 7, f.now)
	require.NoError(t, err)
	require.Len(t, resp.MarketStats, 1)

	dates := resp.MarketStats[0].Dates
	require.Len(t, dates, 2)
	assert.Equal(t, "2025-01-02", dates[0].CheckIn)
	assert.InDelta(t, 100, dates[0].Median, 0.0001)
	assert.InDelta(t, 138, dates[0].P95, 0.0001)
	assert.Equal(t, "2025-01-03", dates[1].CheckIn)
}

func TestFileService_Events(t *testing.T) {
	f := newFixture(t)

	writeAt(t, f, f.layout.EventsBucket(7), f.now.Add(-time.Hour), []records.EventImportance{
		{CheckIn: f.day(-1), Importance: 3, Name: "Peak demand"},
		{CheckIn: f.day(0), Importance: 0},
		{CheckIn: f.day(10), Importance: 2, Name: "High demand"},
		{CheckIn: f.day(EventsHorizonDays + 1), Importance: 1, Name: "Elevated demand"},
	})

	resp, err := f.svc.Events(context.Background(), 7, f.now)
	require.NoError(t, err)
	require.Len(t, resp.Events, 2)

	assert.Equal(t, "2025-01-01", resp.Events[0].CheckIn)
	assert.Nil(t, resp.Events[0].EventName)

	assert.Equal(t, "2025-01-11", resp.Events[1].CheckIn)
	assert.Equal(t, 2, resp.Events[1].EventImportance)
	require.NotNil(t, resp.Events[1].EventName)
	assert.Equal(t, "High demand", *resp.Events[1].EventName)

	_, err = f.svc.Events(context.Background(), 99, f.now)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileService_Properties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Properties(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, properties.Save(f.layout.PropertiesPath(), []records.Property{
		{PropertyID: 7, ClientIDs: []int64{1}, CompIDs: []int64{2, 3}, IsUsingIMS: true},
		{PropertyID: 9, ClientIDs: []int64{4}, CompIDs: []int64{}},
	}))

	resp, err := f.svc.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, resp.AllIDs)
	assert.Equal(t, HotelProperty{PropertyID: 7, ClientIDs: []int64{1}, CompIDs: []int64{2, 3}, IsUsingIMS: true},
		resp.Properties[0])
}

func TestFileService_LatestUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.LatestUpdates(ctx, granularity.Hourly)
	require.NoError(t, err)
	assert.Equal(t, "A", empty.ScrapType)
	assert.Empty(t, empty.Raw)
	assert.Empty(t, empty.Processed)

	ts := time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC)

	require.NoError(t, f.ledger.SaveRaw(granularity.Daily, ledger.Tables{"agoda": {"1": ts}}))
	require.NoError(t, f.ledger.SaveProcessed(granularity.Daily, ledger.Entities{"7": ts}))

	resp, err := f.svc.LatestUpdates(ctx, granularity.Daily)
	require.NoError(t, err)
	assert.Equal(t, "B", resp.ScrapType)
	assert.Equal(t, map[string]map[string]string{"agoda": {"1": "2025-01-01T09:30:00+09:00"}}, resp.Raw)
	assert.Equal(t, map[string]string{"7": "2025-01-01T09:30:00+09:00"}, resp.Processed)
}
