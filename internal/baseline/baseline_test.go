package baseline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/smart-pricing/internal/frame"
	"github.com/ethpandaops/smart-pricing/internal/records"
	"github.com/ethpandaops/smart-pricing/internal/testutil"
)

// weekdayPrice is 100 on weekdays and 150 on Saturdays.
func weekdayPrice(t time.Time) float64 {
	if t.Weekday() == time.Saturday {
		return 150
	}

	return 100
}

func TestBuildSeries(t *testing.T) {
	loc := testutil.Seoul(t)
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, loc)
	early := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)
	late := early.Add(time.Hour)

	client := frame.New[records.Rate]()
	client.Put("agoda", []records.Rate{
		{HotelID: 1, CheckIn: day, ScrapingID: early, RoomType: "DLX", PriceDisplay: 500},
		{HotelID: 1, CheckIn: day, ScrapingID: late, RoomType: "DLX", PriceDisplay: 100},
		{HotelID: 1, CheckIn: day, ScrapingID: late, RoomType: "DLX", PriceDisplay: 120},
		{HotelID: 1, CheckIn: day.AddDate(0, 0, -1), ScrapingID: late, RoomType: "DLX", PriceDisplay: 90},
		{HotelID: 1, CheckIn: day, ScrapingID: late, RoomType: "STE", PriceDisplay: 300},
		{HotelID: 1, CheckIn: day, ScrapingID: late, RoomType: "", PriceDisplay: 1},
	})

	series := BuildSeries(client, loc)
	require.Len(t, series, 2)

	assert.Equal(t, "DLX", series[0].RoomType)
	require.Len(t, series[0].Observations, 2)
	assert.Equal(t, 90.0, series[0].Observations[0].Price)
	assert.Equal(t, 110.0, series[0].Observations[1].Price)
	assert.Equal(t, "STE", series[1].RoomType)
}

func TestFitAndPredict_DayOfWeek(t *testing.T) {
	loc := testutil.Seoul(t)
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, loc)

	s := Series{Channel: "agoda", RoomType: "DLX"}
	for d := 0; d < 28; d++ {
		day := start.AddDate(0, 0, d)
		s.Observations = append(s.Observations, Observation{CheckIn: day, Price: weekdayPrice(day)})
	}

	market := NewMarketIndex(frame.New[records.Rate](), loc)
	model := Fit(s, market)

	assert.Equal(t, 100.0, model.Base)
	assert.InDelta(t, 1.5, model.DayOfWeek[time.Saturday], 1e-9)
	assert.InDelta(t, 1.0, model.DayOfWeek[time.Monday], 1e-9)

	saturday := time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
	assert.InDelta(t, 150.0, model.Predict(saturday, market), 1e-9)
}

func TestEvaluate(t *testing.T) {
	loc := testutil.Seoul(t)
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, loc)
	market := NewMarketIndex(frame.New[records.Rate](), loc)

	s := Series{Channel: "agoda", RoomType: "DLX"}
	for d := 0; d < 20; d++ {
		day := start.AddDate(0, 0, d)
		s.Observations = append(s.Observations, Observation{CheckIn: day, Price: weekdayPrice(day)})
	}

	_, scores := Evaluate(s, market)
	require.Contains(t, scores, "train")
	require.Contains(t, scores, "val")
	require.Contains(t, scores, "test")
	assert.InDelta(t, 0, scores["train"]["mae"], 1e-9)
	assert.InDelta(t, 0, scores["test"]["mape"], 1e-9)

	short := Series{Observations: s.Observations[:2]}
	_, scores = Evaluate(short, market)
	assert.Len(t, scores, 1)
}

func TestMarketIndex(t *testing.T) {
	loc := testutil.Seoul(t)
	d1 := time.Date(2025, 1, 10, 0, 0, 0, 0, loc)
	d2 := d1.AddDate(0, 0, 1)
	d3 := d1.AddDate(0, 0, 2)
	scraped := d1.AddDate(0, 0, -5)

	comp := frame.New[records.Rate]()
	comp.Put("agoda", []records.Rate{
		{HotelID: 2, CheckIn: d1, ScrapingID: scraped, PriceDisplay: 100},
		{HotelID: 2, CheckIn: d2, ScrapingID: scraped, PriceDisplay: 200},
	})
	comp.Put("expedia", []records.Rate{
		{HotelID: 3, CheckIn: d3, ScrapingID: scraped, PriceDisplay: 300},
	})

	idx := NewMarketIndex(comp, loc)

	// Overall median is 200.
	assert.InDelta(t, 0.75, idx.Factor(d1), 1e-9)
	assert.InDelta(t, 1.0, idx.Factor(d2), 1e-9)
	assert.InDelta(t, 1.25, idx.Factor(d3), 1e-9)
	assert.InDelta(t, 1.0, idx.Factor(d3.AddDate(0, 0, 1)), 1e-9)
}

func TestForecast(t *testing.T) {
	loc := testutil.Seoul(t)
	from := time.Date(2025, 1, 2, 0, 0, 0, 0, loc)
	market := NewMarketIndex(frame.New[records.Rate](), loc)

	models := []Model{
		{Channel: "agoda", RoomType: "DLX", Base: 100, DayOfWeek: [7]float64{1, 1, 1, 1, 1, 1, 1}},
		{Channel: "agoda", RoomType: "EMPTY"},
	}

	preds := Forecast(models, market, from, 14)
	require.Len(t, preds, 14)
	assert.Equal(t, "DLX", preds[0].Name)
	assert.True(t, from.Equal(preds[0].CheckIn))
	assert.True(t, from.AddDate(0, 0, 13).Equal(preds[13].CheckIn))
	assert.Equal(t, 100.0, preds[5].PredictedPrice)
}

func TestAdjuster_Multiplier(t *testing.T) {
	a := Adjuster{K: 10, V: 0.25, L: 1.02}

	assert.InDelta(t, 1.0, a.Multiplier(0.25), 1e-12)
	assert.InDelta(t, 1.02, a.Multiplier(50), 1e-9)
	assert.Greater(t, a.Multiplier(0.9), 1.0)

	// Low occupancy is clamped unless discounts are enabled.
	assert.Equal(t, 1.0, a.Multiplier(0))

	a.AddDiscount = true
	expected := 0.98 + 0.04/(1+math.Exp(2.5))
	assert.InDelta(t, expected, a.Multiplier(0), 1e-12)
	assert.Less(t, a.Multiplier(0), 1.0)
}

func TestAdjuster_Apply(t *testing.T) {
	loc := testutil.Seoul(t)
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, loc)
	a := Adjuster{K: 10, V: 0.25, L: 1.5}

	preds := []records.PricePrediction{
		{Name: "DLX", Channel: "agoda", CheckIn: day, PredictedPrice: 100},
		{Name: "DLX", Channel: "expedia", CheckIn: day, PredictedPrice: 100},
		{Name: "STE", Channel: "agoda", CheckIn: day, PredictedPrice: 200},
	}
	occ := []records.Occupancy{
		{RoomType: "DLX", StayDate: day, RoomsSold: 10, RoomsTotal: 10},
	}

	got := a.Apply(preds, occ, loc)
	require.Len(t, got, 3)

	want := math.Round(100 * a.Multiplier(1))
	assert.Equal(t, want, got[0].PredictedPrice)
	assert.Equal(t, want, got[1].PredictedPrice)
	assert.Equal(t, 200.0, got[2].PredictedPrice)
	assert.Equal(t, 100.0, preds[0].PredictedPrice)
}
