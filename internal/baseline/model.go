// Package baseline fits the per room type baseline price model and the
// occupancy-driven optimized adjustment applied on top of it.
package baseline

import (
	"math"
	"sort"
	"time"

	"github.com/ethpandaops/smart-pricing/internal/analytics"
	"github.com/ethpandaops/smart-pricing/internal/frame"
	"github.com/ethpandaops/smart-pricing/internal/records"
)

// MarketWeight damps how strongly the market index moves the baseline.
const MarketWeight = 0.5

// Split fractions of the chronological train/val/test split. Test takes the rest.
const (
	TrainFraction = 0.7
	ValFraction   = 0.15
)

// Observation is one daily client price.
type Observation struct {
	CheckIn time.Time
	Price   float64
}

// Series holds the observed daily prices of one room type on one channel,
// ordered by check-in.
type Series struct {
	Channel      string
	RoomType     string
	Observations []Observation
}

// Model is a fitted baseline for one series.
type Model struct {
	Channel   string
	RoomType  string
	Base      float64
	DayOfWeek [7]float64
}

// MarketIndex maps a local check-in date to its competitor median relative
// to the median across all dates.
type MarketIndex struct {
	loc     *time.Location
	factors map[string]float64
}

// BuildSeries collects, per channel and room type, the median of the latest
// scrape's client prices for each check-in date.
func BuildSeries(client *frame.Set[records.Rate], loc *time.Location) []Series {
	var out []Series

	client.Each(func(channel string, rows []records.Rate) {
		byRoom := make(map[string]map[string][]float64)
		days := make(map[string]time.Time)

		for _, r := range analytics.LatestScrape(rows) {
			if r.RoomType == "" {
				continue
			}

			key := dateKey(r.CheckIn, loc)
			days[key] = dayOf(r.CheckIn, loc)

			if byRoom[r.RoomType] == nil {
				byRoom[r.RoomType] = make(map[string][]float64)
			}

			byRoom[r.RoomType][key] = append(byRoom[r.RoomType][key], r.PriceDisplay)
		}

		roomTypes := make([]string, 0, len(byRoom))
		for rt := range byRoom {
			roomTypes = append(roomTypes, rt)
		}

		sort.Strings(roomTypes)

		for _, rt := range roomTypes {
			s := Series{Channel: channel, RoomType: rt}

			for key, prices := range byRoom[rt] {
				s.Observations = append(s.Observations, Observation{CheckIn: days[key], Price: analytics.Median(prices)})
			}

			sort.Slice(s.Observations, func(i, j int) bool {
				return s.Observations[i].CheckIn.Before(s.Observations[j].CheckIn)
			})

			out = append(out, s)
		}
	})

	return out
}

// NewMarketIndex derives the market index from the latest competitor prices
// across all channels.
func NewMarketIndex(comp *frame.Set[records.Rate], loc *time.Location) MarketIndex {
	byDate := make(map[string][]float64)

	comp.Each(func(_ string, rows []records.Rate) {
		for _, r := range analytics.LatestScrape(rows) {
			key := dateKey(r.CheckIn, loc)
			byDate[key] = append(byDate[key], r.PriceDisplay)
		}
	})

	idx := MarketIndex{loc: loc, factors: make(map[string]float64, len(byDate))}
	if len(byDate) == 0 {
		return idx
	}

	medians := make(map[string]float64, len(byDate))
	all := make([]float64, 0, len(byDate))

	for key, prices := range byDate {
		m := analytics.Median(prices)
		medians[key] = m
		all = append(all, m)
	}

	overall := analytics.Median(all)
	if overall <= 0 {
		return idx
	}

	for key, m := range medians {
		idx.factors[key] = m / overall
	}

	return idx
}

// Factor returns the damped market multiplier for t, 1 when unknown.
func (m MarketIndex) Factor(t time.Time) float64 {
	f, ok := m.factors[dateKey(t, m.loc)]
	if !ok {
		return 1
	}

	return 1 + MarketWeight*(f-1)
}

// Fit estimates the base price and day-of-week factors of s.
func Fit(s Series, market MarketIndex) Model {
	m := Model{Channel: s.Channel, RoomType: s.RoomType}
	for i := range m.DayOfWeek {
		m.DayOfWeek[i] = 1
	}

	if len(s.Observations) == 0 {
		return m
	}

	adjusted := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		adjusted[i] = o.Price / market.Factor(o.CheckIn)
	}

	m.Base = analytics.Median(adjusted)
	if m.Base <= 0 {
		return m
	}

	var ratios [7][]float64

	for i, o := range s.Observations {
		wd := o.CheckIn.Weekday()
		ratios[wd] = append(ratios[wd], adjusted[i]/m.Base)
	}

	for wd, r := range ratios {
		if len(r) > 0 {
			m.DayOfWeek[wd] = analytics.Median(r)
		}
	}

	return m
}

// Predict returns the model price for check-in t.
func (m Model) Predict(t time.Time, market MarketIndex) float64 {
	return m.Base * m.DayOfWeek[t.Weekday()] * market.Factor(t)
}

// Scores holds metric values per split ("train", "val", "test").
type Scores map[string]map[string]float64

// Evaluate fits s on the chronological training split and scores every
// non-empty split. The returned model is refitted on all observations.
func Evaluate(s Series, market MarketIndex) (Model, Scores) {
	train, val, test := splitChronological(s.Observations)

	fitted := Fit(Series{Channel: s.Channel, RoomType: s.RoomType, Observations: train}, market)
	scores := Scores{}

	for name, obs := range map[string][]Observation{"train": train, "val": val, "test": test} {
		if len(obs) == 0 {
			continue
		}

		scores[name] = score(fitted, obs, market)
	}

	return Fit(s, market), scores
}

// Forecast predicts every model for the days check-in dates starting at from.
func Forecast(models []Model, market MarketIndex, from time.Time, days int) []records.PricePrediction {
	out := make([]records.PricePrediction, 0, len(models)*days)

	for _, m := range models {
		if m.Base <= 0 {
			continue
		}

		for d := 0; d < days; d++ {
			day := from.AddDate(0, 0, d)

			out = append(out, records.PricePrediction{
				Name:           m.RoomType,
				Channel:        m.Channel,
				CheckIn:        day,
				PredictedPrice: math.Round(m.Predict(day, market)),
			})
		}
	}

	return out
}

func splitChronological(obs []Observation) (train, val, test []Observation) {
	n := len(obs)
	if n < 3 {
		return obs, nil, nil
	}

	nTrain := int(math.Round(float64(n) * TrainFraction))
	nVal := int(math.Round(float64(n) * ValFraction))

	if nTrain < 1 {
		nTrain = 1
	}

	if nTrain+nVal > n {
		nVal = n - nTrain
	}

	return obs[:nTrain], obs[nTrain : nTrain+nVal], obs[nTrain+nVal:]
}

func score(m Model, obs []Observation, market MarketIndex) map[string]float64 {
	var absSum, pctSum float64

	pctN := 0

	for _, o := range obs {
		diff := math.Abs(o.Price - m.Predict(o.CheckIn, market))
		absSum += diff

		if o.Price != 0 {
			pctSum += diff / math.Abs(o.Price)
			pctN++
		}
	}

	out := map[string]float64{"mae": absSum / float64(len(obs))}
	if pctN > 0 {
		out["mape"] = 100 * pctSum / float64(pctN)
	}

	return out
}

func dateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)

	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
