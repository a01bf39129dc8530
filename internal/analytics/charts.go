package analytics

import (
	"sort"
	"time"

	"github.com/ethpandaops/smart-pricing/internal/frame"
	"github.com/ethpandaops/smart-pricing/internal/records"
)

// ChartHorizonDays is the last check-in offset, from today, shown in charts.
const ChartHorizonDays = 179

// Event importance levels.
const (
	ImportanceNone int32 = iota
	ImportanceElevated
	ImportanceHigh
	ImportancePeak
)

var importanceNames = map[int32]string{
	ImportanceNone:     "",
	ImportanceElevated: "Elevated demand",
	ImportanceHigh:     "High demand",
	ImportancePeak:     "Peak demand",
}

// Window is an inclusive check-in date range.
type Window struct {
	From time.Time
	To   time.Time
}

// ChartWindow returns [tomorrow, today+179d] for the local day of now.
func ChartWindow(now time.Time, loc *time.Location) Window {
	today := midnight(now, loc)

	return Window{From: today.AddDate(0, 0, 1), To: today.AddDate(0, 0, ChartHorizonDays)}
}

// Contains reports whether t falls in the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// LatestScrape keeps, per hotel and check-in date, only the rows of the most
// recent scrape.
func LatestScrape(rows []records.Rate) []records.Rate {
	type key struct {
		hotel   int64
		checkIn int64
	}

	latest := make(map[key]time.Time)

	for _, r := range rows {
		k := key{r.HotelID, r.CheckIn.Unix()}
		if cur, ok := latest[k]; !ok || r.ScrapingID.After(cur) {
			latest[k] = r.ScrapingID
		}
	}

	out := make([]records.Rate, 0, len(latest))

	for _, r := range rows {
		if r.ScrapingID.Equal(latest[key{r.HotelID, r.CheckIn.Unix()}]) {
			out = append(out, r)
		}
	}

	return out
}

// CompPrices returns, per channel, the latest competitor prices for check-in
// dates in window, ordered by check-in then hotel.
func CompPrices(comp *frame.Set[records.Rate], window Window) *frame.Set[records.CompPrice] {
	out := frame.New[records.CompPrice]()

	comp.Each(func(channel string, rows []records.Rate) {
		var prices []records.CompPrice

		for _, r := range LatestScrape(rows) {
			if !window.Contains(r.CheckIn) {
				continue
			}

			prices = append(prices, records.CompPrice{
				HotelID:      r.HotelID,
				CheckIn:      r.CheckIn,
				ScrapingID:   r.ScrapingID,
				PriceDisplay: r.PriceDisplay,
			})
		}

		if len(prices) == 0 {
			return
		}

		sort.SliceStable(prices, func(i, j int) bool {
			if !prices[i].CheckIn.Equal(prices[j].CheckIn) {
				return prices[i].CheckIn.Before(prices[j].CheckIn)
			}

			return prices[i].HotelID < prices[j].HotelID
		})

		out.Put(channel, prices)
	})

	return out
}

// MarketStats summarises, per channel and check-in date in window, the
// distribution of the latest competitor prices.
func MarketStats(comp *frame.Set[records.Rate], window Window) *frame.Set[records.MarketStat] {
	out := frame.New[records.MarketStat]()

	comp.Each(func(channel string, rows []records.Rate) {
		byDate := pricesByCheckIn(LatestScrape(rows), window)
		if len(byDate) == 0 {
			return
		}

		stats := make([]records.MarketStat, 0, len(byDate))

		for _, day := range sortedDays(byDate) {
			stats = append(stats, marketStat(day, byDate[day]))
		}

		out.Put(channel, stats)
	})

	return out
}

// Events scores each check-in date in window by how far its median
// competitor price, across all channels, sits above the overall median.
func Events(comp *frame.Set[records.Rate], window Window) []records.EventImportance {
	byDate := make(map[time.Time][]float64)

	comp.Each(func(_ string, rows []records.Rate) {
		for day, prices := range pricesByCheckIn(LatestScrape(rows), window) {
			byDate[day] = append(byDate[day], prices...)
		}
	})

	if len(byDate) == 0 {
		return nil
	}

	days := sortedDays(byDate)
	medians := make([]float64, len(days))

	for i, day := range days {
		medians[i] = Median(byDate[day])
	}

	overall := Median(medians)
	out := make([]records.EventImportance, len(days))

	for i, day := range days {
		level := importance(medians[i], overall)
		out[i] = records.EventImportance{CheckIn: day, Importance: level, Name: importanceNames[level]}
	}

	return out
}

func importance(median, overall float64) int32 {
	if overall <= 0 {
		return ImportanceNone
	}

	ratio := median / overall

	switch {
	case ratio >= 1.5:
		return ImportancePeak
	case ratio >= 1.25:
		return ImportanceHigh
	case ratio >= 1.1:
		return ImportanceElevated
	default:
		return ImportanceNone
	}
}

func marketStat(day time.Time, prices []float64) records.MarketStat {
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	q := func(p float64) float64 { return quantileSorted(sorted, p) }

	return records.MarketStat{
		CheckIn: day,
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Median:  q(0.5),
		P5:      q(0.05),
		P15:     q(0.15),
		P25:     q(0.25),
		P35:     q(0.35),
		P45:     q(0.45),
		P55:     q(0.55),
		P65:     q(0.65),
		P75:     q(0.75),
		P85:     q(0.85),
		P95:     q(0.95),
	}
}

func pricesByCheckIn(rows []records.Rate, window Window) map[time.Time][]float64 {
	out := make(map[time.Time][]float64)
	loc := window.From.Location()

	for _, r := range rows {
		if !window.Contains(r.CheckIn) {
			continue
		}

		// Keyed in one location so equal instants share a key.
		day := r.CheckIn.In(loc)
		out[day] = append(out[day], r.PriceDisplay)
	}

	return out
}

func sortedDays(m map[time.Time][]float64) []time.Time {
	days := make([]time.Time, 0, len(m))
	for day := range m {
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return days
}
