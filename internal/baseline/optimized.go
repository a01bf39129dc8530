package baseline

import (
	"math"
	"time"

	"github.com/ethpandaops/smart-pricing/internal/records"
)

// Adjuster scales baseline prices by an inverse logistic of occupancy.
type Adjuster struct {
	K           float64
	V           float64
	L           float64
	AddDiscount bool
}

// Multiplier returns the price factor for occupancy occ in [0, 1]. It moves
// from 2-L at low occupancy to L at full occupancy and equals 1 at occ = V.
// Without discounts the factor never drops below 1.
func (a Adjuster) Multiplier(occ float64) float64 {
	m := (2 - a.L) + 2*(a.L-1)/(1+math.Exp(-a.K*(occ-a.V)))

	if !a.AddDiscount && m < 1 {
		return 1
	}

	return m
}

// Apply adjusts every prediction whose room type and date has an occupancy
// figure. Predictions without one are returned unchanged.
func (a Adjuster) Apply(preds []records.PricePrediction, occupancy []records.Occupancy, loc *time.Location) []records.PricePrediction {
	type key struct {
		roomType string
		date     string
	}

	rates := make(map[key]float64, len(occupancy))
	for _, o := range occupancy {
		rates[key{o.RoomType, dateKey(o.StayDate, loc)}] = o.Rate()
	}

	out := make([]records.PricePrediction, len(preds))

	for i, p := range preds {
		if occ, ok := rates[key{p.Name, dateKey(p.CheckIn, loc)}]; ok {
			p.PredictedPrice = math.Round(p.PredictedPrice * a.Multiplier(occ))
		}

		out[i] = p
	}

	return out
}
