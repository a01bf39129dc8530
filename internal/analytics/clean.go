// Package analytics turns raw rate tables into processed per-property data
// and the chart artifacts served by the read API.
package analytics

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/frame"
	"github.com/ethpandaops/smart-pricing/internal/records"
)

// CleanOptions bounds the price quantiles kept per table.
type CleanOptions struct {
	Lower float64
	Upper float64
}

// Processed holds one property's cleaned rows per channel.
type Processed struct {
	PropertyID int64
	Client     *frame.Set[records.Rate]
	Comp       *frame.Set[records.Rate]
}

// Clean filters outliers, normalises timestamps to loc and splits the rows
// per property. Client rooms without a room type mapping are dropped.
func Clean(
	log logrus.FieldLogger,
	raw *frame.Set[records.Rate],
	props []records.Property,
	opts CleanOptions,
	loc *time.Location,
) []Processed {
	filtered := NormalizeDates(RemoveOutliers(raw, opts.Lower, opts.Upper), loc)

	out := make([]Processed, 0, len(props))

	for i := range props {
		prop := &props[i]
		client, comp := Split(filtered, prop)
		mapped := MapRoomTypes(client, prop)

		if dropped := client.Rows() - mapped.Rows(); dropped > 0 {
			log.WithFields(logrus.Fields{
				"property_id": prop.PropertyID,
				"dropped":     dropped,
			}).Warn("Dropped client rows without room type mapping")
		}

		out = append(out, Processed{PropertyID: prop.PropertyID, Client: mapped, Comp: comp})
	}

	return out
}

// RemoveOutliers keeps rows whose price lies strictly between the lower and
// upper quantiles of their table.
func RemoveOutliers(set *frame.Set[records.Rate], lower, upper float64) *frame.Set[records.Rate] {
	out := frame.New[records.Rate]()

	set.Each(func(table string, rows []records.Rate) {
		if len(rows) == 0 {
			out.Put(table, nil)

			return
		}

		prices := make([]float64, len(rows))
		for i, r := range rows {
			prices[i] = r.PriceDisplay
		}

		lo := Quantile(prices, lower)
		hi := Quantile(prices, upper)

		kept := make([]records.Rate, 0, len(rows))

		for _, r := range rows {
			if r.PriceDisplay > lo && r.PriceDisplay < hi {
				kept = append(kept, r)
			}
		}

		out.Put(table, kept)
	})

	return out
}

// NormalizeDates converts scrape times to loc and truncates check-in to local midnight.
func NormalizeDates(set *frame.Set[records.Rate], loc *time.Location) *frame.Set[records.Rate] {
	out := frame.New[records.Rate]()

	set.Each(func(table string, rows []records.Rate) {
		converted := make([]records.Rate, len(rows))

		for i, r := range rows {
			r.ScrapingID = r.ScrapingID.In(loc)
			r.CheckIn = midnight(r.CheckIn, loc)
			converted[i] = r
		}

		out.Put(table, converted)
	})

	return out
}

// Split partitions every channel into client and competitor rows of prop.
func Split(set *frame.Set[records.Rate], prop *records.Property) (client, comp *frame.Set[records.Rate]) {
	clientIDs := idSet(prop.ClientIDs)
	compIDs := idSet(prop.CompIDs)

	client = frame.Filter(set, func(r records.Rate) bool { return clientIDs[r.HotelID] })
	comp = frame.Filter(set, func(r records.Rate) bool { return compIDs[r.HotelID] })

	return client, comp
}

// MapRoomTypes sets the room type of client rows from the property's mapping
// and drops rows with no mapping.
func MapRoomTypes(client *frame.Set[records.Rate], prop *records.Property) *frame.Set[records.Rate] {
	out := frame.New[records.Rate]()

	client.Each(func(channel string, rows []records.Rate) {
		mapped := make([]records.Rate, 0, len(rows))

		for _, r := range rows {
			roomType, ok := prop.RoomTypeFor(channel, r.RoomName)
			if !ok {
				continue
			}

			r.RoomType = roomType
			mapped = append(mapped, r)
		}

		out.Put(channel, mapped)
	})

	return out
}

func midnight(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)

	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func idSet(ids []int64) map[int64]bool {
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}

	return out
}
