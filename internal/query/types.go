//nolint:tagliatelle // field names match the published API.
package query

import (
	"time"

	"github.com/ethpandaops/smart-pricing/internal/records"
)

// DateValues lists the competitor prices observed for one check-in date.
type DateValues struct {
	CheckIn string    `json:"checkIn"`
	Values  []float64 `json:"values"`
}

// ChannelCompPrices groups competitor prices by channel.
type ChannelCompPrices struct {
	Channel string       `json:"channel"`
	Dates   []DateValues `json:"dates"`
}

// CompPricesResponse is the body of GET /data/comp-prices/{property_id}.
type CompPricesResponse struct {
	CompPrices []ChannelCompPrices `json:"comp_prices"`
}

// PriceEntry is one predicted price.
type PriceEntry struct {
	CheckIn string  `json:"checkIn"`
	Price   float64 `json:"price"`
}

// AIPrices holds the predictions of one room type on one channel.
type AIPrices struct {
	Name    string       `json:"name"`
	Channel string       `json:"channel"`
	Prices  []PriceEntry `json:"prices"`
}

// AIPricesResponse is the body of GET /data/ai-prices/{property_id}.
type AIPricesResponse struct {
	AIPrices []AIPrices `json:"ai_prices"`
}

// DateStats is the market price distribution of one check-in date.
type DateStats struct {
	CheckIn string  `json:"checkIn"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	P5      float64 `json:"p5"`
	P15     float64 `json:"p15"`
	P25     float64 `json:"p25"`
	P35     float64 `json:"p35"`
	P45     float64 `json:"p45"`
	P55     float64 `json:"p55"`
	P65     float64 `json:"p65"`
	P75     float64 `json:"p75"`
	P85     float64 `json:"p85"`
	P95     float64 `json:"p95"`
}

func newDateStats(s records.MarketStat, loc *time.Location) DateStats {
	return DateStats{
		CheckIn: s.CheckIn.In(loc).Format(time.DateOnly),
		Min:     s.Min,
		Max:     s.Max,
		Median:  s.Median,
		P5:      s.P5,
		P15:     s.P15,
		P25:     s.P25,
		P35:     s.P35,
		P45:     s.P45,
		P55:     s.P55,
		P65:     s.P65,
		P75:     s.P75,
		P85:     s.P85,
		P95:     s.P95,
	}
}

// ChannelMarketStats groups market statistics by channel.
type ChannelMarketStats struct {
	Channel string      `json:"channel"`
	Dates   []DateStats `json:"dates"`
}

// MarketStatsResponse is the body of GET /data/market-stats/{property_id}.
type MarketStatsResponse struct {
	MarketStats []ChannelMarketStats `json:"market_stats"`
}

// EventEntry is the demand importance of one check-in date.
type EventEntry struct {
	CheckIn         string  `json:"checkIn"`
	EventImportance int     `json:"event_importance"`
	EventName       *string `json:"event_name"`
}

// EventsResponse is the body of GET /data/events/{property_id}.
type EventsResponse struct {
	Events []EventEntry `json:"events"`
}

// HotelProperty is the public view of a property.
type HotelProperty struct {
	PropertyID int64   `json:"property_id"`
	ClientIDs  []int64 `json:"client_ids"`
	CompIDs    []int64 `json:"comp_ids"`
	IsUsingIMS bool    `json:"is_using_IMS"`
}

// PropertiesResponse is the body of GET /data/properties.
type PropertiesResponse struct {
	Properties []HotelProperty `json:"properties"`
	AllIDs     []int64         `json:"all_properties_ids"`
}

// UpdatesResponse holds the watermarks of one granularity.
type UpdatesResponse struct {
	ScrapType string                       `json:"scrap_type"`
	Raw       map[string]map[string]string `json:"raw_data_updates"`
	Processed map[string]string            `json:"processed_data_updates"`
}

// StatusResponse is the body of GET /updates/status.
type StatusResponse struct {
	OverallStatus string                      `json:"overall_status"`
	ScrapTypes    map[string]*UpdatesResponse `json:"scrap_types"`
}
