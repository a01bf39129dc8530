// Package records defines the typed rows that flow between pipeline stages
// and are persisted as parquet snapshots.
package records

import (
	"errors"
	"fmt"
	"time"
)

// Rate is one scraped OTA price observation. The channel is implied by the
// table (raw) or file (processed) the row lives in.
type Rate struct {
	HotelID      int64     `parquet:"hotel_id"`
	ScrapingID   time.Time `parquet:"scraping_id"`
	CheckIn      time.Time `parquet:"check_in"`
	RoomName     string    `parquet:"room_name"`
	RoomType     string    `parquet:"room_type"`
	PriceDisplay float64   `parquet:"price_display"`
}

// FetchedRate is a Rate as returned by the upstream source, with the
// bookkeeping column used to advance watermarks.
type FetchedRate struct {
	Rate
	Updated time.Time
}

// StripUpdated drops the watermark column from fetched rows.
func StripUpdated(rows []FetchedRate) []Rate {
	out := make([]Rate, len(rows))
	for i, row := range rows {
		out[i] = row.Rate
	}

	return out
}

// CompPrice is one competitor price point for a check-in date.
type CompPrice struct {
	HotelID      int64     `parquet:"hotel_id"`
	CheckIn      time.Time `parquet:"check_in"`
	ScrapingID   time.Time `parquet:"scraping_id"`
	PriceDisplay float64   `parquet:"price_display"`
}

// MarketStat summarises the competitor price distribution for a check-in date.
type MarketStat struct {
	CheckIn time.Time `parquet:"check_in"`
	Min     float64   `parquet:"min"`
	Max     float64   `parquet:"max"`
	Median  float64   `parquet:"median"`
	P5      float64   `parquet:"p5"`
	P15     float64   `parquet:"p15"`
	P25     float64   `parquet:"p25"`
	P35     float64   `parquet:"p35"`
	P45     float64   `parquet:"p45"`
	P55     float64   `parquet:"p55"`
	P65     float64   `parquet:"p65"`
	P75     float64   `parquet:"p75"`
	P85     float64   `parquet:"p85"`
	P95     float64   `parquet:"p95"`
}

// EventImportance scores how unusual market demand is on a check-in date.
type EventImportance struct {
	CheckIn    time.Time `parquet:"check_in"`
	Importance int32     `parquet:"event_importance"`
	Name       string    `parquet:"event_name"`
}

// PricePrediction is a model price for a room type on a channel and date.
type PricePrediction struct {
	Name           string    `parquet:"name"`
	Channel        string    `parquet:"channel"`
	CheckIn        time.Time `parquet:"check_in"`
	PredictedPrice float64   `parquet:"predicted_price"`
}

// Occupancy is the IMS inventory state of a room type on a stay date.
type Occupancy struct {
	PropertyID int64
	StayDate   time.Time
	RoomType   string
	RoomsSold  int64
	RoomsTotal int64
}

// Rate returns the sold fraction, or zero when no rooms are configured.
func (o Occupancy) Rate() float64 {
	if o.RoomsTotal <= 0 {
		return 0
	}

	return float64(o.RoomsSold) / float64(o.RoomsTotal)
}

// Hotel roles in the property mapping.
const (
	RoleClient = "client"
	RoleComp   = "comp"
)

// PropertyMapping links a hotel id to the property that owns or watches it.
type PropertyMapping struct {
	PropertyID int64
	HotelID    int64
	Role       string
	IsUsingIMS bool
}

// RoomTypeMapping maps a channel's room listing name to an IMS room type.
type RoomTypeMapping struct {
	PropertyID int64  `json:"-"`
	Channel    string `json:"channel"`
	RoomName   string `json:"room_name"`
	RoomType   string `json:"room_type"`
}

// Property is the persisted metadata for one client hotel property.
type Property struct {
	PropertyID int64             `json:"property_id"`
	ClientIDs  []int64           `json:"client_ids"`
	CompIDs    []int64           `json:"comp_ids"`
	RoomTypes  []RoomTypeMapping `json:"room_types"`
	IsUsingIMS bool              `json:"is_using_IMS"` //nolint:tagliatelle // matches read API field
}

// ErrInvalidProperty is returned when a property record fails validation.
var ErrInvalidProperty = errors.New("invalid property")

// Validate checks the record is usable by the pipeline.
func (p *Property) Validate() error {
	if p.PropertyID <= 0 {
		return fmt.Errorf("%w: property_id must be positive, got %d", ErrInvalidProperty, p.PropertyID)
	}

	if len(p.ClientIDs) == 0 {
		return fmt.Errorf("%w: property %d has no client ids", ErrInvalidProperty, p.PropertyID)
	}

	clients := make(map[int64]bool, len(p.ClientIDs))
	for _, id := range p.ClientIDs {
		clients[id] = true
	}

	for _, id := range p.CompIDs {
		if clients[id] {
			return fmt.Errorf("%w: property %d lists hotel %d as both client and competitor",
				ErrInvalidProperty, p.PropertyID, id)
		}
	}

	for i, rt := range p.RoomTypes {
		if rt.Channel == "" || rt.RoomName == "" || rt.RoomType == "" {
			return fmt.Errorf("%w: property %d room_types[%d] is incomplete", ErrInvalidProperty, p.PropertyID, i)
		}
	}

	return nil
}

// HotelIDs returns the client ids followed by the competitor ids.
func (p *Property) HotelIDs() []int64 {
	out := make([]int64, 0, len(p.ClientIDs)+len(p.CompIDs))
	out = append(out, p.ClientIDs...)

	return append(out, p.CompIDs...)
}

// RoomTypeFor resolves a channel's room name to its room type.
func (p *Property) RoomTypeFor(channel, roomName string) (string, bool) {
	for _, rt := range p.RoomTypes {
		if rt.Channel == channel && rt.RoomName == roomName {
			return rt.RoomType, true
		}
	}

	return "", false
}
