package upstream

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/records"
)

// Compile-time interface compliance check.
var _ Source = (*SQLSource)(nil)

const (
	driverPostgres = "pgx"
	driverSQLite   = "sqlite"

	// sqliteTimeLayout is how timestamps are stored and bound in sqlite.
	sqliteTimeLayout = "2006-01-02 15:04:05"
)

// SQLSource reads from the AI database (rates, property mapping) and the IMS
// database (room types, occupancy) through database/sql.
type SQLSource struct {
	log     logrus.FieldLogger
	ai      *sql.DB
	ims     *sql.DB
	driver  string
	tables  map[string]bool
	loc     *time.Location
	timeout time.Duration
}

// Open connects to the configured databases.
func Open(log logrus.FieldLogger, cfg config.UpstreamConfig, loc *time.Location) (*SQLSource, error) {
	ai, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open ai database: %w", err)
	}

	ai.SetMaxOpenConns(cfg.MaxOpenConns)

	ims := ai

	if cfg.IMSDSN != cfg.DSN {
		ims, err = sql.Open(cfg.Driver, cfg.IMSDSN)
		if err != nil {
			_ = ai.Close()

			return nil, fmt.Errorf("open ims database: %w", err)
		}

		ims.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return NewSQLSource(log, ai, ims, cfg.Driver, cfg.Tables, loc, cfg.QueryTimeout), nil
}

// NewSQLSource wraps already opened databases. ims may be the same handle as ai.
func NewSQLSource(
	log logrus.FieldLogger,
	ai, ims *sql.DB,
	driver string,
	tables []string,
	loc *time.Location,
	timeout time.Duration,
) *SQLSource {
	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t] = true
	}

	return &SQLSource{
		log:     log.WithField("component", "upstream"),
		ai:      ai,
		ims:     ims,
		driver:  driver,
		tables:  allowed,
		loc:     loc,
		timeout: timeout,
	}
}

// Ping verifies both databases are reachable.
func (s *SQLSource) Ping(ctx context.Context) error {
	if err := s.ai.PingContext(ctx); err != nil {
		return fmt.Errorf("ping ai database: %w", err)
	}

	if err := s.ims.PingContext(ctx); err != nil {
		return fmt.Errorf("ping ims database: %w", err)
	}

	return nil
}

// Close closes the database handles.
func (s *SQLSource) Close() error {
	err := s.ai.Close()

	if s.ims != s.ai {
		if imsErr := s.ims.Close(); err == nil {
			err = imsErr
		}
	}

	return err
}

// FetchRates implements Source.
func (s *SQLSource) FetchRates(ctx context.Context, req FetchRequest) ([]records.FetchedRate, error) {
	if !s.tables[req.Table] {
		return nil, fmt.Errorf("%w: %s", ErrTableNotAllowed, req.Table)
	}

	if len(req.EntityIDs) == 0 {
		return nil, nil
	}

	query, args := s.ratesQuery(req)

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.ai.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", req.Table, err)
	}
	defer rows.Close()

	var out []records.FetchedRate

	for rows.Next() {
		var (
			r                           records.FetchedRate
			scrapingID, checkIn, update any
		)

		if err := rows.Scan(&r.HotelID, &scrapingID, &checkIn, &r.RoomName, &r.PriceDisplay, &update); err != nil {
			return nil, fmt.Errorf("scan %s: %w", req.Table, err)
		}

		if r.ScrapingID, err = toTime(scrapingID, s.loc); err != nil {
			return nil, fmt.Errorf("%s.scraping_id: %w", req.Table, err)
		}

		if r.CheckIn, err = toTime(checkIn, s.loc); err != nil {
			return nil, fmt.Errorf("%s.check_in: %w", req.Table, err)
		}

		if r.Updated, err = toTime(update, s.loc); err != nil {
			return nil, fmt.Errorf("%s.updated: %w", req.Table, err)
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", req.Table, err)
	}

	return out, nil
}

// PropertyMappings implements Source.
func (s *SQLSource) PropertyMappings(ctx context.Context) ([]records.PropertyMapping, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.ai.QueryContext(ctx,
		`SELECT property_id, hotel_id, role, is_using_ims FROM property_hotel_mapping ORDER BY property_id, hotel_id`)
	if err != nil {
		return nil, fmt.Errorf("query property_hotel_mapping: %w", err)
	}
	defer rows.Close()

	var out []records.PropertyMapping

	for rows.Next() {
		var m records.PropertyMapping
		if err := rows.Scan(&m.PropertyID, &m.HotelID, &m.Role, &m.IsUsingIMS); err != nil {
			return nil, fmt.Errorf("scan property_hotel_mapping: %w", err)
		}

		out = append(out, m)
	}

	return out, rows.Err()
}

// RoomTypeMappings implements Source.
func (s *SQLSource) RoomTypeMappings(ctx context.Context, propertyIDs []int64) ([]records.RoomTypeMapping, error) {
	if len(propertyIDs) == 0 {
		return nil, nil
	}

	b := newQueryBuilder(s.driver)
	query := `SELECT property_id, channel, room_name, room_type FROM room_type_mapping WHERE property_id IN (` +
		b.list(propertyIDs) + `) ORDER BY property_id, channel, room_name`

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.ims.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("query room_type_mapping: %w", err)
	}
	defer rows.Close()

	var out []records.RoomTypeMapping

	for rows.Next() {
		var m records.RoomTypeMapping
		if err := rows.Scan(&m.PropertyID, &m.Channel, &m.RoomName, &m.RoomType); err != nil {
			return nil, fmt.Errorf("scan room_type_mapping: %w", err)
		}

		out = append(out, m)
	}

	return out, rows.Err()
}

// Occupancy implements Source.
func (s *SQLSource) Occupancy(ctx context.Context, propertyID int64, from, to time.Time) ([]records.Occupancy, error) {
	b := newQueryBuilder(s.driver)
	query := `SELECT property_id, stay_date, room_type, rooms_sold, rooms_total FROM occupancy WHERE property_id = ` +
		b.bind(propertyID) + ` AND stay_date >= ` + b.bind(from.In(s.loc).Format(time.DateOnly)) +
		` AND stay_date <= ` + b.bind(to.In(s.loc).Format(time.DateOnly)) + ` ORDER BY stay_date, room_type`

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.ims.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("query occupancy: %w", err)
	}
	defer rows.Close()

	var out []records.Occupancy

	for rows.Next() {
		var (
			o        records.Occupancy
			stayDate any
		)

		if err := rows.Scan(&o.PropertyID, &stayDate, &o.RoomType, &o.RoomsSold, &o.RoomsTotal); err != nil {
			return nil, fmt.Errorf("scan occupancy: %w", err)
		}

		ts, err := toTime(stayDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("occupancy.stay_date: %w", err)
		}

		// Dates carry no zone; keep the calendar day.
		o.StayDate = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, s.loc)

		out = append(out, o)
	}

	return out, rows.Err()
}

func (s *SQLSource) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.timeout)
}

// ratesQuery builds a single statement restricted to the requested entities.
// Incremental requests bound each synced entity by its own watermark.
func (s *SQLSource) ratesQuery(req FetchRequest) (string, []any) {
	b := newQueryBuilder(s.driver)

	var (
		fresh, synced []int64
		clauses       []string
	)

	ids := append([]int64(nil), req.EntityIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, ok := req.Since[id]; req.FullReload || !ok {
			fresh = append(fresh, id)
		} else {
			synced = append(synced, id)
		}
	}

	// Placeholders are bound in textual order so positional "?" works.
	if len(fresh) > 0 {
		clauses = append(clauses, "hotel_id IN ("+b.list(fresh)+")")
	}

	for _, id := range synced {
		clauses = append(clauses, "(hotel_id = "+b.bind(id)+" AND updated > "+b.bind(b.timeArg(req.Since[id]))+")")
	}

	query := "SELECT hotel_id, scraping_id, check_in, room_name, price_display, updated FROM " + req.Table +
		" WHERE " + strings.Join(clauses, " OR ") + " ORDER BY updated, hotel_id"

	return query, b.args
}

type queryBuilder struct {
	driver string
	args   []any
}

func newQueryBuilder(driver string) *queryBuilder {
	return &queryBuilder{driver: driver}
}

func (b *queryBuilder) bind(v any) string {
	b.args = append(b.args, v)

	if b.driver == driverPostgres {
		return "$" + strconv.Itoa(len(b.args))
	}

	return "?"
}

func (b *queryBuilder) list(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = b.bind(id)
	}

	return strings.Join(parts, ", ")
}

func (b *queryBuilder) timeArg(t time.Time) any {
	if b.driver == driverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}

	return t
}

var textTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

// toTime converts a scanned column into a time. Text values without a zone
// are UTC, matching how sqlite stores them.
func toTime(v any, loc *time.Location) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.In(loc), nil
	case string:
		return parseText(val, loc)
	case []byte:
		return parseText(string(val), loc)
	case int64:
		return time.Unix(val, 0).In(loc), nil
	case nil:
		return time.Time{}, fmt.Errorf("unexpected NULL timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseText(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range textTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.In(loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
