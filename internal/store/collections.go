package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"frameworks/cartographer/internal/directory"
	"frameworks/cartographer/internal/scope"
)

// CountryCollection is the directory_country table, loaded on first use.
// It is not safe for concurrent use.
type CountryCollection struct {
	db     *sql.DB
	config directory.ScopeConfig
	items  []directory.Country
	loaded bool
}

// NewCountryCollection returns an unloaded collection. cfg supplies the
// allowed-country list used by LoadByStore.
func NewCountryCollection(db *sql.DB, cfg directory.ScopeConfig) *CountryCollection {
	return &CountryCollection{db: db, config: cfg}
}

func (c *CountryCollection) IsLoaded() bool {
	return c.loaded
}

// Items returns the loaded countries, loading all of them when nothing has
// been loaded yet.
func (c *CountryCollection) Items(ctx context.Context) ([]directory.Country, error) {
	if !c.loaded {
		if err := c.load(ctx, nil); err != nil {
			return nil, err
		}
	}
	return c.items, nil
}

// LoadByStore loads the countries in the store's general/country/allow list.
func (c *CountryCollection) LoadByStore(ctx context.Context, st *scope.Store) error {
	allow, _, err := c.config.GetValue(ctx, directory.ConfigPathAllowedCountries, scope.StoreScope, st.ScopeID())
	if err != nil {
		return fmt.Errorf("read allowed countries: %w", err)
	}
	return c.load(ctx, directory.SplitList(allow))
}

// load reads every country when codes is nil, otherwise only those in codes.
func (c *CountryCollection) load(ctx context.Context, codes []string) error {
	query := `SELECT country_id, iso2_code, iso3_code FROM directory_country`
	var args []interface{}
	if codes != nil {
		query += ` WHERE country_id = ANY($1)`
		args = append(args, pq.Array(codes))
	}
	query += ` ORDER BY country_id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	items := make([]directory.Country, 0)
	for rows.Next() {
		var country directory.Country
		if err := rows.Scan(&country.ID, &country.ISO2Code, &country.ISO3Code); err != nil {
			return err
		}
		items = append(items, country)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	c.items = items
	c.loaded = true
	return nil
}

// RegionCollection is a query over directory_country_region. Names come from
// directory_country_region_name for the collection's locale when present.
type RegionCollection struct {
	db         *sql.DB
	locale     string
	countryIDs []string
	filtered   bool
	items      []directory.Region
}

func (c *RegionCollection) AddCountryFilter(countryIDs []string) directory.RegionCollection {
	c.countryIDs = append(c.countryIDs, countryIDs...)
	c.filtered = true
	return c
}

func (c *RegionCollection) Load(ctx context.Context) error {
	query := `
		SELECT main.region_id, main.country_id, COALESCE(main.code, ''),
			COALESCE(rname.name, main.default_name, '') AS name
		FROM directory_country_region AS main
		LEFT JOIN directory_country_region_name AS rname
			ON rname.region_id = main.region_id AND rname.locale = $1`
	args := []interface{}{c.locale}
	if c.filtered {
		query += ` WHERE main.country_id = ANY($2)`
		args = append(args, pq.Array(c.countryIDs))
	}
	query += ` ORDER BY name, main.region_id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	items := make([]directory.Region, 0)
	for rows.Next() {
		var (
			id     int64
			region directory.Region
		)
		if err := rows.Scan(&id, &region.CountryID, &region.Code, &region.Name); err != nil {
			return err
		}
		region.ID = strconv.FormatInt(id, 10)
		items = append(items, region)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	c.items = items
	return nil
}

func (c *RegionCollection) Items() []directory.Region {
	return c.items
}

// RegionFactory creates region collections bound to one locale.
type RegionFactory struct {
	db     *sql.DB
	locale string
}

func NewRegionFactory(db *sql.DB, locale string) *RegionFactory {
	return &RegionFactory{db: db, locale: locale}
}

func (f *RegionFactory) Create() directory.RegionCollection {
	return &RegionCollection{db: f.db, locale: f.locale}
}
