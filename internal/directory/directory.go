// Package directory answers locality questions for a store: which countries
// and regions exist, which countries need a state or may omit a postal code,
// the default and top countries, and the region JSON consumed by address
// forms. It reads everything through the collaborator interfaces below.
package directory

import (
	"context"
	"errors"

	"frameworks/cartographer/internal/scope"
)

// Configuration paths read by Helper.
const (
	ConfigPathStateRequired        = "general/region/state_required"
	ConfigPathDisplayAllStates     = "general/region/display_all"
	ConfigPathOptionalZipCountries = "general/country/optional_zip_countries"
	ConfigPathDefaultCountry       = "general/country/default"
	ConfigPathTopCountries         = "general/country/destinations"
	ConfigPathAllowedCountries     = "general/country/allow"
	ConfigPathDefaultLocale        = "general/locale/code"
	ConfigPathWeightUnit           = "general/locale/weight_unit"
	ConfigPathBaseCurrency         = "currency/options/base"
	ConfigPathDisplayCurrency      = "currency/options/default"
)

// RegionJSONCachePrefix prefixes the per-store region JSON cache keys.
const RegionJSONCachePrefix = "DIRECTORY_REGIONS_JSON_STORE"

// ErrRateNotFound is returned by ConvertCurrency when neither the direct nor
// the inverse rate is known.
var ErrRateNotFound = errors.New("currency rate not found")

// Country is a row of the country collection.
type Country struct {
	ID       string
	ISO2Code string
	ISO3Code string
}

// Region is a row of the region collection.
type Region struct {
	ID        string
	CountryID string
	Code      string
	Name      string
}

// ScopeConfig reads scoped configuration. ok is false when the path has no
// value at any level of the scope chain.
type ScopeConfig interface {
	GetValue(ctx context.Context, path string, typ scope.Type, scopeID string) (value string, ok bool, err error)
	IsSetFlag(ctx context.Context, path string, typ scope.Type, scopeID string) (bool, error)
}

// CountryCollection is a lazily loaded set of countries.
type CountryCollection interface {
	// Items returns the loaded countries, loading every country first when
	// the collection has not been loaded yet.
	Items(ctx context.Context) ([]Country, error)
	IsLoaded() bool
	// LoadByStore loads the countries allowed for store.
	LoadByStore(ctx context.Context, store *scope.Store) error
}

// RegionCollection is a filterable, loadable set of regions.
type RegionCollection interface {
	AddCountryFilter(countryIDs []string) RegionCollection
	Load(ctx context.Context) error
	Items() []Region
}

// RegionCollectionFactory creates fresh region collections.
type RegionCollectionFactory interface {
	Create() RegionCollection
}

// JSONEncoder turns a value into JSON text.
type JSONEncoder interface {
	Encode(v any) (string, error)
}

// StoreManager resolves the store the current request runs in.
type StoreManager interface {
	GetStore(ctx context.Context) (*scope.Store, error)
}

// ConfigCache stores rendered configuration-derived blobs.
type ConfigCache interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
	// Clean removes every key starting with prefix.
	Clean(ctx context.Context, prefix string) error
}

// CurrencyRates looks up conversion rates.
type CurrencyRates interface {
	Rate(ctx context.Context, from, to string) (rate float64, ok bool, err error)
}
