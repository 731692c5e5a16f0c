package directory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"frameworks/cartographer/internal/scope"
	"frameworks/cartographer/pkg/logging"
)

// Deps are the collaborators a Helper reads through. Cache and Rates may be
// nil; a nil Cache disables region JSON caching and a nil Rates makes every
// conversion fail with ErrRateNotFound.
type Deps struct {
	Config    ScopeConfig
	Cache     ConfigCache
	Countries CountryCollection
	Regions   RegionCollectionFactory
	Encoder   JSONEncoder
	Stores    StoreManager
	Rates     CurrencyRates
	Logger    logging.Logger
}

// Helper answers directory questions for the current store. It holds a
// single country collection, so one Helper serves one request.
type Helper struct {
	config    ScopeConfig
	cache     ConfigCache
	countries CountryCollection
	regions   RegionCollectionFactory
	encoder   JSONEncoder
	stores    StoreManager
	rates     CurrencyRates
	logger    logging.Logger
}

// NewHelper returns a Helper over d, defaulting the encoder to StdEncoder and
// the logger to a discard logger.
func NewHelper(d Deps) *Helper {
	enc := d.Encoder
	if enc == nil {
		enc = StdEncoder{}
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Helper{
		config:    d.Config,
		cache:     d.Cache,
		countries: d.Countries,
		regions:   d.Regions,
		encoder:   enc,
		stores:    d.Stores,
		rates:     d.Rates,
		logger:    logger,
	}
}

// RegionCacheKey is the config cache key holding the region JSON of store.
func RegionCacheKey(store *scope.Store) string {
	return RegionJSONCachePrefix + "_" + store.ScopeID()
}

// RegionJSON returns the encoded region map of the current store, served from
// the config cache when present.
func (h *Helper) RegionJSON(ctx context.Context) (string, error) {
	store, err := h.stores.GetStore(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve store: %w", err)
	}
	key := RegionCacheKey(store)

	if h.cache != nil {
		cached, ok, err := h.cache.Load(ctx, key)
		if err != nil {
			return "", fmt.Errorf("load %s: %w", key, err)
		}
		if ok {
			return cached, nil
		}
	}

	data, err := h.RegionData(ctx)
	if err != nil {
		return "", err
	}
	encoded, err := h.encoder.Encode(data)
	if err != nil {
		return "", fmt.Errorf("encode region data: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Save(ctx, key, encoded); err != nil {
			return "", fmt.Errorf("save %s: %w", key, err)
		}
		h.logger.WithFields(logging.Fields{
			"cache_key": key,
			"countries": len(data.Countries),
		}).Debug("Cached region JSON")
	}
	return encoded, nil
}

// RegionData builds the region map from the current state of the country and
// region collections. Countries are those allowed for the current store.
func (h *Helper) RegionData(ctx context.Context) (*RegionData, error) {
	collection, err := h.CountryCollection(ctx, nil)
	if err != nil {
		return nil, err
	}
	countries, err := collection.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("load countries: %w", err)
	}
	codes := make([]string, 0, len(countries))
	for _, c := range countries {
		codes = append(codes, c.ID)
	}

	showAll, err := h.ShowNonRequiredState(ctx)
	if err != nil {
		return nil, err
	}
	required, err := h.CountriesWithStatesRequired(ctx)
	if err != nil {
		return nil, err
	}
	data := NewRegionData(RegionConfig{ShowAllRegions: showAll, RegionsRequired: required})

	regions := h.regions.Create().AddCountryFilter(codes)
	if err := regions.Load(ctx); err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}
	for _, r := range regions.Items() {
		if r.ID == "" {
			continue
		}
		data.Add(r)
	}
	return data, nil
}

// CountriesWithStatesRequired lists the countries whose addresses need a
// region.
func (h *Helper) CountriesWithStatesRequired(ctx context.Context) ([]string, error) {
	return h.storeList(ctx, ConfigPathStateRequired)
}

// CountriesWithStatesRequiredJSON is CountriesWithStatesRequired encoded.
func (h *Helper) CountriesWithStatesRequiredJSON(ctx context.Context) (string, error) {
	codes, err := h.CountriesWithStatesRequired(ctx)
	if err != nil {
		return "", err
	}
	out, err := h.encoder.Encode(codes)
	if err != nil {
		return "", fmt.Errorf("encode countries: %w", err)
	}
	return out, nil
}

// CountriesWithOptionalZip lists the countries whose addresses may omit a
// postal code.
func (h *Helper) CountriesWithOptionalZip(ctx context.Context) ([]string, error) {
	return h.storeList(ctx, ConfigPathOptionalZipCountries)
}

// TopCountryCodes lists the countries shown first in country selectors.
func (h *Helper) TopCountryCodes(ctx context.Context) ([]string, error) {
	return h.storeList(ctx, ConfigPathTopCountries)
}

// IsRegionRequired reports whether countryCode needs a region.
func (h *Helper) IsRegionRequired(ctx context.Context, countryCode string) (bool, error) {
	codes, err := h.CountriesWithStatesRequired(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(codes, countryCode), nil
}

// IsZipCodeOptional reports whether countryCode may omit a postal code.
func (h *Helper) IsZipCodeOptional(ctx context.Context, countryCode string) (bool, error) {
	codes, err := h.CountriesWithOptionalZip(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(codes, countryCode), nil
}

// ShowNonRequiredState reports whether region fields are shown for countries
// that do not require one.
func (h *Helper) ShowNonRequiredState(ctx context.Context) (bool, error) {
	store, err := h.stores.GetStore(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve store: %w", err)
	}
	show, err := h.config.IsSetFlag(ctx, ConfigPathDisplayAllStates, scope.StoreScope, store.ScopeID())
	if err != nil {
		return false, fmt.Errorf("read %s: %w", ConfigPathDisplayAllStates, err)
	}
	return show, nil
}

// DefaultCountry returns the configured default country of storeID, or of
// the current store when storeID is empty. The value is returned as stored.
func (h *Helper) DefaultCountry(ctx context.Context, storeID string) (string, error) {
	if storeID == "" {
		store, err := h.stores.GetStore(ctx)
		if err != nil {
			return "", fmt.Errorf("resolve store: %w", err)
		}
		storeID = store.ScopeID()
	}
	value, _, err := h.config.GetValue(ctx, ConfigPathDefaultCountry, scope.StoreScope, storeID)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ConfigPathDefaultCountry, err)
	}
	return value, nil
}

// CountryCollection returns the helper's country collection, loading it for
// store (the current store when nil) if it has not been loaded yet.
func (h *Helper) CountryCollection(ctx context.Context, store *scope.Store) (CountryCollection, error) {
	if h.countries.IsLoaded() {
		return h.countries, nil
	}
	if store == nil {
		var err error
		if store, err = h.stores.GetStore(ctx); err != nil {
			return nil, fmt.Errorf("resolve store: %w", err)
		}
	}
	if err := h.countries.LoadByStore(ctx, store); err != nil {
		return nil, fmt.Errorf("load countries for store %s: %w", store.Code, err)
	}
	return h.countries, nil
}

// BaseCurrencyCode returns the global base currency.
func (h *Helper) BaseCurrencyCode(ctx context.Context) (string, error) {
	value, _, err := h.config.GetValue(ctx, ConfigPathBaseCurrency, scope.DefaultScope, "")
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ConfigPathBaseCurrency, err)
	}
	return value, nil
}

// WeightUnit returns the weight unit of the current store.
func (h *Helper) WeightUnit(ctx context.Context) (string, error) {
	store, err := h.stores.GetStore(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve store: %w", err)
	}
	value, _, err := h.config.GetValue(ctx, ConfigPathWeightUnit, scope.StoreScope, store.ScopeID())
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ConfigPathWeightUnit, err)
	}
	return value, nil
}

// ConvertCurrency converts amount from one currency to another. An empty to
// means the current store's display currency. The inverse rate is used when
// only the opposite direction is known.
func (h *Helper) ConvertCurrency(ctx context.Context, amount float64, from, to string) (float64, error) {
	if to == "" {
		store, err := h.stores.GetStore(ctx)
		if err != nil {
			return 0, fmt.Errorf("resolve store: %w", err)
		}
		value, _, err := h.config.GetValue(ctx, ConfigPathDisplayCurrency, scope.StoreScope, store.ScopeID())
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", ConfigPathDisplayCurrency, err)
		}
		to = value
	}
	if from == "" {
		base, err := h.BaseCurrencyCode(ctx)
		if err != nil {
			return 0, err
		}
		from = base
	}
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	if h.rates == nil {
		return 0, fmt.Errorf("%s to %s: %w", from, to, ErrRateNotFound)
	}

	rate, ok, err := h.rates.Rate(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("rate %s to %s: %w", from, to, err)
	}
	if ok {
		return amount * rate, nil
	}
	inverse, ok, err := h.rates.Rate(ctx, to, from)
	if err != nil {
		return 0, fmt.Errorf("rate %s to %s: %w", to, from, err)
	}
	if ok && inverse != 0 {
		return amount / inverse, nil
	}
	return 0, fmt.Errorf("%s to %s: %w", from, to, ErrRateNotFound)
}

// CleanRegionCache drops the cached region JSON of every store.
func (h *Helper) CleanRegionCache(ctx context.Context) error {
	if h.cache == nil {
		return nil
	}
	if err := h.cache.Clean(ctx, RegionJSONCachePrefix); err != nil {
		return fmt.Errorf("clean region cache: %w", err)
	}
	h.logger.Info("Cleaned region JSON cache")
	return nil
}

func (h *Helper) storeList(ctx context.Context, path string) ([]string, error) {
	store, err := h.stores.GetStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve store: %w", err)
	}
	value, _, err := h.config.GetValue(ctx, path, scope.StoreScope, store.ScopeID())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return SplitList(value), nil
}

// SplitList parses a comma separated configuration value. Items are trimmed
// and empty items dropped; the result is never nil.
func SplitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
