package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"frameworks/cartographer/internal/directory"
	"frameworks/cartographer/internal/scopeconfig"
	"frameworks/cartographer/internal/store"
	"frameworks/cartographer/pkg/countries"
	"frameworks/cartographer/pkg/ctxkeys"
	"frameworks/cartographer/pkg/logging"
	"frameworks/cartographer/pkg/middleware"
)

type CountryResponse struct {
	ID       string `json:"id"`
	ISO2Code string `json:"iso2_code"`
	ISO3Code string `json:"iso3_code"`
	Name     string `json:"name,omitempty"`
}

type RequirementsResponse struct {
	Country        string `json:"country"`
	RegionRequired bool   `json:"region_required"`
	ZipOptional    bool   `json:"zip_optional"`
}

type DirectoryHandler struct {
	newHelper HelperFactory
	locator   CountryLocator
	// onClean runs after the region cache is cleaned, e.g. to drop memoized
	// configuration.
	onClean func()
	logger  logging.Logger
	metrics *DirectoryMetrics
}

func NewDirectoryHandler(
	newHelper HelperFactory,
	locator CountryLocator,
	onClean func(),
	logger logging.Logger,
	metrics *DirectoryMetrics,
) *DirectoryHandler {
	return &DirectoryHandler{
		newHelper: newHelper,
		locator:   locator,
		onClean:   onClean,
		logger:    logger,
		metrics:   metrics,
	}
}

// Register mounts the directory routes. The cache clean route requires
// serviceToken as a bearer token.
func (h *DirectoryHandler) Register(r gin.IRouter, serviceToken string) {
	g := r.Group("/api/directory")
	g.GET("/regions", h.Regions)
	g.GET("/settings", h.Settings)
	g.GET("/countries", h.Countries)
	g.GET("/countries/top", h.TopCountries)
	g.GET("/countries/states-required", h.StatesRequired)
	g.GET("/countries/optional-zip", h.OptionalZip)
	g.GET("/countries/default", h.DefaultCountry)
	g.GET("/countries/detect", h.DetectCountry)
	g.GET("/countries/:code/requirements", h.Requirements)
	g.GET("/currency/convert", h.ConvertCurrency)
	g.POST("/cache/clean", middleware.ServiceAuthMiddleware(serviceToken), h.CleanCache)
}

func (h *DirectoryHandler) helper(c *gin.Context, endpoint string) (*directory.Helper, bool) {
	helper, err := h.newHelper(c.Request.Context())
	if err != nil {
		h.fail(c, endpoint, err)
		return nil, false
	}
	return helper, true
}

// fail maps helper errors to responses.
func (h *DirectoryHandler) fail(c *gin.Context, endpoint string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, scopeconfig.ErrUnknownStore):
		h.metrics.IncRequest(endpoint, "unknown_store")
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown store"})
	case errors.Is(err, directory.ErrRateNotFound):
		h.metrics.IncRequest(endpoint, "rate_not_found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Currency rate not found"})
	default:
		h.metrics.IncRequest(endpoint, "error")
		middleware.GetContextLogger(c, h.logger).WithError(err).WithField("endpoint", endpoint).Error("Directory lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Directory lookup failed"})
	}
}

func (h *DirectoryHandler) Regions(c *gin.Context) {
	helper, ok := h.helper(c, "regions")
	if !ok {
		return
	}
	out, err := helper.RegionJSON(c.Request.Context())
	if err != nil {
		h.fail(c, "regions", err)
		return
	}
	h.metrics.IncRequest("regions", "ok")
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(out))
}

func (h *DirectoryHandler) Settings(c *gin.Context) {
	helper, ok := h.helper(c, "settings")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	showAll, err := helper.ShowNonRequiredState(ctx)
	if err != nil {
		h.fail(c, "settings", err)
		return
	}
	weightUnit, err := helper.WeightUnit(ctx)
	if err != nil {
		h.fail(c, "settings", err)
		return
	}
	baseCurrency, err := helper.BaseCurrencyCode(ctx)
	if err != nil {
		h.fail(c, "settings", err)
		return
	}
	required, err := helper.CountriesWithStatesRequiredJSON(ctx)
	if err != nil {
		h.fail(c, "settings", err)
		return
	}

	h.metrics.IncRequest("settings", "ok")
	c.JSON(http.StatusOK, gin.H{
		"show_all_regions": showAll,
		"weight_unit":      weightUnit,
		"base_currency":    baseCurrency,
		"regions_required": json.RawMessage(required),
	})
}

func (h *DirectoryHandler) Countries(c *gin.Context) {
	helper, ok := h.helper(c, "countries")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	collection, err := helper.CountryCollection(ctx, nil)
	if err != nil {
		h.fail(c, "countries", err)
		return
	}
	items, err := collection.Items(ctx)
	if err != nil {
		h.fail(c, "countries", err)
		return
	}
	top, err := helper.TopCountryCodes(ctx)
	if err != nil {
		h.fail(c, "countries", err)
		return
	}

	out := make([]CountryResponse, 0, len(items))
	for _, item := range items {
		out = append(out, CountryResponse{
			ID:       item.ID,
			ISO2Code: item.ISO2Code,
			ISO3Code: item.ISO3Code,
			Name:     countries.Name(item.ISO2Code),
		})
	}
	h.metrics.IncRequest("countries", "ok")
	c.JSON(http.StatusOK, gin.H{"countries": out, "top": top})
}

func (h *DirectoryHandler) TopCountries(c *gin.Context) {
	h.countryList(c, "top", (*directory.Helper).TopCountryCodes)
}

func (h *DirectoryHandler) StatesRequired(c *gin.Context) {
	h.countryList(c, "states_required", (*directory.Helper).CountriesWithStatesRequired)
}

func (h *DirectoryHandler) OptionalZip(c *gin.Context) {
	h.countryList(c, "optional_zip", (*directory.Helper).CountriesWithOptionalZip)
}

func (h *DirectoryHandler) countryList(c *gin.Context, endpoint string, list func(*directory.Helper, context.Context) ([]string, error)) {
	helper, ok := h.helper(c, endpoint)
	if !ok {
		return
	}
	codes, err := list(helper, c.Request.Context())
	if err != nil {
		h.fail(c, endpoint, err)
		return
	}
	h.metrics.IncRequest(endpoint, "ok")
	c.JSON(http.StatusOK, gin.H{"countries": codes})
}

// DefaultCountry answers for the current store, or for the store id given in
// the store_id query parameter.
func (h *DirectoryHandler) DefaultCountry(c *gin.Context) {
	storeID := strings.TrimSpace(c.Query("store_id"))
	if storeID != "" {
		if _, err := strconv.ParseInt(storeID, 10, 64); err != nil {
			h.metrics.IncRequest("default", "bad_request")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid store_id"})
			return
		}
	}
	helper, ok := h.helper(c, "default")
	if !ok {
		return
	}
	country, err := helper.DefaultCountry(c.Request.Context(), storeID)
	if err != nil {
		h.fail(c, "default", err)
		return
	}
	h.metrics.IncRequest("default", "ok")
	c.JSON(http.StatusOK, gin.H{"country": country})
}

// DetectCountry guesses the visitor's country from the client IP. The guess
// is only used when the store allows that country; otherwise the store's
// default country is returned.
func (h *DirectoryHandler) DetectCountry(c *gin.Context) {
	helper, ok := h.helper(c, "detect")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	ip := ctxkeys.GetClientIP(ctx)
	if ip == "" {
		ip = c.ClientIP()
	}

	if h.locator != nil {
		if code := h.locator.CountryCode(ctx, ip); code != "" {
			collection, err := helper.CountryCollection(ctx, nil)
			if err != nil {
				h.fail(c, "detect", err)
				return
			}
			items, err := collection.Items(ctx)
			if err != nil {
				h.fail(c, "detect", err)
				return
			}
			if slices.ContainsFunc(items, func(item directory.Country) bool { return item.ID == code }) {
				h.metrics.IncRequest("detect", "ok")
				h.metrics.IncDetection("geoip")
				c.JSON(http.StatusOK, gin.H{"country": code, "source": "geoip"})
				return
			}
		}
	}

	country, err := helper.DefaultCountry(ctx, "")
	if err != nil {
		h.fail(c, "detect", err)
		return
	}
	h.metrics.IncRequest("detect", "ok")
	h.metrics.IncDetection("default")
	c.JSON(http.StatusOK, gin.H{"country": country, "source": "default"})
}

func (h *DirectoryHandler) Requirements(c *gin.Context) {
	code := countries.Normalize(c.Param("code"))
	if !countries.IsValid(code) {
		h.metrics.IncRequest("requirements", "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid country code"})
		return
	}
	helper, ok := h.helper(c, "requirements")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	regionRequired, err := helper.IsRegionRequired(ctx, code)
	if err != nil {
		h.fail(c, "requirements", err)
		return
	}
	zipOptional, err := helper.IsZipCodeOptional(ctx, code)
	if err != nil {
		h.fail(c, "requirements", err)
		return
	}
	h.metrics.IncRequest("requirements", "ok")
	c.JSON(http.StatusOK, RequirementsResponse{
		Country:        code,
		RegionRequired: regionRequired,
		ZipOptional:    zipOptional,
	})
}

func (h *DirectoryHandler) ConvertCurrency(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil {
		h.metrics.IncRequest("convert", "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}
	from := strings.ToUpper(strings.TrimSpace(c.Query("from")))
	to := strings.ToUpper(strings.TrimSpace(c.Query("to")))

	helper, ok := h.helper(c, "convert")
	if !ok {
		return
	}
	result, err := helper.ConvertCurrency(c.Request.Context(), amount, from, to)
	if err != nil {
		h.fail(c, "convert", err)
		return
	}
	h.metrics.IncRequest("convert", "ok")
	c.JSON(http.StatusOK, gin.H{
		"amount": amount,
		"from":   from,
		"to":     to,
		"result": result,
	})
}

func (h *DirectoryHandler) CleanCache(c *gin.Context) {
	helper, ok := h.helper(c, "clean")
	if !ok {
		return
	}
	if err := helper.CleanRegionCache(c.Request.Context()); err != nil {
		h.fail(c, "clean", err)
		return
	}
	if h.onClean != nil {
		h.onClean()
	}
	middleware.GetContextLogger(c, h.logger).Info("Directory caches cleaned")
	h.metrics.IncRequest("clean", "ok")
	c.JSON(http.StatusOK, gin.H{"status": "cleaned"})
}
