package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"frameworks/cartographer/internal/configcache"
	"frameworks/cartographer/internal/directory"
	"frameworks/cartographer/internal/handlers"
	"frameworks/cartographer/internal/scope"
	"frameworks/cartographer/internal/scopeconfig"
	"frameworks/cartographer/internal/store"
	"frameworks/cartographer/pkg/cache"
	"frameworks/cartographer/pkg/config"
	"frameworks/cartographer/pkg/database"
	"frameworks/cartographer/pkg/geoip"
	"frameworks/cartographer/pkg/logging"
	"frameworks/cartographer/pkg/monitoring"
	"frameworks/cartographer/pkg/redis"
	"frameworks/cartographer/pkg/server"
	"frameworks/cartographer/pkg/version"
)

const serviceName = "cartographer"

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService(serviceName)

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Cartographer (directory data service)")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceToken := config.GetEnv("SERVICE_TOKEN", "")
	if serviceToken == "" {
		logger.Warn("SERVICE_TOKEN not set, cache clean endpoint will reject every request")
	}

	// === Database Connection ===
	dbConfig := database.ConfigFromEnv()
	dbConfig.URL = config.RequireEnv("DATABASE_URL")
	db := database.MustConnect(ctx, dbConfig, logger)
	defer db.Close()

	if config.GetEnvBool("APPLY_SCHEMA", false) {
		if err := database.ApplySchema(ctx, db, logger); err != nil {
			logger.WithError(err).Fatal("Failed to apply directory schema")
		}
		logger.Info("Directory schema applied")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker(serviceName, version.Version)
	metricsCollector := monitoring.NewMetricsCollector(serviceName, version.Version, version.GitCommit)
	cacheEvents := metricsCollector.CreateCacheMetrics()
	dbQueries, dbDuration := metricsCollector.CreateDatabaseMetrics()

	handlerMetrics := &handlers.DirectoryMetrics{
		Requests:   metricsCollector.NewCounter("directory_requests_total", "Directory API requests", []string{"endpoint", "status"}),
		Detections: metricsCollector.NewCounter("directory_country_detections_total", "Visitor country detections by source", []string{"source"}),
	}

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":  dbConfig.URL,
		"SERVICE_TOKEN": serviceToken,
	}))

	// === Scoped configuration ===
	repo := store.NewStore(db, config.GetEnv("DEFAULT_STORE_CODE", "default")).
		WithMetrics(&store.QueryMetrics{Queries: dbQueries, Duration: dbDuration})

	defaults, err := loadDefaults()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load directory defaults")
	}
	scopeReader := scopeconfig.NewReader(repo, repo, defaults, scopeconfig.Options{
		MemoTTL:        config.GetEnvDuration("SCOPE_CONFIG_MEMO_TTL", 30*time.Second),
		MemoMaxEntries: config.GetEnvInt("SCOPE_CONFIG_MEMO_MAX_ENTRIES", 10000),
		Metrics:        cacheHooks(cacheEvents, "scope_config"),
	}, logger)

	// === Redis (optional) ===
	var redisClient goredis.UniversalClient
	redisConfig := redis.ConfigFromEnv()
	if len(redisConfig.Addrs) > 0 {
		redisClient, err = redis.NewUniversalClient(ctx, redisConfig)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisClient.Close()
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
		logger.WithField("mode", redisConfig.Mode).Info("Redis connected")
	}

	// === Config cache ===
	defaultBackend := configcache.BackendMemory
	if redisClient != nil {
		defaultBackend = configcache.BackendRedis
	}
	configCache, err := configcache.New(configcache.Options{
		Backend:    config.GetEnv("CONFIG_CACHE_BACKEND", defaultBackend),
		KeyPrefix:  config.GetEnv("CONFIG_CACHE_PREFIX", ""),
		TTL:        config.GetEnvDuration("CONFIG_CACHE_TTL", time.Hour),
		MaxEntries: config.GetEnvInt("CONFIG_CACHE_MAX_ENTRIES", 1000),
		Metrics:    cacheHooks(cacheEvents, "config"),
	}, redisClient, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create config cache")
	}

	if shared, ok := configCache.(*configcache.RedisCache); ok {
		go func() {
			err := shared.Watch(ctx, nil, func(inv configcache.Invalidation) {
				scopeReader.Invalidate()
				logger.WithField("prefix", inv.Prefix).Info("Config cache invalidated by peer")
			})
			if err != nil {
				logger.WithError(err).Error("Config cache invalidation watcher stopped")
			}
		}()
	}

	// === GeoIP (optional) ===
	var locator handlers.CountryLocator
	geoReader, err := geoip.NewReader(config.GetEnv("GEOIP_MMDB_PATH", ""))
	if err != nil {
		logger.WithError(err).Warn("Failed to open GeoIP database, country detection falls back to store default")
	}
	if geoReader != nil {
		defer geoReader.Close()
		locator = geoip.NewCachedLocator(geoReader, cache.New[string](cache.Options{
			TTL:         config.GetEnvDuration("GEOIP_CACHE_TTL", time.Hour),
			NegativeTTL: 5 * time.Minute,
			MaxEntries:  config.GetEnvInt("GEOIP_CACHE_MAX_ENTRIES", 50000),
		}, cacheHooks(cacheEvents, "geoip")))
		logger.WithFields(logging.Fields{
			"provider": geoReader.Provider(),
			"path":     geoReader.DatabasePath(),
		}).Info("GeoIP database loaded")
	}

	newHelper := func(ctx context.Context) (*directory.Helper, error) {
		st, err := repo.GetStore(ctx)
		if err != nil {
			return nil, err
		}
		locale, _, err := scopeReader.GetValue(ctx, directory.ConfigPathDefaultLocale, scope.StoreScope, st.ScopeID())
		if err != nil {
			return nil, err
		}
		return directory.NewHelper(directory.Deps{
			Config:    scopeReader,
			Cache:     configCache,
			Countries: store.NewCountryCollection(db, scopeReader),
			Regions:   store.NewRegionFactory(db, locale),
			Encoder:   directory.StdEncoder{},
			Stores:    store.Pinned{Store: st},
			Rates:     repo,
			Logger:    logger,
		}), nil
	}

	directoryHandler := handlers.NewDirectoryHandler(newHelper, locator, scopeReader.Invalidate, logger, handlerMetrics)

	// === HTTP Server ===
	router := server.SetupServiceRouter(logger, serviceName, healthChecker, metricsCollector)
	directoryHandler.Register(router, serviceToken)

	serverConfig := server.DefaultConfig(serviceName, "18020")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}

func loadDefaults() (scopeconfig.Defaults, error) {
	if path := config.GetEnv("DIRECTORY_DEFAULTS_FILE", ""); path != "" {
		return scopeconfig.LoadDefaultsFile(path)
	}
	return scopeconfig.LoadDefaults()
}

func cacheHooks(events *prometheus.CounterVec, name string) cache.MetricsHooks {
	return cache.MetricsHooks{
		OnHit:   func(string) { events.WithLabelValues(name, "hit").Inc() },
		OnMiss:  func(string) { events.WithLabelValues(name, "miss").Inc() },
		OnStale: func(string) { events.WithLabelValues(name, "stale").Inc() },
		OnStore: func(_ string, ok bool) {
			if ok {
				events.WithLabelValues(name, "store").Inc()
				return
			}
			events.WithLabelValues(name, "store_negative").Inc()
		},
	}
}
