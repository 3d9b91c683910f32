package services

import (
	"go.uber.org/zap"

	"ci-mapping/config"
	"ci-mapping/providers/mag"
	"ci-mapping/providers/places"
	"ci-mapping/providers/unpaywall"
	"ci-mapping/storage"
)

// NewMAGFlow verdrahtet MAG-Client, Seitenablage und die optionalen Dienste (S3, Places, Unpaywall) aus der Konfiguration.
func NewMAGFlow(cfg *config.Config, store *storage.Store, logger *zap.Logger, metrics *Metrics) (*MAGFlow, error) {
	pages, err := storage.NewPageStore(cfg.StorePath, cfg.StorePrefix, logger.With(zap.String("component", "pages")))
	if err != nil {
		return nil, err
	}
	if cfg.S3Enabled() {
		client, err := storage.NewS3Client(cfg)
		if err != nil {
			return nil, err
		}
		pages.Mirror = &storage.S3Mirror{Client: client, Bucket: cfg.S3Bucket, Prefix: cfg.StorePrefix, Logger: logger}
		logger.Info("S3-Spiegel für Rohdaten aktiv", zap.String("bucket", cfg.S3Bucket))
	}

	client := mag.NewClient(cfg, logger.With(zap.String("provider", "mag")))
	flow := &MAGFlow{
		Config:     cfg,
		Store:      store,
		Pages:      pages,
		Fetcher:    NewPagedFetcher(cfg, client, logger.With(zap.String("component", "fetcher")), metrics),
		Levels:     client,
		Classifier: NewClassifier(cfg),
		Logger:     logger,
		Metrics:    metrics,
	}
	if cfg.GoogleAPIKey != "" {
		flow.Geocoder = places.NewClient(cfg, logger.With(zap.String("provider", "places")))
	} else {
		logger.Warn("GOOGLE_KEY fehlt, Geocoding wird übersprungen")
	}
	if cfg.UnpaywallEmail != "" {
		flow.OA = unpaywall.NewClient(cfg, logger.With(zap.String("provider", "unpaywall")))
	}
	return flow, nil
}
