package services

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"ci-mapping/config"
	"ci-mapping/providers"
	"ci-mapping/providers/mag"
)

// StopPolicy legt fest, wann die Paginierung endet.
type StopPolicy int

const (
	// StopOnShortPage beendet die Paginierung, sobald eine Seite weniger als PageSize Entities liefert.
	StopOnShortPage StopPolicy = iota
	// StopOnEmptyPage beendet die Paginierung erst bei einer leeren Seite.
	StopOnEmptyPage
)

// ParseStopPolicy übersetzt den Konfigurationswert ("short" oder "empty").
func ParseStopPolicy(s string) StopPolicy {
	if s == "empty" {
		return StopOnEmptyPage
	}
	return StopOnShortPage
}

// FetchedPage ist eine abgerufene Seite nach Anwendung des Pflichtfeld-Filters.
type FetchedPage struct {
	Offset   int
	RawCount int
	Entities []mag.Entity
}

// PagedFetcher blättert durch alle Ergebnisse eines Ausdrucks.
type PagedFetcher struct {
	Source       providers.EntitySource
	PageSize     int
	Policy       StopPolicy
	RequireField string
	MaxPages     int
	Logger       *zap.Logger
	Metrics      *Metrics
}

// NewPagedFetcher erstellt einen Fetcher mit den Werten aus der Konfiguration.
func NewPagedFetcher(cfg *config.Config, source providers.EntitySource, logger *zap.Logger, metrics *Metrics) *PagedFetcher {
	f := &PagedFetcher{
		Source:   source,
		PageSize: cfg.MAGPageSize,
		Policy:   ParseStopPolicy(cfg.MAGStopPolicy),
		MaxPages: cfg.MAGMaxPages,
		Logger:   logger,
		Metrics:  metrics,
	}
	if cfg.MAGWithDOI {
		f.RequireField = "DOI"
	}
	return f
}

// Pages ruft Seite für Seite ab, mit Offsets 0, PageSize, 2*PageSize usw.
// Ein Fehler wird einmal geliefert und beendet die Sequenz; es gibt keine Wiederholung.
func (f *PagedFetcher) Pages(ctx context.Context, expr string, attributes []string) iter.Seq2[FetchedPage, error] {
	return func(yield func(FetchedPage, error) bool) {
		log := f.Logger.With(zap.String("expr", expr))
		for page, offset := 0, 0; f.MaxPages <= 0 || page < f.MaxPages; page, offset = page+1, offset+f.PageSize {
			if err := ctx.Err(); err != nil {
				yield(FetchedPage{Offset: offset}, err)
				return
			}
			entities, err := f.Source.Evaluate(ctx, expr, attributes, f.PageSize, offset)
			if err != nil {
				log.Error("Abfrage der Seite fehlgeschlagen", zap.Int("offset", offset), zap.Error(err))
				yield(FetchedPage{Offset: offset}, err)
				return
			}
			f.Metrics.pageFetched()

			raw := len(entities)
			kept := f.filter(entities)
			log.Info("Seite abgerufen", zap.Int("offset", offset), zap.Int("raw", raw), zap.Int("kept", len(kept)))

			if raw == 0 {
				return
			}
			if !yield(FetchedPage{Offset: offset, RawCount: raw, Entities: kept}, nil) {
				return
			}
			if f.Policy == StopOnShortPage && raw < f.PageSize {
				return
			}
		}
		log.Warn("Maximale Seitenzahl erreicht", zap.Int("max_pages", f.MaxPages))
	}
}

// FetchAll liefert die Entities aller Seiten einzeln.
func (f *PagedFetcher) FetchAll(ctx context.Context, expr string, attributes []string) iter.Seq2[mag.Entity, error] {
	return func(yield func(mag.Entity, error) bool) {
		for page, err := range f.Pages(ctx, expr, attributes) {
			if err != nil {
				yield(mag.Entity{}, err)
				return
			}
			for _, e := range page.Entities {
				if !yield(e, nil) {
					return
				}
			}
		}
	}
}

func (f *PagedFetcher) filter(entities []mag.Entity) []mag.Entity {
	if f.RequireField == "" {
		return entities
	}
	kept := make([]mag.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Has(f.RequireField) {
			kept = append(kept, e)
		}
	}
	return kept
}
