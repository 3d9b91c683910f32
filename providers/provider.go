package providers

import (
	"context"

	"ci-mapping/models"
	"ci-mapping/providers/mag"
)

// EntitySource liefert eine Seite von Entities für einen Ausdruck. Implementiert von mag.Client.
type EntitySource interface {
	Evaluate(ctx context.Context, expr string, attributes []string, count, offset int) ([]mag.Entity, error)
}

// FieldLevelSource liefert die Hierarchie-Ebenen von Fields of Study.
type FieldLevelSource interface {
	FieldLevels(ctx context.Context, ids []int64) (map[int64]int, error)
}

// OALocator sucht den Open-Access-Fundort zu einer DOI.
// Unbekannte DOIs werden als unpaywall.ErrNotFound gemeldet.
type OALocator interface {
	Lookup(ctx context.Context, paperID int64, doi string) (*models.PaperLink, error)
}

// Geocoder löst den Namen einer Affiliation in einen Ort auf.
// Kein Treffer wird als places.ErrNoMatch gemeldet.
type Geocoder interface {
	Geocode(ctx context.Context, affiliationID int64, name string) (*models.AffiliationLocation, error)
}
