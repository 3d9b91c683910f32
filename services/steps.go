package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ci-mapping/config"
	"ci-mapping/models"
	"ci-mapping/providers"
	"ci-mapping/providers/mag"
	"ci-mapping/providers/places"
	"ci-mapping/providers/unpaywall"
	"ci-mapping/storage"
)

// Namen der Pipeline-Schritte.
const (
	StepStart           = "start"
	StepCollect         = "collect"
	StepParse           = "parse"
	StepEnrichFos       = "enrich-fos-metadata"
	StepClassifyCohorts = "classify-cohorts"
	StepOpenAccess      = "tag-open-access"
	StepGeocode         = "geocode-affiliations"
	StepOALinks         = "lookup-oa-links"
	StepAffiliationType = "tag-affiliation-type"
	StepEnd             = "end"
)

// MAGFlow enthält die Abhängigkeiten der Schritte. Levels, Geocoder und OA sind optional.
type MAGFlow struct {
	Config     *config.Config
	Store      *storage.Store
	Pages      *storage.PageStore
	Fetcher    *PagedFetcher
	Levels     providers.FieldLevelSource
	Geocoder   providers.Geocoder
	OA         providers.OALocator
	Classifier Classifier
	Logger     *zap.Logger
	Metrics    *Metrics
}

// NewClassifier wählt die Kohorten-Einteilung anhand von COHORT_MODE.
func NewClassifier(cfg *config.Config) Classifier {
	if cfg.CohortMode == "core" {
		return CoreControl{Reference: NewFosSet(cfg.CoreFos...), In: cfg.CoreLabel, Out: cfg.ControlLabel}
	}
	return CohortGroups{A: NewFosSet(cfg.CIFos...), B: NewFosSet(cfg.AIFos...), Labels: DefaultGroupLabels()}
}

// Steps gibt den Schrittgraphen zurück. tag-open-access, geocode-affiliations und lookup-oa-links
// schreiben in getrennte Tabellen und laufen nebeneinander.
func (f *MAGFlow) Steps() []Step {
	return []Step{
		{Name: StepStart, Run: f.start},
		{Name: StepCollect, DependsOn: []string{StepStart}, Run: f.collect},
		{Name: StepParse, DependsOn: []string{StepCollect}, Run: f.parse},
		{Name: StepEnrichFos, DependsOn: []string{StepParse}, Run: f.enrichFosMetadata},
		{Name: StepClassifyCohorts, DependsOn: []string{StepEnrichFos}, Run: f.classifyCohorts},
		{Name: StepOpenAccess, DependsOn: []string{StepClassifyCohorts}, Run: f.tagOpenAccess},
		{Name: StepGeocode, DependsOn: []string{StepClassifyCohorts}, Run: f.geocodeAffiliations},
		{Name: StepOALinks, DependsOn: []string{StepClassifyCohorts}, Run: f.lookupOALinks},
		{Name: StepAffiliationType, DependsOn: []string{StepOpenAccess, StepGeocode}, Run: f.tagAffiliationType},
		{Name: StepEnd, DependsOn: []string{StepAffiliationType, StepOALinks}, Run: f.end},
	}
}

// Pipeline baut die Pipeline aus den Schritten.
func (f *MAGFlow) Pipeline() (*Pipeline, error) {
	return NewPipeline(f.Logger, f.Metrics, f.Steps()...)
}

func (f *MAGFlow) start(ctx context.Context) error {
	return f.Store.Migrate()
}

// Expressions erzeugt die Abfrageausdrücke, bei gesetztem Zeitraum einen pro Zeitfenster.
func (f *MAGFlow) Expressions() ([]string, error) {
	cfg := f.Config
	if len(cfg.MAGQueryValues) == 0 {
		return nil, errors.New("MAG_QUERY_VALUES is empty")
	}
	if !cfg.DateWindowed() {
		expr, err := mag.BuildCompositeExpr(cfg.MAGQueryValues, cfg.MAGEntityName, nil)
		if err != nil {
			return nil, fmt.Errorf("MAG_QUERY_VALUES: %w", err)
		}
		return []string{expr}, nil
	}

	start, err := mag.ParseDate(cfg.MAGStartDate)
	if err != nil {
		return nil, fmt.Errorf("MAG_START_DATE: %w", err)
	}
	end, err := mag.ParseDate(cfg.MAGEndDate)
	if err != nil {
		return nil, fmt.Errorf("MAG_END_DATE: %w", err)
	}
	windows := mag.DateWindows(start, end, mag.TotalIntervals(start, end, cfg.MAGIntervalsPerYear))
	if len(windows) == 0 {
		return nil, fmt.Errorf("empty date range %s to %s", cfg.MAGStartDate, cfg.MAGEndDate)
	}
	exprs := make([]string, 0, len(windows))
	for _, w := range windows {
		expr, err := mag.BuildCompositeExpr(cfg.MAGQueryValues, cfg.MAGEntityName, &w)
		if err != nil {
			return nil, fmt.Errorf("MAG_QUERY_VALUES: %w", err)
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

func (f *MAGFlow) collect(ctx context.Context) error {
	exprs, err := f.Expressions()
	if err != nil {
		return err
	}
	var pages, stored int
	for i, expr := range exprs {
		f.Logger.Info("Starte Sammlung", zap.Int("query", i), zap.String("expr", expr))
		for page, err := range f.Fetcher.Pages(ctx, expr, f.Config.MAGMetadata) {
			if err != nil {
				return fmt.Errorf("fetch offset %d: %w", page.Offset, err)
			}
			pages++
			if len(page.Entities) == 0 {
				continue
			}
			name, err := f.Pages.Write(ctx, page.Entities)
			if err != nil {
				return err
			}
			stored += len(page.Entities)
			f.Logger.Info("Ergebnisse gespeichert", zap.String("file", name), zap.Int("count", len(page.Entities)))
		}
	}
	f.Logger.Info("Sammlung abgeschlossen", zap.Int("pages", pages), zap.Int("stored", stored))
	return nil
}

func (f *MAGFlow) parse(ctx context.Context) error {
	entities, err := f.Pages.ReadAll()
	if err != nil {
		return err
	}
	entities = UniqueByKey(entities, func(e mag.Entity) int64 { return e.ID })

	return f.Store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := storage.ExistingKeys[int64](tx, &models.Paper{}, "id")
		if err != nil {
			return err
		}
		entities = ExcludeExisting(entities, func(e mag.Entity) int64 { return e.ID }, existing)
		f.Logger.Info("Neue Papers nach Abgleich", zap.Int("count", len(entities)))

		b, err := NormalizeBatch(entities)
		if err != nil {
			return err
		}
		for _, q := range b.Quarantined {
			f.Logger.Warn("Paper mit unbekanntem Code zurückgehalten", zap.Int64("paper_id", q.PaperID), zap.Error(q.Err))
		}
		if len(b.Quarantined) > 0 {
			f.Logger.Warn("Papers in Quarantäne", zap.Int("count", len(b.Quarantined)))
			f.Metrics.dropped("mag_papers", "unknown_code", len(b.Quarantined))
		}
		return f.writeBatch(tx, b)
	})
}

func (f *MAGFlow) writeBatch(tx *gorm.DB, b *Batch) error {
	log, m := f.Logger, f.Metrics
	if _, err := insertNew(tx, log, m, "mag_papers", b.Papers, "id", func(p models.Paper) int64 { return p.ID }); err != nil {
		return err
	}
	if _, err := insertNew(tx, log, m, "mag_paper_journal", b.Journals, "paper_id", func(j models.Journal) int64 { return j.PaperID }); err != nil {
		return err
	}
	if _, err := insertNew(tx, log, m, "mag_paper_conferences", b.Conferences, "paper_id", func(c models.Conference) int64 { return c.PaperID }); err != nil {
		return err
	}
	if _, err := insertNew(tx, log, m, "mag_authors", b.Authors, "id", func(a models.Author) int64 { return a.ID }); err != nil {
		return err
	}
	if _, err := insertNew(tx, log, m, "mag_fields_of_study", b.FieldsOfStudy, "id", func(fs models.FieldOfStudy) int64 { return fs.ID }); err != nil {
		return err
	}
	if _, err := insertNew(tx, log, m, "mag_affiliation", b.Affiliations, "id", func(a models.Affiliation) int64 { return a.ID }); err != nil {
		return err
	}
	if _, err := insertLinks(tx, log, m, "mag_paper_authors", b.PaperAuthors); err != nil {
		return err
	}
	if _, err := insertLinks(tx, log, m, "mag_paper_fields_of_study", b.PaperFieldsOfStudy); err != nil {
		return err
	}
	_, err := insertLinks(tx, log, m, "mag_author_affiliation", b.AuthorAffiliations)
	return err
}

func (f *MAGFlow) enrichFosMetadata(ctx context.Context) error {
	if f.Levels == nil {
		f.Logger.Warn("Keine Quelle für Field-of-Study-Ebenen konfiguriert, Schritt übersprungen")
		return nil
	}
	db := f.Store.DB.WithContext(ctx)
	var ids []int64
	err := db.Model(&models.FieldOfStudy{}).
		Where("NOT EXISTS (SELECT 1 FROM mag_field_of_study_metadata m WHERE m.id = mag_fields_of_study.id)").
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	f.Logger.Info("Fields of Study ohne Metadaten", zap.Int("count", len(ids)))
	if len(ids) == 0 {
		return nil
	}

	levels, err := f.Levels.FieldLevels(ctx, ids)
	if err != nil {
		return err
	}
	rows := make([]models.FosMetadata, 0, len(levels))
	for _, id := range ids {
		if level, ok := levels[id]; ok {
			rows = append(rows, models.FosMetadata{ID: id, Level: level})
		}
	}
	return db.Transaction(func(tx *gorm.DB) error {
		_, err := insertNew(tx, f.Logger, f.Metrics, "mag_field_of_study_metadata", rows, "id", func(m models.FosMetadata) int64 { return m.ID })
		return err
	})
}

func (f *MAGFlow) classifyCohorts(ctx context.Context) error {
	return f.Store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counts, err := LabelPapers(tx, f.Classifier)
		if err != nil {
			return err
		}
		for label, n := range counts {
			f.Logger.Info("Kohorte zugeordnet", zap.String("type", label), zap.Int("papers", n))
		}
		return nil
	})
}

// LabelPapers löscht alle Kohorten und ordnet jedem Paper genau ein Label zu.
// Papers ohne Fields of Study bekommen das Label für "kein Treffer".
func LabelPapers(tx *gorm.DB, classifier Classifier) (map[string]int, error) {
	if _, err := storage.DeleteAll(tx, &models.CoreControlGroup{}); err != nil {
		return nil, err
	}

	var ids []int64
	if err := tx.Model(&models.Paper{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	fos, err := paperFosNames(tx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	rows := make([]models.CoreControlGroup, 0, len(ids))
	for _, id := range ids {
		label := classifier.Label(fos[id])
		rows = append(rows, models.CoreControlGroup{ID: id, Type: label})
		counts[label]++
	}
	if err := storage.Insert(tx, rows); err != nil {
		return nil, err
	}
	return counts, nil
}

func paperFosNames(tx *gorm.DB) (map[int64][]string, error) {
	var rows []struct {
		PaperID  int64
		NormName string
	}
	err := tx.Table("mag_paper_fields_of_study AS p").
		Select("p.paper_id, f.norm_name").
		Joins("JOIN mag_fields_of_study f ON f.id = p.field_of_study_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]string)
	for _, r := range rows {
		out[r.PaperID] = append(out[r.PaperID], r.NormName)
	}
	return out, nil
}

func (f *MAGFlow) tagOpenAccess(ctx context.Context) error {
	seeds := make(map[string]struct{}, len(f.Config.OpenAccessJournals))
	for _, j := range f.Config.OpenAccessJournals {
		seeds[strings.ToLower(strings.TrimSpace(j))] = struct{}{}
	}
	return f.Store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := storage.DeleteAll(tx, &models.OpenAccess{}); err != nil {
			return err
		}
		var journals []models.Journal
		if err := tx.Model(&models.Journal{}).Distinct("id", "journal_name").Find(&journals).Error; err != nil {
			return err
		}
		journals = UniqueByKey(journals, func(j models.Journal) int64 { return j.ID })

		rows := make([]models.OpenAccess, 0, len(journals))
		open := 0
		for _, j := range journals {
			row := models.OpenAccess{ID: j.ID}
			if _, ok := seeds[strings.ToLower(j.JournalName)]; ok {
				row.OpenAccess = 1
				open++
			}
			rows = append(rows, row)
		}
		f.Logger.Info("Zeitschriften markiert", zap.Int("journals", len(rows)), zap.Int("open_access", open))
		return storage.Insert(tx, rows)
	})
}

func (f *MAGFlow) geocodeAffiliations(ctx context.Context) error {
	if f.Geocoder == nil {
		f.Logger.Warn("Kein Geocoder konfiguriert, Schritt übersprungen")
		return nil
	}
	db := f.Store.DB.WithContext(ctx)
	var affs []models.Affiliation
	err := db.Where("NOT EXISTS (SELECT 1 FROM geocoded_places g WHERE g.affiliation_id = mag_affiliation.id)").
		Find(&affs).Error
	if err != nil {
		return err
	}
	f.Logger.Info("Affiliations ohne Geocoding", zap.Int("count", len(affs)))

	var found, missed int
	for _, a := range affs {
		loc, err := f.Geocoder.Geocode(ctx, a.ID, a.Affiliation)
		if errors.Is(err, places.ErrNoMatch) {
			missed++
			continue
		}
		if err != nil {
			return fmt.Errorf("geocode affiliation %d: %w", a.ID, err)
		}
		if _, err := storage.InsertIgnore(db, []models.AffiliationLocation{*loc}); err != nil {
			return err
		}
		found++
	}
	f.Metrics.records("geocoded_places", found, 0)
	f.Metrics.dropped("geocoded_places", "no_match", missed)
	f.Logger.Info("Geocoding abgeschlossen", zap.Int("found", found), zap.Int("no_match", missed))
	return nil
}

func (f *MAGFlow) lookupOALinks(ctx context.Context) error {
	if f.OA == nil {
		f.Logger.Warn("Kein Unpaywall-Client konfiguriert, Schritt übersprungen")
		return nil
	}
	db := f.Store.DB.WithContext(ctx)
	var papers []models.Paper
	err := db.Select("id", "doi").
		Where("doi IS NOT NULL AND doi <> ''").
		Where("NOT EXISTS (SELECT 1 FROM mag_paper_oa_links l WHERE l.paper_id = mag_papers.id)").
		Order("id").
		Find(&papers).Error
	if err != nil {
		return err
	}
	f.Logger.Info("Papers ohne Unpaywall-Abfrage", zap.Int("count", len(papers)))

	var found, missed, open int
	for _, p := range papers {
		link, err := f.OA.Lookup(ctx, p.ID, *p.DOI)
		if errors.Is(err, unpaywall.ErrNotFound) {
			missed++
			continue
		}
		if err != nil {
			return fmt.Errorf("unpaywall paper %d: %w", p.ID, err)
		}
		if _, err := storage.InsertIgnore(db, []models.PaperLink{*link}); err != nil {
			return err
		}
		found++
		if link.IsOA {
			open++
		}
	}
	f.Metrics.records("mag_paper_oa_links", found, 0)
	f.Metrics.dropped("mag_paper_oa_links", "no_match", missed)
	f.Logger.Info("Unpaywall-Abfrage abgeschlossen", zap.Int("found", found), zap.Int("open_access", open), zap.Int("unknown", missed))
	return nil
}

func (f *MAGFlow) tagAffiliationType(ctx context.Context) error {
	seeds := make([]string, 0, len(f.Config.NonIndustryAffiliations))
	for _, s := range f.Config.NonIndustryAffiliations {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			seeds = append(seeds, s)
		}
	}
	return f.Store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := storage.DeleteAll(tx, &models.AffiliationType{}); err != nil {
			return err
		}
		var affs []models.Affiliation
		if err := tx.Find(&affs).Error; err != nil {
			return err
		}
		rows := make([]models.AffiliationType, 0, len(affs))
		nonIndustry := 0
		for _, a := range affs {
			row := models.AffiliationType{ID: a.ID}
			if isNonIndustry(a.Affiliation, seeds) {
				row.Type = 1
				nonIndustry++
			}
			rows = append(rows, row)
		}
		f.Logger.Info("Affiliations zugeordnet", zap.Int("affiliations", len(rows)), zap.Int("non_industry", nonIndustry))
		return storage.Insert(tx, rows)
	})
}

func isNonIndustry(name string, seeds []string) bool {
	name = strings.ToLower(name)
	for _, s := range seeds {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

func (f *MAGFlow) end(ctx context.Context) error {
	f.Logger.Info("Tasks completed.")
	return nil
}
