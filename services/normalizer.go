package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gorm.io/datatypes"

	"ci-mapping/models"
	"ci-mapping/providers/mag"
)

// Batch enthält alle relationalen Datensätze, die aus einer Menge von Entities entstehen.
type Batch struct {
	Papers             []models.Paper
	Journals           []models.Journal
	Conferences        []models.Conference
	Authors            []models.Author
	PaperAuthors       []models.PaperAuthor
	FieldsOfStudy      []models.FieldOfStudy
	PaperFieldsOfStudy []models.PaperFieldsOfStudy
	Affiliations       []models.Affiliation
	AuthorAffiliations []models.AuthorAffiliation

	// Quarantined enthält Entities mit unbekannten Codes. Sie werden nicht geschrieben.
	Quarantined []Quarantined
}

// Quarantined ist ein zurückgehaltenes Entity samt Grund.
type Quarantined struct {
	PaperID int64
	Err     error
}

// ParsePaper bildet die Paper-Felder ab. Unbekannte Codes ergeben *models.UnknownCodeError.
func ParsePaper(e *mag.Entity, paperID int64) (models.Paper, error) {
	p := models.Paper{
		ID:        paperID,
		Title:     e.Title,
		Year:      e.Year,
		Date:      e.Date,
		Citations: e.CitationCount,
		Publisher: e.Publisher,
		Abstract:  RebuildAbstract(e.InvertedAbstract),
	}
	switch {
	case e.LogProb != nil:
		p.Prob = *e.LogProb
	case e.Prob != nil && *e.Prob > 0:
		p.Prob = math.Log(*e.Prob)
	}
	if e.DOI != "" {
		doi := e.DOI
		p.DOI = &doi
	}
	if len(e.References) > 0 {
		refs, err := json.Marshal(e.References)
		if err != nil {
			return p, err
		}
		p.References = datatypes.JSON(refs)
	}

	var err error
	if p.PublicationType, err = models.PublicationType(e.PublicationType); err != nil {
		return p, fmt.Errorf("paper %d: %w", paperID, err)
	}
	if p.BibtexDocType, err = models.BibtexDocType(e.BibtexDocType); err != nil {
		return p, fmt.Errorf("paper %d: %w", paperID, err)
	}
	return p, nil
}

// ParseJournal gibt nil zurück, wenn das Paper keine Zeitschrift mit JId hat.
func ParseJournal(e *mag.Entity, paperID int64) *models.Journal {
	if e.Journal == nil || e.Journal.JournalID == 0 {
		return nil
	}
	return &models.Journal{PaperID: paperID, ID: e.Journal.JournalID, JournalName: e.Journal.JournalName}
}

// ParseConference gibt nil zurück, wenn das Paper keine Konferenz mit CId hat.
func ParseConference(e *mag.Entity, paperID int64) *models.Conference {
	if e.Conference == nil || e.Conference.ConferenceID == 0 {
		return nil
	}
	return &models.Conference{PaperID: paperID, ID: e.Conference.ConferenceID, ConferenceName: e.Conference.ConferenceName}
}

// ParseAuthors liefert die Autoren und ihre Position im Paper.
func ParseAuthors(e *mag.Entity, paperID int64) ([]models.Author, []models.PaperAuthor) {
	authors := make([]models.Author, 0, len(e.Authors))
	links := make([]models.PaperAuthor, 0, len(e.Authors))
	for i, a := range e.Authors {
		name := a.DisplayName
		if name == "" {
			name = a.Name
		}
		order := a.Sequence
		if order <= 0 {
			order = i + 1
		}
		authors = append(authors, models.Author{ID: a.AuthorID, Name: name})
		links = append(links, models.PaperAuthor{PaperID: paperID, AuthorID: a.AuthorID, Order: order})
	}
	return authors, links
}

// ParseFieldsOfStudy liefert die Fields of Study und die Zuordnung zum Paper.
func ParseFieldsOfStudy(e *mag.Entity, paperID int64) ([]models.FieldOfStudy, []models.PaperFieldsOfStudy) {
	fos := make([]models.FieldOfStudy, 0, len(e.Fields))
	links := make([]models.PaperFieldsOfStudy, 0, len(e.Fields))
	for _, f := range e.Fields {
		name := f.DisplayName
		if name == "" {
			name = f.Name
		}
		fos = append(fos, models.FieldOfStudy{ID: f.ID, Name: name, NormName: f.Name})
		links = append(links, models.PaperFieldsOfStudy{PaperID: paperID, FieldOfStudyID: f.ID})
	}
	return fos, links
}

// ParseAffiliations berücksichtigt nur Autoren mit gesetzter AfId.
func ParseAffiliations(e *mag.Entity, paperID int64) ([]models.Affiliation, []models.AuthorAffiliation) {
	var (
		affs  []models.Affiliation
		links []models.AuthorAffiliation
	)
	for _, a := range e.Authors {
		if a.AffiliationID == nil {
			continue
		}
		name := a.AffiliationName
		if name == "" {
			name = a.DisplayAffName
		}
		affs = append(affs, models.Affiliation{ID: *a.AffiliationID, Affiliation: name})
		links = append(links, models.AuthorAffiliation{PaperID: paperID, AuthorID: a.AuthorID, AffiliationID: *a.AffiliationID})
	}
	return affs, links
}

// NormalizeBatch wendet alle Parser auf die Entities an und entfernt Duplikate innerhalb des Batches.
// Entities mit unbekanntem Pt- oder BT-Code landen in Quarantined, alle anderen Fehler brechen ab.
// Der Abgleich mit bereits gespeicherten Schlüsseln passiert beim Schreiben.
func NormalizeBatch(entities []mag.Entity) (*Batch, error) {
	b := &Batch{}
	for i := range entities {
		e := &entities[i]
		paper, err := ParsePaper(e, e.ID)
		var codeErr *models.UnknownCodeError
		if errors.As(err, &codeErr) {
			b.Quarantined = append(b.Quarantined, Quarantined{PaperID: e.ID, Err: err})
			continue
		}
		if err != nil {
			return nil, err
		}
		b.Papers = append(b.Papers, paper)

		if j := ParseJournal(e, e.ID); j != nil {
			b.Journals = append(b.Journals, *j)
		}
		if c := ParseConference(e, e.ID); c != nil {
			b.Conferences = append(b.Conferences, *c)
		}

		authors, paperAuthors := ParseAuthors(e, e.ID)
		b.Authors = append(b.Authors, authors...)
		b.PaperAuthors = append(b.PaperAuthors, paperAuthors...)

		fos, paperFos := ParseFieldsOfStudy(e, e.ID)
		b.FieldsOfStudy = append(b.FieldsOfStudy, fos...)
		b.PaperFieldsOfStudy = append(b.PaperFieldsOfStudy, paperFos...)

		affs, authorAffs := ParseAffiliations(e, e.ID)
		b.Affiliations = append(b.Affiliations, affs...)
		b.AuthorAffiliations = append(b.AuthorAffiliations, authorAffs...)
	}

	b.Papers = UniqueByKey(b.Papers, func(p models.Paper) int64 { return p.ID })
	b.Journals = Dedupe(b.Journals, func(j models.Journal) int64 { return j.PaperID }, nil)
	b.Conferences = Dedupe(b.Conferences, func(c models.Conference) int64 { return c.PaperID }, nil)
	b.Authors = Dedupe(b.Authors, func(a models.Author) int64 { return a.ID }, nil)
	b.PaperAuthors = Dedupe(b.PaperAuthors, paperAuthorKey, nil)
	b.FieldsOfStudy = Dedupe(b.FieldsOfStudy, func(f models.FieldOfStudy) int64 { return f.ID }, nil)
	b.PaperFieldsOfStudy = UniqueRecords(b.PaperFieldsOfStudy)
	b.Affiliations = Dedupe(b.Affiliations, func(a models.Affiliation) int64 { return a.ID }, nil)
	b.AuthorAffiliations = UniqueRecords(b.AuthorAffiliations)
	return b, nil
}

func paperAuthorKey(pa models.PaperAuthor) [2]int64 {
	return [2]int64{pa.PaperID, pa.AuthorID}
}
