package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ci-mapping/models"
	"ci-mapping/storage"
)

// CohortFosLists liefert die Field-of-Study-Namen je Paper, eingeschränkt auf die angegebenen Kohorten.
func CohortFosLists(db *gorm.DB, cohorts []string) ([][]string, error) {
	var rows []struct {
		PaperID  int64
		NormName string
	}
	q := db.Table("mag_paper_fields_of_study AS p").
		Select("p.paper_id, f.norm_name").
		Joins("JOIN mag_fields_of_study f ON f.id = p.field_of_study_id").
		Order("p.paper_id")
	if len(cohorts) > 0 {
		q = q.Joins("JOIN core_control_group c ON c.id = p.paper_id").Where("c.type IN ?", cohorts)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	var (
		out  [][]string
		last int64
	)
	for i, r := range rows {
		if i == 0 || r.PaperID != last {
			out = append(out, nil)
			last = r.PaperID
		}
		out[len(out)-1] = append(out[len(out)-1], r.NormName)
	}
	return out, nil
}

// CooccurrenceEdges berechnet die Kanten für die Kohorten, gefiltert nach Mindestgewicht.
func CooccurrenceEdges(db *gorm.DB, cohorts []string, minWeight int) ([]Edge, error) {
	lists, err := CohortFosLists(db, cohorts)
	if err != nil {
		return nil, err
	}
	return Edges(CooccurrenceGraph(lists), minWeight), nil
}

// ExportCooccurrence schreibt die Kanten unter dem Namen graph nach Neo4j.
func ExportCooccurrence(ctx context.Context, g *storage.GraphStore, graph string, edges []Edge) error {
	if g == nil {
		return errors.New("neo4j is not configured")
	}
	rows := make([]storage.GraphEdge, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, storage.GraphEdge{Source: e.Source, Target: e.Target, Weight: e.Weight})
	}
	return g.ReplaceCooccurrence(ctx, graph, rows)
}

// CohortCounts zählt die Papers je Kohorte.
func CohortCounts(db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Type  string
		Count int64
	}
	err := db.Model(&models.CoreControlGroup{}).Select("type, count(*) AS count").Group("type").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Type] = r.Count
	}
	return out, nil
}

// PaperView ist ein Paper mit seinen Autoren in Reihenfolge, Fields of Study und Kohorte.
type PaperView struct {
	models.Paper
	Authors       []AuthorView          `json:"authors"`
	FieldsOfStudy []models.FieldOfStudy `json:"fields_of_study"`
	Journal       *models.Journal       `json:"journal,omitempty"`
	Conference    *models.Conference    `json:"conference,omitempty"`
	OALink        *models.PaperLink     `json:"oa_link,omitempty"`
	Cohort        string                `json:"cohort,omitempty"`
}

// AuthorView ist ein Autor mit seiner Position im Paper.
type AuthorView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// LoadPaper lädt ein Paper mit allen Zuordnungen. Nicht gefunden ergibt gorm.ErrRecordNotFound.
func LoadPaper(db *gorm.DB, id int64) (*PaperView, error) {
	var v PaperView
	if err := db.First(&v.Paper, id).Error; err != nil {
		return nil, err
	}
	err := db.Table("mag_paper_authors AS pa").
		Select("a.id, a.name, pa.\"order\"").
		Joins("JOIN mag_authors a ON a.id = pa.author_id").
		Where("pa.paper_id = ?", id).
		Order("pa.\"order\"").
		Scan(&v.Authors).Error
	if err != nil {
		return nil, err
	}
	err = db.Table("mag_fields_of_study AS f").
		Select("f.*").
		Joins("JOIN mag_paper_fields_of_study p ON p.field_of_study_id = f.id").
		Where("p.paper_id = ?", id).
		Order("f.id").
		Scan(&v.FieldsOfStudy).Error
	if err != nil {
		return nil, err
	}

	var j models.Journal
	if err := db.Where("paper_id = ?", id).Limit(1).Find(&j).Error; err != nil {
		return nil, err
	} else if j.PaperID != 0 {
		v.Journal = &j
	}
	var c models.Conference
	if err := db.Where("paper_id = ?", id).Limit(1).Find(&c).Error; err != nil {
		return nil, err
	} else if c.PaperID != 0 {
		v.Conference = &c
	}
	var link models.PaperLink
	if err := db.Where("paper_id = ?", id).Limit(1).Find(&link).Error; err != nil {
		return nil, err
	} else if link.PaperID != 0 {
		v.OALink = &link
	}
	var cohort models.CoreControlGroup
	if err := db.Where("id = ?", id).Limit(1).Find(&cohort).Error; err != nil {
		return nil, err
	}
	v.Cohort = cohort.Type
	return &v, nil
}
