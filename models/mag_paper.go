package models

import "gorm.io/datatypes"

// Paper repräsentiert ein MAG-Paper. Die ID wird von MAG vergeben und nie verändert.
type Paper struct {
	ID              int64          `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Prob            float64        `json:"prob"`
	Title           string         `json:"title" gorm:"type:text"`
	PublicationType *string        `json:"publication_type,omitempty" gorm:"type:text"`
	Year            int            `json:"year" gorm:"index"`
	Date            string         `json:"date"`
	Citations       int            `json:"citations"`
	References      datatypes.JSON `json:"references,omitempty"`
	DOI             *string        `json:"doi,omitempty" gorm:"column:doi;size:200"`
	Publisher       string         `json:"publisher,omitempty" gorm:"type:text"`
	BibtexDocType   *string        `json:"bibtex_doc_type,omitempty" gorm:"type:text"`
	Abstract        string         `json:"abstract,omitempty" gorm:"type:text"`
}

// TableName gibt explizit den Tabellennamen an.
func (Paper) TableName() string {
	return "mag_papers"
}

// Journal ist die Zeitschrift, in der ein Paper erschienen ist. Schlüssel ist die Paper-ID.
type Journal struct {
	PaperID     int64  `json:"paper_id" gorm:"primaryKey;autoIncrement:false"`
	ID          int64  `json:"id" gorm:"index"`
	JournalName string `json:"journal_name" gorm:"type:text"`
}

func (Journal) TableName() string {
	return "mag_paper_journal"
}

// Conference ist die Konferenz, auf der ein Paper erschienen ist.
type Conference struct {
	PaperID        int64  `json:"paper_id" gorm:"primaryKey;autoIncrement:false"`
	ID             int64  `json:"id" gorm:"index"`
	ConferenceName string `json:"conference_name" gorm:"type:text"`
}

func (Conference) TableName() string {
	return "mag_paper_conferences"
}

// OpenAccess markiert Zeitschriften als Open Access (1) oder nicht (0).
type OpenAccess struct {
	ID         int64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OpenAccess int   `json:"open_access"`
}

func (OpenAccess) TableName() string {
	return "open_access_journals"
}
