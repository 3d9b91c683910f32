package models

// Affiliation ist eine Institution, der ein Autor zugeordnet ist.
type Affiliation struct {
	ID          int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Affiliation string `json:"affiliation" gorm:"type:text"`
}

func (Affiliation) TableName() string {
	return "mag_affiliation"
}

// AuthorAffiliation verknüpft Paper, Autor und Affiliation (ternäre Beziehung).
// Dasselbe Paar (Paper, Affiliation) kann über mehrere Autoren mehrfach vorkommen.
type AuthorAffiliation struct {
	PaperID       int64 `json:"paper_id" gorm:"primaryKey;autoIncrement:false"`
	AuthorID      int64 `json:"author_id" gorm:"primaryKey;autoIncrement:false"`
	AffiliationID int64 `json:"affiliation_id" gorm:"primaryKey;autoIncrement:false;index"`
}

func (AuthorAffiliation) TableName() string {
	return "mag_author_affiliation"
}

// AffiliationLocation speichert das Geocoding-Ergebnis einer Affiliation.
type AffiliationLocation struct {
	ID                       string  `json:"id" gorm:"primaryKey"`
	AffiliationID            int64   `json:"affiliation_id" gorm:"primaryKey;autoIncrement:false"`
	Lat                      float64 `json:"lat"`
	Lng                      float64 `json:"lng"`
	Address                  string  `json:"address" gorm:"type:text"`
	Name                     string  `json:"name" gorm:"type:text"`
	Types                    string  `json:"types" gorm:"type:text"`
	Website                  string  `json:"website" gorm:"type:text"`
	PostalTown               string  `json:"postal_town" gorm:"type:text"`
	AdministrativeAreaLevel2 string  `json:"administrative_area_level_2" gorm:"column:administrative_area_level_2;type:text"`
	AdministrativeAreaLevel1 string  `json:"administrative_area_level_1" gorm:"column:administrative_area_level_1;type:text"`
	Country                  string  `json:"country" gorm:"type:text;index"`
}

func (AffiliationLocation) TableName() string {
	return "geocoded_places"
}

// AffiliationType unterscheidet Industrie (0) und Nicht-Industrie (1).
type AffiliationType struct {
	ID   int64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Type int   `json:"type"`
}

func (AffiliationType) TableName() string {
	return "affiliation_type"
}
