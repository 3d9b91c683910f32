package models

// FieldOfStudy ist ein thematisches Schlagwort aus MAG.
type FieldOfStudy struct {
	ID       int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name     string `json:"name" gorm:"size:250"`
	NormName string `json:"norm_name" gorm:"size:250;index"`
}

func (FieldOfStudy) TableName() string {
	return "mag_fields_of_study"
}

// PaperFieldsOfStudy verknüpft Paper und Field of Study.
type PaperFieldsOfStudy struct {
	PaperID        int64 `json:"paper_id" gorm:"primaryKey;autoIncrement:false"`
	FieldOfStudyID int64 `json:"field_of_study_id" gorm:"primaryKey;autoIncrement:false;index"`
}

func (PaperFieldsOfStudy) TableName() string {
	return "mag_paper_fields_of_study"
}

// FosMetadata enthält die Ebene eines Field of Study in der MAG-Hierarchie.
type FosMetadata struct {
	ID    int64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Level int   `json:"level"`
}

func (FosMetadata) TableName() string {
	return "mag_field_of_study_metadata"
}
