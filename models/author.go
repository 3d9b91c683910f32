package models

// Author enthält die Stammdaten eines Autors.
type Author struct {
	ID   int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name string `json:"name" gorm:"type:text"`
}

func (Author) TableName() string {
	return "mag_authors"
}

// PaperAuthor verknüpft Paper und Autor. Order ist die 1-basierte Position in der Autorenliste.
type PaperAuthor struct {
	PaperID  int64 `json:"paper_id" gorm:"primaryKey;autoIncrement:false"`
	AuthorID int64 `json:"author_id" gorm:"primaryKey;autoIncrement:false"`
	Order    int   `json:"order" gorm:"column:order"`
}

func (PaperAuthor) TableName() string {
	return "mag_paper_authors"
}
