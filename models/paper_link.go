package models

// PaperLink hält das Unpaywall-Ergebnis für die DOI eines Papers.
// Auch Papers ohne Open-Access-Fassung bekommen eine Zeile, damit sie nicht erneut abgefragt werden.
type PaperLink struct {
	PaperID  int64  `json:"paper_id" gorm:"primaryKey;autoIncrement:false"`
	DOI      string `json:"doi" gorm:"size:200"`
	IsOA     bool   `json:"is_oa"`
	URL      string `json:"url,omitempty" gorm:"type:text"`
	PDFURL   string `json:"pdf_url,omitempty" gorm:"column:pdf_url;type:text"`
	HostType string `json:"host_type,omitempty"`
	License  string `json:"license,omitempty"`
}

func (PaperLink) TableName() string { return "mag_paper_oa_links" }
