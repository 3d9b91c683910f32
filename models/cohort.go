package models

// Standard-Labels der drei Kohorten.
const (
	CohortAI   = "ai"
	CohortCI   = "ci"
	CohortAICI = "ai_ci"
)

// CoreControlGroup speichert die Kohorte eines Papers. Die Tabelle wird bei jedem Lauf neu aufgebaut.
type CoreControlGroup struct {
	ID   int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Type string `json:"type" gorm:"type:text;index"`
}

func (CoreControlGroup) TableName() string {
	return "core_control_group"
}
