package models

import (
	"time"
)

// Verarbeitungsstatus eines Summary-Datensatzes.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Summary hält die generierten Mehr-Niveau-Texte zu genau einem Paper.
// Die Eindeutigkeit pro arxiv_id wird vom Store erzwungen; ein erneuter
// Versuch überschreibt eine fehlgeschlagene Zeile, statt eine zweite anzulegen.
type Summary struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ArxivID string `json:"arxiv_id" gorm:"column:arxiv_id;uniqueIndex;not null"`

	BeginnerTitle        string `json:"beginner_title"`
	IntermediateTitle    string `json:"intermediate_title"`
	BeginnerOverview     string `json:"beginner_overview" gorm:"type:text"`
	IntermediateOverview string `json:"intermediate_overview" gorm:"type:text"`
	BeginnerSummary      string `json:"beginner_summary" gorm:"type:text"`
	IntermediateSummary  string `json:"intermediate_summary" gorm:"type:text"`

	ProcessingStatus string `json:"processing_status" gorm:"index"`
	ErrorDetail      string `json:"error_detail,omitempty" gorm:"type:text"`
	Model            string `json:"model,omitempty"`

	// Link auf das archivierte PDF, falls die S3-Archivierung aktiv ist.
	ArchiveURL string `json:"archive_url,omitempty"`
}
