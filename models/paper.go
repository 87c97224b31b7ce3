package models

import (
	"time"
)

// CategoryPair bindet einen Kategorie-Code an seinen aufgelösten Namen.
// Die beiden Listen im Paper werden ausschließlich über Paare befüllt,
// damit sie strukturell gleich lang bleiben.
type CategoryPair struct {
	Code string
	Name string
}

// Paper repräsentiert eine auf arXiv entdeckte Veröffentlichung.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ArxivID  string `json:"arxiv_id" gorm:"column:arxiv_id;uniqueIndex;not null"`
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty" gorm:"type:text"`

	Authors        []string `json:"authors" gorm:"serializer:json"`
	Categories     []string `json:"categories" gorm:"serializer:json"`
	CategoriesName []string `json:"categories_name" gorm:"serializer:json"`

	PublishedDate time.Time `json:"published_date" gorm:"index"`
	UpdatedDate   time.Time `json:"updated_date"`

	PDFURL      string `json:"pdf_url,omitempty"`
	AbstractURL string `json:"abstract_url,omitempty"`

	ExtractedAt time.Time `json:"extracted_at"`
}

// SetCategories befüllt beide Kategorie-Listen aus Paaren.
func (p *Paper) SetCategories(pairs []CategoryPair) {
	p.Categories = make([]string, 0, len(pairs))
	p.CategoriesName = make([]string, 0, len(pairs))
	for _, pair := range pairs {
		p.Categories = append(p.Categories, pair.Code)
		p.CategoriesName = append(p.CategoriesName, pair.Name)
	}
}
