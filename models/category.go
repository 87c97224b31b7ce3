package models

// Category ist ein Eintrag der Kategorie-Taxonomie (Code -> Name).
type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Code string `json:"code" gorm:"uniqueIndex;not null"`
	Name string `json:"name" gorm:"not null"`
}
