package services

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"arxiv-digest/models"
)

// Taxonomy ist das run-gebundene Verzeichnis der Kategorie-Namen.
// Es wird einmal pro Lauf geladen und danach nicht mehr verändert;
// ohne Mapping degradiert Resolve zur Identität und wirft nie Fehler.
type Taxonomy struct {
	mapping map[string]string
}

// LoadTaxonomy lädt alle Kategorie-Zuordnungen aus dem Store. Ein
// Ladefehler führt zu einem leeren Verzeichnis, nicht zu einem Abbruch;
// die Übersetzung ist best-effort.
func LoadTaxonomy(db *gorm.DB, logger *zap.Logger) *Taxonomy {
	var rows []models.Category
	if err := db.Find(&rows).Error; err != nil {
		logger.Warn("Taxonomie konnte nicht geladen werden, Kategorie-Codes bleiben unübersetzt", zap.Error(err))
		return &Taxonomy{mapping: map[string]string{}}
	}

	mapping := make(map[string]string, len(rows))
	for _, row := range rows {
		mapping[row.Code] = row.Name
	}
	logger.Info("Taxonomie geladen", zap.Int("mappings", len(mapping)))
	return &Taxonomy{mapping: mapping}
}

// Resolve gibt den Namen zu einem Kategorie-Code zurück, oder den Code
// selbst, wenn kein Mapping existiert.
func (t *Taxonomy) Resolve(code string) string {
	if name, ok := t.mapping[code]; ok {
		return name
	}
	return code
}

// Size gibt die Anzahl der geladenen Zuordnungen zurück.
func (t *Taxonomy) Size() int {
	return len(t.mapping)
}
