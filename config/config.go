package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	ArxivBaseURL  string `envconfig:"ARXIV_BASE_URL" default:"http://export.arxiv.org/api/query"`
	ArxivPageSize int    `envconfig:"ARXIV_PAGE_SIZE" default:"200"`
	ArxivMaxPages int    `envconfig:"ARXIV_MAX_PAGES" default:"10"`
	// Kommagetrennte Liste der abzufragenden arXiv-Kategorien.
	ArxivCategories string `envconfig:"ARXIV_CATEGORIES" default:"cs.AI,cs.LG,cs.CV,cs.CL,cs.NE,stat.ML,cs.RO,cs.IR"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash-lite"`

	// Rate-Budgets für den Summarization-Service (Free Tier).
	GenRequestsPerMinute int `envconfig:"GEN_REQUESTS_PER_MINUTE" default:"15"`
	GenRequestsPerDay    int `envconfig:"GEN_REQUESTS_PER_DAY" default:"1000"`

	SummaryLimit    int `envconfig:"SUMMARY_LIMIT" default:"5"`
	SummaryMaxPages int `envconfig:"SUMMARY_MAX_PAGES" default:"8"`
	BackfillBatch   int `envconfig:"BACKFILL_BATCH_SIZE" default:"50"`
	FetchMaxRetries int `envconfig:"FETCH_MAX_RETRIES" default:"3"`
	DocumentTimeout int `envconfig:"DOCUMENT_TIMEOUT_SECONDS" default:"60"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 9 * * *"`

	// Optionale PDF-Archivierung nach S3; leer lassen, um sie zu deaktivieren.
	S3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	S3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	S3URL    string `envconfig:"ARCHIVE_S3_URL"`
	S3Region string `envconfig:"ARCHIVE_S3_REGION"`
	S3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Categories gibt die konfigurierten Kategorie-Codes als Slice zurück.
func (c *Config) Categories() []string {
	var out []string
	for _, cat := range strings.Split(c.ArxivCategories, ",") {
		if cat = strings.TrimSpace(cat); cat != "" {
			out = append(out, cat)
		}
	}
	return out
}

// ArchiveEnabled meldet, ob die S3-Archivierung konfiguriert ist.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != "" && c.S3URL != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
