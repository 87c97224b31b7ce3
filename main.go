package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"arxiv-digest/config"
	"arxiv-digest/models"
	"arxiv-digest/providers/arxiv"
	"arxiv-digest/providers/gemini"
	"arxiv-digest/services"
	"arxiv-digest/storage"
)

var (
	papersInsertedCounter     prometheus.Counter
	papersDiscardedCounter    prometheus.Counter
	summariesCompletedCounter prometheus.Counter
	summariesFailedCounter    prometheus.Counter
	papersBackfilledCounter   prometheus.Counter
)

func init() {
	papersInsertedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papers_inserted_total",
		Help: "Total number of new papers added to the database.",
	})
	papersDiscardedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papers_discarded_total",
		Help: "Total number of entries discarded by the strict publish-date filter.",
	})
	summariesCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "summaries_completed_total",
		Help: "Total number of summaries generated successfully.",
	})
	summariesFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "summaries_failed_total",
		Help: "Total number of summary attempts that ended in a failed row.",
	})
	papersBackfilledCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papers_backfilled_total",
		Help: "Total number of papers whose category names were backfilled.",
	})
	prometheus.MustRegister(papersInsertedCounter, papersDiscardedCounter,
		summariesCompletedCounter, summariesFailedCounter, papersBackfilledCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Paper{}, &models.Summary{}, &models.Category{})

	seedDefaultCategories(db, logging)

	// Setup Services
	taxonomy := services.LoadTaxonomy(db, logging)
	fetcher := arxiv.NewFetcher(cfg, logging, taxonomy)
	etlService := services.NewETLService(cfg, db, logging, fetcher)

	var archiver services.Archiver
	if cfg.ArchiveEnabled() {
		archive, err := storage.NewArchive(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		archiver = archive
		logging.Info("PDF archival enabled", zap.String("bucket", cfg.S3Bucket))
	}

	var summaryService *services.SummaryService
	generator, err := gemini.NewClient(context.Background(), cfg, logging)
	if err != nil {
		logging.Warn("Summarization disabled", zap.Error(err))
	} else {
		budget := services.NewRateBudget(cfg.GenRequestsPerMinute, cfg.GenRequestsPerDay)
		summaryService = services.NewSummaryService(cfg, db, logging, generator, budget, archiver)
	}

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	setupPaperRoutes(router, db, logging)
	setupSummaryRoutes(router, db, logging)
	setupDigestRoutes(router, cfg, db, logging)
	setupCategoryRoutes(router, db, logging)
	setupRunRoutes(router, cfg, db, logging, etlService, summaryService)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled daily pipeline...")
		runPipeline(context.Background(), cfg, db, logging, etlService, summaryService)
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// runPipeline fährt den Tageslauf: ETL für gestern, danach Summarization
// und Backfill. Teilfehler brechen die Folgeschritte nicht ab.
func runPipeline(ctx context.Context, cfg *config.Config, db *gorm.DB, logging *zap.Logger, etlService *services.ETLService, summaryService *services.SummaryService) {
	report, err := etlService.Run(ctx, services.RunSpec{})
	if err != nil {
		logging.Error("Scheduled ETL failed", zap.Error(err))
	} else {
		papersInsertedCounter.Add(float64(report.Inserted))
		papersDiscardedCounter.Add(float64(report.Discarded))
	}

	if summaryService != nil {
		completed, failed, err := summaryService.ProcessPending(ctx, cfg.SummaryLimit)
		if err != nil {
			logging.Error("Scheduled summarization failed", zap.Error(err))
		} else {
			summariesCompletedCounter.Add(float64(completed))
			summariesFailedCounter.Add(float64(failed))
		}
	}

	backfill := services.NewBackfillService(db, logging, services.LoadTaxonomy(db, logging))
	updated, err := backfill.Run(ctx, cfg.BackfillBatch)
	if err != nil {
		logging.Error("Scheduled backfill failed", zap.Error(err))
	} else {
		papersBackfilledCounter.Add(float64(updated))
	}
	logging.Info("Scheduled daily pipeline completed")
}

func setupPaperRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/papers")

	// Einfacher GET-Endpunkt, um alle Paper abzurufen (ohne Filter)
	rg.GET("/", func(c *gin.Context) {
		var papers []models.Paper
		if err := db.Order("published_date desc").Find(&papers).Error; err != nil {
			log.Error("Database query for all papers failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	rg.GET("/:arxiv_id", func(c *gin.Context) {
		arxivID := c.Param("arxiv_id")
		var paper models.Paper
		if err := db.Where("arxiv_id = ?", arxivID).First(&paper).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				return
			}
			log.Error("DB error fetching paper", zap.String("arxiv_id", arxivID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	// Body-gesteuerter Endpunkt für komplexe Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type PaperQuery struct {
			ArxivID       string `json:"arxiv_id"`
			Category      string `json:"category"`       // Kategorie-Code, z.B. cs.LG
			PublishedDate string `json:"published_date"` // YYYY-MM-DD
			HasPDF        *bool  `json:"has_pdf"`
			HasSummary    *bool  `json:"has_summary"`
			Limit         int    `json:"limit"`
		}

		var req PaperQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Paper{})

		if req.ArxivID != "" {
			query = query.Where("arxiv_id = ?", req.ArxivID)
		}
		if req.Category != "" {
			// Kategorien liegen als JSON-Liste im Textfeld.
			query = query.Where("categories LIKE ?", "%\""+req.Category+"\"%")
		}
		if req.PublishedDate != "" {
			day, err := time.Parse("2006-01-02", req.PublishedDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "published_date must be YYYY-MM-DD"})
				return
			}
			query = query.Where("published_date >= ? AND published_date < ?", day, day.Add(24*time.Hour))
		}
		if req.HasPDF != nil {
			if *req.HasPDF {
				query = query.Where("pdf_url <> ''")
			} else {
				query = query.Where("pdf_url = ''")
			}
		}
		if req.HasSummary != nil {
			completed := db.Model(&models.Summary{}).
				Select("arxiv_id").
				Where("processing_status = ?", models.StatusCompleted)
			if *req.HasSummary {
				query = query.Where("arxiv_id IN (?)", completed)
			} else {
				query = query.Where("arxiv_id NOT IN (?)", completed)
			}
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var papers []models.Paper
		if err := query.Order("published_date desc").Find(&papers).Error; err != nil {
			log.Error("Database query for papers failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})
}

func setupSummaryRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/summaries")

	rg.GET("/:arxiv_id", func(c *gin.Context) {
		arxivID := c.Param("arxiv_id")
		var summary models.Summary
		if err := db.Where("arxiv_id = ?", arxivID).First(&summary).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "summary not found"})
				return
			}
			log.Error("DB error fetching summary", zap.String("arxiv_id", arxivID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	rg.POST("/query", func(c *gin.Context) {
		type SummaryQuery struct {
			ProcessingStatus string `json:"processing_status"`
			Model            string `json:"model"`
			Limit            int    `json:"limit"`
		}

		var req SummaryQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Summary{})
		if req.ProcessingStatus != "" {
			query = query.Where("processing_status = ?", req.ProcessingStatus)
		}
		if req.Model != "" {
			query = query.Where("model = ?", req.Model)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var summaries []models.Summary
		if err := query.Order("created_at desc").Find(&summaries).Error; err != nil {
			log.Error("Database query for summaries failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, summaries)
	})
}

// setupDigestRoutes liefert den Tages-Digest, wie ihn auch `digest export`
// ausgibt: Paper des Tages mit abgeschlossener Summary.
func setupDigestRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, log *zap.Logger) {
	exporter := services.NewExportService(db, log)

	router.GET("/digest", func(c *gin.Context) {
		dates, err := services.ResolveDates(services.RunSpec{Date: c.Query("date")}, time.Now())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		day := dates[len(dates)-1]

		limit := cfg.SummaryLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		entries, err := exporter.DailyDigest(day, limit)
		if err != nil {
			log.Error("Digest query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, entries)
	})
}

func setupCategoryRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/categories")

	rg.GET("/", func(c *gin.Context) {
		var categories []models.Category
		if err := db.Order("code asc").Find(&categories).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, categories)
	})

	rg.POST("/", func(c *gin.Context) {
		var category models.Category
		if err := c.ShouldBindJSON(&category); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if category.Code == "" || category.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code and name are required"})
			return
		}
		if err := db.Create(&category).Error; err != nil {
			log.Error("Failed to create category", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create category"})
			return
		}
		c.JSON(http.StatusCreated, category)
	})
}

func setupRunRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, log *zap.Logger, etlService *services.ETLService, summaryService *services.SummaryService) {
	rg := router.Group("/run")

	rg.POST("/etl", func(c *gin.Context) {
		type ETLRequest struct {
			Date     string `json:"date"` // YYYY-MM-DD, leer = gestern
			DaysBack int    `json:"days_back"`
			Test     bool   `json:"test"`
		}
		var req ETLRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}

		spec := services.RunSpec{Date: req.Date, DaysBack: req.DaysBack, Test: req.Test}
		// Datumsfenster synchron validieren, damit der Aufrufer Tippfehler
		// sofort sieht statt erst im Log.
		if _, err := services.ResolveDates(spec, time.Now()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		go func() {
			report, err := etlService.Run(context.Background(), spec)
			if err != nil {
				log.Error("Async ETL run failed", zap.Error(err))
				return
			}
			papersInsertedCounter.Add(float64(report.Inserted))
			papersDiscardedCounter.Add(float64(report.Discarded))
			log.Info("Async ETL run completed",
				zap.Int("inserted", report.Inserted), zap.Int("skipped", report.Skipped))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "ETL run triggered."})
	})

	rg.POST("/summarize", func(c *gin.Context) {
		if summaryService == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summarization is not configured"})
			return
		}
		type SummarizeRequest struct {
			Limit int `json:"limit"`
		}
		var req SummarizeRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}
		limit := req.Limit
		if limit <= 0 {
			limit = cfg.SummaryLimit
		}

		go func() {
			completed, failed, err := summaryService.ProcessPending(context.Background(), limit)
			if err != nil {
				log.Error("Async summarization failed", zap.Error(err))
				return
			}
			summariesCompletedCounter.Add(float64(completed))
			summariesFailedCounter.Add(float64(failed))
			log.Info("Async summarization completed",
				zap.Int("completed", completed), zap.Int("failed", failed))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Summarization triggered."})
	})

	rg.POST("/backfill", func(c *gin.Context) {
		go func() {
			backfill := services.NewBackfillService(db, log, services.LoadTaxonomy(db, log))
			updated, err := backfill.Run(context.Background(), cfg.BackfillBatch)
			if err != nil {
				log.Error("Async backfill failed", zap.Error(err))
				return
			}
			papersBackfilledCounter.Add(float64(updated))
			log.Info("Async backfill completed", zap.Int("updated", updated))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Backfill triggered."})
	})
}

func seedDefaultCategories(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.Category{}).Count(&count)
	if count > 0 {
		return
	}
	categories := []models.Category{
		{Code: "cs.AI", Name: "Artificial Intelligence"},
		{Code: "cs.LG", Name: "Machine Learning"},
		{Code: "cs.CV", Name: "Computer Vision and Pattern Recognition"},
		{Code: "cs.CL", Name: "Computation and Language"},
		{Code: "cs.NE", Name: "Neural and Evolutionary Computing"},
		{Code: "stat.ML", Name: "Machine Learning (Statistics)"},
		{Code: "cs.RO", Name: "Robotics"},
		{Code: "cs.IR", Name: "Information Retrieval"},
	}
	if err := db.Create(&categories).Error; err != nil {
		logger.Warn("Failed to seed default categories", zap.Error(err))
	} else {
		logger.Info("Default categories seeded.")
	}
}
