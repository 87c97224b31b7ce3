package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
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

// runtime bündelt die Abhängigkeiten, die jedes Subkommando braucht.
type runtime struct {
	cfg     *config.Config
	db      *gorm.DB
	logging *zap.Logger
}

func setup() (*runtime, error) {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	db.AutoMigrate(&models.Paper{}, &models.Summary{}, &models.Category{})

	return &runtime{cfg: cfg, db: db, logging: logging}, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "digest",
		Short:         "Tägliche arXiv-Pipeline: fetch, summarize, backfill",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newFetchCmd(), newSummarizeCmd(), newBackfillCmd(), newExportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newFetchCmd() *cobra.Command {
	var (
		date     string
		daysBack int
		test     bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Holt neu veröffentlichte Paper und schreibt sie in den Store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.logging.Sync()

			taxonomy := services.LoadTaxonomy(rt.db, rt.logging)
			fetcher := arxiv.NewFetcher(rt.cfg, rt.logging, taxonomy)
			etl := services.NewETLService(rt.cfg, rt.db, rt.logging, fetcher)

			spec := services.RunSpec{Date: date, DaysBack: daysBack, Test: test}
			report, err := etl.Run(cmd.Context(), spec)
			if err != nil {
				return err
			}
			rt.logging.Info("Fetch abgeschlossen",
				zap.Int("fetched", report.Fetched),
				zap.Int("inserted", report.Inserted),
				zap.Int("skipped", report.Skipped),
				zap.Int("discarded", report.Discarded))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Zieldatum YYYY-MM-DD (leer = gestern)")
	cmd.Flags().IntVar(&daysBack, "days-back", 0, "zusätzliche Tage vor dem Zieldatum")
	cmd.Flags().BoolVar(&test, "test", false, "Testfenster: die letzten 7 Tage")
	return cmd
}

func newSummarizeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generiert Summaries für Paper ohne abgeschlossene Summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.logging.Sync()

			generator, err := gemini.NewClient(context.Background(), rt.cfg, rt.logging)
			if err != nil {
				return err
			}

			var archiver services.Archiver
			if rt.cfg.ArchiveEnabled() {
				archive, err := storage.NewArchive(rt.cfg)
				if err != nil {
					return err
				}
				archiver = archive
			}

			if limit <= 0 {
				limit = rt.cfg.SummaryLimit
			}
			budget := services.NewRateBudget(rt.cfg.GenRequestsPerMinute, rt.cfg.GenRequestsPerDay)
			svc := services.NewSummaryService(rt.cfg, rt.db, rt.logging, generator, budget, archiver)

			completed, failed, err := svc.ProcessPending(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rt.logging.Info("Summarize abgeschlossen",
				zap.Int("completed", completed), zap.Int("failed", failed))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximale Anzahl Kandidaten (0 = SUMMARY_LIMIT)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		date  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Gibt den Tages-Digest (Paper mit abgeschlossener Summary) als JSON aus",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.logging.Sync()

			// Dieselbe Datumsauflösung wie beim Fetch: leer bedeutet gestern.
			dates, err := services.ResolveDates(services.RunSpec{Date: date}, time.Now())
			if err != nil {
				return err
			}
			day := dates[len(dates)-1]

			if limit <= 0 {
				limit = rt.cfg.SummaryLimit
			}
			entries, err := services.NewExportService(rt.db, rt.logging).DailyDigest(day, limit)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Zieldatum YYYY-MM-DD (leer = gestern)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximale Anzahl Einträge (0 = SUMMARY_LIMIT)")
	return cmd
}

func newBackfillCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Trägt fehlende Kategorie-Namen auf Bestandsdaten nach",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.logging.Sync()

			if batchSize <= 0 {
				batchSize = rt.cfg.BackfillBatch
			}
			svc := services.NewBackfillService(rt.db, rt.logging, services.LoadTaxonomy(rt.db, rt.logging))

			updated, err := svc.Run(cmd.Context(), batchSize)
			if err != nil {
				return err
			}
			rt.logging.Info("Backfill abgeschlossen", zap.Int("updated", updated))
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Batch-Größe (0 = BACKFILL_BATCH_SIZE)")
	return cmd
}
