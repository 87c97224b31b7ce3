package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"arxiv-digest/config"
)

// backupPrefix trennt DB-Dumps von den archivierten PDFs im selben Bucket.
const backupPrefix = "backups/"

// keepBackups ist die Anzahl der Dumps, die die Rotation stehen lässt.
const keepBackups = 7

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Konfiguration konnte nicht geladen werden", zap.Error(err))
	}
	if !cfg.ArchiveEnabled() {
		logger.Fatal("Kein S3-Endpoint konfiguriert, Backup nicht möglich")
	}

	ctx := context.Background()
	logger.Info("Starte Datenbank-Backup", zap.String("db", cfg.DBName))

	dump, err := createDump(cfg)
	if err != nil {
		logger.Fatal("DB-Dump fehlgeschlagen", zap.Error(err))
	}

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		logger.Fatal("S3-Client konnte nicht erstellt werden", zap.Error(err))
	}

	key := fmt.Sprintf("%s%s-%s.sql.gz", backupPrefix, cfg.DBName,
		time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(cfg.S3Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(dump),
	})
	if err != nil {
		logger.Fatal("Upload fehlgeschlagen", zap.Error(err))
	}
	logger.Info("Backup hochgeladen",
		zap.String("key", key), zap.Int("bytes", len(dump)))

	if err := rotate(ctx, client, cfg.S3Bucket, logger); err != nil {
		logger.Fatal("Rotation fehlgeschlagen", zap.Error(err))
	}
	logger.Info("Backup abgeschlossen")
}

// createDump erzeugt einen gzip-komprimierten pg_dump der Datenbank.
func createDump(cfg *config.Config) ([]byte, error) {
	cmd := exec.Command("pg_dump",
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // Passwort kommt über PGPASSWORD
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.DBPassword))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := io.Copy(gz, stdout); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg), nil
}

// rotate löscht die ältesten Dumps unter dem Backup-Prefix, bis nur noch
// keepBackups übrig sind. PDFs im selben Bucket bleiben unberührt.
func rotate(ctx context.Context, client *s3.Client, bucket string, logger *zap.Logger) error {
	output, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(backupPrefix),
	})
	if err != nil {
		return err
	}
	if len(output.Contents) <= keepBackups {
		return nil
	}

	objects := output.Contents
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(*objects[j].LastModified)
	})

	for _, obj := range objects[keepBackups:] {
		logger.Info("Lösche altes Backup", zap.String("key", *obj.Key))
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    obj.Key,
		})
		if err != nil {
			logger.Warn("Backup konnte nicht gelöscht werden",
				zap.String("key", *obj.Key), zap.Error(err))
		}
	}
	return nil
}
