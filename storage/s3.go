package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"arxiv-digest/config"
)

// Archive kapselt das PDF-Archiv im S3-kompatiblen Objekt-Storage.
// Die Archivierung ist optional; ohne konfigurierten Endpoint wird der
// Client gar nicht erst erstellt.
type Archive struct {
	client *s3.Client
	bucket string
	url    string
}

// NewArchive erstellt einen S3-Client für den konfigurierten Endpoint.
func NewArchive(cfg *config.Config) (*Archive, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return &Archive{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		url:    cfg.S3URL,
	}, nil
}

// ArchivePDF lädt ein PDF unter pdfs/<key> hoch und gibt den Link zurück.
func (a *Archive) ArchivePDF(ctx context.Context, key string, data []byte) (string, error) {
	objectKey := path.Join("pdfs", key)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("s3-upload fehlgeschlagen: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", a.url, a.bucket, objectKey), nil
}
