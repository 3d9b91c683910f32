package storage

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"ci-mapping/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
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
	return s3.NewFromConfig(awsCfg), nil
}

// S3Mirror spiegelt Rohdaten-Seiten in einen Bucket.
type S3Mirror struct {
	Client *s3.Client
	Bucket string
	Prefix string
	Logger *zap.Logger
}

// Upload lädt data unter Prefix/key hoch.
func (m *S3Mirror) Upload(ctx context.Context, key string, data []byte) error {
	fullKey := strings.TrimSuffix(m.Prefix, "/") + "/" + key
	if m.Prefix == "" {
		fullKey = key
	}
	_, err := m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(fullKey),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return err
	}
	m.Logger.Debug("Seite nach S3 gespiegelt", zap.String("bucket", m.Bucket), zap.String("key", fullKey))
	return nil
}

// Rotate behält die keep neuesten Objekte unter prefix und löscht den Rest.
func (m *S3Mirror) Rotate(ctx context.Context, prefix string, keep int) error {
	output, err := m.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return err
	}
	if len(output.Contents) <= keep {
		m.Logger.Info("Keine Rotation nötig", zap.String("prefix", prefix), zap.Int("objects", len(output.Contents)))
		return nil
	}

	sort.Slice(output.Contents, func(i, j int) bool {
		return output.Contents[i].LastModified.After(*output.Contents[j].LastModified)
	})
	for _, obj := range output.Contents[keep:] {
		m.Logger.Info("Lösche altes Objekt", zap.String("key", *obj.Key))
		if _, err := m.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.Bucket),
			Key:    obj.Key,
		}); err != nil {
			m.Logger.Error("Löschen fehlgeschlagen", zap.String("key", *obj.Key), zap.Error(err))
		}
	}
	return nil
}
