// Package s3storage wraps MinIO/S3 interactions for evidence originals and
// forensic reports. Objects are written under timestamped case keys and
// never rewritten, matching the write-once expectations of legal evidence
// handling; immutability enforcement (object lock) is bucket policy, not
// client logic.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/omni-inspector/photoproof/internal/config"
)

// Storage wraps a MinIO client plus the evidence and report buckets.
type Storage struct {
	client         *minio.Client
	evidenceBucket string
	reportBucket   string
	region         string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:         client,
		evidenceBucket: cfg.EvidenceBucket,
		reportBucket:   cfg.ReportBucket,
		region:         cfg.S3Region,
	}, nil
}

// EnsureBuckets makes sure both buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.evidenceBucket, s.reportBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// EvidenceKey builds the canonical object key for an original image:
// evidence/<case>/<utc-timestamp>/original<ext>.
func EvidenceKey(caseID, fileName string, at time.Time) string {
	return fmt.Sprintf("evidence/%s/%s/original%s",
		caseID, at.UTC().Format(time.RFC3339), path.Ext(fileName))
}

// ReportKey builds the report key that sits beside an evidence object.
func ReportKey(evidenceKey string) string {
	return path.Join(path.Dir(evidenceKey), "forensic_report.json")
}

// UploadEvidence stores the original image in the evidence bucket.
func (s *Storage) UploadEvidence(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.evidenceBucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("upload evidence object: %w", err)
	}
	return nil
}

// UploadReport stores the forensic report JSON in the report bucket.
func (s *Storage) UploadReport(ctx context.Context, objectKey string, data []byte) error {
	reader := bytes.NewReader(data)
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if _, err := s.client.PutObject(ctx, s.reportBucket, objectKey, reader, int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload report object: %w", err)
	}
	return nil
}

// DownloadEvidence fetches the original image bytes from storage.
func (s *Storage) DownloadEvidence(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.evidenceBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get evidence object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read evidence object: %w", err)
	}
	return buf, nil
}

// PresignReportURL returns a signed GET URL for a forensic report.
func (s *Storage) PresignReportURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.reportBucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign report object: %w", err)
	}
	return u.String(), nil
}
