package ledger

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// EvidencePack is an exported, self-verifying bundle of the audit trail.
type EvidencePack struct {
	GeneratedAt time.Time `json:"generated_at"`
	Checksum    string    `json:"checksum"`
	HeadHash    string    `json:"head_hash"`
	EntryCount  int       `json:"entry_count"`
	UploadURI   string    `json:"upload_uri,omitempty"`
}

// Export renders the full ledger into a zip bundle: the derived report, the
// raw entry chain, and a manifest carrying the chain head for independent
// verification. Returns the zip bytes, its SHA-256 checksum, and metadata.
func (l *Ledger) Export() ([]byte, *EvidencePack, error) {
	report, err := l.Report()
	if err != nil {
		return nil, nil, err
	}

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: marshal report: %w", err)
	}
	entriesJSON, err := json.MarshalIndent(report.Entries, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: marshal entries: %w", err)
	}

	ok, detail := l.Verify()
	manifest := map[string]any{
		"generated_at":   l.clock(),
		"entry_count":    len(report.Entries),
		"chain_head":     l.Head(),
		"chain_verified": ok,
		"chain_detail":   detail,
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, content := range map[string][]byte{
		"report.json":   reportJSON,
		"entries.json":  entriesJSON,
		"manifest.json": manifestJSON,
	} {
		f, err := w.Create(name)
		if err != nil {
			return nil, nil, fmt.Errorf("ledger: create %s in pack: %w", name, err)
		}
		if _, err := f.Write(content); err != nil {
			return nil, nil, fmt.Errorf("ledger: write %s in pack: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("ledger: finalize pack: %w", err)
	}

	zipBytes := buf.Bytes()
	sum := sha256.Sum256(zipBytes)

	return zipBytes, &EvidencePack{
		GeneratedAt: l.clock(),
		Checksum:    hex.EncodeToString(sum[:]),
		HeadHash:    l.Head(),
		EntryCount:  len(report.Entries),
	}, nil
}

// S3UploaderConfig configures evidence pack uploads.
type S3UploaderConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO/LocalStack
	Prefix   string // optional key prefix
}

// S3Uploader pushes evidence packs to an object store bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Uploader builds an uploader from ambient AWS credentials.
func NewS3Uploader(ctx context.Context, cfg S3UploaderConfig) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("ledger: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Upload stores a pack under "<prefix><checksum>.zip" and returns its URI.
func (u *S3Uploader) Upload(ctx context.Context, zipBytes []byte, pack *EvidencePack) (string, error) {
	key := u.prefix + pack.Checksum + ".zip"
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(zipBytes),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("ledger: upload evidence pack: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
