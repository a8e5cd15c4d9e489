package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"deal_scout/config"
	"deal_scout/models"
)

const reportPrefix = "reports"

// objectPutter is the subset of the S3 client the archiver needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads one JSON report per completed search run to
// S3-compatible storage.
type S3Archiver struct {
	client objectPutter
	cfg    config.S3Config
}

// Report is the archived document for one run.
type Report struct {
	Run        *models.SearchRun         `json:"run"`
	Properties []models.AnalyzedProperty `json:"properties"`
	ArchivedAt time.Time                 `json:"archived_at"`
}

func NewS3Archiver(ctx context.Context, cfg config.S3Config) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Archiver{client: client, cfg: cfg}, nil
}

// Upload puts data under key.
func (a *S3Archiver) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Publish uploads the run report. It satisfies the pipeline's result sink.
func (a *S3Archiver) Publish(ctx context.Context, run *models.SearchRun, props []models.AnalyzedProperty) error {
	if props == nil {
		props = []models.AnalyzedProperty{}
	}
	data, err := json.MarshalIndent(Report{Run: run, Properties: props, ArchivedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	key := ReportKey(run)
	if err := a.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}
	log.Printf("Archived report for run %s: %s", run.ID, a.PublicURL(key))
	return nil
}

// ReportKey places reports under reports/YYYY/MM/DD/<run id>.json.
func ReportKey(run *models.SearchRun) string {
	return path.Join(reportPrefix, run.StartedAt.UTC().Format("2006/01/02"), run.ID.String()+".json")
}

// PublicURL returns the public URL for an S3 key.
func (a *S3Archiver) PublicURL(key string) string {
	if a.cfg.Endpoint != "" && strings.Contains(a.cfg.Endpoint, "digitaloceanspaces.com") {
		// DO Spaces: https://{bucket}.{region}.digitaloceanspaces.com/{key}
		host := strings.TrimPrefix(a.cfg.Endpoint, "https://")
		return fmt.Sprintf("https://%s.%s/%s", a.cfg.Bucket, host, key)
	}
	if a.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.cfg.Endpoint, "/"), a.cfg.Bucket, key)
	}
	// AWS S3: https://{bucket}.s3.{region}.amazonaws.com/{key}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.cfg.Bucket, a.cfg.Region, key)
}
