package writer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	appconfig "alphaflow/config"
	"alphaflow/logger"
)

// putObjectAPI is the part of the S3 client the uploader needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader pushes finished day files to S3 under <prefix>/<job name>/.
type Uploader struct {
	client   putObjectAPI
	bucket   string
	prefix   string
	jobName  string
	metadata map[string]string
	limiter  *rate.Limiter
	log      *logger.Log
}

// NewUploader builds the S3 client from the storage section of cfg.
func NewUploader(ctx context.Context, cfg *appconfig.Config, jobID string) (*Uploader, error) {
	s3cfg := cfg.Storage.S3
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(s3cfg.Region)}
	if s3cfg.AccessKeyID != "" && s3cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				s3cfg.AccessKeyID,
				s3cfg.SecretAccessKey,
				"",
			)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
		o.UsePathStyle = s3cfg.PathStyle
	})
	return newUploader(client, cfg, jobID), nil
}

func newUploader(client putObjectAPI, cfg *appconfig.Config, jobID string) *Uploader {
	burst := int(cfg.Storage.S3.UploadsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Uploader{
		client:  client,
		bucket:  cfg.Storage.S3.Bucket,
		prefix:  strings.Trim(cfg.Storage.S3.Prefix, "/"),
		jobName: cfg.Job.Name,
		metadata: map[string]string{
			"job-id":      jobID,
			"job-name":    cfg.Job.Name,
			"job-version": cfg.Job.Version,
			"format":      cfg.Output.Format,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.Storage.S3.UploadsPerSecond), burst),
		log:     logger.GetLogger(),
	}
}

// ObjectKey returns the S3 key a local file is uploaded to.
func (u *Uploader) ObjectKey(file string) string {
	return path.Join(u.prefix, u.jobName, filepath.Base(file))
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	}
	return "application/octet-stream"
}

// Upload sends each file in turn and stops at the first failure.
func (u *Uploader) Upload(ctx context.Context, files []string) error {
	log := u.log.WithComponent("s3_uploader").WithFields(logger.Fields{"bucket": u.bucket})
	start := time.Now()
	var bytesSent int64

	for _, file := range files {
		if err := u.limiter.Wait(ctx); err != nil {
			return err
		}
		n, err := u.put(ctx, file)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"file": file}).Error("upload to s3 failed")
			return fmt.Errorf("upload %s: %w", file, err)
		}
		bytesSent += n
		log.WithFields(logger.Fields{
			"s3_key": u.ObjectKey(file),
			"bytes":  n,
		}).Debug("day file uploaded")
	}

	logger.LogPerformanceEntry(log, "s3_uploader", "upload", time.Since(start), logger.Fields{
		"files": len(files),
		"bytes": bytesSent,
	})
	return nil
}

func (u *Uploader) put(ctx context.Context, file string) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(u.ObjectKey(file)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(file)),
		Metadata:      u.metadata,
	})
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
