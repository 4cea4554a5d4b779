package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"trustclaw/logger"
	"trustclaw/models"
)

type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores every market brief as a JSON object, partitioned by day.
type S3Archive struct {
	client putObjectAPI
	bucket string
	prefix string
	log    *logger.Entry
}

// NewS3Archive loads the AWS configuration for opts.Region. Static keys are
// used when both are set, otherwise the default credential chain applies.
func NewS3Archive(ctx context.Context, opts S3Options) (*S3Archive, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	a := newS3Archive(client, opts.Bucket, opts.Prefix)
	a.log.WithFields(logger.Fields{
		"bucket": opts.Bucket,
		"prefix": a.prefix,
		"region": opts.Region,
	}).Info("s3 brief archive initialized")
	return a, nil
}

func newS3Archive(client putObjectAPI, bucket, prefix string) *S3Archive {
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    logger.GetLogger().WithComponent("writer.s3_archive"),
	}
}

// Key returns the object key for a brief: <prefix>/YYYY/MM/DD/<id>.json.
func (a *S3Archive) Key(b models.Brief) string {
	day := b.GeneratedAt.UTC().Format("2006/01/02")
	return path.Join(a.prefix, day, b.ID+".json")
}

func (a *S3Archive) Archive(ctx context.Context, b models.Brief) error {
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode brief %s: %w", b.ID, err)
	}
	key := a.Key(b)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return models.NewTransient("s3 put "+key, err)
	}
	logger.LogDataFlowEntry(a.log, "market-brief", "s3", len(b.Findings), "findings")
	return nil
}
