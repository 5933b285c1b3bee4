// Package s3 archives folder snapshots as JSON objects in AWS S3 or an
// S3-compatible service.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rbaliyan/exmdb/snapshot"
)

const contentType = "application/json"

var _ snapshot.Archive = (*Archive)(nil)

// Archive implements snapshot.Archive on S3.
type Archive struct {
	client *s3.Client
	tm     *transfermanager.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates an archive. ctx is used to load AWS configuration and
// credentials.
func New(ctx context.Context, opts ...Option) (*Archive, error) {
	o := &options{
		region: DefaultRegion,
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	awsCfg, err := buildAWSConfig(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("build aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
			so.UsePathStyle = o.usePathStyle
		}
	})

	return &Archive{
		client: client,
		tm:     transfermanager.New(client),
		bucket: o.bucket,
		prefix: o.prefix,
		logger: o.logger,
	}, nil
}

func buildAWSConfig(ctx context.Context, o *options) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{config.WithRegion(o.region)}

	switch {
	case o.accessKey != "" && o.secretKey != "":
		creds := credentials.NewStaticCredentialsProvider(o.accessKey, o.secretKey, o.sessionToken)
		optFns = append(optFns, config.WithCredentialsProvider(creds))

	case o.roleARN != "":
		baseCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(o.region))
		if err != nil {
			return aws.Config{}, fmt.Errorf("load base config for role: %w", err)
		}
		creds := newAssumeRoleProvider(baseCfg, o.roleARN, o.roleSessionName, o.externalID)
		optFns = append(optFns, config.WithCredentialsProvider(creds))
	}

	return config.LoadDefaultConfig(ctx, optFns...)
}

// Put uploads snap and returns its s3:// URI.
func (a *Archive) Put(ctx context.Context, snap *snapshot.Snapshot) (string, error) {
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return "", err
	}
	key := objectKey(a.prefix, snap)

	_, err = a.tm.UploadObject(ctx, &transfermanager.UploadObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	a.logger.Debug("archived snapshot to s3", "bucket", a.bucket, "key", key)
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// Load downloads and decodes the snapshot at uri.
func (a *Archive) Load(ctx context.Context, uri string) (*snapshot.Snapshot, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("get object from s3: %w", err)
	}
	defer out.Body.Close()

	return snapshot.Read(out.Body)
}

// Delete removes the object at uri.
func (a *Archive) Delete(ctx context.Context, uri string) error {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return err
	}

	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object from s3: %w", err)
	}

	a.logger.Debug("deleted snapshot from s3", "bucket", bucket, "key", key)
	return nil
}

// objectKey partitions by day of capture:
// <prefix>/<yyyy>/<mm>/<dd>/<id>.json.
func objectKey(prefix string, snap *snapshot.Snapshot) string {
	id := snap.ID
	if id == "" {
		id = uuid.New().String()
	}
	return path.Join(prefix, snap.TakenAt.UTC().Format("2006/01/02"), id+".json")
}

func parseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", snapshot.ErrInvalidURI, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w (no key): %s", snapshot.ErrInvalidURI, uri)
	}
	return bucket, key, nil
}
