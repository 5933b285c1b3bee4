// Package gcs archives folder snapshots as JSON objects in Google Cloud
// Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rbaliyan/exmdb/snapshot"
	"google.golang.org/api/option"
)

const (
	contentType = "application/json"
	scope       = "https://www.googleapis.com/auth/devstorage.read_write"
)

var _ snapshot.Archive = (*Archive)(nil)

// Archive implements snapshot.Archive on GCS.
type Archive struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates an archive. Call Close to release the client.
func New(ctx context.Context, opts ...Option) (*Archive, error) {
	o := &options{
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}

	clientOpts, err := buildClientOptions(o)
	if err != nil {
		return nil, fmt.Errorf("build client options: %w", err)
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &Archive{
		client: client,
		bucket: o.bucket,
		prefix: o.prefix,
		logger: o.logger,
	}, nil
}

func buildClientOptions(o *options) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	switch {
	case o.credentialsJSON != nil:
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{scope},
			CredentialsJSON: o.credentialsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials from json: %w", err)
		}
		opts = append(opts, option.WithAuthCredentials(creds))

	case o.credentialsFile != "":
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{scope},
			CredentialsFile: o.credentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials from file: %w", err)
		}
		opts = append(opts, option.WithAuthCredentials(creds))

	case o.apiKey != "":
		opts = append(opts, option.WithAPIKey(o.apiKey))
	}

	if o.endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.endpoint))
	}
	return opts, nil
}

// Put uploads snap and returns its gs:// URI.
func (a *Archive) Put(ctx context.Context, snap *snapshot.Snapshot) (string, error) {
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return "", err
	}
	key := objectKey(a.prefix, snap)

	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer: %w", err)
	}

	a.logger.Debug("archived snapshot to gcs", "bucket", a.bucket, "key", key)
	return fmt.Sprintf("gs://%s/%s", a.bucket, key), nil
}

// Load downloads and decodes the snapshot at uri.
func (a *Archive) Load(ctx context.Context, uri string) (*snapshot.Snapshot, error) {
	bucket, key, err := parseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	r, err := a.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("create gcs reader: %w", err)
	}
	defer r.Close()

	return snapshot.Read(r)
}

// Delete removes the object at uri.
func (a *Archive) Delete(ctx context.Context, uri string) error {
	bucket, key, err := parseGCSURI(uri)
	if err != nil {
		return err
	}

	if err := a.client.Bucket(bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete object from gcs: %w", err)
	}

	a.logger.Debug("deleted snapshot from gcs", "bucket", bucket, "key", key)
	return nil
}

// Close closes the GCS client.
func (a *Archive) Close() error {
	return a.client.Close()
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

func parseGCSURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", snapshot.ErrInvalidURI, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w (no key): %s", snapshot.ErrInvalidURI, uri)
	}
	return bucket, key, nil
}
