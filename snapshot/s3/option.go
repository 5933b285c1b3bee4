package s3

import (
	"log/slog"
)

// Default configuration values.
const (
	DefaultRegion      = "us-east-1"
	DefaultPrefix      = "snapshots"
	DefaultSessionName = "exmdb-snapshot-archive"
)

type options struct {
	bucket string
	prefix string
	region string

	// S3-compatible services such as MinIO.
	endpoint     string
	usePathStyle bool

	accessKey    string
	secretKey    string
	sessionToken string

	roleARN         string
	roleSessionName string
	externalID      string

	logger *slog.Logger
}

// Option configures the S3 archive.
type Option func(*options)

// WithBucket sets the bucket name (required).
func WithBucket(bucket string) Option {
	return func(o *options) {
		o.bucket = bucket
	}
}

// WithPrefix sets the key prefix. Default is "snapshots".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithRegion sets the AWS region. Default is "us-east-1".
func WithRegion(region string) Option {
	return func(o *options) {
		if region != "" {
			o.region = region
		}
	}
}

// WithEndpoint sets a custom endpoint for S3-compatible services.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithPathStyle enables path-style addressing.
func WithPathStyle(enabled bool) Option {
	return func(o *options) {
		o.usePathStyle = enabled
	}
}

// WithStaticCredentials sets an access key pair. Without credential
// options the SDK's default chain is used (environment, shared config,
// instance and pod roles).
func WithStaticCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.accessKey = accessKey
		o.secretKey = secretKey
	}
}

// WithSessionToken sets the session token for temporary credentials.
func WithSessionToken(token string) Option {
	return func(o *options) {
		o.sessionToken = token
	}
}

// WithAssumeRole assumes roleARN through STS. An empty sessionName uses
// DefaultSessionName.
func WithAssumeRole(roleARN, sessionName string) Option {
	return func(o *options) {
		o.roleARN = roleARN
		if sessionName != "" {
			o.roleSessionName = sessionName
		} else {
			o.roleSessionName = DefaultSessionName
		}
	}
}

// WithExternalID sets the external ID required by some cross-account roles.
func WithExternalID(externalID string) Option {
	return func(o *options) {
		o.externalID = externalID
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
